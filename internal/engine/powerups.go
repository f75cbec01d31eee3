package engine

import (
	"context"
	"fmt"
	"math/rand/v2"

	"exam-arena-service/internal/domain"
)

// persistent effects stay active until consumed or the question changes; the others apply
// once and are never listed as active.
var persistentEffects = map[domain.PowerUp]bool{
	domain.PowerUpHint:       true,
	domain.PowerUpFiftyFifty: true,
	domain.PowerUpFreeze:     true,
	domain.PowerUpShield:     true,
	domain.PowerUpBoost:      true,
	domain.PowerUpXray:       true,
	domain.PowerUpSnap:       true,
}

// Activate buys effect through the ledger and applies it. Refusals (wrong phase, effect already
// active, mode restriction, ledger rejection) leave the session unchanged and charge nothing.
func (s *Session) Activate(ctx context.Context, effect domain.PowerUp) error {
	s.mu.Lock()
	err := s.activateLocked(ctx, effect)
	if err != nil {
		powerUpsTotal.WithLabelValues(string(effect), "refused").Inc()
		s.mu.Unlock()
		return err
	}
	powerUpsTotal.WithLabelValues(string(effect), "applied").Inc()

	if effect != domain.PowerUpHint {
		report := s.takeReportLocked()
		s.mu.Unlock()
		if report {
			s.Report(ctx)
		}
		return nil
	}

	q, lang, token := s.questions[s.cursor], s.lang, s.token
	s.mu.Unlock()

	text := s.assist.Hint(ctx, q, lang)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == token {
		s.hint = text
		s.aiInFlight = false
		s.broadcastLocked()
	}
	return nil
}

func (s *Session) activateLocked(ctx context.Context, effect domain.PowerUp) error {
	if _, err := domain.ParsePowerUp(string(effect)); err != nil {
		return err
	}
	if err := s.requireAnsweringLocked(); err != nil {
		return err
	}
	if s.effects[effect] {
		return ErrEffectActive
	}
	if effect == domain.PowerUpOvertime && !s.rules.sessionScoped() {
		return ErrModeRestricted
	}
	if effect == domain.PowerUpFiftyFifty && len(s.wrongVisibleLocked()) < 2 {
		return ErrEffectUnavailable
	}

	// The replacement is drawn before paying so a failed draw costs nothing.
	var replacement domain.Question
	if effect == domain.PowerUpSwap {
		exclude := make(map[string]bool, len(s.questions))
		for _, q := range s.questions {
			exclude[q.ID] = true
		}
		q, err := s.replacer.One(ctx, s.filter, exclude)
		if err != nil {
			return fmt.Errorf("swap: %w", err)
		}
		replacement = q
	}

	if _, err := s.ledger.UsePowerUp(ctx, s.userID, effect); err != nil {
		return err
	}

	if persistentEffects[effect] {
		s.effects[effect] = true
	}
	switch effect {
	case domain.PowerUpHint:
		s.aiInFlight = true
	case domain.PowerUpFiftyFifty:
		wrong := s.wrongVisibleLocked()
		rand.Shuffle(len(wrong), func(i, j int) { wrong[i], wrong[j] = wrong[j], wrong[i] })
		for _, id := range wrong[:2] {
			s.hidden[id] = true
		}
	case domain.PowerUpFreeze:
		s.armLocked(TimerFreeze, s.rules.FreezeDuration, func() {
			delete(s.effects, domain.PowerUpFreeze)
		})
	case domain.PowerUpSwap:
		s.questions[s.cursor] = replacement
		s.token++
		s.hint = ""
		s.revealed = ""
		s.aiInFlight = false
		s.hidden = make(map[string]bool)
		delete(s.effects, domain.PowerUpHint)
		delete(s.effects, domain.PowerUpFiftyFifty)
		delete(s.effects, domain.PowerUpXray)
	case domain.PowerUpBoost:
		s.boostRemaining = s.rules.BoostUses
	case domain.PowerUpXray:
		s.revealed = s.questions[s.cursor].CorrectOptionID
	case domain.PowerUpOvertime:
		s.timeLeft += seconds(s.rules.Overtime)
	case domain.PowerUpAutopilot:
		s.resolveLocked(s.questions[s.cursor].CorrectOptionID, false)
	}
	s.broadcastLocked()
	return nil
}

func (s *Session) wrongVisibleLocked() []string {
	q := s.questions[s.cursor]
	var ids []string
	for _, opt := range q.Options {
		if opt.ID != q.CorrectOptionID && !s.hidden[opt.ID] {
			ids = append(ids, opt.ID)
		}
	}
	return ids
}

// RequestExplanation fetches an explanation for the answered question. The text is stored on
// the session only if the answer was neither undone nor moved past meanwhile.
func (s *Session) RequestExplanation(ctx context.Context) (string, error) {
	s.mu.Lock()
	switch s.phase {
	case PhaseAnswered, PhaseReviveOffer, PhaseCompleted:
	default:
		s.mu.Unlock()
		return "", ErrNotAnswered
	}
	if s.explanation != "" {
		text := s.explanation
		s.mu.Unlock()
		return text, nil
	}
	q, selected, lang, seq := s.questions[s.cursor], s.selected, s.lang, s.answerSeq
	s.mu.Unlock()

	text := s.assist.Explain(ctx, q, selected, lang)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.answerSeq == seq {
		s.explanation = text
		s.broadcastLocked()
	}
	return text, nil
}
