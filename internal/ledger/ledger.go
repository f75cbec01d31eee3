package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"exam-arena-service/internal/domain"
)

const (
	// SpinCooldown is the minimum time between two daily spins.
	SpinCooldown = 24 * time.Hour
	// SpeedrunSeconds is the speedrun session budget; OvertimeSeconds is added per overtime bought.
	SpeedrunSeconds = 60
	OvertimeSeconds = 15
	// SpeedrunBonusPerSecond is the speedrun bonus for each second left on the clock.
	SpeedrunBonusPerSecond = 2
	// SurvivalBonusPerPoint is the survival bonus for each correct answer.
	SurvivalBonusPerPoint = 5
	// XPPerCorrect is awarded for every correct answer, twice while boosted.
	XPPerCorrect = 10
)

// Service is the authoritative owner of XP and everything bought with it.
// Every mutation runs as one Store.Update, so concurrent purchases and credits for the
// same user are serialized.
type Service struct {
	store         Store
	journal       Journal
	events        Publisher
	maxMultiplier float64
	now           func() time.Time
	spin          func(n int) int
}

// Option configures a Service.
type Option func(*Service)

// WithJournal mirrors every XP movement into j.
func WithJournal(j Journal) Option {
	return func(s *Service) { s.journal = j }
}

// WithPublisher emits domain events through p.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.events = p }
}

// WithMaxMultiplier caps the quiz XP multiplier a client may claim. Values below 1 mean 1.
func WithMaxMultiplier(m float64) Option {
	return func(s *Service) { s.maxMultiplier = m }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithSpinSource overrides the random wheel slot picker, for tests.
func WithSpinSource(pick func(n int) int) Option {
	return func(s *Service) { s.spin = pick }
}

// New builds a ledger over store.
func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:         store,
		journal:       nopJournal{},
		events:        nopPublisher{},
		maxMultiplier: 1,
		now:           time.Now,
		spin:          rand.IntN,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maxMultiplier < 1 {
		s.maxMultiplier = 1
	}
	return s
}

// Get returns the user's current state.
func (s *Service) Get(ctx context.Context, userID string) (domain.User, error) {
	rec, err := s.store.Get(ctx, userID)
	if err != nil {
		return domain.User{}, &domain.LedgerError{Op: "get", Err: err}
	}
	return rec.ToUser(), nil
}

// Debit removes amount XP, failing with domain.ErrInsufficientXP and no mutation when the
// balance is short.
func (s *Service) Debit(ctx context.Context, userID string, amount int64, reason string) (domain.User, error) {
	return s.mutate(ctx, "debit", userID, func(t *txn) error {
		return s.debit(t, amount, reason)
	})
}

// Credit adds amount XP.
func (s *Service) Credit(ctx context.Context, userID string, amount int64, reason string) (domain.User, error) {
	return s.mutate(ctx, "credit", userID, func(t *txn) error {
		return s.credit(t, amount, reason)
	})
}

// UsePowerUp charges for one activation of p. A shield is taken from the inventory when one is
// owned and bought with XP otherwise.
func (s *Service) UsePowerUp(ctx context.Context, userID string, p domain.PowerUp) (domain.User, error) {
	price, err := PriceOf(p)
	if err != nil {
		return domain.User{}, &domain.LedgerError{Op: "use-powerup", Err: err}
	}
	return s.mutate(ctx, "use-powerup", userID, func(t *txn) error {
		if p == domain.PowerUpShield && t.rec.Shields > 0 {
			t.rec.Shields--
			return nil
		}
		if err := s.debit(t, price, "powerup:"+string(p)); err != nil {
			return err
		}
		if p == domain.PowerUpOvertime {
			t.rec.OvertimeBanked++
		}
		return nil
	})
}

// BuyShield adds one shield to the inventory.
func (s *Service) BuyShield(ctx context.Context, userID string) (domain.User, error) {
	return s.mutate(ctx, "buy-shield", userID, func(t *txn) error {
		if err := s.debit(t, ShieldPrice, "shield"); err != nil {
			return err
		}
		t.rec.Shields++
		return nil
	})
}

// BuyIsland unlocks an island. Owned islands are not charged again.
func (s *Service) BuyIsland(ctx context.Context, userID, islandID string) (domain.User, error) {
	island, ok := islandByID(islandID)
	if !ok {
		return domain.User{}, &domain.LedgerError{Op: "buy-island", Err: fmt.Errorf("%w: %s", domain.ErrUnknownIsland, islandID)}
	}
	return s.mutate(ctx, "buy-island", userID, func(t *txn) error {
		if t.rec.UnlockedIslands[island.ID] {
			return nil
		}
		if err := s.debit(t, island.Price, "island:"+island.ID); err != nil {
			return err
		}
		t.rec.UnlockedIslands[island.ID] = true
		unlockBadges(t.rec, nil)
		return nil
	})
}

// Revive charges for one extra survival life.
func (s *Service) Revive(ctx context.Context, userID string) (domain.User, error) {
	return s.mutate(ctx, "revive", userID, func(t *txn) error {
		return s.debit(t, RevivePrice, "revive")
	})
}

// RecordQuizResult credits a finished quiz and unlocks badges. The returned outcome is the
// authoritative XP delta. A speedrun result spends the overtime bought since the previous one.
func (s *Service) RecordQuizResult(ctx context.Context, userID string, res domain.QuizResult) (domain.QuizOutcome, error) {
	if err := validateResult(res); err != nil {
		return domain.QuizOutcome{}, &domain.LedgerError{Op: "quiz-result", Err: err}
	}

	var (
		newBadges []string
		gained    int64
		credited  domain.QuizResult
	)
	user, err := s.mutate(ctx, "quiz-result", userID, func(t *txn) error {
		credited = res
		credited.Bonus = clampBonus(res, t.rec.OvertimeBanked)
		if res.Mode == domain.ModeSpeedrun {
			t.rec.OvertimeBanked = 0
		}
		gained = s.quizXP(credited)
		if err := s.credit(t, gained, "quiz:"+string(res.Mode)); err != nil {
			return err
		}
		t.rec.QuizzesCompleted++
		if res.BestStreak > t.rec.BestStreak {
			t.rec.BestStreak = res.BestStreak
		}
		newBadges = unlockBadges(t.rec, &credited)
		return nil
	})
	if err != nil {
		return domain.QuizOutcome{}, err
	}
	if newBadges == nil {
		newBadges = []string{}
	}
	out := domain.QuizOutcome{XPGained: gained, NewBadges: newBadges, User: user}
	s.publish(ctx, EventQuizCompleted, QuizCompletedEvent{
		UserID: userID, Result: credited, XPGained: gained, NewBadges: newBadges, At: s.now(),
	})
	return out, nil
}

// Spin credits a random wheel reward at most once per SpinCooldown.
func (s *Service) Spin(ctx context.Context, userID string) (int64, domain.User, error) {
	var reward int64
	user, err := s.mutate(ctx, "spin", userID, func(t *txn) error {
		now := s.now()
		if !t.rec.LastSpinAt.IsZero() && now.Sub(t.rec.LastSpinAt) < SpinCooldown {
			return domain.ErrSpinCooldown
		}
		reward = SpinWheel[s.spin(len(SpinWheel))]
		if err := s.credit(t, reward, "spin"); err != nil {
			return err
		}
		t.rec.LastSpinAt = now
		return nil
	})
	if err != nil {
		return 0, domain.User{}, err
	}
	return reward, user, nil
}

// txn is the state of one store update attempt.
type txn struct {
	ctx     context.Context
	rec     *domain.ProgressionRecord
	entryID string
	events  []pendingEvent
	// posted is the journal entry this update has written, across every attempt.
	posted *Entry
}

type pendingEvent struct {
	key   string
	event Event
}

// mutate runs fn inside one atomic store update. The entry id is fixed before the update so a
// retried transaction posts the same journal entry. Events are published after commit.
func (s *Service) mutate(ctx context.Context, op, userID string, fn func(*txn) error) (domain.User, error) {
	t := &txn{ctx: ctx, entryID: uuid.NewString()}
	rec, err := s.store.Update(ctx, userID, func(rec *domain.ProgressionRecord) error {
		t.rec = rec
		t.events = t.events[:0]
		if err := fn(t); err != nil {
			return err
		}
		rec.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		if t.posted != nil {
			s.reverse(context.WithoutCancel(ctx), *t.posted)
		}
		operationsTotal.WithLabelValues(op, outcomeOf(err)).Inc()
		var le *domain.LedgerError
		if errors.As(err, &le) {
			return domain.User{}, err
		}
		return domain.User{}, &domain.LedgerError{Op: op, Err: err}
	}
	operationsTotal.WithLabelValues(op, "ok").Inc()
	for _, ev := range t.events {
		ev.event.Balance = rec.XP
		s.publish(ctx, ev.key, ev.event)
	}
	return rec.ToUser(), nil
}

// reverse posts the opposite of e after the store refused the update that journaled it.
func (s *Service) reverse(ctx context.Context, e Entry) {
	rev := Entry{
		ID: e.ID + ":reversal", UserID: e.UserID, Direction: Credit, Amount: e.Amount, Reason: "reversal:" + e.Reason, At: s.now(),
	}
	if e.Direction == Credit {
		rev.Direction = Debit
	}
	if err := s.journal.Post(ctx, rev); err != nil {
		log.Printf("ledger: reversal of entry %s for %s failed, journal and store diverge: %v", e.ID, e.UserID, err)
		return
	}
	reversalsTotal.Inc()
}

func (s *Service) post(t *txn, e Entry) error {
	if err := s.journal.Post(t.ctx, e); err != nil {
		return err
	}
	if t.posted == nil {
		t.posted = &e
	}
	return nil
}

func (s *Service) debit(t *txn, amount int64, reason string) error {
	if amount < 0 {
		return domain.ErrInvalidAmount
	}
	if t.rec.XP < amount {
		return domain.ErrInsufficientXP
	}
	if amount == 0 {
		return nil
	}
	if err := s.post(t, Entry{
		ID: t.entryID, UserID: t.rec.UserID, Direction: Debit, Amount: amount, Reason: reason, At: s.now(),
	}); err != nil {
		return fmt.Errorf("journal debit: %w", err)
	}
	t.rec.XP -= amount
	xpMovedTotal.WithLabelValues(Debit.String()).Add(float64(amount))
	t.events = append(t.events, pendingEvent{EventDebited, Event{UserID: t.rec.UserID, Amount: amount, Reason: reason, At: s.now()}})
	return nil
}

func (s *Service) credit(t *txn, amount int64, reason string) error {
	if amount < 0 {
		return domain.ErrInvalidAmount
	}
	if amount == 0 {
		return nil
	}
	if err := s.post(t, Entry{
		ID: t.entryID, UserID: t.rec.UserID, Direction: Credit, Amount: amount, Reason: reason, At: s.now(),
	}); err != nil {
		return fmt.Errorf("journal credit: %w", err)
	}
	t.rec.XP += amount
	xpMovedTotal.WithLabelValues(Credit.String()).Add(float64(amount))
	t.events = append(t.events, pendingEvent{EventCredited, Event{UserID: t.rec.UserID, Amount: amount, Reason: reason, At: s.now()}})
	return nil
}

func (s *Service) quizXP(res domain.QuizResult) int64 {
	m := res.Multiplier
	if m < 1 {
		m = 1
	}
	if m > s.maxMultiplier {
		m = s.maxMultiplier
	}
	base := float64((res.Score+res.BoostedCorrect)*XPPerCorrect + res.Bonus)
	return int64(math.Round(base * m))
}

func (s *Service) publish(ctx context.Context, key string, event any) {
	if err := s.events.Publish(ctx, key, event); err != nil {
		log.Printf("ledger: publish %s failed: %v", key, err)
	}
}

func validateResult(res domain.QuizResult) error {
	switch {
	case res.Score < 0, res.TotalQuestions < 0, res.Bonus < 0, res.BoostedCorrect < 0, res.BestStreak < 0:
		return fmt.Errorf("%w: negative quiz result field", domain.ErrInvalidAmount)
	case res.Score > res.TotalQuestions:
		return fmt.Errorf("%w: score %d exceeds %d questions", domain.ErrInvalidAmount, res.Score, res.TotalQuestions)
	case res.BoostedCorrect > res.Score:
		return fmt.Errorf("%w: boosted answers exceed score", domain.ErrInvalidAmount)
	case res.BestStreak > res.TotalQuestions:
		return fmt.Errorf("%w: streak exceeds questions", domain.ErrInvalidAmount)
	}
	if _, err := domain.ParseMode(string(res.Mode)); err != nil {
		return err
	}
	return nil
}

// clampBonus limits the reported bonus to what the mode can earn. A speedrun can hold at most
// its session budget plus the overtime bought for it.
func clampBonus(res domain.QuizResult, overtime int) int {
	var limit int
	switch res.Mode {
	case domain.ModeSurvival:
		limit = res.Score * SurvivalBonusPerPoint
	case domain.ModeSpeedrun:
		limit = SpeedrunBonusPerSecond * (SpeedrunSeconds + OvertimeSeconds*overtime)
	}
	if res.Bonus > limit {
		return limit
	}
	return res.Bonus
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientXP):
		return "insufficient"
	case errors.Is(err, domain.ErrSpinCooldown):
		return "cooldown"
	default:
		return "error"
	}
}
