package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"exam-arena-service/internal/domain"
)

// Ledger is the part of the progression ledger a session spends and reports through.
type Ledger interface {
	UsePowerUp(ctx context.Context, userID string, p domain.PowerUp) (domain.User, error)
	Revive(ctx context.Context, userID string) (domain.User, error)
	RecordQuizResult(ctx context.Context, userID string, res domain.QuizResult) (domain.QuizOutcome, error)
}

// Assist produces hint and explanation text. It never fails; fallbacks are its concern.
type Assist interface {
	Hint(ctx context.Context, q domain.Question, lang string) string
	Explain(ctx context.Context, q domain.Question, selected, lang string) string
}

// Replacer draws one fresh question for swap.
type Replacer interface {
	One(ctx context.Context, filter domain.QuestionFilter, exclude map[string]bool) (domain.Question, error)
}

// Config describes a new session.
type Config struct {
	ID        string
	UserID    string
	Mode      domain.Mode
	Language  string
	Filter    domain.QuestionFilter
	Questions []domain.Question
	// Rules defaults to RulesFor(Mode).
	Rules *Rules
	// Multiplier is the event XP multiplier reported on completion; values below 1 mean 1.
	Multiplier float64
	// ReportTimeout bounds the completion report when it runs from a timer.
	ReportTimeout time.Duration

	Ledger    Ledger
	Assist    Assist
	Replacer  Replacer
	Scheduler Scheduler
}

// Session is the state machine of one quiz attempt. Every mutation, whether from user input,
// a timer or an AI response, runs under mu. AI calls run with mu released: a hint is applied
// only while token names the same question, an explanation only while answerSeq names the
// same answer.
type Session struct {
	mu sync.Mutex

	id, userID string
	mode       domain.Mode
	lang       string
	filter     domain.QuestionFilter
	rules      Rules
	multiplier float64
	reportTTL  time.Duration

	ledger   Ledger
	assist   Assist
	replacer Replacer
	sched    Scheduler

	phase     Phase
	questions []domain.Question
	cursor    int
	token     int
	answerSeq int

	lives      int
	timeLeft   int
	timeUsed   int
	score      int
	streak     int
	bestStreak int

	selected string
	outcome  Outcome
	answers  []AnswerRecord

	effects        map[domain.PowerUp]bool
	boostRemaining int
	boostedCorrect int
	hidden         map[string]bool
	revealed       string
	hint           string
	explanation    string
	aiInFlight     bool

	snapOpen   bool
	snapUntil  time.Time
	livesSaved int

	timerGen map[TimerName]int

	result        *domain.QuizResult
	quizOutcome   *domain.QuizOutcome
	reportErr     error
	pendingReport bool
	reportMu      sync.Mutex

	subscribers map[chan Snapshot]struct{}
}

// New builds a session in the Loading phase.
func New(cfg Config) (*Session, error) {
	if len(cfg.Questions) == 0 {
		return nil, ErrNoQuestions
	}
	if cfg.Ledger == nil || cfg.Assist == nil || cfg.Replacer == nil {
		return nil, errors.New("session needs a ledger, an assist service and a replacer")
	}
	mode, err := domain.ParseMode(string(cfg.Mode))
	if err != nil {
		return nil, err
	}
	rules := RulesFor(mode)
	if cfg.Rules != nil {
		rules = *cfg.Rules
	}
	sched := cfg.Scheduler
	if sched == nil {
		sched = NewRealScheduler()
	}
	lang := cfg.Language
	if lang == "" {
		lang = domain.DefaultLanguage
	}
	multiplier := cfg.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	reportTTL := cfg.ReportTimeout
	if reportTTL <= 0 {
		reportTTL = 10 * time.Second
	}
	return &Session{
		id:          cfg.ID,
		userID:      cfg.UserID,
		mode:        mode,
		lang:        lang,
		filter:      cfg.Filter,
		rules:       rules,
		multiplier:  multiplier,
		reportTTL:   reportTTL,
		ledger:      cfg.Ledger,
		assist:      cfg.Assist,
		replacer:    cfg.Replacer,
		sched:       sched,
		phase:       PhaseLoading,
		questions:   append([]domain.Question(nil), cfg.Questions...),
		lives:       rules.Lives,
		effects:     make(map[domain.PowerUp]bool),
		hidden:      make(map[string]bool),
		timerGen:    make(map[TimerName]int),
		subscribers: make(map[chan Snapshot]struct{}),
	}, nil
}

func (s *Session) ID() string     { return s.id }
func (s *Session) UserID() string { return s.userID }

// Start moves Loading to Answering on the first question and starts the question timer.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseLoading {
		return ErrAlreadyStarted
	}
	if s.rules.sessionScoped() {
		s.timeLeft = seconds(s.rules.SessionTime)
	}
	s.enterQuestionLocked(0)
	s.armTickLocked()
	s.broadcastLocked()
	return nil
}

// Select answers the current question with optionID.
func (s *Session) Select(ctx context.Context, optionID string) error {
	s.mu.Lock()
	err := s.selectLocked(optionID)
	report := s.takeReportLocked()
	s.mu.Unlock()
	if report {
		s.Report(ctx)
	}
	return err
}

func (s *Session) selectLocked(optionID string) error {
	if err := s.requireAnsweringLocked(); err != nil {
		return err
	}
	q := s.questions[s.cursor]
	if !q.HasOption(optionID) || s.hidden[optionID] {
		return fmt.Errorf("%w: %s", domain.ErrOptionNotFound, optionID)
	}
	s.resolveLocked(optionID, false)
	s.broadcastLocked()
	return nil
}

// Tick runs one timer step. The question timer calls it once per TickInterval.
func (s *Session) Tick(ctx context.Context) {
	s.mu.Lock()
	s.tickLocked()
	s.broadcastLocked()
	report := s.takeReportLocked()
	s.mu.Unlock()
	if report {
		s.Report(ctx)
	}
}

// tickLocked decrements the clock unless it is suspended: an answer is selected, an AI call
// is in flight for the current question, or freeze is active.
func (s *Session) tickLocked() {
	if s.phase != PhaseAnswering || s.aiInFlight || s.effects[domain.PowerUpFreeze] {
		return
	}
	if s.timeLeft > 0 {
		s.timeLeft--
		s.timeUsed++
	}
	if s.timeLeft > 0 {
		return
	}
	s.resolveLocked("", true)
	if s.rules.sessionScoped() {
		s.completeLocked()
	}
}

// resolveLocked scores the current question. An empty selection with timedOut is a miss.
func (s *Session) resolveLocked(optionID string, timedOut bool) {
	q := s.questions[s.cursor]
	s.selected = optionID
	s.phase = PhaseAnswered
	s.livesSaved = s.lives

	switch {
	case !timedOut && optionID == q.CorrectOptionID:
		s.outcome = OutcomeCorrect
		s.score++
		s.streak++
		if s.streak > s.bestStreak {
			s.bestStreak = s.streak
		}
		if s.effects[domain.PowerUpBoost] {
			s.boostedCorrect++
			s.boostRemaining--
			if s.boostRemaining <= 0 {
				s.boostRemaining = 0
				delete(s.effects, domain.PowerUpBoost)
			}
		}
	case s.effects[domain.PowerUpShield]:
		delete(s.effects, domain.PowerUpShield)
		s.outcome = OutcomeShielded
	default:
		s.outcome = OutcomeIncorrect
		if timedOut {
			s.outcome = OutcomeTimeout
		}
		s.streak = 0
		if s.rules.Lives > 0 && s.lives > 0 {
			s.lives--
		}
		if !timedOut {
			s.openSnapWindowLocked()
		}
		if s.rules.Lives > 0 && s.lives == 0 {
			delay := s.rules.ReviveDelay
			if s.snapOpen {
				if left := s.snapUntil.Sub(s.sched.Now()); left > delay {
					delay = left
				}
			}
			s.armLocked(TimerRevive, delay, s.offerReviveLocked)
		}
	}

	s.answers = append(s.answers, AnswerRecord{
		QuestionID: q.ID,
		Selected:   optionID,
		Outcome:    s.outcome,
		TimeUsed:   s.timeUsed,
	})
	answersTotal.WithLabelValues(string(s.mode), string(s.outcome)).Inc()
}

func (s *Session) openSnapWindowLocked() {
	s.snapOpen = true
	s.snapUntil = s.sched.Now().Add(s.rules.SnapWindow)
	s.armLocked(TimerSnap, s.rules.SnapWindow, s.closeSnapWindowLocked)
}

func (s *Session) closeSnapWindowLocked() {
	s.snapOpen = false
	s.snapUntil = time.Time{}
}

// Undo takes back the last incorrect answer while the snap window is open. It restores the
// life lost and returns the question to Answering; streak stays as it is. An armed snap pays
// for it, otherwise snap is bought through the ledger and a refused debit changes nothing.
// It reports false when there is nothing to undo.
func (s *Session) Undo(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseAnswered || !s.snapOpen || !s.sched.Now().Before(s.snapUntil) {
		return false, nil
	}
	if s.effects[domain.PowerUpSnap] {
		delete(s.effects, domain.PowerUpSnap)
	} else if _, err := s.ledger.UsePowerUp(ctx, s.userID, domain.PowerUpSnap); err != nil {
		powerUpsTotal.WithLabelValues(string(domain.PowerUpSnap), "refused").Inc()
		return false, err
	}
	powerUpsTotal.WithLabelValues(string(domain.PowerUpSnap), "applied").Inc()
	s.disarmLocked(TimerSnap)
	s.disarmLocked(TimerRevive)
	s.closeSnapWindowLocked()

	s.lives = s.livesSaved
	s.selected = ""
	s.outcome = ""
	s.explanation = ""
	s.answers = s.answers[:len(s.answers)-1]
	s.phase = PhaseAnswering
	s.answerSeq++
	s.broadcastLocked()
	return true, nil
}

func (s *Session) offerReviveLocked() {
	if s.phase != PhaseAnswered || s.lives > 0 {
		return
	}
	s.closeSnapWindowLocked()
	s.disarmLocked(TimerSnap)
	if s.cursor+1 >= len(s.questions) {
		s.completeLocked()
		return
	}
	s.phase = PhaseReviveOffer
}

// Next advances past an answered question, completing the session after the last one.
func (s *Session) Next(ctx context.Context) error {
	s.mu.Lock()
	err := s.nextLocked()
	report := s.takeReportLocked()
	s.mu.Unlock()
	if report {
		s.Report(ctx)
	}
	return err
}

func (s *Session) nextLocked() error {
	switch s.phase {
	case PhaseAnswered:
	case PhaseReviveOffer:
		return ErrRevivePending
	case PhaseCompleted, PhaseAbandoned:
		return ErrSessionCompleted
	default:
		return ErrNotAnswered
	}
	if s.rules.Lives > 0 && s.lives == 0 {
		return ErrRevivePending
	}
	s.disarmLocked(TimerSnap)
	s.closeSnapWindowLocked()
	s.phase = PhaseAdvancing
	if s.cursor+1 >= len(s.questions) {
		s.completeLocked()
	} else {
		s.enterQuestionLocked(s.cursor + 1)
	}
	s.broadcastLocked()
	return nil
}

// Revive buys one life through the ledger and moves to the next question.
func (s *Session) Revive(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseReviveOffer {
		return ErrReviveNotOffered
	}
	if _, err := s.ledger.Revive(ctx, s.userID); err != nil {
		return err
	}
	s.lives = 1
	s.enterQuestionLocked(s.cursor + 1)
	s.broadcastLocked()
	return nil
}

// DeclineRevive turns down the offer and completes the session.
func (s *Session) DeclineRevive(ctx context.Context) error {
	s.mu.Lock()
	if s.phase != PhaseReviveOffer {
		s.mu.Unlock()
		return ErrReviveNotOffered
	}
	s.completeLocked()
	s.broadcastLocked()
	report := s.takeReportLocked()
	s.mu.Unlock()
	if report {
		s.Report(ctx)
	}
	return nil
}

// Abandon stops every timer and closes subscriptions. Nothing is reported.
func (s *Session) Abandon() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseAbandoned {
		return
	}
	if s.phase != PhaseCompleted {
		s.phase = PhaseAbandoned
	}
	s.stopTimersLocked()
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}

// enterQuestionLocked resets per-question state and opens question i for answers.
func (s *Session) enterQuestionLocked(i int) {
	s.cursor = i
	s.token++
	s.answerSeq++
	s.selected = ""
	s.outcome = ""
	s.hint = ""
	s.explanation = ""
	s.revealed = ""
	s.aiInFlight = false
	s.hidden = make(map[string]bool)
	s.timeUsed = 0
	delete(s.effects, domain.PowerUpHint)
	delete(s.effects, domain.PowerUpFiftyFifty)
	delete(s.effects, domain.PowerUpXray)
	if s.effects[domain.PowerUpFreeze] {
		delete(s.effects, domain.PowerUpFreeze)
		s.disarmLocked(TimerFreeze)
	}
	if !s.rules.sessionScoped() {
		s.timeLeft = seconds(s.rules.QuestionTime)
	}
	s.phase = PhaseAnswering
}

func (s *Session) completeLocked() {
	if s.phase == PhaseCompleted {
		return
	}
	s.phase = PhaseCompleted
	s.stopTimersLocked()
	s.closeSnapWindowLocked()

	bonus := 0
	switch s.mode {
	case domain.ModeSurvival:
		bonus = s.score * 5
	case domain.ModeSpeedrun:
		if s.timeLeft > 0 {
			bonus = s.timeLeft * 2
		}
	}
	s.result = &domain.QuizResult{
		Score:          s.score,
		TotalQuestions: len(s.questions),
		Bonus:          bonus,
		Mode:           s.mode,
		Multiplier:     s.multiplier,
		BoostedCorrect: s.boostedCorrect,
		BestStreak:     s.bestStreak,
	}
	s.pendingReport = true
	sessionsCompleted.WithLabelValues(string(s.mode)).Inc()
}

func (s *Session) takeReportLocked() bool {
	report := s.pendingReport
	s.pendingReport = false
	return report
}

// Report sends the completed result to the ledger once. A failed report is kept on the
// session and may be retried by calling Report again.
func (s *Session) Report(ctx context.Context) (domain.QuizOutcome, error) {
	s.reportMu.Lock()
	defer s.reportMu.Unlock()

	s.mu.Lock()
	if s.quizOutcome != nil {
		out := *s.quizOutcome
		s.mu.Unlock()
		return out, nil
	}
	if s.result == nil {
		s.mu.Unlock()
		return domain.QuizOutcome{}, ErrNotCompleted
	}
	res := *s.result
	s.mu.Unlock()

	out, err := s.ledger.RecordQuizResult(ctx, s.userID, res)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		log.Printf("session %s: report failed: %v", s.id, err)
		s.reportErr = err
		s.broadcastLocked()
		return domain.QuizOutcome{}, err
	}
	s.reportErr = nil
	s.quizOutcome = &out
	s.broadcastLocked()
	return out, nil
}

// Outcome returns the ledger's answer once the session has been reported.
func (s *Session) Outcome() (domain.QuizOutcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quizOutcome == nil {
		return domain.QuizOutcome{}, false
	}
	return *s.quizOutcome, true
}

// Snapshot returns the current view of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Done reports whether the session reached a terminal phase.
func (s *Session) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase == PhaseCompleted || s.phase == PhaseAbandoned
}

// Subscribe returns a channel of snapshots, starting with the current one. Slow readers
// only ever see the latest snapshot. cancel must be called to release the subscription.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)

	s.mu.Lock()
	initial := s.snapshotLocked()
	if s.phase == PhaseAbandoned {
		s.mu.Unlock()
		ch <- initial
		close(ch)
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	ch <- initial

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcastLocked() {
	if len(s.subscribers) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// drop the oldest pending snapshot so a slow reader never blocks the session
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func (s *Session) requireAnsweringLocked() error {
	switch s.phase {
	case PhaseAnswering:
		return nil
	case PhaseAnswered:
		return ErrAnswerSelected
	case PhaseCompleted, PhaseAbandoned:
		return ErrSessionCompleted
	default:
		return ErrNotAnswering
	}
}

// armLocked starts a named timer whose callback runs fn under the session lock. A callback
// from a timer that was re-armed or cancelled in the meantime does nothing.
func (s *Session) armLocked(name TimerName, after time.Duration, fn func()) {
	s.timerGen[name]++
	gen := s.timerGen[name]
	s.sched.Start(name, after, func() {
		s.mu.Lock()
		if s.timerGen[name] != gen || s.phase == PhaseCompleted || s.phase == PhaseAbandoned {
			s.mu.Unlock()
			return
		}
		fn()
		s.broadcastLocked()
		report := s.takeReportLocked()
		s.mu.Unlock()
		if report {
			ctx, cancel := context.WithTimeout(context.Background(), s.reportTTL)
			defer cancel()
			s.Report(ctx)
		}
	})
}

func (s *Session) disarmLocked(name TimerName) {
	s.timerGen[name]++
	s.sched.Cancel(name)
}

func (s *Session) stopTimersLocked() {
	for _, name := range timerNames {
		s.timerGen[name]++
	}
	s.sched.Stop()
}

// armTickLocked keeps the question timer running for the life of the session. Suspension
// is decided per tick, the timer itself is never paused.
func (s *Session) armTickLocked() {
	s.armLocked(TimerQuestion, s.rules.TickInterval, func() {
		s.tickLocked()
		if s.phase != PhaseCompleted && s.phase != PhaseAbandoned {
			s.armTickLocked()
		}
	})
}
