package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"exam-arena-service/internal/bank"
	"exam-arena-service/internal/domain"
	"exam-arena-service/internal/engine"
)

// SessionRepository abstracts where live quiz sessions are kept (in-memory, Redis, etc).
type SessionRepository interface {
	Put(session *engine.Session)
	Get(sessionID string) (*engine.Session, bool)
	// Delete removes a session and reports whether it was present.
	Delete(sessionID string) bool
}

// QuestionBank draws session batches and swap replacements.
type QuestionBank interface {
	Sample(ctx context.Context, filter domain.QuestionFilter, count int) (bank.Result, error)
	One(ctx context.Context, filter domain.QuestionFilter, exclude map[string]bool) (domain.Question, error)
}

const (
	DefaultQuestionLimit = 10
	MaxQuestionLimit     = 50
	defaultLinger        = 2 * time.Minute
)

var activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "quiz_sessions_active",
	Help: "Sessions held by the service",
})

// QuizService contains the quiz session use cases.
type QuizService struct {
	sessions     SessionRepository
	questions    QuestionBank
	ledger       engine.Ledger
	assist       engine.Assist
	newScheduler func() engine.Scheduler
	multiplier   float64
	linger       time.Duration
}

// Option configures a QuizService.
type Option func(*QuizService)

// WithScheduler sets the timer factory used for every new session.
func WithScheduler(factory func() engine.Scheduler) Option {
	return func(s *QuizService) { s.newScheduler = factory }
}

// WithMultiplier sets the event XP multiplier reported by completed sessions.
func WithMultiplier(m float64) Option {
	return func(s *QuizService) { s.multiplier = m }
}

// WithLinger sets how long a completed session stays readable.
func WithLinger(d time.Duration) Option {
	return func(s *QuizService) { s.linger = d }
}

func NewQuizService(store SessionRepository, questions QuestionBank, ledger engine.Ledger, assist engine.Assist, opts ...Option) *QuizService {
	s := &QuizService{
		sessions:     store,
		questions:    questions,
		ledger:       ledger,
		assist:       assist,
		newScheduler: func() engine.Scheduler { return engine.NewRealScheduler() },
		multiplier:   1,
		linger:       defaultLinger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartRequest describes a session to create.
type StartRequest struct {
	UserID   string
	Mode     domain.Mode
	Filter   domain.QuestionFilter
	Limit    int
	Language string
}

// StartResult is the created session and how its questions were found.
type StartResult struct {
	SessionID       string             `json:"sessionId"`
	Snapshot        engine.Snapshot    `json:"snapshot"`
	FallbackLevel   bank.FallbackLevel `json:"-"`
	FallbackMessage string             `json:"fallbackMessage,omitempty"`
}

// Start samples a batch and opens a session on it. ContentUnavailable creates nothing.
func (s *QuizService) Start(ctx context.Context, req StartRequest) (StartResult, error) {
	mode, err := domain.ParseMode(string(req.Mode))
	if err != nil {
		return StartResult{}, err
	}
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultQuestionLimit
	}
	if limit > MaxQuestionLimit {
		limit = MaxQuestionLimit
	}

	res, err := s.questions.Sample(ctx, req.Filter, limit)
	if err != nil {
		return StartResult{}, err
	}

	session, err := engine.New(engine.Config{
		ID:         uuid.NewString(),
		UserID:     req.UserID,
		Mode:       mode,
		Language:   req.Language,
		Filter:     req.Filter,
		Questions:  res.Questions,
		Multiplier: s.multiplier,
		Ledger:     s.ledger,
		Assist:     s.assist,
		Replacer:   s.questions,
		Scheduler:  s.newScheduler(),
	})
	if err != nil {
		return StartResult{}, fmt.Errorf("create session: %w", err)
	}
	if err := session.Start(); err != nil {
		return StartResult{}, err
	}
	s.sessions.Put(session)
	activeSessions.Inc()
	go s.watch(session)

	return StartResult{
		SessionID:       session.ID(),
		Snapshot:        session.Snapshot(),
		FallbackLevel:   res.Level,
		FallbackMessage: res.Message,
	}, nil
}

// Session returns the live session if it belongs to userID.
func (s *QuizService) Session(_ context.Context, userID, sessionID string) (*engine.Session, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok || session.UserID() != userID {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// Snapshot returns the current view of a session.
func (s *QuizService) Snapshot(ctx context.Context, userID, sessionID string) (engine.Snapshot, error) {
	session, err := s.Session(ctx, userID, sessionID)
	if err != nil {
		return engine.Snapshot{}, err
	}
	return session.Snapshot(), nil
}

// Answer submits an option for the current question.
func (s *QuizService) Answer(ctx context.Context, userID, sessionID, optionID string) (engine.Snapshot, error) {
	return s.apply(ctx, userID, sessionID, func(session *engine.Session) error {
		return session.Select(ctx, optionID)
	})
}

// Undo takes back the last incorrect answer; ok is false when there was nothing to undo.
func (s *QuizService) Undo(ctx context.Context, userID, sessionID string) (engine.Snapshot, bool, error) {
	var ok bool
	snap, err := s.apply(ctx, userID, sessionID, func(session *engine.Session) error {
		var err error
		ok, err = session.Undo(ctx)
		return err
	})
	return snap, ok, err
}

// Activate buys and applies a power-up.
func (s *QuizService) Activate(ctx context.Context, userID, sessionID string, effect domain.PowerUp) (engine.Snapshot, error) {
	return s.apply(ctx, userID, sessionID, func(session *engine.Session) error {
		return session.Activate(ctx, effect)
	})
}

// Next advances to the following question or completes the session.
func (s *QuizService) Next(ctx context.Context, userID, sessionID string) (engine.Snapshot, error) {
	return s.apply(ctx, userID, sessionID, func(session *engine.Session) error {
		return session.Next(ctx)
	})
}

// Explain returns an explanation for the answered question.
func (s *QuizService) Explain(ctx context.Context, userID, sessionID string) (string, error) {
	session, err := s.Session(ctx, userID, sessionID)
	if err != nil {
		return "", err
	}
	return session.RequestExplanation(ctx)
}

// Revive buys a life after survival lives run out.
func (s *QuizService) Revive(ctx context.Context, userID, sessionID string) (engine.Snapshot, error) {
	return s.apply(ctx, userID, sessionID, func(session *engine.Session) error {
		return session.Revive(ctx)
	})
}

// DeclineRevive ends a survival session at its revive offer.
func (s *QuizService) DeclineRevive(ctx context.Context, userID, sessionID string) (engine.Snapshot, error) {
	return s.apply(ctx, userID, sessionID, func(session *engine.Session) error {
		return session.DeclineRevive(ctx)
	})
}

// Report retries the completion report of a finished session.
func (s *QuizService) Report(ctx context.Context, userID, sessionID string) (domain.QuizOutcome, error) {
	session, err := s.Session(ctx, userID, sessionID)
	if err != nil {
		return domain.QuizOutcome{}, err
	}
	return session.Report(ctx)
}

// Subscribe returns a channel of session snapshots.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *QuizService) Subscribe(ctx context.Context, userID, sessionID string) (<-chan engine.Snapshot, func(), error) {
	session, err := s.Session(ctx, userID, sessionID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := session.Subscribe()
	return ch, cancel, nil
}

// Abandon stops a session and drops it without reporting.
func (s *QuizService) Abandon(ctx context.Context, userID, sessionID string) error {
	session, err := s.Session(ctx, userID, sessionID)
	if err != nil {
		return err
	}
	session.Abandon()
	s.drop(sessionID)
	return nil
}

func (s *QuizService) apply(ctx context.Context, userID, sessionID string, fn func(*engine.Session) error) (engine.Snapshot, error) {
	session, err := s.Session(ctx, userID, sessionID)
	if err != nil {
		return engine.Snapshot{}, err
	}
	if err := fn(session); err != nil {
		return session.Snapshot(), err
	}
	return session.Snapshot(), nil
}

// watch drops a session once it is abandoned, or reported and left readable for the linger period.
func (s *QuizService) watch(session *engine.Session) {
	ch, cancel := session.Subscribe()
	defer cancel()
	for snap := range ch {
		switch {
		case snap.Phase == engine.PhaseAbandoned:
			s.drop(session.ID())
			return
		case snap.Phase == engine.PhaseCompleted && snap.QuizOutcome != nil:
			time.AfterFunc(s.linger, func() { s.drop(session.ID()) })
			return
		}
	}
	s.drop(session.ID())
}

func (s *QuizService) drop(sessionID string) {
	if s.sessions.Delete(sessionID) {
		activeSessions.Dec()
	}
}
