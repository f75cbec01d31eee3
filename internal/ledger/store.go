package ledger

import (
	"context"
	"time"

	"exam-arena-service/internal/domain"
)

// Store persists progression records. Update is an atomic read-modify-write keyed by user id:
// fn sees the current record (a fresh one for unknown users) and nothing is written when it
// returns an error. Implementations may call fn more than once on contention.
type Store interface {
	Get(ctx context.Context, userID string) (domain.ProgressionRecord, error)
	Update(ctx context.Context, userID string, fn func(*domain.ProgressionRecord) error) (domain.ProgressionRecord, error)
}

// Direction of a journal entry relative to the user's account.
type Direction int

const (
	Debit Direction = iota + 1
	Credit
)

func (d Direction) String() string {
	if d == Debit {
		return "debit"
	}
	return "credit"
}

// Entry is one XP movement. ID is stable across store retries so journals can dedupe.
type Entry struct {
	ID        string
	UserID    string
	Direction Direction
	Amount    int64
	Reason    string
	At        time.Time
}

// Journal records XP movements in a double-entry system. Post must reject a debit the
// user's journal balance cannot cover with domain.ErrInsufficientXP and treat a repeated
// entry ID as already posted.
type Journal interface {
	Post(ctx context.Context, e Entry) error
}

// Publisher emits domain events. Failures are logged and never fail the operation.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// Routing keys for published events.
const (
	EventDebited       = "ledger.debited"
	EventCredited      = "ledger.credited"
	EventQuizCompleted = "quiz.completed"
)

// Event is the payload of ledger.* events.
type Event struct {
	UserID  string    `json:"userId"`
	Amount  int64     `json:"amount"`
	Reason  string    `json:"reason"`
	Balance int64     `json:"balance"`
	At      time.Time `json:"at"`
}

// QuizCompletedEvent is the payload of quiz.completed.
type QuizCompletedEvent struct {
	UserID    string            `json:"userId"`
	Result    domain.QuizResult `json:"result"`
	XPGained  int64             `json:"xpGained"`
	NewBadges []string          `json:"newBadges"`
	At        time.Time         `json:"at"`
}

type nopJournal struct{}

func (nopJournal) Post(context.Context, Entry) error { return nil }

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, any) error { return nil }
