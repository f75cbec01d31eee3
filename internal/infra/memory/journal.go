package memory

import (
	"context"
	"sync"

	"exam-arena-service/internal/domain"
	"exam-arena-service/internal/ledger"
)

// Journal is an in-memory ledger.Journal keeping a balance per user.
type Journal struct {
	mu       sync.Mutex
	posted   map[string]bool
	balances map[string]int64
	entries  []ledger.Entry
}

func NewJournal() *Journal {
	return &Journal{
		posted:   make(map[string]bool),
		balances: make(map[string]int64),
	}
}

func (j *Journal) Post(_ context.Context, e ledger.Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.posted[e.ID] {
		return nil
	}
	switch e.Direction {
	case ledger.Debit:
		if j.balances[e.UserID] < e.Amount {
			return domain.ErrInsufficientXP
		}
		j.balances[e.UserID] -= e.Amount
	case ledger.Credit:
		j.balances[e.UserID] += e.Amount
	}
	j.posted[e.ID] = true
	j.entries = append(j.entries, e)
	return nil
}

// Balance returns the journal's view of a user's XP.
func (j *Journal) Balance(userID string) int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.balances[userID]
}

// Entries returns every posted entry for userID in posting order.
func (j *Journal) Entries(userID string) []ledger.Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []ledger.Entry
	for _, e := range j.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}
