package tigerbeetle

import (
	"context"
	"errors"
	"sync"
	"testing"

	tbtypes "github.com/tigerbeetle/tigerbeetle-go/pkg/types"

	"exam-arena-service/internal/domain"
	"exam-arena-service/internal/ledger"
)

// fakeCluster models the account and transfer rules the journal relies on.
type fakeCluster struct {
	mu        sync.Mutex
	accounts  map[tbtypes.Uint128]*tbtypes.Account
	transfers map[tbtypes.Uint128]bool
	creates   int
}

func newFakeCluster() *fakeCluster {
	return &fakeCluster{
		accounts:  make(map[tbtypes.Uint128]*tbtypes.Account),
		transfers: make(map[tbtypes.Uint128]bool),
	}
}

func (c *fakeCluster) CreateAccounts(accounts []tbtypes.Account) ([]tbtypes.AccountEventResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.creates++
	var results []tbtypes.AccountEventResult
	for i, a := range accounts {
		if _, ok := c.accounts[a.ID]; ok {
			results = append(results, tbtypes.AccountEventResult{Index: uint32(i), Result: tbtypes.AccountExists})
			continue
		}
		acct := a
		c.accounts[a.ID] = &acct
	}
	return results, nil
}

func (c *fakeCluster) CreateTransfers(transfers []tbtypes.Transfer) ([]tbtypes.TransferEventResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var results []tbtypes.TransferEventResult
	for i, tr := range transfers {
		if c.transfers[tr.ID] {
			results = append(results, tbtypes.TransferEventResult{Index: uint32(i), Result: tbtypes.TransferExists})
			continue
		}
		debit, credit := c.accounts[tr.DebitAccountID], c.accounts[tr.CreditAccountID]
		amount := toUint64(tr.Amount)
		flags := debit.AccountFlags()
		if flags.DebitsMustNotExceedCredits && toUint64(debit.DebitsPosted)+amount > toUint64(debit.CreditsPosted) {
			results = append(results, tbtypes.TransferEventResult{Index: uint32(i), Result: tbtypes.TransferExceedsCredits})
			continue
		}
		debit.DebitsPosted = tbtypes.ToUint128(toUint64(debit.DebitsPosted) + amount)
		credit.CreditsPosted = tbtypes.ToUint128(toUint64(credit.CreditsPosted) + amount)
		c.transfers[tr.ID] = true
	}
	return results, nil
}

func (c *fakeCluster) LookupAccounts(ids []tbtypes.Uint128) ([]tbtypes.Account, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []tbtypes.Account
	for _, id := range ids {
		if a, ok := c.accounts[id]; ok {
			out = append(out, *a)
		}
	}
	return out, nil
}

func post(t *testing.T, j *Journal, id string, dir ledger.Direction, amount int64) error {
	t.Helper()
	return j.Post(context.Background(), ledger.Entry{ID: id, UserID: "u1", Direction: dir, Amount: amount})
}

func TestJournalCreditsAndDebits(t *testing.T) {
	j := NewJournal(newFakeCluster())

	if err := post(t, j, "e1", ledger.Credit, 100); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := post(t, j, "e2", ledger.Debit, 30); err != nil {
		t.Fatalf("debit: %v", err)
	}
	balance, err := j.Balance(context.Background(), "u1")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 70 {
		t.Fatalf("expected balance 70, got %d", balance)
	}
}

func TestJournalRejectsOverdraft(t *testing.T) {
	j := NewJournal(newFakeCluster())
	if err := post(t, j, "e1", ledger.Credit, 20); err != nil {
		t.Fatalf("credit: %v", err)
	}
	err := post(t, j, "e2", ledger.Debit, 21)
	if !errors.Is(err, domain.ErrInsufficientXP) {
		t.Fatalf("expected ErrInsufficientXP, got %v", err)
	}
}

func TestJournalRepeatedEntryIsIdempotent(t *testing.T) {
	cluster := newFakeCluster()
	j := NewJournal(cluster)
	for i := 0; i < 3; i++ {
		if err := post(t, j, "same", ledger.Credit, 50); err != nil {
			t.Fatalf("post %d: %v", i, err)
		}
	}
	balance, _ := j.Balance(context.Background(), "u1")
	if balance != 50 {
		t.Fatalf("expected one credit of 50, got %d", balance)
	}
	if cluster.creates != 1 {
		t.Fatalf("expected accounts to be opened once, got %d", cluster.creates)
	}
}

func TestID128IsStableAndDistinct(t *testing.T) {
	if ID128("a") != ID128("a") {
		t.Fatalf("expected stable ids")
	}
	if UserAccountID("u1") == UserAccountID("u2") || UserAccountID("u1") == HouseAccountID() {
		t.Fatalf("expected distinct account ids")
	}
}
