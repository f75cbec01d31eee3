package tigerbeetle

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sync"

	tb "github.com/tigerbeetle/tigerbeetle-go"
	tbtypes "github.com/tigerbeetle/tigerbeetle-go/pkg/types"

	"exam-arena-service/internal/domain"
	"exam-arena-service/internal/ledger"
)

const (
	ledgerXP = 1

	codeDebit  = 1
	codeCredit = 2
	codeUser   = 10
	codeHouse  = 11

	houseAccountLabel = "acct:house"
	userAccountPrefix = "acct:user:"
	transferPrefix    = "xfer:"
)

// Client is the subset of the TigerBeetle client the journal uses.
type Client interface {
	CreateAccounts(accounts []tbtypes.Account) ([]tbtypes.AccountEventResult, error)
	CreateTransfers(transfers []tbtypes.Transfer) ([]tbtypes.TransferEventResult, error)
	LookupAccounts(ids []tbtypes.Uint128) ([]tbtypes.Account, error)
}

// Dial connects to a TigerBeetle cluster.
func Dial(clusterID uint64, addresses []string) (tb.Client, error) {
	client, err := tb.NewClient(tbtypes.ToUint128(clusterID), addresses)
	if err != nil {
		return nil, fmt.Errorf("create tigerbeetle client: %w", err)
	}
	return client, nil
}

// Journal posts XP movements as transfers between a user account and a house account.
// User accounts forbid debits beyond credits, so the cluster itself refuses overdrafts.
type Journal struct {
	client Client
	opened sync.Map
}

func NewJournal(client Client) *Journal {
	return &Journal{client: client}
}

func (j *Journal) Post(ctx context.Context, e ledger.Entry) error {
	if e.Amount <= 0 {
		return nil
	}
	if err := j.ensureAccounts(ctx, e.UserID); err != nil {
		return err
	}

	user, house := UserAccountID(e.UserID), HouseAccountID()
	transfer := tbtypes.Transfer{
		ID:     TransferID(e.ID),
		Amount: tbtypes.ToUint128(uint64(e.Amount)),
		Ledger: ledgerXP,
	}
	switch e.Direction {
	case ledger.Debit:
		transfer.DebitAccountID, transfer.CreditAccountID = user, house
		transfer.Code = codeDebit
	case ledger.Credit:
		transfer.DebitAccountID, transfer.CreditAccountID = house, user
		transfer.Code = codeCredit
	default:
		return fmt.Errorf("journal: unknown direction %d", e.Direction)
	}

	results, err := callWithContext(ctx, func() ([]tbtypes.TransferEventResult, error) {
		return j.client.CreateTransfers([]tbtypes.Transfer{transfer})
	})
	if err != nil {
		return fmt.Errorf("create transfer: %w", err)
	}
	for _, res := range results {
		switch res.Result {
		case tbtypes.TransferOK, tbtypes.TransferExists:
		case tbtypes.TransferExceedsCredits:
			return domain.ErrInsufficientXP
		default:
			return fmt.Errorf("create transfer: %s", res.Result)
		}
	}
	return nil
}

// Balance returns credits minus debits posted to the user's account.
func (j *Journal) Balance(ctx context.Context, userID string) (int64, error) {
	accounts, err := callWithContext(ctx, func() ([]tbtypes.Account, error) {
		return j.client.LookupAccounts([]tbtypes.Uint128{UserAccountID(userID)})
	})
	if err != nil {
		return 0, fmt.Errorf("lookup account: %w", err)
	}
	if len(accounts) == 0 {
		return 0, nil
	}
	a := accounts[0]
	return int64(toUint64(a.CreditsPosted)) - int64(toUint64(a.DebitsPosted)), nil
}

func (j *Journal) ensureAccounts(ctx context.Context, userID string) error {
	if _, ok := j.opened.Load(userID); ok {
		return nil
	}
	accounts := []tbtypes.Account{
		{ID: HouseAccountID(), Ledger: ledgerXP, Code: codeHouse},
		{
			ID:     UserAccountID(userID),
			Ledger: ledgerXP,
			Code:   codeUser,
			Flags:  tbtypes.AccountFlags{DebitsMustNotExceedCredits: true}.ToUint16(),
		},
	}
	results, err := callWithContext(ctx, func() ([]tbtypes.AccountEventResult, error) {
		return j.client.CreateAccounts(accounts)
	})
	if err != nil {
		return fmt.Errorf("create accounts: %w", err)
	}
	for _, res := range results {
		if res.Result == tbtypes.AccountOK || res.Result == tbtypes.AccountExists {
			continue
		}
		return fmt.Errorf("create account error: %s", res.Result)
	}
	j.opened.Store(userID, struct{}{})
	return nil
}

// HouseAccountID is the counterparty of every XP movement.
func HouseAccountID() tbtypes.Uint128 {
	return ID128(houseAccountLabel)
}

// UserAccountID returns the account holding a user's XP.
func UserAccountID(userID string) tbtypes.Uint128 {
	return ID128(userAccountPrefix + userID)
}

// TransferID maps a journal entry id to a transfer id.
func TransferID(entryID string) tbtypes.Uint128 {
	return ID128(transferPrefix + entryID)
}

// ID128 deterministically maps a string label to a TigerBeetle Uint128.
func ID128(label string) tbtypes.Uint128 {
	sum := sha256.Sum256([]byte(label))
	var raw [16]byte
	copy(raw[:], sum[:16])
	if isZero(raw) || isMax(raw) {
		raw[0] ^= 0x01
	}
	return tbtypes.BytesToUint128(raw)
}

func isZero(raw [16]byte) bool {
	for _, b := range raw {
		if b != 0 {
			return false
		}
	}
	return true
}

func isMax(raw [16]byte) bool {
	for _, b := range raw {
		if b != 0xFF {
			return false
		}
	}
	return true
}

func toUint64(value tbtypes.Uint128) uint64 {
	raw := value.Bytes()
	return binary.LittleEndian.Uint64(raw[:8])
}

func callWithContext[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		value T
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		value, err := fn()
		ch <- result{value: value, err: err}
	}()
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case res := <-ch:
		return res.value, res.err
	}
}
