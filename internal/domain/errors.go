package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned when a quiz session does not exist or was dropped.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrContentUnavailable means no question matched even after broadening to the whole bank.
	ErrContentUnavailable = errors.New("no questions available")
	// ErrQuestionNotFound indicates a submitted question ID is invalid.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrOptionNotFound indicates a submitted option ID is invalid.
	ErrOptionNotFound = errors.New("option not found")
	// ErrInsufficientXP is returned by a debit the balance cannot cover.
	ErrInsufficientXP = errors.New("insufficient xp")
	// ErrUnknownIsland is returned when buying an island that is not on the map.
	ErrUnknownIsland = errors.New("unknown island")
	// ErrSpinCooldown is returned when the daily spin was already used.
	ErrSpinCooldown = errors.New("spin already used today")
	// ErrInvalidAmount rejects negative ledger amounts.
	ErrInvalidAmount = errors.New("invalid amount")
)

// LedgerError reports a rejected ledger operation. The session that asked keeps its last good state.
type LedgerError struct {
	Op  string
	Err error
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("ledger %s rejected: %v", e.Op, e.Err)
}

func (e *LedgerError) Unwrap() error { return e.Err }
