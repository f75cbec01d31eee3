package engine

import "errors"

var (
	ErrNoQuestions    = errors.New("session has no questions")
	ErrAlreadyStarted = errors.New("session already started")
	ErrNotAnswering   = errors.New("question is not accepting answers")
	ErrAnswerSelected = errors.New("answer already selected")
	ErrNotAnswered    = errors.New("question not answered yet")
	ErrEffectActive   = errors.New("power-up already active")
	ErrModeRestricted = errors.New("power-up not available in this mode")
	// ErrEffectUnavailable refuses an effect that would change nothing, such as fiftyFifty
	// when fewer than two wrong options are visible.
	ErrEffectUnavailable = errors.New("power-up has no effect on this question")
	ErrReviveNotOffered  = errors.New("no revive offer pending")
	ErrRevivePending     = errors.New("revive offer pending")
	ErrSessionCompleted  = errors.New("session completed")
	ErrNotCompleted      = errors.New("session not completed")
)
