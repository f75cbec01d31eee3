package engine

import (
	"time"

	"exam-arena-service/internal/domain"
)

// Rules are the timing and life parameters of a mode.
type Rules struct {
	// QuestionTime resets on every question; zero when the mode uses SessionTime.
	QuestionTime time.Duration
	// SessionTime is one budget shared by all questions (speedrun).
	SessionTime time.Duration
	// Lives is zero for modes without lives.
	Lives          int
	SnapWindow     time.Duration
	ReviveDelay    time.Duration
	FreezeDuration time.Duration
	Overtime       time.Duration
	BoostUses      int
	TickInterval   time.Duration
}

// RulesFor returns the default rules of mode.
func RulesFor(mode domain.Mode) Rules {
	r := Rules{
		QuestionTime:   30 * time.Second,
		SnapWindow:     4 * time.Second,
		ReviveDelay:    2500 * time.Millisecond,
		FreezeDuration: 10 * time.Second,
		Overtime:       15 * time.Second,
		BoostUses:      3,
		TickInterval:   time.Second,
	}
	switch mode {
	case domain.ModeSurvival:
		r.QuestionTime = 20 * time.Second
		r.Lives = 3
	case domain.ModeSpeedrun:
		r.QuestionTime = 0
		r.SessionTime = 60 * time.Second
	}
	return r
}

func (r Rules) sessionScoped() bool { return r.SessionTime > 0 }

func seconds(d time.Duration) int { return int(d / time.Second) }
