package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"exam-arena-service/internal/domain"
	"exam-arena-service/internal/ledger"
)

var epoch = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func TestStandardTimerResetsEveryQuestion(t *testing.T) {
	h := newHarness(t, domain.ModeStandard, 3)

	h.sched.Advance(5 * time.Second)
	if got := h.session.Snapshot().TimeLeft; got != 25 {
		t.Fatalf("expected 25s left, got %d", got)
	}
	h.mustSelect("A")
	h.sched.Advance(5 * time.Second)
	if got := h.session.Snapshot().TimeLeft; got != 25 {
		t.Fatalf("timer must not run once answered, got %d", got)
	}
	h.mustNext()
	if got := h.session.Snapshot().TimeLeft; got != 30 {
		t.Fatalf("expected reset to 30s, got %d", got)
	}
}

func TestTimeoutIsScoredAsMiss(t *testing.T) {
	h := newHarness(t, domain.ModeStandard, 3)
	h.mustSelect("A")
	h.mustNext()

	h.sched.Advance(30 * time.Second)
	snap := h.session.Snapshot()
	if snap.Phase != PhaseAnswered || snap.Outcome != OutcomeTimeout {
		t.Fatalf("expected timeout miss, got phase %s outcome %s", snap.Phase, snap.Outcome)
	}
	if snap.Score != 1 || snap.Streak != 0 {
		t.Fatalf("expected score 1 streak 0, got %d/%d", snap.Score, snap.Streak)
	}
	if snap.SnapWindowOpenUntil != nil {
		t.Fatalf("timeouts never open an undo window")
	}
}

func TestShieldAbsorbsExactlyOneMiss(t *testing.T) {
	h := newHarness(t, domain.ModeSurvival, 5)
	h.mustSelect("A")
	h.mustNext()

	h.mustActivate(domain.PowerUpShield)
	h.mustSelect("B")
	snap := h.session.Snapshot()
	if snap.Lives != 3 || snap.Streak != 1 {
		t.Fatalf("shielded miss must keep lives and streak, got lives=%d streak=%d", snap.Lives, snap.Streak)
	}
	if snap.Outcome != OutcomeShielded || hasEffect(snap, domain.PowerUpShield) {
		t.Fatalf("expected shield consumed, got outcome %s effects %v", snap.Outcome, snap.ActiveEffects)
	}
	if snap.Score != 1 {
		t.Fatalf("shielded miss is not counted correct, score=%d", snap.Score)
	}

	h.mustNext()
	h.mustSelect("C")
	snap = h.session.Snapshot()
	if snap.Lives != 2 || snap.Streak != 0 {
		t.Fatalf("second miss must cost a life, got lives=%d streak=%d", snap.Lives, snap.Streak)
	}
}

func TestUndoWithinWindowRestoresLife(t *testing.T) {
	h := newHarness(t, domain.ModeSurvival, 5)
	h.mustSelect("B")

	snap := h.session.Snapshot()
	if snap.Lives != 2 || snap.SnapWindowOpenUntil == nil {
		t.Fatalf("expected life lost and window open, got %+v", snap)
	}
	if !snap.SnapWindowOpenUntil.Equal(epoch.Add(4 * time.Second)) {
		t.Fatalf("window should close 4s after answering, got %v", snap.SnapWindowOpenUntil)
	}

	h.sched.Advance(3 * time.Second)
	if !h.mustUndo() {
		t.Fatalf("undo inside the window must succeed")
	}
	snap = h.session.Snapshot()
	if snap.Phase != PhaseAnswering || snap.Selected != "" || snap.Lives != 3 {
		t.Fatalf("expected same question answering with 3 lives, got phase=%s selected=%q lives=%d", snap.Phase, snap.Selected, snap.Lives)
	}
	if snap.Cursor != 0 || len(snap.Answers) != 0 {
		t.Fatalf("undo must return to the same question, got cursor %d answers %d", snap.Cursor, len(snap.Answers))
	}
	if got := h.ledger.charges(); len(got) != 1 || got[0] != domain.PowerUpSnap {
		t.Fatalf("undo must be charged as snap, got %v", got)
	}
	if h.mustUndo() {
		t.Fatalf("second undo must be a no-op")
	}

	// every incorrect answer gets its own window
	h.mustSelect("C")
	if !h.mustUndo() {
		t.Fatalf("undo of the second miss must succeed")
	}
	if got := h.session.Snapshot().Lives; got != 3 {
		t.Fatalf("expected 3 lives, got %d", got)
	}
}

func TestArmedSnapPaysForUndo(t *testing.T) {
	h := newHarness(t, domain.ModeSurvival, 5)
	h.mustActivate(domain.PowerUpSnap)
	h.mustSelect("B")

	if !h.mustUndo() {
		t.Fatalf("undo failed")
	}
	snap := h.session.Snapshot()
	if hasEffect(snap, domain.PowerUpSnap) {
		t.Fatalf("armed snap must be consumed by the undo")
	}
	if got := h.ledger.charges(); len(got) != 1 {
		t.Fatalf("an armed snap must not be charged twice, got %v", got)
	}
}

func TestUndoRefusedDebitChangesNothing(t *testing.T) {
	h := newHarness(t, domain.ModeSurvival, 5)
	h.ledger.xp = 0
	h.mustSelect("B")
	before := h.session.Snapshot()

	ok, err := h.session.Undo(context.Background())
	if ok || !errors.Is(err, domain.ErrInsufficientXP) {
		t.Fatalf("expected insufficient xp, got ok=%v err=%v", ok, err)
	}
	snap := h.session.Snapshot()
	if snap.Phase != PhaseAnswered || snap.Lives != before.Lives || len(snap.Answers) != 1 || snap.SnapWindowOpenUntil == nil {
		t.Fatalf("refused undo must leave the session as it was, got %+v", snap)
	}

	h.ledger.mu.Lock()
	h.ledger.xp = 100
	h.ledger.mu.Unlock()
	if !h.mustUndo() {
		t.Fatalf("undo must still be possible inside the window")
	}
}

func TestUndoAfterWindowIsNoop(t *testing.T) {
	h := newHarness(t, domain.ModeSurvival, 5)
	h.mustSelect("B")

	h.sched.Advance(4 * time.Second)
	if h.mustUndo() {
		t.Fatalf("undo after the window must be a no-op")
	}
	snap := h.session.Snapshot()
	if snap.Lives != 2 || snap.Phase != PhaseAnswered || snap.SnapWindowOpenUntil != nil {
		t.Fatalf("state must be unchanged after a late undo, got %+v", snap)
	}
	if got := h.ledger.charges(); len(got) != 0 {
		t.Fatalf("a late undo costs nothing, got %v", got)
	}
}

func TestUndoAfterTimeoutIsNoop(t *testing.T) {
	h := newHarness(t, domain.ModeSurvival, 5)
	h.mustActivate(domain.PowerUpSnap)

	h.sched.Advance(20 * time.Second)
	snap := h.session.Snapshot()
	if snap.Outcome != OutcomeTimeout || snap.Lives != 2 || snap.SnapWindowOpenUntil != nil {
		t.Fatalf("expected timeout costing a life with no window, got %+v", snap)
	}
	if h.mustUndo() {
		t.Fatalf("a timeout cannot be undone")
	}
	snap = h.session.Snapshot()
	if snap.Lives != 2 || snap.Phase != PhaseAnswered || !hasEffect(snap, domain.PowerUpSnap) {
		t.Fatalf("undo after a timeout must change nothing, got %+v", snap)
	}
}

func TestUndoLeavesStreakAsIs(t *testing.T) {
	h := newHarness(t, domain.ModeStandard, 5)
	h.mustSelect("A")
	h.mustNext()
	h.mustSelect("A")
	h.mustNext()

	h.mustSelect("D")
	if got := h.session.Snapshot().Streak; got != 0 {
		t.Fatalf("miss resets streak, got %d", got)
	}
	if !h.mustUndo() {
		t.Fatalf("undo failed")
	}
	snap := h.session.Snapshot()
	if snap.Streak != 0 || snap.BestStreak != 2 {
		t.Fatalf("undo must not touch streak, got streak=%d best=%d", snap.Streak, snap.BestStreak)
	}
	h.mustSelect("A")
	if got := h.session.Snapshot().Streak; got != 1 {
		t.Fatalf("expected streak 1 after re-answer, got %d", got)
	}
}

func TestUndoKeepsHintInFlight(t *testing.T) {
	h := newHarness(t, domain.ModeSurvival, 3)
	h.assist.block = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- h.session.Activate(context.Background(), domain.PowerUpHint) }()
	<-h.assist.started

	h.mustSelect("B")
	if !h.mustUndo() {
		t.Fatalf("undo failed")
	}
	close(h.assist.block)
	if err := <-done; err != nil {
		t.Fatalf("activate hint: %v", err)
	}

	snap := h.session.Snapshot()
	if snap.Hint != "hint for q0" || snap.AIInFlight {
		t.Fatalf("hint for the same question must land after undo, got hint=%q inflight=%v", snap.Hint, snap.AIInFlight)
	}
	h.sched.Advance(10 * time.Second)
	if got := h.session.Snapshot().TimeLeft; got != 10 {
		t.Fatalf("question clock must run again, got %d", got)
	}
}

func TestUndoDropsExplanationOfUndoneAnswer(t *testing.T) {
	h := newHarness(t, domain.ModeStandard, 3)
	h.mustSelect("B")
	h.assist.block = make(chan struct{})

	done := make(chan string, 1)
	go func() {
		text, _ := h.session.RequestExplanation(context.Background())
		done <- text
	}()
	<-h.assist.started
	if !h.mustUndo() {
		t.Fatalf("undo failed")
	}
	close(h.assist.block)
	<-done

	if got := h.session.Snapshot().Explanation; got != "" {
		t.Fatalf("explanation of the undone answer must be dropped, got %q", got)
	}
}

func TestShieldTakesPrecedenceOverSnap(t *testing.T) {
	h := newHarness(t, domain.ModeSurvival, 5)
	h.mustActivate(domain.PowerUpShield)
	h.mustActivate(domain.PowerUpSnap)
	h.mustSelect("B")

	snap := h.session.Snapshot()
	if snap.SnapWindowOpenUntil != nil || !hasEffect(snap, domain.PowerUpSnap) {
		t.Fatalf("shielded miss must leave snap armed, got %+v", snap.ActiveEffects)
	}
	if h.mustUndo() {
		t.Fatalf("nothing to undo after a shielded miss")
	}
}

func TestSpeedrunTimerIsSessionScoped(t *testing.T) {
	h := newHarness(t, domain.ModeSpeedrun, 10)

	for i := 0; i < 8; i++ {
		h.sched.Advance(7 * time.Second)
		h.mustSelect("A")
		h.mustNext()
		if got, want := h.session.Snapshot().TimeLeft, 60-7*(i+1); got != want {
			t.Fatalf("question %d: expected %ds left, got %d", i, want, got)
		}
	}

	h.sched.Advance(4 * time.Second)
	snap := h.session.Snapshot()
	if snap.Phase != PhaseCompleted {
		t.Fatalf("expected completion when session time runs out, got %s", snap.Phase)
	}
	used := 0
	for _, a := range snap.Answers {
		used += a.TimeUsed
	}
	if used > 60 {
		t.Fatalf("time used %d exceeds the session budget", used)
	}
	if last := snap.Answers[len(snap.Answers)-1]; last.Outcome != OutcomeTimeout {
		t.Fatalf("expected final question scored as miss, got %s", last.Outcome)
	}

	reports := h.ledger.reported()
	if len(reports) != 1 {
		t.Fatalf("expected one report, got %d", len(reports))
	}
	if r := reports[0]; r.Score != 8 || r.Bonus != 0 || r.TotalQuestions != 10 || r.Mode != domain.ModeSpeedrun {
		t.Fatalf("unexpected report %+v", r)
	}
}

func TestSpeedrunBonusAndOvertime(t *testing.T) {
	h := newHarness(t, domain.ModeSpeedrun, 2)
	h.ledger.xp = 100

	h.sched.Advance(10 * time.Second)
	h.mustActivate(domain.PowerUpOvertime)
	if got := h.session.Snapshot().TimeLeft; got != 65 {
		t.Fatalf("expected overtime to add 15s, got %d", got)
	}
	h.mustSelect("A")
	h.mustNext()
	h.mustSelect("A")
	h.mustNext()

	reports := h.ledger.reported()
	if len(reports) != 1 || reports[0].Bonus != 130 {
		t.Fatalf("expected bonus 2x65=130, got %+v", reports)
	}
	out, ok := h.session.Outcome()
	if !ok || out.XPGained == 0 {
		t.Fatalf("expected stored outcome, got %+v %v", out, ok)
	}
}

func TestSurvivalReviveOffer(t *testing.T) {
	h := newHarness(t, domain.ModeSurvival, 6)
	h.ledger.xp = 100

	for i := 0; i < 3; i++ {
		h.mustSelect("B")
		if i < 2 {
			h.mustNext()
		}
	}
	snap := h.session.Snapshot()
	if snap.Lives != 0 || snap.Phase != PhaseAnswered {
		t.Fatalf("expected answered with 0 lives, got %s lives=%d", snap.Phase, snap.Lives)
	}
	if err := h.session.Next(context.Background()); !errors.Is(err, ErrRevivePending) {
		t.Fatalf("next must wait for the revive offer, got %v", err)
	}

	h.sched.Advance(2500 * time.Millisecond)
	if got := h.session.Snapshot().Phase; got != PhaseAnswered {
		t.Fatalf("offer must wait for the undo window, got %s", got)
	}
	h.sched.Advance(1500 * time.Millisecond)
	if got := h.session.Snapshot().Phase; got != PhaseReviveOffer {
		t.Fatalf("expected revive offer, got %s", got)
	}
	if err := h.session.Revive(context.Background()); err != nil {
		t.Fatalf("revive: %v", err)
	}
	snap = h.session.Snapshot()
	if snap.Phase != PhaseAnswering || snap.Lives != 1 || snap.Cursor != 3 {
		t.Fatalf("expected next question with 1 life, got %s lives=%d cursor=%d", snap.Phase, snap.Lives, snap.Cursor)
	}
	if h.ledger.xp != 100-ledger.RevivePrice {
		t.Fatalf("expected revive debit, xp=%d", h.ledger.xp)
	}
}

func TestReviveOfferWaitsForSnapWindow(t *testing.T) {
	h := newHarness(t, domain.ModeSurvival, 6)
	h.mustSelect("B")
	h.mustNext()
	h.mustSelect("B")
	h.mustNext()
	h.mustActivate(domain.PowerUpSnap)
	h.mustSelect("B")

	h.sched.Advance(3 * time.Second)
	if got := h.session.Snapshot().Phase; got != PhaseAnswered {
		t.Fatalf("offer must not open while undo is possible, got %s", got)
	}
	if !h.mustUndo() {
		t.Fatalf("undo failed")
	}
	h.sched.Advance(5 * time.Second)
	snap := h.session.Snapshot()
	if snap.Phase != PhaseAnswering || snap.Lives != 1 {
		t.Fatalf("undo must cancel the offer, got %s lives=%d", snap.Phase, snap.Lives)
	}
}

func TestDeclineReviveCompletes(t *testing.T) {
	h := newHarness(t, domain.ModeSurvival, 6)
	h.mustSelect("A")
	h.mustNext()
	for i := 0; i < 3; i++ {
		h.mustSelect("B")
		if i < 2 {
			h.mustNext()
		}
	}
	h.sched.Advance(4 * time.Second)
	if err := h.session.DeclineRevive(context.Background()); err != nil {
		t.Fatalf("decline: %v", err)
	}
	if got := h.session.Snapshot().Phase; got != PhaseCompleted {
		t.Fatalf("expected completed, got %s", got)
	}
	reports := h.ledger.reported()
	if len(reports) != 1 || reports[0].Bonus != 5 || reports[0].Score != 1 {
		t.Fatalf("expected survival bonus 5, got %+v", reports)
	}
}

func TestLivesExhaustedOnLastQuestionCompletes(t *testing.T) {
	h := newHarness(t, domain.ModeSurvival, 3)
	h.mustSelect("B")
	h.mustNext()
	h.mustSelect("B")
	h.mustNext()
	h.mustSelect("B")

	h.sched.Advance(4 * time.Second)
	if got := h.session.Snapshot().Phase; got != PhaseCompleted {
		t.Fatalf("expected completion without an offer, got %s", got)
	}
}

func TestReviveRejectedKeepsOffer(t *testing.T) {
	h := newHarness(t, domain.ModeSurvival, 6)
	h.ledger.xp = 0
	for i := 0; i < 3; i++ {
		h.mustSelect("B")
		if i < 2 {
			h.mustNext()
		}
	}
	h.sched.Advance(4 * time.Second)

	err := h.session.Revive(context.Background())
	if !errors.Is(err, domain.ErrInsufficientXP) {
		t.Fatalf("expected insufficient xp, got %v", err)
	}
	snap := h.session.Snapshot()
	if snap.Phase != PhaseReviveOffer || snap.Lives != 0 {
		t.Fatalf("rejected revive must not change state, got %s lives=%d", snap.Phase, snap.Lives)
	}
}

func TestActivationRefusals(t *testing.T) {
	h := newHarness(t, domain.ModeStandard, 3)
	h.ledger.xp = 60

	if err := h.session.Activate(context.Background(), domain.PowerUpOvertime); !errors.Is(err, ErrModeRestricted) {
		t.Fatalf("expected mode restriction, got %v", err)
	}
	h.mustActivate(domain.PowerUpShield)
	if err := h.session.Activate(context.Background(), domain.PowerUpShield); !errors.Is(err, ErrEffectActive) {
		t.Fatalf("expected effect active, got %v", err)
	}
	if err := h.session.Activate(context.Background(), domain.PowerUpXray); !errors.Is(err, domain.ErrInsufficientXP) {
		t.Fatalf("expected insufficient xp, got %v", err)
	}
	snap := h.session.Snapshot()
	if snap.RevealedOptionID != "" || hasEffect(snap, domain.PowerUpXray) {
		t.Fatalf("refused xray must not apply, got %+v", snap)
	}

	h.mustSelect("A")
	if err := h.session.Activate(context.Background(), domain.PowerUpHint); !errors.Is(err, ErrAnswerSelected) {
		t.Fatalf("expected answer selected, got %v", err)
	}
	if got := h.ledger.charges(); len(got) != 1 || got[0] != domain.PowerUpShield {
		t.Fatalf("only the shield should be charged, got %v", got)
	}
	if h.ledger.xp != 10 {
		t.Fatalf("expected 10 xp left, got %d", h.ledger.xp)
	}
}

func TestFreezeSuspendsTimer(t *testing.T) {
	h := newHarness(t, domain.ModeStandard, 3)
	h.mustActivate(domain.PowerUpFreeze)

	h.sched.Advance(9 * time.Second)
	if got := h.session.Snapshot().TimeLeft; got != 30 {
		t.Fatalf("frozen timer must not run, got %d", got)
	}
	h.sched.Advance(6 * time.Second)
	snap := h.session.Snapshot()
	if hasEffect(snap, domain.PowerUpFreeze) {
		t.Fatalf("freeze should have expired")
	}
	if snap.TimeLeft != 24 {
		t.Fatalf("expected timer to resume after 10s, got %d", snap.TimeLeft)
	}
}

func TestHintSuspendsTimerAndStaleResultIsDropped(t *testing.T) {
	h := newHarness(t, domain.ModeStandard, 3)
	h.assist.block = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- h.session.Activate(context.Background(), domain.PowerUpHint) }()
	<-h.assist.started

	h.sched.Advance(5 * time.Second)
	snap := h.session.Snapshot()
	if snap.TimeLeft != 30 || !snap.AIInFlight {
		t.Fatalf("timer must be suspended while the hint is in flight, got %d inflight=%v", snap.TimeLeft, snap.AIInFlight)
	}

	h.mustSelect("A")
	h.mustNext()
	close(h.assist.block)
	if err := <-done; err != nil {
		t.Fatalf("activate hint: %v", err)
	}

	snap = h.session.Snapshot()
	if snap.Hint != "" || snap.Cursor != 1 {
		t.Fatalf("hint for the previous question leaked into question %d: %q", snap.Cursor, snap.Hint)
	}
	h.sched.Advance(2 * time.Second)
	if got := h.session.Snapshot().TimeLeft; got != 28 {
		t.Fatalf("timer must run on the new question, got %d", got)
	}
}

func TestHintApplied(t *testing.T) {
	h := newHarness(t, domain.ModeStandard, 3)
	h.mustActivate(domain.PowerUpHint)
	snap := h.session.Snapshot()
	if snap.Hint != "hint for q0" || snap.AIInFlight || !hasEffect(snap, domain.PowerUpHint) {
		t.Fatalf("unexpected hint state %+v", snap)
	}
}

func TestFiftyFiftyAndXray(t *testing.T) {
	h := newHarness(t, domain.ModeStandard, 3)
	h.ledger.xp = 500

	h.mustActivate(domain.PowerUpFiftyFifty)
	snap := h.session.Snapshot()
	if len(snap.HiddenOptionIDs) != 2 {
		t.Fatalf("expected two hidden options, got %v", snap.HiddenOptionIDs)
	}
	for _, id := range snap.HiddenOptionIDs {
		if id == "A" {
			t.Fatalf("correct option must never be hidden")
		}
	}
	if err := h.session.Select(context.Background(), snap.HiddenOptionIDs[0]); !errors.Is(err, domain.ErrOptionNotFound) {
		t.Fatalf("hidden option must not be selectable, got %v", err)
	}
	if snap.CorrectOptionID != "" {
		t.Fatalf("snapshot leaked the answer while answering")
	}

	h.mustActivate(domain.PowerUpXray)
	if got := h.session.Snapshot().RevealedOptionID; got != "A" {
		t.Fatalf("expected xray to reveal A, got %q", got)
	}
}

func TestSwapReplacesQuestion(t *testing.T) {
	h := newHarness(t, domain.ModeStandard, 3)
	h.ledger.xp = 500
	h.mustActivate(domain.PowerUpFiftyFifty)
	h.mustActivate(domain.PowerUpSwap)

	snap := h.session.Snapshot()
	if snap.Question.ID != "swap-1" {
		t.Fatalf("expected swapped question, got %s", snap.Question.ID)
	}
	if len(snap.HiddenOptionIDs) != 0 || hasEffect(snap, domain.PowerUpFiftyFifty) {
		t.Fatalf("swap must clear state tied to the old question")
	}
	if len(h.replacer.excluded) != 3 {
		t.Fatalf("replacement must exclude session questions, got %v", h.replacer.excluded)
	}
	if snap.Cursor != 0 || snap.Total != 3 {
		t.Fatalf("swap replaces in place, got cursor %d total %d", snap.Cursor, snap.Total)
	}
}

func TestSwapFailureCostsNothing(t *testing.T) {
	h := newHarness(t, domain.ModeStandard, 3)
	h.ledger.xp = 500
	h.replacer.err = domain.ErrContentUnavailable

	if err := h.session.Activate(context.Background(), domain.PowerUpSwap); !errors.Is(err, domain.ErrContentUnavailable) {
		t.Fatalf("expected content unavailable, got %v", err)
	}
	if h.ledger.xp != 500 {
		t.Fatalf("failed swap must not be charged, xp=%d", h.ledger.xp)
	}
}

func TestAutopilotAnswersCorrectly(t *testing.T) {
	h := newHarness(t, domain.ModeSurvival, 3)
	h.ledger.xp = 200
	h.mustActivate(domain.PowerUpAutopilot)

	snap := h.session.Snapshot()
	if snap.Phase != PhaseAnswered || snap.Outcome != OutcomeCorrect || snap.Selected != "A" {
		t.Fatalf("autopilot must submit the correct option, got %+v", snap)
	}
	if snap.Score != 1 || snap.Streak != 1 {
		t.Fatalf("autopilot counts as correct, got score=%d streak=%d", snap.Score, snap.Streak)
	}
}

func TestBoostCountsThreeCorrectAnswers(t *testing.T) {
	h := newHarness(t, domain.ModeStandard, 5)
	h.mustActivate(domain.PowerUpBoost)

	for i := 0; i < 5; i++ {
		h.mustSelect("A")
		if i == 0 {
			if got := h.session.Snapshot().BoostRemaining; got != 2 {
				t.Fatalf("expected 2 boosted answers left, got %d", got)
			}
		}
		h.mustNext()
	}
	reports := h.ledger.reported()
	if len(reports) != 1 || reports[0].BoostedCorrect != 3 || reports[0].Score != 5 {
		t.Fatalf("expected 3 boosted of 5, got %+v", reports)
	}
	if reports[0].BestStreak != 5 {
		t.Fatalf("expected best streak 5, got %d", reports[0].BestStreak)
	}
}

func TestExplanationForStaleAnswerIsDropped(t *testing.T) {
	h := newHarness(t, domain.ModeStandard, 3)
	if _, err := h.session.RequestExplanation(context.Background()); !errors.Is(err, ErrNotAnswered) {
		t.Fatalf("explanation before answering must be refused, got %v", err)
	}
	h.mustSelect("B")
	h.assist.block = make(chan struct{})

	done := make(chan string, 1)
	go func() {
		text, _ := h.session.RequestExplanation(context.Background())
		done <- text
	}()
	<-h.assist.started
	h.mustNext()
	close(h.assist.block)

	if text := <-done; text != "explanation for q0" {
		t.Fatalf("caller still gets its text, got %q", text)
	}
	if got := h.session.Snapshot().Explanation; got != "" {
		t.Fatalf("stale explanation applied to the next question: %q", got)
	}
}

func TestReportRetriedAfterFailure(t *testing.T) {
	h := newHarness(t, domain.ModeStandard, 1)
	h.ledger.reportErr = &domain.LedgerError{Op: "quiz-result", Err: errors.New("store down")}

	h.mustSelect("A")
	h.mustNext()
	snap := h.session.Snapshot()
	if snap.Phase != PhaseCompleted || snap.ReportError == "" || snap.QuizOutcome != nil {
		t.Fatalf("expected completed with report error, got %+v", snap)
	}

	h.ledger.mu.Lock()
	h.ledger.reportErr = nil
	h.ledger.mu.Unlock()
	out, err := h.session.Report(context.Background())
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if out.XPGained != 10 {
		t.Fatalf("expected 10 xp, got %d", out.XPGained)
	}
	if _, err := h.session.Report(context.Background()); err != nil {
		t.Fatalf("repeat: %v", err)
	}
	if got := len(h.ledger.reported()); got != 2 {
		t.Fatalf("expected one failed and one successful call, got %d", got)
	}
}

func TestSubscribeAndAbandon(t *testing.T) {
	h := newHarness(t, domain.ModeStandard, 3)
	ch, cancel := h.session.Subscribe()
	defer cancel()

	initial := <-ch
	if initial.Phase != PhaseAnswering {
		t.Fatalf("expected initial answering snapshot, got %s", initial.Phase)
	}
	h.mustSelect("A")
	update := <-ch
	if update.Phase != PhaseAnswered || update.CorrectOptionID != "A" {
		t.Fatalf("expected answered snapshot with answer, got %+v", update)
	}

	h.session.Abandon()
	for range ch {
	}
	if !h.sched.isIdle() {
		t.Fatalf("abandon must cancel every timer")
	}
	if len(h.ledger.reported()) != 0 {
		t.Fatalf("abandoned sessions are never reported")
	}
}

func TestSurvivalNeverAnsweringWithoutLives(t *testing.T) {
	h := newHarness(t, domain.ModeSurvival, 8)
	for step := 0; step < 40; step++ {
		snap := h.session.Snapshot()
		if snap.Lives == 0 && snap.Phase == PhaseAnswering {
			t.Fatalf("answering with zero lives at step %d", step)
		}
		switch snap.Phase {
		case PhaseAnswering:
			h.sched.Advance(20 * time.Second)
		case PhaseAnswered:
			_ = h.session.Next(context.Background())
			h.sched.Advance(time.Second)
		case PhaseReviveOffer:
			_ = h.session.DeclineRevive(context.Background())
		case PhaseCompleted:
			return
		}
	}
	t.Fatalf("session never completed")
}

// harness

type harness struct {
	t        *testing.T
	session  *Session
	sched    *ManualScheduler
	ledger   *fakeLedger
	assist   *fakeAssist
	replacer *fakeReplacer
}

func newHarness(t *testing.T, mode domain.Mode, n int) *harness {
	t.Helper()
	h := &harness{
		t:        t,
		sched:    NewManualScheduler(epoch),
		ledger:   &fakeLedger{xp: 1000},
		assist:   &fakeAssist{started: make(chan struct{}, 1)},
		replacer: &fakeReplacer{},
	}
	s, err := New(Config{
		ID:        "s1",
		UserID:    "u1",
		Mode:      mode,
		Questions: makeQuestions(n),
		Ledger:    h.ledger,
		Assist:    h.assist,
		Replacer:  h.replacer,
		Scheduler: h.sched,
	})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	h.session = s
	return h
}

func (h *harness) mustSelect(option string) {
	h.t.Helper()
	if err := h.session.Select(context.Background(), option); err != nil {
		h.t.Fatalf("select %s: %v", option, err)
	}
}

func (h *harness) mustNext() {
	h.t.Helper()
	if err := h.session.Next(context.Background()); err != nil {
		h.t.Fatalf("next: %v", err)
	}
}

// mustUndo fails the test on an undo error and reports whether anything was undone.
func (h *harness) mustUndo() bool {
	h.t.Helper()
	ok, err := h.session.Undo(context.Background())
	if err != nil {
		h.t.Fatalf("undo: %v", err)
	}
	return ok
}

func (h *harness) mustActivate(p domain.PowerUp) {
	h.t.Helper()
	if err := h.session.Activate(context.Background(), p); err != nil {
		h.t.Fatalf("activate %s: %v", p, err)
	}
}

func (s *ManualScheduler) isIdle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers) == 0
}

func hasEffect(snap Snapshot, p domain.PowerUp) bool {
	for _, e := range snap.ActiveEffects {
		if e == p {
			return true
		}
	}
	return false
}

func makeQuestions(n int) []domain.Question {
	out := make([]domain.Question, n)
	for i := range out {
		out[i] = makeQuestion(fmt.Sprintf("q%d", i))
	}
	return out
}

func makeQuestion(id string) domain.Question {
	opts := make([]domain.Option, len(domain.OptionIDs))
	for i, oid := range domain.OptionIDs {
		opts[i] = domain.Option{ID: oid, Text: domain.LocalizedText{"en": "option " + oid}}
	}
	return domain.Question{
		ID:              id,
		ExamType:        "ssc",
		Subject:         "history",
		Difficulty:      domain.DifficultyEasy,
		Prompt:          domain.LocalizedText{"en": "prompt " + id},
		Options:         opts,
		CorrectOptionID: "A",
	}
}

type fakeLedger struct {
	mu        sync.Mutex
	xp        int64
	uses      []domain.PowerUp
	results   []domain.QuizResult
	reportErr error
}

func (l *fakeLedger) UsePowerUp(_ context.Context, userID string, p domain.PowerUp) (domain.User, error) {
	price, err := ledger.PriceOf(p)
	if err != nil {
		return domain.User{}, err
	}
	return l.debit(userID, price, func() { l.uses = append(l.uses, p) })
}

func (l *fakeLedger) Revive(_ context.Context, userID string) (domain.User, error) {
	return l.debit(userID, ledger.RevivePrice, func() {})
}

func (l *fakeLedger) debit(userID string, amount int64, record func()) (domain.User, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.xp < amount {
		return domain.User{}, &domain.LedgerError{Op: "debit", Err: domain.ErrInsufficientXP}
	}
	l.xp -= amount
	record()
	return domain.User{ID: userID, XP: l.xp}, nil
}

func (l *fakeLedger) RecordQuizResult(_ context.Context, userID string, res domain.QuizResult) (domain.QuizOutcome, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.results = append(l.results, res)
	if l.reportErr != nil {
		return domain.QuizOutcome{}, l.reportErr
	}
	gained := int64(res.Score*10 + res.Bonus)
	l.xp += gained
	return domain.QuizOutcome{XPGained: gained, NewBadges: []string{}, User: domain.User{ID: userID, XP: l.xp}}, nil
}

func (l *fakeLedger) reported() []domain.QuizResult {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.QuizResult(nil), l.results...)
}

func (l *fakeLedger) charges() []domain.PowerUp {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.PowerUp(nil), l.uses...)
}

type fakeAssist struct {
	block   chan struct{}
	started chan struct{}
}

func (a *fakeAssist) Hint(_ context.Context, q domain.Question, _ string) string {
	a.wait()
	return "hint for " + q.ID
}

func (a *fakeAssist) Explain(_ context.Context, q domain.Question, _, _ string) string {
	a.wait()
	return "explanation for " + q.ID
}

func (a *fakeAssist) wait() {
	select {
	case a.started <- struct{}{}:
	default:
	}
	if a.block != nil {
		<-a.block
	}
}

type fakeReplacer struct {
	err      error
	excluded map[string]bool
}

func (r *fakeReplacer) One(_ context.Context, _ domain.QuestionFilter, exclude map[string]bool) (domain.Question, error) {
	r.excluded = exclude
	if r.err != nil {
		return domain.Question{}, r.err
	}
	return makeQuestion("swap-1"), nil
}
