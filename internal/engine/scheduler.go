package engine

import (
	"sort"
	"sync"
	"time"
)

// TimerName identifies one of a session's cancellable timers.
type TimerName string

const (
	TimerQuestion TimerName = "questionTimer"
	TimerSnap     TimerName = "snapWindow"
	TimerFreeze   TimerName = "freezeEffect"
	TimerRevive   TimerName = "reviveOffer"
)

var timerNames = []TimerName{TimerQuestion, TimerSnap, TimerFreeze, TimerRevive}

// Scheduler owns a session's named timers. Starting a name that is already armed replaces it.
// Callbacks may still run after Cancel if they already fired; sessions guard against that.
type Scheduler interface {
	Start(name TimerName, after time.Duration, fn func())
	Cancel(name TimerName)
	Stop()
	Now() time.Time
}

// RealScheduler runs timers on the wall clock.
type RealScheduler struct {
	mu     sync.Mutex
	timers map[TimerName]*time.Timer
}

func NewRealScheduler() *RealScheduler {
	return &RealScheduler{timers: make(map[TimerName]*time.Timer)}
}

func (s *RealScheduler) Start(name TimerName, after time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[name]; ok {
		t.Stop()
	}
	s.timers[name] = time.AfterFunc(after, fn)
}

func (s *RealScheduler) Cancel(name TimerName) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[name]; ok {
		t.Stop()
		delete(s.timers, name)
	}
}

func (s *RealScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, t := range s.timers {
		t.Stop()
		delete(s.timers, name)
	}
}

func (s *RealScheduler) Now() time.Time { return time.Now() }

// ManualScheduler is a virtual clock for tests. Timers fire only inside Advance, on the
// calling goroutine, in due order.
type ManualScheduler struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers map[TimerName]manualTimer
}

type manualTimer struct {
	due time.Time
	seq int
	fn  func()
}

func NewManualScheduler(start time.Time) *ManualScheduler {
	return &ManualScheduler{now: start, timers: make(map[TimerName]manualTimer)}
}

func (s *ManualScheduler) Start(name TimerName, after time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.timers[name] = manualTimer{due: s.now.Add(after), seq: s.seq, fn: fn}
}

func (s *ManualScheduler) Cancel(name TimerName) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.timers, name)
}

func (s *ManualScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timers = make(map[TimerName]manualTimer)
}

func (s *ManualScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Armed reports whether name is pending.
func (s *ManualScheduler) Armed(name TimerName) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[name]
	return ok
}

// Advance moves the clock forward by d, firing every timer that comes due on the way,
// including timers started by callbacks.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now.Add(d)
	s.mu.Unlock()

	for {
		s.mu.Lock()
		name, next, ok := s.nextDueLocked(target)
		if !ok {
			s.now = target
			s.mu.Unlock()
			return
		}
		delete(s.timers, name)
		s.now = next.due
		s.mu.Unlock()

		next.fn()
	}
}

func (s *ManualScheduler) nextDueLocked(target time.Time) (TimerName, manualTimer, bool) {
	names := make([]TimerName, 0, len(s.timers))
	for name, t := range s.timers {
		if !t.due.After(target) {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return "", manualTimer{}, false
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := s.timers[names[i]], s.timers[names[j]]
		if !a.due.Equal(b.due) {
			return a.due.Before(b.due)
		}
		return a.seq < b.seq
	})
	return names[0], s.timers[names[0]], true
}
