package server

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
)

// TimerClass distinguishes the three timers a table can have armed.
type TimerClass string

const (
	TimerAction   TimerClass = "action"
	TimerNextHand TimerClass = "next_hand"
	TimerAbandon  TimerClass = "abandon"
)

type timerKey struct {
	tableID string
	class   TimerClass
}

// TimerFabric schedules per-table timers on an injectable clock. At most one
// timer per (table, class) is armed; scheduling replaces any prior one.
// Callbacks run on their own goroutine and must re-validate state under the
// table's action lock before acting.
type TimerFabric struct {
	clock  quartz.Clock
	logger *log.Logger

	mu     sync.Mutex
	timers map[timerKey]*quartz.Timer
}

// NewTimerFabric creates an empty fabric on the given clock.
func NewTimerFabric(clock quartz.Clock, logger *log.Logger) *TimerFabric {
	return &TimerFabric{
		clock:  clock,
		logger: logger.WithPrefix("timers"),
		timers: make(map[timerKey]*quartz.Timer),
	}
}

// Schedule arms (or re-arms) the timer for (tableID, class).
func (f *TimerFabric) Schedule(tableID string, class TimerClass, d time.Duration, fn func()) {
	key := timerKey{tableID: tableID, class: class}

	f.mu.Lock()
	defer f.mu.Unlock()

	if prior, ok := f.timers[key]; ok {
		prior.Stop()
	}
	f.timers[key] = f.clock.AfterFunc(d, func() {
		f.mu.Lock()
		delete(f.timers, key)
		f.mu.Unlock()
		fn()
	}, string(class))
}

// Cancel stops the timer for (tableID, class) if armed.
func (f *TimerFabric) Cancel(tableID string, class TimerClass) {
	key := timerKey{tableID: tableID, class: class}
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.timers[key]; ok {
		t.Stop()
		delete(f.timers, key)
	}
}

// CancelAll stops every timer for a table.
func (f *TimerFabric) CancelAll(tableID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, t := range f.timers {
		if key.tableID == tableID {
			t.Stop()
			delete(f.timers, key)
		}
	}
}

// Pending reports whether a timer is armed for (tableID, class).
func (f *TimerFabric) Pending(tableID string, class TimerClass) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.timers[timerKey{tableID: tableID, class: class}]
	return ok
}
