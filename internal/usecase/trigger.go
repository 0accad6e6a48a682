package usecase

import (
	"sync"
	"time"

	"github.com/semmidev/strata/internal/domain"
)

// Trigger is the cycle state machine. It is Idle until a poll observes the
// trigger time reached on a calendar date with no cycle yet, then Fired
// until Complete is called.
type Trigger struct {
	at domain.TimeOfDay

	mu       sync.Mutex
	lastDate string
	fired    bool
}

func NewTrigger(at domain.TimeOfDay) *Trigger {
	return &Trigger{at: at}
}

// Poll reports whether a cycle should start now. A true result moves the
// trigger to Fired and records today's date; later polls on the same date
// return false even after Complete.
func (t *Trigger) Poll(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.fired || !t.at.Reached(now) {
		return false
	}

	date := now.Format(time.DateOnly)
	if date == t.lastDate {
		return false
	}

	t.lastDate = date
	t.fired = true
	return true
}

// Complete returns the trigger to Idle once all sources were dispatched.
func (t *Trigger) Complete() {
	t.mu.Lock()
	t.fired = false
	t.mu.Unlock()
}

// Fired reports whether a cycle is being dispatched.
func (t *Trigger) Fired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fired
}

// LastDate is the local calendar date of the last cycle, empty if none.
func (t *Trigger) LastDate() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastDate
}
