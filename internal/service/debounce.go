package service

import (
	"context"
	"sync"
	"time"
)

// Debouncer collapses bursts of triggers into one call of fn, made once no
// trigger has arrived for the quiet window.
type Debouncer struct {
	window  time.Duration
	fn      func(context.Context)
	trigger chan struct{}
	after   func(time.Duration) <-chan time.Time
}

func NewDebouncer(window time.Duration, fn func(context.Context)) *Debouncer {
	return &Debouncer{
		window:  window,
		fn:      fn,
		trigger: make(chan struct{}),
		after:   time.After,
	}
}

// Trigger schedules a call. It returns false if ctx ended before the loop
// accepted the trigger.
func (d *Debouncer) Trigger(ctx context.Context) bool {
	select {
	case d.trigger <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

// Run owns the timer until ctx is cancelled. fn runs on its own goroutine so
// triggers keep being accepted meanwhile. On cancellation a pending call is
// dropped and Run waits for running calls to return.
func (d *Debouncer) Run(ctx context.Context) {
	var (
		fire <-chan time.Time
		wg   sync.WaitGroup
	)
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.trigger:
			fire = d.after(d.window)
		case <-fire:
			fire = nil
			wg.Add(1)
			go func() {
				defer wg.Done()
				d.fn(ctx)
			}()
		}
	}
}
