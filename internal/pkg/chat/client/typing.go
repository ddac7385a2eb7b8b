package client

import (
	"sync"
	"time"
)

// TypingQuietPeriod is how long after the last keystroke the stop-typing
// signal fires.
const TypingQuietPeriod = 2 * time.Second

// TypingDebouncer emits a typing signal on every keystroke and schedules a
// single stop signal for when the keyboard goes quiet. Each keystroke
// cancels and reschedules the pending stop, so at most one stop fires per
// quiet period.
type TypingDebouncer struct {
	mu      sync.Mutex
	quiet   time.Duration
	timer   *time.Timer
	onType  func()
	onStop  func()
	stopped bool
}

func NewTypingDebouncer(quiet time.Duration, onType, onStop func()) *TypingDebouncer {
	if quiet <= 0 {
		quiet = TypingQuietPeriod
	}
	return &TypingDebouncer{quiet: quiet, onType: onType, onStop: onStop}
}

// Keystroke signals activity: fires the typing callback and (re)schedules
// the stop callback.
func (d *TypingDebouncer) Keystroke() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.quiet, d.fireStop)
	d.mu.Unlock()

	if d.onType != nil {
		d.onType()
	}
}

// Flush fires the pending stop signal immediately, e.g. when the message is
// sent before the quiet period elapses.
func (d *TypingDebouncer) Flush() {
	d.mu.Lock()
	if d.timer == nil || !d.timer.Stop() {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()

	if d.onStop != nil {
		d.onStop()
	}
}

// Close cancels any pending stop signal and ignores further keystrokes.
func (d *TypingDebouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *TypingDebouncer) fireStop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()

	if d.onStop != nil {
		d.onStop()
	}
}
