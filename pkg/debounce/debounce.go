package debounce

import (
	"sync"
	"time"
)

type pending struct {
	timer *time.Timer
	fn    func()
}

// Debouncer coalesces bursts of calls per key into a single deferred call
type Debouncer struct {
	mutex    sync.Mutex
	timers   map[string]*pending
	duration time.Duration
}

// NewDebouncer creates a new debouncer with the specified quiet window
func NewDebouncer(duration time.Duration) *Debouncer {
	return &Debouncer{
		timers:   make(map[string]*pending),
		duration: duration,
	}
}

// Duration returns the quiet window
func (d *Debouncer) Duration() time.Duration {
	return d.duration
}

// Debounce executes fn once the quiet window has passed.
// If called again with the same key before the window expires, the previous call is cancelled
func (d *Debouncer) Debounce(key string, fn func()) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if p, exists := d.timers[key]; exists {
		p.timer.Stop()
	}

	p := &pending{fn: fn}
	p.timer = time.AfterFunc(d.duration, func() {
		d.mutex.Lock()
		// A newer Debounce, Cancel or Flush already replaced us.
		if d.timers[key] != p {
			d.mutex.Unlock()
			return
		}
		delete(d.timers, key)
		d.mutex.Unlock()
		fn()
	})
	d.timers[key] = p
}

// Cancel cancels a pending debounced call
func (d *Debouncer) Cancel(key string) bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	p, exists := d.timers[key]
	if !exists {
		return false
	}
	p.timer.Stop()
	delete(d.timers, key)
	return true
}

// Flush runs a pending call for key right away on the caller's goroutine.
// It reports whether anything was pending.
func (d *Debouncer) Flush(key string) bool {
	d.mutex.Lock()
	p, exists := d.timers[key]
	if exists {
		p.timer.Stop()
		delete(d.timers, key)
	}
	d.mutex.Unlock()

	if !exists {
		return false
	}
	p.fn()
	return true
}

// Pending reports whether a call for key is scheduled
func (d *Debouncer) Pending(key string) bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	_, exists := d.timers[key]
	return exists
}

// Clear cancels all pending debounced calls
func (d *Debouncer) Clear() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	for key, p := range d.timers {
		p.timer.Stop()
		delete(d.timers, key)
	}
}
