package utils

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// GenerateItemID returns a new random item identifier
func GenerateItemID() string {
	return uuid.NewString()
}

// IsValidItemFilename checks if the filename is <uuid>.json, the only names
// the item store reads or writes.
func IsValidItemFilename(filename string) bool {
	name, ok := strings.CutSuffix(filename, ".json")
	if !ok {
		return false
	}
	return IsValidItemID(name)
}

// IsValidItemID reports whether id is a canonical UUID string
func IsValidItemID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// Clock hands out creation timestamps that never repeat or go backwards
// within a process, so newest-first ordering is stable.
type Clock struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

// NewClock creates a clock; now defaults to time.Now.
func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

// Next returns a timestamp strictly after every previous one.
func (c *Clock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC().Truncate(time.Millisecond)
	if !t.After(c.last) {
		t = c.last.Add(time.Millisecond)
	}
	c.last = t
	return t
}
