package store

import (
	"strconv"
	"sync"
	"time"
)

// IDGen issues client-side ids derived from the wall clock in milliseconds.
// Ids are strictly increasing even when two are requested in the same millisecond.
type IDGen struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewIDGen creates a generator reading time from now (time.Now when nil)
func NewIDGen(now func() time.Time) *IDGen {
	if now == nil {
		now = time.Now
	}
	return &IDGen{now: now}
}

// Next returns the next id
func (g *IDGen) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.now().UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	return strconv.FormatInt(ms, 10)
}
