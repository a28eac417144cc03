// Package clock abstracts the ledger timepoint source. The core orders
// checkpoints and yield periods by unix seconds, which stand in for block
// timestamps: monotonically non-decreasing, coarse, and never trusted for
// sub-second precision.
package clock

import (
	"sync"
	"time"
)

// Clock yields the current ledger timepoint in unix seconds.
type Clock interface {
	Now() uint64
}

// System reads the wall clock.
type System struct{}

func (System) Now() uint64 {
	return uint64(time.Now().Unix())
}

// Manual is a test clock advanced explicitly. Set never moves backwards so
// tests cannot accidentally violate the monotonic timepoint invariant.
type Manual struct {
	mu  sync.Mutex
	now uint64
}

// NewManual starts a manual clock at the given timepoint.
func NewManual(now uint64) *Manual {
	return &Manual{now: now}
}

func (m *Manual) Now() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward by d seconds.
func (m *Manual) Advance(d uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now += d
}

// Set jumps to a later timepoint; earlier values are ignored.
func (m *Manual) Set(now uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if now > m.now {
		m.now = now
	}
}
