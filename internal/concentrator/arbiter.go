// Package concentrator serializes access to the single HAL resource
// shared by the upstream and downstream engines.
package concentrator

import (
	"sync"

	"github.com/agsys/lora-pktfwd/internal/hal"
	"github.com/agsys/lora-pktfwd/internal/radio"
)

// Arbiter guards a hal.Concentrator behind a single mutex. No fairness
// guarantee is made; contention between the two callers is expected to
// be low relative to lock cost.
type Arbiter struct {
	mu  sync.Mutex
	hal hal.Concentrator
}

// New returns an Arbiter guarding the given concentrator driver.
func New(c hal.Concentrator) *Arbiter {
	return &Arbiter{hal: c}
}

// Receive fetches up to max frames while holding the arbiter's lock.
func (a *Arbiter) Receive(max int) ([]radio.ReceivedFrame, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.hal.Receive(max)
}

// Send transmits a single frame while holding the arbiter's lock.
func (a *Arbiter) Send(frame radio.OutgoingFrame) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.hal.Send(frame)
}

// Version returns the underlying driver's version string. Read-only
// metadata; not worth serializing behind the lock.
func (a *Arbiter) Version() string {
	return a.hal.Version()
}
