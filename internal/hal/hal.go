// Package hal defines the concentrator hardware-access-layer boundary
// consumed by the arbiter. The core never depends on a concrete
// driver — only on this interface — so the concentrator stays an
// opaque, swappable collaborator.
package hal

import (
	"context"

	"github.com/agsys/lora-pktfwd/internal/radio"
)

// Concentrator is the opaque hardware driver the core depends on.
type Concentrator interface {
	// Start brings the concentrator up. It must be called before
	// Receive or Send.
	Start(ctx context.Context) error

	// Stop tears the concentrator down. Safe to call after a failed
	// Start.
	Stop() error

	// Receive fetches up to max frames. An error is HAL-fatal.
	Receive(max int) ([]radio.ReceivedFrame, error)

	// Send hands a single frame to the concentrator for emission.
	Send(frame radio.OutgoingFrame) error

	// Version reports the driver's identifying string, surfaced in
	// startup logs.
	Version() string
}
