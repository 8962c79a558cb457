// Package simulator implements an in-memory hal.Concentrator for tests
// and demo runs, standing in for the real SX1301 hardware path.
package simulator

import (
	"context"
	"fmt"
	"sync"

	"github.com/agsys/lora-pktfwd/internal/radio"
)

// Simulator is a hal.Concentrator backed by an injectable queue of
// frames rather than real radio hardware.
type Simulator struct {
	mu      sync.Mutex
	running bool
	pending []radio.ReceivedFrame
	sent    []radio.OutgoingFrame
	sendErr error
}

// New returns a stopped simulator with no queued frames.
func New() *Simulator {
	return &Simulator{}
}

// Start marks the simulator running. Calling Receive or Send before
// Start returns an error, mirroring the real driver's lifecycle.
func (s *Simulator) Start(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = true
	return nil
}

// Stop marks the simulator stopped.
func (s *Simulator) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	return nil
}

// Inject appends a frame to the queue a subsequent Receive will drain,
// as if the concentrator hardware had just captured it.
func (s *Simulator) Inject(frame radio.ReceivedFrame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, frame)
}

// Receive drains up to max queued frames.
func (s *Simulator) Receive(max int) ([]radio.ReceivedFrame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil, fmt.Errorf("simulator: not running")
	}
	if len(s.pending) == 0 {
		return nil, nil
	}
	n := len(s.pending)
	if n > max {
		n = max
	}
	out := s.pending[:n]
	s.pending = s.pending[n:]
	return out, nil
}

// Send records frame for later inspection by SentFrames, unless a
// fault has been injected via FailNextSend.
func (s *Simulator) Send(frame radio.OutgoingFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return fmt.Errorf("simulator: not running")
	}
	if s.sendErr != nil {
		err := s.sendErr
		s.sendErr = nil
		return err
	}
	s.sent = append(s.sent, frame)
	return nil
}

// Version reports a fixed identifying string.
func (s *Simulator) Version() string { return "simulator-hal/1" }

// SentFrames returns every frame handed to Send so far, in order.
func (s *Simulator) SentFrames() []radio.OutgoingFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]radio.OutgoingFrame, len(s.sent))
	copy(out, s.sent)
	return out
}

// FailNextSend makes the next Send call return err instead of
// succeeding, for exercising HAL-failure paths.
func (s *Simulator) FailNextSend(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendErr = err
}
