package simulator

import (
	"context"
	"errors"
	"testing"

	"github.com/agsys/lora-pktfwd/internal/radio"
)

func TestReceiveBeforeStartFails(t *testing.T) {
	s := New()
	if _, err := s.Receive(8); err == nil {
		t.Fatal("expected an error calling Receive before Start")
	}
}

func TestInjectAndReceiveRespectsMax(t *testing.T) {
	s := New()
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for i := 0; i < 3; i++ {
		s.Inject(radio.ReceivedFrame{Timestamp: uint32(i)})
	}

	got, err := s.Receive(2)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d frames, want 2", len(got))
	}

	rest, err := s.Receive(8)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if len(rest) != 1 {
		t.Fatalf("got %d frames, want 1", len(rest))
	}
}

func TestSendRecordsFrame(t *testing.T) {
	s := New()
	s.Start(context.Background())

	frame := radio.OutgoingFrame{FreqHz: 868100000, Payload: []byte("x")}
	if err := s.Send(frame); err != nil {
		t.Fatalf("Send: %v", err)
	}

	sent := s.SentFrames()
	if len(sent) != 1 || sent[0].FreqHz != 868100000 {
		t.Fatalf("unexpected sent frames: %+v", sent)
	}
}

func TestFailNextSendAppliesOnce(t *testing.T) {
	s := New()
	s.Start(context.Background())
	s.FailNextSend(errors.New("boom"))

	if err := s.Send(radio.OutgoingFrame{}); err == nil {
		t.Fatal("expected the injected error on the first Send")
	}
	if err := s.Send(radio.OutgoingFrame{}); err != nil {
		t.Fatalf("second Send should succeed, got %v", err)
	}
	if len(s.SentFrames()) != 1 {
		t.Fatalf("only the successful send should be recorded")
	}
}
