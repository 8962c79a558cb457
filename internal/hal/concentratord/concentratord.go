package concentratord

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/agsys/lora-pktfwd/internal/radio"
	"github.com/go-zeromq/zmq4"
)

// Config holds the two endpoints concentratord exposes.
type Config struct {
	EventURL   string // SUB socket streaming uplink events
	CommandURL string // REQ socket carrying downlink commands
}

// DefaultConfig returns the conventional local IPC endpoints.
func DefaultConfig() Config {
	return Config{
		EventURL:   "ipc:///tmp/concentratord_event",
		CommandURL: "ipc:///tmp/concentratord_command",
	}
}

// Driver is a hal.Concentrator backed by a concentratord-style daemon
// reached over ZeroMQ.
type Driver struct {
	cfg Config

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	eventSock zmq4.Socket
	cmdSock   zmq4.Socket

	mu      sync.Mutex
	cmdMu   sync.Mutex
	rx      []radio.ReceivedFrame
	version string
}

// New returns a driver bound to cfg's endpoints. Start must be called
// before Receive or Send.
func New(cfg Config) *Driver {
	return &Driver{cfg: cfg, version: "concentratord-hal/1"}
}

// Start dials both sockets and begins the event-consuming goroutine.
func (d *Driver) Start(ctx context.Context) error {
	d.ctx, d.cancel = context.WithCancel(ctx)

	d.eventSock = zmq4.NewSub(d.ctx)
	if err := d.eventSock.Dial(d.cfg.EventURL); err != nil {
		return fmt.Errorf("concentratord: event socket dial: %w", err)
	}
	if err := d.eventSock.SetOption(zmq4.OptionSubscribe, ""); err != nil {
		return fmt.Errorf("concentratord: subscribe: %w", err)
	}

	d.cmdSock = zmq4.NewReq(d.ctx)
	if err := d.cmdSock.Dial(d.cfg.CommandURL); err != nil {
		d.eventSock.Close()
		return fmt.Errorf("concentratord: command socket dial: %w", err)
	}

	d.wg.Add(1)
	go d.eventLoop()

	return nil
}

// Stop cancels the event loop and closes both sockets.
func (d *Driver) Stop() error {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
	if d.eventSock != nil {
		d.eventSock.Close()
	}
	if d.cmdSock != nil {
		d.cmdSock.Close()
	}
	return nil
}

// Receive drains up to max buffered frames accumulated by the event
// loop since the last call.
func (d *Driver) Receive(max int) ([]radio.ReceivedFrame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.rx) == 0 {
		return nil, nil
	}
	n := len(d.rx)
	if n > max {
		n = max
	}
	out := d.rx[:n]
	d.rx = d.rx[n:]
	return out, nil
}

// Send encodes frame as a downlink command and waits for the daemon's
// reply on the REQ socket, which serializes concurrent sends.
func (d *Driver) Send(frame radio.OutgoingFrame) error {
	d.cmdMu.Lock()
	defer d.cmdMu.Unlock()

	payload := marshalDownlink(frame)
	msg := zmq4.NewMsgFrom([]byte("down"), payload)
	if err := d.cmdSock.Send(msg); err != nil {
		return fmt.Errorf("concentratord: send downlink command: %w", err)
	}
	if _, err := d.cmdSock.Recv(); err != nil {
		return fmt.Errorf("concentratord: receive downlink ack: %w", err)
	}
	return nil
}

// Version reports a fixed identifying string for this adapter.
func (d *Driver) Version() string { return d.version }

func (d *Driver) eventLoop() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return
		default:
		}

		msg, err := d.eventSock.Recv()
		if err != nil {
			if d.ctx.Err() != nil {
				return
			}
			continue
		}
		if len(msg.Frames) < 2 {
			continue
		}

		eventType := string(msg.Frames[0])
		if eventType != "up" {
			continue
		}

		frame, err := unmarshalUplink(msg.Frames[1])
		if err != nil {
			log.Printf("concentratord: dropping malformed uplink: %v", err)
			continue
		}

		d.mu.Lock()
		d.rx = append(d.rx, frame)
		d.mu.Unlock()
	}
}
