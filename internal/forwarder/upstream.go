// Package forwarder implements the upstream and downstream UDP engines
// that bridge the concentrator arbiter to the network server.
package forwarder

import (
	"context"
	"log"
	"net"
	"time"

	"github.com/agsys/lora-pktfwd/internal/concentrator"
	"github.com/agsys/lora-pktfwd/internal/gwproto"
	"github.com/agsys/lora-pktfwd/internal/radio"
	"github.com/agsys/lora-pktfwd/internal/stats"
)

// maxFramesPerFetch bounds a single HAL Receive call.
const maxFramesPerFetch = 8

const fetchBackoff = 10 * time.Millisecond

// UpstreamConfig parameterizes the upstream engine.
type UpstreamConfig struct {
	GatewayID    radio.Identity
	Filter       radio.FilterPolicy
	AckAttempts  int           // number of ack read attempts per datagram
	AckTimeout   time.Duration // push_timeout_half
}

// DefaultUpstreamConfig returns the default attempt/timeout values.
func DefaultUpstreamConfig() UpstreamConfig {
	return UpstreamConfig{
		AckAttempts: 2,
		AckTimeout:  50 * time.Millisecond,
	}
}

// Upstream is the fetch->filter->serialize->send->ack-match engine.
type Upstream struct {
	cfg     UpstreamConfig
	arb     *concentrator.Arbiter
	conn    net.PacketConn
	dest    net.Addr
	reg     *stats.Register
	logger  *log.Logger
}

// NewUpstream builds an Upstream engine bound to the given UDP socket.
// conn is owned exclusively by this engine; upstream and downstream
// never share a socket.
func NewUpstream(cfg UpstreamConfig, arb *concentrator.Arbiter, conn net.PacketConn, dest net.Addr, reg *stats.Register, logger *log.Logger) *Upstream {
	return &Upstream{cfg: cfg, arb: arb, conn: conn, dest: dest, reg: reg, logger: logger}
}

// Run executes the fetch loop until ctx is cancelled. A HAL fetch
// error is fatal and returned to the caller.
func (u *Upstream) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		frames, err := u.arb.Receive(maxFramesPerFetch)
		if err != nil {
			return err
		}

		if len(frames) == 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(fetchBackoff):
			}
			continue
		}

		u.processBatch(frames)
	}
}

func (u *Upstream) processBatch(frames []radio.ReceivedFrame) {
	var rxRcv, rxOK, rxBad, rxNoCRC uint32
	admitted := make([]radio.ReceivedFrame, 0, len(frames))
	var payloadBytes uint32

	for _, f := range frames {
		rxRcv++
		switch f.CRCStatus {
		case radio.CRCOK:
			rxOK++
		case radio.CRCBad:
			rxBad++
		case radio.CRCNone:
			rxNoCRC++
		}
		if u.cfg.Filter.Admits(f.CRCStatus) {
			admitted = append(admitted, f)
			payloadBytes += uint32(len(f.Payload))
			u.logger.Printf("upstream: accepted frame tmst=%d freq=%d modu=%s size=%d", f.Timestamp, f.FreqHz, f.Modulation, len(f.Payload))
		}
	}

	u.reg.RecordUp(stats.UpstreamCounters{
		RxRcv:   rxRcv,
		RxOK:    rxOK,
		RxBad:   rxBad,
		RxNoCRC: rxNoCRC,
	})

	if len(admitted) == 0 {
		return
	}

	token, err := gwproto.NewToken()
	if err != nil {
		u.logger.Printf("upstream: failed to draw token: %v", err)
		return
	}

	datagram, ok := gwproto.BuildPushData(token, u.cfg.GatewayID, admitted, time.Now())
	if !ok {
		return
	}

	n, err := u.conn.WriteTo(datagram, u.dest)
	if err != nil {
		u.logger.Printf("upstream: send failed: %v", err)
		return
	}

	u.reg.RecordUp(stats.UpstreamCounters{
		PktFwd:      uint32(len(admitted)),
		NetworkByte: uint32(n),
		PayloadByte: payloadBytes,
		DgramSent:   1,
	})

	u.awaitAck(token)
}

// awaitAck makes up to cfg.AckAttempts reads, skipping stray or
// mismatched replies, and counts the first valid PUSH_ACK matching
// token. A read timeout ends the wait.
func (u *Upstream) awaitAck(token gwproto.Token) {
	buf := make([]byte, 4)
	for attempt := 0; attempt < u.cfg.AckAttempts; attempt++ {
		u.conn.SetReadDeadline(time.Now().Add(u.cfg.AckTimeout))
		n, _, err := u.conn.ReadFrom(buf)
		if err != nil {
			if isTimeout(err) {
				return
			}
			u.logger.Printf("upstream: ack read failed: %v", err)
			return
		}
		if gwproto.ParseAck(buf[:n], gwproto.PushAck, token) {
			u.reg.RecordUp(stats.UpstreamCounters{AckRcv: 1})
			return
		}
	}
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}
