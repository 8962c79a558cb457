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

// pullRespHeaderSize is the length of the server->gateway header that
// precedes a PULL_RESP's JSON body: version, token, packet type.
const pullRespHeaderSize = 4

// DownstreamConfig parameterizes the downstream engine.
type DownstreamConfig struct {
	GatewayID         radio.Identity
	KeepaliveInterval time.Duration // default 5s
	PullTimeout       time.Duration // default 200ms
}

// DefaultDownstreamConfig returns the default timing values.
func DefaultDownstreamConfig() DownstreamConfig {
	return DownstreamConfig{
		KeepaliveInterval: 5 * time.Second,
		PullTimeout:       200 * time.Millisecond,
	}
}

// Downstream is the keepalive/PULL_RESP processing engine.
type Downstream struct {
	cfg    DownstreamConfig
	arb    *concentrator.Arbiter
	conn   net.PacketConn
	dest   net.Addr
	reg    *stats.Register
	logger *log.Logger
}

// NewDownstream builds a Downstream engine bound to its own UDP
// socket, distinct from the upstream engine's.
func NewDownstream(cfg DownstreamConfig, arb *concentrator.Arbiter, conn net.PacketConn, dest net.Addr, reg *stats.Register, logger *log.Logger) *Downstream {
	return &Downstream{cfg: cfg, arb: arb, conn: conn, dest: dest, reg: reg, logger: logger}
}

// Run executes the keepalive loop until ctx is cancelled.
func (d *Downstream) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if err := d.keepaliveRound(ctx); err != nil {
			return err
		}
	}
}

func (d *Downstream) keepaliveRound(ctx context.Context) error {
	token, err := gwproto.NewToken()
	if err != nil {
		d.logger.Printf("downstream: failed to draw token: %v", err)
		return nil
	}

	header := gwproto.BuildHeader(gwproto.PullData, token, d.cfg.GatewayID)
	if _, err := d.conn.WriteTo(header, d.dest); err != nil {
		d.logger.Printf("downstream: PULL_DATA send failed: %v", err)
		return nil
	}
	d.reg.RecordDown(stats.DownstreamCounters{PullSent: 1})

	sentAt := time.Now()
	ackReceived := false
	buf := make([]byte, 65536)

	// now is initialized to sentAt, not left at its zero value, so the
	// elapsed-time check below is correct on the very first pass.
	now := sentAt
	for now.Sub(sentAt) < d.cfg.KeepaliveInterval {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		d.conn.SetReadDeadline(time.Now().Add(d.cfg.PullTimeout))
		n, _, err := d.conn.ReadFrom(buf)
		now = time.Now()
		if err != nil {
			if isTimeout(err) {
				continue
			}
			d.logger.Printf("downstream: read failed: %v", err)
			continue
		}

		packetType, gotToken, ok := gwproto.ParseHeader(buf[:n])
		if !ok {
			continue
		}

		switch packetType {
		case gwproto.PullAck:
			if gotToken != token {
				d.logger.Printf("downstream: PULL_ACK token mismatch, ignoring")
				continue
			}
			if ackReceived {
				d.logger.Printf("downstream: duplicate PULL_ACK, ignoring")
				continue
			}
			ackReceived = true
			d.reg.RecordDown(stats.DownstreamCounters{AckRcv: 1})

		case gwproto.PullResp:
			d.handlePullResp(buf[pullRespHeaderSize:n])
		}
	}

	return nil
}

// handlePullResp validates and schedules a single PULL_RESP body.
func (d *Downstream) handlePullResp(body []byte) {
	frame, warn, err := gwproto.ParsePullResp(body)
	if err != nil {
		d.logger.Printf("downstream: dropping malformed PULL_RESP: %v", err)
		return
	}
	if warn != nil {
		d.logger.Printf("downstream: %v", warn)
	}

	d.reg.RecordDown(stats.DownstreamCounters{
		DgramRcv:    1,
		NetworkByte: uint32(len(body) + pullRespHeaderSize),
		PayloadByte: uint32(len(frame.Payload)),
	})

	if err := d.arb.Send(frame); err != nil {
		d.logger.Printf("downstream: HAL send failed: %v", err)
		d.reg.RecordDown(stats.DownstreamCounters{TxFail: 1})
		return
	}
	d.reg.RecordDown(stats.DownstreamCounters{TxOK: 1})
}
