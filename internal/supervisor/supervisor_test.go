package supervisor

import (
	"context"
	"io"
	"log"
	"net"
	"testing"
	"time"

	"github.com/agsys/lora-pktfwd/internal/concentrator"
	"github.com/agsys/lora-pktfwd/internal/forwarder"
	"github.com/agsys/lora-pktfwd/internal/hal/simulator"
	"github.com/agsys/lora-pktfwd/internal/radio"
	"github.com/agsys/lora-pktfwd/internal/stats"
)

func silentLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func loopbackPair(t *testing.T) (net.PacketConn, net.Addr, net.PacketConn) {
	t.Helper()
	local, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket local: %v", err)
	}
	remote, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket remote: %v", err)
	}
	return local, remote.LocalAddr(), remote
}

// TestRunStopsAllEnginesOnCancel builds a full supervisor over a
// simulator HAL and two loopback UDP sockets, runs it briefly, and
// confirms cancellation unwinds cleanly within the shutdown grace
// period with no engine error.
func TestRunStopsAllEnginesOnCancel(t *testing.T) {
	sim := simulator.New()
	if err := sim.Start(context.Background()); err != nil {
		t.Fatalf("sim.Start: %v", err)
	}
	defer sim.Stop()

	arb := concentrator.New(sim)
	reg := stats.NewRegister()
	logger := silentLogger()

	upConn, upDest, upRemote := loopbackPair(t)
	defer upConn.Close()
	defer upRemote.Close()

	downConn, downDest, downRemote := loopbackPair(t)
	defer downConn.Close()
	defer downRemote.Close()

	gwID, err := radio.ParseIdentity("00800000a0cf7e58")
	if err != nil {
		t.Fatalf("ParseIdentity: %v", err)
	}

	upCfg := forwarder.DefaultUpstreamConfig()
	upCfg.GatewayID = gwID
	upCfg.Filter = radio.FilterPolicy{ForwardValidCRC: true}

	downCfg := forwarder.DefaultDownstreamConfig()
	downCfg.GatewayID = gwID
	downCfg.KeepaliveInterval = 30 * time.Millisecond
	downCfg.PullTimeout = 5 * time.Millisecond

	sup := &Supervisor{
		Arbiter:    arb,
		Register:   reg,
		Reporter:   stats.NewReporter(reg, 10*time.Millisecond, logger),
		Upstream:   forwarder.NewUpstream(upCfg, arb, upConn, upDest, reg, logger),
		Downstream: forwarder.NewDownstream(downCfg, arb, downConn, downDest, reg, logger),
		Logger:     logger,
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- sup.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(shutdownGrace + time.Second):
		t.Fatal("Run did not return within the shutdown grace period")
	}
}
