// Package supervisor wires the concentrator arbiter, the upstream and
// downstream engines, the stats register and reporter, and the
// optional observability endpoints into one running process, and
// implements the clean-vs-fast shutdown distinction.
package supervisor

import (
	"context"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/agsys/lora-pktfwd/internal/concentrator"
	"github.com/agsys/lora-pktfwd/internal/forwarder"
	"github.com/agsys/lora-pktfwd/internal/metrics"
	"github.com/agsys/lora-pktfwd/internal/monitor"
	"github.com/agsys/lora-pktfwd/internal/stats"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// shutdownGrace bounds how long a clean shutdown waits for the engines
// and the reporter to return before Run returns regardless.
const shutdownGrace = 2 * time.Second

// Supervisor owns every long-running component of a forwarder process.
type Supervisor struct {
	Arbiter    *concentrator.Arbiter
	Register   *stats.Register
	Reporter   *stats.Reporter
	Upstream   *forwarder.Upstream
	Downstream *forwarder.Downstream

	Collector   *metrics.Collector
	MetricsAddr string

	Hub         *monitor.Hub
	MonitorAddr string

	Logger *log.Logger
}

// Run starts every component and blocks until ctx is cancelled. A
// cancellation is treated as "clean": both engines and the reporter
// observe the same cancelled ctx, and Run waits up to shutdownGrace for
// them to return before returning itself. The metrics and monitor HTTP
// servers are not stopped by Run. Callers wanting the fast/SIGQUIT path should
// instead abandon the call site without waiting on Run's return.
func (s *Supervisor) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	var upErr, downErr error

	s.Logger.Printf("supervisor: starting forwarder against HAL driver %q", s.Arbiter.Version())

	if s.MetricsAddr != "" {
		registry := prometheus.NewRegistry()
		registry.MustRegister(s.Collector)
		go s.serveHTTP(s.MetricsAddr, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}
	if s.MonitorAddr != "" {
		go s.serveHTTP(s.MonitorAddr, s.Hub)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		upErr = s.Upstream.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		downErr = s.Downstream.Run(ctx)
	}()

	reportCtx, cancelReport := context.WithCancel(ctx)
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.runReporter(reportCtx)
	}()

	<-ctx.Done()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(shutdownGrace):
		s.Logger.Printf("supervisor: shutdown grace period elapsed, abandoning remaining engines")
	}
	cancelReport()

	if upErr != nil {
		return upErr
	}
	return downErr
}

// runReporter drives the stats reporter and, if observability is
// enabled, folds each interval into the Prometheus collector and
// broadcasts it to the monitor hub.
func (s *Supervisor) runReporter(ctx context.Context) {
	ticker := time.NewTicker(s.Reporter.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := s.Register.SnapshotAndReset()
			s.Reporter.Emit(snap)

			if s.Collector != nil {
				s.Collector.Add(snap)
			}
			if s.Hub != nil {
				s.Hub.Broadcast(monitor.Report{
					Timestamp: time.Now().Unix(),
					Up:        snap.Up,
					Down:      snap.Down,
					Ratios:    stats.ComputeRatios(snap),
				})
			}
		}
	}
}

func (s *Supervisor) serveHTTP(addr string, handler http.Handler) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.Logger.Printf("supervisor: failed to listen on %s: %v", addr, err)
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/", handler)
	if err := http.Serve(ln, mux); err != nil {
		s.Logger.Printf("supervisor: http server on %s stopped: %v", addr, err)
	}
}
