package stats

import (
	"context"
	"log"
	"time"
)

// Ratios are the derived per-interval rates computed from a Snapshot.
// Each defaults to 0 when its denominator is 0.
type Ratios struct {
	RxOK    float64
	RxBad   float64
	RxNoCRC float64
	UpAck   float64
	DwAck   float64
}

func ratio(num, den uint32) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// ComputeRatios derives the report ratios from a snapshot.
func ComputeRatios(s Snapshot) Ratios {
	return Ratios{
		RxOK:    ratio(s.Up.RxOK, s.Up.RxRcv),
		RxBad:   ratio(s.Up.RxBad, s.Up.RxRcv),
		RxNoCRC: ratio(s.Up.RxNoCRC, s.Up.RxRcv),
		UpAck:   ratio(s.Up.AckRcv, s.Up.DgramSent),
		DwAck:   ratio(s.Down.AckRcv, s.Down.PullSent),
	}
}

// Reporter sleeps for a fixed interval, snapshots the register, and
// logs a multi-line report. It stops when its context is cancelled.
type Reporter struct {
	register *Register
	interval time.Duration
	logger   *log.Logger
}

// NewReporter builds a Reporter over register, firing every interval
// and writing through logger.
func NewReporter(register *Register, interval time.Duration, logger *log.Logger) *Reporter {
	return &Reporter{register: register, interval: interval, logger: logger}
}

// Interval returns the configured report interval.
func (r *Reporter) Interval() time.Duration {
	return r.interval
}

// Run blocks, emitting one report per interval, until ctx is cancelled.
func (r *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Emit(r.register.SnapshotAndReset())
		}
	}
}

// Emit logs a multi-line report for a snapshot already taken by the
// caller, without itself touching the register.
func (r *Reporter) Emit(s Snapshot) {
	ratios := ComputeRatios(s)
	r.logger.Printf("##### STATISTICS #####")
	r.logger.Printf("# RX received: %d", s.Up.RxRcv)
	r.logger.Printf("# RX valid: %d (%.2f%%)", s.Up.RxOK, ratios.RxOK*100)
	r.logger.Printf("# RX bad CRC: %d (%.2f%%)", s.Up.RxBad, ratios.RxBad*100)
	r.logger.Printf("# RX no CRC: %d (%.2f%%)", s.Up.RxNoCRC, ratios.RxNoCRC*100)
	r.logger.Printf("# RX forwarded: %d", s.Up.PktFwd)
	r.logger.Printf("# UP datagrams sent: %d", s.Up.DgramSent)
	r.logger.Printf("# UP ack ratio: %.2f%%", ratios.UpAck*100)
	r.logger.Printf("# DW pulls sent: %d", s.Down.PullSent)
	r.logger.Printf("# DW ack ratio: %.2f%%", ratios.DwAck*100)
	r.logger.Printf("# DW datagrams received: %d", s.Down.DgramRcv)
	r.logger.Printf("# TX ok: %d, TX fail: %d", s.Down.TxOK, s.Down.TxFail)
	r.logger.Printf("##### END #####")
}
