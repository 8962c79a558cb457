// Package stats implements the thread-safe counter register shared by
// the upstream and downstream engines, and the periodic reporter that
// drains it.
package stats

import "sync"

// UpstreamCounters holds the upstream counter set.
type UpstreamCounters struct {
	RxRcv       uint32
	RxOK        uint32
	RxBad       uint32
	RxNoCRC     uint32
	PktFwd      uint32
	NetworkByte uint32
	PayloadByte uint32
	DgramSent   uint32
	AckRcv      uint32
}

// DownstreamCounters holds the downstream counter set.
type DownstreamCounters struct {
	PullSent    uint32
	AckRcv      uint32
	DgramRcv    uint32
	NetworkByte uint32
	PayloadByte uint32
	TxOK        uint32
	TxFail      uint32
}

// Snapshot is the value returned by SnapshotAndReset: the accumulated
// counters since the previous snapshot.
type Snapshot struct {
	Up   UpstreamCounters
	Down DownstreamCounters
}

// Register accumulates upstream and downstream counters under two
// independent locks, never held together.
type Register struct {
	upMu   sync.Mutex
	up     UpstreamCounters
	downMu sync.Mutex
	down   DownstreamCounters
}

// NewRegister returns a zeroed counter register.
func NewRegister() *Register {
	return &Register{}
}

// RecordUp adds delta to the upstream counters under the upstream lock.
func (r *Register) RecordUp(delta UpstreamCounters) {
	r.upMu.Lock()
	defer r.upMu.Unlock()
	r.up.RxRcv += delta.RxRcv
	r.up.RxOK += delta.RxOK
	r.up.RxBad += delta.RxBad
	r.up.RxNoCRC += delta.RxNoCRC
	r.up.PktFwd += delta.PktFwd
	r.up.NetworkByte += delta.NetworkByte
	r.up.PayloadByte += delta.PayloadByte
	r.up.DgramSent += delta.DgramSent
	r.up.AckRcv += delta.AckRcv
}

// RecordDown adds delta to the downstream counters under the
// downstream lock.
func (r *Register) RecordDown(delta DownstreamCounters) {
	r.downMu.Lock()
	defer r.downMu.Unlock()
	r.down.PullSent += delta.PullSent
	r.down.AckRcv += delta.AckRcv
	r.down.DgramRcv += delta.DgramRcv
	r.down.NetworkByte += delta.NetworkByte
	r.down.PayloadByte += delta.PayloadByte
	r.down.TxOK += delta.TxOK
	r.down.TxFail += delta.TxFail
}

// SnapshotAndReset atomically reads and zeroes both sub-blocks. The two
// locks are taken and released one at a time; nothing observes them
// held together.
func (r *Register) SnapshotAndReset() Snapshot {
	r.upMu.Lock()
	up := r.up
	r.up = UpstreamCounters{}
	r.upMu.Unlock()

	r.downMu.Lock()
	down := r.down
	r.down = DownstreamCounters{}
	r.downMu.Unlock()

	return Snapshot{Up: up, Down: down}
}
