package stats

// UpstreamCounters64 is the 64-bit-widened shape of UpstreamCounters,
// used where a consumer accumulates totals across many resets (e.g.
// a Prometheus collector) and would otherwise risk wrapping a uint32.
type UpstreamCounters64 struct {
	RxRcv       uint64
	RxOK        uint64
	RxBad       uint64
	RxNoCRC     uint64
	PktFwd      uint64
	NetworkByte uint64
	PayloadByte uint64
	DgramSent   uint64
	AckRcv      uint64
}

// DownstreamCounters64 is the 64-bit-widened shape of
// DownstreamCounters; see UpstreamCounters64.
type DownstreamCounters64 struct {
	PullSent    uint64
	AckRcv      uint64
	DgramRcv    uint64
	NetworkByte uint64
	PayloadByte uint64
	TxOK        uint64
	TxFail      uint64
}
