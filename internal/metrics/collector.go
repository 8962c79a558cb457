// Package metrics exposes forwarder statistics to Prometheus. Counters
// here are cumulative across the process lifetime, independent of the
// stats.Register's periodic reset epoch: each completed report
// interval is folded in via Add rather than read directly from the
// register.
package metrics

import (
	"sync/atomic"

	"github.com/agsys/lora-pktfwd/internal/stats"
	"github.com/prometheus/client_golang/prometheus"
)

type counterDesc struct {
	desc    *prometheus.Desc
	counter *uint64
}

// Collector is a prometheus.Collector over a running cumulative total
// of the upstream/downstream frame, datagram, ack and TX counters. The
// network and payload byte counters are not accumulated or exported.
type Collector struct {
	up    stats.UpstreamCounters64
	down  stats.DownstreamCounters64
	descs []counterDesc
}

// NewCollector returns a Collector with zeroed cumulative totals.
func NewCollector(namespace string) *Collector {
	c := &Collector{}
	c.descs = []counterDesc{
		{prometheus.NewDesc(namespace+"_rx_received_total", "Radio frames fetched from the concentrator.", nil, nil), &c.up.RxRcv},
		{prometheus.NewDesc(namespace+"_rx_ok_total", "Radio frames with a valid CRC.", nil, nil), &c.up.RxOK},
		{prometheus.NewDesc(namespace+"_rx_bad_total", "Radio frames with a bad CRC.", nil, nil), &c.up.RxBad},
		{prometheus.NewDesc(namespace+"_rx_nocrc_total", "Radio frames with no CRC check.", nil, nil), &c.up.RxNoCRC},
		{prometheus.NewDesc(namespace+"_up_pkt_fwd_total", "Frames forwarded upstream after filtering.", nil, nil), &c.up.PktFwd},
		{prometheus.NewDesc(namespace+"_up_dgram_sent_total", "PUSH_DATA datagrams sent.", nil, nil), &c.up.DgramSent},
		{prometheus.NewDesc(namespace+"_up_ack_received_total", "PUSH_ACK datagrams matched.", nil, nil), &c.up.AckRcv},
		{prometheus.NewDesc(namespace+"_dw_pull_sent_total", "PULL_DATA datagrams sent.", nil, nil), &c.down.PullSent},
		{prometheus.NewDesc(namespace+"_dw_ack_received_total", "PULL_ACK datagrams matched.", nil, nil), &c.down.AckRcv},
		{prometheus.NewDesc(namespace+"_dw_dgram_received_total", "PULL_RESP datagrams accepted.", nil, nil), &c.down.DgramRcv},
		{prometheus.NewDesc(namespace+"_tx_ok_total", "Downlink transmissions handed to the HAL successfully.", nil, nil), &c.down.TxOK},
		{prometheus.NewDesc(namespace+"_tx_fail_total", "Downlink transmissions the HAL rejected.", nil, nil), &c.down.TxFail},
	}
	return c
}

// Add folds one reporter interval's snapshot into the cumulative
// totals. Safe for concurrent use.
func (c *Collector) Add(s stats.Snapshot) {
	atomic.AddUint64(&c.up.RxRcv, uint64(s.Up.RxRcv))
	atomic.AddUint64(&c.up.RxOK, uint64(s.Up.RxOK))
	atomic.AddUint64(&c.up.RxBad, uint64(s.Up.RxBad))
	atomic.AddUint64(&c.up.RxNoCRC, uint64(s.Up.RxNoCRC))
	atomic.AddUint64(&c.up.PktFwd, uint64(s.Up.PktFwd))
	atomic.AddUint64(&c.up.DgramSent, uint64(s.Up.DgramSent))
	atomic.AddUint64(&c.up.AckRcv, uint64(s.Up.AckRcv))
	atomic.AddUint64(&c.down.PullSent, uint64(s.Down.PullSent))
	atomic.AddUint64(&c.down.AckRcv, uint64(s.Down.AckRcv))
	atomic.AddUint64(&c.down.DgramRcv, uint64(s.Down.DgramRcv))
	atomic.AddUint64(&c.down.TxOK, uint64(s.Down.TxOK))
	atomic.AddUint64(&c.down.TxFail, uint64(s.Down.TxFail))
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(out chan<- *prometheus.Desc) {
	for _, d := range c.descs {
		out <- d.desc
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(out chan<- prometheus.Metric) {
	for _, d := range c.descs {
		value := float64(atomic.LoadUint64(d.counter))
		out <- prometheus.MustNewConstMetric(d.desc, prometheus.CounterValue, value)
	}
}
