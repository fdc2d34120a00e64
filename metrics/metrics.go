package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/evmstack/chaindata/eth"
)

const Namespace = "chaindata"

type Metricer interface {
	CacheAdd(label string, cacheSize int, evicted bool)
	CacheGet(label string, hit bool)

	RecordDBEntryCount(kind string, count int64)

	RecordCanonicalHead(head eth.BlockID)
	RecordSafe(block eth.BlockID)
	RecordFinalized(block eth.BlockID)
	RecordReorg(depth uint64)
}

type Metrics struct {
	registry *prometheus.Registry

	CacheSizeVec *prometheus.GaugeVec
	CacheGetVec  *prometheus.CounterVec
	CacheAddVec  *prometheus.CounterVec

	DBEntryCountVec *prometheus.GaugeVec

	HeadBlockNum      prometheus.Gauge
	SafeBlockNum      prometheus.Gauge
	FinalizedBlockNum prometheus.Gauge
	ReorgDepth        prometheus.Histogram
}

var _ Metricer = (*Metrics)(nil)

func NewMetrics(procName string) *Metrics {
	if procName == "" {
		procName = "default"
	}
	ns := Namespace + "_" + procName

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		CacheSizeVec: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "cache_size",
			Help:      "Size of the cache",
		}, []string{"label"}),
		CacheGetVec: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "cache_get_total",
			Help:      "Number of cache lookups",
		}, []string{"label", "hit"}),
		CacheAddVec: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "cache_add_total",
			Help:      "Number of cache additions",
		}, []string{"label"}),
		DBEntryCountVec: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "db_entries",
			Help:      "Number of durable entries per record kind",
		}, []string{"kind"}),
		HeadBlockNum: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "head_block_num",
			Help:      "Block number of the canonical head",
		}),
		SafeBlockNum: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "safe_block_num",
			Help:      "Block number of the safe pointer",
		}),
		FinalizedBlockNum: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "finalized_block_num",
			Help:      "Block number of the finalized pointer",
		}),
		ReorgDepth: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "reorg_depth",
			Help:      "Depth of canonical chain reorgs",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64},
		}),
	}
}

// Registry exposes the prometheus registry, for a metrics HTTP server to hook
// into.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) CacheAdd(label string, cacheSize int, evicted bool) {
	m.CacheSizeVec.WithLabelValues(label).Set(float64(cacheSize))
	m.CacheAddVec.WithLabelValues(label).Inc()
}

func (m *Metrics) CacheGet(label string, hit bool) {
	if hit {
		m.CacheGetVec.WithLabelValues(label, "true").Inc()
	} else {
		m.CacheGetVec.WithLabelValues(label, "false").Inc()
	}
}

func (m *Metrics) RecordDBEntryCount(kind string, count int64) {
	m.DBEntryCountVec.WithLabelValues(kind).Set(float64(count))
}

func (m *Metrics) RecordCanonicalHead(head eth.BlockID) {
	m.HeadBlockNum.Set(float64(head.Number))
}

func (m *Metrics) RecordSafe(block eth.BlockID) {
	m.SafeBlockNum.Set(float64(block.Number))
}

func (m *Metrics) RecordFinalized(block eth.BlockID) {
	m.FinalizedBlockNum.Set(float64(block.Number))
}

func (m *Metrics) RecordReorg(depth uint64) {
	m.ReorgDepth.Observe(float64(depth))
}
