package metrics

import "github.com/evmstack/chaindata/eth"

type noopMetrics struct{}

var NoopMetrics Metricer = new(noopMetrics)

func (*noopMetrics) CacheAdd(_ string, _ int, _ bool) {}
func (*noopMetrics) CacheGet(_ string, _ bool)        {}

func (*noopMetrics) RecordDBEntryCount(_ string, _ int64) {}

func (*noopMetrics) RecordCanonicalHead(_ eth.BlockID) {}
func (*noopMetrics) RecordSafe(_ eth.BlockID)          {}
func (*noopMetrics) RecordFinalized(_ eth.BlockID)     {}
func (*noopMetrics) RecordReorg(_ uint64)              {}
