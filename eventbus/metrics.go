package eventbus

import (
	"time"

	"github.com/bitcredit/ebill/telemetry"
)

// metricIngestDuration follows cmd/thor/node/metrics.go's
// telemetry.LazyLoad-wrapped-package-var shape, reporting how long
// Ingest spends validating, merging, and notifying per envelope,
// labeled by outcome so a slow deduplicate vs. a slow chain merge are
// distinguishable.
var metricIngestDuration = telemetry.LazyLoad(func() telemetry.HistogramVecMeter {
	return telemetry.HistogramVecWithHTTPBuckets("eventbus_ingest_duration_ms", []string{"outcome"})
})

func recordIngestDuration(start time.Time, outcome string) {
	metricIngestDuration().ObserveWithLabels(time.Since(start).Milliseconds(), map[string]string{"outcome": outcome})
}
