package billservice

import (
	"errors"

	"github.com/bitcredit/ebill/telemetry"
	"github.com/bitcredit/ebill/validation"
)

// Metric vars follow cmd/thor/node/metrics.go's
// telemetry.LazyLoad-wrapped-package-var shape, renamed to the
// bill-domain counters telemetry's own doc comment promises: blocks
// appended (by action kind) and validation rejections (by error code).
var (
	metricBlocksAppended = telemetry.LazyLoad(func() telemetry.CountVecMeter {
		return telemetry.CounterVec("bill_blocks_appended_count", []string{"kind"})
	})
	metricValidationRejections = telemetry.LazyLoad(func() telemetry.CountVecMeter {
		return telemetry.CounterVec("bill_validation_rejected_count", []string{"code"})
	})
)

// recordExecuteOutcome reports one Execute call's outcome: a
// validation.Error increments the rejection counter by its code, any
// other non-nil error is left unreported (it isn't a rule rejection),
// and a nil error increments the append counter by the action kind.
func recordExecuteOutcome(kind validation.Kind, err error) {
	if err == nil {
		metricBlocksAppended().AddWithLabel(1, map[string]string{"kind": kind.String()})
		return
	}
	var verr *validation.Error
	if errors.As(err, &verr) {
		metricValidationRejections().AddWithLabel(1, map[string]string{"code": verr.Code().String()})
	}
}
