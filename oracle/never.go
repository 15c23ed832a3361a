package oracle

import "context"

// NeverPaid is a PaymentOracle stand-in for a node with no real
// Bitcoin-watching collaborator configured: it always reports that an
// address hasn't been paid. cmd/ebill defaults to it so the node
// still runs end to end (issue bills, execute actions, sync) with
// payment confirmation left manual, rather than refusing to start
// without one, mirroring telemetry's own noopTelemetry default for a
// collaborator the spec names but never specifies an implementation
// for.
type NeverPaid struct{}

var _ PaymentOracle = NeverPaid{}

func (NeverPaid) IsPaid(context.Context, string, uint64) (bool, error) { return false, nil }
