package chain

// Deadlines for the bill's waiting states (spec.md §4, SPEC_FULL.md
// §4). The spec pins PAYMENT_DEADLINE at 48h; ACCEPT_DEADLINE and
// RECOURSE_DEADLINE are not separately specified, so this is the Open
// Question decision recorded in DESIGN.md: both use the same 48h window.
const (
	AcceptDeadlineSeconds   int64 = 172800
	PaymentDeadlineSeconds  int64 = 172800
	RecourseDeadlineSeconds int64 = 172800
)

// DeadlineHasPassed reports whether now is past blockTimestamp plus the
// given deadline window.
func DeadlineHasPassed(blockTimestamp, now int64, deadlineSeconds int64) bool {
	return now > blockTimestamp+deadlineSeconds
}
