package sequence

import (
	"errors"

	"github.com/gstbill/gstbill/internal/remote"
)

// Decision is the outcome of classifying a counter-subsystem failure.
type Decision int

const (
	// DecisionRetry: re-attempt the counter protocol (transient failures
	// get backoff, lost races re-read the row).
	DecisionRetry Decision = iota

	// DecisionFallback: give up on the counter and derive a pseudo-sequence;
	// invoice issuance must not be blocked.
	DecisionFallback

	// DecisionFatal: surface the error to the caller. Only the daily cap
	// lands here; it is a business rule, not an infrastructure fault.
	DecisionFatal
)

// Classify maps a counter failure to a Decision. It is pure so the retry
// policy is testable without any backend.
func Classify(err error) Decision {
	if errors.Is(err, ErrDailyLimitExceeded) {
		return DecisionFatal
	}
	switch remote.CodeOf(err) {
	case remote.CodeTransient, remote.CodeConflict, remote.CodeDuplicateKey:
		return DecisionRetry
	default:
		return DecisionFallback
	}
}
