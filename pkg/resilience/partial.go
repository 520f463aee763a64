package resilience

import "context"

// StageOutcome records whether a retrieval-cascade stage ran to completion,
// was skipped after its retry budget was exhausted, or degraded (ran, but
// with a known-incomplete signal such as a missing vector contribution).
type StageOutcome string

const (
	// StageOutcomeOK means the stage completed normally.
	StageOutcomeOK StageOutcome = "ok"
	// StageOutcomeSkipped means the stage's storage call timed out, the
	// single retry also failed, and the stage was skipped entirely.
	StageOutcomeSkipped StageOutcome = "skipped"
	// StageOutcomeDegraded means the stage ran but with a reduced signal
	// (for example a vector-index/SQL inconsistency, scored without the
	// vector contribution).
	StageOutcomeDegraded StageOutcome = "degraded"
)

// StageAnnotation records one cascade stage's execution outcome for
// inclusion in the final result set's partial-result annotation.
type StageAnnotation struct {
	Stage   string
	Outcome StageOutcome
	Reason  string // human-readable cause, empty when Outcome is StageOutcomeOK
}

// RunStage executes fn under the storage-timeout retry policy: one retry
// with backoff on failure. If both attempts fail, RunStage returns a
// StageOutcomeSkipped annotation instead of propagating the error, so the
// cascade can continue with the remaining stages per the pipeline's
// partial-result failure semantics.
func RunStage(ctx context.Context, stage string, fn func() error) StageAnnotation {
	err := Retry(ctx, StorageRetryConfig(), fn)
	if err == nil {
		return StageAnnotation{Stage: stage, Outcome: StageOutcomeOK}
	}
	return StageAnnotation{Stage: stage, Outcome: StageOutcomeSkipped, Reason: err.Error()}
}

// Degraded builds a StageAnnotation for a stage that completed but with a
// known-reduced signal, such as scoring without a vector contribution after
// a vector-index/SQL inconsistency was detected.
func Degraded(stage, reason string) StageAnnotation {
	return StageAnnotation{Stage: stage, Outcome: StageOutcomeDegraded, Reason: reason}
}
