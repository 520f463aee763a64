// Package reflection implements the Actor/Evaluator/Reflector learning
// loop: traces emitted by callers are classified into success, failure, or
// neutral outcomes, and success/failure traces produce a provenance-citing
// reflective artifact plus an importance update to the artifacts that made
// the operation work (or fail). It also carries the Szubar-mode negative-
// exemplar index, keyed by a normalized trace signature, so a future
// operation matching a known failure pattern can surface that failure as a
// visible warning.
package reflection

import (
	"context"
	"errors"
	"fmt"

	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/core"
)

// Sentinel errors.
var (
	ErrMissingProvenance = errors.New("reflection: trace has no source artifacts to cite as provenance")
	ErrNoJudge           = errors.New("reflection: LLMJudgedEvaluator has no Judge hook configured")
	ErrQuotaExceeded     = errors.New("reflection: llm quota exceeded")
	ErrRateLimited       = errors.New("reflection: llm rate limited")
	ErrModelError        = errors.New("reflection: llm model error")
)

// ReflectionError wraps an underlying error with the operation that
// produced it, mirroring core.StoreError's Op/Err shape.
type ReflectionError struct {
	Op  string
	Err error
}

func (e *ReflectionError) Error() string        { return fmt.Sprintf("reflection: %s: %v", e.Op, e.Err) }
func (e *ReflectionError) Unwrap() error        { return e.Err }
func (e *ReflectionError) Is(target error) bool { return errors.Is(e.Err, target) }

func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ReflectionError{Op: op, Err: err}
}

// OperationKind names the kind of operation an Actor performed.
type OperationKind string

const (
	OpQuery    OperationKind = "query"
	OpToolCall OperationKind = "tool_call"
	OpIngest   OperationKind = "ingest"
)

// Trace is the record an Actor emits after performing an operation: what it
// did, what it touched, how it went, and — when the caller has one — an
// explicit quality signal.
type Trace struct {
	TenantID  string
	Operation OperationKind

	Inputs  map[string]string
	Outputs map[string]string

	// SourceArtifactIDs names the artifacts this operation drew on (e.g. the
	// retrieval result it was given). A reflection, if generated, cites
	// these as provenance; AdjustImportanceByDelta is applied to each.
	SourceArtifactIDs []string

	LatencyMS int64
	TokenCost int

	// Err is set when the operation failed outright (storage error, tool
	// error, timeout). A non-nil Err always evaluates to failure under
	// DeterministicEvaluator.
	Err error

	// ExplicitSignal, when non-nil, is the caller's own success/failure
	// verdict — takes precedence over everything else for
	// DeterministicEvaluator.
	ExplicitSignal *bool

	// QualityScore is a caller-computed quality metric in [0,1], consulted
	// by ThresholdEvaluator.
	QualityScore float64
}

// Verdict classifies a Trace.
type Verdict string

const (
	VerdictSuccess Verdict = "success"
	VerdictFailure Verdict = "failure"
	VerdictNeutral Verdict = "neutral"
)

// ArtifactStore is the narrow slice of core.ArtifactStore the reflection
// engine needs: persist a generated reflective artifact, adjust a source
// artifact's importance, and read back episodic artifacts for hierarchical
// reflection. Declared locally per the module's narrow-capability-interface
// convention (see pkg/retrieval.ArtifactSource) so tests substitute a small
// fake instead of a full SQLite-backed store.
type ArtifactStore interface {
	Upsert(ctx context.Context, a *core.MemoryArtifact) error
	AdjustImportanceByDelta(ctx context.Context, tenantID, id string, delta float64) (float64, error)
	Get(ctx context.Context, tenantID, id string) (*core.MemoryArtifact, error)
	ListByFilter(ctx context.Context, tenantID string, filter *core.ArtifactFilter, limit, offset int) ([]*core.MemoryArtifact, error)
}

// LLMProvider is the outbound "complete(prompt) -> text" collaborator (§6),
// used by the Reflector for prompt-templated generation and by Hierarchical
// for the map/reduce summarization passes. Implementations should wrap
// quota/rate-limit/model errors with ErrQuotaExceeded, ErrRateLimited, or
// ErrModelError so callers can tell retryable failures from terminal ones.
type LLMProvider interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
