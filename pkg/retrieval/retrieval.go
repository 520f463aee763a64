// Package retrieval implements the six-stage hybrid retrieval cascade:
// lexical prefilter, short-vector ANN recall, long-vector composite rerank,
// graph expansion, reflective bonus, and final diversity re-ranking. Each
// stage is an explicit function that narrows (or annotates, never panics
// on) the candidate set, so the cascade degrades gracefully instead of
// failing the whole query when one storage dependency misbehaves.
package retrieval

import (
	"errors"
	"fmt"

	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/core"
)

// Sentinel errors.
var (
	ErrTenantRequired = errors.New("tenant_id is required")
	ErrEmptyQuery     = errors.New("query must have text or a short embedding")
)

// RetrievalError wraps an underlying error with the operation that produced
// it, mirroring core.StoreError's Op/Err shape.
type RetrievalError struct {
	Op  string
	Err error
}

func (e *RetrievalError) Error() string        { return fmt.Sprintf("retrieval: %s: %v", e.Op, e.Err) }
func (e *RetrievalError) Unwrap() error        { return e.Err }
func (e *RetrievalError) Is(target error) bool { return errors.Is(e.Err, target) }

func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &RetrievalError{Op: op, Err: err}
}

// Query is the input contract for Pipeline.Retrieve.
type Query struct {
	TenantID string
	Project  string
	Text     string

	// ShortVector is the cheap/local embedding (384-768 dim), already
	// computed by the caller — used for stage 2's ANN recall.
	ShortVector []float32

	// Layers restricts the candidate pool to specific memory layers; empty
	// means all layers.
	Layers []core.Layer
	Filter map[string]string

	KFinal int // desired final result count

	IncludeGraph    bool // whether to run stage 4 (graph expansion) at all
	GraphDepth      int  // 0 uses DefaultGraphDepth
	DiversityLambda float64 // 0 uses DefaultMMRLambda
}

// Result is the pipeline's output contract: a ranked candidate set plus the
// diagnostic annotations required by §7's "result object with a degraded
// flag and a list of skipped_stages".
type Result struct {
	Artifacts     []core.ScoredArtifact
	Degraded      bool
	SkippedStages []string
	Annotations   []StageAnnotationView
}

// StageAnnotationView is a JSON/log-friendly projection of
// resilience.StageAnnotation, kept local to this package so callers outside
// pkg/resilience don't need to import it just to read a retrieval result.
type StageAnnotationView struct {
	Stage   string
	Outcome string
	Reason  string
}
