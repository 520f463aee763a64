// Package rae is the facade package: rae.Engine wires storage, scoring,
// retrieval, reflection, context assembly, the background worker, and
// federation behind a small set of inbound operations, structurally the
// counterpart of pkg/sqvect's DB facade over the same storage engine.
package rae

import (
	"context"
	"errors"
	"time"

	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/reflection"
)

// Re-exported so callers of pkg/rae don't need to import pkg/reflection
// just to test errors.Is against the taxonomy a provider implementation
// is expected to use. These are the same sentinels pkg/reflection already
// defines — pkg/rae doesn't mint a second, near-duplicate taxonomy for the
// same three failure modes.
var (
	ErrQuotaExceeded = reflection.ErrQuotaExceeded
	ErrRateLimited   = reflection.ErrRateLimited
	ErrModelError    = reflection.ErrModelError
)

// ErrProviderUnavailable is returned by Engine operations that need a
// provider (embedding or LLM) the caller never configured.
var ErrProviderUnavailable = errors.New("rae: required provider not configured")

// EmbeddingProvider is the outbound "text -> vector" collaborator (§6).
// Modeled on the embedding-engine seam used elsewhere in the example pack
// for swappable embedding backends: a single Embed for request-path calls,
// an EmbedBatch for bulk ingestion, and Dimensions/Name so the engine can
// validate a tenant's configured model against what the provider actually
// produces. Implementations should wrap quota/rate-limit/model failures
// with ErrQuotaExceeded, ErrRateLimited, or ErrModelError.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Name() string
}

// HealthChecker is an optional capability an EmbeddingProvider or
// LLMProvider can implement so Engine.HealthCheck can report a degraded
// provider before it fails mid-request.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// LLMProvider is the outbound "prompt -> completion" collaborator (§6),
// the same shape pkg/reflection already defines for its own map/reduce and
// single-pass reflection calls. Engine reuses that interface directly
// rather than redefining an identical one at this layer.
type LLMProvider = reflection.LLMProvider

// Clock abstracts wall-clock time so scheduled and decay-sensitive
// operations can be tested deterministically, the same seam pkg/worker's
// tasks already expose informally via a Now func() time.Time field;
// Engine promotes it to a named interface since it's an explicit outbound
// collaborator for this facade (§6).
type Clock interface {
	Now() time.Time
}

// SystemClock is the default Clock, backed by time.Now.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() time.Time { return time.Now() }
