// Package raeconfig defines the per-tenant configuration surface for the
// engine: plain structs with Validate() methods, following core.Config /
// core.DefaultConfig's idiom. A Config is meant to be validated once, at
// construction time (rae.Open), never lazily at first use — per §7, a
// misconfigured weight set or an unknown model name is a construction-time
// error, not a runtime surprise three calls later.
package raeconfig

import (
	"errors"
	"fmt"
	"time"

	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/decay"
	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/retrieval"
	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/scoring"
)

// Sentinel errors, matched with errors.Is rather than string comparison.
var (
	ErrMissingTenantID    = errors.New("tenant ID is required")
	ErrUnknownEmbedModel  = errors.New("unknown embedding model")
	ErrInvalidRetention   = errors.New("retention must be positive")
	ErrInvalidBaseRate    = errors.New("decay base rate must be in (0,1)")
	ErrInvalidTokenTTL    = errors.New("federation token TTL must be positive")
	ErrInvalidBudget      = errors.New("default context budget must be positive")
)

// ConfigError wraps an underlying error with the operation that produced
// it, mirroring core.StoreError's Op/Err shape.
type ConfigError struct {
	Op  string
	Err error
}

func (e *ConfigError) Error() string  { return fmt.Sprintf("raeconfig: %s: %v", e.Op, e.Err) }
func (e *ConfigError) Unwrap() error  { return e.Err }
func (e *ConfigError) Is(t error) bool { return errors.Is(e.Err, t) }

func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ConfigError{Op: op, Err: err}
}

// WorkerSchedules bundles the three maintenance task cron expressions plus
// the episodic retention window, mirroring pkg/worker's Default* consts.
type WorkerSchedules struct {
	DecaySchedule      string
	ReflectionSchedule string
	PruneSchedule      string
	EpisodicRetention  time.Duration
}

// Config is the per-tenant configuration surface. A zero-value Config is
// never valid on its own; use DefaultConfig and override only the fields a
// tenant needs to diverge on.
type Config struct {
	TenantID string

	// EmbedModel names the embedding model this tenant's vectors were
	// produced with; rae.Open rejects an unrecognized name immediately
	// rather than discovering a dimension mismatch on first Store call.
	EmbedModel string

	Retrieval retrieval.Config
	Scoring   scoring.ScoringWeights
	Decay     decay.ImportanceWeights
	DecayBaseRate float64

	FederationTokenTTL time.Duration

	Worker WorkerSchedules

	// DefaultContextBudget is the token budget pkg/assembler falls back to
	// when a caller of AssembleContext doesn't specify one.
	DefaultContextBudget int
}

// knownEmbedModels is the construction-time allowlist; a caller that wires
// in additional providers extends it with RegisterEmbedModel. An empty EmbedModel is allowed (meaning "caller supplies
// vectors directly, no engine-managed embedding").
var knownEmbedModels = map[string]bool{
	"":                  true,
	"text-embedding-3-small": true,
	"text-embedding-3-large": true,
	"local-minilm":      true,
}

// RegisterEmbedModel adds name to the construction-time allowlist, for
// deployments wiring in a provider DefaultConfig doesn't know about.
func RegisterEmbedModel(name string) {
	knownEmbedModels[name] = true
}

// DefaultConfig returns a Config populated entirely from the other
// packages' own Default* constructors — no values invented here.
func DefaultConfig(tenantID string) Config {
	return Config{
		TenantID:             tenantID,
		EmbedModel:           "",
		Retrieval:            retrieval.DefaultConfig(),
		Scoring:              scoring.DefaultWeights(),
		Decay:                decay.DefaultImportanceWeights(),
		DecayBaseRate:        0.02,
		FederationTokenTTL:   5 * time.Minute,
		Worker: WorkerSchedules{
			DecaySchedule:      "0 3 * * *",
			ReflectionSchedule: "0 */6 * * *",
			PruneSchedule:      "30 3 * * *",
			EpisodicRetention:  30 * 24 * time.Hour,
		},
		DefaultContextBudget: 4000,
	}
}

// Validate checks every field for internal consistency, delegating to each
// sub-struct's own Validate where one exists. Call this once, at
// construction time.
func (c Config) Validate() error {
	if c.TenantID == "" {
		return wrapError("validate", ErrMissingTenantID)
	}
	if !knownEmbedModels[c.EmbedModel] {
		return wrapError("validate", fmt.Errorf("%w: %q", ErrUnknownEmbedModel, c.EmbedModel))
	}
	if err := c.Scoring.Validate(); err != nil {
		return wrapError("validate", err)
	}
	if err := c.Decay.Validate(); err != nil {
		return wrapError("validate", err)
	}
	if c.DecayBaseRate <= 0 || c.DecayBaseRate >= 1 {
		return wrapError("validate", fmt.Errorf("%w: got %v", ErrInvalidBaseRate, c.DecayBaseRate))
	}
	if c.FederationTokenTTL <= 0 {
		return wrapError("validate", ErrInvalidTokenTTL)
	}
	if c.Worker.EpisodicRetention <= 0 {
		return wrapError("validate", ErrInvalidRetention)
	}
	if c.DefaultContextBudget <= 0 {
		return wrapError("validate", ErrInvalidBudget)
	}
	return nil
}
