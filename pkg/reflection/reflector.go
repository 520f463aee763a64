package reflection

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/core"
	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/resilience"
)

// PromptTemplateFn renders a trace/verdict pair into the prompt handed to
// LLMProvider.Complete. Grounded on the teacher's hook-injection idiom:
// the package supplies sensible defaults but never hardcodes the prompt
// text a caller can't override.
type PromptTemplateFn func(trace Trace, verdict Verdict) string

// DefaultSuccessTemplate asks the model to explain why an operation went
// well, so the explanation can be repeated.
func DefaultSuccessTemplate(trace Trace, _ Verdict) string {
	return fmt.Sprintf(
		"The following %s operation succeeded.\nInputs: %v\nOutputs: %v\n\n"+
			"Explain concisely what made this succeed, citing which inputs mattered, "+
			"so the same approach can be repeated.",
		trace.Operation, trace.Inputs, trace.Outputs,
	)
}

// DefaultFailureTemplate asks the model to explain why an operation went
// poorly, so the mistake can be avoided.
func DefaultFailureTemplate(trace Trace, _ Verdict) string {
	return fmt.Sprintf(
		"The following %s operation failed.\nInputs: %v\nError: %v\n\n"+
			"Explain concisely what went wrong and how to avoid repeating it.",
		trace.Operation, trace.Inputs, trace.Err,
	)
}

// Reflector turns a success/failure verdict into a provenance-citing
// reflective artifact and proposes importance updates to the artifacts
// the operation drew on. Grounded on hindsight.System.Reflect's
// recall-then-format shape, generalized from "format memories into
// context" to "generate and persist a new reflective artifact".
type Reflector struct {
	Store           ArtifactStore
	LLM             LLMProvider
	ReflectionIndex *ReflectionIndex
	Fingerprints    *FingerprintIndex
	Logger          core.Logger
	Config          Config

	SuccessTemplate PromptTemplateFn
	FailureTemplate PromptTemplateFn
}

// NewReflector builds a Reflector with the default prompt templates and
// config. ReflectionIndex and Fingerprints may be set afterward; both are
// optional (a Reflector with neither still persists artifacts and applies
// importance deltas, it just doesn't feed retrieval's stage 5 or Szubar
// mode).
func NewReflector(store ArtifactStore, llm LLMProvider, logger core.Logger) *Reflector {
	if logger == nil {
		logger = core.NopLogger()
	}
	return &Reflector{
		Store:           store,
		LLM:             llm,
		Logger:          logger,
		Config:          DefaultConfig(),
		SuccessTemplate: DefaultSuccessTemplate,
		FailureTemplate: DefaultFailureTemplate,
	}
}

// Reflect generates and persists a reflective artifact for a success or
// failure verdict. Neutral traces are archived without reflection (return
// nil, nil). Per §4.6's failure semantics, a persistently failing LLM call
// is not an error — it simply produces no reflection, logged as a
// structured warning, and the caller's enclosing operation continues.
func (r *Reflector) Reflect(ctx context.Context, trace Trace, verdict Verdict) (*core.MemoryArtifact, error) {
	if verdict == VerdictNeutral {
		return nil, nil
	}
	if len(trace.SourceArtifactIDs) == 0 {
		return nil, wrapError("reflect", ErrMissingProvenance)
	}
	cfg := r.Config.withDefaults()

	template := r.SuccessTemplate
	if verdict == VerdictFailure {
		template = r.FailureTemplate
	}
	if template == nil {
		if verdict == VerdictSuccess {
			template = DefaultSuccessTemplate
		} else {
			template = DefaultFailureTemplate
		}
	}
	prompt := template(trace, verdict)

	var content string
	err := resilience.Retry(ctx, resilience.LLMRetryConfig(), func() error {
		out, err := r.LLM.Complete(ctx, prompt)
		if err != nil {
			return err
		}
		content = out
		return nil
	})
	if err != nil {
		r.Logger.Warn("reflection: llm call failed persistently, skipping reflection",
			"operation", trace.Operation, "verdict", verdict, "error", err)
		return nil, nil
	}

	now := time.Now()
	artifact := &core.MemoryArtifact{
		ID:         uuid.New().String(),
		TenantID:   trace.TenantID,
		Layer:      core.LayerReflective,
		Content:    content,
		Provenance: append([]string(nil), trace.SourceArtifactIDs...),
		Importance: cfg.InitialReflectiveImportance,
		TokenCount: len(content) / 4,
		CreatedAt:  now,
		UpdatedAt:  now,
		LastUsedAt: now,
	}
	if err := r.Store.Upsert(ctx, artifact); err != nil {
		return nil, wrapError("reflect", err)
	}

	// §4.6: reinforce on success, neutral-to-mild-demote on failure, never
	// erase — AdjustImportanceByDelta's floor at 0.01 enforces "never erase".
	// Each source gets its own atomic adjustment; §5 calls for the
	// reflection + boost + fingerprint to land as one transaction, which
	// would require cross-aggregate transaction support ArtifactStore
	// doesn't expose, so this applies them sequentially and logs rather
	// than aborting if one source's adjustment fails (see DESIGN.md).
	delta := cfg.ReinforceDelta
	if verdict == VerdictFailure {
		delta = cfg.DemoteDelta
	}
	for _, sourceID := range trace.SourceArtifactIDs {
		if _, err := r.Store.AdjustImportanceByDelta(ctx, trace.TenantID, sourceID, delta); err != nil {
			r.Logger.Warn("reflection: failed to adjust source importance",
				"source_id", sourceID, "error", err)
		}
	}

	if r.ReflectionIndex != nil {
		r.ReflectionIndex.Record(trace.TenantID, trace.SourceArtifactIDs, verdict)
	}
	if verdict == VerdictFailure && r.Fingerprints != nil {
		r.Fingerprints.Record(trace.TenantID, NormalizeTrace(trace), artifact.ID)
	}

	return artifact, nil
}
