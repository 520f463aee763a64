package rae

import (
	"context"

	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/assembler"
	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/core"
	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/federation"
	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/graph"
	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/reflection"
	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/resilience"
	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/retrieval"
	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/worker"
)

// Store upserts artifact for tenantID, embedding its content first if the
// caller didn't supply a vector and an EmbeddingProvider is configured.
// Per §7, the embedding call is retried up to 3x with backoff before
// failing the whole Store call — embedding isn't a "skip the feature"
// concern here, since without a vector the artifact can never be
// recalled by similarity search.
func (e *Engine) Store(ctx context.Context, tenantID string, artifact *core.MemoryArtifact) (string, error) {
	if artifact.ID == "" {
		artifact.ID = newArtifactID()
	}
	artifact.TenantID = tenantID

	if len(artifact.Vector) == 0 {
		if e.embedder == nil {
			return "", wrapError("store", ErrProviderUnavailable)
		}
		var vec []float32
		err := resilience.Retry(ctx, resilience.DefaultRetryConfig(), func() error {
			v, err := e.embedder.Embed(ctx, artifact.Content)
			if err != nil {
				return err
			}
			vec = v
			return nil
		})
		if err != nil {
			return "", wrapError("store", err)
		}
		artifact.Vector = vec
	}

	if err := e.store.Upsert(ctx, artifact); err != nil {
		return "", wrapError("store", err)
	}
	return artifact.ID, nil
}

// SetAutoRetain configures AddMessage's windowed auto-extraction policy. By
// default auto-retain is disabled and AddMessage behaves as a plain
// synchronous Store. When enabled, reaching the trigger threshold fires the
// configured WithGraphExtractor hook over the recent window in the
// background, without blocking the caller.
func (e *Engine) SetAutoRetain(cfg reflection.AutoRetainConfig) {
	e.actor.SetAutoRetain(cfg)
	if e.extractor != nil {
		e.actor.SetWindowFn(func(ctx context.Context, tenantID string, window []*core.MemoryArtifact) error {
			for _, a := range window {
				if _, err := e.extractor.Extract(ctx, tenantID, a.ID, a.Content); err != nil {
					return err
				}
			}
			return nil
		})
	}
}

// AddMessage stores artifact as an episodic artifact for tenantID, the
// ingest-side convenience for feeding a chat loop's message stream straight
// into episodic storage without manually chunking it for extraction (§12).
// Auto-retain, if configured via SetAutoRetain, fires asynchronously and
// never surfaces its errors to the caller.
func (e *Engine) AddMessage(ctx context.Context, tenantID string, artifact *core.MemoryArtifact) (string, error) {
	id, err := e.actor.AddMessage(ctx, tenantID, artifact)
	if err != nil {
		return "", wrapError("add_message", err)
	}
	return id, nil
}

// Retrieve runs the retrieval cascade for q, embedding q.Text into
// q.ShortVector first if the caller left it empty and an EmbeddingProvider
// is configured. A classifier/embedder failure here is fatal to the call
// (unlike pkg/assembler's complexity signal) since stage 2 cannot recall
// anything without a vector.
func (e *Engine) Retrieve(ctx context.Context, q retrieval.Query) (*retrieval.Result, error) {
	if len(q.ShortVector) == 0 && q.Text != "" && e.embedder != nil {
		vec, err := e.embedder.Embed(ctx, q.Text)
		if err != nil {
			return nil, wrapError("retrieve", err)
		}
		q.ShortVector = vec
	}

	// Pipeline holds no per-request mutable state (see retrieval.Pipeline's
	// doc comment), so a shallow copy with a tenant-specific cascade
	// Config is safe to run concurrently with the shared *Pipeline — this
	// is how a tenant's raeconfig.Config.Retrieval overrides actually
	// reach the cascade, rather than every tenant sharing one global K1/K2/K3.
	pipeline := e.retrieval
	if tc, ok := e.TenantConfig(q.TenantID); ok {
		p := *e.retrieval
		p.Config = tc.Retrieval
		pipeline = &p
	}

	result, err := pipeline.Retrieve(ctx, q)
	if err != nil {
		return nil, wrapError("retrieve", err)
	}
	return result, nil
}

// AssembleContext runs the information-bottleneck context assembler over a
// Retrieve result's artifacts.
func (e *Engine) AssembleContext(ctx context.Context, query string, result *retrieval.Result, opts assembler.Options) (*assembler.AssembledContext, error) {
	candidates := make([]assembler.Candidate, 0, len(result.Artifacts))
	for _, a := range result.Artifacts {
		candidates = append(candidates, assembler.FromScored(a))
	}
	out, err := e.assembler.Assemble(ctx, query, candidates, opts)
	if err != nil {
		return nil, wrapError("assemble_context", err)
	}
	return out, nil
}

// Reflect runs one on-demand hierarchical reflection pass for tenantID.
// Returns ErrProviderUnavailable if no LLMProvider was configured via
// WithLLM.
func (e *Engine) Reflect(ctx context.Context, tenantID string) (*core.MemoryArtifact, error) {
	if e.reflection == nil {
		return nil, wrapError("reflect", ErrProviderUnavailable)
	}
	artifact, err := e.reflection.Run(ctx, tenantID)
	if err != nil {
		return nil, wrapError("reflect", err)
	}
	return artifact, nil
}

// ExtractGraph turns text into graph triples via the configured extractor
// hook. Returns ErrProviderUnavailable if no hook was configured via
// WithGraphExtractor.
func (e *Engine) ExtractGraph(ctx context.Context, tenantID, sourceID, text string) (*graph.ExtractResult, error) {
	if e.extractor == nil {
		return nil, wrapError("extract_graph", ErrProviderUnavailable)
	}
	result, err := e.extractor.Extract(ctx, tenantID, sourceID, text)
	if err != nil {
		return nil, wrapError("extract_graph", err)
	}
	return result, nil
}

// FederateQuery issues req to peerID via the configured Transport
// (SetFederationTransport), returning the peer's candidates. A refused or
// untrusted peer yields an empty result (see federation.Requester.Query),
// not an error.
func (e *Engine) FederateQuery(ctx context.Context, peerID federation.PeerID, req federation.QueryRequest) ([]federation.Candidate, error) {
	candidates, err := e.federationRequester.Query(ctx, peerID, req)
	if err != nil {
		return nil, wrapError("federate_query", err)
	}
	return candidates, nil
}

// HandleFederatedQuery answers an inbound query from a peer for tenantID,
// honoring the refusal policy and local retriever this Engine was
// configured with.
func (e *Engine) HandleFederatedQuery(ctx context.Context, tenantID string, req federation.QueryRequest) (*federation.QueryResponse, error) {
	resp, err := e.federationServer.HandleQuery(ctx, tenantID, req)
	if err != nil {
		return nil, wrapError("handle_federated_query", err)
	}
	return resp, nil
}

// StartWorkers registers and starts the three background maintenance
// tasks (§4.8) against every tenant SetTenantConfig has registered so far.
// reflectionSchedule overrides the default "every 6 hours" cron
// expression; pass "" to keep the default. Safe to call once per Engine
// lifetime; call StopWorkers before process shutdown.
func (e *Engine) StartWorkers(ctx context.Context, reflectionSchedule string) error {
	decayTask := worker.NewDecayTask(e.store)
	pruneTask := worker.NewPruneTask(e.store)

	var reflectionTask worker.Task
	if e.reflection != nil {
		reflectionTask = worker.NewReflectionTask(e.reflection)
	} else {
		// No LLMProvider configured: reflection has nothing to run, but
		// decay and pruning still need to proceed on schedule.
		reflectionTask = noopTask{}
	}

	if err := e.scheduler.RegisterDefaults(ctx, decayTask, reflectionTask, pruneTask, reflectionSchedule); err != nil {
		return wrapError("start_workers", err)
	}
	e.scheduler.Start()
	return nil
}

// StopWorkers stops the background scheduler, waiting up to ctx's
// deadline for any in-flight task run to finish.
func (e *Engine) StopWorkers(ctx context.Context) error {
	if err := e.scheduler.Stop(ctx); err != nil {
		return wrapError("stop_workers", err)
	}
	return nil
}

// noopTask is a worker.Task that never does anything, used to keep
// StartWorkers's three-task registration uniform when reflection has no
// LLMProvider to run against.
type noopTask struct{}

func (noopTask) Name() worker.TaskName                             { return worker.TaskReflection }
func (noopTask) Run(context.Context, string) error                 { return nil }

// HealthCheck reports whether every configured provider that implements
// HealthChecker is currently healthy.
func (e *Engine) HealthCheck(ctx context.Context) error {
	if hc, ok := e.embedder.(HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return wrapError("health_check", err)
		}
	}
	return nil
}
