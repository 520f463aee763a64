package retrieval

import (
	"context"
	"time"

	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/core"
	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/resilience"
	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/scoring"
)

// Pipeline runs the six-stage retrieval cascade for one tenant request. It
// holds no per-request mutable state, so a single Pipeline is safely shared
// across concurrent requests (§5's "scoring engine ... stateless and freely
// shared"); the only stateful dependency, Bandit, manages its own per-tenant
// locking.
type Pipeline struct {
	Store      ArtifactSource
	Graph      GraphSource
	Bandit     *scoring.BanditStore
	Reflection ReflectiveBonusSource
	Embedder   EmbeddingProvider
	Logger     core.Logger
	Config     Config

	// Reranker is an optional cross-encoder hook run after stage 6's MMR
	// re-order; see RerankerFn.
	Reranker RerankerFn

	// Now is the injectable "current time" used by stage 3's recency
	// sub-score, following the same Now func() time.Time pattern as
	// pkg/worker's tasks. Defaults to time.Now in NewPipeline. Tests pin
	// it to a fixed instant to exercise §8's "Silicon Oracle" determinism
	// property without a query's ranking drifting between two calls a
	// few seconds apart.
	Now func() time.Time
}

// NewPipeline builds a Pipeline, filling unset Config fields with defaults
// and Reflection with NoReflection if the caller hasn't wired
// pkg/reflection yet.
func NewPipeline(store ArtifactSource, g GraphSource, bandit *scoring.BanditStore, logger core.Logger) *Pipeline {
	if logger == nil {
		logger = core.NopLogger()
	}
	if bandit == nil {
		bandit = scoring.NewBanditStore()
	}
	return &Pipeline{
		Store:      store,
		Graph:      g,
		Bandit:     bandit,
		Reflection: NoReflection{},
		Logger:     logger,
		Config:     DefaultConfig(),
		Now:        time.Now,
	}
}

// candidate is the pipeline's internal working representation: an artifact
// plus the sub-scores accumulated for it so far. Converted to
// core.ScoredArtifact only at the end of the cascade.
type candidate struct {
	artifact  core.MemoryArtifact
	sub       scoring.SubScores
	composite float64
}

// Retrieve runs the full cascade and returns a ranked, annotated result.
func (p *Pipeline) Retrieve(ctx context.Context, q Query) (*Result, error) {
	if q.TenantID == "" {
		return nil, wrapError("retrieve", ErrTenantRequired)
	}
	if q.Text == "" && len(q.ShortVector) == 0 {
		return nil, wrapError("retrieve", ErrEmptyQuery)
	}
	if q.KFinal <= 0 {
		q.KFinal = 10
	}
	cfg := p.Config.withDefaults()
	if q.GraphDepth <= 0 {
		q.GraphDepth = cfg.GraphDepth
	}
	if q.DiversityLambda <= 0 {
		q.DiversityLambda = cfg.MMRLambda
	}

	result := &Result{}
	p.Bandit.RecordQuery(q.TenantID)
	weights := p.Bandit.Weights(q.TenantID)

	// Stage 1: lexical prefilter.
	var stage1 []core.ScoredArtifact
	annotation := resilience.RunStage(ctx, "lexical_prefilter", func() error {
		res, err := p.lexicalPrefilter(ctx, q, cfg.K1)
		if err != nil {
			return err
		}
		stage1 = res
		return nil
	})
	p.record(result, annotation)
	if annotation.Outcome == resilience.StageOutcomeSkipped {
		stage1 = nil
	}

	// Stage 2: short-vector ANN recall, intersected with stage 1.
	var stage2 []core.ScoredArtifact
	if len(q.ShortVector) > 0 {
		annotation = resilience.RunStage(ctx, "short_vector_recall", func() error {
			res, err := p.shortVectorRecall(ctx, q, cfg.K2)
			if err != nil {
				return err
			}
			stage2 = res
			return nil
		})
		p.record(result, annotation)
		if annotation.Outcome == resilience.StageOutcomeSkipped {
			stage2 = nil
		}
	}
	merged := intersectOrUnion(stage1, stage2, q.KFinal)
	if len(merged) == 0 {
		return result, nil
	}

	// Stage 3: long-vector rerank with the full six-factor composite.
	candidates := p.toCandidates(merged)
	var degradedReason string
	annotation = resilience.RunStage(ctx, "long_vector_rerank", func() error {
		reason, err := p.longVectorRerank(ctx, q, weights, candidates)
		degradedReason = reason
		return err
	})
	if annotation.Outcome == resilience.StageOutcomeOK && degradedReason != "" {
		annotation = resilience.Degraded("long_vector_rerank", degradedReason)
	}
	p.record(result, annotation)
	sortCandidates(candidates)
	if len(candidates) > cfg.K3 {
		candidates = candidates[:cfg.K3]
	}

	// Stage 4: graph expansion (resonance induction).
	if q.IncludeGraph && p.Graph != nil {
		annotation = resilience.RunStage(ctx, "graph_expansion", func() error {
			expanded, err := p.graphExpansion(ctx, q, weights, candidates, cfg)
			if err != nil {
				return err
			}
			candidates = expanded
			return nil
		})
		p.record(result, annotation)
	}

	// Stage 5: reflective bonus (Szubar mode).
	p.reflectiveBonus(ctx, q, cfg, candidates)

	// Stage 6: final ranking + diversity re-order.
	sortCandidates(candidates)
	final := p.diversityRerank(candidates, q.DiversityLambda)
	if len(final) > q.KFinal {
		final = final[:q.KFinal]
	}

	result.Artifacts = p.applyReranker(ctx, q.Text, toScoredArtifacts(final))
	return result, nil
}

func (p *Pipeline) record(r *Result, a resilience.StageAnnotation) {
	r.Annotations = append(r.Annotations, StageAnnotationView{
		Stage: a.Stage, Outcome: string(a.Outcome), Reason: a.Reason,
	})
	if a.Outcome != resilience.StageOutcomeOK {
		r.Degraded = true
	}
	if a.Outcome == resilience.StageOutcomeSkipped {
		r.SkippedStages = append(r.SkippedStages, a.Stage)
	}
}

func (p *Pipeline) toCandidates(in []core.ScoredArtifact) []*candidate {
	out := make([]*candidate, 0, len(in))
	for _, a := range in {
		out = append(out, &candidate{artifact: a.MemoryArtifact})
	}
	return out
}

func toScoredArtifacts(cs []*candidate) []core.ScoredArtifact {
	out := make([]core.ScoredArtifact, 0, len(cs))
	for _, c := range cs {
		out = append(out, core.ScoredArtifact{MemoryArtifact: c.artifact, Score: c.composite})
	}
	return out
}

func sortCandidates(cs []*candidate) {
	rows := make([]scoring.Candidate, len(cs))
	idx := make(map[string]*candidate, len(cs))
	for i, c := range cs {
		rows[i] = scoring.Candidate{
			ID:         c.artifact.ID,
			Importance: c.artifact.Importance,
			CreatedAt:  c.artifact.CreatedAt.Unix(),
			Composite:  c.composite,
			SubScores:  c.sub,
		}
		idx[c.artifact.ID] = c
	}
	scoring.SortCandidates(rows)
	for i, r := range rows {
		cs[i] = idx[r.ID]
	}
}

// daysSince computes the age of t in days relative to now, the pipeline's
// injected clock — never time.Now() directly, so that two Retrieve calls
// over a frozen storage state agree on every sub-score, including Recency
// (§8's Silicon Oracle determinism property).
func daysSince(now, t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return now.Sub(t).Hours() / 24
}
