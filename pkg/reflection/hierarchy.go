package reflection

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/core"
	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/resilience"
)

// Hierarchical runs periodic hierarchical reflection: cluster recent
// episodic artifacts into buckets by semantic similarity, summarize each
// bucket (map phase), then summarize the bucket summaries into a single
// higher-order reflective artifact (reduce phase). Grounded on
// hindsight.System.detectPatterns/generalizeFromMemories's grouping
// pattern, generalized from in-memory heuristics to an LLM-backed
// map/reduce.
type Hierarchical struct {
	Store  ArtifactStore
	LLM    LLMProvider
	Logger core.Logger
	Config Config
}

// NewHierarchical builds a Hierarchical runner with default config.
func NewHierarchical(store ArtifactStore, llm LLMProvider, logger core.Logger) *Hierarchical {
	if logger == nil {
		logger = core.NopLogger()
	}
	return &Hierarchical{Store: store, LLM: llm, Logger: logger, Config: DefaultConfig()}
}

// Run performs one hierarchical-reflection pass for tenantID. It reads up
// to Config.MaxEpisodesPerRun episodic artifacts, buckets them
// (Config.BucketSize per bucket), summarizes each bucket, reduces the
// summaries into one artifact whose provenance is the union of every
// bucket member's id, and persists it. Returns (nil, nil) if there are no
// episodes to reflect on, or if every bucket's LLM call fails persistently
// (§4.6's "persistent failure produces no reflection, not an error").
func (h *Hierarchical) Run(ctx context.Context, tenantID string) (*core.MemoryArtifact, error) {
	cfg := h.Config.withDefaults()

	filter := core.NewMetadataFilter().Equal("layer", string(core.LayerEpisodic))
	episodes, err := h.Store.ListByFilter(ctx, tenantID, filter, cfg.MaxEpisodesPerRun, 0)
	if err != nil {
		return nil, wrapError("hierarchical_reflect", err)
	}
	if len(episodes) == 0 {
		return nil, nil
	}

	buckets := bucketBySimilarity(episodes, cfg.BucketSize)

	var bucketSummaries []string
	var provenance []string
	for i, bucket := range buckets {
		prompt := bucketPrompt(bucket)
		var summary string
		err := resilience.Retry(ctx, resilience.LLMRetryConfig(), func() error {
			out, err := h.LLM.Complete(ctx, prompt)
			if err != nil {
				return err
			}
			summary = out
			return nil
		})
		if err != nil {
			h.Logger.Warn("hierarchical reflection: bucket summarize failed persistently, skipping bucket",
				"tenant_id", tenantID, "bucket", i, "error", err)
			continue
		}
		bucketSummaries = append(bucketSummaries, summary)
		for _, e := range bucket {
			provenance = append(provenance, e.ID)
		}
	}
	if len(bucketSummaries) == 0 {
		return nil, nil
	}

	var reduced string
	err = resilience.Retry(ctx, resilience.LLMRetryConfig(), func() error {
		out, err := h.LLM.Complete(ctx, reducePrompt(bucketSummaries))
		if err != nil {
			return err
		}
		reduced = out
		return nil
	})
	if err != nil {
		h.Logger.Warn("hierarchical reflection: reduce phase failed persistently, no artifact produced",
			"tenant_id", tenantID, "error", err)
		return nil, nil
	}

	now := time.Now()
	artifact := &core.MemoryArtifact{
		ID:         uuid.New().String(),
		TenantID:   tenantID,
		Layer:      core.LayerReflective,
		Content:    reduced,
		Provenance: provenance,
		Importance: cfg.InitialReflectiveImportance,
		TokenCount: len(reduced) / 4,
		CreatedAt:  now,
		UpdatedAt:  now,
		LastUsedAt: now,
	}
	if err := h.Store.Upsert(ctx, artifact); err != nil {
		return nil, wrapError("hierarchical_reflect", err)
	}
	return artifact, nil
}

// bucketBySimilarity greedily groups episodes into buckets of up to
// bucketSize, each seeded by an unassigned episode and filled with its
// nearest unassigned neighbors by short-vector cosine similarity. Cheap
// enough at the ≤100-episode ceiling §4.6 sets for a single run.
func bucketBySimilarity(episodes []*core.MemoryArtifact, bucketSize int) [][]*core.MemoryArtifact {
	if bucketSize <= 0 {
		bucketSize = 10
	}
	remaining := append([]*core.MemoryArtifact(nil), episodes...)

	var buckets [][]*core.MemoryArtifact
	for len(remaining) > 0 {
		seed := remaining[0]
		rest := remaining[1:]

		type scored struct {
			artifact *core.MemoryArtifact
			sim      float64
		}
		scoredRest := make([]scored, len(rest))
		for i, a := range rest {
			scoredRest[i] = scored{a, cosineSim(seed.Vector, a.Vector)}
		}
		sort.SliceStable(scoredRest, func(i, j int) bool { return scoredRest[i].sim > scoredRest[j].sim })

		take := bucketSize - 1
		if take > len(scoredRest) {
			take = len(scoredRest)
		}
		bucket := make([]*core.MemoryArtifact, 0, take+1)
		bucket = append(bucket, seed)
		chosen := make(map[string]bool, take)
		for i := 0; i < take; i++ {
			bucket = append(bucket, scoredRest[i].artifact)
			chosen[scoredRest[i].artifact.ID] = true
		}
		buckets = append(buckets, bucket)

		next := make([]*core.MemoryArtifact, 0, len(rest)-take)
		for _, a := range rest {
			if !chosen[a.ID] {
				next = append(next, a)
			}
		}
		remaining = next
	}
	return buckets
}

func cosineSim(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func bucketPrompt(bucket []*core.MemoryArtifact) string {
	var b strings.Builder
	b.WriteString("Summarize the common theme across these related episodic memories:\n")
	for _, a := range bucket {
		b.WriteString(fmt.Sprintf("- %s\n", a.Content))
	}
	return b.String()
}

func reducePrompt(summaries []string) string {
	var b strings.Builder
	b.WriteString("Synthesize a single higher-order insight from these bucket summaries:\n")
	for _, s := range summaries {
		b.WriteString(fmt.Sprintf("- %s\n", s))
	}
	return b.String()
}
