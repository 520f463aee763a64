package worker

import (
	"context"
	"time"

	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/core"
	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/decay"
)

// ArtifactLister is the narrow slice of core.ArtifactStore DecayTask
// needs: page through a tenant's artifacts and nudge their importance.
// core.ArtifactStore satisfies this directly.
type ArtifactLister interface {
	ListByFilter(ctx context.Context, tenantID string, filter *core.ArtifactFilter, limit, offset int) ([]*core.MemoryArtifact, error)
	AdjustImportanceByDelta(ctx context.Context, tenantID, id string, delta float64) (float64, error)
}

// DecayTask recomputes and applies importance decay for every artifact in
// a tenant's store, once per run — §4.8 task (1), "importance decay
// (daily)". Idempotent: re-running it against an unchanged store (no new
// accesses, no clock advance) yields the same importance values, since
// decay.Tick is a pure function of an artifact's current state and
// elapsed time.
type DecayTask struct {
	Store    ArtifactLister
	Weights  decay.ImportanceWeights
	BaseRate float64
	Now      func() time.Time
	PageSize int
}

// NewDecayTask builds a DecayTask with the teacher's default seven-factor
// weights and a base decay rate tuned for a daily cadence.
func NewDecayTask(store ArtifactLister) *DecayTask {
	return &DecayTask{
		Store:    store,
		Weights:  decay.DefaultImportanceWeights(),
		BaseRate: 0.02,
		Now:      time.Now,
		PageSize: 500,
	}
}

func (t *DecayTask) Name() TaskName { return TaskDecay }

func (t *DecayTask) Run(ctx context.Context, tenantID string) error {
	now := time.Now
	if t.Now != nil {
		now = t.Now
	}
	pageSize := t.PageSize
	if pageSize <= 0 {
		pageSize = 500
	}

	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			return wrapError("decay_task", err)
		}

		artifacts, err := t.Store.ListByFilter(ctx, tenantID, nil, pageSize, offset)
		if err != nil {
			return wrapError("decay_task", err)
		}
		if len(artifacts) == 0 {
			return nil
		}

		for _, a := range artifacts {
			daysSinceAccess := daysSince(a.LastUsedAt, now())
			in := decay.Inputs{
				Recency:        recencyFor(a, now()),
				AccessCount:    a.UsageCount,
				QueryRelevance: 0, // not tracked per-artifact outside a retrieval request; treated as neutral here
				Rating:         remapRating(a.Rating),
				Consolidated:   a.Consolidated,
				ManualBoost:    0,
			}
			next, err := decay.Tick(in, t.Weights, t.BaseRate, daysSinceAccess)
			if err != nil {
				return wrapError("decay_task", err)
			}

			delta := next - a.Importance
			if delta == 0 {
				continue
			}
			if _, err := t.Store.AdjustImportanceByDelta(ctx, tenantID, a.ID, delta); err != nil {
				return wrapError("decay_task", err)
			}
		}

		if len(artifacts) < pageSize {
			return nil
		}
		offset += pageSize
	}
}

func daysSince(t, now time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return now.Sub(t).Hours() / 24
}

func recencyFor(a *core.MemoryArtifact, now time.Time) float64 {
	ageDays := daysSince(a.LastUsedAt, now)
	if a.LastUsedAt.IsZero() {
		ageDays = daysSince(a.CreatedAt, now)
	}
	return 1.0 / (1.0 + ageDays)
}

// remapRating maps a caller's [-1,1] feedback rating onto [0,1], matching
// decay.Inputs.Rating's documented domain.
func remapRating(rating float64) float64 {
	return (rating + 1) / 2
}
