package worker

import (
	"context"
	"time"

	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/core"
)

// DefaultEpisodicRetention is how long an episodic artifact survives
// before PruneTask deletes it, absent any later consolidation into a
// semantic or reflective artifact.
const DefaultEpisodicRetention = 30 * 24 * time.Hour

// ArtifactDeleter is the narrow slice of core.ArtifactStore PruneTask
// needs. core.ArtifactStore satisfies this directly.
type ArtifactDeleter interface {
	DeleteByFilter(ctx context.Context, tenantID string, filter *core.ArtifactFilter) error
}

// PruneTask deletes episodic artifacts older than Retention that were
// never consolidated — §4.8 task (3), "pruning of episodic artifacts
// beyond retention (daily)". Idempotent: the filter only ever matches
// artifacts still past the cutoff, so a second run with no new writes
// deletes nothing further.
type PruneTask struct {
	Store     ArtifactDeleter
	Retention time.Duration
	Now       func() time.Time
}

// NewPruneTask builds a PruneTask using DefaultEpisodicRetention.
func NewPruneTask(store ArtifactDeleter) *PruneTask {
	return &PruneTask{Store: store, Retention: DefaultEpisodicRetention, Now: time.Now}
}

func (t *PruneTask) Name() TaskName { return TaskPrune }

func (t *PruneTask) Run(ctx context.Context, tenantID string) error {
	now := time.Now
	if t.Now != nil {
		now = t.Now
	}
	retention := t.Retention
	if retention <= 0 {
		retention = DefaultEpisodicRetention
	}
	cutoff := now().Add(-retention)

	filter := core.NewMetadataFilter().
		Equal("layer", string(core.LayerEpisodic)).
		Equal("consolidated", false).
		LessThan("created_at", cutoff)

	if err := t.Store.DeleteByFilter(ctx, tenantID, filter); err != nil {
		return wrapError("prune_task", err)
	}
	return nil
}
