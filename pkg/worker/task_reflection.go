package worker

import (
	"context"

	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/reflection"
)

// ReflectionTask runs one hierarchical-reflection pass per tenant —
// §4.8 task (2), "hierarchical reflection (configurable, default every N
// hours)". Idempotent in the sense §4.6 intends: each run only consumes
// episodic artifacts still present at run time, so a run that finds
// nothing new to cluster persists nothing.
type ReflectionTask struct {
	Hierarchical *reflection.Hierarchical
}

// NewReflectionTask wraps an already-configured Hierarchical runner.
func NewReflectionTask(h *reflection.Hierarchical) *ReflectionTask {
	return &ReflectionTask{Hierarchical: h}
}

func (t *ReflectionTask) Name() TaskName { return TaskReflection }

func (t *ReflectionTask) Run(ctx context.Context, tenantID string) error {
	_, err := t.Hierarchical.Run(ctx, tenantID)
	if err != nil {
		return wrapError("reflection_task", err)
	}
	return nil
}
