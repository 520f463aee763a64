package worker

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/core"
)

// Default cron schedules per §4.8: decay and pruning run daily; reflection
// runs on a configurable cadence, default every 6 hours.
const (
	DefaultDecaySchedule      = "0 3 * * *"
	DefaultPruneSchedule      = "30 3 * * *"
	DefaultReflectionSchedule = "0 */6 * * *"
)

// cronJob adapts a (Runner, Task) pair into a cron.Job, so the scheduler
// never needs to know task internals beyond the Task interface.
type cronJob struct {
	ctx    context.Context
	runner *Runner
	task   Task
}

func (j cronJob) Run() {
	_ = j.runner.RunAll(j.ctx, j.task)
}

// Scheduler drives the cron.Cron loop that fires each registered Task on
// its schedule, grounded on the teacher's automation Scheduler (a
// long-lived struct owning the trigger map and a stop channel) adapted
// from a hand-rolled "parse common cron patterns" loop to a real
// github.com/robfig/cron/v3 engine, since this package has no existing
// on-chain trigger semantics to preserve.
type Scheduler struct {
	cron   *cron.Cron
	runner *Runner
	logger core.Logger
}

// NewScheduler builds a Scheduler backed by runner. ctx is the base
// context passed to every task run; cancelling it propagates into any
// task's own ctx.Done() checks (§5: "background tasks check cancellation
// between phases").
func NewScheduler(runner *Runner) *Scheduler {
	logger := runner.Logger
	if logger == nil {
		logger = core.NopLogger()
	}
	return &Scheduler{
		cron:   cron.New(),
		runner: runner,
		logger: logger,
	}
}

// Register schedules task to run on the given standard 5-field cron
// expression. Returns the cron.EntryID for later inspection, or an error
// if the expression doesn't parse.
func (s *Scheduler) Register(ctx context.Context, schedule string, task Task) (cron.EntryID, error) {
	id, err := s.cron.AddJob(schedule, cronJob{ctx: ctx, runner: s.runner, task: task})
	if err != nil {
		return 0, wrapError("register_task", fmt.Errorf("parse schedule %q: %w", schedule, err))
	}
	return id, nil
}

// RegisterDefaults wires the three standard maintenance tasks onto their
// §4.8 default schedules. reflectionSchedule overrides the reflection
// cadence when non-empty, since §4.8 calls that one "configurable".
func (s *Scheduler) RegisterDefaults(ctx context.Context, decay, reflection, prune Task, reflectionSchedule string) error {
	if _, err := s.Register(ctx, DefaultDecaySchedule, decay); err != nil {
		return err
	}
	schedule := reflectionSchedule
	if schedule == "" {
		schedule = DefaultReflectionSchedule
	}
	if _, err := s.Register(ctx, schedule, reflection); err != nil {
		return err
	}
	if _, err := s.Register(ctx, DefaultPruneSchedule, prune); err != nil {
		return err
	}
	return nil
}

// Start begins the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	s.logger.Info("worker scheduler starting")
	s.cron.Start()
}

// Stop halts the cron loop and blocks until any in-flight job completes or
// ctx is cancelled.
func (s *Scheduler) Stop(ctx context.Context) error {
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
		s.logger.Info("worker scheduler stopped")
		return nil
	case <-ctx.Done():
		return wrapError("stop_scheduler", ctx.Err())
	}
}
