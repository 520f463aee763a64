package reflection

import (
	"context"
	"sync"

	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/core"
	"github.com/google/uuid"
)

// AutoRetainConfig controls Actor.AddMessage's windowed auto-extraction,
// grounded on the teacher's hindsight.AutoRetainConfig. Extraction fires
// asynchronously every TriggerEvery messages, over the last WindowSize
// episodic artifacts stored for the tenant.
type AutoRetainConfig struct {
	Enabled      bool
	WindowSize   int
	TriggerEvery int
	// RoleFilter restricts which artifacts count toward the trigger, matched
	// against Metadata["role"]. Empty means every artifact counts.
	RoleFilter []string
}

// WindowFn is fired asynchronously when Actor.AddMessage's trigger threshold
// is reached. Errors are logged and never surfaced to the AddMessage caller,
// mirroring the teacher's fire-and-forget extraction goroutine.
type WindowFn func(ctx context.Context, tenantID string, window []*core.MemoryArtifact) error

// Actor is the ingest-side convenience wrapper: it stores each message as an
// episodic artifact synchronously, and — once enough messages accumulate —
// fires WindowFn over the most recent window without blocking the caller.
// This lets a chat loop feed its message stream straight into episodic
// storage without manually chunking it for extraction.
type Actor struct {
	store  ArtifactStore
	logger core.Logger
	onWindow WindowFn

	mu       sync.Mutex
	cfg      AutoRetainConfig
	counters map[string]int

	wg sync.WaitGroup
}

// NewActor builds an Actor over store. A nil logger falls back to a no-op.
func NewActor(store ArtifactStore, logger core.Logger) *Actor {
	if logger == nil {
		logger = core.NopLogger()
	}
	return &Actor{
		store:    store,
		logger:   logger,
		counters: make(map[string]int),
	}
}

// SetAutoRetain configures the windowing policy. Disabled by default.
func (a *Actor) SetAutoRetain(cfg AutoRetainConfig) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cfg = cfg
}

// SetWindowFn configures the hook fired when the trigger threshold is
// reached. AddMessage behaves as a plain synchronous store when this is nil.
func (a *Actor) SetWindowFn(fn WindowFn) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onWindow = fn
}

// AddMessage stores artifact as an episodic artifact for tenantID and,
// when auto-retain is enabled and the trigger threshold is reached, fires
// WindowFn over the last WindowSize episodic artifacts in a background
// goroutine. The store write is always synchronous; extraction never is.
func (a *Actor) AddMessage(ctx context.Context, tenantID string, artifact *core.MemoryArtifact) (string, error) {
	artifact.TenantID = tenantID
	if artifact.Layer == "" {
		artifact.Layer = core.LayerEpisodic
	}
	if artifact.ID == "" {
		artifact.ID = uuid.New().String()
	}
	if err := a.store.Upsert(ctx, artifact); err != nil {
		return "", wrapError("add_message", err)
	}

	a.mu.Lock()
	cfg := a.cfg
	onWindow := a.onWindow
	shouldFire := false
	if cfg.Enabled && onWindow != nil && roleMatches(artifact.Metadata, cfg.RoleFilter) {
		a.counters[tenantID]++
		if a.counters[tenantID] >= cfg.TriggerEvery {
			a.counters[tenantID] = 0
			shouldFire = true
		}
	}
	a.mu.Unlock()

	if shouldFire {
		windowSize := cfg.WindowSize
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			bgCtx := context.Background()
			window, err := a.store.ListByFilter(bgCtx, tenantID, nil, windowSize, 0)
			if err != nil {
				a.logger.Error("reflection: auto-retain fetch window failed", "tenant_id", tenantID, "error", err)
				return
			}
			if err := onWindow(bgCtx, tenantID, window); err != nil {
				a.logger.Error("reflection: auto-retain window extraction failed", "tenant_id", tenantID, "error", err)
			}
		}()
	}

	return artifact.ID, nil
}

// Wait blocks until every in-flight auto-retain extraction goroutine has
// returned. Intended for graceful shutdown and tests.
func (a *Actor) Wait() {
	a.wg.Wait()
}

func roleMatches(metadata map[string]string, roleFilter []string) bool {
	if len(roleFilter) == 0 {
		return true
	}
	role := metadata["role"]
	for _, r := range roleFilter {
		if r == role {
			return true
		}
	}
	return false
}
