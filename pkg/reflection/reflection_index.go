package reflection

import (
	"context"
	"sync"

	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/retrieval"
)

// ReflectionIndex answers retrieval stage 5's question — "does any
// reflection in scope cite this artifact, and with what outcome" — by
// remembering, per (tenant, source artifact), the verdict of the most
// recent reflection that cited it as provenance. It implements
// retrieval.ReflectiveBonusSource directly, so a Reflector wired to one
// replaces retrieval.NoReflection with a live signal without any change to
// pkg/retrieval.
type ReflectionIndex struct {
	mu      sync.Mutex
	tenants map[string]map[string]retrieval.ReflectiveSignal
}

// NewReflectionIndex creates an empty ReflectionIndex.
func NewReflectionIndex() *ReflectionIndex {
	return &ReflectionIndex{tenants: make(map[string]map[string]retrieval.ReflectiveSignal)}
}

// Record updates the signal for every artifact in sourceArtifactIDs to
// match verdict. A later call for the same artifact overwrites the
// earlier signal — only the most recent reflection citing an artifact
// governs its stage-5 bonus.
func (idx *ReflectionIndex) Record(tenantID string, sourceArtifactIDs []string, verdict Verdict) {
	if verdict == VerdictNeutral {
		return
	}
	signal := retrieval.ReflectiveSuccess
	if verdict == VerdictFailure {
		signal = retrieval.ReflectiveFailure
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	t, ok := idx.tenants[tenantID]
	if !ok {
		t = make(map[string]retrieval.ReflectiveSignal)
		idx.tenants[tenantID] = t
	}
	for _, id := range sourceArtifactIDs {
		t[id] = signal
	}
}

// SignalForArtifact implements retrieval.ReflectiveBonusSource.
func (idx *ReflectionIndex) SignalForArtifact(_ context.Context, tenantID, artifactID string) (retrieval.ReflectiveSignal, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	t, ok := idx.tenants[tenantID]
	if !ok {
		return retrieval.ReflectiveNone, nil
	}
	signal, ok := t[artifactID]
	if !ok {
		return retrieval.ReflectiveNone, nil
	}
	return signal, nil
}
