package reflection

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Fingerprint is a normalized signature of a trace's query/tool-call
// shape: its operation kind plus its input keys and values, sorted for
// stability. Two traces with the same operation and inputs produce the
// same fingerprint regardless of map iteration order.
type Fingerprint string

// NormalizeTrace computes trace's Fingerprint.
func NormalizeTrace(trace Trace) Fingerprint {
	keys := make([]string, 0, len(trace.Inputs))
	for k := range trace.Inputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(string(trace.Operation))
	for _, k := range keys {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(trace.Inputs[k])
	}
	return Fingerprint(b.String())
}

// NegativeExemplar is a failure reflection recorded against a fingerprint:
// the Szubar-mode warning a future matching trace should surface.
type NegativeExemplar struct {
	ArtifactID string
	RecordedAt time.Time
}

// FingerprintIndex is the Szubar-mode negative-exemplar store: every time a
// reflector emits a failure reflection, the trace's fingerprint is recorded
// here together with the reflection artifact's id. A future operation
// whose trace normalizes to the same fingerprint can look up the matching
// failure reflections and surface them as a visible warning — this is
// pkg/assembler's job, not the retrieval cascade's; stage 5's per-artifact
// bonus/penalty is served by ReflectionIndex instead (see reflection_index.go).
type FingerprintIndex struct {
	mu      sync.Mutex
	tenants map[string]map[Fingerprint][]NegativeExemplar
}

// NewFingerprintIndex creates an empty FingerprintIndex.
func NewFingerprintIndex() *FingerprintIndex {
	return &FingerprintIndex{tenants: make(map[string]map[Fingerprint][]NegativeExemplar)}
}

// Record appends a negative exemplar for (tenantID, fp).
func (idx *FingerprintIndex) Record(tenantID string, fp Fingerprint, artifactID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	t, ok := idx.tenants[tenantID]
	if !ok {
		t = make(map[Fingerprint][]NegativeExemplar)
		idx.tenants[tenantID] = t
	}
	t[fp] = append(t[fp], NegativeExemplar{ArtifactID: artifactID, RecordedAt: time.Now()})
}

// Lookup returns every negative exemplar recorded for (tenantID, fp), or
// nil if none match.
func (idx *FingerprintIndex) Lookup(tenantID string, fp Fingerprint) []NegativeExemplar {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	t, ok := idx.tenants[tenantID]
	if !ok {
		return nil
	}
	return t[fp]
}
