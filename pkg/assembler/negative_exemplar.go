package assembler

import (
	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/reflection"
)

// NegativeNotice is a Szubar-mode warning surfaced alongside assembled
// context: a past failure reflection whose trace fingerprint matches the
// current operation. §4.6: "future retrievals matching that signature
// surface the failure reflection as a visible negative exemplar in the
// assembled context" — this is where that surfacing happens, not in
// pkg/retrieval's stage 5 (which handles the separate per-artifact
// success/failure bonus via reflection.ReflectionIndex).
type NegativeNotice struct {
	ArtifactID string
	Fingerprint reflection.Fingerprint
}

// SurfaceNegativeExemplars looks up any failure reflections recorded
// against the same trace fingerprint as the current operation and
// returns them as NegativeNotices. Returns nil if idx is nil or nothing
// matches — a missing fingerprint index is never an error, since Szubar
// mode is an enhancement to assembly, not a precondition for it.
func SurfaceNegativeExemplars(idx *reflection.FingerprintIndex, tenantID string, trace reflection.Trace) []NegativeNotice {
	if idx == nil {
		return nil
	}
	fp := reflection.NormalizeTrace(trace)
	exemplars := idx.Lookup(tenantID, fp)
	if len(exemplars) == 0 {
		return nil
	}

	notices := make([]NegativeNotice, 0, len(exemplars))
	for _, ex := range exemplars {
		notices = append(notices, NegativeNotice{ArtifactID: ex.ArtifactID, Fingerprint: fp})
	}
	return notices
}
