// Package assembler implements §4.9's context assembler: given a ranked
// candidate set from pkg/retrieval and a token budget, it greedily
// approximates the Information Bottleneck Lagrangian
// L = I(Z;Y) − β·I(Z;X) to pick the subset Z of candidates X that
// maximizes relevance to the query Y while minimizing the tokens spent
// saying it.
//
// Grounded on hindsight.System.Reflect/formatContext's token-budgeted,
// layer-grouped context formatting: formatContext groups recall results
// by memory type and truncates to a token budget; this package
// generalizes that into a per-candidate objective score with adaptive β
// and per-layer compression penalties instead of a flat truncation.
package assembler

import (
	"errors"
	"fmt"

	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/core"
)

// Sentinel errors.
var (
	ErrEmptyBudget    = errors.New("assembler: token budget must be positive")
	ErrNoSummarizer   = errors.New("assembler: summary requested but no Summarizer configured")
)

// AssemblerError wraps an underlying error with the operation that
// produced it, the same Op/Err idiom used across the module's other new
// packages.
type AssemblerError struct {
	Op  string
	Err error
}

func (e *AssemblerError) Error() string        { return fmt.Sprintf("assembler: %s: %v", e.Op, e.Err) }
func (e *AssemblerError) Unwrap() error        { return e.Err }
func (e *AssemblerError) Is(target error) bool { return errors.Is(e.Err, target) }

func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &AssemblerError{Op: op, Err: err}
}

// Layer is the compression-cost tier a Candidate belongs to. It extends
// core.Layer with "working": request-scoped content assembled into
// context but never persisted through core.ArtifactStore (per
// core.MemoryArtifact's own doc comment), such as a freshly generated
// summary not yet consolidated anywhere.
type Layer string

const (
	LayerReflective Layer = Layer(core.LayerReflective)
	LayerSemantic   Layer = Layer(core.LayerSemantic)
	LayerEpisodic   Layer = Layer(core.LayerEpisodic)
	LayerWorking    Layer = "working"
)

// LayerPenalty returns §4.9's fixed per-layer compression multiplier:
// raw experience (episodic) is the most expensive to include verbatim,
// a reflective artifact the cheapest since it is already a condensed
// summary.
func LayerPenalty(l Layer) float64 {
	switch l {
	case LayerReflective:
		return 0.5
	case LayerSemantic:
		return 0.7
	case LayerWorking:
		return 0.9
	case LayerEpisodic:
		return 1.0
	default:
		return 1.0
	}
}

// Candidate is one item eligible for inclusion in the assembled context.
type Candidate struct {
	ArtifactID string
	Content    string
	Layer      Layer
	Relevance  float64 // the ranked score from pkg/retrieval, already in [0,1]-ish range
	Tokens     int
}

// FromScored builds a Candidate from a pkg/retrieval ranked result.
// Tokens falls back to a ~4-chars-per-token estimate when the artifact
// has no stored TokenCount, the same rough estimate hindsight.formatContext
// uses for its own budget truncation.
func FromScored(a core.ScoredArtifact) Candidate {
	tokens := a.TokenCount
	if tokens <= 0 {
		tokens = len(a.Content) / 4
	}
	return Candidate{
		ArtifactID: a.ID,
		Content:    a.Content,
		Layer:      Layer(a.Layer),
		Relevance:  a.Score,
		Tokens:     tokens,
	}
}

// Preference selects the base β before any adaptive adjustment. §4.9:
// "quality preference: 0.1; balanced: 0.5; efficiency: 2.0".
type Preference string

const (
	PreferenceQuality    Preference = "quality"
	PreferenceBalanced   Preference = "balanced"
	PreferenceEfficiency Preference = "efficiency"
)

// BaseBeta returns the starting β for p, defaulting to balanced for an
// unrecognized value.
func (p Preference) BaseBeta() float64 {
	switch p {
	case PreferenceQuality:
		return 0.1
	case PreferenceEfficiency:
		return 2.0
	case PreferenceBalanced:
		return 0.5
	default:
		return 0.5
	}
}

// AssembledContext is Assemble's result: the selected candidates in
// inclusion order, their total token count, and an optional synthesized
// summary.
type AssembledContext struct {
	Selected        []Candidate
	TotalTokens     int
	Summary         string
	NegativeNotices []NegativeNotice
}
