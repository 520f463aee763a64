package assembler

import (
	"context"

	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/core"
	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/reflection"
)

// ComplexitySignal reports whether a query should be treated as
// "complex" for §4.9's adaptive β ("decreases for queries flagged as
// complex, to pull in more"). Grounded on pkg/semanticrouter's intent
// classifier: RouterComplexitySignal (complexity.go) adapts a Router
// into this interface, but any classifier can satisfy it.
type ComplexitySignal interface {
	IsComplex(ctx context.Context, query string) (bool, error)
}

// Options configures one Assemble call.
type Options struct {
	Budget     int
	Preference Preference
	Complexity ComplexitySignal // optional; nil means "never complex"
	Summarize  bool
	Summarizer Summarizer // required if Summarize is true

	// Fingerprints and TenantID/Trace are optional Szubar-mode inputs: when
	// Fingerprints is set, Assemble surfaces any recorded failure
	// reflections matching Trace's fingerprint as NegativeNotices.
	Fingerprints *reflection.FingerprintIndex
	TenantID     string
	Trace        reflection.Trace
}

// Assembler runs the greedy Information Bottleneck approximation over a
// candidate set.
type Assembler struct {
	Logger core.Logger
}

// NewAssembler builds an Assembler with a no-op logger.
func NewAssembler() *Assembler {
	return &Assembler{Logger: core.NopLogger()}
}

// Assemble selects the subset of candidates maximizing
// objective = relevance − β·compression_cost per candidate, greedily,
// until opts.Budget is exhausted or no remaining candidate fits.
// compression_cost = (tokens / totalTokens) · layer_penalty, where
// totalTokens is the token sum of the full input candidate set — §4.9's
// X, the full candidate set the query could draw from, not the
// remaining budget.
func (a *Assembler) Assemble(ctx context.Context, query string, candidates []Candidate, opts Options) (*AssembledContext, error) {
	if opts.Budget <= 0 {
		return nil, wrapError("assemble", ErrEmptyBudget)
	}
	if opts.Summarize && opts.Summarizer == nil {
		return nil, wrapError("assemble", ErrNoSummarizer)
	}
	if a.Logger == nil {
		a.Logger = core.NopLogger()
	}

	totalTokens := 0
	for _, c := range candidates {
		totalTokens += c.Tokens
	}
	if totalTokens == 0 {
		return &AssembledContext{}, nil
	}

	complex := false
	if opts.Complexity != nil {
		var err error
		complex, err = opts.Complexity.IsComplex(ctx, query)
		if err != nil {
			// A classifier failure is not fatal to assembly: §7's "external
			// provider errors ... skip the dependent feature" reading
			// applies here too — fall back to a non-complex assumption.
			a.Logger.Warn("assembler complexity classifier failed, assuming non-complex", "error", err.Error())
			complex = false
		}
	}

	remaining := make([]Candidate, len(candidates))
	copy(remaining, candidates)

	selected := make([]Candidate, 0, len(candidates))
	budgetLeft := opts.Budget
	baseBeta := opts.Preference.BaseBeta()

	for budgetLeft > 0 && len(remaining) > 0 {
		beta := adaptiveBeta(baseBeta, complex, budgetLeft, opts.Budget)

		bestIdx := -1
		bestObjective := 0.0
		for i, c := range remaining {
			if c.Tokens > budgetLeft {
				continue
			}
			compressionCost := (float64(c.Tokens) / float64(totalTokens)) * LayerPenalty(c.Layer)
			objective := c.Relevance - beta*compressionCost
			if bestIdx == -1 || objective > bestObjective {
				bestIdx = i
				bestObjective = objective
			}
		}
		if bestIdx == -1 {
			// Every remaining candidate is too large for what's left.
			break
		}

		chosen := remaining[bestIdx]
		selected = append(selected, chosen)
		budgetLeft -= chosen.Tokens
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	result := &AssembledContext{
		Selected:        selected,
		TotalTokens:     opts.Budget - budgetLeft,
		NegativeNotices: SurfaceNegativeExemplars(opts.Fingerprints, opts.TenantID, opts.Trace),
	}

	if opts.Summarize {
		summary, err := opts.Summarizer.Summarize(ctx, query, selected)
		if err != nil {
			// Per §4.9, the summary is an optional add-on the caller must
			// separately authorize; a failed summarization call does not
			// invalidate the already-selected context.
			a.Logger.Warn("assembler summarization failed, returning context without a summary", "error", err.Error())
		} else {
			result.Summary = summary
		}
	}

	return result, nil
}

// adaptiveBeta implements §4.9's three adjustments to the base β:
// decreased for complex queries (pull in more), increased as the
// remaining budget shrinks relative to the original (force compression).
func adaptiveBeta(base float64, complex bool, budgetLeft, totalBudget int) float64 {
	beta := base
	if complex {
		beta *= 0.5
	}
	if totalBudget > 0 {
		consumedFraction := 1 - float64(budgetLeft)/float64(totalBudget)
		// Scales β up to 2x its value as the budget is exhausted.
		beta *= 1 + consumedFraction
	}
	return beta
}
