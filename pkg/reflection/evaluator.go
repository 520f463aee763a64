package reflection

import "context"

// Evaluator classifies a Trace into success, failure, or neutral. Only
// success and failure proceed to reflection; neutral traces are archived
// without further action (§4.6).
type Evaluator interface {
	Evaluate(ctx context.Context, trace Trace) (Verdict, error)
}

// DeterministicEvaluator applies explicit rules: an operation error or an
// explicit negative signal is a failure, an explicit positive signal is a
// success, anything else is neutral.
type DeterministicEvaluator struct{}

func (DeterministicEvaluator) Evaluate(_ context.Context, trace Trace) (Verdict, error) {
	if trace.Err != nil {
		return VerdictFailure, nil
	}
	if trace.ExplicitSignal != nil {
		if *trace.ExplicitSignal {
			return VerdictSuccess, nil
		}
		return VerdictFailure, nil
	}
	return VerdictNeutral, nil
}

// ThresholdEvaluator classifies by comparing Trace.QualityScore against
// configured thresholds. An operation error still forces failure, taking
// precedence over the score.
type ThresholdEvaluator struct {
	SuccessAt    float64
	FailureBelow float64
}

// DefaultThresholdEvaluator returns a ThresholdEvaluator using Config's
// default thresholds.
func DefaultThresholdEvaluator() ThresholdEvaluator {
	cfg := DefaultConfig()
	return ThresholdEvaluator{SuccessAt: cfg.ThresholdSuccessAt, FailureBelow: cfg.ThresholdFailureBelow}
}

func (t ThresholdEvaluator) Evaluate(_ context.Context, trace Trace) (Verdict, error) {
	if trace.Err != nil {
		return VerdictFailure, nil
	}
	switch {
	case trace.QualityScore >= t.SuccessAt:
		return VerdictSuccess, nil
	case trace.QualityScore < t.FailureBelow:
		return VerdictFailure, nil
	default:
		return VerdictNeutral, nil
	}
}

// LLMJudgeFn is a caller-provided hook that asks a meta-LLM to judge a
// trace. Mirrors the teacher's FactExtractorFn/RerankerFn hook-injection
// idiom: the package never makes a concrete provider call itself, only
// invokes whatever the caller registered.
//
// Example wiring:
//
//	judge := reflection.LLMJudgedEvaluator{Judge: func(ctx context.Context, t reflection.Trace) (reflection.Verdict, error) {
//	    resp, err := llmClient.Complete(ctx, judgePrompt(t))
//	    if err != nil { return "", err }
//	    return parseVerdict(resp), nil
//	}}
type LLMJudgeFn func(ctx context.Context, trace Trace) (Verdict, error)

// LLMJudgedEvaluator delegates classification to an LLM via Judge. Used
// sparingly per §4.6 ("used sparingly (cost)") — callers typically gate
// this behind sampling or escalate to it only when DeterministicEvaluator
// and ThresholdEvaluator both land on neutral.
type LLMJudgedEvaluator struct {
	Judge LLMJudgeFn
}

func (e LLMJudgedEvaluator) Evaluate(ctx context.Context, trace Trace) (Verdict, error) {
	if e.Judge == nil {
		return VerdictNeutral, wrapError("evaluate", ErrNoJudge)
	}
	return e.Judge(ctx, trace)
}
