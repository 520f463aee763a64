package assembler

import "context"

// Summarizer produces a synthesized summary of the assembled context's
// selected candidates — §4.9: "plus a synthesized summary if the caller
// requests it (optional LLM call; caller's responsibility to authorize)".
// Mirrors pkg/reflection.LLMProvider's single-method shape: the package
// never calls a concrete model provider itself, only a caller-supplied
// hook.
type Summarizer interface {
	Summarize(ctx context.Context, query string, selected []Candidate) (string, error)
}

// SummarizerFn adapts a plain function to the Summarizer interface.
type SummarizerFn func(ctx context.Context, query string, selected []Candidate) (string, error)

func (f SummarizerFn) Summarize(ctx context.Context, query string, selected []Candidate) (string, error) {
	return f(ctx, query, selected)
}
