package assembler

import (
	"context"

	semanticrouter "github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/semantic-router"
)

// ComplexRouteName is the conventional route name a RouterComplexitySignal
// caller registers on its Router for queries that should pull in more
// context. Any route with this name matching is treated as "complex".
const ComplexRouteName = "complex"

// RouterComplexitySignal adapts a pkg/semanticrouter Router into a
// ComplexitySignal: the caller pre-registers a "complex" route (seeded
// with example utterances for multi-hop, ambiguous, or broad queries),
// and a match against it flags the query as complex for §4.9's adaptive
// β. This is the adapter SPEC_FULL §4.9/§11 describe — the classifier
// itself is the teacher's existing intent-routing logic, unmodified.
type RouterComplexitySignal struct {
	Router *semanticrouter.Router
}

// NewRouterComplexitySignal wraps router.
func NewRouterComplexitySignal(router *semanticrouter.Router) *RouterComplexitySignal {
	return &RouterComplexitySignal{Router: router}
}

// IsComplex reports whether query matches the configured ComplexRouteName
// route above the router's similarity threshold.
func (s *RouterComplexitySignal) IsComplex(ctx context.Context, query string) (bool, error) {
	result, err := s.Router.Route(ctx, query)
	if err != nil {
		return false, err
	}
	return result.Matched && result.RouteName == ComplexRouteName, nil
}
