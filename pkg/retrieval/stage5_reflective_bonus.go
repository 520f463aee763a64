package retrieval

import "context"

// reflectiveBonus implements Szubar mode (§4.4 stage 5): if a reflection in
// scope cites a survivor as provenance and reports success, boost its
// composite score by cfg.ReflectiveBonus (capped at 1.0); if it reports
// failure, demote by the same amount.
func (p *Pipeline) reflectiveBonus(ctx context.Context, q Query, cfg Config, candidates []*candidate) {
	if p.Reflection == nil {
		return
	}
	for _, c := range candidates {
		signal, err := p.Reflection.SignalForArtifact(ctx, q.TenantID, c.artifact.ID)
		if err != nil || signal == ReflectiveNone {
			continue
		}
		switch signal {
		case ReflectiveSuccess:
			c.composite += cfg.ReflectiveBonus
		case ReflectiveFailure:
			c.composite -= cfg.ReflectiveBonus
		}
		if c.composite > 1.0 {
			c.composite = 1.0
		}
		if c.composite < 0 {
			c.composite = 0
		}
	}
}
