package federation

import (
	"context"
)

// QueryRequest is phase (a) of §4.7's two-phase exchange: what the
// requester sends to a trusted peer.
type QueryRequest struct {
	QueryText   string            `json:"query_text"`
	Intent      string            `json:"intent"`
	Constraints map[string]string `json:"constraints,omitempty"`
}

// QueryResponse is phase (b): what the peer returns after running its own
// retrieval. No vectors, scores, or rankings — just Candidates.
type QueryResponse struct {
	Candidates []Candidate `json:"candidates"`
	Refused    bool        `json:"refused,omitempty"`
}

// Transport is the caller-supplied network call the package never makes
// itself (pkg/federation stays transport-agnostic, per this file's
// package doc). A real implementation posts QueryRequest to the peer's
// endpoint with the ScopeToken attached as a bearer credential and
// unmarshals QueryResponse from the reply.
type Transport interface {
	SendQuery(ctx context.Context, peer TrustRecord, req QueryRequest) (*QueryResponse, error)
}

// LocalRetriever is what a peer consults to answer an inbound QueryRequest
// with its own retrieval: a narrow seam so the federation server doesn't
// depend on pkg/retrieval.Pipeline's full surface, only "give me
// candidates for this tenant's query".
type LocalRetriever interface {
	RetrieveCandidates(ctx context.Context, tenantID string, req QueryRequest) ([]Candidate, error)
}

// Requester issues federated queries to trusted peers and folds the
// results back in. Re-embedding and re-ranking (phase c) is left to the
// caller; Requester has no embedding hook, so this package never assumes
// which embedding model the requester uses.
type Requester struct {
	Registry  *PeerRegistry
	Transport Transport
}

// NewRequester builds a Requester.
func NewRequester(registry *PeerRegistry, transport Transport) *Requester {
	return &Requester{Registry: registry, Transport: transport}
}

// Query runs phases (a) and (b): look up the peer's trust record, send
// the query, and return its candidates. Phase (c) — re-embedding and
// re-ranking alongside local results — is left to the caller, since it
// requires the requester's own embedding model and scoring weights.
func (r *Requester) Query(ctx context.Context, peerID PeerID, req QueryRequest) ([]Candidate, error) {
	if r.Transport == nil {
		return nil, wrapError("federated_query", ErrNoTransport)
	}
	peer, ok := r.Registry.Lookup(peerID)
	if !ok {
		return nil, wrapError("federated_query", ErrPeerUntrusted)
	}

	resp, err := r.Transport.SendQuery(ctx, peer, req)
	if err != nil {
		return nil, wrapError("federated_query", err)
	}
	if resp.Refused {
		// §4.7 invariant: "a peer may refuse any query without
		// explanation" — the caller sees an empty result, not an error
		// that might leak why the peer declined.
		return nil, nil
	}
	return resp.Candidates, nil
}

// Server answers inbound federated queries for this instance, enforcing
// §4.7's invariants: every returned Candidate is scoped to the
// requester's authenticated tenant, and nothing here can mutate another
// peer's artifacts (this package only ever reads).
type Server struct {
	Retriever LocalRetriever
	// Refuse, if set, is consulted before running retrieval and lets the
	// caller implement its own refusal policy (rate limits, blocklists,
	// scope restrictions) — refusing "without explanation" per §4.7.
	Refuse func(ctx context.Context, tenantID string, req QueryRequest) bool
}

// HandleQuery answers one inbound QueryRequest for tenantID, the tenant
// the requester's scope token authenticated as.
func (s *Server) HandleQuery(ctx context.Context, tenantID string, req QueryRequest) (*QueryResponse, error) {
	if tenantID == "" {
		return nil, wrapError("federated_query", ErrTenantRequired)
	}
	if s.Refuse != nil && s.Refuse(ctx, tenantID, req) {
		return &QueryResponse{Refused: true}, nil
	}

	candidates, err := s.Retriever.RetrieveCandidates(ctx, tenantID, req)
	if err != nil {
		return nil, wrapError("federated_query", err)
	}
	return &QueryResponse{Candidates: candidates}, nil
}
