package federation

import (
	"crypto/rsa"
	"sync"
	"time"
)

// TrustRecord is what each side persists about a peer once a handshake
// completes: its long-lived per-scope token and the endpoint to reach it
// at. §4.7: "both sides persist the peer's long-lived per-scope token."
type TrustRecord struct {
	PeerID      PeerID
	Endpoint    string
	ScopeToken  string
	TrustedAt   time.Time
}

// PeerRegistry is the read-mostly trust store §5 describes for the
// federation peer registry: reads never block each other; completing a
// handshake takes the write lock exactly once.
type PeerRegistry struct {
	mu    sync.RWMutex
	peers map[PeerID]TrustRecord
}

// NewPeerRegistry creates an empty PeerRegistry.
func NewPeerRegistry() *PeerRegistry {
	return &PeerRegistry{peers: make(map[PeerID]TrustRecord)}
}

// Trust records a completed handshake's outcome.
func (r *PeerRegistry) Trust(rec TrustRecord) {
	if rec.TrustedAt.IsZero() {
		rec.TrustedAt = time.Now()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peers[rec.PeerID] = rec
}

// Lookup returns the trust record for peerID, or ok=false if the peer has
// never completed a handshake.
func (r *PeerRegistry) Lookup(peerID PeerID) (TrustRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.peers[peerID]
	return rec, ok
}

// Revoke removes a peer's trust record, e.g. on detected key compromise.
func (r *PeerRegistry) Revoke(peerID PeerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.peers, peerID)
}

// HandshakeRequest is what the accepting side receives: the initiator's
// invitation token plus its own scope token to hand back.
type HandshakeRequest struct {
	InvitationToken string
	ScopeToken      string
}

// HandshakeResponse is returned to the initiator once the accepting side
// has verified the invitation and recorded trust: its own scope token, to
// be persisted symmetrically.
type HandshakeResponse struct {
	PeerID     PeerID
	Endpoint   string
	ScopeToken string
}

// Handshake drives both sides of §4.7's trust establishment: one side
// issues a signed invitation (InvitationGenerator.Issue); the other posts
// a HandshakeRequest carrying that token and its own scope token; the
// accepting side calls Accept and the initiator calls Complete, so both
// sides persist the peer's long-lived token.
type Handshake struct {
	Registry   *PeerRegistry
	SelfID     PeerID
	SelfScope  string // this side's own long-lived per-scope token, handed to the peer
}

// Accept verifies req.InvitationToken against pubKey, and on success
// records trust for the inviting peer and returns this side's own scope
// token for the initiator to persist symmetrically.
func (h *Handshake) Accept(req HandshakeRequest, pubKey *rsa.PublicKey) (*HandshakeResponse, error) {
	claims, err := VerifyInvitation(req.InvitationToken, pubKey)
	if err != nil {
		return nil, err
	}

	h.Registry.Trust(TrustRecord{
		PeerID:     PeerID(claims.PeerID),
		Endpoint:   claims.Endpoint,
		ScopeToken: req.ScopeToken,
	})

	return &HandshakeResponse{
		PeerID:     h.SelfID,
		Endpoint:   "",
		ScopeToken: h.SelfScope,
	}, nil
}

// Complete is called by the initiator once the accepting side's
// HandshakeResponse arrives, persisting its scope token symmetrically so
// both sides hold each other's long-lived credential.
func (h *Handshake) Complete(resp HandshakeResponse, endpoint string) {
	h.Registry.Trust(TrustRecord{
		PeerID:     resp.PeerID,
		Endpoint:   endpoint,
		ScopeToken: resp.ScopeToken,
	})
}
