package federation

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"
	"time"
)

func genKeyPair(t *testing.T) (*rsa.PrivateKey, *rsa.PublicKey) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return priv, &priv.PublicKey
}

func TestInvitationIssueAndVerify(t *testing.T) {
	priv, pub := genKeyPair(t)
	gen := NewInvitationGenerator(priv, "peer-a", "https://peer-a.example", 0)

	tok, err := gen.Issue()
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := VerifyInvitation(tok, pub)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.PeerID != "peer-a" || claims.Endpoint != "https://peer-a.example" {
		t.Errorf("unexpected claims: %+v", claims)
	}
	if claims.Nonce == "" {
		t.Error("expected a non-empty nonce")
	}
}

func TestInvitationRejectsWrongKey(t *testing.T) {
	priv, _ := genKeyPair(t)
	_, otherPub := genKeyPair(t)
	gen := NewInvitationGenerator(priv, "peer-a", "https://peer-a.example", 0)

	tok, err := gen.Issue()
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := VerifyInvitation(tok, otherPub); !errors.Is(err, ErrInvitationInvalid) {
		t.Fatalf("expected ErrInvitationInvalid, got %v", err)
	}
}

func TestInvitationRejectsExpiredToken(t *testing.T) {
	priv, pub := genKeyPair(t)
	gen := NewInvitationGenerator(priv, "peer-a", "https://peer-a.example", 1*time.Nanosecond)

	tok, err := gen.Issue()
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, err := VerifyInvitation(tok, pub); !errors.Is(err, ErrInvitationExpired) {
		t.Fatalf("expected ErrInvitationExpired, got %v", err)
	}
}

func TestHandshakeAcceptAndCompleteEstablishMutualTrust(t *testing.T) {
	privA, pubA := genKeyPair(t)
	genA := NewInvitationGenerator(privA, "peer-a", "https://a.example", 0)
	invite, err := genA.Issue()
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	registryB := NewPeerRegistry()
	hsB := &Handshake{Registry: registryB, SelfID: "peer-b", SelfScope: "b-scope-token"}
	resp, err := hsB.Accept(HandshakeRequest{InvitationToken: invite, ScopeToken: "a-scope-token"}, pubA)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if resp.ScopeToken != "b-scope-token" {
		t.Errorf("expected b's own scope token returned, got %q", resp.ScopeToken)
	}
	recA, ok := registryB.Lookup("peer-a")
	if !ok || recA.ScopeToken != "a-scope-token" {
		t.Errorf("expected peer-a trusted with its scope token, got %+v ok=%v", recA, ok)
	}

	registryA := NewPeerRegistry()
	hsA := &Handshake{Registry: registryA, SelfID: "peer-a", SelfScope: "a-scope-token"}
	hsA.Complete(*resp, "https://b.example")
	recB, ok := registryA.Lookup("peer-b")
	if !ok || recB.ScopeToken != "b-scope-token" || recB.Endpoint != "https://b.example" {
		t.Errorf("expected peer-b trusted symmetrically, got %+v ok=%v", recB, ok)
	}
}

type fakeTransport struct {
	resp *QueryResponse
	err  error
}

func (f *fakeTransport) SendQuery(context.Context, TrustRecord, QueryRequest) (*QueryResponse, error) {
	return f.resp, f.err
}

func TestRequesterQueryRejectsUntrustedPeer(t *testing.T) {
	r := NewRequester(NewPeerRegistry(), &fakeTransport{})
	_, err := r.Query(context.Background(), "unknown-peer", QueryRequest{QueryText: "q"})
	if !errors.Is(err, ErrPeerUntrusted) {
		t.Fatalf("expected ErrPeerUntrusted, got %v", err)
	}
}

func TestRequesterQueryReturnsCandidates(t *testing.T) {
	registry := NewPeerRegistry()
	registry.Trust(TrustRecord{PeerID: "peer-a", Endpoint: "https://a.example", ScopeToken: "tok"})
	transport := &fakeTransport{resp: &QueryResponse{Candidates: []Candidate{{ArtifactID: "x1", Snippet: "hello"}}}}
	r := NewRequester(registry, transport)

	candidates, err := r.Query(context.Background(), "peer-a", QueryRequest{QueryText: "q"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candidates) != 1 || candidates[0].ArtifactID != "x1" {
		t.Errorf("unexpected candidates: %+v", candidates)
	}
}

func TestRequesterQueryRefusalReturnsEmptyNotError(t *testing.T) {
	registry := NewPeerRegistry()
	registry.Trust(TrustRecord{PeerID: "peer-a", ScopeToken: "tok"})
	transport := &fakeTransport{resp: &QueryResponse{Refused: true}}
	r := NewRequester(registry, transport)

	candidates, err := r.Query(context.Background(), "peer-a", QueryRequest{QueryText: "q"})
	if err != nil {
		t.Fatalf("expected no error on refusal, got %v", err)
	}
	if candidates != nil {
		t.Errorf("expected nil candidates on refusal, got %v", candidates)
	}
}

type fakeRetriever struct {
	candidates []Candidate
	seenTenant string
}

func (f *fakeRetriever) RetrieveCandidates(_ context.Context, tenantID string, _ QueryRequest) ([]Candidate, error) {
	f.seenTenant = tenantID
	return f.candidates, nil
}

func TestServerHandleQueryScopesToTenant(t *testing.T) {
	retriever := &fakeRetriever{candidates: []Candidate{{ArtifactID: "x1"}}}
	srv := &Server{Retriever: retriever}

	resp, err := srv.HandleQuery(context.Background(), "tenant-42", QueryRequest{QueryText: "q"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if retriever.seenTenant != "tenant-42" {
		t.Errorf("expected retriever scoped to tenant-42, got %q", retriever.seenTenant)
	}
	if len(resp.Candidates) != 1 {
		t.Errorf("expected 1 candidate, got %d", len(resp.Candidates))
	}
}

func TestServerHandleQueryRejectsMissingTenant(t *testing.T) {
	srv := &Server{Retriever: &fakeRetriever{}}
	_, err := srv.HandleQuery(context.Background(), "", QueryRequest{QueryText: "q"})
	if !errors.Is(err, ErrTenantRequired) {
		t.Fatalf("expected ErrTenantRequired, got %v", err)
	}
}

func TestServerHandleQueryHonorsRefusalPolicy(t *testing.T) {
	srv := &Server{
		Retriever: &fakeRetriever{},
		Refuse:    func(context.Context, string, QueryRequest) bool { return true },
	}
	resp, err := srv.HandleQuery(context.Background(), "tenant-1", QueryRequest{QueryText: "q"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Refused {
		t.Error("expected the refusal policy to mark the response refused")
	}
}
