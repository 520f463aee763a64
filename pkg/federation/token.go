package federation

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// InvitationClaims is the JWT payload a peer presents when initiating a
// handshake: its identity, public endpoint, and a one-time nonce, on top
// of the registered expiry/issuer claims. Mirrors the teacher's
// ServiceClaims shape (service_id embedded alongside jwt.RegisteredClaims).
type InvitationClaims struct {
	PeerID   string `json:"peer_id"`
	Endpoint string `json:"endpoint"`
	Nonce    string `json:"nonce"`
	jwt.RegisteredClaims
}

// InvitationGenerator issues short-lived signed invitation tokens.
// Grounded on serviceauth.ServiceTokenGenerator: RS256, same
// issue-now/expire-later shape, generalized from a fixed service identity
// to a (peer id, public endpoint) pair plus a handshake nonce.
type InvitationGenerator struct {
	privateKey *rsa.PrivateKey
	peerID     PeerID
	endpoint   string
	expiry     time.Duration
}

// NewInvitationGenerator creates an InvitationGenerator. expiry of zero
// uses DefaultInvitationExpiry.
func NewInvitationGenerator(privateKey *rsa.PrivateKey, peerID PeerID, endpoint string, expiry time.Duration) *InvitationGenerator {
	if expiry <= 0 {
		expiry = DefaultInvitationExpiry
	}
	return &InvitationGenerator{privateKey: privateKey, peerID: peerID, endpoint: endpoint, expiry: expiry}
}

// Issue mints a new invitation token with a fresh random nonce.
func (g *InvitationGenerator) Issue() (string, error) {
	nonce, err := randomNonce()
	if err != nil {
		return "", wrapError("issue_invitation", err)
	}

	now := time.Now()
	claims := &InvitationClaims{
		PeerID:   string(g.peerID),
		Endpoint: g.endpoint,
		Nonce:    nonce,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(g.expiry)),
			Issuer:    string(g.peerID),
			Subject:   string(g.peerID),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(g.privateKey)
	if err != nil {
		return "", wrapError("issue_invitation", err)
	}
	return signed, nil
}

// VerifyInvitation validates a signed invitation token against pubKey and
// returns its claims. Returns ErrInvitationExpired / ErrInvitationInvalid
// distinctly so callers can log the right reason.
func VerifyInvitation(tokenStr string, pubKey *rsa.PublicKey) (*InvitationClaims, error) {
	claims := &InvitationClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return pubKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, wrapError("verify_invitation", ErrInvitationExpired)
		}
		return nil, wrapError("verify_invitation", ErrInvitationInvalid)
	}
	if !token.Valid {
		return nil, wrapError("verify_invitation", ErrInvitationInvalid)
	}
	return claims, nil
}

func randomNonce() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// ParseRSAPublicKeyFromPEM parses an RSA public key from PEM bytes
// (PKIX "PUBLIC KEY" or a certificate). Identical shape to the teacher's
// serviceauth.ParseRSAPublicKeyFromPEM, copied rather than imported since
// pkg/federation has no dependency on the teacher's module.
func ParseRSAPublicKeyFromPEM(pemBytes []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("no PEM public key found")
	}
	switch block.Type {
	case "PUBLIC KEY":
		pubAny, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse PKIX public key: %w", err)
		}
		pub, ok := pubAny.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("public key is not RSA")
		}
		return pub, nil
	case "CERTIFICATE":
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse certificate: %w", err)
		}
		pub, ok := cert.PublicKey.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("certificate public key is not RSA")
		}
		return pub, nil
	default:
		return nil, fmt.Errorf("unsupported PEM block type %q", block.Type)
	}
}

// ParseRSAPrivateKeyFromPEM parses an RSA private key from PEM bytes
// (PKCS#1 or PKCS#8).
func ParseRSAPrivateKeyFromPEM(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("no PEM private key found")
	}
	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse PKCS#8 private key: %w", err)
		}
		priv, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("private key is not RSA")
		}
		return priv, nil
	default:
		return nil, fmt.Errorf("unsupported PEM block type %q", block.Type)
	}
}
