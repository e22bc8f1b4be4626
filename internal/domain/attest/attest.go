// Package attest signs replay scores so third parties can trust them without
// re-running verification.
//
// The legacy attestation is a bare Ed25519 signature over the decimal score.
// Deployed verifiers depend on that message format, so it never carries the
// submitter identity. Signers may additionally issue an EdDSA JWT that binds
// identity, score and attempt together.
package attest

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/okian/gameproof/internal/domain/model"
)

// Message returns the bytes that are signed for score.
func Message(score model.Score) []byte {
	return []byte(strconv.FormatUint(uint64(score), 10))
}

// Verify reports whether sig is a valid attestation of score under pub.
func Verify(sig []byte, score model.Score, pub ed25519.PublicKey) bool {
	if len(pub) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pub, Message(score), sig)
}

// Signer holds the attestor key.
type Signer struct {
	priv   ed25519.PrivateKey
	pub    ed25519.PublicKey
	kid    string
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// New wraps an Ed25519 private key.
func New(priv ed25519.PrivateKey, opts ...Option) (*Signer, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: private key is %d bytes", ErrInvalidKey, len(priv))
	}
	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected public key type", ErrInvalidKey)
	}
	s := &Signer{
		priv:   priv,
		pub:    pub,
		issuer: DefaultIssuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	tp, err := (&jose.JSONWebKey{Key: pub}).Thumbprint(crypto.SHA256)
	if err != nil {
		return nil, fmt.Errorf("%w: thumbprint: %w", ErrInvalidKey, err)
	}
	s.kid = base64.RawURLEncoding.EncodeToString(tp)
	return s, nil
}

// Generate creates a Signer with a fresh random key.
func Generate(opts ...Option) (*Signer, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("%w: generate: %w", ErrInvalidKey, err)
	}
	return New(priv, opts...)
}

// ParseSeed decodes a 32 byte seed given as hex or base64 (standard or URL,
// padded or not) and derives the private key.
func ParseSeed(s string) (ed25519.PrivateKey, error) {
	s = strings.TrimSpace(s)
	if b, err := hex.DecodeString(s); err == nil && len(b) == ed25519.SeedSize {
		return ed25519.NewKeyFromSeed(b), nil
	}
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding,
	} {
		if b, err := enc.DecodeString(s); err == nil && len(b) == ed25519.SeedSize {
			return ed25519.NewKeyFromSeed(b), nil
		}
	}
	return nil, fmt.Errorf("%w: expected a %d byte seed in hex or base64", ErrInvalidKey, ed25519.SeedSize)
}

// LoadSeedFile reads a seed file in the ParseSeed encoding.
func LoadSeedFile(path string) (ed25519.PrivateKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	return ParseSeed(string(b))
}

// Sign returns the attestation of score.
func (s *Signer) Sign(score model.Score) []byte {
	return ed25519.Sign(s.priv, Message(score))
}

// Attest returns the signed score.
func (s *Signer) Attest(score model.Score) model.Attestation {
	return model.Attestation{Score: score, Signature: s.Sign(score)}
}

// PublicKey returns the verification key.
func (s *Signer) PublicKey() ed25519.PublicKey { return s.pub }

// Issuer is the iss claim of tokens issued by this signer.
func (s *Signer) Issuer() string { return s.issuer }

// KeyID returns the RFC 7638 thumbprint of the public key.
func (s *Signer) KeyID() string { return s.kid }

// JWKS publishes the verification key.
func (s *Signer) JWKS() jose.JSONWebKeySet {
	return jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
		Key:       s.pub,
		KeyID:     s.kid,
		Algorithm: string(jose.EdDSA),
		Use:       "sig",
	}}}
}

// PublicKeyFromJWKS picks the Ed25519 key with kid from set. An empty kid
// selects the first Ed25519 key.
func PublicKeyFromJWKS(set jose.JSONWebKeySet, kid string) (ed25519.PublicKey, error) {
	keys := set.Keys
	if kid != "" {
		keys = set.Key(kid)
	}
	for _, k := range keys {
		if pub, ok := k.Key.(ed25519.PublicKey); ok {
			return pub, nil
		}
	}
	return nil, fmt.Errorf("%w: no ed25519 key %q in set", ErrInvalidKey, kid)
}
