package attest

import (
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/okian/gameproof/internal/domain/model"
)

// Claims of an attestation token. Subject is the decimal identity and ID the
// verification attempt.
type Claims struct {
	Score uint64 `json:"score"`
	jwt.RegisteredClaims
}

// Identity parses the subject claim.
func (c Claims) Identity() (model.Identity, error) {
	return model.ParseIdentity(c.Subject)
}

// IssueToken signs a token binding id, score and attemptID.
func (s *Signer) IssueToken(id model.Identity, score model.Score, attemptID string) (string, error) {
	now := s.now()
	claims := Claims{
		Score: uint64(score),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   s.issuer,
			Subject:  id.String(),
			ID:       attemptID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if s.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	tok.Header["kid"] = s.kid
	out, err := tok.SignedString(s.priv)
	if err != nil {
		return "", fmt.Errorf("%w: token: %w", ErrSign, err)
	}
	return out, nil
}

// ParseToken validates an attestation token against pub and returns its
// claims. An empty issuer skips the issuer check.
func ParseToken(raw string, pub ed25519.PublicKey, issuer string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(5 * time.Second),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return pub, nil }, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !tok.Valid {
		return nil, ErrInvalidToken
	}
	if _, err := claims.Identity(); err != nil {
		return nil, fmt.Errorf("%w: subject: %w", ErrInvalidToken, err)
	}
	return claims, nil
}
