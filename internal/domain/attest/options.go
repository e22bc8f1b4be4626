package attest

import "time"

// DefaultIssuer is the iss claim of attestation tokens.
const DefaultIssuer = "gameproof"

// Option configures a Signer.
type Option func(*Signer)

// WithIssuer sets the token issuer.
func WithIssuer(iss string) Option {
	return func(s *Signer) {
		if iss != "" {
			s.issuer = iss
		}
	}
}

// WithTokenTTL sets the token lifetime. Zero issues tokens without expiry.
func WithTokenTTL(d time.Duration) Option {
	return func(s *Signer) { s.ttl = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) {
		if now != nil {
			s.now = now
		}
	}
}
