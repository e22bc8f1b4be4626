package attest

import "errors"

var (
	ErrInvalidKey   = errors.New("invalid attestor key")
	ErrInvalidToken = errors.New("invalid attestation token")
	ErrSign         = errors.New("sign failed")
)
