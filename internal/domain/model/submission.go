package model

import (
	"fmt"
	"time"
)

// BlobKind names one of the two pending blobs of a submission.
type BlobKind string

const (
	BlobVideo BlobKind = "video"
	BlobInput BlobKind = "input"
)

// ParseBlobKind validates a blob kind.
func ParseBlobKind(s string) (BlobKind, error) {
	switch BlobKind(s) {
	case BlobVideo, BlobInput:
		return BlobKind(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBlobKind, s)
	}
}

// Submission is the pending pair staged for one identity.
// Blobs are kept exactly as uploaded (base64 text).
type Submission struct {
	Identity  Identity
	Video     []byte
	Input     []byte
	UpdatedAt time.Time
}

// Complete reports whether both blobs are present.
func (s Submission) Complete() bool { return s.Video != nil && s.Input != nil }

// Score is the replay result.
type Score uint64

// Attestation is a signed score.
type Attestation struct {
	Score     Score
	Signature []byte
}
