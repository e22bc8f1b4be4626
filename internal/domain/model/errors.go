package model

import "errors"

var (
	ErrInvalidIdentity = errors.New("invalid identity")
	ErrUnknownBlobKind = errors.New("unknown blob kind")

	// ErrIncompleteSubmission means the video or the input blob is missing.
	ErrIncompleteSubmission = errors.New("incomplete submission")
	// ErrExtractionUnavailable means the video model failed or timed out.
	ErrExtractionUnavailable = errors.New("extraction unavailable")
)
