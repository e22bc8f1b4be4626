package verification

import (
	"errors"

	"github.com/okian/gameproof/internal/domain/attest"
	"github.com/okian/gameproof/internal/domain/correlate"
	"github.com/okian/gameproof/internal/domain/model"
	"github.com/okian/gameproof/internal/domain/signal"
)

// Rejection causes. Each one is terminal for the current submission.
var (
	ErrInvalidIdentity           = model.ErrInvalidIdentity
	ErrIncompleteSubmission      = model.ErrIncompleteSubmission
	ErrDecode                    = signal.ErrDecode
	ErrMalformedEventStream      = signal.ErrMalformedEventStream
	ErrDegenerateSignal          = correlate.ErrDegenerateSignal
	ErrCorrelationBelowThreshold = correlate.ErrBelowThreshold
	ErrExtractionUnavailable     = model.ErrExtractionUnavailable
	ErrSigning                   = attest.ErrSign
)

// ErrInternal marks failures that are not a verdict on the submission, such
// as an unreadable store. No state transition happens and nothing is cleared.
var ErrInternal = errors.New("internal failure")

// NoError is the message reported for a successful verification.
const NoError = "no Error"

// Reason codes.
const (
	ReasonNone                 = ""
	ReasonInvalidIdentity      = "invalid_identity"
	ReasonIncompleteSubmission = "incomplete_submission"
	ReasonDecode               = "decode_error"
	ReasonMalformedEventStream = "malformed_event_stream"
	ReasonDegenerateSignal     = "degenerate_signal"
	ReasonBelowThreshold       = "correlation_below_threshold"
	ReasonExtraction           = "extraction_unavailable"
	ReasonSigning              = "signing_failed"
	ReasonInternal             = "internal"
)

// reasons is checked in order; the first match wins.
var reasons = []struct { //nolint:gochecknoglobals
	err     error
	code    string
	message string
}{
	{ErrInvalidIdentity, ReasonInvalidIdentity, "no valid playerID"},
	{ErrIncompleteSubmission, ReasonIncompleteSubmission, "cant verify need one video and one input"},
	{ErrDecode, ReasonDecode, "data was not in the expected format"},
	{ErrExtractionUnavailable, ReasonExtraction, "video extraction is unavailable"},
	{ErrMalformedEventStream, ReasonMalformedEventStream, "video and input data cant be parsed"},
	{ErrDegenerateSignal, ReasonDegenerateSignal, "video or input data has no usable events"},
	{ErrCorrelationBelowThreshold, ReasonBelowThreshold, "video and input data didnt match"},
	{ErrSigning, ReasonSigning, "score could not be signed"},
}

// Reason maps err to its stable reason code and human readable message.
// A nil error is success; unknown errors are internal.
func Reason(err error) (code, message string) {
	if err == nil {
		return ReasonNone, NoError
	}
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.code, r.message
		}
	}
	return ReasonInternal, "internal error"
}
