package signal

import "errors"

var (
	// ErrMalformedEventStream reports an empty or unparseable qualifying event sequence.
	ErrMalformedEventStream = errors.New("malformed event stream")
	// ErrDecode reports an input blob that is not a valid event CSV.
	ErrDecode = errors.New("decode error")
)
