package extractor

import (
	"errors"

	"github.com/okian/gameproof/internal/domain/model"
)

var (
	// ErrUnavailable means the model could not be reached or did not answer in time.
	ErrUnavailable = model.ErrExtractionUnavailable
	// ErrBadResponse means the model answered with something other than an event
	// list. It is always reported together with ErrUnavailable.
	ErrBadResponse = errors.New("malformed extraction response")
)
