package repository

import (
	"errors"

	"github.com/okian/gameproof/internal/domain/model"
)

// Sentinel kinds for repository errors.
var (
	ErrNotFound             = errors.New("player not found")
	ErrInvalidLimit         = errors.New("invalid leaderboard limit")
	ErrIncompleteSubmission = model.ErrIncompleteSubmission
	ErrStorage              = errors.New("storage failure")
	ErrUnknownBackend       = errors.New("unknown store backend")
)
