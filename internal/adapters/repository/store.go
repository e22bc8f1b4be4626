// Package repository holds the pending submissions awaiting verification and
// the best-score leaderboard.
package repository

import (
	"context"
	"time"

	"github.com/okian/gameproof/internal/domain/model"
	"github.com/okian/gameproof/internal/domain/types"
)

// Store stages at most one video and one input blob per identity.
type Store interface {
	// Put replaces the pending blob of kind for id. Readers observe either the
	// complete previous blob or the complete new one.
	Put(ctx context.Context, id model.Identity, kind model.BlobKind, blob []byte) error
	// Get returns both blobs, or ErrIncompleteSubmission when either is absent.
	Get(ctx context.Context, id model.Identity) (model.Submission, error)
	// Clear deletes both blobs. Clearing an unknown identity is not an error.
	Clear(ctx context.Context, id model.Identity) error
	// Sweep removes submissions not updated since before and reports how many.
	Sweep(ctx context.Context, before time.Time) (int, error)
	// Count returns the number of identities with at least one pending blob.
	Count(ctx context.Context) (int, error)
	Close() error
}

// Leaderboard keeps the best attested score per identity.
type Leaderboard interface {
	// UpdateBest records score if it beats the identity's previous best.
	UpdateBest(ctx context.Context, id model.Identity, score model.Score) (bool, error)
	// Rank returns ErrNotFound if the identity never finished a verification.
	Rank(ctx context.Context, id model.Identity) (types.Entry, error)
	// TopN returns the best n entries, highest score first.
	TopN(ctx context.Context, n int) ([]types.Entry, error)
	Count(ctx context.Context) int
}
