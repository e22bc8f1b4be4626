package repository

import (
	"context"
	"time"

	"github.com/okian/gameproof/internal/domain/model"
	"github.com/puzpuzpuz/xsync/v4"
)

// MemoryStore keeps immutable submission snapshots in a concurrent map.
// Every Put installs a new snapshot, so a concurrent Get never sees a torn blob.
type MemoryStore struct {
	subs *xsync.Map[model.Identity, model.Submission]
	opts storeOptions
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore(opts ...StoreOption) *MemoryStore {
	o := defaultStoreOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &MemoryStore{subs: xsync.NewMap[model.Identity, model.Submission](), opts: o}
}

func (s *MemoryStore) Put(_ context.Context, id model.Identity, kind model.BlobKind, blob []byte) error {
	defer observe(BackendMemory, "put", time.Now())
	if _, err := model.ParseBlobKind(string(kind)); err != nil {
		return err
	}
	cp := append([]byte{}, blob...)
	s.subs.Compute(id, func(old model.Submission, loaded bool) (model.Submission, xsync.ComputeOp) {
		next := old
		if !loaded {
			next = model.Submission{Identity: id}
		}
		switch kind {
		case model.BlobVideo:
			next.Video = cp
		case model.BlobInput:
			next.Input = cp
		}
		next.UpdatedAt = s.opts.now()
		return next, xsync.UpdateOp
	})
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id model.Identity) (model.Submission, error) {
	defer observe(BackendMemory, "get", time.Now())
	sub, ok := s.subs.Load(id)
	if !ok || !sub.Complete() {
		return model.Submission{}, ErrIncompleteSubmission
	}
	return sub, nil
}

func (s *MemoryStore) Clear(_ context.Context, id model.Identity) error {
	defer observe(BackendMemory, "clear", time.Now())
	s.subs.Delete(id)
	return nil
}

func (s *MemoryStore) Sweep(_ context.Context, before time.Time) (int, error) {
	defer observe(BackendMemory, "sweep", time.Now())
	var stale []model.Identity
	s.subs.Range(func(id model.Identity, sub model.Submission) bool {
		if sub.UpdatedAt.Before(before) {
			stale = append(stale, id)
		}
		return true
	})
	removed := 0
	for _, id := range stale {
		// An upload may have landed since Range saw the entry.
		s.subs.Compute(id, func(old model.Submission, loaded bool) (model.Submission, xsync.ComputeOp) {
			if !loaded || !old.UpdatedAt.Before(before) {
				return old, xsync.CancelOp
			}
			removed++
			return old, xsync.DeleteOp
		})
	}
	return removed, nil
}

func (s *MemoryStore) Count(context.Context) (int, error) {
	return s.subs.Size(), nil
}

func (s *MemoryStore) Close() error { return nil }
