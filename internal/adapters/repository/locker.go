package repository

import (
	"sync"

	"github.com/okian/gameproof/internal/domain/model"
	"github.com/puzpuzpuz/xsync/v4"
)

// Locker serializes work per identity. Entries are reference counted and
// dropped once no goroutine holds or waits on them.
type Locker struct {
	locks *xsync.Map[model.Identity, *keyLock]
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewLocker returns an empty Locker.
func NewLocker() *Locker {
	return &Locker{locks: xsync.NewMap[model.Identity, *keyLock]()}
}

// Lock blocks until id is free and returns the matching unlock function.
func (l *Locker) Lock(id model.Identity) (unlock func()) {
	var held *keyLock
	l.locks.Compute(id, func(old *keyLock, loaded bool) (*keyLock, xsync.ComputeOp) {
		if !loaded {
			old = &keyLock{}
		}
		old.refs++
		held = old
		return old, xsync.UpdateOp
	})
	held.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			held.mu.Unlock()
			l.locks.Compute(id, func(old *keyLock, loaded bool) (*keyLock, xsync.ComputeOp) {
				if !loaded {
					return old, xsync.CancelOp
				}
				old.refs--
				if old.refs == 0 {
					return nil, xsync.DeleteOp
				}
				return old, xsync.UpdateOp
			})
		})
	}
}

// Len reports how many identities currently have a lock entry.
func (l *Locker) Len() int { return l.locks.Size() }
