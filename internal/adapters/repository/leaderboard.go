package repository

import (
	"context"
	"sync"
	"time"

	"github.com/okian/gameproof/internal/domain/model"
	"github.com/okian/gameproof/internal/domain/types"
	"github.com/okian/gameproof/pkg/metrics"
)

// Treap-based, in-memory Leaderboard implementation.
//
// Ordering: score DESC, then identity ASC (deterministic).
// "less" means ranks earlier, so in-order traversal yields the leaderboard
// from best to worst. Ranks use competition ranking: equal scores share a
// rank and the next distinct score skips the tied positions (1, 1, 3).

// treap node
type node struct {
	id    model.Identity
	score model.Score
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aScore, aID) should appear before (bScore, bID).
func less(aScore model.Score, aID model.Identity, bScore model.Score, bID model.Identity) bool {
	if aScore != bScore {
		return aScore > bScore
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

// priorityOf mixes the identity (splitmix64 finalizer) so heap priorities are
// uniformly spread and the expected depth stays logarithmic.
func priorityOf(id model.Identity) uint64 {
	z := uint64(id) + 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func insert(n *node, id model.Identity, score model.Score) *node {
	if n == nil {
		return &node{id: id, score: score, prio: priorityOf(id), size: 1}
	}
	if less(score, id, n.score, n.id) {
		n.left = insert(n.left, id, score)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, score)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id model.Identity, score model.Score) *node {
	if n == nil {
		return nil
	}
	if score == n.score && id == n.id {
		// Merge children by rotating highest priority up until leaf.
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, score)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, score)
		}
	} else if less(score, id, n.score, n.id) {
		n.left = deleteNode(n.left, id, score)
	} else {
		n.right = deleteNode(n.right, id, score)
	}
	fix(n)
	return n
}

// countAbove returns how many entries have a strictly higher score.
func countAbove(n *node, score model.Score) int {
	count := 0
	for n != nil {
		if n.score > score {
			count += nsize(n.left) + 1
			n = n.right
		} else {
			n = n.left
		}
	}
	return count
}

// collectTopN appends up to limit entries in rank order.
func collectTopN(n *node, limit int, out *[]types.Entry) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, types.Entry{PlayerID: uint64(n.id), Score: uint64(n.score)})
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, out)
	}
}

// assignRanks applies competition ranking to entries already in rank order.
func assignRanks(entries []types.Entry) {
	for i := range entries {
		if i > 0 && entries[i].Score == entries[i-1].Score {
			entries[i].Rank = entries[i-1].Rank
			continue
		}
		entries[i].Rank = i + 1
	}
}

// TreapLeaderboard is the in-memory Leaderboard. The entries gauge is kept
// current by UpdateBest, so there is no background work to stop.
type TreapLeaderboard struct {
	mu   sync.RWMutex
	root *node
	byID map[model.Identity]model.Score
}

// NewTreapLeaderboard constructs an empty leaderboard.
func NewTreapLeaderboard() *TreapLeaderboard {
	metrics.UpdateLeaderboardEntries(0)
	return &TreapLeaderboard{byID: make(map[model.Identity]model.Score)}
}

// UpdateBest implements Leaderboard.UpdateBest in O(log n) expected time.
func (s *TreapLeaderboard) UpdateBest(_ context.Context, id model.Identity, score model.Score) (bool, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	s.mu.Lock()
	if old, ok := s.byID[id]; ok {
		if score <= old {
			s.mu.Unlock()
			return false, nil
		}
		s.root = deleteNode(s.root, id, old)
	}
	s.byID[id] = score
	s.root = insert(s.root, id, score)
	n := len(s.byID)
	s.mu.Unlock()

	metrics.RecordLeaderboardUpdate()
	metrics.UpdateLeaderboardEntries(n)
	return true, nil
}

// Rank returns the identity's competition rank in O(log n).
func (s *TreapLeaderboard) Rank(_ context.Context, id model.Identity) (types.Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	score, ok := s.byID[id]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return types.Entry{}, ErrNotFound
	}
	return types.Entry{
		Rank:     countAbove(s.root, score) + 1,
		PlayerID: uint64(id),
		Score:    uint64(score),
	}, nil
}

// TopN returns the top n entries ordered by score desc.
func (s *TreapLeaderboard) TopN(_ context.Context, n int) ([]types.Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Entry, 0, min(n, len(s.byID)))
	collectTopN(s.root, n, &out)
	assignRanks(out)
	return out, nil
}

// Count returns the number of ranked identities.
func (s *TreapLeaderboard) Count(context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
