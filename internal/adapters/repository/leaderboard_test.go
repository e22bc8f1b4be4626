package repository

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"sync"
	"testing"

	"github.com/okian/gameproof/internal/domain/model"
	"github.com/okian/gameproof/internal/domain/types"
	"github.com/okian/gameproof/pkg/metrics"
)

func newBoard(t *testing.T) *TreapLeaderboard {
	t.Helper()
	return NewTreapLeaderboard()
}

func TestTreapLeaderboard_BasicOperations(t *testing.T) {
	ctx := context.Background()
	lb := newBoard(t)

	if count := lb.Count(ctx); count != 0 {
		t.Errorf("expected count 0, got %d", count)
	}

	updated, err := lb.UpdateBest(ctx, 42, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !updated {
		t.Error("expected update to succeed")
	}

	entry, err := lb.Rank(ctx, 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Rank != 1 || entry.Score != 7 || entry.PlayerID != 42 {
		t.Errorf("unexpected entry %+v", entry)
	}

	entries, err := lb.TopN(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
}

func TestTreapLeaderboard_OnlyImprovements(t *testing.T) {
	ctx := context.Background()
	lb := newBoard(t)

	if ok, _ := lb.UpdateBest(ctx, 1, 50); !ok {
		t.Fatal("expected first score to be recorded")
	}
	if ok, _ := lb.UpdateBest(ctx, 1, 40); ok {
		t.Error("lower score must not replace the best")
	}
	if ok, _ := lb.UpdateBest(ctx, 1, 50); ok {
		t.Error("equal score must not count as an improvement")
	}
	if ok, _ := lb.UpdateBest(ctx, 1, 60); !ok {
		t.Error("higher score must replace the best")
	}
	entry, err := lb.Rank(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Score != 60 {
		t.Errorf("expected best 60, got %d", entry.Score)
	}
	if lb.Count(ctx) != 1 {
		t.Errorf("expected a single entry, got %d", lb.Count(ctx))
	}
}

func TestTreapLeaderboard_TiesUseCompetitionRanking(t *testing.T) {
	ctx := context.Background()
	lb := newBoard(t)

	for id, score := range map[model.Identity]model.Score{3: 10, 1: 10, 2: 5, 4: 20} {
		if _, err := lb.UpdateBest(ctx, id, score); err != nil {
			t.Fatalf("update %d: %v", id, err)
		}
	}

	entries, err := lb.TopN(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []types.Entry{
		{Rank: 1, PlayerID: 4, Score: 20},
		{Rank: 2, PlayerID: 1, Score: 10},
		{Rank: 2, PlayerID: 3, Score: 10},
		{Rank: 4, PlayerID: 2, Score: 5},
	}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(entries))
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Errorf("entry %d: expected %+v, got %+v", i, want[i], entries[i])
		}
	}

	entry, _ := lb.Rank(ctx, 3)
	if entry.Rank != 2 {
		t.Errorf("tied identity should share rank 2, got %d", entry.Rank)
	}
	entry, _ = lb.Rank(ctx, 2)
	if entry.Rank != 4 {
		t.Errorf("expected rank 4 after a two-way tie, got %d", entry.Rank)
	}
}

func TestTreapLeaderboard_MatchesSortedReference(t *testing.T) {
	ctx := context.Background()
	lb := newBoard(t)
	rng := rand.New(rand.NewSource(7))

	best := make(map[model.Identity]model.Score)
	for i := 0; i < 2000; i++ {
		id := model.Identity(rng.Intn(300))
		score := model.Score(rng.Intn(100))
		if _, err := lb.UpdateBest(ctx, id, score); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cur, ok := best[id]; !ok || score > cur {
			best[id] = score
		}
	}

	ref := make([]types.Entry, 0, len(best))
	for id, score := range best {
		ref = append(ref, types.Entry{PlayerID: uint64(id), Score: uint64(score)})
	}
	sort.Slice(ref, func(i, j int) bool {
		if ref[i].Score != ref[j].Score {
			return ref[i].Score > ref[j].Score
		}
		return ref[i].PlayerID < ref[j].PlayerID
	})
	assignRanks(ref)

	got, err := lb.TopN(ctx, len(ref)+5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != len(ref) {
		t.Fatalf("expected %d entries, got %d", len(ref), len(got))
	}
	for i := range ref {
		if got[i] != ref[i] {
			t.Fatalf("entry %d: expected %+v, got %+v", i, ref[i], got[i])
		}
		rank, err := lb.Rank(ctx, model.Identity(ref[i].PlayerID))
		if err != nil {
			t.Fatalf("rank %d: %v", ref[i].PlayerID, err)
		}
		if rank.Rank != ref[i].Rank {
			t.Fatalf("rank of %d: expected %d, got %d", ref[i].PlayerID, ref[i].Rank, rank.Rank)
		}
	}
}

func TestTreapLeaderboard_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	lb := newBoard(t)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				id := model.Identity(w*1000 + i%50)
				_, _ = lb.UpdateBest(ctx, id, model.Score(i))
				_, _ = lb.TopN(ctx, 5)
				_, _ = lb.Rank(ctx, id)
			}
		}(w)
	}
	wg.Wait()

	if count := lb.Count(ctx); count != 8*50 {
		t.Errorf("expected %d entries, got %d", 8*50, count)
	}
}

func TestTreapLeaderboard_EdgeCases(t *testing.T) {
	ctx := context.Background()
	lb := newBoard(t)

	if _, err := lb.Rank(ctx, 99); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := lb.TopN(ctx, 0); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("expected ErrInvalidLimit, got %v", err)
	}
	entries, err := lb.TopN(ctx, 3)
	if err != nil || len(entries) != 0 {
		t.Errorf("expected empty leaderboard, got %v, %v", entries, err)
	}
}

func entriesGauge(t *testing.T) float64 {
	t.Helper()
	families, err := metrics.GetRegistry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == "gameproof_verifier_leaderboard_entries" {
			return mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatal("leaderboard entries gauge not registered")
	return 0
}

func TestTreapLeaderboard_EntriesGauge(t *testing.T) {
	ctx := context.Background()
	lb := newBoard(t)

	if got := entriesGauge(t); got != 0 {
		t.Errorf("expected gauge 0 for a new board, got %v", got)
	}
	for _, id := range []model.Identity{1, 2, 3} {
		if _, err := lb.UpdateBest(ctx, id, 10); err != nil {
			t.Fatalf("update: %v", err)
		}
	}
	if got := entriesGauge(t); got != 3 {
		t.Errorf("expected gauge 3 right after updates, got %v", got)
	}
	if _, err := lb.UpdateBest(ctx, 2, 20); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := entriesGauge(t); got != 3 {
		t.Errorf("expected gauge to stay 3 on an improvement, got %v", got)
	}
}
