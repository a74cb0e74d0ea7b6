package chess

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/park285/baahaus/internal/domain"
)

func repositories(t *testing.T) map[string]Repository {
	t.Helper()
	bdg, err := NewInMemoryBadgerRepository()
	if err != nil {
		t.Fatalf("NewInMemoryBadgerRepository: %v", err)
	}
	t.Cleanup(func() { _ = bdg.Close() })
	return map[string]Repository{
		"memory": NewMemoryRepository(),
		"badger": bdg,
	}
}

func testGame(uuid, player string, ended time.Time) *domain.GameRecord {
	return &domain.GameRecord{
		GameUUID:     uuid,
		SessionUUID:  "session",
		PlayerHash:   player,
		PlayerName:   "alice",
		Result:       domain.ResultWin,
		ResultMethod: "no legal moves",
		Moves:        []string{"e2e4", "d7d5"},
		Captured:     []string{"p"},
		FinalFEN:     "8/8/8/8/8/8/8/8 b - - 0 2",
		StartedAt:    ended.Add(-time.Minute),
		EndedAt:      ended,
		Duration:     time.Minute,
	}
}

func TestRepositoryGames(t *testing.T) {
	base := time.Unix(1700000000, 0).UTC()
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			id1, err := repo.InsertGame(ctx, testGame("g1", "p1", base))
			if err != nil || id1 <= 0 {
				t.Fatalf("InsertGame g1: id=%d err=%v", id1, err)
			}
			id2, err := repo.InsertGame(ctx, testGame("g2", "p1", base.Add(time.Hour)))
			if err != nil || id2 <= id1 {
				t.Fatalf("InsertGame g2: id=%d err=%v", id2, err)
			}
			if _, err := repo.InsertGame(ctx, testGame("g3", "p2", base)); err != nil {
				t.Fatalf("InsertGame g3: %v", err)
			}
			if _, err := repo.InsertGame(ctx, testGame("g1", "p1", base)); !errors.Is(err, ErrDuplicateGame) {
				t.Fatalf("duplicate insert should fail with ErrDuplicateGame, got %v", err)
			}

			games, err := repo.GetRecentGames(ctx, "p1", 10)
			if err != nil {
				t.Fatalf("GetRecentGames: %v", err)
			}
			if len(games) != 2 || games[0].GameUUID != "g2" || games[1].GameUUID != "g1" {
				t.Fatalf("unexpected history order: %+v", games)
			}
			if limited, _ := repo.GetRecentGames(ctx, "p1", 1); len(limited) != 1 {
				t.Fatalf("limit not applied: %d", len(limited))
			}

			g, err := repo.GetGameByUUID(ctx, "g1")
			if err != nil || g == nil {
				t.Fatalf("GetGameByUUID: %v %v", g, err)
			}
			if g.ID != id1 || len(g.Moves) != 2 || g.Duration != time.Minute {
				t.Fatalf("unexpected game: %+v", g)
			}
			if missing, err := repo.GetGameByUUID(ctx, "nope"); err != nil || missing != nil {
				t.Fatalf("missing game should be nil, nil: %v %v", missing, err)
			}
		})
	}
}

func TestRepositoryProfiles(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if p, err := repo.GetProfile(ctx, "p1"); err != nil || p != nil {
				t.Fatalf("unknown profile should be nil, nil: %v %v", p, err)
			}
			profile := applyGameResult(nil, "p1", "alice", domain.ResultWin, now)
			if err := repo.UpsertProfile(ctx, profile); err != nil {
				t.Fatalf("UpsertProfile: %v", err)
			}
			stored, err := repo.GetProfile(ctx, "p1")
			if err != nil || stored == nil {
				t.Fatalf("GetProfile: %v %v", stored, err)
			}
			stored = applyGameResult(stored, "p1", "alice", domain.ResultWin, now.Add(time.Minute))
			if err := repo.UpsertProfile(ctx, stored); err != nil {
				t.Fatalf("UpsertProfile: %v", err)
			}
			final, _ := repo.GetProfile(ctx, "p1")
			if final.GamesPlayed != 2 || final.Wins != 2 || final.BestStreak != 2 {
				t.Fatalf("unexpected profile: %+v", final)
			}
		})
	}
}

func TestApplyGameResultStreaks(t *testing.T) {
	now := time.Unix(1700000000, 0)
	p := applyGameResult(nil, "h", "bob", domain.ResultWin, now)
	p = applyGameResult(p, "h", "bob", domain.ResultWin, now)
	p = applyGameResult(p, "h", "bob", domain.ResultAbandoned, now)
	if p.GamesPlayed != 3 || p.Wins != 2 || p.Abandoned != 1 {
		t.Fatalf("counts: %+v", p)
	}
	if p.Streak != 0 || p.BestStreak != 2 {
		t.Fatalf("streaks: current=%d best=%d", p.Streak, p.BestStreak)
	}
	if !p.CreatedAt.Equal(now) || !p.LastPlayedAt.Equal(now) {
		t.Fatalf("timestamps not set: %+v", p)
	}
}

func TestBadgerConcurrentInsertsAllRecorded(t *testing.T) {
	repo, err := NewInMemoryBadgerRepository()
	if err != nil {
		t.Fatalf("NewInMemoryBadgerRepository: %v", err)
	}
	defer repo.Close()

	const n = 8
	ended := time.Unix(1700000000, 0).UTC()
	ids := make([]int64, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids[i], errs[i] = repo.InsertGame(context.Background(), testGame(fmt.Sprintf("g-%d", i), "p1", ended.Add(time.Duration(i)*time.Second)))
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })
	for i, id := range ids {
		if id != int64(i+1) {
			t.Fatalf("ids = %v, want 1..%d", ids, n)
		}
	}
	games, err := repo.GetRecentGames(context.Background(), "p1", n+1)
	if err != nil || len(games) != n {
		t.Fatalf("recent games = %d, %v", len(games), err)
	}
}
