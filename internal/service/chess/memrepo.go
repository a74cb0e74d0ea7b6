package chess

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/park285/baahaus/internal/domain"
)

// memrepo is the in-memory repository used when neither DATABASE_URL nor BADGER_DIR is configured.
type memrepo struct {
	mu sync.RWMutex

	nextID int64

	gamesByUUID map[string]*domain.GameRecord
	gamesByUser map[string][]*domain.GameRecord // playerHash -> games, latest last

	profiles map[string]*domain.PlayerProfile
}

func NewMemoryRepository() Repository {
	return &memrepo{
		gamesByUUID: make(map[string]*domain.GameRecord),
		gamesByUser: make(map[string][]*domain.GameRecord),
		profiles:    make(map[string]*domain.PlayerProfile),
	}
}

func (m *memrepo) InsertGame(ctx context.Context, game *domain.GameRecord) (int64, error) {
	if game == nil {
		return 0, ErrDuplicateGame
	}
	key := strings.TrimSpace(game.GameUUID)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.gamesByUUID[key]; exists {
		return 0, ErrDuplicateGame
	}

	m.nextID++
	stored := cloneGame(game)
	stored.ID = m.nextID

	m.gamesByUUID[key] = stored
	m.gamesByUser[game.PlayerHash] = append(m.gamesByUser[game.PlayerHash], stored)
	return stored.ID, nil
}

func (m *memrepo) GetRecentGames(ctx context.Context, playerHash string, limit int) ([]*domain.GameRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.gamesByUser[playerHash]
	items := make([]*domain.GameRecord, 0, len(list))
	for _, g := range list {
		items = append(items, cloneGame(g))
	}
	sortGamesNewestFirst(items)
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (m *memrepo) GetGameByUUID(ctx context.Context, gameUUID string) (*domain.GameRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if g, ok := m.gamesByUUID[strings.TrimSpace(gameUUID)]; ok && g != nil {
		return cloneGame(g), nil
	}
	return nil, nil
}

func (m *memrepo) GetProfile(ctx context.Context, playerHash string) (*domain.PlayerProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.profiles[strings.TrimSpace(playerHash)]; ok && p != nil {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (m *memrepo) UpsertProfile(ctx context.Context, profile *domain.PlayerProfile) error {
	if profile == nil {
		return nil
	}
	cp := *profile
	m.mu.Lock()
	m.profiles[strings.TrimSpace(profile.PlayerHash)] = &cp
	m.mu.Unlock()
	return nil
}

func (m *memrepo) Close() error { return nil }

func cloneGame(g *domain.GameRecord) *domain.GameRecord {
	cp := *g
	cp.Moves = append([]string(nil), g.Moves...)
	cp.Captured = append([]string(nil), g.Captured...)
	return &cp
}

// sortGamesNewestFirst orders by EndedAt desc, falling back to ID desc.
func sortGamesNewestFirst(items []*domain.GameRecord) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].EndedAt.Equal(items[j].EndedAt) {
			return items[i].EndedAt.After(items[j].EndedAt)
		}
		return items[i].ID > items[j].ID
	})
}
