package chess

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/park285/baahaus/internal/domain"
)

// Badger keys
const (
	badgerKeyNextID     = "meta:next_game_id"
	badgerGamePrefix    = "game:"
	badgerPlayerPrefix  = "player:"
	badgerProfilePrefix = "profile:"
)

// badgerRepo keeps history on local disk for single-node deployments (BADGER_DIR).
type badgerRepo struct {
	db *badger.DB
}

func NewBadgerRepository(dir string) (Repository, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("badger dir is required")
	}
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	return openBadger(opts)
}

// NewInMemoryBadgerRepository is used by tests.
func NewInMemoryBadgerRepository() (Repository, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return openBadger(opts)
}

func openBadger(opts badger.Options) (Repository, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &badgerRepo{db: db}, nil
}

func (r *badgerRepo) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func gameKey(gameUUID string) []byte {
	return []byte(badgerGamePrefix + strings.TrimSpace(gameUUID))
}

func playerGameKey(playerHash, gameUUID string) []byte {
	return []byte(badgerPlayerPrefix + playerHash + ":" + strings.TrimSpace(gameUUID))
}

func profileKey(playerHash string) []byte {
	return []byte(badgerProfilePrefix + strings.TrimSpace(playerHash))
}

// badgerUpdateAttempts bounds retries of a read-modify-write transaction that lost a race.
const badgerUpdateAttempts = 10

// update runs fn in a read-write transaction, retrying it from scratch on ErrConflict.
func (r *badgerRepo) update(fn func(txn *badger.Txn) error) error {
	var err error
	for range badgerUpdateAttempts {
		if err = r.db.Update(fn); !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

func (r *badgerRepo) InsertGame(ctx context.Context, game *domain.GameRecord) (int64, error) {
	if game == nil {
		return 0, fmt.Errorf("nil chess game payload")
	}
	var id int64
	err := r.update(func(txn *badger.Txn) error {
		if _, err := txn.Get(gameKey(game.GameUUID)); err == nil {
			return ErrDuplicateGame
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		next := uint64(0)
		item, err := txn.Get([]byte(badgerKeyNextID))
		switch {
		case err == badger.ErrKeyNotFound:
		case err != nil:
			return err
		default:
			if err := item.Value(func(val []byte) error {
				if len(val) == 8 {
					next = binary.BigEndian.Uint64(val)
				}
				return nil
			}); err != nil {
				return err
			}
		}
		next++
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, next)
		if err := txn.Set([]byte(badgerKeyNextID), buf); err != nil {
			return err
		}

		stored := cloneGame(game)
		stored.ID = int64(next)
		data, err := json.Marshal(stored)
		if err != nil {
			return err
		}
		if err := txn.Set(gameKey(game.GameUUID), data); err != nil {
			return err
		}
		if err := txn.Set(playerGameKey(game.PlayerHash, game.GameUUID), []byte(strings.TrimSpace(game.GameUUID))); err != nil {
			return err
		}
		id = stored.ID
		return nil
	})
	if err == ErrDuplicateGame {
		return 0, err
	}
	if err != nil {
		return 0, fmt.Errorf("insert chess game: %w", err)
	}
	return id, nil
}

func (r *badgerRepo) GetRecentGames(ctx context.Context, playerHash string, limit int) ([]*domain.GameRecord, error) {
	var games []*domain.GameRecord
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(badgerPlayerPrefix + playerHash + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var uuid string
			if err := it.Item().Value(func(val []byte) error {
				uuid = string(val)
				return nil
			}); err != nil {
				return err
			}
			game, err := readGame(txn, uuid)
			if err != nil {
				return err
			}
			if game != nil {
				games = append(games, game)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("select chess games: %w", err)
	}
	sortGamesNewestFirst(games)
	if limit > 0 && len(games) > limit {
		games = games[:limit]
	}
	return games, nil
}

func readGame(txn *badger.Txn, gameUUID string) (*domain.GameRecord, error) {
	item, err := txn.Get(gameKey(gameUUID))
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var game domain.GameRecord
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &game)
	}); err != nil {
		return nil, err
	}
	return &game, nil
}

func (r *badgerRepo) GetGameByUUID(ctx context.Context, gameUUID string) (*domain.GameRecord, error) {
	var game *domain.GameRecord
	err := r.db.View(func(txn *badger.Txn) error {
		g, err := readGame(txn, gameUUID)
		game = g
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("select chess game: %w", err)
	}
	return game, nil
}

func (r *badgerRepo) GetProfile(ctx context.Context, playerHash string) (*domain.PlayerProfile, error) {
	var profile *domain.PlayerProfile
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(profileKey(playerHash))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var p domain.PlayerProfile
			if err := json.Unmarshal(val, &p); err != nil {
				return err
			}
			profile = &p
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("select chess profile: %w", err)
	}
	return profile, nil
}

func (r *badgerRepo) UpsertProfile(ctx context.Context, profile *domain.PlayerProfile) error {
	if profile == nil {
		return fmt.Errorf("nil chess profile payload")
	}
	data, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	return r.update(func(txn *badger.Txn) error {
		return txn.Set(profileKey(profile.PlayerHash), data)
	})
}
