package chess

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/park285/baahaus/internal/domain"
)

var ErrDuplicateGame = errors.New("chess game already exists")

type Repository interface {
	InsertGame(ctx context.Context, game *domain.GameRecord) (int64, error)
	GetRecentGames(ctx context.Context, playerHash string, limit int) ([]*domain.GameRecord, error)
	GetGameByUUID(ctx context.Context, gameUUID string) (*domain.GameRecord, error)
	GetProfile(ctx context.Context, playerHash string) (*domain.PlayerProfile, error)
	UpsertProfile(ctx context.Context, profile *domain.PlayerProfile) error
	Close() error
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS chess_games (
	id            BIGSERIAL PRIMARY KEY,
	game_uuid     TEXT NOT NULL UNIQUE,
	session_uuid  TEXT NOT NULL,
	player_hash   TEXT NOT NULL,
	player_name   TEXT NOT NULL DEFAULT '',
	result        TEXT NOT NULL,
	result_method TEXT NOT NULL,
	moves         JSONB NOT NULL DEFAULT '[]'::jsonb,
	captured      JSONB NOT NULL DEFAULT '[]'::jsonb,
	final_fen     TEXT NOT NULL DEFAULT '',
	started_at    TIMESTAMPTZ NOT NULL,
	ended_at      TIMESTAMPTZ NOT NULL,
	duration_ms   BIGINT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS chess_games_player_idx ON chess_games (player_hash, ended_at DESC);
CREATE TABLE IF NOT EXISTS chess_profiles (
	player_hash    TEXT PRIMARY KEY,
	player_name    TEXT NOT NULL DEFAULT '',
	games_played   INTEGER NOT NULL DEFAULT 0,
	wins           INTEGER NOT NULL DEFAULT 0,
	abandoned      INTEGER NOT NULL DEFAULT 0,
	streak         INTEGER NOT NULL DEFAULT 0,
	best_streak    INTEGER NOT NULL DEFAULT 0,
	last_played_at TIMESTAMPTZ,
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

type repository struct {
	db *sql.DB
}

// OpenPostgres opens DATABASE_URL with the pool settings used in production and creates the tables.
func OpenPostgres(ctx context.Context, databaseURL string) (Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	repo := &repository{db: db}
	if err := repo.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) ensureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create chess schema: %w", err)
	}
	return nil
}

func (r *repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *repository) InsertGame(ctx context.Context, game *domain.GameRecord) (int64, error) {
	if game == nil {
		return 0, fmt.Errorf("nil chess game payload")
	}
	moves, err := json.Marshal(nonNil(game.Moves))
	if err != nil {
		return 0, fmt.Errorf("marshal moves: %w", err)
	}
	captured, err := json.Marshal(nonNil(game.Captured))
	if err != nil {
		return 0, fmt.Errorf("marshal captured: %w", err)
	}

	const query = `
		INSERT INTO chess_games (
			game_uuid,
			session_uuid,
			player_hash,
			player_name,
			result,
			result_method,
			moves,
			captured,
			final_fen,
			started_at,
			ended_at,
			duration_ms
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8::jsonb, $9, $10, $11, $12)
		ON CONFLICT (game_uuid) DO NOTHING
		RETURNING id`

	var id sql.NullInt64
	err = r.db.QueryRowContext(
		ctx,
		query,
		game.GameUUID,
		game.SessionUUID,
		game.PlayerHash,
		game.PlayerName,
		game.Result,
		game.ResultMethod,
		moves,
		captured,
		game.FinalFEN,
		game.StartedAt,
		game.EndedAt,
		game.Duration.Milliseconds(),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !id.Valid) {
		return 0, ErrDuplicateGame
	}
	if err != nil {
		return 0, fmt.Errorf("insert chess game: %w", err)
	}
	return id.Int64, nil
}

const gameColumns = `
			id,
			game_uuid,
			session_uuid,
			player_hash,
			player_name,
			result,
			result_method,
			moves,
			captured,
			final_fen,
			started_at,
			ended_at,
			duration_ms`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner) (*domain.GameRecord, error) {
	var (
		game         domain.GameRecord
		movesJSON    []byte
		capturedJSON []byte
		durationMS   sql.NullInt64
	)
	if err := row.Scan(
		&game.ID,
		&game.GameUUID,
		&game.SessionUUID,
		&game.PlayerHash,
		&game.PlayerName,
		&game.Result,
		&game.ResultMethod,
		&movesJSON,
		&capturedJSON,
		&game.FinalFEN,
		&game.StartedAt,
		&game.EndedAt,
		&durationMS,
	); err != nil {
		return nil, err
	}
	if durationMS.Valid {
		game.Duration = time.Duration(durationMS.Int64) * time.Millisecond
	}
	if err := json.Unmarshal(movesJSON, &game.Moves); err != nil {
		return nil, fmt.Errorf("unmarshal moves: %w", err)
	}
	if err := json.Unmarshal(capturedJSON, &game.Captured); err != nil {
		return nil, fmt.Errorf("unmarshal captured: %w", err)
	}
	return &game, nil
}

func (r *repository) GetRecentGames(ctx context.Context, playerHash string, limit int) ([]*domain.GameRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `SELECT` + gameColumns + `
		FROM chess_games
		WHERE player_hash = $1
		ORDER BY ended_at DESC, id DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, playerHash, limit)
	if err != nil {
		return nil, fmt.Errorf("select chess games: %w", err)
	}
	defer rows.Close()

	games := make([]*domain.GameRecord, 0, limit)
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chess game: %w", err)
		}
		games = append(games, game)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chess games: %w", err)
	}
	return games, nil
}

func (r *repository) GetGameByUUID(ctx context.Context, gameUUID string) (*domain.GameRecord, error) {
	query := `SELECT` + gameColumns + `
		FROM chess_games
		WHERE game_uuid = $1`

	game, err := scanGame(r.db.QueryRowContext(ctx, query, gameUUID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select chess game: %w", err)
	}
	return game, nil
}

func (r *repository) GetProfile(ctx context.Context, playerHash string) (*domain.PlayerProfile, error) {
	const query = `
		SELECT
			player_hash,
			player_name,
			games_played,
			wins,
			abandoned,
			streak,
			best_streak,
			last_played_at,
			updated_at,
			created_at
		FROM chess_profiles
		WHERE player_hash = $1
		LIMIT 1`

	var (
		profile    domain.PlayerProfile
		lastPlayed sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, playerHash).Scan(
		&profile.PlayerHash,
		&profile.PlayerName,
		&profile.GamesPlayed,
		&profile.Wins,
		&profile.Abandoned,
		&profile.Streak,
		&profile.BestStreak,
		&lastPlayed,
		&profile.UpdatedAt,
		&profile.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select chess profile: %w", err)
	}
	if lastPlayed.Valid {
		profile.LastPlayedAt = lastPlayed.Time
	}
	return &profile, nil
}

func (r *repository) UpsertProfile(ctx context.Context, profile *domain.PlayerProfile) error {
	if profile == nil {
		return fmt.Errorf("nil chess profile payload")
	}
	const query = `
		INSERT INTO chess_profiles (
			player_hash,
			player_name,
			games_played,
			wins,
			abandoned,
			streak,
			best_streak,
			last_played_at,
			updated_at,
			created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		ON CONFLICT (player_hash)
		DO UPDATE SET
			player_name = EXCLUDED.player_name,
			games_played = EXCLUDED.games_played,
			wins = EXCLUDED.wins,
			abandoned = EXCLUDED.abandoned,
			streak = EXCLUDED.streak,
			best_streak = EXCLUDED.best_streak,
			last_played_at = EXCLUDED.last_played_at,
			updated_at = NOW()`

	_, err := r.db.ExecContext(
		ctx,
		query,
		profile.PlayerHash,
		profile.PlayerName,
		profile.GamesPlayed,
		profile.Wins,
		profile.Abandoned,
		profile.Streak,
		profile.BestStreak,
		profile.LastPlayedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert chess profile: %w", err)
	}
	return nil
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
