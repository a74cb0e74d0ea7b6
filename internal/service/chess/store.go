package chess

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrStaleSession = errors.New("chess session snapshot is older than the stored one")

// SessionRecord is the persisted form of a live session. Selection is transient and not stored.
type SessionRecord struct {
	SessionUUID string     `json:"session_uuid"`
	GameUUID    string     `json:"game_uuid"`
	PlayerHash  string     `json:"player_hash"`
	PlayerName  string     `json:"player_name,omitempty"`
	Board       [][]string `json:"board"`
	Turn        string     `json:"turn"`
	Moves       []string   `json:"moves"`
	Captured    []string   `json:"captured"`
	Outcome     string     `json:"outcome,omitempty"`
	Reason      string     `json:"reason,omitempty"`
	Generation  uint64     `json:"generation"`
	Recorded    bool       `json:"recorded,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type SessionStore interface {
	// Load returns nil, nil when the session does not exist.
	Load(ctx context.Context, sessionID string) (*SessionRecord, error)
	Save(ctx context.Context, record *SessionRecord, ttl time.Duration) error
	Delete(ctx context.Context, sessionID string) error
	Close() error
}

const sessionKeyPrefix = "baahaus:chess:session:"

func sessionKey(id string) string { return sessionKeyPrefix + strings.TrimSpace(id) }

type redisStore struct {
	rdb *redis.Client
}

// NewRedisStore connects to REDIS_URL style addresses (redis:// or rediss://).
func NewRedisStore(ctx context.Context, redisURL string) (SessionStore, error) {
	opts, err := ParseRedisURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &redisStore{rdb: rdb}, nil
}

func NewRedisStoreFromClient(rdb *redis.Client) SessionStore {
	return &redisStore{rdb: rdb}
}

func (s *redisStore) Load(ctx context.Context, sessionID string) (*SessionRecord, error) {
	raw, err := s.rdb.Get(ctx, sessionKey(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load chess session: %w", err)
	}
	var rec SessionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode chess session: %w", err)
	}
	return &rec, nil
}

// Save refuses to overwrite a snapshot with a higher generation. The check and the write
// run under WATCH so two writers cannot interleave.
func (s *redisStore) Save(ctx context.Context, record *SessionRecord, ttl time.Duration) error {
	if record == nil {
		return fmt.Errorf("cannot save nil chess session record")
	}
	key := sessionKey(record.SessionUUID)
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode chess session: %w", err)
	}

	err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, key).Bytes()
		if err != nil && err != redis.Nil {
			return err
		}
		if err == nil {
			var existing SessionRecord
			if jerr := json.Unmarshal(cur, &existing); jerr == nil && existing.Generation > record.Generation {
				return ErrStaleSession
			}
		}
		pipe := tx.TxPipeline()
		pipe.Set(ctx, key, raw, ttl)
		_, err = pipe.Exec(ctx)
		return err
	}, key)
	if err != nil {
		if errors.Is(err, ErrStaleSession) {
			return err
		}
		return fmt.Errorf("save chess session: %w", err)
	}
	return nil
}

func (s *redisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.rdb.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete chess session: %w", err)
	}
	return nil
}

func (s *redisStore) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

// ParseRedisURL accepts redis://[:password@]host[:port][/db].
func ParseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	host := u.Host
	if u.Port() == "" {
		host = u.Hostname() + ":6379"
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: host, Password: pass, DB: db}, nil
}

type memoryEntry struct {
	record    SessionRecord
	expiresAt time.Time
}

// memoryStore is the single-process fallback used when REDIS_URL is not configured.
type memoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryStore() SessionStore {
	return &memoryStore{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *memoryStore) Load(ctx context.Context, sessionID string) (*SessionRecord, error) {
	id := strings.TrimSpace(sessionID)
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, nil
	}
	if !e.expiresAt.IsZero() && m.now().After(e.expiresAt) {
		delete(m.entries, id)
		return nil, nil
	}
	rec := cloneRecord(e.record)
	return &rec, nil
}

func (m *memoryStore) Save(ctx context.Context, record *SessionRecord, ttl time.Duration) error {
	if record == nil {
		return fmt.Errorf("cannot save nil chess session record")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := strings.TrimSpace(record.SessionUUID)
	if cur, ok := m.entries[id]; ok && cur.record.Generation > record.Generation {
		return ErrStaleSession
	}
	var exp time.Time
	if ttl > 0 {
		exp = m.now().Add(ttl)
	}
	m.entries[id] = memoryEntry{record: cloneRecord(*record), expiresAt: exp}
	return nil
}

func (m *memoryStore) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	delete(m.entries, strings.TrimSpace(sessionID))
	m.mu.Unlock()
	return nil
}

func (m *memoryStore) Close() error { return nil }

func cloneRecord(r SessionRecord) SessionRecord {
	out := r
	out.Board = make([][]string, len(r.Board))
	for i, row := range r.Board {
		out.Board[i] = append([]string(nil), row...)
	}
	out.Moves = append([]string(nil), r.Moves...)
	out.Captured = append([]string(nil), r.Captured...)
	return out
}
