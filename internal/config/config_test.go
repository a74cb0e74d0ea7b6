package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"SITE_ADDR", "SITE_ROOT", "REDIS_URL", "DATABASE_URL", "BADGER_DIR",
		"CHESS_OPPONENT_DELAY_MS", "CHESS_SESSION_TTL", "CHESS_HISTORY_LIMIT", "CHESS_MAX_SESSIONS", "MESSAGES_DIR"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SiteAddr != ":3001" || cfg.SiteRoot != "." {
		t.Fatalf("site defaults: %+v", cfg)
	}
	if cfg.OpponentDelay() != 500*time.Millisecond || cfg.SessionTTL() != time.Hour {
		t.Fatalf("timing defaults: delay=%v ttl=%v", cfg.OpponentDelay(), cfg.SessionTTL())
	}
	if cfg.ChessHistoryLimit != 10 || cfg.ChessMaxSessions != 200 {
		t.Fatalf("limits: %+v", cfg)
	}
}

func TestLoadOverridesAndInvalidValues(t *testing.T) {
	t.Setenv("SITE_ADDR", "127.0.0.1:8080")
	t.Setenv("CHESS_OPPONENT_DELAY_MS", "0")
	t.Setenv("CHESS_SESSION_TTL", "-5")
	t.Setenv("CHESS_HISTORY_LIMIT", "abc")
	t.Setenv("CHESS_MAX_SESSIONS", "3")
	t.Setenv("REDIS_URL", " redis://localhost:6379/0 ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SiteAddr != "127.0.0.1:8080" || cfg.RedisURL != "redis://localhost:6379/0" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.OpponentDelay() != 0 {
		t.Fatalf("zero delay should be allowed, got %v", cfg.OpponentDelay())
	}
	if cfg.ChessSessionTTLSec != 3600 || cfg.ChessHistoryLimit != 10 {
		t.Fatalf("invalid values should be ignored: %+v", cfg)
	}
	if cfg.ChessMaxSessions != 3 {
		t.Fatalf("max sessions = %d", cfg.ChessMaxSessions)
	}
}

func TestLoadRejectsBadAddr(t *testing.T) {
	t.Setenv("SITE_ADDR", "3001")
	if _, err := Load(); err == nil {
		t.Fatalf("address without port separator should fail")
	}
}
