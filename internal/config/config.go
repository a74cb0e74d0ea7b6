package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	SiteAddr    string
	SiteRoot    string
	MessagesDir string

	RedisURL    string
	DatabaseURL string
	BadgerDir   string

	ChessOpponentDelayMS int
	ChessSessionTTLSec   int
	ChessHistoryLimit    int
	ChessMaxSessions     int
}

func (c *AppConfig) OpponentDelay() time.Duration {
	return time.Duration(c.ChessOpponentDelayMS) * time.Millisecond
}

func (c *AppConfig) SessionTTL() time.Duration {
	return time.Duration(c.ChessSessionTTLSec) * time.Second
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		SiteAddr:             ":3001",
		SiteRoot:             ".",
		ChessOpponentDelayMS: 500,
		ChessSessionTTLSec:   3600,
		ChessHistoryLimit:    10,
		ChessMaxSessions:     200,
	}

	if v := strings.TrimSpace(os.Getenv("SITE_ADDR")); v != "" {
		cfg.SiteAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("SITE_ROOT")); v != "" {
		cfg.SiteRoot = v
	}
	cfg.MessagesDir = strings.TrimSpace(os.Getenv("MESSAGES_DIR"))

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.BadgerDir = strings.TrimSpace(os.Getenv("BADGER_DIR"))

	// Chess specific
	if v := strings.TrimSpace(os.Getenv("CHESS_OPPONENT_DELAY_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.ChessOpponentDelayMS = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("CHESS_SESSION_TTL")); v != "" { // seconds
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ChessSessionTTLSec = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("CHESS_HISTORY_LIMIT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ChessHistoryLimit = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("CHESS_MAX_SESSIONS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ChessMaxSessions = n
		}
	}

	if _, _, err := net.SplitHostPort(cfg.SiteAddr); err != nil {
		return nil, fmt.Errorf("invalid SITE_ADDR %q: %w", cfg.SiteAddr, err)
	}
	return cfg, nil
}
