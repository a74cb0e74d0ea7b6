package chessbuilder

import (
	"context"
	"fmt"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/park285/baahaus/internal/config"
	svcchess "github.com/park285/baahaus/internal/service/chess"
)

func baseConfig() *config.AppConfig {
	return &config.AppConfig{
		SiteAddr:             ":0",
		SiteRoot:             ".",
		ChessOpponentDelayMS: 500,
		ChessSessionTTLSec:   60,
		ChessHistoryLimit:    10,
		ChessMaxSessions:     5,
	}
}

func TestNewInMemory(t *testing.T) {
	deps, err := New(baseConfig(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer deps.Close()
	if deps.StoreKind != "memory" || deps.RepoKind != "memory" {
		t.Fatalf("backends = %s/%s, want memory/memory", deps.StoreKind, deps.RepoKind)
	}
	if got := deps.Service.Config().MaxSessions; got != 5 {
		t.Fatalf("max sessions = %d", got)
	}
	st, err := deps.Service.StartGame(context.Background(), svcchess.SessionMeta{Player: "x"})
	if err != nil || st.SessionUUID == "" {
		t.Fatalf("StartGame: %v", err)
	}
}

func TestNewWithRedisAndBadger(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	cfg := baseConfig()
	cfg.RedisURL = fmt.Sprintf("redis://%s/0", mr.Addr())
	cfg.BadgerDir = t.TempDir()

	deps, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if deps.StoreKind != "redis" || deps.RepoKind != "badger" {
		t.Fatalf("backends = %s/%s, want redis/badger", deps.StoreKind, deps.RepoKind)
	}
	st, err := deps.Service.StartGame(context.Background(), svcchess.SessionMeta{Player: "x"})
	if err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	if !mr.Exists("baahaus:chess:session:" + st.SessionUUID) {
		t.Fatalf("session snapshot not written to redis")
	}
	if err := deps.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestNewFailsOnBadRedis(t *testing.T) {
	cfg := baseConfig()
	cfg.RedisURL = "http://nope"
	if _, err := New(cfg, nil); err == nil {
		t.Fatalf("invalid REDIS_URL should fail")
	}
}
