package chessbuilder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/baahaus/internal/adapter/chesspresenter"
	"github.com/park285/baahaus/internal/config"
	"github.com/park285/baahaus/internal/msgcat"
	svcchess "github.com/park285/baahaus/internal/service/chess"
)

type Deps struct {
	Service   *svcchess.Service
	Store     svcchess.SessionStore
	Repo      svcchess.Repository
	Catalog   *msgcat.Catalog
	Formatter *chesspresenter.Formatter

	// StoreKind and RepoKind name the selected backends for logs and health output.
	StoreKind string
	RepoKind  string
}

// New wires the game service. REDIS_URL selects the Redis session store, otherwise sessions stay
// in memory. History goes to Postgres when DATABASE_URL is set, then Badger when BADGER_DIR is set,
// and finally to memory.
func New(cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	catalog, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	formatter := chesspresenter.NewFormatter(catalog)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	deps := &Deps{Catalog: catalog, Formatter: formatter}

	// Sessions (Redis optional)
	if strings.TrimSpace(cfg.RedisURL) != "" {
		store, err := svcchess.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("init redis session store: %w", err)
		}
		deps.Store, deps.StoreKind = store, "redis"
	} else {
		deps.Store, deps.StoreKind = svcchess.NewMemoryStore(), "memory"
	}

	// History
	switch {
	case strings.TrimSpace(cfg.DatabaseURL) != "":
		repo, err := svcchess.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			_ = deps.Close()
			return nil, fmt.Errorf("init postgres repository: %w", err)
		}
		deps.Repo, deps.RepoKind = repo, "postgres"
	case strings.TrimSpace(cfg.BadgerDir) != "":
		repo, err := svcchess.NewBadgerRepository(cfg.BadgerDir)
		if err != nil {
			_ = deps.Close()
			return nil, fmt.Errorf("init badger repository: %w", err)
		}
		deps.Repo, deps.RepoKind = repo, "badger"
	default:
		deps.Repo, deps.RepoKind = svcchess.NewMemoryRepository(), "memory"
	}

	svcCfg := svcchess.Config{
		OpponentDelay: cfg.OpponentDelay(),
		SessionTTL:    cfg.SessionTTL(),
		HistoryLimit:  cfg.ChessHistoryLimit,
		MaxSessions:   cfg.ChessMaxSessions,
	}
	service, err := svcchess.NewService(deps.Store, deps.Repo, svcchess.NewBoardRenderer(), svcCfg, logger,
		svcchess.WithHUD(formatter),
	)
	if err != nil {
		_ = deps.Close()
		return nil, err
	}
	deps.Service = service

	logger.Info("chess service ready",
		zap.String("session_store", deps.StoreKind),
		zap.String("repository", deps.RepoKind),
		zap.Duration("opponent_delay", svcCfg.OpponentDelay),
	)
	return deps, nil
}

// Close stops the service and releases the backends.
func (d *Deps) Close() error {
	if d == nil {
		return nil
	}
	if d.Service != nil {
		d.Service.Shutdown()
	}
	var errs []error
	if d.Store != nil {
		if err := d.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close session store: %w", err))
		}
	}
	if d.Repo != nil {
		if err := d.Repo.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close repository: %w", err))
		}
	}
	return errors.Join(errs...)
}
