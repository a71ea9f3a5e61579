package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"seminarbuchung/cmd/consumers/handlers"
	"seminarbuchung/internal/cache"
	"seminarbuchung/internal/config"
	"seminarbuchung/internal/database"
	"seminarbuchung/internal/logger"
	"seminarbuchung/internal/messaging"
	"seminarbuchung/internal/models"
	"seminarbuchung/internal/repository"
	"seminarbuchung/internal/search"
	"seminarbuchung/internal/service"

	"golang.org/x/sync/errgroup"
)

func main() {
	var (
		sessionID   int64
		skipTitles  bool
		concurrency int
	)
	flag.Int64Var(&sessionID, "session-id", 0, "Reindex a single session (0 = all)")
	flag.BoolVar(&skipTitles, "skip-titles", false, "Do not fill empty session titles")
	flag.IntVar(&concurrency, "concurrency", 4, "Parallel index requests")
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Starting session reindex", "session_id", sessionID)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	es, err := search.NewElasticsearchClient(cfg.Elasticsearch)
	if err != nil {
		logger.Fatal("Failed to connect to Elasticsearch", "error", err)
	}

	var catalogCache handlers.CatalogCache
	if cfg.ValkeyEnabled {
		valkey, err := cache.NewValkeyClient(cfg.Valkey)
		if err != nil {
			slog.Warn("Valkey unavailable, seminar list cache left to expire", "error", err)
		} else {
			defer valkey.Close()
			catalogCache = valkey
		}
	}

	catalog := repository.NewCatalogRepository(db)
	// заголовки пишет сам reindex, событие session.title_changed не нужно
	titler := service.NewSessionTitler(catalog, messaging.NopPublisher{})
	syncer := handlers.NewSearchSyncHandler(catalog, es, catalogCache)

	if err := reindex(ctx, catalog, titler, syncer, sessionID, skipTitles, concurrency); err != nil {
		logger.Fatal("Session reindex failed", "error", err)
	}

	slog.Info("Session reindex completed successfully")
}

type sessionLister interface {
	ListSessions(ctx context.Context) ([]models.Session, error)
}

type titleFiller interface {
	FillIfEmpty(ctx context.Context, sessionID int64) (string, bool, error)
}

type sessionSyncer interface {
	SyncSession(ctx context.Context, sessionID int64) error
}

func reindex(ctx context.Context, catalog sessionLister, titler titleFiller, syncer sessionSyncer, only int64, skipTitles bool, concurrency int) error {
	start := time.Now()

	var sessions []models.Session
	if only != 0 {
		sessions = []models.Session{{ID: only, Status: models.SessionStatusPlanned}}
	} else {
		all, err := catalog.ListSessions(ctx)
		if err != nil {
			return fmt.Errorf("failed to list sessions: %w", err)
		}
		sessions = all
	}
	slog.Info("Sessions to reindex", "count", len(sessions))

	if concurrency < 1 {
		concurrency = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	titled := make([]bool, len(sessions))
	for i := range sessions {
		session := sessions[i]
		g.Go(func() error {
			if !skipTitles && session.Status == models.SessionStatusPlanned {
				_, written, err := titler.FillIfEmpty(gctx, session.ID)
				if err != nil {
					// без заголовка термин всё равно индексируется
					slog.Warn("Failed to fill session title", "session_id", session.ID, "error", err)
				}
				titled[i] = written
			}
			if err := syncer.SyncSession(gctx, session.ID); err != nil {
				return fmt.Errorf("session %d: %w", session.ID, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	filled := 0
	for _, t := range titled {
		if t {
			filled++
		}
	}

	slog.Info("Reindex finished",
		"sessions", len(sessions),
		"titles_filled", filled,
		"duration", time.Since(start).String())
	return nil
}
