// Package app assembles the pipeline's components from configuration.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ConfidentPicks/confident-picks-sub001/internal/cache"
	"github.com/ConfidentPicks/confident-picks-sub001/internal/client"
	"github.com/ConfidentPicks/confident-picks-sub001/internal/config"
	"github.com/ConfidentPicks/confident-picks-sub001/internal/ingest"
	"github.com/ConfidentPicks/confident-picks-sub001/internal/pipeline"
	"github.com/ConfidentPicks/confident-picks-sub001/internal/predict"
	"github.com/ConfidentPicks/confident-picks-sub001/internal/projector"
	"github.com/ConfidentPicks/confident-picks-sub001/internal/publisher"
	"github.com/ConfidentPicks/confident-picks-sub001/internal/repository"
	"github.com/ConfidentPicks/confident-picks-sub001/internal/retry"
	"github.com/ConfidentPicks/confident-picks-sub001/internal/store"
	"github.com/ConfidentPicks/confident-picks-sub001/internal/surface"

	"github.com/rs/zerolog/log"
)

// App holds the long-lived connections a pass needs
type App struct {
	cfg *config.Config

	Client    *client.Client
	Cache     *cache.RedisCache
	DB        *repository.Database
	Store     *store.Mongo
	Surface   *surface.Sheets
	Engine    *predict.Engine
	Projector *projector.Projector
	Publisher *publisher.Publisher
}

// RetryPolicy builds the shared retry policy from configuration.
func RetryPolicy(cfg *config.Config) retry.Policy {
	return retry.Policy{
		BaseDelay:   cfg.RetryBaseDelay,
		MaxDelay:    cfg.RetryMaxDelay,
		MaxAttempts: cfg.RetryMaxAttempts,
		Timeout:     cfg.RequestTimeout,
	}
}

// New connects to every configured backend. Redis and Postgres are
// optional: without them the pass runs uncached and keeps its prediction
// ledger in memory.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	policy := RetryPolicy(cfg)
	a := &App{cfg: cfg}

	opts := client.Options{
		ScheduleURL:    cfg.UpstreamScheduleURL,
		TeamStatsURL:   cfg.UpstreamTeamStatsURL,
		PlayerStatsURL: cfg.UpstreamPlayerStatsURL,
		Retry:          policy,
		CacheTTL:       cfg.CacheTTLUpstream,
	}
	if cfg.RedisURL != "" {
		redisCache, err := cache.NewRedisCache(ctx, cfg.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to connect to Redis - continuing without cache")
		} else {
			a.Cache = redisCache
			opts.Cache = redisCache
		}
	}
	a.Client = client.NewClient(opts)

	var ledger predict.Ledger = predict.NewMemoryLedger()
	if cfg.DatabaseURL != "" {
		db, err := repository.NewDatabase(ctx, cfg.DatabaseURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.DB = db
		if err := db.Migrate(ctx); err != nil {
			a.Close()
			return nil, err
		}
		ledger = db.Predictions
	} else {
		log.Warn().Msg("DATABASE_URL not set - predictions are not persisted between passes")
	}
	a.Engine = predict.NewEngine(cfg.ModelVersion, ledger, nil)

	sheets, err := surface.NewSheets(ctx, cfg.SheetsCredentialsFile, cfg.SpreadsheetID, cfg.SheetName, policy)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Surface = sheets
	a.Projector = projector.New(sheets, surface.DefaultSchema, nil)

	mongoStore, err := store.NewMongo(ctx, store.MongoOptions{
		URI:             cfg.StoreURI,
		Database:        cfg.StoreDatabase,
		CredentialsFile: cfg.StoreCredentialsFile,
		Retry:           policy,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Store = mongoStore
	a.Publisher = publisher.New(mongoStore, nil)

	return a, nil
}

// Runner returns a pass runner for the season in progress at now.
func (a *App) Runner(now time.Time) *pipeline.Runner {
	deps := pipeline.Deps{
		NewLoader: func() pipeline.Loader {
			return ingest.NewIngestor(a.Client, a.cfg.StatsWindow)
		},
		Engine:    a.Engine,
		Projector: a.Projector,
		Publisher: a.Publisher,
		Locker:    a.Store,
	}
	if a.DB != nil {
		deps.Archive = a.DB
	}
	return pipeline.NewRunner(a.cfg.SeasonAt(now), a.cfg.LockTTL, deps)
}

// Health checks every connected backend.
func (a *App) Health(ctx context.Context) map[string]string {
	status := map[string]string{}
	check := func(name string, err error) {
		if err != nil {
			status[name] = fmt.Sprintf("unhealthy: %v", err)
			return
		}
		status[name] = "ok"
	}
	if a.Store != nil {
		check("store", a.Store.Health(ctx))
	}
	if a.DB != nil {
		check("database", a.DB.Health(ctx))
	}
	if a.Cache != nil {
		check("cache", a.Cache.Health(ctx))
	}
	return status
}

// Close releases every connection.
func (a *App) Close() {
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close document store")
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close Redis")
		}
	}
}
