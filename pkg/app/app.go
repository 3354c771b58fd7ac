package app

import (
	"context"
	"fmt"

	"github.com/jordanlanch/bookworm/config"
	"github.com/jordanlanch/bookworm/pkg/cache"
	"github.com/jordanlanch/bookworm/pkg/catalog"
	"github.com/jordanlanch/bookworm/pkg/database"
	"github.com/jordanlanch/bookworm/pkg/jobs"
	"github.com/jordanlanch/bookworm/pkg/logger"
	"github.com/jordanlanch/bookworm/pkg/metrics"
	"github.com/jordanlanch/bookworm/pkg/recommendations"
	"github.com/jordanlanch/bookworm/pkg/recstore"
	"github.com/prometheus/client_golang/prometheus"
)

// App holds the wired dependencies shared by the API server and the CLI
type App struct {
	Config  *config.Config
	Logger  logger.Logger
	DB      *database.Client
	Redis   *cache.Client // nil when REDIS_URL is empty
	Catalog *catalog.Store
	Store   *recstore.Store
	Service *recommendations.Service
	Metrics *metrics.Metrics
	Params  recommendations.Params
}

// New connects to the database and Redis, applies the schema and builds the recommendation service.
// Metrics are registered on reg.
func New(ctx context.Context, cfg *config.Config, log logger.Logger, reg prometheus.Registerer) (*App, error) {
	a := &App{Config: cfg, Logger: log}

	db, err := database.NewClientWithSSL(cfg.DatabaseURL, &database.SSLConfig{
		Mode:         cfg.DBSSLMode,
		CertPath:     cfg.DBSSLCertPath,
		KeyPath:      cfg.DBSSLKeyPath,
		RootCertPath: cfg.DBSSLRootCertPath,
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	a.DB = db

	if err := db.Migrate(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	if cfg.RedisURL != "" {
		rdb, err := cache.NewClient(cfg.RedisURL, log)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.Redis = rdb
	}

	genres := recommendations.DefaultGenreSimilarity()
	if path := cfg.Recommendations.GenreSimilarityPath; path != "" {
		if genres, err = recommendations.LoadGenreSimilarity(path); err != nil {
			a.Close()
			return nil, err
		}
	}

	a.Metrics = metrics.New(reg)
	a.Params = recommendations.ParamsFromConfig(cfg.Recommendations)
	a.Catalog = catalog.NewStore(db.DB, db.Dialect, log)
	a.Store = recstore.New(db.DB, db.Dialect)

	engine := recommendations.NewEngine(a.Catalog, a.Params, log,
		recommendations.WithGenreSimilarity(genres),
		recommendations.WithEngineObserver(a.Metrics),
	)

	opts := []recommendations.ServiceOption{recommendations.WithObserver(a.Metrics)}
	if a.Redis != nil {
		opts = append(opts, recommendations.WithCache(a.Redis))
	}
	a.Service = recommendations.NewService(a.Store, a.Catalog, engine, a.Params, log, opts...)

	return a, nil
}

// CronManager builds the scheduler for the expiry sweep
func (a *App) CronManager() *jobs.CronManager {
	opts := []jobs.Option{
		jobs.WithSchedule(a.Config.Recommendations.CleanupSchedule),
		jobs.WithRecorder(a.Metrics),
	}
	if a.Redis != nil {
		opts = append(opts, jobs.WithLocker(a.Redis))
	}
	return jobs.NewCronManager(a.Service, a.Logger, opts...)
}

// Close releases the database and Redis connections
func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Warn("failed to close redis", "error", err)
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Warn("failed to close database", "error", err)
		}
	}
}
