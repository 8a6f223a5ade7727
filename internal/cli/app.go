package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/redis/go-redis/v9"

	"jobintel-engine/internal/catalog"
	"jobintel-engine/internal/config"
	"jobintel-engine/internal/events"
	"jobintel-engine/internal/ingest"
	"jobintel-engine/internal/poll"
	"jobintel-engine/internal/runs"
	"jobintel-engine/internal/scheduler"
	"jobintel-engine/internal/scrape"
	"jobintel-engine/internal/scrape/util"
	"jobintel-engine/internal/secrets"
	"jobintel-engine/internal/store"
	"jobintel-engine/internal/store/postgres"
)

// backend is everything the engine needs from a database. Both the SQLite
// and the Postgres stores provide it.
type backend interface {
	ingest.Store
	catalog.Reader
	runs.Repository
	scheduler.Sweeper
	Close() error
}

// app is the wired engine shared by every command.
type app struct {
	cfg     config.Config
	cfgPath string

	db      backend
	hub     *events.Hub
	pub     events.Publisher
	rdb     *redis.Client
	tracker *runs.Tracker
	catalog *catalog.Service
	runner  *poll.Runner
	log     *slog.Logger
}

// resolveDataDir picks --data-dir, then $JOBINTEL_DATA_DIR, then ".".
func resolveDataDir(opts *RootOptions) string {
	if opts.DataDir != "" {
		return opts.DataDir
	}
	if v := strings.TrimSpace(os.Getenv("JOBINTEL_DATA_DIR")); v != "" {
		return v
	}
	return "."
}

// loadConfig bootstraps and reads the config file, failing on validation
// errors and logging warnings.
func loadConfig(opts *RootOptions) (config.Config, string, error) {
	dataDir := resolveDataDir(opts)

	path := opts.ConfigPath
	if path == "" {
		p, err := config.EnsureUserConfig(dataDir)
		if err != nil {
			return config.Config{}, "", WrapExitError(ExitCommandError, "config bootstrap failed", err)
		}
		path = p
	}

	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, "", WrapExitError(ExitCommandError, fmt.Sprintf("config load failed (%s)", path), err)
	}
	if opts.DataDir != "" || cfg.App.DataDir == "" {
		cfg.App.DataDir = dataDir
	}

	cfg, v := config.NormalizeAndValidate(cfg)
	for _, w := range v.Warnings {
		slog.Warn("config warning", "path", path, "msg", w)
	}
	if !v.OK() {
		return config.Config{}, "", NewExitError(ExitCommandError, "invalid config "+path+":\n- "+strings.Join(v.Errors, "\n- "))
	}
	return cfg, path, nil
}

func openBackend(ctx context.Context, cfg config.Config) (backend, error) {
	switch cfg.Database.Driver {
	case "postgres":
		db, err := postgres.Open(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath()), 0o755); err != nil {
			return nil, err
		}
		db, err := store.Open(cfg.DatabasePath())
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx, db.Pool); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}
}

func openApp(ctx context.Context, opts *RootOptions) (*app, error) {
	cfg, path, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	db, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open database", err)
	}

	a := &app{
		cfg:     cfg,
		cfgPath: path,
		db:      db,
		hub:     events.NewHub(),
		log:     slog.Default(),
	}

	targets := []events.Publisher{a.hub}
	if cfg.Redis.URL != "" {
		rdb, err := events.DialRedis(ctx, cfg.Redis.URL)
		if err != nil {
			a.log.Warn("redis unavailable, events stay in-process", "err", err)
		} else {
			a.rdb = rdb
			targets = append(targets, events.NewRedisPublisher(rdb, cfg.Redis.Channel))
		}
	}
	a.pub = events.NewMulti(a.log, targets...)

	client := scrape.NewClient(cfg.ScrapeAPI.BaseURL, cfg.ScrapeAPI.Timeout,
		scrape.WithLimiter(util.NewHostLimiter(cfg.ScrapeAPI.RequestsPerSecond, cfg.ScrapeAPI.Burst)),
		scrape.WithToken(secrets.TokenSource(cfg.ScrapeAPI.KeyringAccount)),
		scrape.WithLogger(a.log),
	)

	a.tracker = runs.NewTracker(db, a.log)
	a.catalog = catalog.NewService(db)
	a.runner = poll.NewRunner(client, ingest.NewEngine(db, ingest.WithLogger(a.log)), a.tracker, a.pub, cfg.ScrapeAPI.Sources, a.log)
	return a, nil
}

func (a *app) Close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if err := a.db.Close(); err != nil {
		a.log.Warn("close database", "err", err)
	}
}
