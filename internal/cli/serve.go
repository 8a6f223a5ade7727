package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"jobintel-engine/internal/config"
	"jobintel-engine/internal/httpapi"
	"jobintel-engine/internal/scheduler"
)

type ServeOptions struct {
	*RootOptions
	Host string
}

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the ingest scheduler",
		Long: `Run the HTTP API and the cron scheduler until SIGINT or SIGTERM.

Only one engine may serve from a data directory at a time; a second one
exits immediately.

Example:
  engine serve --data-dir /var/lib/jobintel`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts, nil)
		},
	}

	cmd.Flags().StringVar(&opts.Host, "host", "127.0.0.1", "interface to listen on")
	return cmd
}

// runServe blocks until ctx is done. ready, when set, receives the bound
// address once the listener is up.
func runServe(ctx context.Context, opts *ServeOptions, ready chan<- string) error {
	dataDir := resolveDataDir(opts.RootOptions)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return WrapExitError(ExitCommandError, "create data dir", err)
	}

	lock := flock.New(filepath.Join(dataDir, "engine.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return WrapExitError(ExitCommandError, "acquire engine lock", err)
	}
	if !locked {
		return NewExitError(ExitCommandError, "another engine is already running in "+dataDir)
	}
	defer func() { _ = lock.Unlock() }()

	a, err := openApp(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := scheduler.New(a.runner, a.db, a.cfg.Schedule, a.cfg.Sweep)
	if err != nil {
		return WrapExitError(ExitCommandError, "scheduler", err)
	}
	if err := sched.Start(ctx); err != nil {
		return WrapExitError(ExitCommandError, "scheduler", err)
	}
	defer sched.Stop()

	var cfgVal atomic.Value
	cfgVal.Store(a.cfg)

	handler := httpapi.Handler(httpapi.Deps{
		Catalog:     a.catalog,
		Runs:        a.tracker,
		Ingest:      a.runner,
		Hub:         a.hub,
		Scheduler:   sched,
		CfgVal:      &cfgVal,
		UserCfgPath: a.cfgPath,
		LoadCfg: func() (config.Config, error) {
			cfg, err := config.Load(a.cfgPath)
			if err != nil {
				return cfg, err
			}
			cfg, _ = config.NormalizeAndValidate(cfg)
			return cfg, nil
		},
	})

	addr := net.JoinHostPort(opts.Host, fmt.Sprint(a.cfg.App.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return WrapExitError(ExitCommandError, "listen "+addr, err)
	}
	log.Printf("engine listening on http://%s (db=%s)", ln.Addr(), a.cfg.Database.Driver)
	if ready != nil {
		ready <- ln.Addr().String()
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		// SSE streams end when ctx does
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return WrapExitError(ExitFailure, "http server", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Printf("[serve] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[serve] shutdown: %v", err)
	}
	return nil
}
