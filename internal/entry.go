// Package internal wires settings, logging and the run modes together.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/starford/imgclean/internal/api"
	"github.com/starford/imgclean/internal/apperr"
	"github.com/starford/imgclean/internal/catalog"
	"github.com/starford/imgclean/internal/cleaner"
	"github.com/starford/imgclean/internal/locate"
	"github.com/starford/imgclean/internal/storage"
	"github.com/starford/imgclean/internal/watch"
)

// catalogFile is the default catalog name inside the images directory.
const catalogFile = "catalog.db"

// Run executes the selected mode with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{
		mode:   ModeClean,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	if app.resolver == nil {
		app.resolver = locate.NewResolver()
	}

	cfg := app.config
	runID := uuid.NewString()
	logger := newLogger(app.stderr, cfg.App, app.verbose)
	slog.SetDefault(logger)

	configPath, err := app.configPath()
	if err != nil {
		return err
	}
	imagesDir := cfg.Paths.ImagesDir
	if imagesDir == "" {
		imagesDir = app.resolver.ImagesDir()
	}

	logger.Debug("Configuration loaded",
		slog.String("mode", string(app.mode)),
		slog.String("config_path", configPath),
		slog.String("images_dir", imagesDir),
		slog.String("log_level", cfg.App.LogLevel.String()))

	svcCfg := cleaner.Config{
		ConfigPath:  configPath,
		ImagesDir:   imagesDir,
		Indent:      cfg.Output.Indent,
		AutoMinSize: cfg.Backup.AutoMinSize,
		Out:         app.stdout,
		Logger:      logger,
		NewID:       firstThenRandom(runID),
	}

	if cfg.Catalog.Enabled && app.mode != ModeListBackups {
		db, err := openCatalog(cfg.Catalog.Path, imagesDir)
		if err != nil {
			logger.Warn("catalog unavailable, runs will not be recorded", slog.String("error", err.Error()))
		} else {
			defer db.Close()
			svcCfg.Catalog = db
		}
	}

	svc := cleaner.New(svcCfg)

	switch app.mode {
	case ModeClean:
		_, err = svc.Clean(ctx)
	case ModeRecover:
		_, err = svc.Recover(ctx, app.recoverFrom)
	case ModeListBackups:
		err = svc.ListBackups(ctx)
	case ModeListRuns:
		err = svc.ListRuns(ctx, app.runLimit)
	case ModeWatch:
		err = runWatch(ctx, svc, cfg.Watch.Debounce, logger)
	case ModeServe:
		err = runServe(ctx, svc, cfg.Serve.Address, imagesDir, logger)
	default:
		err = fmt.Errorf("%w: %q", apperr.ErrInvalidMode, app.mode)
	}
	return err
}

func newLogger(w io.Writer, cfg ApplicationConfig, verbose bool) *slog.Logger {
	level := cfg.LogLevel
	if verbose {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == LogFormatText {
		return slog.New(slog.NewTextHandler(w, hopts))
	}
	return slog.New(slog.NewJSONHandler(w, hopts))
}

// configPath resolves the config file. Recovery reports a missing config as
// "current config not found" itself, and backups can be listed without the
// config, so both fall back to the explicit path or the first candidate
// instead of failing here.
func (a *application) configPath() (string, error) {
	explicit := a.configFile
	if explicit == "" {
		explicit = a.config.Paths.ClaudeConfig
	}
	p, err := a.resolver.FindConfig(explicit)
	if err == nil {
		return p, nil
	}
	if (a.mode != ModeRecover && a.mode != ModeListBackups) || !errors.Is(err, apperr.ErrConfigNotFound) {
		return "", err
	}
	if explicit != "" {
		return explicit, nil
	}
	return a.resolver.ConfigCandidates()[0], nil
}

// firstThenRandom hands out id once, then fresh UUIDs, so a one-shot run is
// recorded under the invocation's ID.
func firstThenRandom(id string) func() string {
	used := false
	return func() string {
		if !used {
			used = true
			return id
		}
		return uuid.NewString()
	}
}

func openCatalog(path, imagesDir string) (*catalog.DB, error) {
	if path == "" {
		path = filepath.Join(imagesDir, catalogFile)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create catalog dir: %w", err)
	}
	return catalog.Open(path)
}

// notifyShutdown cancels ctx on SIGINT or SIGTERM.
func notifyShutdown(ctx context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func runWatch(ctx context.Context, svc *cleaner.Service, debounce time.Duration, logger *slog.Logger) error {
	ctx, cancel := notifyShutdown(ctx, logger)
	defer cancel()

	w := watch.New(svc.ConfigPath(), debounce, func(ctx context.Context) error {
		_, err := svc.Clean(ctx)
		return err
	}, logger)
	return w.Run(ctx)
}

func runServe(ctx context.Context, svc *cleaner.Service, addr, imagesDir string, logger *slog.Logger) error {
	ctx, cancel := notifyShutdown(ctx, logger)
	defer cancel()

	var images storage.Provider
	if fs, err := openImages(imagesDir); err != nil {
		logger.Warn("images directory unavailable", slog.String("error", err.Error()))
	} else {
		images = fs
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           api.NewRouter(svc, images),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server stopped successfully")
	return nil
}

func openImages(dir string) (*storage.FS, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create images dir: %w", err)
	}
	return storage.NewFS(dir)
}
