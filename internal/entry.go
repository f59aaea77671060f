// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/vale-ieu/calendario/internal/api"
	"github.com/vale-ieu/calendario/internal/assistant"
	"github.com/vale-ieu/calendario/internal/mcpserver"
	"github.com/vale-ieu/calendario/internal/models"
	"github.com/vale-ieu/calendario/internal/reconciler"
	"github.com/vale-ieu/calendario/internal/repository"
	"github.com/vale-ieu/calendario/internal/sse"
	"github.com/vale-ieu/calendario/internal/statecodec"
	"github.com/vale-ieu/calendario/internal/storage"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// In MCP mode stdout carries the protocol, so logs go to stderr.
	logOut := os.Stdout
	if app.mcp {
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("state_backend", cfg.State.Backend),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.Bool("assistant_enabled", cfg.Assistant.Enabled()),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Initialize storage.
	var store storage.Provider
	var fsStore *storage.FS
	switch cfg.State.Backend {
	case StateBackendSQLite:
		db, err := storage.OpenSQLite(cfg.State.SQLitePath)
		if err != nil {
			return fmt.Errorf("init storage: %w", err)
		}
		defer db.Close()
		store = db
	default:
		fs, err := storage.NewFS(cfg.State.Dir)
		if err != nil {
			return fmt.Errorf("init storage: %w", err)
		}
		fsStore = fs
		store = fs
	}

	repo := repository.New(nil, cfg.Palette)
	rec := reconciler.New(repo)

	seedState(repo, store, cfg.State.ShareToken, logger)

	// Persistence on every mutation, with the saved hashes recorded so
	// the watcher can tell our own writes from external edits.
	saved := &savedHashes{byKey: make(map[string]string)}
	persist := func() {
		events, categories := repo.Snapshot()
		if data, err := statecodec.EncodeEvents(events); err == nil {
			saved.record(storage.KeyEvents, data)
			if err := store.Save(storage.KeyEvents, data); err != nil {
				logger.Error("persist events failed", slog.String("error", err.Error()))
			}
		}
		if data, err := statecodec.EncodeCategories(categories); err == nil {
			saved.record(storage.KeyCategories, data)
			if err := store.Save(storage.KeyCategories, data); err != nil {
				logger.Error("persist categories failed", slog.String("error", err.Error()))
			}
		}
	}

	if app.mcp {
		repo.OnChange(func(kind repository.ChangeKind, id string) { persist() })
		logger.Info("Starting MCP server on stdio")
		return mcpserver.New(repo, rec).ServeStdio()
	}

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	repo.OnChange(func(kind repository.ChangeKind, id string) {
		persist()
		broker.PublishChange(string(kind), id)
	})

	var chat *assistant.Client
	if cfg.Assistant.Enabled() {
		chat = assistant.New(assistant.Config{
			Endpoint: cfg.Assistant.Endpoint,
			Model:    cfg.Assistant.Model,
			APIKey:   cfg.Assistant.APIKey,
			Timeout:  time.Duration(cfg.Assistant.TimeoutSeconds) * time.Second,
		})
	}

	apiRouter := api.NewRouter(repo, rec, chat, api.AuthOptions{
		Enabled:      cfg.Auth.AuthEnabled(),
		Token:        cfg.Auth.Token,
		PasswordHash: cfg.Auth.PasswordHash,
	}, http.HandlerFunc(broker.ServeHTTP))

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	// Periodic state backups.
	var backups *cron.Cron
	if cfg.State.BackupSchedule != "" {
		backups = cron.New()
		_, err := backups.AddFunc(cfg.State.BackupSchedule, func() {
			backupState(repo, store, logger)
		})
		if err != nil {
			return fmt.Errorf("invalid backup schedule: %w", err)
		}
		backups.Start()
		defer backups.Stop()
		logger.Info("Backup schedule active", slog.String("schedule", cfg.State.BackupSchedule))
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Watch the state directory for external edits (fs backend only).
	if fsStore != nil {
		g.Go(func() error {
			return storage.Watch(gCtx, fsStore, logger, saved.matches(fsStore), func(key string) {
				reloadState(repo, store, key, logger)
			})
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// seedState fills the repository at startup. A share token with at
// least one valid event wins over stored blobs; otherwise the blobs are
// loaded, and an empty store leaves the built-in defaults in place.
func seedState(repo *repository.Repository, store storage.Provider, shareToken string, logger *slog.Logger) {
	if shareToken != "" {
		st, err := statecodec.DecodeToken(shareToken)
		if err == nil && countValid(st.Events) > 0 {
			repo.Replace(st.Events, st.Categories)
			logger.Info("State seeded from share token", slog.Int("events", countValid(st.Events)))
			return
		}
		logger.Warn("Share token ignored", slog.String("reason", tokenRejectReason(err)))
	}

	var events []models.Event
	var categories []models.Category
	if data, err := store.Load(storage.KeyEvents); err == nil {
		if decoded, decErr := statecodec.DecodeEvents(data); decErr == nil {
			events = decoded
		} else {
			logger.Warn("Stored events blob is corrupt, starting empty", slog.String("error", decErr.Error()))
		}
	}
	if data, err := store.Load(storage.KeyCategories); err == nil {
		if decoded, decErr := statecodec.DecodeCategories(data); decErr == nil {
			categories = decoded
		} else {
			logger.Warn("Stored categories blob is corrupt, keeping defaults", slog.String("error", decErr.Error()))
		}
	}
	if events != nil || categories != nil {
		repo.Replace(events, categories)
		logger.Info("State loaded from storage",
			slog.Int("events", len(repo.ListEvents())),
			slog.Int("categories", len(repo.Categories())))
	}
}

func countValid(events []models.Event) int {
	n := 0
	for _, e := range events {
		if e.Validate() == nil {
			n++
		}
	}
	return n
}

func tokenRejectReason(err error) string {
	if err != nil {
		return err.Error()
	}
	return "token carries no valid events"
}

// reloadState re-reads one blob after an external edit and swaps it
// into the repository, keeping the other half as-is.
func reloadState(repo *repository.Repository, store storage.Provider, key string, logger *slog.Logger) {
	data, err := store.Load(key)
	if err != nil {
		logger.Warn("reload failed", slog.String("key", key), slog.String("error", err.Error()))
		return
	}

	events, categories := repo.Snapshot()
	switch key {
	case storage.KeyEvents:
		decoded, decErr := statecodec.DecodeEvents(data)
		if decErr != nil {
			logger.Warn("external events blob is corrupt, ignoring", slog.String("error", decErr.Error()))
			return
		}
		events = decoded
	case storage.KeyCategories:
		decoded, decErr := statecodec.DecodeCategories(data)
		if decErr != nil {
			logger.Warn("external categories blob is corrupt, ignoring", slog.String("error", decErr.Error()))
			return
		}
		categories = decoded
	default:
		return
	}
	repo.Replace(events, categories)
}

// backupState writes backup blobs alongside the live ones, one per key.
func backupState(repo *repository.Repository, store storage.Provider, logger *slog.Logger) {
	events, categories := repo.Snapshot()

	blobs := map[string][]byte{}
	if data, err := statecodec.EncodeEvents(events); err == nil {
		blobs["backup-"+storage.KeyEvents] = data
	}
	if data, err := statecodec.EncodeCategories(categories); err == nil {
		blobs["backup-"+storage.KeyCategories] = data
	}
	for key, data := range blobs {
		if err := store.Save(key, data); err != nil {
			logger.Error("backup save failed", slog.String("key", key), slog.String("error", err.Error()))
			return
		}
	}
	logger.Info("State backup written", slog.Int("events", len(events)))
}

// savedHashes remembers the digest of the last blob this process wrote
// per key, so watcher events for our own atomic renames are ignored.
type savedHashes struct {
	mu    sync.Mutex
	byKey map[string]string
}

func (s *savedHashes) record(key string, data []byte) {
	s.mu.Lock()
	s.byKey[key] = statecodec.Sum(data)
	s.mu.Unlock()
}

// matches returns the watcher's isSelfWrite predicate: the current file
// content hashing to our last write means nothing external changed.
func (s *savedHashes) matches(fs *storage.FS) func(key string) bool {
	return func(key string) bool {
		data, err := fs.Load(key)
		if err != nil {
			return false
		}
		s.mu.Lock()
		last := s.byKey[key]
		s.mu.Unlock()
		return last != "" && last == statecodec.Sum(data)
	}
}
