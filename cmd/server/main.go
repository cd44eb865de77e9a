package main

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
	"sync"
	"syscall"
	"time"

	"github.com/ganot/rpstage/internal/config"
	"github.com/ganot/rpstage/internal/domain/presence"
	"github.com/ganot/rpstage/internal/domain/session"
	"github.com/ganot/rpstage/internal/domain/turn"
	"github.com/ganot/rpstage/internal/filestore"
	"github.com/ganot/rpstage/internal/hub"
	"github.com/ganot/rpstage/internal/mcp"
	"github.com/ganot/rpstage/internal/narrative"
	"github.com/ganot/rpstage/internal/sqlite"
	"github.com/ganot/rpstage/internal/transport"
)

func main() {
	os.Exit(run())
}

// run starts the server and blocks until it stops. It returns the process
// exit code.
func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return 1
	}

	logWriter := io.Writer(os.Stdout)
	if cfg.Log.Path != "" {
		fileWriter, file, err := newLogFileWriter(cfg.Log.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log file error: %v\n", err)
		} else {
			defer file.Close()
			logWriter = fileWriter
		}
	}
	logger := slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	repo, closeRepo, err := openRepository(cfg, logger)
	if err != nil {
		logger.Error("failed to open snapshot storage", "error", err)
		return 1
	}
	defer closeRepo()

	store := session.NewStore(repo, cfg.Store.Key,
		session.WithLimits(session.Limits{MaxChat: cfg.Game.MaxChat, MaxOOC: cfg.Game.MaxOOC}),
		session.WithLogger(logger),
	)
	store.Load(context.Background())

	var narrator hub.Narrator
	if cfg.Narrator.Enabled() {
		gen := narrative.NewOpenAIGenerator(narrative.OpenAIConfig{
			APIKey:      cfg.Narrator.APIKey,
			BaseURL:     cfg.Narrator.BaseURL,
			Model:       cfg.Narrator.Model,
			Persona:     cfg.Narrator.Persona,
			MaxTokens:   cfg.Narrator.MaxTokens,
			Temperature: cfg.Narrator.Temperature,
		})
		narrator = narrative.NewNarrator(gen, cfg.Narrator.Timeout, logger)
		logger.Info("narration enabled", "model", cfg.Narrator.Model)
	} else {
		logger.Info("narration disabled, no api key")
	}

	saver := session.NewSaver(repo, cfg.Store.Key, logger)
	game := hub.New(hub.Config{
		Store:        store,
		Engine:       turn.NewEngine(store, cfg.Game.RoundStep),
		Presence:     presence.NewTracker(),
		Persister:    saver,
		Narrator:     narrator,
		NarratorName: cfg.Narrator.Author,
		SnapshotChat: cfg.Game.SnapshotChat,
		SnapshotOOC:  cfg.Game.SnapshotOOC,
		SaveInterval: cfg.Game.SaveInterval,
		Logger:       logger,
	})

	var mcpHandler http.Handler
	if cfg.MCP.Enabled {
		mcpServer := mcp.NewServer(mcp.Config{Game: game, Logger: logger})
		mcpHandler = mcp.NewHTTPHandler(mcpServer, cfg.MCP.SessionTimeout)
	}

	saverCtx, stopSaver := context.WithCancel(context.Background())
	hubCtx, stopHub := context.WithCancel(context.Background())

	var saverDone, hubDone sync.WaitGroup
	saverDone.Add(1)
	go func() {
		defer saverDone.Done()
		saver.Run(saverCtx)
	}()
	hubDone.Add(1)
	go func() {
		defer hubDone.Done()
		if err := game.Run(hubCtx); err != nil {
			logger.Error("hub stopped with error", "error", err)
		}
	}()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr: addr,
		Handler: transport.NewServer(transport.Config{
			Game:   game,
			MCP:    mcpHandler,
			Logger: logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr, "storage", storageKind(cfg))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)
	serverErr := waitForShutdown(logger, httpServer, stop, serveErr)

	// The hub submits a final snapshot on exit; the saver flushes it before
	// returning.
	stopHub()
	hubDone.Wait()
	stopSaver()
	saverDone.Wait()
	if serverErr != nil {
		logger.Error("shutdown complete after server failure", "error", serverErr)
		return 1
	}
	logger.Info("shutdown complete")
	return 0
}

func openRepository(cfg config.Config, logger *slog.Logger) (session.SnapshotRepository, func(), error) {
	if cfg.DB.Path == "" {
		fs, err := filestore.New(cfg.Store.Dir)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using file snapshots", "path", fs.Path(cfg.Store.Key))
		return fs, func() {}, nil
	}

	if err := ensureDBDir(cfg.DB.Path); err != nil {
		return nil, nil, fmt.Errorf("prepare database path: %w", err)
	}
	db, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		return nil, nil, err
	}
	if err := db.RunMigrations(); err != nil {
		db.Close()
		return nil, nil, err
	}
	logger.Info("using sqlite snapshots", "path", cfg.DB.Path)
	return sqlite.NewSnapshotRepository(db), func() { db.Close() }, nil
}

func storageKind(cfg config.Config) string {
	if cfg.DB.Path != "" {
		return "sqlite"
	}
	return "file"
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// waitForShutdown blocks until a signal arrives or the server fails, then
// shuts the server down. It returns the server failure, if any.
func waitForShutdown(logger *slog.Logger, server *http.Server, stop <-chan os.Signal, serveErr <-chan error) error {
	var failure error
	select {
	case <-stop:
	case failure = <-serveErr:
		logger.Error("server error", "error", failure)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Info("shutting down")
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	return failure
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
