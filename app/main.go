package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lysyi3m/pressroom/app/account"
	"github.com/lysyi3m/pressroom/app/api"
	"github.com/lysyi3m/pressroom/app/cfg"
	"github.com/lysyi3m/pressroom/app/database"
	"github.com/lysyi3m/pressroom/app/media"
	"github.com/lysyi3m/pressroom/app/publish"
	"github.com/lysyi3m/pressroom/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting Pressroom", "version", cfg.GetVersion())

	if err := run(appCfg); err != nil {
		slog.Error("Pressroom stopped with error", "error", err)
		os.Exit(1)
	}

	slog.Info("Pressroom shutdown complete")
}

func run(appCfg *cfg.Cfg) error {
	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	seedCache := account.NewSeedCache(appCfg.AccountsDir)
	if err := seedCache.Run(); err != nil {
		return fmt.Errorf("failed to load account seeds: %w", err)
	}
	slog.Info("Account seeds loaded", "dir", appCfg.AccountsDir, "count", seedCache.GetSeedCount())

	articleRepo := database.NewArticleRepository(db)
	userRepo := database.NewUserRepository(db)

	mediaStore, mediaRoot := newMediaStore(appCfg)
	stager := media.NewStager(mediaStore, media.NewDownsizer(appCfg.ImageMaxWidth, appCfg.ImageQuality), appCfg.MediaFolder)

	tracker := publish.NewTracker()
	coordinator := publish.NewCoordinator(stager, userRepo, database.NewTxStore(db), tracker, publish.LogNotifier{},
		publish.Rules{
			PublishCost:           appCfg.PublishCost,
			VerifiedPriorityScore: appCfg.VerifiedPriorityScore,
			ResetDelay:            appCfg.ResetDelay,
		})

	slog.Info("Starting background scheduler", "workers", appCfg.WorkerCount)
	scheduler := tasks.NewScheduler(seedCache, userRepo, time.Duration(appCfg.SyncInterval)*time.Second, appCfg.WorkerCount)
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(articleRepo, userRepo, seedCache, coordinator, tracker, scheduler, tasks.NewResults(0))
	httpServer := &http.Server{
		Addr:        ":" + appCfg.Port,
		Handler:     api.NewServer(handler, appCfg.APIAccessKey, mediaRoot),
		ReadTimeout: 60 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Starting HTTP server", "port", appCfg.Port, "public_url", appCfg.PublicURL())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		slog.Info("Shutting down server gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown error: %w", err)
		}
		slog.Info("HTTP server stopped")
		return nil
	})

	return g.Wait()
}

// newMediaStore returns the configured store and the directory to serve under
// /media, which is empty for the remote backend.
func newMediaStore(appCfg *cfg.Cfg) (media.Store, string) {
	if appCfg.MediaBackend == cfg.MediaBackendRemote {
		slog.Info("Using remote media host", "endpoint", appCfg.MediaEndpoint, "folder", appCfg.MediaFolder)
		store := media.NewHTTPStore(appCfg.MediaEndpoint, appCfg.MediaUploadPreset, appCfg.UserAgent,
			time.Duration(appCfg.MediaTimeout)*time.Second, nil)
		return store, ""
	}

	slog.Info("Using local media store", "dir", appCfg.MediaDir, "folder", appCfg.MediaFolder)
	return media.NewLocalStore(appCfg.MediaDir, appCfg.PublicURL()), appCfg.MediaDir
}
