package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/recodarr/recodarr/internal/config"
	"github.com/recodarr/recodarr/internal/database"
	"github.com/recodarr/recodarr/internal/database/migrations"
	"github.com/recodarr/recodarr/internal/encoder"
	"github.com/recodarr/recodarr/internal/external"
	internalhttp "github.com/recodarr/recodarr/internal/http"
	"github.com/recodarr/recodarr/internal/http/handlers"
	"github.com/recodarr/recodarr/internal/observability"
	"github.com/recodarr/recodarr/internal/probe"
	"github.com/recodarr/recodarr/internal/repository"
	"github.com/recodarr/recodarr/internal/resources"
	"github.com/recodarr/recodarr/internal/scan"
	"github.com/recodarr/recodarr/internal/schedule"
	"github.com/recodarr/recodarr/internal/startup"
	"github.com/recodarr/recodarr/internal/upscale"
	"github.com/recodarr/recodarr/internal/version"
	"github.com/recodarr/recodarr/internal/watcher"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the recodarr server",
	Long: `Start the recodarr HTTP API together with the folder watcher, the
rest-window scheduler, and the encoder pool. This is the normal way to run
recodarr as a long-lived service.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("host", "", "address to bind the HTTP server to")
	serveCmd.Flags().Int("port", 0, "port for the HTTP server")
	serveCmd.Flags().String("db", "", "database DSN (a file path for the sqlite driver)")
	serveCmd.Flags().String("data-dir", "", "base directory for logs, temp files, and upscaler tools")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	applyServeFlags(cmd, cfg)
	applyLoggingFlags(cfg)

	// File-backed logging replaces the early stderr logger.
	logs, err := observability.NewLogSet(cfg.Logging, cfg.Storage.LogPath())
	if err != nil {
		return fmt.Errorf("opening log set: %w", err)
	}
	defer logs.Close()
	logger := logs.Logger()
	observability.SetDefault(logger)

	info := version.GetInfo()
	logger.Info("starting recodarr",
		slog.String("version", info.Version),
		slog.String("commit", info.Commit),
		slog.String("go_version", info.GoVersion))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	// Sweep working directories orphaned by a previous run before the
	// pre-stage starts creating new ones.
	if removed, err := startup.CleanupOrphanedTempDirs(logger, cfg.Storage.TempPath(), startup.DefaultCleanupAge); err != nil {
		logger.Warn("temp directory cleanup failed", slog.String("error", err.Error()))
	} else if removed > 0 {
		logger.Info("cleaned up orphaned temp directories", slog.Int("count", removed))
	}

	db, err := database.New(cfg.Database, logger, nil)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	db.StartStatsMonitor(ctx)

	migrator := migrations.NewMigrator(db.DB, logger)
	migrator.RegisterAll(migrations.AllMigrations())
	if err := migrator.Up(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	queueRepo := repository.NewQueueRepository(db.DB)
	profileRepo := repository.NewProfileRepository(db.DB)
	historyRepo := repository.NewHistoryRepository(db.DB)
	rootRepo := repository.NewScanRootRepository(db.DB)
	watchRepo := repository.NewFolderWatchRepository(db.DB)
	scheduleRepo := repository.NewScheduleRepository(db.DB)
	connectionRepo := repository.NewConnectionRepository(db.DB)
	settingRepo := repository.NewSettingRepository(db.DB)

	// Items left processing or paused by a previous run cannot be resumed;
	// return them to the queue before anything claims work.
	if n, err := queueRepo.RequeueInterrupted(ctx); err != nil {
		logger.Warn("requeueing interrupted items failed", slog.String("error", err.Error()))
	} else if n > 0 {
		logger.Info("requeued interrupted items", slog.Int64("count", n))
	}

	prober := probe.NewProber(cfg.Upscale.FFprobePath, logger)
	monitor := resources.NewMonitor(cfg.Resources, logger)
	scanner := scan.NewScanner(queueRepo, rootRepo, profileRepo, prober, logs.Stats(), logger)
	watch := watcher.New(cfg.Watcher, watchRepo, profileRepo, scanner, logger)

	tools, err := upscale.NewToolManager(cfg.Storage.ToolsPath(), logger)
	if err != nil {
		return fmt.Errorf("initialising upscaler tools: %w", err)
	}
	prestage := upscale.NewPreStage(cfg.Upscale, cfg.Storage.TempPath(), queueRepo, monitor, prober, tools, logger)

	detector := encoder.NewHWAccelDetector(cfg.Encoder.BinaryPath, logger)
	finalizer := encoder.NewFinalizer(queueRepo, historyRepo, logs.Stats(), logger)
	factory := encoder.SupervisorFactory(cfg.Encoder, queueRepo, finalizer, monitor, detector,
		prestage, cfg.Resources.SampleInterval, logger, logs.TranscoderLogger())
	pool := encoder.NewPool(cfg.Encoder, queueRepo, profileRepo, factory, logger)

	scheduler := schedule.New(scheduleRepo, pool, nil, logger)
	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	// Reconcile the window immediately instead of waiting for the first
	// minute boundary.
	scheduler.Tick(ctx)

	var cipher *external.Cipher
	if cfg.Security.SecretKey != "" {
		cipher, err = external.NewCipher(cfg.Security.SecretKey)
		if err != nil {
			return fmt.Errorf("initialising cipher: %w", err)
		}
	} else {
		logger.Warn("security.secret_key is not set, connection API keys cannot be stored")
	}
	syncer := external.NewSyncer(cfg.External, connectionRepo, profileRepo, rootRepo, scanner, cipher, logger)

	serverCfg := internalhttp.DefaultServerConfig()
	serverCfg.Host = cfg.Server.Host
	serverCfg.Port = cfg.Server.Port
	serverCfg.ReadTimeout = cfg.Server.ReadTimeout
	serverCfg.WriteTimeout = cfg.Server.WriteTimeout
	serverCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout
	serverCfg.CORSOrigins = cfg.Server.CORSOrigins
	server := internalhttp.NewServer(serverCfg, logger, version.Version)

	api := server.API()
	handlers.NewHealthHandler(version.Version).WithDB(db.DB).Register(api)
	handlers.NewQueueHandler(queueRepo, prober, logger).Register(api)
	handlers.NewProfileHandler(profileRepo).Register(api)
	handlers.NewScanRootHandler(rootRepo, profileRepo, scanner, logger).Register(api)
	handlers.NewWatchHandler(watchRepo, profileRepo, watch).Register(api)
	handlers.NewScheduleHandler(scheduleRepo, scheduler).Register(api)
	handlers.NewEncoderHandler(pool, scheduler, queueRepo).Register(api)
	handlers.NewResourcesHandler(monitor).Register(api)
	handlers.NewConnectionHandler(connectionRepo, syncer, cipher, publicURL(cfg)).Register(api)
	handlers.NewWebhookHandler(syncer).Register(api)
	handlers.NewLogsHandler(logs).Register(api)
	handlers.NewStatsHandler(historyRepo, queueRepo).Register(api)
	handlers.NewUpscalerHandler(tools).Register(api)
	handlers.NewSettingHandler(settingRepo).Register(api)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return watch.Run(gctx) })
	g.Go(func() error { return tools.Run(gctx, cfg.Upscale.UpdateCheckInterval) })
	g.Go(func() error { return server.ListenAndServe(gctx) })

	err = g.Wait()

	// Shutdown order matters: stop claiming first, then wait for active
	// transcodes to wind down.
	scheduler.Stop()
	pool.Stop()

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("recodarr stopped")
	return nil
}

// applyServeFlags folds explicitly set serve flags into the loaded config.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	if host, ok := changedString(cmd.Flags(), "host"); ok {
		cfg.Server.Host = host
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port, _ = cmd.Flags().GetInt("port")
	}
	if dsn, ok := changedString(cmd.Flags(), "db"); ok {
		cfg.Database.DSN = dsn
	}
	if dir, ok := changedString(cmd.Flags(), "data-dir"); ok {
		cfg.Storage.BaseDir = dir
	}
}

// publicURL resolves the base URL advertised to external services for
// webhook callbacks.
func publicURL(cfg *config.Config) string {
	if cfg.Server.PublicURL != "" {
		return cfg.Server.PublicURL
	}
	host := cfg.Server.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		if name, err := os.Hostname(); err == nil && name != "" {
			host = name
		} else {
			host = "localhost"
		}
	}
	return fmt.Sprintf("http://%s:%d", host, cfg.Server.Port)
}
