package cmd

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/recodarr/recodarr/internal/config"
	"github.com/recodarr/recodarr/internal/database"
	"github.com/recodarr/recodarr/internal/database/migrations"
	"github.com/recodarr/recodarr/internal/models"
	"github.com/recodarr/recodarr/internal/probe"
	"github.com/recodarr/recodarr/internal/repository"
	"github.com/recodarr/recodarr/internal/scan"
)

// scanCmd represents the scan command.
var scanCmd = &cobra.Command{
	Use:   "scan [root-id]",
	Short: "Run a one-shot library scan",
	Long: `Walk the configured scan roots and queue files whose codec does not
match their target profile, then exit. With a root ID argument only that
root is scanned.

This runs against the same database as the server; items queued here are
picked up by a running instance.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	applyLoggingFlags(cfg)
	logger := slog.Default()

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := database.New(cfg.Database, logger, nil)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	migrator := migrations.NewMigrator(db.DB, logger)
	migrator.RegisterAll(migrations.AllMigrations())
	if err := migrator.Up(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	queueRepo := repository.NewQueueRepository(db.DB)
	profileRepo := repository.NewProfileRepository(db.DB)
	rootRepo := repository.NewScanRootRepository(db.DB)

	prober := probe.NewProber(cfg.Upscale.FFprobePath, logger)
	scanner := scan.NewScanner(queueRepo, rootRepo, profileRepo, prober, nil, logger)

	var queued int
	if len(args) == 1 {
		id, err := models.ParseULID(args[0])
		if err != nil {
			return fmt.Errorf("invalid root ID %q: %w", args[0], err)
		}
		queued, err = scanner.ScanRoot(ctx, id)
		if err != nil {
			return fmt.Errorf("scanning root: %w", err)
		}
	} else {
		queued, err = scanner.ScanAllRoots(ctx)
		if err != nil {
			return fmt.Errorf("scanning roots: %w", err)
		}
	}

	cmd.Printf("queued %d item(s)\n", queued)
	return nil
}
