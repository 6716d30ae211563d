package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edvin/churchadmin/internal/api"
	"github.com/edvin/churchadmin/internal/backup"
	"github.com/edvin/churchadmin/internal/config"
	"github.com/edvin/churchadmin/internal/core"
	"github.com/edvin/churchadmin/internal/db"
	"github.com/edvin/churchadmin/internal/logging"
	"github.com/edvin/churchadmin/internal/metrics"
	"github.com/edvin/churchadmin/internal/notify"
	"github.com/edvin/churchadmin/internal/offsite"
)

func main() {
	migrateFlag := flag.Bool("migrate", false, "Run database migrations before starting")
	migrateDirFlag := flag.String("migrate-dir", "migrations", "Migration files directory")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	if *migrateFlag {
		logger.Info().Str("dir", *migrateDirFlag).Msg("running database migrations")
		if err := db.RunMigrations(cfg.DatabaseURL, *migrateDirFlag); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	metrics.RegisterPgxPoolMetrics(pool)

	services := core.NewServices(pool)

	mysql := backup.ConnectionInfo{
		Host:     cfg.MySQLHost,
		User:     cfg.MySQLUser,
		Password: cfg.MySQLPassword,
		Database: cfg.MySQLDatabase,
	}

	archiver := backup.NewArchiveRunner(logger, cfg.TarBin, cfg.ProcessTimeout)
	dumper := backup.NewDumpRunner(logger, cfg.MysqldumpBin, cfg.GzipBin, cfg.GunzipBin, cfg.MysqlBin, cfg.ProcessTimeout)
	borg := backup.NewBorgRunner(logger, cfg.BorgBin, cfg.BorgScript, cfg.BorgRepoPath, cfg.ProcessTimeout)

	sched := backup.NewScheduler(logger, cfg.WorkerCount, cfg.QueueSize)
	metrics.RegisterQueueDepth(sched.QueueDepth)

	var uploader backup.OffsiteUploader
	if cfg.S3Bucket != "" {
		uploader = offsite.NewUploader(logger, cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, "artifacts")
		logger.Info().Str("bucket", cfg.S3Bucket).Msg("offsite replication enabled")
	}

	orch := backup.NewOrchestrator(logger, backup.OrchestratorOptions{
		Jobs:        services.Job,
		Artifacts:   services.Artifact,
		Settings:    services.Settings,
		Filters:     services.Filter,
		Archiver:    archiver,
		Dumper:      dumper,
		Snapshotter: borg,
		Scheduler:   sched,
		Notifier:    notify.NewLogNotifier(logger),
		Uploader:    uploader,
		BackupRoot:  cfg.BackupRoot,
		SourceRoot:  cfg.SourceRoot,
		MySQL:       mysql,
	})

	restoreOrch := backup.NewRestoreOrchestrator(logger, backup.RestoreOrchestratorOptions{
		Restores:   services.Restore,
		Artifacts:  services.Artifact,
		Archiver:   archiver,
		Dumper:     dumper,
		Scheduler:  sched,
		SourceRoot: cfg.SourceRoot,
		MySQL:      mysql,
	})

	sched.Start(ctx)

	reaper := backup.NewReaper(logger, services.Job, services.Restore, cfg.StaleAfter, cfg.SweepInterval)
	go reaper.Run(ctx)

	srv := api.NewServer(logger, pool, services, orch, restoreOrch, borg)

	httpServer := &http.Server{
		Addr:         cfg.HTTPListenAddr,
		Handler:      srv.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	metricsServer := metrics.NewServer(cfg.MetricsListenAddr)

	go func() {
		logger.Info().Str("addr", cfg.MetricsListenAddr).Msg("starting metrics server")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("metrics server failed")
		}
	}()
	go func() {
		logger.Info().Str("addr", cfg.HTTPListenAddr).Msg("starting backup API server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	metricsServer.Shutdown(shutdownCtx)

	// Stop workers after the HTTP surface is closed so in-flight jobs are
	// not orphaned by new submissions racing shutdown.
	cancel()
	sched.Wait()
}
