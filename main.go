package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/OmPals/VirtualClassroom/internal/app"
	"github.com/OmPals/VirtualClassroom/internal/config"
	"github.com/OmPals/VirtualClassroom/internal/database"
	"github.com/OmPals/VirtualClassroom/pkg/logger"
	"github.com/rs/zerolog"
)

const usage = `usage: virtual-classroom [command]

commands:
  serve                  run the HTTP API (default)
  worker                 run only the reconcile worker
  migrate up|down        apply or roll back postgres migrations
  migrate force VERSION  mark a migration version as clean
  migrate version        print the current migration version`

func main() {
	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	cfg, err := config.Load()
	if err != nil {
		bootstrap := logger.New()
		bootstrap.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.NewWithConfig(cfg.Logging.Level, cfg.Logging.Pretty, cfg.Logging.NoColor)

	switch command {
	case "serve":
		runServer(cfg, log)
	case "worker":
		runWorker(cfg, log)
	case "migrate":
		runMigrations(cfg, log, os.Args[2:])
	case "-h", "--help", "help":
		fmt.Println(usage)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
}

func runServer(cfg *config.Config, log zerolog.Logger) {
	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create application")
	}

	go func() {
		if err := application.Run(); err != nil {
			log.Error().Err(err).Msg("Failed to run application")
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown gracefully")
	}
}

func runWorker(cfg *config.Config, log zerolog.Logger) {
	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	w, err := app.NewWorker(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create worker")
	}

	if err := w.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start worker")
	}
	log.Info().Msg("Standalone reconcile worker started")

	<-ctx.Done()

	stats := w.Stats()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := w.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown worker")
	}

	log.Info().
		Int("total_processed", stats.TotalProcessed).
		Int("failed_jobs", stats.FailedJobs).
		Int("discarded_messages", stats.DiscardedMessages).
		Msg("Standalone reconcile worker stopped")
}

func runMigrations(cfg *config.Config, log zerolog.Logger, args []string) {
	if cfg.Database.Driver != config.DriverPostgres {
		log.Fatal().Str("driver", cfg.Database.Driver).Msg("Migrations only apply to the postgres driver")
	}

	direction := "up"
	if len(args) > 0 {
		direction = args[0]
	}

	db, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	migrator, err := database.NewMigrator(db)
	if err != nil {
		db.Close()
		log.Fatal().Err(err).Msg("Failed to create migrator")
	}
	defer migrator.Close()

	switch direction {
	case "up":
		if err := migrator.Up(); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply migrations")
		}
		log.Info().Msg("Migrations applied successfully")
	case "down":
		if err := migrator.Down(); err != nil {
			log.Fatal().Err(err).Msg("Failed to rollback migrations")
		}
		log.Info().Msg("Migrations rolled back successfully")
	case "force":
		if len(args) < 2 {
			log.Fatal().Msg("migrate force requires a version")
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid migration version")
		}
		if err := migrator.Force(version); err != nil {
			log.Fatal().Err(err).Msg("Failed to force migration version")
		}
		log.Info().Int("version", version).Msg("Migration version forced")
	case "version":
		version, dirty, err := migrator.Version()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read migration version")
		}
		log.Info().Uint("version", version).Bool("dirty", dirty).Msg("Current migration version")
	default:
		log.Fatal().Msg("Invalid migration direction. Use 'up', 'down', 'force' or 'version'")
	}
}
