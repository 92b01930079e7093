package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/OmPals/VirtualClassroom/internal/auth"
	"github.com/OmPals/VirtualClassroom/internal/config"
	"github.com/OmPals/VirtualClassroom/internal/database"
	"github.com/OmPals/VirtualClassroom/internal/delivery/httpd"
	"github.com/OmPals/VirtualClassroom/internal/repository"
	"github.com/OmPals/VirtualClassroom/internal/service"
	"github.com/OmPals/VirtualClassroom/internal/service/integration"
	"github.com/OmPals/VirtualClassroom/internal/worker"
	"github.com/OmPals/VirtualClassroom/internal/worker/queue"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

type App struct {
	server    *http.Server
	logger    zerolog.Logger
	config    *config.Config
	core      *core
	publisher integration.EventPublisher
	worker    *reconcileRunner
}

// core is what both the HTTP server and the standalone worker need.
type core struct {
	repos      repository.Repositories
	closeStore func(ctx context.Context) error

	assignments service.AssignmentService
	submissions service.SubmissionService
	users       service.UserService
	reconciler  service.ReconcileService
}

func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	c, err := newCore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	publisher := newPublisher(cfg.RabbitMQ, log)
	tokens := auth.NewTokenManager(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.Audience, cfg.Auth.TokenTTL)

	tutorService := service.NewTutorService(c.assignments, c.submissions, c.users, tokens, publisher, nil, log)
	studentService := service.NewStudentService(c.assignments, c.submissions, c.users, tokens, publisher, nil, log)

	var runner *reconcileRunner
	if cfg.Worker.Enabled {
		runner, err = newReconcileRunner(cfg, c.reconciler, log)
		if err != nil {
			publisher.Close()
			c.closeStore(context.Background())
			return nil, err
		}
	}

	handler := httpd.NewHandler(
		tutorService,
		studentService,
		c.reconciler,
		c.users,
		tokens,
		log,
	)

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(httpd.RequestLogger(log))
	router.Use(httpd.Recovery(log))
	router.Use(middleware.Timeout(cfg.Server.RequestTimeout))
	router.Use(httpd.NewCORS(
		cfg.CORS.AllowedOrigins,
		cfg.CORS.AllowedMethods,
		cfg.CORS.AllowedHeaders,
		cfg.CORS.AllowCredentials,
		cfg.CORS.MaxAge,
	))

	handler.RegisterRoutes(router)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &App{
		server:    server,
		logger:    log,
		config:    cfg,
		core:      c,
		publisher: publisher,
		worker:    runner,
	}, nil
}

// Run blocks until the server stops. http.ErrServerClosed is not an error.
func (a *App) Run() error {
	if a.worker != nil {
		if err := a.worker.start(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to start reconcile worker")
			return err
		}
	}

	a.logger.Info().Msgf("Starting virtual classroom service on %s", a.config.Server.Address)
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info().Msg("Shutting down virtual classroom service...")

	serverErr := a.server.Shutdown(ctx)
	if serverErr != nil {
		a.logger.Error().Err(serverErr).Msg("Failed to shutdown HTTP server")
	}

	if a.worker != nil {
		a.worker.stop()
	}

	if err := a.publisher.Close(); err != nil {
		a.logger.Error().Err(err).Msg("Failed to close event publisher")
	}

	if err := a.core.closeStore(ctx); err != nil {
		a.logger.Error().Err(err).Msg("Failed to close store")
	}

	a.logger.Info().Msg("Virtual classroom service stopped")
	return serverErr
}

// Worker runs the reconcile consumer without the HTTP surface.
type Worker struct {
	logger zerolog.Logger
	core   *core
	runner *reconcileRunner
}

func NewWorker(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Worker, error) {
	if !cfg.RabbitMQ.Enabled {
		return nil, errors.New("standalone worker requires rabbitmq.enabled")
	}

	c, err := newCore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	runner, err := newReconcileRunner(cfg, c.reconciler, log)
	if err != nil {
		c.closeStore(context.Background())
		return nil, err
	}

	return &Worker{logger: log, core: c, runner: runner}, nil
}

func (w *Worker) Start() error {
	return w.runner.start()
}

func (w *Worker) Stats() worker.WorkerStats {
	return w.runner.worker.GetStats()
}

func (w *Worker) Shutdown(ctx context.Context) error {
	w.runner.stop()
	return w.core.closeStore(ctx)
}

func newCore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*core, error) {
	repos, closeStore, err := openStore(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}

	assignments := service.NewAssignmentService(repos.Assignments, nil, log)
	submissions := service.NewSubmissionService(repos.Submissions, nil, log)
	users := service.NewUserService(repos.Users, log)

	return &core{
		repos:       repos,
		closeStore:  closeStore,
		assignments: assignments,
		submissions: submissions,
		users:       users,
		reconciler:  service.NewReconcileService(assignments, submissions, users, repos.Users, nil, log),
	}, nil
}

func openStore(ctx context.Context, cfg config.DatabaseConfig, log zerolog.Logger) (repository.Repositories, func(context.Context) error, error) {
	switch cfg.Driver {
	case config.DriverMongo:
		client, db, err := database.NewMongo(ctx, cfg.Mongo)
		if err != nil {
			return repository.Repositories{}, nil, err
		}
		if err := repository.EnsureIndexes(ctx, db, log); err != nil {
			_ = client.Disconnect(context.Background())
			return repository.Repositories{}, nil, err
		}
		log.Info().Str("database", cfg.Mongo.Name).Msg("Mongo connection established")
		return repository.NewMongoRepositories(db, log), client.Disconnect, nil

	case config.DriverPostgres:
		if cfg.Postgres.AutoMigrate {
			if err := migrateUp(cfg.Postgres); err != nil {
				return repository.Repositories{}, nil, err
			}
		}
		db, err := database.NewPostgres(cfg.Postgres)
		if err != nil {
			return repository.Repositories{}, nil, err
		}
		log.Info().Str("database", cfg.Postgres.Name).Msg("Database connection established")
		return repository.NewPostgresRepositories(db, log), func(context.Context) error { return db.Close() }, nil

	case config.DriverMemory:
		log.Warn().Msg("Using in-memory store; data is lost on restart")
		return repository.NewMemoryStore(log).Repositories(), func(context.Context) error { return nil }, nil
	}

	return repository.Repositories{}, nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

func migrateUp(cfg config.PostgresConfig) error {
	db, err := database.NewPostgres(cfg)
	if err != nil {
		return err
	}

	migrator, err := database.NewMigrator(db)
	if err != nil {
		db.Close()
		return err
	}
	defer migrator.Close()

	return migrator.Up()
}

// newPublisher falls back to dropping events when the broker is disabled or
// unreachable; events only drive background repair.
func newPublisher(cfg config.RabbitMQConfig, log zerolog.Logger) integration.EventPublisher {
	if !cfg.Enabled {
		return integration.NoopPublisher{}
	}

	publisher, err := integration.NewRabbitMQClient(cfg.URL, cfg.Exchange, cfg.RoutingKey, cfg.QueueName, log)
	if err != nil {
		log.Warn().Err(err).Msg("RabbitMQ unavailable, assignment events disabled")
		return integration.NoopPublisher{}
	}
	return publisher
}

type reconcileRunner struct {
	conn   *database.RabbitMQ
	worker worker.ReconcileWorker
	cancel context.CancelFunc
	logger zerolog.Logger
}

func newReconcileRunner(cfg *config.Config, reconciler service.ReconcileService, log zerolog.Logger) (*reconcileRunner, error) {
	conn, err := database.NewRabbitMQ(cfg.RabbitMQ.URL, log)
	if err != nil {
		return nil, err
	}

	if err := integration.DeclareTopology(conn.Channel(), cfg.RabbitMQ.Exchange, cfg.RabbitMQ.QueueName, cfg.RabbitMQ.RoutingKey); err != nil {
		conn.Close()
		return nil, err
	}

	consumer := queue.NewRabbitMQConsumer(
		conn.Channel(),
		cfg.RabbitMQ.QueueName,
		cfg.RabbitMQ.ConsumerTag,
		cfg.RabbitMQ.PrefetchCount,
		log,
	)
	pool := worker.NewWorkerPool(cfg.Worker.MaxWorkers, cfg.Worker.QueueSize, log)

	return &reconcileRunner{
		conn:   conn,
		worker: worker.NewReconcileWorker(pool, consumer, reconciler, log),
		logger: log,
	}, nil
}

func (r *reconcileRunner) start() error {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	if err := r.worker.Start(ctx); err != nil {
		cancel()
		return err
	}
	return nil
}

func (r *reconcileRunner) stop() {
	if r.cancel != nil {
		r.cancel()
	}
	if err := r.worker.Stop(); err != nil {
		r.logger.Error().Err(err).Msg("Failed to stop reconcile worker")
	}
	if err := r.conn.Close(); err != nil {
		r.logger.Error().Err(err).Msg("Failed to close RabbitMQ connection")
	}
}
