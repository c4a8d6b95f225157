package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/notes-service/internal/api/http"
	"github.com/spec-kit/notes-service/internal/api/http/handlers"
	"github.com/spec-kit/notes-service/internal/auth"
	"github.com/spec-kit/notes-service/internal/config"
	"github.com/spec-kit/notes-service/internal/events"
	"github.com/spec-kit/notes-service/internal/observability"
	"github.com/spec-kit/notes-service/internal/persistence"
	"github.com/spec-kit/notes-service/internal/ratelimit"
	"github.com/spec-kit/notes-service/internal/repository"
	"github.com/spec-kit/notes-service/internal/service"
	"github.com/spec-kit/notes-service/internal/worker"
)

const shutdownTimeout = 10 * time.Second

// stores is the repository pair selected by STORAGE_DRIVER.
type stores struct {
	users repository.UserRepository
	notes repository.NoteRepository
	close func(context.Context)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open storage", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)

	var sink worker.Sink
	if len(cfg.Kafka.Brokers) > 0 {
		publisher := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		defer publisher.Close() //nolint:errcheck
		sink = publisher
		logger.Info("relaying events to kafka", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}
	worker.StartEventRelay(dispatcher, sink, logger, metrics)

	tokens, err := auth.NewTokenService(cfg.Auth.AccessTokenSecret, cfg.Auth.RefreshTokenSecret)
	if err != nil {
		logger.Fatal("failed to init token service", zap.Error(err))
	}
	session := auth.NewSessionTransport(cfg.App.IsProduction())
	limiter := ratelimit.NewLoginLimiter(redis.Client, cfg.Auth.LoginMaxAttempts, cfg.Auth.LoginWindow(), logger)

	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		UserRepo:   store.users,
		Tokens:     tokens,
		Limiter:    limiter,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	noteService := service.NewNoteService(service.NoteDependencies{
		NoteRepo:   store.notes,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	if err := authService.EnsureAdmin(ctx, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword); err != nil {
		logger.Fatal("failed to bootstrap admin", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: cfg.App.IsProduction(),
	})
	httptransport.RegisterMiddlewares(app, httptransport.MiddlewareConfig{
		Logger:         logger,
		Metrics:        metrics,
		Timeout:        cfg.App.RequestTimeout(),
		AllowedOrigins: cfg.App.AllowedOrigins,
	})

	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
		cfg.Storage.Driver: store.users,
		"redis":            redis,
	})

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         healthHandler,
		Auth:           handlers.NewAuthHandler(authService, session),
		Notes:          handlers.NewNotesHandler(noteService),
		Todos:          handlers.NewTodosHandler(noteService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, session, metrics),
		Metrics:        metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	closeCtx, closeCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer closeCancel()
	store.close(closeCtx)
}

func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, err
		}
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				pg.Close()
				return nil, err
			}
		}
		pool := pg.PoolHandle()
		return &stores{
			users: repository.NewPostgresUserRepository(pool),
			notes: repository.NewPostgresNoteRepository(pool),
			close: func(context.Context) { pg.Close() },
		}, nil

	case config.StorageMemory:
		logger.Warn("using in-memory storage; data is lost on restart")
		mem := repository.NewMemoryStore()
		return &stores{users: mem.Users(), notes: mem.Notes(), close: func(context.Context) {}}, nil

	default:
		mongo, err := persistence.NewMongo(ctx, cfg.Mongo, logger)
		if err != nil {
			return nil, err
		}
		users, err := repository.NewMongoUserRepository(ctx, mongo.Database)
		if err != nil {
			mongo.Close(ctx)
			return nil, err
		}
		notes, err := repository.NewMongoNoteRepository(ctx, mongo.Database)
		if err != nil {
			mongo.Close(ctx)
			return nil, err
		}
		return &stores{users: users, notes: notes, close: mongo.Close}, nil
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
