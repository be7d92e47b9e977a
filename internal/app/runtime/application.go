// Package runtime wires configuration, storage, services and the HTTP server
// into a runnable application.
package runtime

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/pactpoint/backend/internal/app/feedcache"
	"github.com/pactpoint/backend/internal/app/httpapi"
	"github.com/pactpoint/backend/internal/app/proofstore"
	"github.com/pactpoint/backend/internal/app/services/bets"
	"github.com/pactpoint/backend/internal/app/services/challenges"
	"github.com/pactpoint/backend/internal/app/services/moderation"
	"github.com/pactpoint/backend/internal/app/services/notifications"
	"github.com/pactpoint/backend/internal/app/services/tribunal"
	"github.com/pactpoint/backend/internal/app/services/users"
	"github.com/pactpoint/backend/internal/app/storage"
	"github.com/pactpoint/backend/internal/app/storage/memory"
	"github.com/pactpoint/backend/internal/app/storage/postgres"
	"github.com/pactpoint/backend/internal/app/system"
	"github.com/pactpoint/backend/internal/config"
	"github.com/pactpoint/backend/internal/platform/migrations"
	"github.com/pactpoint/backend/pkg/logger"
)

// Application owns every long-lived dependency of the server process.
type Application struct {
	cfg     *config.Config
	log     *logger.Logger
	manager *system.Manager
	httpSvc *httpService

	db    *sqlx.DB
	redis *redis.Client
}

// New builds the application from loaded configuration.
func New(cfg *config.Config) (*Application, error) {
	log := logger.New("app", logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	store, db, err := buildStore(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("configure store: %w", err)
	}

	cache, redisClient, err := buildCache(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("configure cache: %w", err)
	}

	classifier, err := buildClassifier(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("configure classifier: %w", err)
	}

	proofs, err := proofstore.NewDiskStore(cfg.Uploads.Dir, "/uploads")
	if err != nil {
		return nil, fmt.Errorf("configure proof store: %w", err)
	}

	userSvc := users.New(store, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.AllowedEmailDomains, log.Named("users"))
	betSvc := bets.New(store, classifier, cache, log.Named("bets"))
	challengeSvc := challenges.New(store, log.Named("challenges"))
	tribunalSvc := tribunal.New(store, cache, log.Named("tribunal"))
	notificationSvc := notifications.New(store, log.Named("notifications"))
	sweeper := bets.NewSweeper(store, cache, cfg.Sweeper.Interval, cfg.Sweeper.GraceWindow, log.Named("sweeper"))

	handler := httpapi.NewHandler(httpapi.Deps{
		Users:            userSvc,
		Bets:             betSvc,
		Challenges:       challengeSvc,
		Tribunal:         tribunalSvc,
		Notifications:    notificationSvc,
		Proofs:           proofs,
		Sweeper:          sweeper,
		JWTSecret:        cfg.Auth.JWTSecret,
		AdminPassphrase:  cfg.Auth.AdminPassphrase,
		RateLimitEnabled: cfg.RateLimit.Enabled,
		RateLimitRPS:     cfg.RateLimit.RequestsPerSecond,
		RateLimitBurst:   cfg.RateLimit.Burst,
		Log:              log.Named("httpapi"),
	})

	httpSvc := newHTTPService(
		fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		handler,
		cfg.Server.ShutdownTimeout,
		log.Named("http"),
	)

	manager := system.NewManager()
	if err := manager.Register(sweeper); err != nil {
		return nil, err
	}
	if err := manager.Register(httpSvc); err != nil {
		return nil, err
	}

	return &Application{
		cfg:     cfg,
		log:     log,
		manager: manager,
		httpSvc: httpSvc,
		db:      db,
		redis:   redisClient,
	}, nil
}

// Run starts every managed service and blocks until the context is cancelled
// or the HTTP server fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.manager.Start(ctx); err != nil {
		return err
	}
	a.log.Infof("listening on %s", a.httpSvc.Addr())

	select {
	case <-ctx.Done():
		return nil
	case err := <-a.httpSvc.Err():
		return err
	}
}

// Shutdown stops managed services in reverse order and closes external
// connections.
func (a *Application) Shutdown(ctx context.Context) error {
	err := a.manager.Stop(ctx)

	if a.redis != nil {
		if cerr := a.redis.Close(); cerr != nil {
			a.log.WithError(cerr).Warn("error closing redis connection")
		}
	}
	if a.db != nil {
		if cerr := a.db.Close(); cerr != nil {
			a.log.WithError(cerr).Warn("error closing database connection")
		}
	}
	return err
}

// buildStore opens the configured Postgres database and applies migrations,
// or falls back to the in-memory store when no DSN is configured.
func buildStore(cfg *config.Config, log *logger.Logger) (storage.Store, *sqlx.DB, error) {
	if cfg.Database.DSN == "" {
		log.Warn("DATABASE_DSN not set, using in-memory store; data will not survive restarts")
		return memory.New(), nil, nil
	}

	db, err := sqlx.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, nil, err
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	if err := migrations.Apply(ctx, db.DB); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("apply migrations: %w", err)
	}

	return postgres.New(db), db, nil
}

// buildCache connects to Redis when configured, otherwise serves the feed
// cache from process memory.
func buildCache(cfg *config.Config, log *logger.Logger) (feedcache.Cache, *redis.Client, error) {
	if cfg.Redis.Address == "" {
		return feedcache.NewMemory(), nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("ping redis at %s: %w", cfg.Redis.Address, err)
	}
	log.Infof("feed cache backed by redis at %s", cfg.Redis.Address)
	return feedcache.NewRedis(client), client, nil
}

// buildClassifier wires the remote commitment classifier when a URL is
// configured; rule-based classification always remains as the fallback.
func buildClassifier(cfg *config.Config, log *logger.Logger) (*moderation.Service, error) {
	modLog := log.Named("moderation")
	if cfg.Classifier.URL == "" {
		return moderation.New(nil, modLog), nil
	}

	remote, err := moderation.NewHTTPClassifier(
		&http.Client{Timeout: cfg.Classifier.Timeout},
		cfg.Classifier.URL,
		cfg.Classifier.APIKey,
		cfg.Classifier.Model,
		modLog,
	)
	if err != nil {
		return nil, err
	}
	return moderation.New(remote, modLog), nil
}
