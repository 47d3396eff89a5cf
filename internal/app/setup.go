package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	coreapi "github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"

	"github.com/taurimind/server/api"
	"github.com/taurimind/server/db"
	"github.com/taurimind/server/internal/completion"
	"github.com/taurimind/server/internal/config"
	"github.com/taurimind/server/internal/conversation"
	"github.com/taurimind/server/internal/log"
	"github.com/taurimind/server/internal/model"
	"github.com/taurimind/server/internal/notify"
	"github.com/taurimind/server/internal/observability"
	"github.com/taurimind/server/internal/store"
	"github.com/taurimind/server/internal/user"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup — call Close() to release.
func Setup(ctx context.Context, cfg *config.Config) (_ *App, retErr error) {
	logger := provideLogger(cfg)
	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	if cfg.Otel.Enabled {
		a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)
	}

	models, err := provideModels(cfg)
	if err != nil {
		return nil, err
	}
	a.Models = models

	st, pool, err := provideStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Store = st
	a.DBPool = pool

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	a.Bus = notify.NewBus(logger)

	streamer := completion.NewGenkit(g, rate.NewLimiter(rate.Limit(cfg.CompletionRateLimit), 1), logger)

	a.Conversations = conversation.NewRegistry(conversation.Deps{
		Store:    st,
		Notifier: a.Bus,
		Streamer: streamer,
		Logger:   logger,
	})
	a.Users = user.NewRegistry(user.Deps{
		Store:         st,
		Conversations: a.Conversations,
		Logger:        logger,
	})

	var ready api.ReadyChecker
	if pool != nil {
		ready = pool
	}
	a.Server = api.NewServer(api.Deps{
		Models:        a.Models,
		Users:         a.Users,
		Conversations: a.Conversations,
		Bus:           a.Bus,
		Ready:         ready,
		Logger:        logger,
	})

	return a, nil
}

// provideLogger builds the application logger from config.
func provideLogger(cfg *config.Config) log.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	return log.New(log.Config{
		Level: level,
		JSON:  cfg.LogJSON,
	})
}

// provideOtelShutdown sets up trace export before Genkit initialization so
// the TracerProvider is ready when flows register.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger log.Logger) func() {
	shutdown, err := observability.Setup(ctx, observability.Config{
		Endpoint:    cfg.Otel.Endpoint,
		Environment: cfg.Otel.Environment,
		ServiceName: cfg.Otel.ServiceName,
	})
	if err != nil {
		logger.Warn("setting up tracing", "error", err)
		return func() {}
	}

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideModels builds the model registry from the configured catalog.
func provideModels(cfg *config.Config) (*model.Registry, error) {
	catalog := make([]model.Configured, 0, len(cfg.Models))
	for _, m := range cfg.Models {
		catalog = append(catalog, model.Configured{
			Provider:    model.Provider(m.Provider),
			Name:        m.Name,
			Description: m.Description,
			APIKey:      m.APIKey,
			Endpoint:    m.Endpoint,
		})
	}
	registry, err := model.NewRegistry(catalog)
	if err != nil {
		return nil, fmt.Errorf("building model registry: %w", err)
	}
	return registry, nil
}

// provideStore selects the actor state store. With a PostgreSQL host
// configured it runs migrations and opens a pool; otherwise the server
// runs on the in-memory store and state does not survive a restart.
func provideStore(ctx context.Context, cfg *config.Config, logger log.Logger) (store.Versioned, *pgxpool.Pool, error) {
	if !cfg.UsePostgres() {
		logger.Info("no database configured, using in-memory store")
		return store.NewMemory(), nil, nil
	}

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	return store.NewPostgres(pool, logger), pool, nil
}

// provideGenkit initializes Genkit with the plugins the catalog needs:
// Ollama for "local" models, Google AI for "hosted" ones. Ollama requires
// explicit model registration (no auto-discovery).
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, error) {
	var local, hosted []config.ModelConfig
	for _, m := range cfg.Models {
		if m.Provider == config.ProviderLocal {
			local = append(local, m)
		} else {
			hosted = append(hosted, m)
		}
	}

	var plugins []coreapi.Plugin
	ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
	if len(local) > 0 {
		plugins = append(plugins, ollamaPlugin)
	}
	if len(hosted) > 0 {
		plugins = append(plugins, &googlegenai.GoogleAI{})
	}

	g := genkit.Init(ctx, genkit.WithPlugins(plugins...))
	if g == nil {
		return nil, errors.New("initializing genkit")
	}

	for _, m := range local {
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: m.Name,
			Type: "chat",
		}, nil)
	}

	logger.Info("initialized Genkit",
		"local_models", len(local),
		"hosted_models", len(hosted),
		"ollama_host", cfg.OllamaHost)

	return g, nil
}
