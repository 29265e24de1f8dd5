package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/mf-advisor-core/server/internal/agent/graph"
	"github.com/mf-advisor-core/server/internal/agent/model"
	"github.com/mf-advisor-core/server/internal/agent/orchestrator"
	"github.com/mf-advisor-core/server/internal/agent/repo"
	"github.com/mf-advisor-core/server/internal/agent/subagents"
	"github.com/mf-advisor-core/server/internal/core"
	"github.com/mf-advisor-core/server/internal/portal"
	logx "github.com/mf-advisor-core/server/pkg/logger"
	pkgredis "github.com/mf-advisor-core/server/pkg/redis"
	pkgsqlite "github.com/mf-advisor-core/server/pkg/sqlite"
)

// AppConfig defines all configurable parameters of the advisor,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL"`

	// Infrastructure
	Redis  pkgredis.Config
	SQLite pkgsqlite.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Agent configs
	AgentModel   model.AgentModelConfig
	Conversation model.ConversationConfig
	Session      model.SessionConfig
	Portal       model.PortalConfig
	Server       model.ServerConfig

	CORSOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

func loadConfig() (*AppConfig, error) {
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process environment config: %w", err)
	}
	return &cfg, nil
}

// app is everything a turn driver needs.
type app struct {
	cfg      *AppConfig
	advisor  *orchestrator.Orchestrator
	registry *prometheus.Registry
	closers  []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logx.Warn().Err(err).Msg("close resource")
		}
	}
}

func newApp(ctx context.Context, cfg *AppConfig) (*app, error) {
	a := &app{cfg: cfg, registry: prometheus.NewRegistry()}

	sessions, locker, err := a.sessionStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	completer, err := graph.BuildCompleter(ctx, graph.Config{
		APIKey:       cfg.APIKey,
		BaseURL:      cfg.BaseURL,
		AgentModel:   cfg.AgentModel,
		Conversation: cfg.Conversation,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("build completion graph: %w", err)
	}

	pc, err := portal.New(cfg.Portal)
	if err != nil {
		a.Close()
		return nil, err
	}

	timeout, err := time.ParseDuration(cfg.Conversation.LLMTimeout)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("invalid CONVERSATION_LLM_TIMEOUT '%s': %w", cfg.Conversation.LLMTimeout, err)
	}

	a.advisor, err = orchestrator.New(orchestrator.Config{
		AppName:    cfg.Session.AppName,
		Sessions:   sessions,
		Locker:     locker,
		Agents:     subagents.NewRegistry(completer, pc),
		Metrics:    orchestrator.NewMetrics(a.registry),
		LLMTimeout: timeout,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// sessionStore opens the configured backend. A nil locker means the in-process default.
func (a *app) sessionStore(ctx context.Context) (model.SessionRepository, model.Locker, error) {
	ttl, err := time.ParseDuration(a.cfg.Session.TTL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid SESSION_TTL '%s': %w", a.cfg.Session.TTL, err)
	}

	switch a.cfg.Session.Backend {
	case model.BackendMemory:
		logx.Info().Msg("using in-memory session store")
		return repo.NewMemorySessionRepository(), nil, nil

	case model.BackendRedis:
		lockTTL, err := time.ParseDuration(a.cfg.Session.LockTTL)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid SESSION_LOCK_TTL '%s': %w", a.cfg.Session.LockTTL, err)
		}
		rdb, err := a.cfg.Redis.New(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("initialise redis client: %w", err)
		}
		a.closers = append(a.closers, rdb.Close)
		logx.Info().Msg("connected to redis session store")
		return repo.NewRedisSessionRepository(rdb, ttl), repo.NewRedisLocker(rdb, lockTTL), nil

	case model.BackendSQLite:
		db, err := a.cfg.SQLite.Open(ctx)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, db.Close)
		store, err := repo.NewSQLiteSessionRepository(ctx, db)
		if err != nil {
			return nil, nil, err
		}
		logx.Info().Str("path", a.cfg.SQLite.Path).Msg("opened sqlite session store")
		return store, nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown SESSION_BACKEND %q", a.cfg.Session.Backend)
	}
}

// setup loads the configuration and initialises the process-wide logger.
func setup() (*AppConfig, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logx.Init(logx.LoggerOpts{
		Environment: core.ParseEnvironment(cfg.Environment),
		Level:       cfg.LogLevel,
	})
	return cfg, nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mf-advisor",
		Short:         "Conversational mutual fund advisor",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newChatCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
