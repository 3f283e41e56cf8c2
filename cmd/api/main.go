package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"call-scheduler/internal/agent"
	"call-scheduler/internal/auth"
	"call-scheduler/internal/availability"
	"call-scheduler/internal/calendar"
	"call-scheduler/internal/config"
	"call-scheduler/internal/extract"
	"call-scheduler/internal/llm"
	"call-scheduler/internal/orchestrator"
	"call-scheduler/internal/registry"
	"call-scheduler/internal/voice"
	"call-scheduler/pkg/logger"
	"call-scheduler/pkg/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	store, cleanup, err := openStore(rootCtx, cfg)
	if err != nil {
		log.Error("registry init failed", "backend", string(cfg.Registry.Backend), "err", err)
		os.Exit(1)
	}
	defer cleanup()

	provider := voice.NewBlandProvider(http.DefaultClient, cfg.Voice.BaseURL, cfg.Voice.APIKey)

	var tools []agent.Tool
	if cfg.Calendar.CredentialsFile != "" {
		calClient, err := calendar.NewClient(rootCtx, cfg.Calendar.CredentialsFile, cfg.Calendar.CalendarID)
		if err != nil {
			log.Error("calendar init failed", "err", err)
			os.Exit(1)
		}
		tools = append(tools, calendar.NewFreeSlotsTool(calClient))
	} else {
		log.Warn("no calendar credentials configured, availability agent runs without calendar tools")
	}

	runner := agent.NewToolAgent(cfg.LLM.APIKey, cfg.LLM.AgentModel, log, tools...)
	finder := availability.NewFinder(runner, log)
	extractor := extract.New(llm.NewOpenAIProvider(cfg.LLM.APIKey, cfg.LLM.Model))

	var tokens *auth.WebhookTokenManager
	if cfg.Voice.WebhookSecret != "" {
		tokens, err = auth.NewWebhookTokenManager(cfg.Voice.WebhookSecret, cfg.Voice.WebhookTokenTTL)
		if err != nil {
			log.Error("webhook token init failed", "err", err)
			os.Exit(1)
		}
	}

	svc := &orchestrator.Service{
		Voice:          provider,
		Store:          store,
		Finder:         finder,
		Extractor:      extractor,
		Tokens:         tokens,
		WebhookBaseURL: cfg.Voice.WebhookBaseURL,
		DefaultVoice:   cfg.Voice.DefaultVoice,
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	// Wide-open CORS: the API is meant to sit behind a dev frontend.
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"*"},
	}))

	registerRoutes(r, orchestrator.Handlers{Svc: svc})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
		// No WriteTimeout: outbound provider and model calls are synchronous
		// within the handling request and carry no deadline of their own.
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "registry", string(cfg.Registry.Backend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}

// openStore builds the configured registry backend. The returned cleanup
// closes whatever connection the backend holds.
func openStore(ctx context.Context, cfg config.Config) (registry.Store, func(), error) {
	switch cfg.Registry.Backend {
	case config.RegistryBackendRedis:
		rdb, err := utils.OpenRedis(ctx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			return nil, nil, err
		}
		return registry.NewRedisStore(rdb), func() { _ = rdb.Close() }, nil

	case config.RegistryBackendPostgres:
		db, err := utils.OpenPostgres(ctx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
		if err != nil {
			return nil, nil, err
		}
		store := registry.NewPostgresStore(db)
		if err := store.Init(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return store, func() { _ = db.Close() }, nil

	default:
		return registry.NewMemoryStore(), func() {}, nil
	}
}
