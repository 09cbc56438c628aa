// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"safe-room-chat/internal/config"
	"safe-room-chat/internal/domain/ports/adapter"
	"safe-room-chat/internal/domain/ports/repository"
	aiAdapters "safe-room-chat/internal/infra/adapters/ai"
	repAdapters "safe-room-chat/internal/infra/adapters/reputation"
	pg "safe-room-chat/internal/infra/db/postgres"
	"safe-room-chat/internal/infra/logging"
	"safe-room-chat/internal/infra/memcache"
	"safe-room-chat/internal/infra/metrics"
	red "safe-room-chat/internal/infra/redis"
	"safe-room-chat/internal/infra/sched"
	"safe-room-chat/internal/infra/storage/jsonfile"
	"safe-room-chat/internal/infra/transport/ws"
	"safe-room-chat/internal/infra/web"
	"safe-room-chat/internal/usecase"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, unredacted bodies)")
	mintTTL := flag.Duration("mint-token", 0, "print an admin API token valid for this long and exit")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	if *mintTTL > 0 {
		if cfg.Admin.JWTSecret == "" {
			log.Fatalf("admin.jwt_secret is not configured")
		}
		tok, err := web.NewAuthManager(cfg.Admin.JWTSecret, nil).Mint("admin", *mintTTL)
		if err != nil {
			log.Fatalf("mint token: %v", err)
		}
		fmt.Println(tok)
		return
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Redis (optional) ----
	var redisClient red.RedisClient
	if cfg.Redis.Enabled() {
		c, err := red.NewClient(ctx, cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer c.Close()
		redisClient = c
	}

	// ---- Snapshot storage ----
	var (
		store     repository.SnapshotStore
		storeName = cfg.Storage.Driver
		pool      *pgxpool.Pool
	)
	switch cfg.Storage.Driver {
	case "postgres":
		pool, err = pg.Connect(ctx, cfg.Storage.PostgresURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres")
		}
		defer pool.Close()
		pgStore := pg.NewSnapshotStore(pool)
		if err := pgStore.Migrate(ctx); err != nil {
			logger.Fatal().Err(err).Msg("postgres migrate")
		}
		store = pgStore
	default:
		fileStore, err := jsonfile.NewSnapshotStore(cfg.Storage.Path)
		if err != nil {
			logger.Fatal().Err(err).Msg("snapshot store")
		}
		store = fileStore
	}

	rooms, err := usecase.NewRoomUseCase(ctx, store, storeName, cfg.Rooms.MaxMessages, nil, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("room state")
	}

	// ---- URL reputation (optional) ----
	var (
		reputationUC usecase.ReputationUseCase
		janitor      *sched.CacheJanitor
	)
	if cfg.Reputation.Provider == "virustotal" {
		src, err := repAdapters.NewVirusTotalSource(cfg.Reputation.APIKey, cfg.Reputation.BaseURL, &http.Client{Timeout: cfg.Reputation.Timeout})
		if err != nil {
			logger.Fatal().Err(err).Msg("virustotal")
		}
		var cache repository.ReputationCache
		if cfg.Reputation.CacheBackend == "redis" {
			cache = red.NewReputationCache(redisClient, nil, logger)
		} else {
			mc := memcache.NewReputationCache(nil)
			janitor = sched.NewCacheJanitor(cfg.Reputation.JanitorInterval, mc, logger)
			cache = mc
		}
		reputationUC = usecase.NewReputationUseCase(cache, src, usecase.ReputationOptions{
			Threshold: cfg.Reputation.Threshold(),
			TTL:       cfg.Reputation.CacheTTL,
			Timeout:   cfg.Reputation.Timeout,
		}, nil, logger)
		logger.Info().Str("cache", cfg.Reputation.CacheBackend).Str("threshold", cfg.Reputation.BlockThreshold).Msg("URL reputation enabled")
	}

	// ---- Semantic validator (optional) ----
	validator, err := buildValidator(ctx, cfg.AI, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("semantic validator")
	}

	includeRequired := cfg.Filter.IncludeRequired != nil && *cfg.Filter.IncludeRequired
	filterUC := usecase.NewFilterUseCase(reputationUC, validator, usecase.FilterOptions{
		Enabled: cfg.Filter.Enabled,
		Policy: usecase.Policy{
			Include:         cfg.Filter.Include,
			Exclude:         cfg.Filter.Exclude,
			IncludeRequired: includeRequired,
			Mode:            usecase.ParseMode(cfg.Filter.Mode),
		},
		RemoteTimeout: cfg.Filter.RemoteTimeout,
		FailClosed:    cfg.Filter.FailPolicy == "closed",
		MaxConcurrent: cfg.Reputation.MaxConcurrent,
	}, logger)

	var limiter adapter.RateLimiter
	if cfg.RateLimit.Messages > 0 {
		limiter = red.NewRateLimiter(redisClient)
	}

	// ---- Transport + session handling ----
	hub := ws.NewHub(ws.Options{MaxFrameBytes: ws.FrameLimit(cfg.Server.MaxMessageLength)}, logger)
	chatUC := usecase.NewChatUseCase(rooms, filterUC, hub, limiter, usecase.ChatOptions{
		MaxMessageLength: cfg.Server.MaxMessageLength,
		DefaultName:      cfg.Rooms.DefaultName,
		DefaultRoom:      cfg.Rooms.DefaultRoom,
		RateLimit:        cfg.RateLimit.Messages,
		RateWindow:       cfg.RateLimit.Window,
		Dev:              cfg.Runtime.Dev,
	}, nil, logger)

	// ---- HTTP ----
	var auth *web.AuthManager
	if cfg.Admin.JWTSecret != "" {
		auth = web.NewAuthManager(cfg.Admin.JWTSecret, nil)
	}
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           web.NewServer(rooms, filterUC, hub.Handler(chatUC), auth, nil, logger).Router(),
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Str("storage", storeName).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if janitor != nil {
		g.Go(func() error {
			if err := janitor.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	if pool != nil {
		g.Go(func() error {
			pg.ReportPoolStats(gctx, pool, 15*time.Second)
			return nil
		})
	}

	// ---- Graceful shutdown ----
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Int("sessions", hub.Sessions()).Msg("shutdown requested")
		shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
		defer stop()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("http shutdown")
		}
		return rooms.Flush(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("exited with error")
		os.Exit(1)
	}
	logger.Info().Msg("bye")
}

// buildValidator returns the configured provider first and the other provider,
// when it has a key, as fallback. nil means no semantic stage.
func buildValidator(ctx context.Context, cfg config.AIConfig, logger *zerolog.Logger) (adapter.SemanticValidator, error) {
	var gemini, openai adapter.SemanticValidator
	if cfg.GeminiKey != "" {
		model := ""
		if cfg.Provider == "gemini" {
			model = cfg.Model
		}
		v, err := aiAdapters.NewGeminiValidator(ctx, cfg.GeminiKey, cfg.GeminiURL, model)
		if err != nil {
			return nil, fmt.Errorf("gemini: %w", err)
		}
		gemini = v
	}
	if cfg.OpenAIKey != "" {
		model := ""
		if cfg.Provider == "openai" {
			model = cfg.Model
		}
		v, err := aiAdapters.NewOpenAIValidator(cfg.OpenAIKey, cfg.OpenAIBaseURL, model)
		if err != nil {
			return nil, fmt.Errorf("openai: %w", err)
		}
		openai = v
	}

	var chain []adapter.SemanticValidator
	switch cfg.Provider {
	case "gemini":
		chain = appendNonNil(chain, gemini, openai)
	case "openai":
		chain = appendNonNil(chain, openai, gemini)
	default:
		logger.Info().Msg("semantic validator disabled")
		return nil, nil
	}
	if len(chain) == 0 {
		return nil, nil
	}

	var v adapter.SemanticValidator = chain[0]
	if len(chain) > 1 {
		v = aiAdapters.NewMultiValidator(chain...)
	}
	logger.Info().Str("validator", v.Name()).Int("concurrent_limit", cfg.ConcurrentLimit).Msg("semantic validator enabled")
	return aiAdapters.NewLimitedValidator(v, cfg.ConcurrentLimit), nil
}

func appendNonNil(dst []adapter.SemanticValidator, vs ...adapter.SemanticValidator) []adapter.SemanticValidator {
	for _, v := range vs {
		if v != nil {
			dst = append(dst, v)
		}
	}
	return dst
}
