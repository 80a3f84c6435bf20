package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/JeanGrijp/settlement-guard/internal/adapters/events"
	"github.com/JeanGrijp/settlement-guard/internal/adapters/gateway"
	httpHandlers "github.com/JeanGrijp/settlement-guard/internal/adapters/http/handlers"
	"github.com/JeanGrijp/settlement-guard/internal/adapters/metrics"
	"github.com/JeanGrijp/settlement-guard/internal/adapters/secrets"
	"github.com/JeanGrijp/settlement-guard/internal/adapters/session"
	"github.com/JeanGrijp/settlement-guard/internal/adapters/storage/memory"
	redisstorage "github.com/JeanGrijp/settlement-guard/internal/adapters/storage/redis"
	"github.com/JeanGrijp/settlement-guard/internal/adapters/storage/sqlite"
	"github.com/JeanGrijp/settlement-guard/internal/config"
	"github.com/JeanGrijp/settlement-guard/internal/core/domain"
	"github.com/JeanGrijp/settlement-guard/internal/core/ports"
	"github.com/JeanGrijp/settlement-guard/internal/core/services"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			setupLogger(cfg.Log)
			return serve(cmd.Context(), cfg)
		},
	}
}

func setupLogger(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if cfg.Format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

func serve(parent context.Context, cfg config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var observer ports.Metrics = ports.NopMetrics{}
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		prom := metrics.NewPrometheus()
		observer = prom
		metricsHandler = prom.Handler()
	}

	healthChecks := map[string]httpHandlers.HealthCheck{}

	counters, replays, closeStorage, err := initStorage(cfg.Storage, healthChecks)
	if err != nil {
		return fmt.Errorf("failed to init storage: %w", err)
	}
	defer closeStorage()

	ledger, err := sqlite.Open(cfg.Ledger.DSN)
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	defer ledger.Close()
	healthChecks["ledger"] = ledger.Ping

	secret, err := gatewaySecret(ctx, cfg)
	if err != nil {
		return err
	}

	gatewayClient, err := gateway.New(gateway.Config{
		BaseURL:   cfg.Gateway.BaseURL,
		KeyID:     cfg.Gateway.KeyID,
		KeySecret: string(secret),
		Timeout:   cfg.Gateway.Timeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create gateway client: %w", err)
	}

	var publisher ports.EventPublisher = ports.NopPublisher{}
	if cfg.Events.NATSURL != "" {
		natsPublisher, err := events.Connect(cfg.Events.NATSURL)
		if err != nil {
			return err
		}
		defer natsPublisher.Close()
		publisher = natsPublisher
	}

	limiter, err := services.NewRateLimiterService(counters, services.Config{
		DefaultRule: cfg.RateLimiter.DefaultRule,
		Rules:       cloneRules(cfg.RateLimiter.Rules),
		Metrics:     observer,
	})
	if err != nil {
		return fmt.Errorf("failed to create limiter: %w", err)
	}

	guard, err := services.NewReplayGuardService(replays, services.ReplayConfig{
		TTL:     cfg.Settlement.ReplayTTL,
		Metrics: observer,
	})
	if err != nil {
		return fmt.Errorf("failed to create replay guard: %w", err)
	}

	entitlements := sqlite.NewEntitlements(ledger, nil)
	plans := domain.DefaultPlans()

	settlement, err := services.NewSettlementService(ledger, gatewayClient, entitlements, services.SettlementConfig{
		Secret:     secret,
		ClaimLease: cfg.Settlement.ClaimLease,
		Plans:      plans,
		Events:     publisher,
		Metrics:    observer,
	})
	if err != nil {
		return fmt.Errorf("failed to create settlement service: %w", err)
	}

	checkout, err := services.NewCheckoutService(ledger, gatewayClient, plans, nil)
	if err != nil {
		return fmt.Errorf("failed to create checkout service: %w", err)
	}

	sessions, err := session.NewManager(sessionKey(cfg.Session.JWTKey), cfg.Session.Lifetime, nil)
	if err != nil {
		return fmt.Errorf("failed to create session manager: %w", err)
	}

	router := httpHandlers.NewRouter(httpHandlers.RouterConfig{
		Limiter:   limiter,
		Sessions:  sessions,
		Payments:  httpHandlers.NewPaymentsHandler(checkout, settlement),
		Accounts:  httpHandlers.NewAccountHandler(sessions, entitlements, nil),
		Admin:     httpHandlers.NewAdminHandler(checkout),
		RateLimit: httpHandlers.NewRateLimitHandler(limiter, nil),
		OAuth:     httpHandlers.NewOAuthHandler(guard, limiter, session.NewRedirectCompleter(cfg.OAuth.SuccessRedirect), cfg.OAuth.SuccessRedirect),
		Health:    httpHandlers.HealthHandler(healthChecks),
		Metrics:   metricsHandler,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("storage", cfg.Storage.Type).Msg("server listening")
		err := srv.ListenAndServe()
		if err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	return nil
}

func initStorage(cfg config.StorageConfig, checks map[string]httpHandlers.HealthCheck) (ports.CounterStore, ports.ReplayStore, func(), error) {
	switch cfg.Type {
	case "redis":
		storage, err := redisstorage.New(redisstorage.Config{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		checks["redis"] = storage.Ping
		return storage, storage, func() {
			if err := storage.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close redis storage")
			}
		}, nil
	case "memory":
		log.Warn().Msg("using in-memory counters; limits are per process")
		return memory.NewCounterStore(), memory.NewReplayStore(), func() {}, nil
	default:
		return nil, nil, nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

func gatewaySecret(ctx context.Context, cfg config.Config) ([]byte, error) {
	if !cfg.Vault.Enabled() {
		if cfg.Gateway.KeySecret == "" {
			return nil, fmt.Errorf("GATEWAY_KEY_SECRET or VAULT_ADDR must be set")
		}
		return []byte(cfg.Gateway.KeySecret), nil
	}

	loader, err := secrets.NewVaultLoader(secrets.VaultConfig{
		Address: cfg.Vault.Address,
		Token:   cfg.Vault.Token,
		Path:    cfg.Vault.SecretPath,
	})
	if err != nil {
		return nil, err
	}
	readCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	secret, err := loader.GatewaySecret(readCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to load gateway secret: %w", err)
	}
	log.Info().Str("path", cfg.Vault.SecretPath).Msg("gateway secret loaded from vault")
	return secret, nil
}

func sessionKey(configured string) []byte {
	if configured != "" {
		return []byte(configured)
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		panic(err)
	}
	log.Warn().Msg("SESSION_JWT_KEY not set; sessions will not survive a restart")
	return key
}

func cloneRules(src map[string]domain.RateLimitRule) map[string]domain.RateLimitRule {
	if src == nil {
		return nil
	}
	clone := make(map[string]domain.RateLimitRule, len(src))
	for k, v := range src {
		clone[k] = v
	}
	return clone
}
