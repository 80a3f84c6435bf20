// Package config centraliza o carregamento de configurações da aplicação.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/JeanGrijp/settlement-guard/internal/core/domain"
)

type Config struct {
	Server      ServerConfig
	Storage     StorageConfig
	Ledger      LedgerConfig
	Gateway     GatewayConfig
	Vault       VaultConfig
	Session     SessionConfig
	Events      EventsConfig
	Settlement  SettlementConfig
	OAuth       OAuthConfig
	RateLimiter RateLimiterConfig
	Log         LogConfig
	Metrics     MetricsConfig
}

type ServerConfig struct {
	Port string
}

type StorageConfig struct {
	Type  string
	Redis RedisConfig
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type LedgerConfig struct {
	DSN string
}

type GatewayConfig struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Timeout   time.Duration
}

type VaultConfig struct {
	Address    string
	Token      string
	SecretPath string
}

// Enabled informa se o segredo do gateway deve ser lido do Vault.
func (c VaultConfig) Enabled() bool {
	return c.Address != ""
}

type SessionConfig struct {
	JWTKey   string
	Lifetime time.Duration
}

type EventsConfig struct {
	NATSURL string
}

type SettlementConfig struct {
	ReplayTTL  time.Duration
	ClaimLease time.Duration
}

type OAuthConfig struct {
	SuccessRedirect string
}

type RateLimiterConfig struct {
	DefaultRule domain.RateLimitRule
	Rules       map[string]domain.RateLimitRule
}

type LogConfig struct {
	Level  string
	Format string
}

type MetricsConfig struct {
	Enabled bool
}

// DefaultActionRules são os limites aplicados quando RATE_LIMIT_RULES não sobrescreve a ação.
func DefaultActionRules() map[string]domain.RateLimitRule {
	return map[string]domain.RateLimitRule{
		domain.ActionGuestSignIn:   {Limit: 5, Window: time.Minute},
		domain.ActionPresence:      {Limit: 30, Window: time.Minute},
		domain.ActionAdminList:     {Limit: 30, Window: time.Minute},
		domain.ActionStatus:        {Limit: 60, Window: time.Minute},
		domain.ActionVerifyPayment: {Limit: 10, Window: time.Minute},
		domain.ActionCreateOrder:   {Limit: 10, Window: time.Minute},
		domain.ActionOAuthCallback: {Limit: 10, Window: time.Minute},
	}
}

func Load() (Config, error) {
	_ = godotenv.Load()

	server := ServerConfig{Port: getEnv("SERVER_PORT", "8080")}

	storageType := getEnv("STORAGE_TYPE", "redis")
	if storageType != "redis" && storageType != "memory" {
		return Config{}, fmt.Errorf("invalid STORAGE_TYPE: %s", storageType)
	}

	redisConfig, err := buildRedisConfig()
	if err != nil {
		return Config{}, err
	}

	gatewayConfig, err := buildGatewayConfig()
	if err != nil {
		return Config{}, err
	}

	settlementConfig, err := buildSettlementConfig()
	if err != nil {
		return Config{}, err
	}

	sessionLifetime, err := getDuration("SESSION_LIFETIME_MINUTES", 24*60, time.Minute)
	if err != nil {
		return Config{}, err
	}

	rateLimiterConfig, err := buildRateLimiterConfig()
	if err != nil {
		return Config{}, err
	}

	metricsEnabled, err := strconv.ParseBool(getEnv("METRICS_ENABLED", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid METRICS_ENABLED: %w", err)
	}

	return Config{
		Server: server,
		Storage: StorageConfig{
			Type:  storageType,
			Redis: redisConfig,
		},
		Ledger:  LedgerConfig{DSN: getEnv("LEDGER_DSN", "data/ledger.db")},
		Gateway: gatewayConfig,
		Vault: VaultConfig{
			Address:    os.Getenv("VAULT_ADDR"),
			Token:      os.Getenv("VAULT_TOKEN"),
			SecretPath: getEnv("VAULT_SECRET_PATH", "secret/data/settlement-guard/gateway"),
		},
		Session: SessionConfig{
			JWTKey:   os.Getenv("SESSION_JWT_KEY"),
			Lifetime: sessionLifetime,
		},
		Events:      EventsConfig{NATSURL: os.Getenv("NATS_URL")},
		Settlement:  settlementConfig,
		OAuth:       OAuthConfig{SuccessRedirect: getEnv("OAUTH_SUCCESS_REDIRECT", "/")},
		RateLimiter: rateLimiterConfig,
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{Enabled: metricsEnabled},
	}, nil
}

func buildRedisConfig() (RedisConfig, error) {
	host := getEnv("REDIS_HOST", "localhost")
	port, err := strconv.Atoi(getEnv("REDIS_PORT", "6379"))
	if err != nil {
		return RedisConfig{}, fmt.Errorf("invalid REDIS_PORT: %w", err)
	}
	db, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return RedisConfig{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	return RedisConfig{
		Host:     host,
		Port:     port,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
	}, nil
}

func buildGatewayConfig() (GatewayConfig, error) {
	timeout, err := getDuration("GATEWAY_TIMEOUT_SECONDS", 10, time.Second)
	if err != nil {
		return GatewayConfig{}, err
	}

	return GatewayConfig{
		BaseURL:   getEnv("GATEWAY_BASE_URL", "http://localhost:9090"),
		KeyID:     os.Getenv("GATEWAY_KEY_ID"),
		KeySecret: os.Getenv("GATEWAY_KEY_SECRET"),
		Timeout:   timeout,
	}, nil
}

func buildSettlementConfig() (SettlementConfig, error) {
	replayTTL, err := getDuration("REPLAY_TTL_MS", 60000, time.Millisecond)
	if err != nil {
		return SettlementConfig{}, err
	}
	claimLease, err := getDuration("CLAIM_LEASE_SECONDS", 120, time.Second)
	if err != nil {
		return SettlementConfig{}, err
	}

	return SettlementConfig{ReplayTTL: replayTTL, ClaimLease: claimLease}, nil
}

func buildRateLimiterConfig() (RateLimiterConfig, error) {
	defaultLimit, err := strconv.Atoi(getEnv("RATE_LIMIT_DEFAULT_LIMIT", "60"))
	if err != nil {
		return RateLimiterConfig{}, fmt.Errorf("invalid RATE_LIMIT_DEFAULT_LIMIT: %w", err)
	}
	defaultWindow, err := getDuration("RATE_LIMIT_DEFAULT_WINDOW_MS", 60000, time.Millisecond)
	if err != nil {
		return RateLimiterConfig{}, err
	}

	rules := DefaultActionRules()
	overrides, err := ParseRules(os.Getenv("RATE_LIMIT_RULES"))
	if err != nil {
		return RateLimiterConfig{}, err
	}
	for action, rule := range overrides {
		rules[action] = rule
	}

	return RateLimiterConfig{
		DefaultRule: domain.RateLimitRule{Limit: defaultLimit, Window: defaultWindow},
		Rules:       rules,
	}, nil
}

// ParseRules lê regras no formato ACTION:LIMIT:WINDOW_MS separadas por vírgula.
func ParseRules(raw string) (map[string]domain.RateLimitRule, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]domain.RateLimitRule{}, nil
	}

	rules := make(map[string]domain.RateLimitRule)
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.Split(item, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("rate limit rule must follow ACTION:LIMIT:WINDOW_MS: %s", item)
		}

		action := strings.TrimSpace(parts[0])
		if action == "" {
			return nil, fmt.Errorf("rate limit rule without action: %s", item)
		}
		limit, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid limit for action %s: %w", action, err)
		}
		windowMs, err := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil {
			return nil, fmt.Errorf("invalid window for action %s: %w", action, err)
		}

		rule := domain.RateLimitRule{Limit: limit, Window: time.Duration(windowMs) * time.Millisecond}
		if !rule.Valid() {
			return nil, fmt.Errorf("rule for action %s must have positive values", action)
		}
		rules[action] = rule
	}

	return rules, nil
}

func getDuration(key string, fallback int, unit time.Duration) (time.Duration, error) {
	value, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return time.Duration(value) * unit, nil
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}
