package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hireloop/notify-engine/internal/domain"
)

// ProviderConfig is the per-channel provider configuration for one
// business context: where to transmit and with which credentials.
type ProviderConfig struct {
	Endpoint    string
	APIKey      string
	Enabled     bool
	MinInterval time.Duration
}

// ContextConfigProvider resolves channel configuration per business context.
// The channel registry consults it exactly once per (context, channel) at
// handle construction time; the engine never queries a database for config.
type ContextConfigProvider interface {
	ChannelConfig(businessCtx string, ch domain.ChannelName) (ProviderConfig, bool)
}

// Config holds all runtime configuration loaded from environment variables.
// Every field has a sensible default; only DATABASE_URL is required.
type Config struct {
	// Server
	HTTPPort        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Database
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// Optional valkey cache for the free-window tracker.
	// Empty address means an in-process cache is used instead.
	ValkeyAddr     string
	ValkeyPassword string

	// Per-channel provider config (single-context deployment; the
	// ContextConfigProvider interface exists so multi-tenant installs can
	// plug in their own resolver).
	Channels map[domain.ChannelName]ProviderConfig

	// Provider-call budget for one transmit attempt.
	ProviderTimeout time.Duration
	// Store lookups and log appends never block dispatch longer than this.
	StoreTimeout time.Duration

	// Retry policy for transient transmission failures.
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration

	// Conversation gating.
	InitiationWindow      time.Duration
	InitiationMaxAttempts int

	// Free-window tracking for conversation-billed channels.
	FreeWindow time.Duration

	// Default minimum inter-send interval per channel.
	MinSendInterval time.Duration

	// Async dispatch workers.
	DispatchWorkers int
	JobMaxRetries   int
	JobRetryBackoff []time.Duration
	RetryInterval   time.Duration
}

func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	cfg := &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		ReadTimeout:     getDuration("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    getDuration("WRITE_TIMEOUT", 30*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		DatabaseURL: dbURL,
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 25)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 5)),

		ValkeyAddr:     getEnv("VALKEY_ADDR", ""),
		ValkeyPassword: getEnv("VALKEY_PASSWORD", ""),

		ProviderTimeout: getDuration("PROVIDER_TIMEOUT", 10*time.Second),
		StoreTimeout:    getDuration("STORE_TIMEOUT", 3*time.Second),

		RetryMaxAttempts: getInt("RETRY_MAX_ATTEMPTS", 3),
		RetryBaseDelay:   getDuration("RETRY_BASE_DELAY", 500*time.Millisecond),
		RetryMaxDelay:    getDuration("RETRY_MAX_DELAY", 8*time.Second),

		InitiationWindow:      getDuration("INITIATION_WINDOW", 24*time.Hour),
		InitiationMaxAttempts: getInt("INITIATION_MAX_ATTEMPTS", 3),

		FreeWindow: getDuration("FREE_WINDOW", 24*time.Hour),

		MinSendInterval: getDuration("MIN_SEND_INTERVAL", time.Second),

		DispatchWorkers: getInt("DISPATCH_WORKERS", 8),
		JobMaxRetries:   getInt("JOB_MAX_RETRIES", 3),
		JobRetryBackoff: []time.Duration{
			getDuration("JOB_RETRY_BACKOFF_1", 30*time.Second),
			getDuration("JOB_RETRY_BACKOFF_2", 2*time.Minute),
			getDuration("JOB_RETRY_BACKOFF_3", 10*time.Minute),
		},
		RetryInterval: getDuration("RETRY_INTERVAL", 10*time.Second),
	}

	cfg.Channels = loadChannels(cfg.MinSendInterval)
	return cfg, nil
}

// loadChannels reads per-channel env vars, e.g. for whatsapp:
//
//	WHATSAPP_ENDPOINT      provider REST endpoint (required to enable)
//	WHATSAPP_API_KEY       bearer credential
//	WHATSAPP_ENABLED       toggle, defaults to true when an endpoint is set
//	WHATSAPP_MIN_INTERVAL  per-channel override of MIN_SEND_INTERVAL
func loadChannels(defaultInterval time.Duration) map[domain.ChannelName]ProviderConfig {
	channels := make(map[domain.ChannelName]ProviderConfig)
	for _, ch := range domain.AllChannels() {
		prefix := strings.ToUpper(string(ch))
		endpoint := getEnv(prefix+"_ENDPOINT", "")
		if endpoint == "" {
			continue
		}
		channels[ch] = ProviderConfig{
			Endpoint:    endpoint,
			APIKey:      getEnv(prefix+"_API_KEY", ""),
			Enabled:     getBool(prefix+"_ENABLED", true),
			MinInterval: getDuration(prefix+"_MIN_INTERVAL", defaultInterval),
		}
	}
	return channels
}

// Static is a ContextConfigProvider that serves the same channel table to
// every business context. Suitable for single-tenant deployments and tests.
type Static map[domain.ChannelName]ProviderConfig

func (s Static) ChannelConfig(_ string, ch domain.ChannelName) (ProviderConfig, bool) {
	pc, ok := s[ch]
	return pc, ok
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
