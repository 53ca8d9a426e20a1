package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the gateway.
type Config struct {
	Port string

	// Execution
	DryRun bool

	// Binance Spot
	BinanceTestnet   bool
	EnableSpot       bool
	BinanceAPIKey    string
	BinanceAPISecret string
	// Binance Futures (USDT)
	EnableUSDTFutures bool
	BinanceUSDTKey    string
	BinanceUSDTSecret string

	// Filter cache
	FilterRefreshInterval time.Duration
	FilterSeedFile        string // required in dry-run mode

	// Outbound exchange calls
	ExchangeTimeout        time.Duration // per attempt
	ExchangeMaxRetries     int
	ExchangeRetryBaseDelay time.Duration
	ExchangeRetryMaxDelay  time.Duration
	ExchangeRPS            float64
	ExitLegParallelism     int

	// Dry-run simulation
	DryRunGwLatencyMinMs int
	DryRunGwLatencyMaxMs int

	// Event sinks
	EventSinks     []string // log, webhook, journal, bus
	WebhookURL     string
	WebhookTimeout time.Duration
	JournalDBPath  string

	EnableUserStream bool

	// HTTP API
	JWTSecret      string // empty disables bearer auth
	CORSOrigins    []string
	RateLimitRPS   float64 // per client IP
	RateLimitBurst int
	RequestTimeout time.Duration

	// Logging
	LogLevel string
	LogFile  string
}

// Load reads environment variables (optionally via .env) into Config and
// validates them. Every problem is reported in a single error.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	cfg := &Config{
		Port:                   getEnv("PORT", "8080"),
		DryRun:                 getEnv("DRY_RUN", "false") == "true",
		BinanceTestnet:         getEnv("BINANCE_TESTNET", "false") == "true",
		EnableSpot:             getEnv("ENABLE_SPOT", "true") == "true",
		BinanceAPIKey:          os.Getenv("BINANCE_API_KEY"),
		BinanceAPISecret:       os.Getenv("BINANCE_API_SECRET"),
		EnableUSDTFutures:      getEnv("ENABLE_USDT_FUTURES", "false") == "true",
		BinanceUSDTKey:         os.Getenv("BINANCE_USDT_KEY"),
		BinanceUSDTSecret:      os.Getenv("BINANCE_USDT_SECRET"),
		FilterRefreshInterval:  getEnvDuration("FILTER_REFRESH_INTERVAL", time.Hour),
		FilterSeedFile:         getEnv("FILTER_SEED_FILE", ""),
		ExchangeTimeout:        getEnvDuration("EXCHANGE_TIMEOUT", 10*time.Second),
		ExchangeMaxRetries:     getEnvInt("EXCHANGE_MAX_RETRIES", 3),
		ExchangeRetryBaseDelay: getEnvDuration("EXCHANGE_RETRY_BASE_DELAY", 200*time.Millisecond),
		ExchangeRetryMaxDelay:  getEnvDuration("EXCHANGE_RETRY_MAX_DELAY", 2*time.Second),
		ExchangeRPS:            getEnvFloat("EXCHANGE_RPS", 10),
		ExitLegParallelism:     getEnvInt("EXIT_LEG_PARALLELISM", 4),
		DryRunGwLatencyMinMs:   getEnvInt("DRY_RUN_GATEWAY_LATENCY_MIN_MS", 0),
		DryRunGwLatencyMaxMs:   getEnvInt("DRY_RUN_GATEWAY_LATENCY_MAX_MS", 0),
		EventSinks:             splitAndTrim(strings.ToLower(getEnv("EVENT_SINK", "log,bus"))),
		WebhookURL:             getEnv("WEBHOOK_URL", ""),
		WebhookTimeout:         getEnvDuration("WEBHOOK_TIMEOUT", 5*time.Second),
		JournalDBPath:          getEnv("JOURNAL_DB_PATH", "./data/journal.db"),
		EnableUserStream:       getEnv("ENABLE_USER_STREAM", "false") == "true",
		JWTSecret:              os.Getenv("JWT_SECRET"),
		CORSOrigins:            splitAndTrim(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		RateLimitRPS:           getEnvFloat("API_RATE_LIMIT_RPS", 20),
		RateLimitBurst:         getEnvInt("API_RATE_LIMIT_BURST", 50),
		RequestTimeout:         getEnvDuration("API_REQUEST_TIMEOUT", 30*time.Second),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		LogFile:                getEnv("LOG_FILE", ""),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements.
func (c *Config) Validate() error {
	var problems []string
	if !c.EnableSpot && !c.EnableUSDTFutures {
		problems = append(problems, "at least one of ENABLE_SPOT or ENABLE_USDT_FUTURES must be true")
	}
	if c.DryRun {
		if c.FilterSeedFile == "" {
			problems = append(problems, "FILTER_SEED_FILE is required when DRY_RUN=true")
		}
	} else {
		var missing []string
		if c.EnableSpot {
			if c.BinanceAPIKey == "" {
				missing = append(missing, "BINANCE_API_KEY")
			}
			if c.BinanceAPISecret == "" {
				missing = append(missing, "BINANCE_API_SECRET")
			}
		}
		if c.EnableUSDTFutures {
			if c.BinanceUSDTKey == "" {
				missing = append(missing, "BINANCE_USDT_KEY")
			}
			if c.BinanceUSDTSecret == "" {
				missing = append(missing, "BINANCE_USDT_SECRET")
			}
		}
		if len(missing) > 0 {
			problems = append(problems, "missing required environment variables: "+strings.Join(missing, ", "))
		}
	}
	if c.ExchangeMaxRetries < 0 {
		problems = append(problems, "EXCHANGE_MAX_RETRIES must not be negative")
	}
	if c.ExitLegParallelism < 1 {
		problems = append(problems, "EXIT_LEG_PARALLELISM must be at least 1")
	}
	for _, s := range c.EventSinks {
		switch s {
		case "log", "bus", "journal":
		case "webhook":
			if c.WebhookURL == "" {
				problems = append(problems, "WEBHOOK_URL is required when EVENT_SINK includes webhook")
			}
		default:
			problems = append(problems, fmt.Sprintf("unknown EVENT_SINK entry %q", s))
		}
	}
	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}

// HasSink reports whether name is listed in EVENT_SINK.
func (c *Config) HasSink(name string) bool {
	for _, s := range c.EventSinks {
		if s == name {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitAndTrim(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

// getEnvDuration accepts Go durations ("90s") or plain seconds ("90").
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}
