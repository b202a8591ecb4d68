package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Storage backends accepted by TENDERS_STORAGE.
const (
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
	StorageMemory   = "memory"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Storage
	Storage     string // postgres | sqlite | memory
	DatabaseURL string // required when Storage is postgres
	SQLitePath  string // ex: "data/tenders.db"

	// Upstream API
	UpstreamBaseURL      string
	UpstreamUserAgent    string
	UpstreamRequestDelay time.Duration // minimum gap between two upstream requests
	UpstreamTimeout      time.Duration
	UpstreamMaxRetries   int // reserved, failures are not retried

	// Search cycle
	SearchSchedule     string // cron spec, ex: "@every 30m"
	SearchInitialDelay time.Duration
	SearchQueryLimit   int
	SearchQueryPacing  time.Duration

	// Retention
	CleanupSchedule     string // cron spec, ex: "@every 24h"
	CleanupInitialDelay time.Duration
	CleanupGrace        time.Duration

	QuerySeedFile string // optional YAML file with saved queries to create at startup

	// Redis (optional, empty addr = cache disabled)
	RedisAddr           string        // ex: "localhost:6379"
	RedisUser           string        // optional
	RedisPassword       string        // optional
	RedisDB             int           // Redis DB number
	RedisDT             time.Duration // Redis dial timeout (ex: 5s)
	RedisRT             time.Duration // Redis read timeout (ex: 3s)
	RedisWT             time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait        time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout    time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize       int           // Redis connection pool size
	RedisConnectTimeout time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval  time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold  int           // warn after this many attempts
	StatsCacheTTL       time.Duration // lifetime of the cached /api/tenders/stats payload

	// Access restrictions
	AllowedCIDRS  []string // optional, restrict operational endpoints to these networks
	TrustProxy    bool     // true => trust X-Forwarded-For headers (e.g. reverse proxy)
	APIRateBurst  int      // per-client burst for /api
	APIRatePerMin int      // per-client sustained requests per minute for /api
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("TENDERS_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("TENDERS_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("TENDERS_LOG_LEVEL", "info"),
		PrettyLog: mustBool("TENDERS_PRETTY_LOG", true),

		// Storage
		Storage:    mustOneOf("TENDERS_STORAGE", StoragePostgres, StoragePostgres, StorageSQLite, StorageMemory),
		SQLitePath: getenv("TENDERS_SQLITE_PATH", "data/tenders.db"),

		// Upstream
		UpstreamBaseURL:      getenv("TENDERS_UPSTREAM_BASE_URL", "https://v2.gosplan.info/api/v2"),
		UpstreamUserAgent:    getenv("TENDERS_UPSTREAM_USER_AGENT", "TenderTracker/1.0"),
		UpstreamRequestDelay: mustDuration("TENDERS_UPSTREAM_REQUEST_DELAY", 1000*time.Millisecond),
		UpstreamTimeout:      mustDuration("TENDERS_UPSTREAM_TIMEOUT", 30*time.Second),
		UpstreamMaxRetries:   getenvInt("TENDERS_UPSTREAM_MAX_RETRIES", 3),

		// Loops
		SearchSchedule:      mustSchedule("TENDERS_SEARCH_SCHEDULE", "@every 30m"),
		SearchInitialDelay:  mustDuration("TENDERS_SEARCH_INITIAL_DELAY", 10*time.Second),
		SearchQueryLimit:    getenvInt("TENDERS_SEARCH_QUERY_LIMIT", 100),
		SearchQueryPacing:   mustDuration("TENDERS_SEARCH_QUERY_PACING", time.Second),
		CleanupSchedule:     mustSchedule("TENDERS_CLEANUP_SCHEDULE", "@every 24h"),
		CleanupInitialDelay: mustDuration("TENDERS_CLEANUP_INITIAL_DELAY", 30*time.Second),
		CleanupGrace:        mustDuration("TENDERS_CLEANUP_GRACE", 24*time.Hour),

		QuerySeedFile: getenv("TENDERS_QUERY_SEED_FILE", ""),

		// Redis settings
		RedisAddr:           getenv("TENDERS_REDIS_ADDR", ""),
		RedisUser:           getenv("TENDERS_REDIS_USERNAME", ""),
		RedisPassword:       getenv("TENDERS_REDIS_PASSWORD", ""),
		RedisDB:             getenvInt("TENDERS_REDIS_DB", 0),
		RedisDT:             mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:             mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:             mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:        mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:    mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:       getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout: mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:  mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:  getenvInt("REDIS_WARN_THRESHOLD", 3),
		StatsCacheTTL:       mustDuration("TENDERS_STATS_CACHE_TTL", time.Minute),

		// Access restrictions
		AllowedCIDRS:  parseAllowedIPs(getenv("TENDERS_ALLOWED_CIDRS", "")),
		TrustProxy:    mustBool("TENDERS_TRUST_PROXY", true),
		APIRateBurst:  getenvInt("TENDERS_API_RATE_BURST", 30),
		APIRatePerMin: getenvInt("TENDERS_API_RATE_PER_MIN", 120),
	}

	if cfg.Storage == StoragePostgres {
		cfg.DatabaseURL = requireEnv("TENDERS_DATABASE_URL")
	} else {
		cfg.DatabaseURL = getenv("TENDERS_DATABASE_URL", "")
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		if cfg.RedisPassword != "" {
			cfgCopy.RedisPassword = "***REDACTED***"
		}
		if cfg.DatabaseURL != "" {
			cfgCopy.DatabaseURL = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// mustSchedule returns the cron spec in key, or def. An unparsable spec is
// fatal.
func mustSchedule(key, def string) string {
	spec := getenv(key, def)
	if _, err := cron.ParseStandard(spec); err != nil {
		panic(fmt.Sprintf("❌ FATAL: Invalid schedule for %s: %q: %v", key, spec, err))
	}
	return spec
}

func mustOneOf(key, def string, allowed ...string) string {
	v := strings.ToLower(getenv(key, def))
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	panic(fmt.Sprintf("❌ FATAL: Invalid value for %s: %q (allowed: %s)", key, v, strings.Join(allowed, ", ")))
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
