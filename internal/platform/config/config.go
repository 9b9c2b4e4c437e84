package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything the server needs from the environment so main
// stays lean. Zero values fall back to the defaults below.
type Config struct {
	Addr     string
	LogLevel string

	// DatabaseURL selects the postgres-backed stores when set. RedisURL
	// selects the redis session repository instead. When neither is set the
	// server runs on in-memory stores (dev mode).
	DatabaseURL string
	RedisURL    string

	PolicyBaseURL string
	PolicyTimeout time.Duration

	SessionValidity   time.Duration
	SessionSweepEvery time.Duration

	CacheFreshness  time.Duration
	CacheSweepEvery time.Duration

	LockoutThreshold  int
	LockoutSweepEvery time.Duration

	AuditFlushEvery   time.Duration
	AuditFlushLimit   int
	KafkaBrokers      []string
	KafkaAuditTopic   string
	CounterResetEvery time.Duration
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Addr:     getenv("EMPGATE_ADDR", ":8080"),
		LogLevel: getenv("EMPGATE_LOG_LEVEL", "info"),

		DatabaseURL: os.Getenv("EMPGATE_DATABASE_URL"),
		RedisURL:    os.Getenv("EMPGATE_REDIS_URL"),

		PolicyBaseURL: os.Getenv("EMPGATE_POLICY_URL"),
		PolicyTimeout: getduration("EMPGATE_POLICY_TIMEOUT", 5*time.Second),

		SessionValidity:   getduration("EMPGATE_SESSION_VALIDITY", 8*time.Hour),
		SessionSweepEvery: getduration("EMPGATE_SESSION_SWEEP_EVERY", 30*time.Minute),

		CacheFreshness:  getduration("EMPGATE_CACHE_FRESHNESS", 30*time.Minute),
		CacheSweepEvery: getduration("EMPGATE_CACHE_SWEEP_EVERY", 5*time.Minute),

		LockoutThreshold:  getint("EMPGATE_LOCKOUT_THRESHOLD", 5),
		LockoutSweepEvery: getduration("EMPGATE_LOCKOUT_SWEEP_EVERY", 5*time.Minute),

		AuditFlushEvery:   getduration("EMPGATE_AUDIT_FLUSH_EVERY", time.Hour),
		AuditFlushLimit:   getint("EMPGATE_AUDIT_FLUSH_LIMIT", 100),
		KafkaBrokers:      getlist("EMPGATE_KAFKA_BROKERS"),
		KafkaAuditTopic:   getenv("EMPGATE_KAFKA_AUDIT_TOPIC", "empgate.audit.security"),
		CounterResetEvery: getduration("EMPGATE_COUNTER_RESET_EVERY", time.Hour),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getint(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getlist(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
