// Package config loads the flash demo server settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Session backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config holds server settings.
type Config struct {
	ListenAddr     string        // HTTP listen address
	SessionBackend string        // memory | redis | postgres
	RedisAddr      string        // used by the redis backend and the postback throttle
	DatabaseURL    string        // used by the postgres backend
	NATSURL        string        // empty disables flash events
	EventLog       bool          // log flash events read back from NATS
	SessionTTL     time.Duration // idle lifetime of a session
	PurgeInterval  time.Duration // expired-session purge period (memory, postgres)
	CookiePath     string
	CookieSecure   bool
	LogLevel       string
	ShutdownGrace  time.Duration
}

// Default returns sensible defaults.
func Default() Config {
	return Config{
		ListenAddr:     ":8080",
		SessionBackend: BackendMemory,
		RedisAddr:      "localhost:6379",
		DatabaseURL:    "postgres://localhost:5432/flashscope?sslmode=disable",
		SessionTTL:     1 * time.Hour,
		PurgeInterval:  1 * time.Minute,
		CookiePath:     "/",
		LogLevel:       "info",
		ShutdownGrace:  10 * time.Second,
	}
}

// FromEnv returns Default overridden by environment variables. Malformed
// values are reported rather than silently ignored.
func FromEnv() (Config, error) {
	return fromLookup(os.LookupEnv)
}

func fromLookup(lookup func(string) (string, bool)) (Config, error) {
	config := Default()

	if v, ok := lookup("LISTEN_ADDR"); ok && v != "" {
		config.ListenAddr = v
	}
	if v, ok := lookup("SESSION_BACKEND"); ok && v != "" {
		switch v {
		case BackendMemory, BackendRedis, BackendPostgres:
			config.SessionBackend = v
		default:
			return Config{}, fmt.Errorf("config: SESSION_BACKEND: unknown backend %q", v)
		}
	}
	if v, ok := lookup("REDIS_ADDR"); ok && v != "" {
		config.RedisAddr = v
	}
	if v, ok := lookup("DATABASE_URL"); ok && v != "" {
		config.DatabaseURL = v
	}
	if v, ok := lookup("NATS_URL"); ok {
		config.NATSURL = v
	}
	if v, ok := lookup("FLASH_EVENT_LOG"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: FLASH_EVENT_LOG: %w", err)
		}
		config.EventLog = b
	}
	if v, ok := lookup("SESSION_TTL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("config: SESSION_TTL: invalid duration %q", v)
		}
		config.SessionTTL = d
	}
	if v, ok := lookup("PURGE_INTERVAL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("config: PURGE_INTERVAL: invalid duration %q", v)
		}
		config.PurgeInterval = d
	}
	if v, ok := lookup("COOKIE_PATH"); ok && v != "" {
		config.CookiePath = v
	}
	if v, ok := lookup("COOKIE_SECURE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: COOKIE_SECURE: %w", err)
		}
		config.CookieSecure = b
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		config.LogLevel = v
	}
	return config, nil
}
