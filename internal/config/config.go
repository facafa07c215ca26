// Package config loads application configuration from environment variables.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// SecretKeySize is the length in bytes of the AES-256 key that encrypts
// stored credentials.
const SecretKeySize = 32

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr string
	DBPath     string
	APIToken   string

	// SecretKey is nil when ASSETUSERS_SECRET_KEY is unset. Secrets can then
	// be neither stored nor read.
	SecretKey []byte

	ViewAuthNeedMFA bool
	MFASecret       string

	ProbeWorkers      int
	ProbeQueueSize    int
	ProbeTimeout      time.Duration
	JobTTL            time.Duration
	TestRatePerMinute int

	SeedFile       string
	KnownHostsPath string
	LogLevel       slog.Level
}

// HasSecretKey reports whether credential encryption is configured.
func (c *Config) HasSecretKey() bool {
	return len(c.SecretKey) == SecretKeySize
}

// Load reads configuration from environment variables and returns a validated Config.
// ASSETUSERS_API_TOKEN is required, as is ASSETUSERS_MFA_SECRET when
// ASSETUSERS_VIEW_AUTH_NEED_MFA is true. Optional variables with defaults:
// ASSETUSERS_LISTEN_ADDR (127.0.0.1:8080), ASSETUSERS_DB_PATH (assetusers.db),
// ASSETUSERS_PROBE_WORKERS (8), ASSETUSERS_PROBE_QUEUE_SIZE (256),
// ASSETUSERS_PROBE_TIMEOUT (10s), ASSETUSERS_JOB_TTL (1h),
// ASSETUSERS_TEST_RATE_PER_MINUTE (60), ASSETUSERS_LOG_LEVEL (info).
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:        "127.0.0.1:8080",
		DBPath:            "assetusers.db",
		ProbeWorkers:      8,
		ProbeQueueSize:    256,
		ProbeTimeout:      10 * time.Second,
		JobTTL:            time.Hour,
		TestRatePerMinute: 60,
		LogLevel:          slog.LevelInfo,
	}

	cfg.APIToken = strings.TrimSpace(os.Getenv("ASSETUSERS_API_TOKEN"))
	if cfg.APIToken == "" {
		return nil, errors.New("ASSETUSERS_API_TOKEN is required")
	}

	if v, ok := os.LookupEnv("ASSETUSERS_LISTEN_ADDR"); ok {
		cfg.ListenAddr = v
	}
	if v, ok := os.LookupEnv("ASSETUSERS_DB_PATH"); ok {
		cfg.DBPath = v
	}
	cfg.SeedFile = os.Getenv("ASSETUSERS_SEED_FILE")
	cfg.KnownHostsPath = os.Getenv("ASSETUSERS_KNOWN_HOSTS")

	if v := strings.TrimSpace(os.Getenv("ASSETUSERS_SECRET_KEY")); v != "" {
		key, err := hex.DecodeString(v)
		if err != nil || len(key) != SecretKeySize {
			return nil, fmt.Errorf("ASSETUSERS_SECRET_KEY must be %d hex characters", SecretKeySize*2)
		}
		cfg.SecretKey = key
	}

	var err error
	if cfg.ViewAuthNeedMFA, err = boolEnv("ASSETUSERS_VIEW_AUTH_NEED_MFA", false); err != nil {
		return nil, err
	}
	cfg.MFASecret = strings.TrimSpace(os.Getenv("ASSETUSERS_MFA_SECRET"))
	if cfg.ViewAuthNeedMFA && cfg.MFASecret == "" {
		return nil, errors.New("ASSETUSERS_MFA_SECRET is required when ASSETUSERS_VIEW_AUTH_NEED_MFA is enabled")
	}

	if cfg.ProbeWorkers, err = positiveIntEnv("ASSETUSERS_PROBE_WORKERS", cfg.ProbeWorkers); err != nil {
		return nil, err
	}
	if cfg.ProbeQueueSize, err = positiveIntEnv("ASSETUSERS_PROBE_QUEUE_SIZE", cfg.ProbeQueueSize); err != nil {
		return nil, err
	}
	if cfg.ProbeTimeout, err = durationEnv("ASSETUSERS_PROBE_TIMEOUT", cfg.ProbeTimeout); err != nil {
		return nil, err
	}
	if cfg.JobTTL, err = durationEnv("ASSETUSERS_JOB_TTL", cfg.JobTTL); err != nil {
		return nil, err
	}

	if v, ok := os.LookupEnv("ASSETUSERS_TEST_RATE_PER_MINUTE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("ASSETUSERS_TEST_RATE_PER_MINUTE has invalid value %q", v)
		}
		cfg.TestRatePerMinute = n
	}

	if v, ok := os.LookupEnv("ASSETUSERS_LOG_LEVEL"); ok {
		level, err := parseLevel(v)
		if err != nil {
			return nil, err
		}
		cfg.LogLevel = level
	}

	return cfg, nil
}

func boolEnv(key string, def bool) (bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s has invalid boolean %q: %w", key, v, err)
	}
	return b, nil
}

func positiveIntEnv(key string, def int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, v)
	}
	return n, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid duration %q: %w", key, v, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %q", key, v)
	}
	return d, nil
}

// parseLevel maps debug, info, warn and error to slog levels.
func parseLevel(v string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("ASSETUSERS_LOG_LEVEL has invalid level %q", v)
	}
}
