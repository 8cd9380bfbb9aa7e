// Package config loads runtime configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DriverMySQL  = "mysql"
	DriverMemory = "memory"
)

// Config holds all runtime configuration values.
type Config struct {
	Env  string
	Port string

	StorageDriver string // mysql or memory
	DBUser        string
	DBPass        string
	DBHost        string
	DBPort        string
	DBName        string
	AutoMigrate   bool

	JWTSecret      string
	AccessTTLMin   int
	RefreshTTLDays int
	BcryptCost     int

	// AdminEmail and AdminPassword seed an ADMIN account at startup when
	// both are set. ADMIN cannot self-register.
	AdminEmail    string
	AdminPassword string

	RabbitURL            string // empty disables event publishing
	AuditConsumerEnabled bool
	AuditLogPath         string

	LogLevel       string
	MetricsEnabled bool
	CheckInWindow  time.Duration

	RateLimit RateLimitConfig
	Cache     CacheConfig
	Redis     RedisConfig
}

// Load reads the environment. Every missing or malformed required variable
// is reported in the returned error. Database variables are only required
// for the mysql driver.
func Load() (Config, error) {
	var l loader
	cfg := Config{
		Env:  envStr("APP_ENV", "dev"),
		Port: l.must("APP_PORT"),

		StorageDriver: strings.ToLower(envStr("STORAGE_DRIVER", DriverMySQL)),
		DBPass:        os.Getenv("DB_PASS"),
		AutoMigrate:   envBool("DB_AUTO_MIGRATE", false),

		JWTSecret:      l.must("JWT_SECRET"),
		AccessTTLMin:   l.mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: l.mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     envInt("BCRYPT_COST", 10),

		AdminEmail:    strings.TrimSpace(os.Getenv("ADMIN_EMAIL")),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),

		RabbitURL:            os.Getenv("RABBITMQ_URL"),
		AuditConsumerEnabled: envBool("AUDIT_CONSUMER_ENABLED", false),
		AuditLogPath:         envStr("AUDIT_LOG_PATH", "logs/reservation-audit.log"),

		LogLevel:       envStr("LOG_LEVEL", "info"),
		MetricsEnabled: envBool("METRICS_ENABLED", true),
		CheckInWindow:  envDur("CHECKIN_WINDOW", 10*time.Minute),

		RateLimit: LoadRateLimitConfig(),
		Cache:     LoadCacheConfig(),
		Redis:     LoadRedisConfig(),
	}

	switch cfg.StorageDriver {
	case DriverMySQL:
		cfg.DBUser = l.must("DB_USER")
		cfg.DBHost = l.must("DB_HOST")
		cfg.DBPort = l.must("DB_PORT")
		cfg.DBName = l.must("DB_NAME")
	case DriverMemory:
	default:
		l.errs = append(l.errs, fmt.Errorf("unsupported STORAGE_DRIVER %q", cfg.StorageDriver))
	}
	if cfg.CheckInWindow <= 0 {
		l.errs = append(l.errs, fmt.Errorf("CHECKIN_WINDOW must be positive, got %s", cfg.CheckInWindow))
	}
	if (cfg.AdminEmail == "") != (cfg.AdminPassword == "") {
		l.errs = append(l.errs, errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set together"))
	}
	if cfg.AuditConsumerEnabled && cfg.RabbitURL == "" {
		l.errs = append(l.errs, errors.New("AUDIT_CONSUMER_ENABLED requires RABBITMQ_URL"))
	}
	return cfg, errors.Join(l.errs...)
}

// loader accumulates required-variable failures so one run reports all of them.
type loader struct {
	errs []error
}

func (l *loader) must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		l.errs = append(l.errs, fmt.Errorf("missing required env var: %s", key))
	}
	return v
}

func (l *loader) mustInt(key string) int {
	s := l.must(key)
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("invalid int for %s: %q", key, s))
	}
	return n
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	switch strings.ToLower(os.Getenv(k)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	if n, err := strconv.Atoi(os.Getenv(k)); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	if dur, err := time.ParseDuration(os.Getenv(k)); err == nil {
		return dur
	}
	return d
}
