package config // package config loads application configuration from environment variables

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Secrets stay strings; TTLs and costs are ints.
type Config struct {
	Env            string // application environment (e.g. "dev", "prod")
	Port           string // HTTP port to listen on
	LogLevel       string // zap level name (debug, info, warn, error)
	DBDriver       string // "mysql" or "sqlite"
	DBUser         string // database username (mysql)
	DBPass         string // database password (optional)
	DBHost         string // database host address (mysql)
	DBPort         string // database port number (mysql)
	DBName         string // database name (mysql)
	DBPath         string // database file (sqlite)
	JWTSecret      string // secret used to sign JWTs
	AccessTTLMin   int    // access token time-to-live in minutes
	RefreshTTLDays int    // refresh token time-to-live in days
	BcryptCost     int    // bcrypt cost for password hashing
}

// Load reads configuration values from environment variables.  Every missing
// or malformed required variable is reported in the returned error so that a
// misconfigured deployment fails once with the full list.
func Load() (Config, error) {
	var errs []error
	must := func(key string) string {
		v, ok := os.LookupEnv(key)
		if !ok || strings.TrimSpace(v) == "" {
			errs = append(errs, fmt.Errorf("missing required env var: %s", key))
		}
		return v
	}
	mustInt := func(key string, def int) int {
		s := os.Getenv(key)
		if s == "" {
			return def
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid int for %s: %q", key, s))
		}
		return n
	}

	cfg := Config{
		Env:            envStr("APP_ENV", "dev"),
		Port:           envStr("APP_PORT", "8080"),
		LogLevel:       envStr("LOG_LEVEL", "info"),
		DBDriver:       strings.ToLower(envStr("DB_DRIVER", "mysql")),
		DBPass:         os.Getenv("DB_PASS"),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN", 15),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS", 7),
		BcryptCost:     mustInt("BCRYPT_COST", 10),
	}
	switch cfg.DBDriver {
	case "mysql":
		cfg.DBUser = must("DB_USER")
		cfg.DBHost = must("DB_HOST")
		cfg.DBPort = must("DB_PORT")
		cfg.DBName = must("DB_NAME")
	case "sqlite":
		cfg.DBPath = envStr("DB_PATH", "marketplace.db")
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver))
	}
	return cfg, errors.Join(errs...)
}
