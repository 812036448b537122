package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Token lifetimes are durations so that tests and
// deployments can use any granularity (e.g. ACCESS_TOKEN_TTL=30m).
type Config struct {
	Env  string // application environment (e.g. "dev", "prod")
	Port string // HTTP port to listen on

	DBDriver string // "mysql" or "sqlite"
	DBUser   string // database username
	DBPass   string // database password (optional)
	DBHost   string // database host address
	DBPort   string // database port number
	DBName   string // database name (or file path for sqlite)

	JWTSecret     string        // secret used to sign JWTs
	AccessTTL     time.Duration // access token lifetime
	RefreshTTL    time.Duration // refresh token lifetime
	ActivationTTL time.Duration // activation token lifetime
	BcryptCost    int           // bcrypt cost for password hashing

	AdminUser string // HTTP Basic username for /v1/admin
	AdminPass string // HTTP Basic password for /v1/admin

	CORSOrigins     []string
	ActivationURL   string // base URL of the activation page embedded in emails
	DefaultRegion   string // region used to normalise phone numbers without a country code
	DefaultPageSize int
	MaxPageSize     int
}

// Load reads an optional .env file and then the environment.  Required
// variables are enforced by must() and missing values cause the program to
// exit with a fatal log message.
func Load() Config {
	// A missing .env is the normal case in containers.
	_ = godotenv.Load()

	cfg := Config{
		Env:  envStr("APP_ENV", "dev"),
		Port: envStr("APP_PORT", "8000"),

		DBDriver: strings.ToLower(envStr("DB_DRIVER", "mysql")),
		DBPass:   os.Getenv("DB_PASS"),

		JWTSecret:     must("JWT_SECRET"),
		AccessTTL:     envDur("ACCESS_TOKEN_TTL", 30*time.Minute),
		RefreshTTL:    envDur("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		ActivationTTL: envDur("ACTIVATION_TOKEN_TTL", 7*24*time.Hour),
		BcryptCost:    envInt("BCRYPT_COST", 12),

		AdminUser: must("ADMIN_USERNAME"),
		AdminPass: must("ADMIN_PASSWORD"),

		CORSOrigins:     splitList(envStr("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173")),
		ActivationURL:   envStr("ACTIVATION_URL", "http://localhost:3000/activate"),
		DefaultRegion:   envStr("DEFAULT_PHONE_REGION", "NG"),
		DefaultPageSize: envInt("DEFAULT_PAGE_SIZE", 50),
		MaxPageSize:     envInt("MAX_PAGE_SIZE", 500),
	}

	switch cfg.DBDriver {
	case "mysql":
		cfg.DBUser = must("DB_USER")
		cfg.DBHost = must("DB_HOST")
		cfg.DBPort = envStr("DB_PORT", "3306")
		cfg.DBName = must("DB_NAME")
	case "sqlite":
		cfg.DBName = envStr("DB_NAME", "restockr.db")
	default:
		log.Fatalf("unsupported DB_DRIVER: %q", cfg.DBDriver)
	}
	return cfg
}

// IsProd reports whether the service runs in production mode.
func (c Config) IsProd() bool { return c.Env == "prod" || c.Env == "production" }

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
