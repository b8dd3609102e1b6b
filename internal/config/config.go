package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvDev  = "dev"
	EnvTest = "test"
	EnvProd = "prod"

	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config is read once at startup and passed by value to whatever needs it.
type Config struct {
	Env         string
	Port        int
	APIPrefix   string
	ServiceName string
	LogLevel    string

	Storage string
	DBURL   string

	JWTSecret    string
	JWTExpiresIn time.Duration

	RateLimitWindow time.Duration
	RateLimitMax    int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	CORSOrigins     []string
	CORSCredentials bool
	MaxBodyBytes    int64

	OTelEndpoint string

	AdminEmail    string
	AdminPassword string
	AdminName     string
}

// Load reads .env.<APP_ENV> and .env when present, then the process
// environment. Variables already set in the environment win.
func Load() (Config, error) {
	env := getEnv("APP_ENV", EnvDev)
	_ = godotenv.Load(".env." + env)
	_ = godotenv.Load()

	var errs []error

	port, err := getEnvInt("PORT", 3000)
	errs = append(errs, err)

	jwtTTL, err := getEnvDuration("JWT_EXPIRES_IN", 7*24*time.Hour)
	errs = append(errs, err)

	windowMS, err := getEnvInt("RATE_LIMIT_WINDOW_MS", 900000)
	errs = append(errs, err)

	rateMax, err := getEnvInt("RATE_LIMIT_MAX_REQUESTS", 100)
	errs = append(errs, err)

	redisDB, err := getEnvInt("REDIS_DB", 0)
	errs = append(errs, err)

	maxBody, err := getEnvInt("MAX_BODY_BYTES", 10<<20)
	errs = append(errs, err)

	credentials, err := getEnvBool("CORS_CREDENTIALS", true)
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}

	return Config{
		Env:         env,
		Port:        port,
		APIPrefix:   getEnv("API_PREFIX", "/api"),
		ServiceName: getEnv("SERVICE_NAME", "userhub"),
		LogLevel:    getEnv("LOG_LEVEL", ""),

		Storage: getEnv("STORAGE", StoragePostgres),
		DBURL:   getEnv("DATABASE_URL", buildDBURL()),

		JWTSecret:    os.Getenv("JWT_SECRET"),
		JWTExpiresIn: jwtTTL,

		RateLimitWindow: time.Duration(windowMS) * time.Millisecond,
		RateLimitMax:    rateMax,

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,

		CORSOrigins:     splitList(getEnv("CORS_ORIGIN", "*")),
		CORSCredentials: credentials,
		MaxBodyBytes:    int64(maxBody),

		OTelEndpoint: os.Getenv("OTEL_ENDPOINT"),

		AdminEmail:    os.Getenv("ADMIN_EMAIL"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		AdminName:     getEnv("ADMIN_NAME", "Administrator"),
	}, nil
}

// Validate applies the checks every environment needs, plus the stricter
// production rules.
func (c Config) Validate() error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port))
	}
	if len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 characters long"))
	}
	if c.JWTExpiresIn <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRES_IN must be positive"))
	}
	if c.RateLimitWindow <= 0 || c.RateLimitMax <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW_MS and RATE_LIMIT_MAX_REQUESTS must be positive"))
	}
	if c.Storage != StoragePostgres && c.Storage != StorageMemory {
		errs = append(errs, fmt.Errorf("STORAGE must be %q or %q", StoragePostgres, StorageMemory))
	}

	if c.IsProduction() {
		if c.AllowsAnyOrigin() {
			errs = append(errs, errors.New("CORS_ORIGIN should be specific domains in production, not \"*\""))
		}
		if strings.Contains(strings.ToLower(c.JWTSecret), "secret") {
			errs = append(errs, errors.New("JWT_SECRET should not contain default or weak values in production"))
		}
		if c.Storage == StorageMemory {
			errs = append(errs, errors.New("STORAGE=memory is not allowed in production"))
		}
	}

	return errors.Join(errs...)
}

func (c Config) IsProduction() bool { return c.Env == EnvProd }
func (c Config) IsDevelopment() bool { return c.Env == EnvDev }

func (c Config) AllowsAnyOrigin() bool {
	for _, o := range c.CORSOrigins {
		if o == "*" {
			return true
		}
	}
	return false
}

// Summary is safe to log: secrets are reduced to configured/missing.
func (c Config) Summary() map[string]any {
	return map[string]any{
		"env":        c.Env,
		"port":       c.Port,
		"api_prefix": c.APIPrefix,
		"storage":    c.Storage,
		"database":   configured(c.DBURL),
		"jwt_secret": configured(c.JWTSecret),
		"jwt_ttl":    c.JWTExpiresIn.String(),
		"rate_limit": fmt.Sprintf("%d/%s", c.RateLimitMax, c.RateLimitWindow),
		"redis":      c.RedisAddr != "",
		"cors":       strings.Join(c.CORSOrigins, ","),
		"tracing":    c.OTelEndpoint != "",
	}
}

func buildDBURL() string {
	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "userhub")
	pass := getEnv("DB_PASSWORD", "userhub")
	name := getEnv("DB_NAME", "userhub")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(parent context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", key, err)
		}

		return num, nil
	}
	return fallback, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("%s: %w", key, err)
		}
		return b, nil
	}
	return fallback, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

// ParseDuration extends time.ParseDuration with a day unit ("7d").
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func configured(v string) string {
	if v == "" {
		return "missing"
	}
	return "configured"
}
