package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration required by the API process.
// Values come from env; a .env file in the working directory is loaded first when present.
// No business logic should depend on raw environment variables.
type Config struct {
	App     AppConfig
	DB      DBConfig
	Redis   RedisConfig
	Auth    AuthConfig
	Vapi    VapiConfig
	Secrets SecretsConfig
	CORS    CORSConfig
}

type AppConfig struct {
	Env  string
	Port int
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type DBConfig struct {
	// Driver selects the record store backend: postgres or sqlite.
	Driver string

	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode accepts: disable, require, verify-ca, verify-full
	SSLMode string

	// Path is the SQLite database file (sqlite driver only).
	Path string
}

type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type VapiConfig struct {
	// BaseURL points the remote client at the calling API (or a simulator).
	BaseURL string
	// VerifyAgents resolves the external agent id before persisting a new agent config.
	VerifyAgents bool
}

type SecretsConfig struct {
	// Key seals stored agent API keys. Empty disables sealing (local only).
	Key []byte
}

type CORSConfig struct {
	AllowedOrigins []string
}

const defaultVapiBaseURL = "https://api.vapi.ai"

func Load() (Config, error) {
	// Missing .env is fine; the process runner may inject env directly.
	_ = godotenv.Load()

	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.DB.Driver = strings.TrimSpace(os.Getenv("DB_DRIVER"))
	if c.DB.Driver == "" {
		c.DB.Driver = DriverPostgres
	}
	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	if c.DB.Driver == DriverPostgres {
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))
	c.DB.Path = strings.TrimSpace(os.Getenv("DB_PATH"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in Validate().
	c.Auth.AccessTokenTTL = mustDuration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = mustDuration("JWT_REFRESH_TTL")

	c.Vapi.BaseURL = strings.TrimSpace(os.Getenv("VAPI_BASE_URL"))
	{
		b, err := optionalBool("VAPI_VERIFY_AGENTS")
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		c.Vapi.VerifyAgents = b
	}

	if raw := strings.TrimSpace(os.Getenv("SECRETS_KEY")); raw != "" {
		k, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			parseErrs = append(parseErrs, errors.New("SECRETS_KEY must be base64"))
		}
		c.Secrets.Key = k
	}

	c.CORS.AllowedOrigins = splitList(os.Getenv("CORS_ALLOWED_ORIGINS"))

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks required values and fills defaults. It has a pointer receiver
// because defaults (sslmode, TTLs, base URL, sqlite path) are written back.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	switch c.DB.Driver {
	case DriverPostgres:
		errs = append(errs, c.validatePostgres()...)
	case DriverSQLite:
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_DRIVER sqlite is not allowed in production"))
		}
		if c.DB.Path == "" {
			c.DB.Path = "./data/voice-console.db"
		}
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be one of postgres, sqlite, got %q", c.DB.Driver))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.Vapi.BaseURL == "" {
		c.Vapi.BaseURL = defaultVapiBaseURL
	} else if !strings.HasPrefix(c.Vapi.BaseURL, "http://") && !strings.HasPrefix(c.Vapi.BaseURL, "https://") {
		errs = append(errs, fmt.Errorf("VAPI_BASE_URL must be an http(s) URL, got %q", c.Vapi.BaseURL))
	}

	if len(c.Secrets.Key) == 0 {
		if c.IsProduction() {
			errs = append(errs, errors.New("SECRETS_KEY is required in production"))
		}
	} else if len(c.Secrets.Key) < 32 {
		errs = append(errs, fmt.Errorf("SECRETS_KEY must decode to at least 32 bytes, got %d", len(c.Secrets.Key)))
	}

	return joinErrors(errs)
}

func (c *Config) validatePostgres() []error {
	var errs []error
	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if c.DB.SSLMode == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}
	return errs
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func mustDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

// optionalBool treats an unset key as false; anything else must parse.
func optionalBool(key string) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean, got %q", key, v)
	}
	return b, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
