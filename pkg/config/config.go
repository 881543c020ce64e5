package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Storage backends for the gateway user directory.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Token stores available to the console.
const (
	TokenStoreFile   = "file"
	TokenStoreRedis  = "redis"
	TokenStoreMemory = "memory"
)

type Config struct {
	Env     string
	Port    int
	Release string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Sentry   SentryConfig
	Users    UsersConfig
	Console  ConsoleConfig
}

type DatabaseConfig struct {
	Driver       string
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SentryConfig enables error reporting when DSN is set.
type SentryConfig struct {
	DSN string
}

// UsersConfig tunes the user directory endpoints.
type UsersConfig struct {
	SeedDefaults bool
	CacheEnabled bool
	CacheTTL     time.Duration
	MaxPageSize  int
}

// ConsoleConfig configures the command line client.
type ConsoleConfig struct {
	APIURL             string
	TokenStore         string
	TokenFile          string
	TokenKey           string
	RequestTimeout     time.Duration
	PageSize           int
	RefreshAfterChange bool
	ExportDir          string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.Release = v.GetString("RELEASE")

	cfg.Database = DatabaseConfig{
		Driver:       strings.ToLower(v.GetString("DB_DRIVER")),
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Sentry = SentryConfig{DSN: v.GetString("SENTRY_DSN")}

	cfg.Users = UsersConfig{
		SeedDefaults: v.GetBool("SEED_DEFAULT_USERS"),
		CacheEnabled: v.GetBool("ENABLE_USER_CACHE"),
		CacheTTL:     parseDuration(v.GetString("USERS_CACHE_TTL"), time.Minute),
		MaxPageSize:  v.GetInt("USERS_MAX_PAGE_SIZE"),
	}

	cfg.Console = ConsoleConfig{
		APIURL:             strings.TrimRight(v.GetString("CONSOLE_API_URL"), "/"),
		TokenStore:         strings.ToLower(v.GetString("CONSOLE_TOKEN_STORE")),
		TokenFile:          v.GetString("CONSOLE_TOKEN_FILE"),
		TokenKey:           v.GetString("CONSOLE_TOKEN_KEY"),
		RequestTimeout:     parseDuration(v.GetString("CONSOLE_REQUEST_TIMEOUT"), 15*time.Second),
		PageSize:           v.GetInt("CONSOLE_PAGE_SIZE"),
		RefreshAfterChange: v.GetBool("CONSOLE_REFRESH_AFTER_MUTATION"),
		ExportDir:          v.GetString("CONSOLE_EXPORT_DIR"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8000)
	v.SetDefault("RELEASE", "dev")

	v.SetDefault("DB_DRIVER", DriverPostgres)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "rbac_console")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "rbac-console")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SENTRY_DSN", "")

	v.SetDefault("SEED_DEFAULT_USERS", true)
	v.SetDefault("ENABLE_USER_CACHE", false)
	v.SetDefault("USERS_CACHE_TTL", "1m")
	v.SetDefault("USERS_MAX_PAGE_SIZE", 1000)

	v.SetDefault("CONSOLE_API_URL", "http://localhost:8000")
	v.SetDefault("CONSOLE_TOKEN_STORE", TokenStoreFile)
	v.SetDefault("CONSOLE_TOKEN_FILE", "")
	v.SetDefault("CONSOLE_TOKEN_KEY", "rbac-console:token")
	v.SetDefault("CONSOLE_EXPORT_DIR", ".")
	v.SetDefault("CONSOLE_REQUEST_TIMEOUT", "15s")
	v.SetDefault("CONSOLE_PAGE_SIZE", 10)
	v.SetDefault("CONSOLE_REFRESH_AFTER_MUTATION", false)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
