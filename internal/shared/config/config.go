package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	KurrentDB KurrentDBConfig
	Auth      AuthConfig
	Legacy    LegacyInsurerConfig
	Triage    TriageConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port int
	Env  string
	// RateLimitRPS is the per-IP request budget; 0 disables limiting.
	RateLimitRPS   int
	RateLimitBurst int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// RedisConfig holds connection settings for the role-resolver cache.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Enabled  bool
}

// KurrentDBConfig holds configuration for the event stream (EventStoreDB).
type KurrentDBConfig struct {
	Host     string
	Port     int
	Insecure bool
	Username string
	Password string
	Enabled  bool
}

// AuthConfig holds JWT session settings.
type AuthConfig struct {
	JWTSecret       string
	Issuer          string
	AccessTokenTTL  int // minutes
	RefreshTokenTTL int // hours
}

// LegacyInsurerConfig holds settings for the partner insurer's
// legacy SQL Server claims database adapter.
type LegacyInsurerConfig struct {
	Enabled      bool
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	SSLMode      string
	PollInterval int // seconds
}

// TriageConfig holds settings for the incident triage service.
type TriageConfig struct {
	Enabled bool
	URL     string
}

type LogConfig struct {
	Level  string
	Format string // json or console
}

// Load reads configuration from the environment. A .env file in the
// working directory is loaded first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:           getEnvInt("SERVER_PORT", 8080),
			Env:            getEnv("ENV", "development"),
			RateLimitRPS:   getEnvInt("RATE_LIMIT_RPS", 50),
			RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 100),
			AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "linkaid"),
			Password: getEnv("DB_PASSWORD", "linkaid"),
			Database: getEnv("DB_NAME", "linkaid"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Address:  getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			Enabled:  getEnvBool("REDIS_ENABLED", true),
		},
		KurrentDB: KurrentDBConfig{
			Host:     getEnv("KURRENTDB_HOST", "localhost"),
			Port:     getEnvInt("KURRENTDB_PORT", 2113),
			Insecure: getEnvBool("KURRENTDB_INSECURE", true),
			Username: getEnv("KURRENTDB_USERNAME", ""),
			Password: getEnv("KURRENTDB_PASSWORD", ""),
			Enabled:  getEnvBool("KURRENTDB_ENABLED", true),
		},
		Auth: AuthConfig{
			JWTSecret:       getEnv("JWT_SECRET", "dev-secret-change-in-prod"),
			Issuer:          getEnv("JWT_ISSUER", "linkaid"),
			AccessTokenTTL:  getEnvInt("JWT_ACCESS_TTL_MINUTES", 15),
			RefreshTokenTTL: getEnvInt("JWT_REFRESH_TTL_HOURS", 8),
		},
		Legacy: LegacyInsurerConfig{
			Enabled:      getEnvBool("LEGACY_INSURER_ENABLED", false),
			Host:         getEnv("LEGACY_INSURER_HOST", "localhost"),
			Port:         getEnvInt("LEGACY_INSURER_PORT", 1433),
			User:         getEnv("LEGACY_INSURER_USER", "sa"),
			Password:     getEnv("LEGACY_INSURER_PASSWORD", ""),
			Database:     getEnv("LEGACY_INSURER_DB", "claims"),
			SSLMode:      getEnv("LEGACY_INSURER_SSLMODE", "disable"),
			PollInterval: getEnvInt("LEGACY_INSURER_POLL_SECONDS", 30),
		},
		Triage: TriageConfig{
			Enabled: getEnvBool("TRIAGE_ENABLED", false),
			URL:     getEnv("TRIAGE_URL", "http://localhost:8090"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
