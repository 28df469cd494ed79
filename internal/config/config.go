package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Cache    CacheConfig
	Keycloak KeycloakConfig
	Auth     AuthConfig
	Email    EmailConfig
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	TrustedProxies []string
}

// CacheConfig selects the ephemeral store backend. Driver is "memory" or
// "redis".
type CacheConfig struct {
	Driver        string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SweepInterval time.Duration
}

type KeycloakConfig struct {
	BaseURL           string
	Realm             string
	ClientID          string
	ClientSecret      string
	AdminClientID     string
	AdminClientSecret string
	Timeout           time.Duration
}

type AuthConfig struct {
	TotpIssuer        string
	TokenPublicKeyPEM string
	TokenIssuer       string
	TimingDelayBase   time.Duration
	TimingDelayJitter time.Duration
	LoginRateLimit    int
	LoginRateWindow   time.Duration
}

type EmailConfig struct {
	AWSRegion    string
	FromAddress  string
	ResetURLBase string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Name:            getEnv("DB_NAME", "dms_auth"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxConns:        int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:        int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			TrustedProxies: getEnvAsList("TRUSTED_PROXIES", nil),
		},
		Cache: CacheConfig{
			Driver:        getEnv("CACHE_DRIVER", "memory"),
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvAsInt("REDIS_DB", 0),
			SweepInterval: getEnvAsDuration("CACHE_SWEEP_INTERVAL", time.Minute),
		},
		Keycloak: KeycloakConfig{
			BaseURL:           getEnv("KEYCLOAK_BASE_URL", "http://localhost:8081"),
			Realm:             getEnv("KEYCLOAK_REALM", "dms"),
			ClientID:          getEnv("KEYCLOAK_CLIENT_ID", ""),
			ClientSecret:      getEnv("KEYCLOAK_CLIENT_SECRET", ""),
			AdminClientID:     getEnv("KEYCLOAK_ADMIN_CLIENT_ID", ""),
			AdminClientSecret: getEnv("KEYCLOAK_ADMIN_CLIENT_SECRET", ""),
			Timeout:           getEnvAsDuration("KEYCLOAK_TIMEOUT", 10*time.Second),
		},
		Auth: AuthConfig{
			TotpIssuer:        getEnv("TOTP_ISSUER", "DMS"),
			TokenPublicKeyPEM: getEnv("TOKEN_PUBLIC_KEY_PEM", ""),
			TokenIssuer:       getEnv("TOKEN_ISSUER", ""),
			TimingDelayBase:   getEnvAsDuration("TIMING_DELAY_BASE", 200*time.Millisecond),
			TimingDelayJitter: getEnvAsDuration("TIMING_DELAY_JITTER", 100*time.Millisecond),
			LoginRateLimit:    getEnvAsInt("LOGIN_RATE_LIMIT", 10),
			LoginRateWindow:   getEnvAsDuration("LOGIN_RATE_WINDOW", time.Minute),
		},
		Email: EmailConfig{
			AWSRegion:    getEnv("AWS_REGION", "us-east-1"),
			FromAddress:  getEnv("EMAIL_FROM_ADDRESS", ""),
			ResetURLBase: getEnv("RESET_URL_BASE", "http://localhost:3000"),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}
	if cfg.Keycloak.ClientID == "" || cfg.Keycloak.ClientSecret == "" {
		return nil, fmt.Errorf("KEYCLOAK_CLIENT_ID and KEYCLOAK_CLIENT_SECRET are required")
	}
	if cfg.Auth.TokenPublicKeyPEM == "" {
		return nil, fmt.Errorf("TOKEN_PUBLIC_KEY_PEM is required")
	}
	if cfg.Cache.Driver != "memory" && cfg.Cache.Driver != "redis" {
		return nil, fmt.Errorf("CACHE_DRIVER must be memory or redis (got %q)", cfg.Cache.Driver)
	}
	if env == "production" && cfg.Cache.Driver == "memory" {
		return nil, fmt.Errorf("CACHE_DRIVER=memory is not supported in production")
	}

	return cfg, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsList(key string, defaultVal []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultVal
	}
	parts := strings.Split(value, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}
