package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	AppName string
	Env     string
	Host    string
	Port    int

	// DatabaseDriver is "sqlite" or "postgres".
	DatabaseDriver string
	DatabaseURL    string

	JWTSecret          string
	AccessTokenMinutes int

	CORSOrigins []string
	Debug       bool
}

func Load() (*Config, error) {
	// A local .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		AppName: getEnv("APP_NAME", "Meetup API"),
		Env:     getEnv("APP_ENV", "development"),
		Host:    getEnv("HTTP_HOST", "0.0.0.0"),
		Port:    getEnvAsInt("HTTP_PORT", 8000),

		DatabaseDriver: getEnv("DATABASE_DRIVER", "sqlite"),

		JWTSecret:          os.Getenv("JWT_SECRET"),
		AccessTokenMinutes: getEnvAsInt("ACCESS_TOKEN_EXPIRE_MINUTES", 60*24),

		Debug: getEnvAsBool("DEBUG", true),
	}

	switch cfg.DatabaseDriver {
	case "sqlite":
		cfg.DatabaseURL = getEnv("SQLITE_PATH", "meetup.db")
	case "postgres":
		dbHost := getEnv("POSTGRES_HOST", "localhost")
		dbPort := getEnv("POSTGRES_PORT", "5432")
		dbUser := getEnv("POSTGRES_USER", "postgres")
		dbPass := getEnv("POSTGRES_PASSWORD", "postgres")
		dbName := getEnv("POSTGRES_DB", "meetup")
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(dbUser, dbPass),
			Host:     fmt.Sprintf("%s:%s", dbHost, dbPort),
			Path:     dbName,
			RawQuery: "sslmode=disable",
		}
		cfg.DatabaseURL = u.String()
	default:
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER %q", cfg.DatabaseDriver)
	}

	cors := getEnv("CORS_ORIGINS", "")
	if cors != "" {
		parts := strings.Split(cors, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		cfg.CORSOrigins = parts
	} else {
		cfg.CORSOrigins = []string{"http://localhost:3000", "http://localhost:8080"}
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvAsInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvAsBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
