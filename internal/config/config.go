package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MigrationsPath  string
}

type RabbitConfig struct {
	URL      string
	Exchange string
}

type CommissionConfig struct {
	DriverRate     float64
	RestaurantRate float64
}

type Config struct {
	App struct {
		Port string
	}
	Postgres   PostgresConfig
	Rabbit     RabbitConfig
	Auth       struct{ JWTSecret string }
	Commission CommissionConfig
}

// Load reads configuration from the environment, optionally loading a .env
// file first. Database settings are required, everything else has defaults.
func Load(path string) (*Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	cfg := &Config{}

	cfg.App.Port = getEnv("APP_PORT", "8080")

	cfg.Postgres.Host = os.Getenv("DB_HOST")
	cfg.Postgres.Port = getEnv("DB_PORT", "5432")
	cfg.Postgres.User = os.Getenv("DB_USER")
	cfg.Postgres.Password = os.Getenv("DB_PASSWORD")
	cfg.Postgres.DBName = os.Getenv("DB_NAME")
	cfg.Postgres.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Postgres.MigrationsPath = getEnv("DB_MIGRATIONS_PATH", "migrations")
	cfg.Postgres.MaxConns = int32(getEnvInt("DB_MAX_CONNS", 10))
	cfg.Postgres.MinConns = int32(getEnvInt("DB_MIN_CONNS", 2))
	cfg.Postgres.MaxConnLifetime = time.Duration(getEnvInt("DB_MAX_CONN_LIFETIME_MINUTES", 30)) * time.Minute

	for name, value := range map[string]string{
		"DB_HOST":     cfg.Postgres.Host,
		"DB_USER":     cfg.Postgres.User,
		"DB_PASSWORD": cfg.Postgres.Password,
		"DB_NAME":     cfg.Postgres.DBName,
	} {
		if value == "" {
			return nil, fmt.Errorf("%s is required", name)
		}
	}

	cfg.Rabbit.URL = os.Getenv("RABBITMQ_URL") // empty means notifications go to the log only
	cfg.Rabbit.Exchange = getEnv("RABBITMQ_EXCHANGE", "notifications_topic")

	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", "dev-secret")

	cfg.Commission.DriverRate = getEnvFloat("DRIVER_COMMISSION_RATE", 0.20)
	cfg.Commission.RestaurantRate = getEnvFloat("RESTAURANT_COMMISSION_RATE", 0.15)
	if cfg.Commission.DriverRate < 0 || cfg.Commission.DriverRate >= 1 {
		return nil, fmt.Errorf("DRIVER_COMMISSION_RATE must be in [0, 1), got %f", cfg.Commission.DriverRate)
	}
	if cfg.Commission.RestaurantRate < 0 || cfg.Commission.RestaurantRate >= 1 {
		return nil, fmt.Errorf("RESTAURANT_COMMISSION_RATE must be in [0, 1), got %f", cfg.Commission.RestaurantRate)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
