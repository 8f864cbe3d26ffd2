package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// ErrEnvironmentNotSet marks missing required runtime configuration. It is a
// process-level fault: Load is called once at startup and a failure is fatal,
// never downgraded to a per-request client error.
var ErrEnvironmentNotSet = fmt.Errorf("required environment variable not set")

// Config holds every runtime setting the service needs. All values are
// resolved once at startup; nothing reads the ambient environment afterwards.
type Config struct {
	HTTPAddr          string
	DatabaseURL       string
	RabbitMQURL       string
	RedisURL          string // optional, project cache disabled when empty
	ProjectServiceURL string
	JWTPublicKey      []byte
	ProjectTimeout    time.Duration
}

// Load reads configuration from the environment (local overrides .env)
func Load() (*Config, error) {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		RedisURL:       os.Getenv("REDIS_URL"),
		ProjectTimeout: 5 * time.Second,
	}

	var err error
	if cfg.DatabaseURL, err = requireEnv("BID_DB_URL"); err != nil {
		return nil, err
	}
	if cfg.RabbitMQURL, err = requireEnv("RABBITMQ_URL"); err != nil {
		return nil, err
	}
	if cfg.ProjectServiceURL, err = requireEnv("PROJECT_SERVICE_URL"); err != nil {
		return nil, err
	}

	publicKey, err := requireEnv("JWT_PUBLIC_KEY")
	if err != nil {
		return nil, err
	}
	cfg.JWTPublicKey = []byte(publicKey)

	if timeout := os.Getenv("PROJECT_SERVICE_TIMEOUT"); timeout != "" {
		d, parseErr := time.ParseDuration(timeout)
		if parseErr != nil {
			return nil, fmt.Errorf("invalid PROJECT_SERVICE_TIMEOUT %q: %w", timeout, parseErr)
		}
		cfg.ProjectTimeout = d
	}

	return cfg, nil
}

func requireEnv(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("%w: %s", ErrEnvironmentNotSet, key)
	}
	return value, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
