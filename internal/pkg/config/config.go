package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
	"golang.org/x/crypto/bcrypt"
)

// DefaultJWTSecret is the development fallback; production deployments must override it.
const DefaultJWTSecret = "your_jwt_secret"

// Config is loaded once at startup and treated as read-only afterwards.
type Config struct {
	Port            string        `env:"PORT,             default=3000"`
	Env             string        `env:"ENV,              default=development"`
	LogLevel        string        `env:"LOG_LEVEL,        default=info"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT, default=10s"`

	Mongo MongoConfig
	Redis RedisConfig
	Auth  AuthConfig
}

type MongoConfig struct {
	URI      string        `env:"MONGO_URI,     default=mongodb://localhost:27017"`
	Database string        `env:"MONGO_DB,      default=user_service"`
	Timeout  time.Duration `env:"MONGO_TIMEOUT, default=5s"`
}

// RedisConfig configures the registration idempotency store. An empty Addr
// runs the service without it.
type RedisConfig struct {
	Addr           string        `env:"REDIS_ADDR,      default=localhost:6379"`
	Password       string        `env:"REDIS_PASSWORD"`
	DB             int           `env:"REDIS_DB,        default=0"`
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL, default=24h"`
}

type AuthConfig struct {
	JWTSecret    string        `env:"JWT_SECRET,     default=your_jwt_secret"`
	JWTExpiresIn time.Duration `env:"JWT_EXPIRES_IN, default=1h"`
	BcryptCost   int           `env:"BCRYPT_COST,    default=10"`
	// HashWorkers sizes the bcrypt worker pool; 0 means one per CPU.
	HashWorkers int `env:"HASH_WORKERS, default=0"`
}

// IsProduction reports whether ENV is "production".
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET must not be empty"))
	}
	if c.Auth.JWTExpiresIn <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRES_IN must be positive"))
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
	}
	if c.Auth.HashWorkers < 0 {
		errs = append(errs, errors.New("HASH_WORKERS must not be negative"))
	}
	if c.Mongo.URI == "" {
		errs = append(errs, errors.New("MONGO_URI must not be empty"))
	}
	return errors.Join(errs...)
}

// Load reads an optional .env file, then configuration from environment
// variables using go-envconfig. It panics on invalid configuration.
func Load() *Config {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	cfg, err := load(context.Background(), envconfig.OsLookuper())
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}

func load(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
