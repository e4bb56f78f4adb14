package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

const (
	StoreMemory = "memory"
	StoreMongo  = "mongo"

	FeedNative = "native"
	FeedRedis  = "redis"
)

type Config struct {
	Port      string        `env:"PORT,      default=8080"`
	Env       string        `env:"ENV,       default=development"`
	LogLevel  string        `env:"LOG_LEVEL, default=info"`
	JWTSecret string        `env:"JWT_SECRET"`
	TokenTTL  time.Duration `env:"TOKEN_TTL, default=12h"`

	// AdminName is reserved for the host; AdminPasswordHash is its bcrypt hash.
	AdminName         string `env:"ADMIN_NAME, default=admin"`
	AdminPasswordHash string `env:"ADMIN_PASSWORD_HASH"`

	CORSOrigins []string `env:"CORS_ORIGINS, default=*"`

	// StoreDriver selects the question store: memory or mongo.
	StoreDriver string `env:"STORE_DRIVER, default=memory"`
	// FeedDriver selects the change feed: native (the store's own) or redis.
	FeedDriver      string        `env:"FEED_DRIVER,      default=native"`
	RefreshInterval time.Duration `env:"REFRESH_INTERVAL, default=5s"`

	Mongo    MongoConfig
	Redis    RedisConfig
	Improver ImproverConfig
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=ama"`
}

// RedisConfig with an empty Addr disables Redis entirely.
type RedisConfig struct {
	Addr           string        `env:"REDIS_ADDR"`
	Password       string        `env:"REDIS_PASSWORD"`
	DB             int           `env:"REDIS_DB,        default=0"`
	Channel        string        `env:"REDIS_CHANNEL,   default=ama:questions"`
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL, default=24h"`
}

// ImproverConfig with an empty URL disables text improvement.
type ImproverConfig struct {
	URL         string        `env:"IMPROVER_URL"`
	APIKey      string        `env:"IMPROVER_API_KEY"`
	Model       string        `env:"IMPROVER_MODEL,       default=gpt-3.5-turbo"`
	Temperature float64       `env:"IMPROVER_TEMPERATURE, default=0.7"`
	MaxTokens   int           `env:"IMPROVER_MAX_TOKENS,  default=200"`
	Timeout     time.Duration `env:"IMPROVER_TIMEOUT,     default=5s"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	cfg, err := LoadWith(context.Background(), envconfig.OsLookuper())
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}

// LoadWith reads configuration through l and validates it.
func LoadWith(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	switch c.StoreDriver {
	case StoreMemory, StoreMongo:
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreMemory, StoreMongo, c.StoreDriver))
	}
	switch c.FeedDriver {
	case FeedNative:
	case FeedRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("FEED_DRIVER=redis requires REDIS_ADDR"))
		}
	default:
		errs = append(errs, fmt.Errorf("FEED_DRIVER must be %q or %q, got %q", FeedNative, FeedRedis, c.FeedDriver))
	}
	if c.RefreshInterval <= 0 {
		errs = append(errs, errors.New("REFRESH_INTERVAL must be positive"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
