package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/dispatch"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (SHOP_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (SHOP_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	ImagesDir   string `default:"./uploads" usage:"Directory holding uploaded promo images" flag:"images-dir"`
	Redis       RedisConfig
	Kafka       KafkaConfig
	Promo       PromoConfig
	Order       OrderConfig
	Dispatcher  dispatch.Config
	Admin       AdminConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// RedisConfig points at the session and cache store.
type RedisConfig struct {
	URL string `default:"redis://localhost:6379/0" usage:"Redis URL (SHOP_REDIS_URL or REDIS_URL)" flag:"redis-url"`
}

// KafkaConfig controls order notification publishing.
type KafkaConfig struct {
	Brokers []string `default:"localhost:9092" usage:"Kafka bootstrap brokers"`
	Topic   string   `default:"orders.placed" usage:"Order notification topic"`
	Group   string   `default:"storefront-notify" usage:"Consumer group of the notification worker"`
}

// PromoConfig tunes promo evaluation.
type PromoConfig struct {
	Precision int32         `default:"2" usage:"Decimal places money is rounded to"`
	CacheTTL  time.Duration `default:"5m" usage:"Lifetime of cached promo lookups" flag:"promo-cache-ttl"`
}

// OrderConfig holds checkout settings.
type OrderConfig struct {
	DefaultTaxRate string `default:"18" usage:"Tax rate percent used when the business row is missing" flag:"default-tax-rate"`
	Currency       string `default:"PEN" usage:"Currency reported when the business row is missing"`
}

// AdminConfig guards the admin API.
type AdminConfig struct {
	KeyHash string `usage:"Hex HMAC-SHA256 of the admin API key (SHOP_ADMIN_KEY_HASH)" flag:"admin-key-hash"`
	Pepper  string `usage:"HMAC pepper for the admin API key (SHOP_ADMIN_PEPPER)" flag:"admin-pepper"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max      int           `default:"100" usage:"Max requests per window"`
	Window   time.Duration `default:"1m"  usage:"Rate limit window duration"`
	Validate ValidateLimitConfig
}

// ValidateLimitConfig bounds promo code checks per signed-in user, or per
// client IP for guests, to slow down code guessing.
type ValidateLimitConfig struct {
	Max    int           `default:"10" usage:"Max promo validations per window"`
	Window time.Duration `default:"1m" usage:"Promo validation window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// TaxRate parses the configured default tax rate.
func (c OrderConfig) TaxRate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(c.DefaultTaxRate)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse default tax rate %q", c.DefaultTaxRate)
	}
	if rate.IsNegative() {
		return decimal.Zero, errors.Errorf("default tax rate %s is negative", rate)
	}
	return rate, nil
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		EnvPrefix: "SHOP",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func loadConfig(acfg aconfig.Config) (*Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, acfg).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set SHOP_DATABASE_URL or DATABASE_URL")
	}
	if _, err := redis.ParseURL(c.Redis.URL); err != nil {
		return errors.Wrap(err, "redis URL")
	}
	if len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "" {
		return errors.New("kafka brokers and topic are required")
	}
	if _, err := c.Order.TaxRate(); err != nil {
		return err
	}
	if c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0 {
		return errors.New("rate limit max and window must be positive")
	}
	if c.RateLimit.Validate.Max <= 0 || c.RateLimit.Validate.Window <= 0 {
		return errors.New("promo validation limit max and window must be positive")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's SHOP_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if v := os.Getenv("REDIS_URL"); v != "" && os.Getenv("SHOP_REDIS_URL") == "" {
		c.Redis.URL = v
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
