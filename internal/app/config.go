package app

import (
	"io/fs"
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	defaultAddr      = "0.0.0.0:8080"
	defaultRedisAddr = "localhost:6379"
)

// Config holds the complete application configuration, loadable from
// environment variables (BOOKLIFY_ prefix), flags, a .env file, or YAML
// config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL URL of the durable store (BOOKLIFY_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Redis       RedisConfig
	Backend     BackendConfig
	Auth        AuthConfig
	Invoice     InvoiceConfig
	Notify      NotifyConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// RedisConfig locates the session store.
type RedisConfig struct {
	Addr       string        `default:"localhost:6379" usage:"Redis address (or REDIS_ADDR)"`
	Username   string        `usage:"Redis ACL user"`
	Password   string        `usage:"Redis password"`
	DB         int           `default:"0" usage:"Redis database number"`
	SessionTTL time.Duration `default:"24h" usage:"Lifetime of checkout session state"`
}

// BackendConfig locates the bookstore REST backend.
type BackendConfig struct {
	BaseURL string        `usage:"Bookstore backend base URL, e.g. http://localhost:8081" flag:"backend-url"`
	Timeout time.Duration `default:"10s" usage:"Per-request backend timeout"`
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	TokenSecret string        `usage:"HS256 secret shared with the token issuer" flag:"token-secret"`
	Issuer      string        `default:"booklify" usage:"Expected token issuer"`
	TokenTTL    time.Duration `default:"1h" usage:"Lifetime of tokens minted by seed-token"`
}

// InvoiceConfig controls invoice generation.
type InvoiceConfig struct {
	TaxRate       string `default:"0.15" usage:"Tax rate included in book prices"`
	Currency      string `default:"R" usage:"Currency symbol printed on invoices"`
	DueDays       int    `default:"30" usage:"Days until an invoice is due"`
	StableNumbers bool   `default:"false" usage:"Persist the first invoice number issued per order"`
}

// NotifyConfig controls post-payment notifications.
type NotifyConfig struct {
	BookFetchParallelism int `default:"4" usage:"Concurrent book fetches when emitting per-book notifications"`
}

// RateLimitConfig controls the per-client token bucket.
type RateLimitConfig struct {
	RPS   float64 `default:"5" usage:"Sustained requests per second per client"`
	Burst int     `default:"20" usage:"Burst size per client"`
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

// LoadConfig loads .env, then environment variables, YAML config files and
// flags, and applies platform defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(os.Args[1:])
}

func loadConfig(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrap(err, "load .env")
	}

	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "BOOKLIFY",
		Args:      args,
		Files:     []string{"config.yaml", "/etc/booklify/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
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
		return errors.New("database URL is required: set BOOKLIFY_DATABASE_URL or DATABASE_URL")
	}
	if c.Backend.BaseURL == "" {
		return errors.New("backend URL is required: set BOOKLIFY_BACKEND_BASE_URL")
	}
	if c.Auth.TokenSecret == "" {
		return errors.New("token secret is required: set BOOKLIFY_AUTH_TOKEN_SECRET")
	}
	if _, err := c.Invoice.Rate(); err != nil {
		return err
	}
	if c.RateLimit.RPS <= 0 {
		return errors.Errorf("rate limit rps must be positive, got %v", c.RateLimit.RPS)
	}
	return nil
}

// Rate parses TaxRate.
func (c InvoiceConfig) Rate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(c.TaxRate)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse tax rate %q", c.TaxRate)
	}
	if !rate.IsPositive() {
		return decimal.Zero, errors.Errorf("tax rate %s must be positive", rate)
	}
	return rate, nil
}

// applyPlatformDefaults maps platform-provided environment variables
// (DATABASE_URL, REDIS_ADDR, PORT) onto the BOOKLIFY_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" && c.Redis.Addr == defaultRedisAddr {
		c.Redis.Addr = v
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
