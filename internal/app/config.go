package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-promo/internal/domain/promo"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (PROMO_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (PROMO_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing (PROMO_API_KEY_PEPPER)" flag:"api-key-pepper"`
	Promo        PromoConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// PromoConfig parameterises the promo strategies. Rates are decimal
// fractions of the amount they apply to.
type PromoConfig struct {
	FidelityMinPoints     int    `default:"1000" usage:"Fidelity points needed for the fidelity promo"`
	FidelityRate          string `default:"0.05" usage:"Fidelity promo rate"`
	BulkItemMinQuantity   int    `default:"20"   usage:"Units of one product needed for the bulk item promo"`
	BulkItemRate          string `default:"0.10" usage:"Bulk item promo rate"`
	LargeOrderMinDistinct int    `default:"10"   usage:"Distinct products needed for the large order promo"`
	LargeOrderRate        string `default:"0.07" usage:"Large order promo rate"`
	RulesFile             string `default:""     usage:"JSON file with extra declarative promo rules" flag:"promo-rules-file"`
	BatchConcurrency      int    `default:"8"    usage:"Quotes priced concurrently per batch request"`
}

// Standard converts the configuration into promo.StandardConfig.
func (c PromoConfig) Standard() (promo.StandardConfig, error) {
	rates := make([]decimal.Decimal, 3)
	for i, s := range []string{c.FidelityRate, c.BulkItemRate, c.LargeOrderRate} {
		rate, err := decimal.NewFromString(s)
		if err != nil {
			return promo.StandardConfig{}, errors.Wrapf(err, "parse rate %q", s)
		}
		if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
			return promo.StandardConfig{}, errors.Errorf("rate %s out of range [0, 1]", rate)
		}
		rates[i] = rate
	}
	return promo.StandardConfig{
		FidelityMinPoints:     c.FidelityMinPoints,
		FidelityRate:          rates[0],
		BulkItemMinQuantity:   c.BulkItemMinQuantity,
		BulkItemRate:          rates[1],
		LargeOrderMinDistinct: c.LargeOrderMinDistinct,
		LargeOrderRate:        rates[2],
	}, nil
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
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

// LoadConfig loads configuration from flags, environment variables and YAML
// config files, then applies platform defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		EnvPrefix: "PROMO",
		Files:     []string{"config.yaml", "/etc/promo/config.yaml"},
	})
}

func loadConfig(base aconfig.Config) (*Config, error) {
	var cfg Config
	base.FileDecoders = map[string]aconfig.FileDecoder{
		".yaml": aconfigyaml.New(),
	}
	if err := aconfig.LoaderFor(&cfg, base).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set PROMO_DATABASE_URL or DATABASE_URL")
	}
	if cfg.Promo.BatchConcurrency <= 0 {
		return nil, errors.Errorf("batch concurrency must be positive, got %d", cfg.Promo.BatchConcurrency)
	}
	return &cfg, nil
}

// applyPlatformDefaults maps the conventional DATABASE_URL and PORT
// variables set by hosting platforms.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
