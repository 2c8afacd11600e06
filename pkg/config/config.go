package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

// EnvPrefix scopes every environment variable read by the service.
const EnvPrefix = "FAIRWAY"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Pricing      PricingConfig
	Terminal     TerminalConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Receipts     ReceiptsConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Pricing.validate(); err != nil {
		return nil, err
	}
	// envconfig's required tag only fires when the variable is absent, not
	// when it is set but empty.
	if cfg.DB.DSN == "" {
		return nil, fmt.Errorf("FAIRWAY_DB_DSN must not be empty")
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"FAIRWAY_APP_ENV" required:"true"`
	Port         string `envconfig:"FAIRWAY_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"FAIRWAY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FAIRWAY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"FAIRWAY_DB_DSN" required:"true"`
	Driver string `envconfig:"FAIRWAY_DB_DRIVER" default:"postgres"`

	MaxOpenConns    int           `envconfig:"FAIRWAY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FAIRWAY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FAIRWAY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FAIRWAY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FAIRWAY_REDIS_URL" required:"true"`
	PoolSize     int           `envconfig:"FAIRWAY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FAIRWAY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FAIRWAY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FAIRWAY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FAIRWAY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"FAIRWAY_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"FAIRWAY_JWT_ISSUER" default:"fairway-pos"`
	ExpirationMinutes int    `envconfig:"FAIRWAY_JWT_EXPIRATION_MINUTES" default:"720"`
	// ProvisionKey is the shared key the back office presents to open a
	// register session.
	ProvisionKey string `envconfig:"FAIRWAY_REGISTER_PROVISION_KEY"`
}

// TokenTTL returns the register session token lifetime.
func (j JWTConfig) TokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

// PricingConfig carries venue-level pricing defaults. Membership tier rates
// arrive as "tier:rate" pairs, e.g. "gold:0.15,silver:0.10".
type PricingConfig struct {
	DefaultTaxRate string            `envconfig:"FAIRWAY_DEFAULT_TAX_RATE" default:"0.0635"`
	TierRates      map[string]string `envconfig:"FAIRWAY_MEMBERSHIP_TIER_RATES"`
}

func (p PricingConfig) validate() error {
	if _, err := p.TaxRate(); err != nil {
		return err
	}
	if _, err := p.MembershipTierRates(); err != nil {
		return err
	}
	return nil
}

// TaxRate parses the configured default tax rate.
func (p PricingConfig) TaxRate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(p.DefaultTaxRate)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid default tax rate %q: %w", p.DefaultTaxRate, err)
	}
	return rate, nil
}

// MembershipTierRates parses the configured tier discount table.
func (p PricingConfig) MembershipTierRates() (map[string]decimal.Decimal, error) {
	rates := make(map[string]decimal.Decimal, len(p.TierRates))
	for tier, raw := range p.TierRates {
		rate, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid tier rate %q for tier %q: %w", raw, tier, err)
		}
		rates[strings.ToLower(strings.TrimSpace(tier))] = rate
	}
	return rates, nil
}

type TerminalConfig struct {
	Provider    string `envconfig:"FAIRWAY_TERMINAL_PROVIDER" default:"simulated"`
	AccessToken string `envconfig:"FAIRWAY_SQUARE_ACCESS_TOKEN"`
	Env         string `envconfig:"FAIRWAY_SQUARE_ENV" default:"sandbox"`
	LocationID  string `envconfig:"FAIRWAY_SQUARE_LOCATION_ID"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (t TerminalConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(t.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type GCPConfig struct {
	ProjectID string `envconfig:"FAIRWAY_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	Enabled     bool   `envconfig:"FAIRWAY_PUBSUB_ENABLED" default:"false"`
	DomainTopic string `envconfig:"FAIRWAY_PUBSUB_DOMAIN_TOPIC" default:"fairway-domain-events"`
}

type ReceiptsConfig struct {
	Enabled     bool          `envconfig:"FAIRWAY_RECEIPTS_ENABLED" default:"false"`
	EndpointURL string        `envconfig:"FAIRWAY_RECEIPTS_ENDPOINT_URL"`
	FromEmail   string        `envconfig:"FAIRWAY_RECEIPTS_FROM_EMAIL"`
	Timeout     time.Duration `envconfig:"FAIRWAY_RECEIPTS_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"FAIRWAY_AUTO_MIGRATE" default:"false"`
}
