package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	HTTP         HTTPConfig
	DB           DBConfig
	Redis        RedisConfig
	Pricing      PricingConfig
	Checkout     CheckoutConfig
	Breaker      BreakerConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Pricing.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"MERCH_APP_ENV" required:"true"`
	Port         string `envconfig:"MERCH_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MERCH_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MERCH_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type HTTPConfig struct {
	AllowedOrigins []string      `envconfig:"MERCH_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	IdempotencyTTL time.Duration `envconfig:"MERCH_IDEMPOTENCY_TTL" default:"24h"`
	ShutdownGrace  time.Duration `envconfig:"MERCH_SHUTDOWN_GRACE" default:"10s"`
}

type DBConfig struct {
	DSN    string `envconfig:"MERCH_DB_DSN"`
	Driver string `envconfig:"MERCH_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MERCH_DB_HOST"`
	LegacyPort     int    `envconfig:"MERCH_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MERCH_DB_USER"`
	LegacyPassword string `envconfig:"MERCH_DB_PASSWORD"`
	LegacyName     string `envconfig:"MERCH_DB_NAME"`
	LegacySSLMode  string `envconfig:"MERCH_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MERCH_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MERCH_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MERCH_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MERCH_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MERCH_REDIS_URL" required:"true"`
	Address      string        `envconfig:"MERCH_REDIS_ADDR"`
	Password     string        `envconfig:"MERCH_REDIS_PASSWORD"`
	DB           int           `envconfig:"MERCH_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MERCH_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MERCH_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MERCH_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MERCH_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MERCH_REDIS_WRITE_TIMEOUT" default:"5s"`
	Namespace    string        `envconfig:"MERCH_REDIS_NAMESPACE" default:"merch"`
	// CartTTL bounds how long an idle cart survives; zero keeps it forever.
	CartTTL time.Duration `envconfig:"MERCH_REDIS_CART_TTL" default:"720h"`
}

// PricingConfig holds the flat fees and discounts applied by the pricing calculator.
// Amounts are decimal strings in the shop currency.
type PricingConfig struct {
	FreeDeliveryThreshold string        `envconfig:"MERCH_PRICING_FREE_DELIVERY_THRESHOLD" default:"199"`
	FlatDeliveryFee       string        `envconfig:"MERCH_PRICING_FLAT_DELIVERY_FEE" default:"9"`
	UPIDiscount           string        `envconfig:"MERCH_PRICING_UPI_DISCOUNT" default:"10"`
	CODHandlingFee        string        `envconfig:"MERCH_PRICING_COD_HANDLING_FEE" default:"9"`
	NoticeTTL             time.Duration `envconfig:"MERCH_PRICING_NOTICE_TTL" default:"3s"`
}

// Amounts parses the configured money values.
func (p PricingConfig) Amounts() (threshold, deliveryFee, upiDiscount, codFee decimal.Decimal, err error) {
	values := []struct {
		env string
		raw string
		dst *decimal.Decimal
	}{
		{EnvPricingFreeDeliveryThreshold, p.FreeDeliveryThreshold, &threshold},
		{EnvPricingFlatDeliveryFee, p.FlatDeliveryFee, &deliveryFee},
		{EnvPricingUPIDiscount, p.UPIDiscount, &upiDiscount},
		{EnvPricingCODHandlingFee, p.CODHandlingFee, &codFee},
	}
	for _, v := range values {
		parsed, parseErr := decimal.NewFromString(strings.TrimSpace(v.raw))
		if parseErr != nil {
			err = fmt.Errorf("%s: %w", v.env, parseErr)
			return
		}
		if parsed.IsNegative() {
			err = fmt.Errorf("%s must not be negative", v.env)
			return
		}
		*v.dst = parsed
	}
	return
}

func (p PricingConfig) validate() error {
	_, _, _, _, err := p.Amounts()
	return err
}

type CheckoutConfig struct {
	LockTTL       time.Duration `envconfig:"MERCH_CHECKOUT_LOCK_TTL" default:"30s"`
	SubmitTimeout time.Duration `envconfig:"MERCH_CHECKOUT_SUBMIT_TIMEOUT" default:"20s"`
}

type BreakerConfig struct {
	MaxFailures uint32        `envconfig:"MERCH_BREAKER_MAX_FAILURES" default:"5"`
	OpenTimeout time.Duration `envconfig:"MERCH_BREAKER_OPEN_TIMEOUT" default:"30s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"MERCH_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
