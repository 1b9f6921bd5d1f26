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
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Store        StoreConfig
	Cart         CartConfig
	Orders       OrdersConfig
	Webhooks     WebhooksConfig
	Cron         CronConfig
	Outbox       OutboxConfig
	RateLimit    RateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if _, err := cfg.Store.Rate(); err != nil {
		return nil, err
	}
	switch strings.ToLower(cfg.App.LogFormat) {
	case "json", "console":
	default:
		return nil, fmt.Errorf("unsupported log format %q", cfg.App.LogFormat)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"STOREFRONT_LOG_FORMAT" default:"json"`
	// CORSOrigins is a comma separated allow-list.
	CORSOrigins []string `envconfig:"STOREFRONT_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev) || strings.EqualFold(a.Env, "development")
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type DBConfig struct {
	DSN    string `envconfig:"STOREFRONT_DB_DSN"`
	Driver string `envconfig:"STOREFRONT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"STOREFRONT_DB_HOST"`
	LegacyPort     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STOREFRONT_DB_USER"`
	LegacyPassword string `envconfig:"STOREFRONT_DB_PASSWORD"`
	LegacyName     string `envconfig:"STOREFRONT_DB_NAME"`
	LegacySSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"STOREFRONT_SQLITE_PATH" default:"storefront.db"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	// SlowQuery logs statements that run longer at warn level. Zero disables it.
	SlowQuery time.Duration `envconfig:"STOREFRONT_DB_SLOW_QUERY" default:"250ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies access tokens minted by the auth service.
type JWTConfig struct {
	Secret string `envconfig:"STOREFRONT_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"STOREFRONT_JWT_ISSUER" required:"true"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"STOREFRONT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
}

// StoreConfig carries the storewide pricing knobs. Money is in minor units.
type StoreConfig struct {
	TaxRate                    string `envconfig:"STOREFRONT_TAX_RATE" default:"0.05"`
	ShippingFeeCents           int64  `envconfig:"STOREFRONT_SHIPPING_FEE_CENTS" default:"500"`
	FreeShippingThresholdCents int64  `envconfig:"STOREFRONT_FREE_SHIPPING_THRESHOLD_CENTS" default:"5000"`
	Currency                   string `envconfig:"STOREFRONT_CURRENCY" default:"USD"`
}

// Rate parses the configured tax rate.
func (s StoreConfig) Rate() (decimal.Decimal, error) {
	raw := strings.TrimSpace(s.TaxRate)
	if raw == "" {
		return decimal.Zero, nil
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing %s: %w", EnvTaxRate, err)
	}
	if rate.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s must not be negative", EnvTaxRate)
	}
	return rate, nil
}

type CartConfig struct {
	MaxQuantityPerItem int `envconfig:"STOREFRONT_CART_MAX_QTY_PER_ITEM" default:"99"`
}

type OrdersConfig struct {
	NumberPrefix string        `envconfig:"STOREFRONT_ORDER_NUMBER_PREFIX" default:"SO"`
	UnpaidTTL    time.Duration `envconfig:"STOREFRONT_ORDERS_UNPAID_TTL" default:"48h"`
}

type WebhooksConfig struct {
	PaymentSecret string `envconfig:"STOREFRONT_PAYMENT_WEBHOOK_SECRET"`
	// ReplayTTL bounds how long processed callback ids are remembered.
	ReplayTTL time.Duration `envconfig:"STOREFRONT_PAYMENT_WEBHOOK_REPLAY_TTL" default:"168h"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"STOREFRONT_CRON_INTERVAL" default:"15m"`
	LockTTL  time.Duration `envconfig:"STOREFRONT_CRON_LOCK_TTL" default:"10m"`
	// JobTimeout bounds each job. Zero means half the lock TTL.
	JobTimeout time.Duration `envconfig:"STOREFRONT_CRON_JOB_TIMEOUT"`
	// OutboxRetention is how long relayed outbox rows are kept.
	OutboxRetention time.Duration `envconfig:"STOREFRONT_OUTBOX_RETENTION" default:"720h"`
}

// OutboxConfig tunes the relay from the outbox table to Redis pub/sub.
type OutboxConfig struct {
	BatchSize      int    `envconfig:"STOREFRONT_OUTBOX_BATCH_SIZE" default:"50"`
	PollIntervalMS int    `envconfig:"STOREFRONT_OUTBOX_POLL_INTERVAL_MS" default:"500"`
	MaxAttempts    int    `envconfig:"STOREFRONT_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Channel        string `envconfig:"STOREFRONT_OUTBOX_CHANNEL" default:"domain-events"`
	// MetricsAddr serves /metrics from the publisher when set, e.g. ":9102".
	MetricsAddr string `envconfig:"STOREFRONT_OUTBOX_METRICS_ADDR"`
}

// RateLimitConfig bounds write traffic per caller in a fixed window.
type RateLimitConfig struct {
	Window        time.Duration `envconfig:"STOREFRONT_RATE_LIMIT_WINDOW" default:"1m"`
	CheckoutLimit int           `envconfig:"STOREFRONT_RATE_LIMIT_CHECKOUT" default:"10"`
	WriteLimit    int           `envconfig:"STOREFRONT_RATE_LIMIT_WRITES" default:"120"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" || useSQLite {
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
