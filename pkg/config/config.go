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
	Checkout     CheckoutConfig
	RateLimit    RateLimitConfig
	ExternalAPI  ExternalAPIConfig
	RouteGate    RouteGateConfig
	CORS         CORSConfig
	Outbox       OutboxConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = DBDriverSQLite
	}
	if err := cfg.DB.ensureDSN(cfg.DB.Driver == DBDriverSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Checkout.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string        `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string        `envconfig:"STOREFRONT_APP_PORT" default:"8080"`
	ShutdownWait time.Duration `envconfig:"STOREFRONT_APP_SHUTDOWN_WAIT" default:"15s"`
	LogLevel     string        `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogFormat    string        `envconfig:"STOREFRONT_LOG_FORMAT" default:"json"`
	LogWarnStack bool          `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"STOREFRONT_DB_DSN"`
	Driver string `envconfig:"STOREFRONT_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"STOREFRONT_DB_HOST"`
	Port     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	User     string `envconfig:"STOREFRONT_DB_USER"`
	Password string `envconfig:"STOREFRONT_DB_PASSWORD"`
	Name     string `envconfig:"STOREFRONT_DB_NAME"`
	SSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"STOREFRONT_DB_SLOW_QUERY_THRESHOLD" default:"200ms"`
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
	StateTTL     time.Duration `envconfig:"STOREFRONT_REDIS_STATE_TTL" default:"720h"`
}

type JWTConfig struct {
	Secret string `envconfig:"STOREFRONT_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"STOREFRONT_JWT_ISSUER" required:"true"`
	// ExpirationMinutes only applies to tokens minted locally (dev tooling and tests).
	ExpirationMinutes int `envconfig:"STOREFRONT_JWT_EXPIRATION_MINUTES" default:"60"`
}

// CheckoutConfig holds the pricing constants and the order-completion policy switches.
type CheckoutConfig struct {
	ShippingFee              string        `envconfig:"STOREFRONT_CHECKOUT_SHIPPING_FEE" default:"50"`
	TaxRate                  string        `envconfig:"STOREFRONT_CHECKOUT_TAX_RATE" default:"0.15"`
	ClampTotal               bool          `envconfig:"STOREFRONT_CHECKOUT_CLAMP_TOTAL" default:"false"`
	MaxLineQuantity          int           `envconfig:"STOREFRONT_CHECKOUT_MAX_LINE_QTY" default:"10"`
	ClearShippingOnOrder     bool          `envconfig:"STOREFRONT_CHECKOUT_CLEAR_SHIPPING_ON_ORDER" default:"true"`
	ClearPaymentOnOrder      bool          `envconfig:"STOREFRONT_CHECKOUT_CLEAR_PAYMENT_ON_ORDER" default:"true"`
	SubmitLatency            time.Duration `envconfig:"STOREFRONT_CHECKOUT_SUBMIT_LATENCY" default:"1s"`
	UseExternalOrderEndpoint bool          `envconfig:"STOREFRONT_CHECKOUT_EXTERNAL_ORDERS" default:"false"`
}

// ShippingFeeAmount returns the parsed flat shipping fee.
func (c CheckoutConfig) ShippingFeeAmount() decimal.Decimal {
	return decimal.RequireFromString(strings.TrimSpace(c.ShippingFee))
}

// TaxRateValue returns the parsed tax rate.
func (c CheckoutConfig) TaxRateValue() decimal.Decimal {
	return decimal.RequireFromString(strings.TrimSpace(c.TaxRate))
}

func (c CheckoutConfig) validate() error {
	fee, err := decimal.NewFromString(strings.TrimSpace(c.ShippingFee))
	if err != nil {
		return fmt.Errorf("%s: %w", EnvCheckoutShippingFee, err)
	}
	if fee.IsNegative() {
		return fmt.Errorf("%s must be non-negative", EnvCheckoutShippingFee)
	}
	rate, err := decimal.NewFromString(strings.TrimSpace(c.TaxRate))
	if err != nil {
		return fmt.Errorf("%s: %w", EnvCheckoutTaxRate, err)
	}
	if rate.IsNegative() {
		return fmt.Errorf("%s must be non-negative", EnvCheckoutTaxRate)
	}
	if c.MaxLineQuantity < 1 {
		return fmt.Errorf("%s must be at least 1", EnvCheckoutMaxLineQty)
	}
	return nil
}

type RateLimitConfig struct {
	DiscountWindow time.Duration `envconfig:"STOREFRONT_RATE_LIMIT_DISCOUNT_WINDOW" default:"1m"`
	DiscountLimit  int           `envconfig:"STOREFRONT_RATE_LIMIT_DISCOUNT_LIMIT" default:"10"`
	OrderWindow    time.Duration `envconfig:"STOREFRONT_RATE_LIMIT_ORDER_WINDOW" default:"1m"`
	OrderLimit     int           `envconfig:"STOREFRONT_RATE_LIMIT_ORDER_LIMIT" default:"5"`
}

type ExternalAPIConfig struct {
	BaseURL         string        `envconfig:"STOREFRONT_EXTERNAL_API_URL"`
	Timeout         time.Duration `envconfig:"STOREFRONT_EXTERNAL_API_TIMEOUT" default:"10s"`
	BreakerFailures uint32        `envconfig:"STOREFRONT_EXTERNAL_API_BREAKER_FAILURES" default:"5"`
	BreakerCooldown time.Duration `envconfig:"STOREFRONT_EXTERNAL_API_BREAKER_COOLDOWN" default:"30s"`
}

type RouteGateConfig struct {
	ProtectedPrefixes []string `envconfig:"STOREFRONT_ROUTE_PROTECTED_PREFIXES" default:"/checkout,/account,/orders,/vendor,/admin"`
	AuthOnlyPrefixes  []string `envconfig:"STOREFRONT_ROUTE_AUTH_ONLY_PREFIXES" default:"/login,/register"`
	LoginPath         string   `envconfig:"STOREFRONT_ROUTE_LOGIN_PATH" default:"/login"`
	HomePath          string   `envconfig:"STOREFRONT_ROUTE_HOME_PATH" default:"/"`
	// PagesUpstream is the storefront frontend that gated page requests are proxied to.
	PagesUpstream string `envconfig:"STOREFRONT_PAGES_UPSTREAM"`
}

type OutboxConfig struct {
	BatchSize    int           `envconfig:"STOREFRONT_OUTBOX_BATCH_SIZE" default:"50"`
	PollInterval time.Duration `envconfig:"STOREFRONT_OUTBOX_POLL_INTERVAL" default:"500ms"`
	MaxAttempts  int           `envconfig:"STOREFRONT_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"STOREFRONT_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"STOREFRONT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
	UseRedis    bool `envconfig:"STOREFRONT_USE_REDIS" default:"true"`
}

func (db *DBConfig) ensureDSN(sqlite bool) error {
	if db.DSN != "" {
		return nil
	}
	if sqlite {
		db.DSN = "file:storefront.db?cache=shared"
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range discreteDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}
	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
