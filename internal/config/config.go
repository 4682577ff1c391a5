package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"checkout-service/internal/pricing"

	"github.com/shopspring/decimal"
)

type Config struct {
	Env       string
	Port      string
	LogJSON   bool
	LogLevel  string
	AppURL    string
	PublicURL string
	JWTSecret string
	Currency  string

	Database DatabaseConfig

	RedisAddr string
	CacheTTL  time.Duration

	EventBroker    string // rabbitmq | kafka | none
	RabbitURL      string
	RabbitExchange string
	KafkaBrokers   string

	CatalogURL       string
	CatalogTimeout   time.Duration
	CatalogWarmupIDs []string

	Pricing pricing.Config
	Gateway GatewayConfig
	Webhook WebhookConfig
	Stripe  StripeConfig

	RateLimitRPS   float64
	RateLimitBurst int
}

type DatabaseConfig struct {
	Driver       string
	DSN          string
	User         string
	Password     string
	Host         string
	Port         string
	Name         string
	MaxOpenConns int
	MaxIdleConns int
}

// MySQLDSN prefers an explicit DSN and otherwise assembles one from parts.
func (c DatabaseConfig) MySQLDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC", c.User, c.Password, c.Host, c.Port, c.Name)
}

const (
	ProviderFlutterwave = "flutterwave"
	ProviderStripe      = "stripe"
)

type GatewayConfig struct {
	Provider       string // flutterwave | stripe
	BaseURL        string
	SecretKey      string
	Timeout        time.Duration
	PaymentOptions string
	Title          string
}

type WebhookConfig struct {
	SecretHash    string
	SigningSecret string
}

// StripeConfig is used when Gateway.Provider is stripe. APIURL overrides the
// Stripe API host and is empty in production.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	APIURL        string
}

func Default() Config {
	return Config{
		Env:       "dev",
		Port:      "8080",
		LogJSON:   true,
		LogLevel:  "info",
		AppURL:    "http://localhost:3000",
		PublicURL: "http://localhost:8080",
		Currency:  "USD",
		Database: DatabaseConfig{
			Driver:       "mysql",
			Host:         "127.0.0.1",
			Port:         "3306",
			Name:         "checkout",
			MaxOpenConns: 100,
			MaxIdleConns: 20,
		},
		CacheTTL:       time.Minute,
		EventBroker:    "none",
		RabbitExchange: "order.exchange",
		CatalogTimeout: 2 * time.Second,
		Pricing: pricing.Config{
			TaxRate:               decimal.RequireFromString("0.10"),
			FreeShippingThreshold: decimal.RequireFromString("50"),
			ShippingFee:           decimal.RequireFromString("5.99"),
		},
		Gateway: GatewayConfig{
			Provider:       ProviderFlutterwave,
			BaseURL:        "https://api.flutterwave.com",
			Timeout:        10 * time.Second,
			PaymentOptions: "card,banktransfer,ussd,account",
			Title:          "Storefront",
		},
		RateLimitRPS:   2,
		RateLimitBurst: 5,
	}
}

func FromEnv() (Config, error) {
	return fromEnv(Default())
}

func fromEnv(c Config) (Config, error) {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	var errs []error
	dec := func(key string, dst *decimal.Decimal) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			d, err := decimal.NewFromString(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	num := func(key string, dst *int) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}

	str("ENV", &c.Env)
	str("PORT", &c.Port)
	if v := os.Getenv("LOG_JSON"); v != "" {
		switch v {
		case "1", "true", "TRUE":
			c.LogJSON = true
		case "0", "false", "FALSE":
			c.LogJSON = false
		}
	}
	str("LOG_LEVEL", &c.LogLevel)
	str("APP_URL", &c.AppURL)
	str("PUBLIC_URL", &c.PublicURL)
	str("JWT_SECRET", &c.JWTSecret)
	str("CURRENCY", &c.Currency)

	str("DB_DRIVER", &c.Database.Driver)
	str("DB_DSN", &c.Database.DSN)
	str("MYSQL_USER", &c.Database.User)
	str("MYSQL_PASSWORD", &c.Database.Password)
	str("MYSQL_HOST", &c.Database.Host)
	str("MYSQL_PORT", &c.Database.Port)
	str("MYSQL_DATABASE", &c.Database.Name)
	num("DB_MAX_OPEN_CONNS", &c.Database.MaxOpenConns)
	num("DB_MAX_IDLE_CONNS", &c.Database.MaxIdleConns)

	str("REDIS_ADDR", &c.RedisAddr)
	dur("CACHE_TTL", &c.CacheTTL)

	str("EVENT_BROKER", &c.EventBroker)
	str("RABBITMQ_URL", &c.RabbitURL)
	str("RABBITMQ_EXCHANGE", &c.RabbitExchange)
	str("KAFKA_BROKERS", &c.KafkaBrokers)

	str("CATALOG_SERVICE_URL", &c.CatalogURL)
	dur("CATALOG_TIMEOUT", &c.CatalogTimeout)
	if v := strings.TrimSpace(os.Getenv("CATALOG_WARMUP_IDS")); v != "" {
		c.CatalogWarmupIDs = nil
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				c.CatalogWarmupIDs = append(c.CatalogWarmupIDs, id)
			}
		}
	}

	dec("TAX_RATE", &c.Pricing.TaxRate)
	dec("FREE_SHIPPING_THRESHOLD", &c.Pricing.FreeShippingThreshold)
	dec("SHIPPING_FEE", &c.Pricing.ShippingFee)

	str("GATEWAY_PROVIDER", &c.Gateway.Provider)
	str("GATEWAY_BASE_URL", &c.Gateway.BaseURL)
	str("GATEWAY_SECRET_KEY", &c.Gateway.SecretKey)
	dur("GATEWAY_TIMEOUT", &c.Gateway.Timeout)
	str("GATEWAY_PAYMENT_OPTIONS", &c.Gateway.PaymentOptions)
	str("GATEWAY_TITLE", &c.Gateway.Title)

	str("WEBHOOK_SECRET_HASH", &c.Webhook.SecretHash)
	str("WEBHOOK_SIGNING_SECRET", &c.Webhook.SigningSecret)

	str("STRIPE_SECRET_KEY", &c.Stripe.SecretKey)
	str("STRIPE_WEBHOOK_SECRET", &c.Stripe.WebhookSecret)
	str("STRIPE_API_URL", &c.Stripe.APIURL)

	if v := strings.TrimSpace(os.Getenv("CHECKOUT_RATE_LIMIT_RPS")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("CHECKOUT_RATE_LIMIT_RPS: %w", err))
		} else {
			c.RateLimitRPS = f
		}
	}
	num("CHECKOUT_RATE_LIMIT_BURST", &c.RateLimitBurst)

	c.AppURL = strings.TrimRight(c.AppURL, "/")
	c.PublicURL = strings.TrimRight(c.PublicURL, "/")
	c.Gateway.BaseURL = strings.TrimRight(c.Gateway.BaseURL, "/")
	c.CatalogURL = strings.TrimRight(c.CatalogURL, "/")
	c.Currency = strings.ToUpper(c.Currency)
	c.Gateway.Provider = strings.ToLower(c.Gateway.Provider)

	return c, errors.Join(errs...)
}

// Validate fails closed: the service never starts able to accept forged
// webhooks or unsigned sessions.
func (c Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	switch c.Gateway.Provider {
	case ProviderFlutterwave, "":
		if c.Webhook.SecretHash == "" && c.Webhook.SigningSecret == "" {
			errs = append(errs, errors.New("one of WEBHOOK_SECRET_HASH or WEBHOOK_SIGNING_SECRET is required"))
		}
		if c.Gateway.SecretKey == "" {
			errs = append(errs, errors.New("GATEWAY_SECRET_KEY is required"))
		}
	case ProviderStripe:
		if c.Stripe.SecretKey == "" {
			errs = append(errs, errors.New("STRIPE_SECRET_KEY is required for GATEWAY_PROVIDER=stripe"))
		}
		if c.Stripe.WebhookSecret == "" {
			errs = append(errs, errors.New("STRIPE_WEBHOOK_SECRET is required for GATEWAY_PROVIDER=stripe"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown GATEWAY_PROVIDER %q", c.Gateway.Provider))
	}
	if c.Gateway.Timeout <= 0 {
		errs = append(errs, errors.New("GATEWAY_TIMEOUT must be positive"))
	}
	if c.Pricing.TaxRate.IsNegative() || c.Pricing.ShippingFee.IsNegative() || c.Pricing.FreeShippingThreshold.IsNegative() {
		errs = append(errs, errors.New("pricing values must not be negative"))
	}
	if len(c.Currency) != 3 {
		errs = append(errs, fmt.Errorf("CURRENCY %q is not an ISO 4217 code", c.Currency))
	}
	switch c.EventBroker {
	case "none", "":
	case "rabbitmq":
		if c.RabbitURL == "" {
			errs = append(errs, errors.New("RABBITMQ_URL is required for EVENT_BROKER=rabbitmq"))
		}
	case "kafka":
		if c.KafkaBrokers == "" {
			errs = append(errs, errors.New("KAFKA_BROKERS is required for EVENT_BROKER=kafka"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown EVENT_BROKER %q", c.EventBroker))
	}
	return errors.Join(errs...)
}
