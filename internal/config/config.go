package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config stores all configuration of the storefront service.
// Values are read by viper from an app.env file or environment variables.
type Config struct {
	AppName  string `mapstructure:"APP_NAME"`
	HTTPPort string `mapstructure:"HTTP_PORT"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	RequestTimeout  time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`

	// Document store: "memory", "mongo" or "firestore"
	StoreBackend                string        `mapstructure:"STORE_BACKEND"`
	MongoURI                    string        `mapstructure:"MONGO_URI"`
	MongoDBName                 string        `mapstructure:"MONGO_DB_NAME"`
	MongoMaxPoolSize            uint64        `mapstructure:"MONGO_MAX_POOL_SIZE"`
	MongoMinPoolSize            uint64        `mapstructure:"MONGO_MIN_POOL_SIZE"`
	MongoConnectTimeout         time.Duration `mapstructure:"MONGO_CONNECT_TIMEOUT"`
	MongoServerSelectionTimeout time.Duration `mapstructure:"MONGO_SERVER_SELECTION_TIMEOUT"`
	FirestoreProjectID          string        `mapstructure:"FIRESTORE_PROJECT_ID"`
	FirestoreCredentialsFile    string        `mapstructure:"FIRESTORE_CREDENTIALS_FILE"`

	// Cart slot: "memory" or "redis"
	CartStore     string        `mapstructure:"CART_STORE"`
	RedisAddr     string        `mapstructure:"REDIS_ADDR"`
	RedisPassword string        `mapstructure:"REDIS_PASSWORD"`
	CartSlotTTL   time.Duration `mapstructure:"CART_SLOT_TTL"`

	// In-memory cart engines idle longer than this are dropped; the slot keeps the cart
	SessionIdleTTL       time.Duration `mapstructure:"SESSION_IDLE_TTL"`
	SessionSweepInterval time.Duration `mapstructure:"SESSION_SWEEP_INTERVAL"`

	CatalogRefreshInterval time.Duration `mapstructure:"CATALOG_REFRESH_INTERVAL"`
	FeaturedCount          int           `mapstructure:"FEATURED_COUNT"`
	SearchPage             string        `mapstructure:"SEARCH_PAGE"`

	// Email relay: "log", "emailjs" or "sendgrid"
	EmailRelay        string `mapstructure:"EMAIL_RELAY"`
	EmailJSEndpoint   string `mapstructure:"EMAILJS_ENDPOINT"`
	EmailJSServiceID  string `mapstructure:"EMAILJS_SERVICE_ID"`
	EmailJSPublicKey  string `mapstructure:"EMAILJS_PUBLIC_KEY"`
	EmailJSPrivateKey string `mapstructure:"EMAILJS_PRIVATE_KEY"`
	SendGridAPIKey    string `mapstructure:"SENDGRID_API_KEY"`
	MailFrom          string `mapstructure:"MAIL_FROM"`
	CustomerTemplate  string `mapstructure:"CUSTOMER_TEMPLATE"`
	AdminTemplate     string `mapstructure:"ADMIN_TEMPLATE"`
	AdminEmail        string `mapstructure:"ADMIN_EMAIL"`

	// Checkout journal (Postgres) and its Kafka outbox
	JournalEnabled bool   `mapstructure:"JOURNAL_ENABLED"`
	DBHost         string `mapstructure:"DB_HOST"`
	DBPort         int    `mapstructure:"DB_PORT"`
	DBUser         string `mapstructure:"DB_USER"`
	DBPassword     string `mapstructure:"DB_PASSWORD"`
	DBName         string `mapstructure:"DB_NAME"`
	MigrationsPath string `mapstructure:"MIGRATIONS_PATH"`
	KafkaBrokers   string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic     string `mapstructure:"KAFKA_TOPIC"`

	// Bearer token for /api/v1/admin routes; empty rejects every admin call
	AdminToken string `mapstructure:"ADMIN_TOKEN"`
}

var defaults = map[string]interface{}{
	"APP_NAME":         "storefront",
	"HTTP_PORT":        "8080",
	"LOG_LEVEL":        "info",
	"REQUEST_TIMEOUT":  30 * time.Second,
	"SHUTDOWN_TIMEOUT": 10 * time.Second,

	"STORE_BACKEND":                  "memory",
	"MONGO_URI":                      "mongodb://localhost:27017",
	"MONGO_DB_NAME":                  "storefront",
	"MONGO_MAX_POOL_SIZE":            50,
	"MONGO_MIN_POOL_SIZE":            5,
	"MONGO_CONNECT_TIMEOUT":          10 * time.Second,
	"MONGO_SERVER_SELECTION_TIMEOUT": 5 * time.Second,
	"FIRESTORE_PROJECT_ID":           "",
	"FIRESTORE_CREDENTIALS_FILE":     "",

	"CART_STORE":     "memory",
	"REDIS_ADDR":     "localhost:6379",
	"REDIS_PASSWORD": "",
	"CART_SLOT_TTL":  30 * 24 * time.Hour,

	"SESSION_IDLE_TTL":       15 * time.Minute,
	"SESSION_SWEEP_INTERVAL": time.Minute,

	"CATALOG_REFRESH_INTERVAL": 5 * time.Minute,
	"FEATURED_COUNT":           8,
	"SEARCH_PAGE":              "/products.html",

	"EMAIL_RELAY":         "log",
	"EMAILJS_ENDPOINT":    "https://api.emailjs.com/api/v1.0/email/send",
	"EMAILJS_SERVICE_ID":  "",
	"EMAILJS_PUBLIC_KEY":  "",
	"EMAILJS_PRIVATE_KEY": "",
	"SENDGRID_API_KEY":    "",
	"MAIL_FROM":           "",
	"CUSTOMER_TEMPLATE":   "customer_order",
	"ADMIN_TEMPLATE":      "admin_order",
	"ADMIN_EMAIL":         "",

	"JOURNAL_ENABLED": false,
	"DB_HOST":         "localhost",
	"DB_PORT":         5432,
	"DB_USER":         "postgres",
	"DB_PASSWORD":     "postgres",
	"DB_NAME":         "storefront",
	"MIGRATIONS_PATH": "./internal/journal/migrations",
	"KAFKA_BROKERS":   "",
	"KAFKA_TOPIC":     "storefront-orders",

	"ADMIN_TOKEN": "",
}

// LoadConfig reads configuration from path/app.env (optional) and the environment.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	var notFound viper.ConfigFileNotFoundError
	if err := v.ReadInConfig(); err == nil {
		log.Info().Str("file", v.ConfigFileUsed()).Msg("Using config file")
	} else if errors.As(err, &notFound) {
		log.Info().Msg("No config file found, using environment variables and defaults.")
	} else {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.StoreBackend {
	case "memory", "mongo":
	case "firestore":
		if c.FirestoreProjectID == "" {
			return errors.New("FIRESTORE_PROJECT_ID is required for the firestore backend")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.CartStore {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown CART_STORE %q", c.CartStore)
	}

	switch c.EmailRelay {
	case "log":
	case "emailjs":
		if c.EmailJSServiceID == "" || c.EmailJSPublicKey == "" {
			return errors.New("EMAILJS_SERVICE_ID and EMAILJS_PUBLIC_KEY are required for the emailjs relay")
		}
	case "sendgrid":
		if c.SendGridAPIKey == "" || c.MailFrom == "" {
			return errors.New("SENDGRID_API_KEY and MAIL_FROM are required for the sendgrid relay")
		}
	default:
		return fmt.Errorf("unknown EMAIL_RELAY %q", c.EmailRelay)
	}

	if c.StoreBackend == "mongo" && c.MongoMinPoolSize > c.MongoMaxPoolSize {
		return errors.New("MONGO_MIN_POOL_SIZE must not exceed MONGO_MAX_POOL_SIZE")
	}
	if c.SessionIdleTTL <= 0 {
		return errors.New("SESSION_IDLE_TTL must be positive")
	}
	if c.CartStore == "redis" && c.SessionIdleTTL >= c.CartSlotTTL {
		return errors.New("SESSION_IDLE_TTL must be shorter than CART_SLOT_TTL")
	}

	if c.FeaturedCount < 0 {
		return errors.New("FEATURED_COUNT must not be negative")
	}
	return nil
}

func (c Config) Brokers() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
