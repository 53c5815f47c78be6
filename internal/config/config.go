package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Env  string `yaml:"env" env:"ENV" env-default:"development"`
	Port string `yaml:"port" env:"PORT" env-default:"8080"`

	// Database
	DBDriver   string `yaml:"db_driver" env:"DB_DRIVER" env-default:"postgres"`
	DBHost     string `yaml:"db_host" env:"DB_HOST" env-default:"localhost"`
	DBPort     string `yaml:"db_port" env:"DB_PORT" env-default:"5432"`
	DBUser     string `yaml:"db_user" env:"DB_USER" env-default:"fintrack"`
	DBPassword string `yaml:"db_password" env:"DB_PASSWORD" env-default:"fintrack"`
	DBName     string `yaml:"db_name" env:"DB_NAME" env-default:"fintrack"`
	DBSSLMode  string `yaml:"db_sslmode" env:"DB_SSLMODE" env-default:"disable"`
	SQLitePath string `yaml:"sqlite_path" env:"SQLITE_PATH" env-default:"fintrack.db"`

	// Auth
	JWTSecret              string        `yaml:"jwt_secret" env:"JWT_SECRET" env-default:"fallback-secret-key-for-dev-only"`
	JWTExpirationDur       time.Duration `yaml:"jwt_expires_in" env:"JWT_EXPIRES_IN" env-default:"15m"`
	SessionTTL             time.Duration `yaml:"session_ttl" env:"SESSION_TTL" env-default:"720h"`
	SessionCleanupInterval time.Duration `yaml:"session_cleanup_interval" env:"SESSION_CLEANUP_INTERVAL" env-default:"1h"`

	// Ledger events
	AMQPURL      string `yaml:"amqp_url" env:"AMQP_URL"`
	AMQPExchange string `yaml:"amqp_exchange" env:"AMQP_EXCHANGE" env-default:"ledger"`
	AMQPQueue    string `yaml:"amqp_queue" env:"AMQP_QUEUE" env-default:"ledger.events"`

	// Exchange rates
	RatesBaseURL string        `yaml:"rates_base_url" env:"RATES_BASE_URL" env-default:"https://query1.finance.yahoo.com/v8/finance/chart"`
	RatesTTL     time.Duration `yaml:"rates_ttl" env:"RATES_TTL" env-default:"1h"`

	CORSOrigins []string `yaml:"cors_origins" env:"CORS_ORIGINS" env-separator:"," env-default:"*"`
}

var appConfig *Config

// Load loads configuration from an optional config file (CONFIG_PATH),
// the .env file and the process environment, in that order of precedence
// from lowest to highest.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	var cfg Config
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	appConfig = &cfg
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (use postgres or sqlite)", c.DBDriver)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	if c.JWTExpirationDur <= 0 {
		log.Printf("Warning: invalid JWT_EXPIRES_IN value '%s', falling back to 15m\n", c.JWTExpirationDur)
		c.JWTExpirationDur = 15 * time.Minute
	}
	return nil
}

// Get returns the application configuration
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

// Set replaces the global configuration. Used by tests and CLIs that build
// their configuration by hand.
func Set(cfg *Config) {
	appConfig = cfg
}
