package config

import (
	"errors" // For validation errors
	"fmt"    // For error wrapping
	"time"   // For token lifetimes

	"github.com/joho/godotenv"             // For loading .env files
	"github.com/kelseyhightower/envconfig" // For typed environment decoding
	"github.com/shopspring/decimal"        // For the starting wallet balance
)

// Config holds the application configuration
type Config struct {
	AppPort     string `envconfig:"APP_PORT" default:"8080"`      // Application port
	IsProd      bool   `envconfig:"IS_PROD" default:"false"`      // Is production environment
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`     // Logrus level
	AutoMigrate bool   `envconfig:"AUTO_MIGRATE" default:"false"` // Run AutoMigrate on server start

	DBDriver   string `envconfig:"DB_DRIVER" default:"mysql"`        // mysql, postgres or sqlite
	DBUser     string `envconfig:"DB_USER"`                          // Database user
	DBPassword string `envconfig:"DB_PASSWORD"`                      // Database password
	DBHost     string `envconfig:"DB_HOST" default:"localhost"`      // Database host
	DBPort     string `envconfig:"DB_PORT" default:"3306"`           // Database port
	DBName     string `envconfig:"DB_NAME" default:"marketplace"`    // Database name
	DBPath     string `envconfig:"DB_PATH" default:"marketplace.db"` // SQLite file, used when DB_DRIVER=sqlite

	JWTSecret   string        `envconfig:"JWT_SECRET" required:"true"`   // Session token key
	ResetSecret string        `envconfig:"RESET_SECRET" required:"true"` // Password reset token key
	SessionTTL  time.Duration `envconfig:"SESSION_TTL" default:"2h"`     // Session token lifetime
	ResetTTL    time.Duration `envconfig:"RESET_TTL" default:"15m"`      // Reset token lifetime
	BcryptCost  int           `envconfig:"BCRYPT_COST" default:"12"`     // Password hashing cost

	StartingWallet decimal.Decimal `envconfig:"STARTING_WALLET" default:"500"` // Wallet of a new user

	RedisAddr string        `envconfig:"REDIS_ADDR"`              // Redis server address, empty disables caching
	RedisPass string        `envconfig:"REDIS_PASS"`              // Redis password
	RedisDB   int           `envconfig:"REDIS_DB" default:"0"`    // Redis database number
	CacheTTL  time.Duration `envconfig:"CACHE_TTL" default:"60s"` // Lifetime of cached records

	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`                                  // Kafka brokers, empty disables events
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"marketplace.transactions"` // Topic for transaction events

	SMTPHost string `envconfig:"SMTP_HOST"`                                                  // SMTP server, empty logs mails instead
	SMTPPort int    `envconfig:"SMTP_PORT" default:"587"`                                    // SMTP port
	SMTPUser string `envconfig:"SMTP_USER"`                                                  // SMTP user
	SMTPPass string `envconfig:"SMTP_PASS"`                                                  // SMTP password
	MailFrom string `envconfig:"MAIL_FROM" default:"no-reply@marketplace.local"`             // Sender address
	ResetURL string `envconfig:"RESET_URL" default:"http://localhost:4200/restore-password"` // Link put into reset mails

	UploadDir   string `envconfig:"UPLOAD_DIR" default:"./uploads"` // Product image directory
	MaxUploadMB int64  `envconfig:"MAX_UPLOAD_MB" default:"8"`      // Maximum accepted image size
}

// LoadConfig loads configuration from .env (if present) and the environment
func LoadConfig() (*Config, error) {
	_ = godotenv.Load() // Load .env file if present
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == c.ResetSecret {
		return errors.New("JWT_SECRET and RESET_SECRET must differ")
	}
	if c.StartingWallet.IsNegative() {
		return errors.New("STARTING_WALLET must not be negative")
	}
	switch c.DBDriver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	return nil
}
