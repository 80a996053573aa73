package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	API       APIConfig
	Payment   PaymentConfig
	Telegram  TelegramConfig
	Reconcile ReconcileConfig
}

type ServerConfig struct {
	Port int
	Env  string // "development", "production"
}

type DatabaseConfig struct {
	Host    string
	Port    string
	Name    string
	User    string
	Pass    string
	Charset string
}

type RedisConfig struct {
	Addr string
	Pass string
	DB   int
}

type APIConfig struct {
	Key string
}

type PaymentConfig struct {
	// Gateway is the registry type bound to the REST middleware.
	Gateway     string
	ContainerID string
	Environment string // "sandbox", "production"
	ReturnURL   string
	Stripe      StripeConfig
	Paddle      PaddleConfig
}

type StripeConfig struct {
	PublicKey      string
	SecretKey      string
	WebhookSecret  string
	IntentEndpoint string
}

type PaddleConfig struct {
	VendorID      string
	APIKey        string
	WebhookSecret string
}

type TelegramConfig struct {
	Token        string
	ReportChatID int64
}

type ReconcileConfig struct {
	Spec        string
	ExpireAfter time.Duration
}

// Load reads configuration from .env file and environment variables.
func Load() (*Config, error) {
	// Load .env file (ignore error if missing)
	_ = godotenv.Load()

	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("APP_PORT", 8080)
	viper.SetDefault("APP_ENV", "production")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "3306")
	viper.SetDefault("DB_CHARSET", "utf8mb4")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("PAYMENT_GATEWAY", "stripe-checkout")
	viper.SetDefault("PAYMENT_CONTAINER_ID", "payment-container")
	viper.SetDefault("PAYMENT_ENVIRONMENT", "sandbox")
	viper.SetDefault("STRIPE_INTENT_ENDPOINT", "/api")
	viper.SetDefault("RECONCILE_SPEC", "0 */5 * * * *")
	viper.SetDefault("RECONCILE_EXPIRE_AFTER", "24h")

	expireAfter, err := time.ParseDuration(viper.GetString("RECONCILE_EXPIRE_AFTER"))
	if err != nil {
		expireAfter = 24 * time.Hour
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetInt("APP_PORT"),
			Env:  viper.GetString("APP_ENV"),
		},
		Database: DatabaseConfig{
			Host:    viper.GetString("DB_HOST"),
			Port:    viper.GetString("DB_PORT"),
			Name:    viper.GetString("DB_NAME"),
			User:    viper.GetString("DB_USER"),
			Pass:    viper.GetString("DB_PASS"),
			Charset: viper.GetString("DB_CHARSET"),
		},
		Redis: RedisConfig{
			Addr: viper.GetString("REDIS_ADDR"),
			Pass: viper.GetString("REDIS_PASS"),
			DB:   viper.GetInt("REDIS_DB"),
		},
		API: APIConfig{
			Key: viper.GetString("API_KEY"),
		},
		Payment: PaymentConfig{
			Gateway:     viper.GetString("PAYMENT_GATEWAY"),
			ContainerID: viper.GetString("PAYMENT_CONTAINER_ID"),
			Environment: viper.GetString("PAYMENT_ENVIRONMENT"),
			ReturnURL:   viper.GetString("PAYMENT_RETURN_URL"),
			Stripe: StripeConfig{
				PublicKey:      viper.GetString("STRIPE_PUBLIC_KEY"),
				SecretKey:      viper.GetString("STRIPE_SECRET_KEY"),
				WebhookSecret:  viper.GetString("STRIPE_WEBHOOK_SECRET"),
				IntentEndpoint: viper.GetString("STRIPE_INTENT_ENDPOINT"),
			},
			Paddle: PaddleConfig{
				VendorID:      viper.GetString("PADDLE_VENDOR_ID"),
				APIKey:        viper.GetString("PADDLE_API_KEY"),
				WebhookSecret: viper.GetString("PADDLE_WEBHOOK_SECRET"),
			},
		},
		Telegram: TelegramConfig{
			Token:        viper.GetString("TELEGRAM_BOT_TOKEN"),
			ReportChatID: viper.GetInt64("TELEGRAM_REPORT_CHAT_ID"),
		},
		Reconcile: ReconcileConfig{
			Spec:        viper.GetString("RECONCILE_SPEC"),
			ExpireAfter: expireAfter,
		},
	}

	if cfg.Database.Name == "" {
		log.Println("WARNING: DB_NAME is not set, payment records are disabled")
	}
	if cfg.API.Key == "" {
		log.Println("WARNING: API_KEY is not set")
	}

	return cfg, nil
}

// DSN returns the MySQL DSN string for GORM.
func (d *DatabaseConfig) DSN() string {
	return d.User + ":" + d.Pass + "@tcp(" + d.Host + ":" + d.Port + ")/" + d.Name + "?charset=" + d.Charset + "&parseTime=True&loc=Local"
}
