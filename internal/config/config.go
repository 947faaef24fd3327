package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	StoreBackend      string        `env:"STORE_BACKEND,default=postgres"`
	DBHost            string        `env:"DB_HOST"`
	DBPort            int           `env:"DB_PORT,default=5432"`
	DBUser            string        `env:"DB_USER"`
	DBPassword        string        `env:"DB_PASSWORD"`
	DBName            string        `env:"DB_NAME"`
	DBSSLMode         string        `env:"DB_SSLMODE,default=disable"`
	DBMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS,default=10"`
	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS,default=25"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME,default=30m"`

	HTTPAddr            string        `env:"HTTP_ADDR,default=:8080"`
	HTTPReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT,default=15s"`
	HTTPWriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT,default=30s"`
	HTTPShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT,default=10s"`
	HTTPRequestTimeout  time.Duration `env:"HTTP_REQUEST_TIMEOUT,default=25s"`

	AlertCheckInterval       time.Duration `env:"ALERT_CHECK_INTERVAL,default=5m"`
	NotificationInterval     time.Duration `env:"NOTIFICATION_INTERVAL,default=2m"`
	SchedulerWarmup          time.Duration `env:"SCHEDULER_WARMUP,default=5s"`
	CleanupInterval          time.Duration `env:"CLEANUP_INTERVAL,default=24h"`
	AlertRetentionDays       int           `env:"ALERT_RETENTION_DAYS,default=30"`
	AlertRefreshCurrentPrice bool          `env:"ALERT_REFRESH_CURRENT_PRICE,default=true"`
	SchedulerStopTimeout     time.Duration `env:"SCHEDULER_STOP_TIMEOUT,default=30s"`

	NotifySendTimeout   time.Duration `env:"NOTIFY_SEND_TIMEOUT,default=15s"`
	NotifyRatePerSecond float64       `env:"NOTIFY_RATE_PER_SECOND,default=5"`
	NotifyBurst         int           `env:"NOTIFY_BURST,default=5"`
	FrontendURL         string        `env:"FRONTEND_URL,default=http://localhost:3000"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT,default=587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM"`

	TelegramBotToken       string        `env:"TELEGRAM_BOT_TOKEN"`
	TelegramPollTimeout    int           `env:"TELEGRAM_POLL_TIMEOUT,default=60"`
	TelegramRequestTimeout time.Duration `env:"TELEGRAM_REQUEST_TIMEOUT,default=75s"`
	TelegramSendTimeout    time.Duration `env:"TELEGRAM_SEND_TIMEOUT,default=10s"`

	CatalogBaseURL         string        `env:"CATALOG_BASE_URL,default=https://fakestoreapi.com"`
	CatalogTimeout         time.Duration `env:"CATALOG_TIMEOUT,default=10s"`
	CatalogFeedURL         string        `env:"CATALOG_FEED_URL"`
	CatalogFeedReadTimeout time.Duration `env:"CATALOG_FEED_READ_TIMEOUT,default=0s"`
	CatalogDefaultQuantity int           `env:"CATALOG_DEFAULT_QUANTITY,default=25"`

	LogLevel string `env:"LOG_LEVEL,default=info"`
}

func Load(ctx context.Context) (Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, err
	}
	if cfg.TelegramSendTimeout <= 0 || cfg.TelegramSendTimeout >= cfg.NotifySendTimeout {
		return Config{}, fmt.Errorf(
			"TELEGRAM_SEND_TIMEOUT (%s) must be positive and shorter than NOTIFY_SEND_TIMEOUT (%s)",
			cfg.TelegramSendTimeout, cfg.NotifySendTimeout,
		)
	}
	return cfg, nil
}

func (c Config) EmailEnabled() bool {
	return c.SMTPHost != ""
}

func (c Config) TelegramEnabled() bool {
	return c.TelegramBotToken != ""
}

func (c Config) UseMemoryStore() bool {
	return c.StoreBackend == "memory"
}
