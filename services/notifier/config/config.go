package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds typed configuration for the notifier service.
type Config struct {
	LogLevel       string
	KafkaBrokers   string
	RedisAddr      string
	PostgresDSN    string
	MaxRetries     int
	DueSoonHorizon time.Duration
	NotifyLimit    int
	NotifyWindow   time.Duration
	SMTPHost       string
	SMTPPort       int
	SMTPFrom       string
	SMTPUsername   string
	SMTPPassword   string
	EmailDomain    string
	WebhookURL     string
	MetricsAddr    string
	OTelEndpoint   string
}

// Load reads all values from the given viper instance.
func Load(v *viper.Viper) Config {
	return Config{
		LogLevel:       v.GetString("log_level"),
		KafkaBrokers:   v.GetString("kafka_brokers"),
		RedisAddr:      v.GetString("redis_addr"),
		PostgresDSN:    v.GetString("postgres_dsn"),
		MaxRetries:     v.GetInt("max_retries"),
		DueSoonHorizon: v.GetDuration("due_soon_horizon"),
		NotifyLimit:    v.GetInt("notify_limit"),
		NotifyWindow:   v.GetDuration("notify_window"),
		SMTPHost:       v.GetString("smtp_host"),
		SMTPPort:       v.GetInt("smtp_port"),
		SMTPFrom:       v.GetString("smtp_from"),
		SMTPUsername:   v.GetString("smtp_username"),
		SMTPPassword:   v.GetString("smtp_password"),
		EmailDomain:    v.GetString("email_domain"),
		WebhookURL:     v.GetString("webhook_url"),
		MetricsAddr:    v.GetString("metrics_addr"),
		OTelEndpoint:   v.GetString("otel_endpoint"),
	}
}
