package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds typed configuration for the detector service.
type Config struct {
	LogLevel       string
	KafkaBrokers   string
	RedisAddr      string
	PostgresDSN    string
	ScanSchedule   string
	DueSoonHorizon time.Duration
	BatchSize      int
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
		ScanSchedule:   v.GetString("scan_schedule"),
		DueSoonHorizon: v.GetDuration("due_soon_horizon"),
		BatchSize:      v.GetInt("batch_size"),
		MetricsAddr:    v.GetString("metrics_addr"),
		OTelEndpoint:   v.GetString("otel_endpoint"),
	}
}
