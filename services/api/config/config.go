package config

import "github.com/spf13/viper"

// Config holds typed configuration for the api service.
type Config struct {
	LogLevel         string
	HTTPPort         string
	MetricsAddr      string
	PostgresDSN      string
	ResumeCatchUpMax int
	OTelEndpoint     string
}

// Load reads all values from the given viper instance.
func Load(v *viper.Viper) Config {
	return Config{
		LogLevel:         v.GetString("log_level"),
		HTTPPort:         v.GetString("http_port"),
		MetricsAddr:      v.GetString("metrics_addr"),
		PostgresDSN:      v.GetString("postgres_dsn"),
		ResumeCatchUpMax: v.GetInt("resume_catchup_max"),
		OTelEndpoint:     v.GetString("otel_endpoint"),
	}
}
