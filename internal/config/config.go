// internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"finflow-commitments/pkg/db" // Import db package for its Config struct
)

// AppConfig holds all service-wide configurations.
type AppConfig struct {
	ServerPort string `env:"SERVER_PORT" envDefault:"8080"`
	DB         db.Config

	WalletGatewayURL     string        `env:"WALLET_GATEWAY_URL" envDefault:"http://localhost:8081"`
	WalletGatewayTimeout time.Duration `env:"WALLET_GATEWAY_TIMEOUT" envDefault:"10s"`

	// JWTSecret verifies the HS256 bearer tokens issued by the host application.
	JWTSecret string `env:"JWT_SECRET,required,notEmpty"`

	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat      string `env:"LOG_FORMAT" envDefault:"json"`
	MetricsEnabled bool   `env:"METRICS_ENABLED" envDefault:"true"`
}

// LoadConfig loads configuration from environment variables.
// It returns an AppConfig instance or an error if any required variable is missing or invalid.
func LoadConfig() (*AppConfig, error) {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.WalletGatewayTimeout <= 0 {
		return nil, fmt.Errorf("invalid WALLET_GATEWAY_TIMEOUT: %s", cfg.WalletGatewayTimeout)
	}
	return &cfg, nil
}
