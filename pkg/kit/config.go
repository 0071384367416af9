package kit

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// LoadConfig seeds the environment from an optional .env file and parses it
// into cfg, which must be a pointer to a struct with env tags. Variables that
// are already set win over the file.
func LoadConfig(cfg any) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// Common holds the settings every service reads.
type Common struct {
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	MetricsEnabled bool   `env:"METRICS_ENABLED" envDefault:"true"`
	MetricsToken   string `env:"METRICS_TOKEN"`
	JWTSecret      string `env:"JWT_SECRET" envDefault:"dev-secret"`
}
