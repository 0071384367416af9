package gateway

import (
	"fmt"

	"VortexStore/pkg/kit"
)

const minSecretLen = 32

type Config struct {
	kit.Common

	Port       string `env:"PORT" envDefault:"8080"`
	AuthURL    string `env:"AUTH_URL" envDefault:"http://auth:8081"`
	CatalogURL string `env:"CATALOG_URL" envDefault:"http://catalog:8082"`
	CartURL    string `env:"CART_URL" envDefault:"http://cart:8083"`

	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:5173" envSeparator:","`
}

// LoadConfig rejects JWT secrets shorter than minSecretLen.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := kit.LoadConfig(&cfg); err != nil {
		return Config{}, err
	}
	if len(cfg.JWTSecret) < minSecretLen {
		return Config{}, fmt.Errorf("JWT_SECRET must be at least %d chars", minSecretLen)
	}
	return cfg, nil
}

func (c Config) Deps() Deps {
	return Deps{
		AuthURL:        c.AuthURL,
		CatalogURL:     c.CatalogURL,
		CartURL:        c.CartURL,
		JWTSecret:      c.JWTSecret,
		AllowedOrigins: c.AllowedOrigins,
	}
}
