package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	AppPort string `env:"APP_PORT" envDefault:"8000"`
	AppEnv  string `env:"APP_ENV" envDefault:"development"`

	DatabaseDSN string `env:"DATABASE_DSN"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	JWTSecret string `env:"JWT_SECRET"`

	MediaDir string `env:"MEDIA_DIR" envDefault:"media"`

	AdminUsername string `env:"ADMIN_USERNAME" envDefault:"admin"`
	AdminPassword string `env:"ADMIN_PASSWORD" envDefault:"admin"`
}

func Load() (Config, error) {

	// A missing .env is fine; real deployments use process env.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
