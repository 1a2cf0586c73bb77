package api

import (
	"context"

	"github.com/sethvargo/go-envconfig"
)

// EnvConfig is the process configuration for the API service.
type EnvConfig struct {
	Addr  string `env:"ADDR,default=:8080"`
	DBDSN string `env:"DATABASE_URL,required"`

	RedisAddr     string `env:"REDIS_ADDR,default=localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB,default=0"`

	NATSURL string `env:"NATS_URL"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT,default=587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM"`

	OTLPEndpoint string `env:"OTLP_ENDPOINT"`
	Debug        bool   `env:"DEBUG,default=false"`
}

// LoadEnv reads configuration from the environment.
func LoadEnv(ctx context.Context) (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}
