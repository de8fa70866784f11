package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

type envConfig struct {
	Port             string `env:"PORT" env-default:"8080"`
	Environment      string `env:"ENVIRONMENT" env-default:"development"`
	DatabaseURL      string `env:"DATABASE_URL" env-default:""`
	StorageURL       string `env:"STORAGE_URL" env-default:"file://./data/media"`
	ReconcileOnStart bool   `env:"RECONCILE_ON_START" env-default:"false"`
	FFprobePath      string `env:"FFPROBE_PATH" env-default:"ffprobe"`
	FFmpegPath       string `env:"FFMPEG_PATH" env-default:"ffmpeg"`
	PdftoppmPath     string `env:"PDFTOPPM_PATH" env-default:"pdftoppm"`
}

// WithEnv reads configuration from the process environment.
func WithEnv() Option {
	return func(c *ServerConfig) error {
		var env envConfig
		if err := cleanenv.ReadEnv(&env); err != nil {
			return fmt.Errorf("read environment: %w", err)
		}
		c.Port = env.Port
		c.Environment = env.Environment
		c.DatabaseURL = env.DatabaseURL
		c.StorageURL = env.StorageURL
		c.ReconcileOnStart = env.ReconcileOnStart
		c.FFprobePath = env.FFprobePath
		c.FFmpegPath = env.FFmpegPath
		c.PdftoppmPath = env.PdftoppmPath
		return nil
	}
}
