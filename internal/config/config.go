// Package config reads CLI defaults from the environment. Every value can
// still be overridden per invocation with command flags.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds environment-driven defaults, prefixed INSTAGRAPI_.
type Config struct {
	DownloadDir         string        `envconfig:"DOWNLOAD_DIR" default:"."`
	RequestTimeout      time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	Debug               bool          `envconfig:"DEBUG" default:"false"`
	ConfigureAttempts   uint64        `envconfig:"CONFIGURE_ATTEMPTS" default:"10"`
	ConfigureInterval   time.Duration `envconfig:"CONFIGURE_INTERVAL" default:"3s"`
	DownloadConcurrency int           `envconfig:"DOWNLOAD_CONCURRENCY" default:"4"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("instagrapi", &cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment config: %w", err)
	}
	return &cfg, nil
}
