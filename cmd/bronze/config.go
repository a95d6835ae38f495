package main

import (
	"time"

	"github.com/tinytelemetry/bronze/internal/model"
)

const (
	defaultTimeout      = model.DefaultFetchTimeout
	defaultSource       = model.DefaultSource
	defaultFormat       = formatNDJSON
	defaultBindHost     = "127.0.0.1"
	defaultAPIPort      = 3000
	defaultMaxBodyBytes = 32 << 20
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	URL          string        `mapstructure:"url"`
	Source       string        `mapstructure:"source"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Format       string        `mapstructure:"format"`
	Output       string        `mapstructure:"output"`
	Serve        bool          `mapstructure:"serve"`
	APIPort      int           `mapstructure:"api-port"`
	APIAddr      string        `mapstructure:"api-addr"`
	MaxBodyBytes int64         `mapstructure:"max-body-bytes"`
	LogFile      string        `mapstructure:"log-file"`
	ConfigPath   string        `mapstructure:"-"` // not from config file
}
