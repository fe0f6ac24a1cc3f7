// Package config layers baito settings: built-in defaults, then the TOML
// file, then .env, then BAITO_* environment variables, then flags the user
// set explicitly.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/baito-events/baitokit/internal/envutil"
)

const (
	DefaultFile    = "baito.toml"
	DefaultDotEnv  = ".env"
	EnvPrefix      = "BAITO_"
	TokenHashKey   = EnvPrefix + "API_TOKEN_HASH"
	defaultWorkers = 4
)

// Config holds every tunable.
type Config struct {
	LogLevel string `toml:"log_level" env:"LOG_LEVEL"`
	Workers  int    `toml:"workers" env:"WORKERS"`
	Registry string `toml:"registry" env:"REGISTRY"`

	API      APIConfig      `toml:"api" envPrefix:"API_"`
	Render   RenderConfig   `toml:"render" envPrefix:"RENDER_"`
	Pack     PackConfig     `toml:"pack" envPrefix:"PACK_"`
	UXReview UXReviewConfig `toml:"uxreview" envPrefix:"UXREVIEW_"`
}

type APIConfig struct {
	Addr      string `toml:"addr" env:"ADDR"`
	TokenHash string `toml:"token_hash" env:"TOKEN_HASH"`
	// MaxUploadMB caps multipart uploads.
	MaxUploadMB int `toml:"max_upload_mb" env:"MAX_UPLOAD_MB"`
}

type RenderConfig struct {
	CellWidth  int     `toml:"cell_width" env:"CELL_WIDTH"`
	CellHeight int     `toml:"cell_height" env:"CELL_HEIGHT"`
	MaxWidth   int     `toml:"max_width" env:"MAX_WIDTH"`
	MaxHeight  int     `toml:"max_height" env:"MAX_HEIGHT"`
	Scale      float64 `toml:"scale" env:"SCALE"`
}

type PackConfig struct {
	Excludes []string `toml:"excludes" env:"EXCLUDES"`
}

type UXReviewConfig struct {
	Headless       bool   `toml:"headless" env:"HEADLESS"`
	Chrome         string `toml:"chrome" env:"CHROME"`
	TimeoutSeconds int    `toml:"timeout_seconds" env:"TIMEOUT_SECONDS"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		LogLevel: "info",
		Workers:  defaultWorkers,
		Registry: "baito.db",
		API: APIConfig{
			Addr:        ":8080",
			MaxUploadMB: 32,
		},
		Render: RenderConfig{
			CellWidth:  100,
			CellHeight: 25,
			MaxWidth:   3000,
			MaxHeight:  5000,
		},
		UXReview: UXReviewConfig{
			Headless:       true,
			TimeoutSeconds: 30,
		},
	}
}

// Sources names where Load reads from. Empty File means DefaultFile, which
// may be absent; an explicit File must exist.
type Sources struct {
	File   string
	DotEnv string
}

// Load builds a Config from defaults, the TOML file, .env and the
// environment. Flags are applied separately with ApplyFlags.
func Load(src Sources) (Config, error) {
	cfg := Default()

	path, required := src.File, true
	if path == "" {
		path, required = DefaultFile, false
	}
	if err := loadFile(&cfg, path, required); err != nil {
		return cfg, err
	}

	dotenv := src.DotEnv
	if dotenv == "" {
		dotenv = DefaultDotEnv
	}
	if err := envutil.LoadDotEnv(dotenv); err != nil {
		return cfg, fmt.Errorf("load %s: %w", dotenv, err)
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

func loadFile(cfg *Config, path string, required bool) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("load config: %w", err)
	}
	dec := toml.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// ApplyFlags copies the flags the user set on fs into cfg. Flags left at
// their defaults never override file or environment values.
func (c *Config) ApplyFlags(fs *pflag.FlagSet) error {
	var err error
	fs.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case "log-level":
			c.LogLevel = f.Value.String()
		case "workers":
			c.Workers, err = fs.GetInt(f.Name)
		case "registry":
			c.Registry = f.Value.String()
		case "addr":
			c.API.Addr = f.Value.String()
		case "headless":
			c.UXReview.Headless, err = fs.GetBool(f.Name)
		case "scale":
			c.Render.Scale, err = fs.GetFloat64(f.Name)
		case "exclude":
			var extra []string
			extra, err = fs.GetStringSlice(f.Name)
			c.Pack.Excludes = append(c.Pack.Excludes, extra...)
		}
	})
	if err != nil {
		return err
	}
	return c.Validate()
}

// Validate rejects values no command can run with.
func (c *Config) Validate() error {
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return fmt.Errorf("log level %q: %w", c.LogLevel, err)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	if c.Render.Scale < 0 {
		return fmt.Errorf("render scale must not be negative")
	}
	if c.UXReview.TimeoutSeconds <= 0 {
		return fmt.Errorf("uxreview timeout must be positive")
	}
	return nil
}

// UXReviewTimeout is the per-action browser timeout.
func (c Config) UXReviewTimeout() time.Duration {
	return time.Duration(c.UXReview.TimeoutSeconds) * time.Second
}

// MaxUploadBytes is the API upload cap in bytes.
func (c Config) MaxUploadBytes() int64 {
	if c.API.MaxUploadMB <= 0 {
		return 32 << 20
	}
	return int64(c.API.MaxUploadMB) << 20
}
