// Package config handles bake configuration loading and management.
package config

import (
	"github.com/Faultbox/midgard-vat/internal/bake"
	"github.com/Faultbox/midgard-vat/internal/export"
	"github.com/Faultbox/midgard-vat/internal/source"
	"github.com/Faultbox/midgard-vat/pkg/vat"
)

// Config holds all bake settings.
type Config struct {
	Source  source.Config    `yaml:"source" toml:"source"`
	Window  vat.SampleWindow `yaml:"window" toml:"window"`
	Bake    BakeConfig       `yaml:"bake" toml:"bake"`
	Export  export.Options   `yaml:"export" toml:"export"`
	Logging LoggingConfig    `yaml:"logging" toml:"logging"`
}

// BakeConfig holds encoder and layout settings.
type BakeConfig struct {
	FromWorldSpace bool `yaml:"from_world_space" toml:"from_world_space"`
	Unlit          bool `yaml:"unlit" toml:"unlit"`
	CompressNormal bool `yaml:"compress_normal" toml:"compress_normal"`
	Workers        int  `yaml:"workers" toml:"workers"` // 0 uses GOMAXPROCS
	MaxTextureSize int  `yaml:"max_texture_size" toml:"max_texture_size"`
	Padding        int  `yaml:"padding" toml:"padding"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level" toml:"level"`
	LogFile    string `yaml:"log_file" toml:"log_file"`
	MaxSizeMB  int    `yaml:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" toml:"max_age_days"`
	Compress   bool   `yaml:"compress" toml:"compress"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Window: vat.SampleWindow{
			SampleRate: vat.DefaultSampleRate,
		},
		Bake: BakeConfig{
			MaxTextureSize: vat.DefaultMaxTextureSize,
			Padding:        vat.DefaultPadding,
		},
		Export: export.Options{
			Dir:       ".",
			WriteGLTF: true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 7,
			Compress:   true,
		},
	}
}

// Options returns the encoder options.
func (b BakeConfig) Options() vat.Options {
	return vat.Options{
		FromWorldSpace: b.FromWorldSpace,
		Unlit:          b.Unlit,
		CompressNormal: b.CompressNormal,
		Workers:        b.Workers,
	}
}

// Settings returns the source-independent bake settings.
func (c *Config) Settings() bake.Settings {
	return bake.Settings{
		Window:         c.Window,
		Options:        c.Bake.Options(),
		MaxTextureSize: c.Bake.MaxTextureSize,
		Padding:        c.Bake.Padding,
		Export:         c.Export,
	}
}
