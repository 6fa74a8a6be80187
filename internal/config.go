package internal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Output          string        `mapstructure:"output"`
	Format          string        `mapstructure:"format"`
	Workers         int           `mapstructure:"workers"`
	ExifTool        bool          `mapstructure:"exiftool"`
	RemoveEmptyDirs bool          `mapstructure:"remove_empty_dirs"`
	Session         bool          `mapstructure:"session"`
	SessionLinks    bool          `mapstructure:"session_links"`
	LogFile         string        `mapstructure:"log_file"`
	LogLevel        string        `mapstructure:"log_level"`
	MediaTypes      []string      `mapstructure:"media_types"`
	SettleDelay     time.Duration `mapstructure:"settle_delay"`
}

// DefaultMediaTypes are the content types organised when the config does
// not list its own.
var DefaultMediaTypes = []string{
	"image/jpeg",
	"image/png",
	"image/heic",
	"image/heif",
	"image/tiff",
	"video/mp4",
	"video/x-msvideo",
	"video/quicktime",
}

// LoadConfig reads mediaorganiser.toml from the user config dir, or path
// when it is set, then applies MEDIAORGANISER_* environment variables.
// A missing default config file is not an error.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		configDir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to find user config dir: %w", err)
		}
		v.SetConfigName("mediaorganiser")
		v.SetConfigType("toml")
		v.AddConfigPath(filepath.Join(configDir, "mediaorganiser"))
	}

	v.SetEnvPrefix("MEDIAORGANISER")
	v.AutomaticEnv()

	// Set defaults:
	v.SetDefault("output", "")
	v.SetDefault("format", string(FormatYearMonthDay))
	v.SetDefault("workers", runtime.NumCPU())
	v.SetDefault("exiftool", false)
	v.SetDefault("remove_empty_dirs", true)
	v.SetDefault("session", true)
	v.SetDefault("session_links", false)
	v.SetDefault("log_file", "mediaorganiser.log")
	v.SetDefault("log_level", "info")
	v.SetDefault("media_types", DefaultMediaTypes)
	v.SetDefault("settle_delay", 2*time.Second)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the values a run depends on and fills in the worker count.
func (c *Config) Validate() error {
	if _, err := ParsePathFormat(c.Format); err != nil {
		return err
	}
	if c.Workers < 1 {
		c.Workers = runtime.NumCPU()
	}
	if len(c.MediaTypes) == 0 {
		return fmt.Errorf("no media types configured")
	}
	return nil
}

// PathFormat returns the configured destination template.
func (c *Config) PathFormat() (PathFormat, error) {
	return ParsePathFormat(c.Format)
}
