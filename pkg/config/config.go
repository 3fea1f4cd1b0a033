// Package config loads manifest tooling settings from .manifest.yaml,
// MANIFEST_* environment variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables read by Init.
const EnvPrefix = "MANIFEST"

// WatchConfig controls live reloading of manifest documents.
type WatchConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Debounce time.Duration `mapstructure:"debounce"`
}

// CatalogConfig controls the SQLite snapshot of the registry.
type CatalogConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Config holds the settings for loading, watching and cataloging manifests.
// Values are populated from .manifest.yaml and MANIFEST_* env vars.
type Config struct {
	Dir             string        `mapstructure:"dir"`
	Patterns        []string      `mapstructure:"patterns"`
	Recursive       bool          `mapstructure:"recursive"`
	Workers         int           `mapstructure:"workers"`
	Format          string        `mapstructure:"format"`
	LogLevel        string        `mapstructure:"log_level"`
	EventsPath      string        `mapstructure:"events_path"`
	StrictChangelog bool          `mapstructure:"strict_changelog"`
	Watch           WatchConfig   `mapstructure:"watch"`
	Catalog         CatalogConfig `mapstructure:"catalog"`
}

// DefaultPatterns match manifest documents in every supported format.
var DefaultPatterns = []string{"*.manifest.toml", "*.manifest.yaml", "*.manifest.yml"}

// Init points viper at the config file. An empty cfgFile searches for
// .manifest.yaml in the working directory and the home directory. A
// missing config file is not an error.
func Init(cfgFile string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".manifest")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("config: reading %s: %w", viper.ConfigFileUsed(), err)
	}
	return nil
}

// Load reads configuration from viper, applying built-in defaults for any
// values not set by config file or environment.
func Load() (Config, error) {
	viper.SetDefault("dir", ".")
	viper.SetDefault("patterns", DefaultPatterns)
	viper.SetDefault("recursive", true)
	viper.SetDefault("workers", 8)
	viper.SetDefault("format", "toml")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("events_path", "")
	viper.SetDefault("strict_changelog", false)
	viper.SetDefault("watch.enabled", false)
	viper.SetDefault("watch.debounce", 100*time.Millisecond)
	viper.SetDefault("catalog.enabled", false)
	viper.SetDefault("catalog.path", ".manifest/catalog.db")

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings no component can run with.
func (c Config) Validate() error {
	switch {
	case c.Dir == "":
		return errors.New("config: dir is empty")
	case len(c.Patterns) == 0:
		return errors.New("config: no manifest file patterns")
	case c.Workers < 1:
		return fmt.Errorf("config: workers must be at least 1, got %d", c.Workers)
	case c.Watch.Debounce < 0:
		return fmt.Errorf("config: negative watch debounce %s", c.Watch.Debounce)
	case c.Catalog.Enabled && c.Catalog.Path == "":
		return errors.New("config: catalog enabled without a path")
	}
	return nil
}
