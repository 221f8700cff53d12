// Package config loads daemon-level configuration: where the data
// document and logs live, and how verbose logging is. The persisted
// user settings (polling interval, start at login) are part of the
// AppData document, not of this configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds daemon configuration. PollingOverrideSeconds, when
// positive, replaces the persisted polling interval for this run —
// both the scheduler cadence and the seconds credited per cycle.
type Config struct {
	DataFile               string `mapstructure:"data_file"`
	LogFile                string `mapstructure:"log_file"`
	LogLevel               string `mapstructure:"log_level"`
	PollingOverrideSeconds int    `mapstructure:"polling_override_seconds"`
}

// Load reads configuration from an optional YAML file and the
// environment (APPQUOTA_* variables). An empty path uses the default
// location under the user config directory; a missing file is fine.
func Load(path string) (*Config, error) {
	v := viper.New()

	configDir, _ := os.UserConfigDir()
	appDir := filepath.Join(configDir, "appquota")

	v.SetDefault("data_file", filepath.Join(appDir, "appdata.json"))
	v.SetDefault("log_file", filepath.Join(appDir, "appquota.log"))
	v.SetDefault("log_level", "info")
	v.SetDefault("polling_override_seconds", 0)

	v.SetEnvPrefix("APPQUOTA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(appDir)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
