package env

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// ConfigFileName is the optional settings file under the gpk home directory.
const ConfigFileName = "config.toml"

// Config holds the on-disk settings resolved by loadConfig. Viper merges
// the config file with GPK_* environment variables; go-toml writes the
// default file on first Ensure.
type Config struct {
	Global   string `toml:"global" mapstructure:"global"`
	LogLevel string `toml:"log_level" mapstructure:"log_level"`
}

// loadConfig resolves settings with precedence: environment variables
// (GPK_GLOBAL, GPK_LOG) > <home>/config.toml > defaults.
func loadConfig(home string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")

	v.SetDefault("global", filepath.Join(home, "global"))
	v.SetDefault("log_level", "info")

	v.SetConfigFile(filepath.Join(home, ConfigFileName))
	// Missing config file is fine; defaults and env apply.
	_ = v.ReadInConfig()

	v.SetEnvPrefix("gpk")
	_ = v.BindEnv("global")
	_ = v.BindEnv("log_level", "GPK_LOG")
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

// writeDefaultConfig persists a default config.toml under home if none
// exists, so users have a file to edit.
func writeDefaultConfig(home string) error {
	path := filepath.Join(home, ConfigFileName)
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	cfg := &Config{
		Global:   filepath.Join(home, "global"),
		LogLevel: "info",
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
