package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/viper"
)

// DefaultResourceType is the unit mesh type relocated in patch files
const DefaultResourceType = "e0a48d0be9a7453f"

type Config struct {
	DataRoot     string `mapstructure:"data_root"`
	PatchDir     string `mapstructure:"patch_dir"`
	OutputDir    string `mapstructure:"output_dir"`
	Database     string `mapstructure:"database"`
	Workers      int    `mapstructure:"workers"`
	CacheSize    int    `mapstructure:"cache_size"`
	ResourceType string `mapstructure:"resource_type"`
	Listen       string `mapstructure:"listen"`
	LogLevel     string `mapstructure:"log_level"`
	LogFormat    string `mapstructure:"log_format"`
}

// Load initializes and loads configuration from file
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("output_dir", "reconstructed")
	v.SetDefault("database", "slimdivers.db")
	v.SetDefault("workers", runtime.NumCPU())
	v.SetDefault("cache_size", 256)
	v.SetDefault("resource_type", DefaultResourceType)
	v.SetDefault("listen", "127.0.0.1:8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	v.SetEnvPrefix("slimdivers")
	v.AutomaticEnv()

	// Config file handling
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}

		v.AddConfigPath(home)
		v.AddConfigPath(".")
		v.SetConfigName("slimdivers")
		v.SetConfigType("yaml")
	}

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}
