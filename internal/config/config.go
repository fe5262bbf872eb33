package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const (
	// MetareportConfigPathEnvVar points at an alternate config file.
	MetareportConfigPathEnvVar = "METAREPORT_CONFIG_PATH"
)

// Config holds all configuration for the tool.
type Config struct {
	// Debug enables verbose logging
	Debug bool `mapstructure:"debug"`

	// Directories are the host directory conventions
	Directories struct {
		// Input is the root for operator supplied input files
		Input string `mapstructure:"input"`
		// Output is the root for generated images, scanned recursively
		Output string `mapstructure:"output"`
	} `mapstructure:"directories"`

	Loader struct {
		// ExcludedFormats are container formats that cannot carry a
		// multi-frame batch
		ExcludedFormats []string `mapstructure:"excluded_formats"`
	} `mapstructure:"loader"`
}

// Load initializes and returns the configuration from all sources:
// 1. Environment variables (prefixed with METAREPORT_)
// 2. Configuration file (lowest priority)
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		if envPath := os.Getenv(MetareportConfigPathEnvVar); envPath != "" {
			if _, err := os.Stat(envPath); os.IsNotExist(err) {
				return nil, fmt.Errorf("config file specified in %s not found: %s", MetareportConfigPathEnvVar, envPath)
			}
			configPath = envPath
		}
	} else {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
	}
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("METAREPORT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		} else if configPath != "" {
			return nil, fmt.Errorf("specified config file not found: %s", configPath)
		}
		// no config file, defaults apply
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("directories.input", "input")
	v.SetDefault("directories.output", "output")
	v.SetDefault("loader.excluded_formats", []string{"mpo"})
}
