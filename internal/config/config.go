// Package config loads prunner's own operating configuration: default
// batch-backend binary names, log level, and monitor bind address.
package config

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config is prunner's process-level configuration, layered defaults <
// optional YAML file < environment (PRUNNER_*) < CLI flags.
type Config struct {
	LogLevel     string `mapstructure:"log_level"`
	MonitorAddr  string `mapstructure:"monitor_addr"`

	CondorSubmit string `mapstructure:"condor_submit"`
	CondorQuery  string `mapstructure:"condor_query"`
	CondorWait   string `mapstructure:"condor_wait"`
	CondorRemove string `mapstructure:"condor_remove"`
	CondorStatus string `mapstructure:"condor_status"`
}

// Load reads defaults, PRUNNER_-prefixed environment variables, and an
// optional YAML file from the conventional search path.
func Load() (*Config, error) {
	viper.SetDefault("log_level", "info")
	viper.SetDefault("monitor_addr", "")
	viper.SetDefault("condor_submit", "condor_submit")
	viper.SetDefault("condor_query", "condor_q")
	viper.SetDefault("condor_wait", "condor_wait")
	viper.SetDefault("condor_remove", "condor_rm")
	viper.SetDefault("condor_status", "condor_status")

	viper.SetEnvPrefix("PRUNNER")
	viper.AutomaticEnv()

	viper.SetConfigName("prunner")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/prunner/")
	viper.AddConfigPath("$HOME/.prunner/")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}

	return &cfg, nil
}

// GetLogLevel returns the parsed log level, defaulting to Info on a
// parse failure that Load should already have rejected.
func (c *Config) GetLogLevel() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}
