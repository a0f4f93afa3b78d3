package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{
		MaxWatchersPerFriend: DefaultMaxWatchersPerFriend,
		MetricsEnabled:       DefaultMetricsEnabled,
	}
	applyDefaults(cfg)
	return cfg
}

// configWithMetricsDefault is used for proper default handling of metricsEnabled
type configWithMetricsDefault struct {
	Config            `yaml:",inline"`
	MetricsEnabledPtr *bool `json:"metricsEnabled" yaml:"metricsEnabled"`
}

// Load reads and parses the configuration file. Files ending in .yaml or
// .yml are parsed as YAML, everything else as JSON.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return Parse(data)
	}
}

// Parse parses configuration JSON, applies defaults and validates the result
func Parse(data []byte) (*Config, error) {
	// First unmarshal to check if metricsEnabled was explicitly set
	var rawCfg configWithMetricsDefault
	if err := json.Unmarshal(data, &rawCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return finish(&rawCfg)
}

// ParseYAML is Parse for YAML documents
func ParseYAML(data []byte) (*Config, error) {
	var rawCfg configWithMetricsDefault
	if err := yaml.Unmarshal(data, &rawCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return finish(&rawCfg)
}

func finish(rawCfg *configWithMetricsDefault) (*Config, error) {
	cfg := &rawCfg.Config
	if rawCfg.MetricsEnabledPtr != nil {
		cfg.MetricsEnabled = *rawCfg.MetricsEnabledPtr
	} else {
		cfg.MetricsEnabled = DefaultMetricsEnabled
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyDefaults sets default values for unset fields
func applyDefaults(cfg *Config) {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.StatusCacheSize == 0 {
		cfg.StatusCacheSize = DefaultStatusCacheSize
	}
	if cfg.MaxSessions == 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	if cfg.SendBufferSize == 0 {
		cfg.SendBufferSize = DefaultSendBufferSize
	}
	if cfg.ReconnectInitialInterval == 0 {
		cfg.ReconnectInitialInterval = DefaultReconnectInitialInterval
	}
	if cfg.ReconnectMaxInterval == 0 {
		cfg.ReconnectMaxInterval = DefaultReconnectMaxInterval
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
}

// validate checks the configuration for errors
func validate(cfg *Config) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("logLevel must be one of: debug, info, warn, error")
	}

	if cfg.StatusCacheSize < 0 {
		return fmt.Errorf("statusCacheSize must be non-negative")
	}

	if cfg.MaxWatchersPerFriend < 0 {
		return fmt.Errorf("maxWatchersPerFriend must be non-negative")
	}

	if cfg.MaxSessions < 0 {
		return fmt.Errorf("maxSessions must be non-negative")
	}

	if cfg.SendBufferSize < 0 {
		return fmt.Errorf("sendBufferSize must be non-negative")
	}

	if cfg.ReconnectInitialInterval < 0 || cfg.ReconnectMaxInterval < 0 {
		return fmt.Errorf("reconnect intervals must be non-negative")
	}

	if cfg.ReconnectInitialInterval > cfg.ReconnectMaxInterval {
		return fmt.Errorf("reconnectInitialInterval must not exceed reconnectMaxInterval")
	}

	if cfg.ShutdownTimeout < 0 {
		return fmt.Errorf("shutdownTimeout must be non-negative")
	}

	return nil
}
