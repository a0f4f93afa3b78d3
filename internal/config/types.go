package config

import (
	"net"
	"strconv"
	"time"
)

// Config represents the main configuration structure
type Config struct {
	Host                     string `json:"host" yaml:"host"`
	Port                     int    `json:"port" yaml:"port"`
	LogLevel                 string `json:"logLevel" yaml:"logLevel"`
	StatusCacheSize          int    `json:"statusCacheSize" yaml:"statusCacheSize"`
	MaxWatchersPerFriend     int    `json:"maxWatchersPerFriend" yaml:"maxWatchersPerFriend"` // 0 means unlimited
	MaxSessions              int    `json:"maxSessions" yaml:"maxSessions"`
	SendBufferSize           int    `json:"sendBufferSize" yaml:"sendBufferSize"`
	ReconnectInitialInterval int    `json:"reconnectInitialInterval" yaml:"reconnectInitialInterval"` // ms
	ReconnectMaxInterval     int    `json:"reconnectMaxInterval" yaml:"reconnectMaxInterval"`         // ms
	ShutdownTimeout          int    `json:"shutdownTimeout" yaml:"shutdownTimeout"`                   // ms
	MetricsEnabled           bool   `json:"metricsEnabled" yaml:"-"`
}

// Default values
const (
	DefaultHost                     = "localhost"
	DefaultPort                     = 8547
	DefaultLogLevel                 = "info"
	DefaultStatusCacheSize          = 10000
	DefaultMaxWatchersPerFriend     = 0
	DefaultMaxSessions              = 1000
	DefaultSendBufferSize           = 256
	DefaultReconnectInitialInterval = 500   // ms
	DefaultReconnectMaxInterval     = 30000 // ms
	DefaultShutdownTimeout          = 30000 // ms
	DefaultMetricsEnabled           = true
)

// Addr returns host:port
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// GetReconnectInitialIntervalDuration returns the first reconnect delay as time.Duration
func (c *Config) GetReconnectInitialIntervalDuration() time.Duration {
	return time.Duration(c.ReconnectInitialInterval) * time.Millisecond
}

// GetReconnectMaxIntervalDuration returns the reconnect delay cap as time.Duration
func (c *Config) GetReconnectMaxIntervalDuration() time.Duration {
	return time.Duration(c.ReconnectMaxInterval) * time.Millisecond
}

// GetShutdownTimeoutDuration returns shutdown timeout as time.Duration
func (c *Config) GetShutdownTimeoutDuration() time.Duration {
	return time.Duration(c.ShutdownTimeout) * time.Millisecond
}
