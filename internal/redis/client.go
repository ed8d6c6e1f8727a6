package redis

import (
	"net"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config describes the broker endpoint and the session policy.
type Config struct {
	Host     string
	Port     string
	Password string
	DB       int

	// AutoReconnect lets an established session be re-established after a drop.
	// The initial connect is never retried.
	AutoReconnect bool

	HandshakeTimeout        time.Duration
	ReconnectInitialBackoff time.Duration
	ReconnectMaxBackoff     time.Duration
	HealthCheckInterval     time.Duration
}

const (
	DefaultHandshakeTimeout        = 5 * time.Second
	DefaultReconnectInitialBackoff = 100 * time.Millisecond
	DefaultReconnectMaxBackoff     = 10 * time.Second
	DefaultHealthCheckInterval     = 15 * time.Second
)

// Addr returns the host:port endpoint.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c Config) withDefaults() Config {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == "" {
		c.Port = "6379"
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.ReconnectInitialBackoff <= 0 {
		c.ReconnectInitialBackoff = DefaultReconnectInitialBackoff
	}
	if c.ReconnectMaxBackoff < c.ReconnectInitialBackoff {
		c.ReconnectMaxBackoff = DefaultReconnectMaxBackoff
		if c.ReconnectMaxBackoff < c.ReconnectInitialBackoff {
			c.ReconnectMaxBackoff = c.ReconnectInitialBackoff
		}
	}
	if c.HealthCheckInterval <= 0 {
		c.HealthCheckInterval = DefaultHealthCheckInterval
	}
	return c
}

// NewClient creates a go-redis client for one session. Retries are disabled:
// the Manager owns the reconnect policy and a publish during an outage must
// fail fast.
func NewClient(cfg Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.HandshakeTimeout,
		ReadTimeout:  cfg.HandshakeTimeout,
		WriteTimeout: cfg.HandshakeTimeout,
		MaxRetries:   -1,
		// RESP2 keeps pub/sub replies as plain arrays on every server version.
		Protocol: 2,
	})
}
