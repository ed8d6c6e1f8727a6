package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gamebus/internal/redis"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort string
	AppMode string

	JWTSecret    string
	JWTExpiryMin int

	RedisHost                string
	RedisPort                string
	RedisPassword            string
	RedisDB                  int
	RedisAutoReconnect       bool
	RedisChannels            []string
	RedisHandshakeTimeout    time.Duration
	RedisReconnectMin        time.Duration
	RedisReconnectMax        time.Duration
	RedisHealthCheckInterval time.Duration

	DispatchBuffer int
}

func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	return fromEnv()
}

func fromEnv() *Config {
	return &Config{
		AppPort:                  getEnv("APP_PORT", "8080"),
		AppMode:                  getEnv("APP_MODE", "debug"),
		JWTSecret:                getEnv("JWT_SECRET", "change-me"),
		JWTExpiryMin:             getEnvAsInt("JWT_EXPIRY_MIN", 15),
		RedisHost:                getEnv("REDIS_HOST", "localhost"),
		RedisPort:                getEnv("REDIS_PORT", "6379"),
		RedisPassword:            getEnv("REDIS_PASSWORD", ""),
		RedisDB:                  getEnvAsInt("REDIS_DB", 0),
		RedisAutoReconnect:       getEnvAsBool("REDIS_AUTO_RECONNECT", true),
		RedisChannels:            getEnvAsList("REDIS_CHANNELS", nil),
		RedisHandshakeTimeout:    getEnvAsDuration("REDIS_HANDSHAKE_TIMEOUT", redis.DefaultHandshakeTimeout),
		RedisReconnectMin:        getEnvAsDuration("REDIS_RECONNECT_MIN", redis.DefaultReconnectInitialBackoff),
		RedisReconnectMax:        getEnvAsDuration("REDIS_RECONNECT_MAX", redis.DefaultReconnectMaxBackoff),
		RedisHealthCheckInterval: getEnvAsDuration("REDIS_HEALTH_CHECK_INTERVAL", redis.DefaultHealthCheckInterval),
		DispatchBuffer:           getEnvAsInt("DISPATCH_BUFFER", 256),
	}
}

// Redis returns the connection settings for the bus.
func (c *Config) Redis() redis.Config {
	return redis.Config{
		Host:                    c.RedisHost,
		Port:                    c.RedisPort,
		Password:                c.RedisPassword,
		DB:                      c.RedisDB,
		AutoReconnect:           c.RedisAutoReconnect,
		HandshakeTimeout:        c.RedisHandshakeTimeout,
		ReconnectInitialBackoff: c.RedisReconnectMin,
		ReconnectMaxBackoff:     c.RedisReconnectMax,
		HealthCheckInterval:     c.RedisHealthCheckInterval,
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return fallback
}

// getEnvAsList splits a comma separated value, dropping blanks.
func getEnvAsList(key string, fallback []string) []string {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
