// Package config loads gateway configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ProtocolConfig holds the per-protocol keys the core decoders consume.
type ProtocolConfig struct {
	// TCPPort is the port this protocol's TCP listener binds, following
	// §6's "TCP server per protocol on a configured port". Empty disables
	// the TCP listener for this protocol.
	TCPPort string
	// Alternative is loaded from the environment but is not read anywhere
	// else: the frame decoder picks 0xE7 framing from the first byte it
	// sees, and the encoder reads the session's "protocol.alternative"
	// attribute.
	Alternative bool
	// Timezone is loaded from the environment but is not read anywhere
	// else: a session without a "timezone" attribute uses "GMT+08:00"
	// whatever this value is.
	Timezone string
	// IgnoreFixTime, when set, tells the decoder to substitute serverTime
	// for a device-reported fix time it does not trust.
	IgnoreFixTime bool
}

// Config is the root configuration consumed by the gateway core.
type Config struct {
	UDPPort    string
	HTTPPort   string
	DatabaseDSN string

	// IdleTimeout closes a connection (and expires its session) after this
	// much time with no inbound data.
	IdleTimeout time.Duration

	// AdminToken authenticates the HTTP command-delivery endpoint.
	AdminToken string

	Protocols map[string]ProtocolConfig
}

// Load builds a Config from environment variables (and an optional .env
// file already loaded by the caller via godotenv), falling back to
// reasonable defaults for local development.
func Load() *Config {
	cfg := &Config{
		UDPPort:     getEnv("UDP_PORT", "5001"),
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		DatabaseDSN: getDSN(),
		IdleTimeout: getDuration("IDLE_TIMEOUT_SECONDS", 5*time.Minute),
		AdminToken:  getEnv("ADMIN_TOKEN", ""),
		Protocols:   make(map[string]ProtocolConfig),
	}

	cfg.Protocols["huabao"] = ProtocolConfig{
		TCPPort:       getEnv("PROTOCOL_HUABAO_TCP_PORT", "5000"),
		Alternative:   getBool("PROTOCOL_HUABAO_ALTERNATIVE", false),
		Timezone:      getEnv("PROTOCOL_HUABAO_TIMEZONE", "GMT+08:00"),
		IgnoreFixTime: getBool("PROTOCOL_HUABAO_IGNORE_FIX_TIME", false),
	}
	cfg.Protocols["tr900"] = ProtocolConfig{
		TCPPort:  getEnv("PROTOCOL_TR900_TCP_PORT", "5002"),
		Timezone: getEnv("PROTOCOL_TR900_TIMEZONE", "UTC"),
	}
	cfg.Protocols["manpower"] = ProtocolConfig{
		TCPPort:  getEnv("PROTOCOL_MANPOWER_TCP_PORT", "5003"),
		Timezone: getEnv("PROTOCOL_MANPOWER_TIMEZONE", "UTC"),
	}
	cfg.Protocols["owntracks"] = ProtocolConfig{
		Timezone: getEnv("PROTOCOL_OWNTRACKS_TIMEZONE", "UTC"),
	}

	return cfg
}

func getDSN() string {
	host := getEnv("DB_HOST", "localhost")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "gateway")
	password := getEnv("DB_PASSWORD", "gateway")
	name := getEnv("DB_NAME", "gateway")
	sslMode := getEnv("DB_SSL_MODE", "disable")
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, name, sslMode)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	seconds, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}
