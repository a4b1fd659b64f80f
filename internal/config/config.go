// Package config provides configuration loading and management for the application.
package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/trove-labs/auction-view/internal/types"
)

// Config holds all application configuration
type Config struct {
	// HTTP server port
	Port string

	// Path to the YAML deployment manifest; empty selects the built-in one
	ManifestPath string

	// RPC endpoint per network
	Chains map[types.ChainID]types.ChainConfig

	// Network the session starts on before any wallet event arrives
	DefaultChainID types.ChainID

	// Refresh cadence standing in for new-block notifications
	PollInterval time.Duration

	// Transport policy, owned by the contract-call collaborator
	RPCTimeout              time.Duration
	RPCRateLimitRPS         float64
	RPCRateLimitBurst       int
	RPCRetryMax             int
	BreakerFailureThreshold int
	BreakerSuccessThreshold int
	BreakerCooldown         time.Duration

	// BCP 47 tag used for amount grouping
	DisplayLocale string

	// OpenTelemetry endpoint for observability
	OtelEndpoint string

	EnableMetrics bool
}

var defaultEndpoints = map[types.ChainID]string{
	types.ChainBaseSepolia: "https://sepolia.base.org",
	types.ChainAnvil:       "http://127.0.0.1:8545",
}

// Load creates a new Config from environment variables, reading .env first if present
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.Warnf("Failed to load .env: %v", err)
	}

	return Config{
		Port:                    GetEnvOrDefault("PORT", "8080"),
		ManifestPath:            GetEnvOrDefault("DEPLOYMENT_MANIFEST", ""),
		Chains:                  parseEndpoints(os.Getenv("RPC_ENDPOINTS")),
		DefaultChainID:          types.ChainID(GetEnvAsInt("DEFAULT_CHAIN_ID", int(types.ChainBaseSepolia))),
		PollInterval:            GetEnvAsDuration("POLL_INTERVAL", 12*time.Second),
		RPCTimeout:              GetEnvAsDuration("RPC_TIMEOUT", 10*time.Second),
		RPCRateLimitRPS:         GetEnvAsFloat("RPC_RATE_LIMIT_RPS", 20),
		RPCRateLimitBurst:       GetEnvAsInt("RPC_RATE_LIMIT_BURST", 40),
		RPCRetryMax:             GetEnvAsInt("RPC_RETRY_MAX", 3),
		BreakerFailureThreshold: GetEnvAsInt("BREAKER_FAILURE_THRESHOLD", 5),
		BreakerSuccessThreshold: GetEnvAsInt("BREAKER_SUCCESS_THRESHOLD", 1),
		BreakerCooldown:         GetEnvAsDuration("BREAKER_COOLDOWN", 30*time.Second),
		DisplayLocale:           strings.TrimSpace(GetEnvOrDefault("DISPLAY_LOCALE", "en")),
		OtelEndpoint:            GetEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		EnableMetrics:           GetEnvAsBool("ENABLE_METRICS", true),
	}
}

// parseEndpoints reads a JSON object of chain id to RPC URL, falling back to the defaults
// for any network it does not mention
func parseEndpoints(raw string) map[types.ChainID]types.ChainConfig {
	urls := map[string]string{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &urls); err != nil {
			logrus.Warnf("Invalid RPC_ENDPOINTS, using defaults: %v", err)
			urls = map[string]string{}
		}
	}

	chains := make(map[types.ChainID]types.ChainConfig, len(defaultEndpoints)+len(urls))
	for id, url := range defaultEndpoints {
		chains[id] = types.ChainConfig{ChainID: id, RPCEndpoint: url, Enabled: true}
	}
	for key, url := range urls {
		id, err := strconv.ParseUint(key, 10, 64)
		if err != nil {
			logrus.Warnf("Ignoring RPC endpoint for invalid chain id %q", key)
			continue
		}
		chains[types.ChainID(id)] = types.ChainConfig{ChainID: types.ChainID(id), RPCEndpoint: url, Enabled: url != ""}
	}
	return chains
}

// GetEnv retrieves an environment variable and whether it exists
func GetEnv(key string) (string, bool) {
	value, exists := os.LookupEnv(key)
	return value, exists
}

// GetEnvOrDefault retrieves an environment variable or returns the default value if not set
func GetEnvOrDefault(key, defaultValue string) string {
	if value, exists := GetEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvAsInt retrieves an environment variable as an integer with a default value
func GetEnvAsInt(key string, defaultValue int) int {
	if value, exists := GetEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		logrus.Warnf("Invalid integer in %s, using default: %d", key, defaultValue)
	}
	return defaultValue
}

// GetEnvAsFloat retrieves an environment variable as a float with a default value
func GetEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := GetEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
		logrus.Warnf("Invalid float in %s, using default: %v", key, defaultValue)
	}
	return defaultValue
}

// GetEnvAsDuration retrieves an environment variable as a duration with a default value
func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := GetEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		logrus.Warnf("Invalid duration in %s, using default: %v", key, defaultValue)
	}
	return defaultValue
}

// GetEnvAsBool retrieves an environment variable as a boolean with a default value
func GetEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := GetEnv(key); exists {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
		logrus.Warnf("Invalid boolean in %s, using default: %v", key, defaultValue)
	}
	return defaultValue
}
