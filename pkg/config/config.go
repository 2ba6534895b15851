// Package config assembles runtime configuration from environment
// variables, with an optional YAML run profile for per-run workflow
// parameters.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds process-wide configuration.
type Config struct {
	RPCURL         string
	LogLevel       string
	DeploymentPath string

	// Per-role signing keys, hex encoded.
	ProposerKey  string
	ValidatorKey string
	ClientKey    string

	// Per-role agent domains.
	ProposerDomain  string
	ValidatorDomain string
	ClientDomain    string

	InputPath      string
	SnarkJSBindir  string
	StatePath      string
	ReceiptTimeout time.Duration

	FeedbackIndexLimit uint64
	FeedbackTTL        time.Duration
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		RPCURL:         envOr("RPC_URL", "http://127.0.0.1:8545"),
		LogLevel:       envOr("LOG_LEVEL", "INFO"),
		DeploymentPath: envOr("DEPLOYMENT_PATH", "deployed_contracts.json"),

		ProposerKey:  os.Getenv("PROPOSER_PRIVATE_KEY"),
		ValidatorKey: os.Getenv("VALIDATOR_PRIVATE_KEY"),
		ClientKey:    os.Getenv("CLIENT_PRIVATE_KEY"),

		ProposerDomain:  envOr("PROPOSER_DOMAIN", "proposer.local"),
		ValidatorDomain: envOr("VALIDATOR_DOMAIN", "validator.local"),
		ClientDomain:    envOr("CLIENT_DOMAIN", "client.local"),

		InputPath:      envOr("INPUT_PATH", "portfolio.json"),
		SnarkJSBindir:  envOr("SNARKJS_BUILD_DIR", "build"),
		StatePath:      envOr("STATE_PATH", "workflow_state.json"),
		ReceiptTimeout: envDuration("RECEIPT_TIMEOUT_SECONDS", 2*time.Minute),

		FeedbackIndexLimit: envUint("FEEDBACK_INDEX_LIMIT", 3),
		FeedbackTTL:        envDuration("FEEDBACK_TTL_SECONDS", time.Hour),
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envUint(key string, def uint64) uint64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	seconds, err := strconv.ParseInt(v, 10, 64)
	if err != nil || seconds <= 0 {
		return def
	}
	return time.Duration(seconds) * time.Second
}
