package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triad-labs/triad/pkg/config"
)

// Invariant: the process must boot with safe defaults against a local
// devnet when no environment is set.
func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"RPC_URL", "LOG_LEVEL", "DEPLOYMENT_PATH", "INPUT_PATH",
		"PROPOSER_DOMAIN", "FEEDBACK_INDEX_LIMIT", "FEEDBACK_TTL_SECONDS",
	} {
		t.Setenv(key, "")
	}

	cfg := config.Load()

	assert.Equal(t, "http://127.0.0.1:8545", cfg.RPCURL)
	assert.Equal(t, "deployed_contracts.json", cfg.DeploymentPath)
	assert.Equal(t, "proposer.local", cfg.ProposerDomain)
	assert.Equal(t, uint64(3), cfg.FeedbackIndexLimit)
	assert.Equal(t, time.Hour, cfg.FeedbackTTL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("RPC_URL", "http://devnet:8545")
	t.Setenv("PROPOSER_DOMAIN", "rebalancer.example.org")
	t.Setenv("FEEDBACK_INDEX_LIMIT", "10")
	t.Setenv("FEEDBACK_TTL_SECONDS", "120")

	cfg := config.Load()

	assert.Equal(t, "http://devnet:8545", cfg.RPCURL)
	assert.Equal(t, "rebalancer.example.org", cfg.ProposerDomain)
	assert.Equal(t, uint64(10), cfg.FeedbackIndexLimit)
	assert.Equal(t, 2*time.Minute, cfg.FeedbackTTL)
}

func TestLoad_BadNumbersFallBack(t *testing.T) {
	t.Setenv("FEEDBACK_INDEX_LIMIT", "many")
	t.Setenv("FEEDBACK_TTL_SECONDS", "-5")

	cfg := config.Load()
	assert.Equal(t, uint64(3), cfg.FeedbackIndexLimit)
	assert.Equal(t, time.Hour, cfg.FeedbackTTL)
}

func TestLoadProfile_Overlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	content := `
domains:
  proposer: rebalancer.example.org
input_path: scenarios/balanced.yaml
feedback:
  index_limit: 5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	for _, key := range []string{"PROPOSER_DOMAIN", "VALIDATOR_DOMAIN", "INPUT_PATH"} {
		t.Setenv(key, "")
	}
	cfg := config.Load()
	require.NoError(t, config.LoadProfile(path, cfg))

	assert.Equal(t, "rebalancer.example.org", cfg.ProposerDomain)
	assert.Equal(t, "scenarios/balanced.yaml", cfg.InputPath)
	assert.Equal(t, uint64(5), cfg.FeedbackIndexLimit)
	// Untouched fields keep their defaults.
	assert.Equal(t, "validator.local", cfg.ValidatorDomain)
}

func TestLoadProfile_MissingFile(t *testing.T) {
	cfg := config.Load()
	assert.Error(t, config.LoadProfile(filepath.Join(t.TempDir(), "nope.yaml"), cfg))
}
