package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// RunProfile is an optional YAML file bundling per-run workflow
// parameters, so an operator can keep one file per scenario instead of
// juggling environment variables.
type RunProfile struct {
	Domains struct {
		Proposer  string `yaml:"proposer"`
		Validator string `yaml:"validator"`
		Client    string `yaml:"client"`
	} `yaml:"domains"`

	InputPath      string `yaml:"input_path"`
	DeploymentPath string `yaml:"deployment_path"`
	StatePath      string `yaml:"state_path"`

	Feedback struct {
		IndexLimit uint64 `yaml:"index_limit"`
		TTLSeconds int64  `yaml:"ttl_seconds"`
	} `yaml:"feedback"`
}

// LoadProfile reads a run profile and overlays it on the config.
// Empty profile fields leave the config untouched.
func LoadProfile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return fmt.Errorf("read run profile: %w", err)
	}

	var p RunProfile
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("parse run profile %s: %w", path, err)
	}

	overlay(&cfg.ProposerDomain, p.Domains.Proposer)
	overlay(&cfg.ValidatorDomain, p.Domains.Validator)
	overlay(&cfg.ClientDomain, p.Domains.Client)
	overlay(&cfg.InputPath, p.InputPath)
	overlay(&cfg.DeploymentPath, p.DeploymentPath)
	overlay(&cfg.StatePath, p.StatePath)

	if p.Feedback.IndexLimit > 0 {
		cfg.FeedbackIndexLimit = p.Feedback.IndexLimit
	}
	if p.Feedback.TTLSeconds > 0 {
		cfg.FeedbackTTL = time.Duration(p.Feedback.TTLSeconds) * time.Second
	}
	return nil
}

func overlay(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
