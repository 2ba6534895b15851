package chain

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
)

// Deployment holds the deployed registry contract addresses.
type Deployment struct {
	IdentityRegistry   common.Address
	ValidationRegistry common.Address
	ReputationRegistry common.Address
}

// deploymentFile mirrors the deploy tooling's deployed_contracts.json.
type deploymentFile struct {
	Contracts struct {
		IdentityRegistry   string `json:"IdentityRegistry"`
		ValidationRegistry string `json:"ValidationRegistry"`
		ReputationRegistry string `json:"ReputationRegistry"`
	} `json:"contracts"`
}

// LoadDeployment reads registry addresses from a deployment file.
func LoadDeployment(path string) (*Deployment, error) {
	raw, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("deployment file not found (deploy contracts first): %w", err)
	}

	var f deploymentFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("invalid deployment file: %w", err)
	}

	d := &Deployment{}
	for _, entry := range []struct {
		name string
		hex  string
		dst  *common.Address
	}{
		{"IdentityRegistry", f.Contracts.IdentityRegistry, &d.IdentityRegistry},
		{"ValidationRegistry", f.Contracts.ValidationRegistry, &d.ValidationRegistry},
		{"ReputationRegistry", f.Contracts.ReputationRegistry, &d.ReputationRegistry},
	} {
		if !common.IsHexAddress(entry.hex) {
			return nil, fmt.Errorf("deployment file missing %s address", entry.name)
		}
		*entry.dst = common.HexToAddress(entry.hex)
	}
	return d, nil
}
