package identity

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Skill describes one capability on an agent card, A2A style.
type Skill struct {
	SkillID      string                 `json:"skillId"`
	Name         string                 `json:"name"`
	Description  string                 `json:"description"`
	InputSchema  map[string]interface{} `json:"inputSchema,omitempty"`
	OutputSchema map[string]interface{} `json:"outputSchema,omitempty"`
}

// Card is the discovery document an agent hosts under its domain.
type Card struct {
	AgentID     uint64   `json:"agentId"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Version     string   `json:"version"`
	Domain      string   `json:"domain"`
	TrustModels []string `json:"trustModels"`
	Skills      []Skill  `json:"skills"`
}

// NewCard assembles an agent card for a registered record. The version
// must be valid semver.
func NewCard(rec *Record, name, description, version string, trustModels []string, skills ...Skill) (*Card, error) {
	if _, err := semver.StrictNewVersion(version); err != nil {
		return nil, fmt.Errorf("invalid card version %q: %w", version, err)
	}
	return &Card{
		AgentID:     rec.AgentID,
		Name:        name,
		Description: description,
		Version:     version,
		Domain:      rec.Domain,
		TrustModels: trustModels,
		Skills:      skills,
	}, nil
}
