package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCard(t *testing.T) {
	rec := &Record{AgentID: 3, Domain: "proposer.test"}

	card, err := NewCard(rec, "Rebalancer", "ZK portfolio rebalancing", "1.0.0",
		[]string{"inference-validation", "zero-knowledge"},
		Skill{SkillID: "zk-rebalancing", Name: "ZK Portfolio Rebalancing"},
	)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), card.AgentID)
	assert.Equal(t, "proposer.test", card.Domain)
	assert.Len(t, card.Skills, 1)
}

func TestNewCard_RejectsBadVersion(t *testing.T) {
	rec := &Record{AgentID: 3}
	for _, v := range []string{"1.0", "v1", "latest", ""} {
		_, err := NewCard(rec, "x", "y", v, nil)
		assert.Error(t, err, v)
	}
}
