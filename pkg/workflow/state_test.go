package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triad-labs/triad/pkg/canonicalize"
)

func TestState_ApplyMergesRoleMaps(t *testing.T) {
	s := State{}

	s = s.Apply(Delta{
		AgentIDs:  map[Role]uint64{RoleProposer: 3},
		Addresses: map[Role]string{RoleProposer: "0x1000000000000000000000000000000000000001"},
	})
	s = s.Apply(Delta{
		AgentIDs:  map[Role]uint64{RoleValidator: 5},
		Addresses: map[Role]string{RoleValidator: "0x2000000000000000000000000000000000000002"},
	})

	assert.Equal(t, 2, s.Version)
	assert.Equal(t, uint64(3), s.AgentIDs[RoleProposer], "earlier registration must survive the merge")
	assert.Equal(t, uint64(5), s.AgentIDs[RoleValidator])

	addr, ok := s.AddressOf(RoleProposer)
	require.True(t, ok)
	assert.Equal(t, "0x1000000000000000000000000000000000000001", addr.Hex())
}

func TestState_ApplyLeavesOriginalUntouched(t *testing.T) {
	original := State{Version: 1, AgentIDs: map[Role]uint64{RoleProposer: 3}}

	digest := canonicalize.HashBytes([]byte("artifact"))
	next := original.Apply(Delta{
		AgentIDs:   map[Role]uint64{RoleClient: 7},
		DataDigest: &digest,
	})

	assert.Equal(t, 1, original.Version)
	assert.True(t, original.DataDigest.IsZero())
	_, ok := original.AgentIDs[RoleClient]
	assert.False(t, ok)

	assert.Equal(t, 2, next.Version)
	assert.Equal(t, digest, next.DataDigest)
}

func TestState_ApplyNilFieldsAreNoops(t *testing.T) {
	digest := canonicalize.HashBytes([]byte("artifact"))
	s := State{DataDigest: digest, FeedbackScore: 90}

	next := s.Apply(Delta{})
	assert.Equal(t, digest, next.DataDigest)
	assert.Equal(t, 90, next.FeedbackScore)
	assert.Equal(t, 1, next.Version)
}

func TestState_AddressOf(t *testing.T) {
	s := State{Addresses: map[Role]string{
		RoleProposer: "0x1000000000000000000000000000000000000001",
		RoleClient:   "not-an-address",
	}}

	_, ok := s.AddressOf(RoleProposer)
	assert.True(t, ok)
	_, ok = s.AddressOf(RoleValidator)
	assert.False(t, ok)
	_, ok = s.AddressOf(RoleClient)
	assert.False(t, ok, "garbage address must not gate a step open")
}

func TestStepIDs_CanonicalOrder(t *testing.T) {
	assert.Equal(t, []string{
		StepRegisterAgents,
		StepLoadInput,
		StepGenerateProof,
		StepSubmitForValidation,
		StepValidateProof,
		StepSubmitValidation,
		StepAuthorizeFeedback,
		StepSubmitFeedback,
		StepCheckReputation,
	}, StepIDs())
}
