package prover

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triad-labs/triad/pkg/canonicalize"
	"github.com/triad-labs/triad/pkg/rebalance"
)

func testPlan(t *testing.T) *rebalance.Plan {
	t.Helper()
	plan, err := rebalance.BuildPlan(&rebalance.Request{
		OldBalances:      []string{"100", "50", "20", "1000"},
		NewBalances:      []string{"50", "50", "30", "1000"},
		Prices:           []string{"10", "20", "50", "1"},
		MinAllocationPct: "10",
		MaxAllocationPct: "40",
	}, 3, "proposer.test", 1700000000)
	require.NoError(t, err)
	return plan
}

func TestInputFromPlan(t *testing.T) {
	plan := testPlan(t)
	input := InputFromPlan(plan)

	assert.Equal(t, plan.OldBalances, input.OldBalances)
	assert.Equal(t, plan.NewTotalValue, input.TotalValueCommitment)
	assert.Equal(t, "10", input.MinAllocationPct)
}

func TestGeneratePackage(t *testing.T) {
	plan := testPlan(t)
	pkg, err := GeneratePackage(context.Background(), NewStaticToolkit(), plan)
	require.NoError(t, err)

	assert.Equal(t, ProofSystemGroth16, pkg.Metadata.ProofSystem)
	assert.Equal(t, CurveBN128, pkg.Metadata.Curve)
	assert.Equal(t, CircuitRebalancing, pkg.Metadata.Circuit)
	assert.Equal(t, plan.AgentID, pkg.Metadata.AgentID)
	assert.NotEmpty(t, pkg.PublicSignals)
	assert.Same(t, plan, pkg.Plan)
}

func TestGeneratePackage_ProveError(t *testing.T) {
	tk := NewStaticToolkit()
	tk.ProveErr = errors.New("witness calculation failed")

	_, err := GeneratePackage(context.Background(), tk, testPlan(t))
	assert.Error(t, err)
}

func TestProofPackage_DigestStable(t *testing.T) {
	plan := testPlan(t)
	pkg1, err := GeneratePackage(context.Background(), NewStaticToolkit(), plan)
	require.NoError(t, err)
	pkg2, err := GeneratePackage(context.Background(), NewStaticToolkit(), plan)
	require.NoError(t, err)

	d1, err := canonicalize.Hash(pkg1)
	require.NoError(t, err)
	d2, err := canonicalize.Hash(pkg2)
	require.NoError(t, err)
	assert.Equal(t, d1, d2, "identical packages must share one digest")
}

func TestSnarkJS_UnavailableBinary(t *testing.T) {
	s := NewSnarkJS(t.TempDir(), WithBinary("/nonexistent/snarkjs"))

	_, _, err := s.Prove(context.Background(), CircuitInput{})
	assert.ErrorIs(t, err, ErrToolkitUnavailable)

	_, err = s.Verify(context.Background(), WellFormedProof(), []string{"1"})
	assert.ErrorIs(t, err, ErrToolkitUnavailable)
}
