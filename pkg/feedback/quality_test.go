package feedback

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triad-labs/triad/pkg/prover"
	"github.com/triad-labs/triad/pkg/rebalance"
)

func diversifiedPackage(t *testing.T) *prover.ProofPackage {
	t.Helper()
	plan, err := rebalance.BuildPlan(&rebalance.Request{
		OldBalances:      []string{"100", "50", "20", "1000"},
		NewBalances:      []string{"50", "50", "30", "1000"},
		Prices:           []string{"10", "20", "50", "1"},
		MinAllocationPct: "10",
		MaxAllocationPct: "40",
	}, 3, "proposer.test", 1700000000)
	require.NoError(t, err)

	pkg, err := prover.GeneratePackage(context.Background(), prover.NewStaticToolkit(), plan)
	require.NoError(t, err)
	return pkg
}

func TestEvaluateQuality(t *testing.T) {
	t.Run("complete diversified package", func(t *testing.T) {
		assert.Equal(t, 100, EvaluateQuality(diversifiedPackage(t)))
	})

	t.Run("diversity credit", func(t *testing.T) {
		// Drop the signals credit so the cap does not mask the
		// diversity bonus.
		diversified := diversifiedPackage(t)
		diversified.PublicSignals = nil
		assert.Equal(t, 100, EvaluateQuality(diversified))

		concentrated := diversifiedPackage(t)
		concentrated.PublicSignals = nil
		concentrated.Plan.NewAllocations[0].AllocationPct = 80
		assert.Equal(t, 90, EvaluateQuality(concentrated))
	})

	t.Run("missing plan", func(t *testing.T) {
		pkg := diversifiedPackage(t)
		pkg.Plan = nil
		assert.Equal(t, 75, EvaluateQuality(pkg))
	})

	t.Run("missing proof and signals", func(t *testing.T) {
		pkg := diversifiedPackage(t)
		pkg.Proof = nil
		pkg.PublicSignals = nil
		assert.Equal(t, 85, EvaluateQuality(pkg))
	})

	t.Run("nil package", func(t *testing.T) {
		assert.Equal(t, 0, EvaluateQuality(nil))
	})
}

func TestHistory_Reputation(t *testing.T) {
	var h History
	h.Add(Entry{ServerID: 3, Score: 90, Timestamp: time.Now()})
	h.Add(Entry{ServerID: 3, Score: 80, Timestamp: time.Now()})
	h.Add(Entry{ServerID: 9, Score: 10, Timestamp: time.Now()})

	rep := h.Reputation(3)
	assert.Equal(t, 2, rep.FeedbackCount)
	assert.InDelta(t, 85.0, rep.AverageScore, 0.001)
	require.NotNil(t, rep.LastFeedback)
	assert.Equal(t, uint8(80), rep.LastFeedback.Score)
}

func TestHistory_Unknown(t *testing.T) {
	var h History
	rep := h.Reputation(42)
	assert.Zero(t, rep.FeedbackCount)
	assert.Zero(t, rep.AverageScore)
	assert.Nil(t, rep.LastFeedback)
}
