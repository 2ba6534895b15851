package feedback

import (
	"github.com/triad-labs/triad/pkg/prover"
)

// EvaluateQuality scores a delivered rebalancing service from the
// client's perspective, 0-100. A heuristic, not a proof check: it rewards
// completeness of the package and portfolio diversification.
func EvaluateQuality(pkg *prover.ProofPackage) int {
	if pkg == nil {
		return 0
	}

	score := 50

	if len(pkg.Proof) > 0 {
		score += 15
	}
	if len(pkg.PublicSignals) > 0 {
		score += 10
	}
	if pkg.Plan != nil {
		score += 15
	}

	if pkg.Plan != nil && len(pkg.Plan.NewAllocations) > 0 {
		score += 10

		maxAlloc := 0.0
		for _, a := range pkg.Plan.NewAllocations {
			if a.AllocationPct > maxAlloc {
				maxAlloc = a.AllocationPct
			}
		}
		// No single asset dominating half the portfolio.
		if maxAlloc < 50 {
			score += 10
		}
	}

	if score > 100 {
		score = 100
	}
	return score
}
