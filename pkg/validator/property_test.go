//go:build property
// +build property

package validator

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// The scoring functions only emit these tier values.
var (
	structureTiers = []int{0, 50, 60, 100}
	cryptoTiers    = []int{0, 50, 100}
	logicTiers     = []int{0, 30, 50, 70, 100}
)

// TestOverallScoreMonotonicity verifies that raising any one sub-score to
// a higher tier, with the other two held fixed, strictly raises the
// overall score.
func TestOverallScoreMonotonicity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("structure raises overall", prop.ForAll(
		func(a, b, c, l int) bool {
			if a == b {
				return true
			}
			if a > b {
				a, b = b, a
			}
			before := NewReport(structureTiers[a], cryptoTiers[c], logicTiers[l])
			after := NewReport(structureTiers[b], cryptoTiers[c], logicTiers[l])
			return after.OverallScore > before.OverallScore
		},
		gen.IntRange(0, len(structureTiers)-1),
		gen.IntRange(0, len(structureTiers)-1),
		gen.IntRange(0, len(cryptoTiers)-1),
		gen.IntRange(0, len(logicTiers)-1),
	))

	properties.Property("crypto raises overall", prop.ForAll(
		func(a, b, s, l int) bool {
			if a == b {
				return true
			}
			if a > b {
				a, b = b, a
			}
			before := NewReport(structureTiers[s], cryptoTiers[a], logicTiers[l])
			after := NewReport(structureTiers[s], cryptoTiers[b], logicTiers[l])
			return after.OverallScore > before.OverallScore
		},
		gen.IntRange(0, len(cryptoTiers)-1),
		gen.IntRange(0, len(cryptoTiers)-1),
		gen.IntRange(0, len(structureTiers)-1),
		gen.IntRange(0, len(logicTiers)-1),
	))

	properties.Property("logic raises overall", prop.ForAll(
		func(a, b, s, c int) bool {
			if a == b {
				return true
			}
			if a > b {
				a, b = b, a
			}
			before := NewReport(structureTiers[s], cryptoTiers[c], logicTiers[a])
			after := NewReport(structureTiers[s], cryptoTiers[c], logicTiers[b])
			return after.OverallScore > before.OverallScore
		},
		gen.IntRange(0, len(logicTiers)-1),
		gen.IntRange(0, len(logicTiers)-1),
		gen.IntRange(0, len(structureTiers)-1),
		gen.IntRange(0, len(cryptoTiers)-1),
	))

	properties.TestingRun(t)
}
