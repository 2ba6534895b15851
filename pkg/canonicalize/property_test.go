//go:build property
// +build property

package canonicalize_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/triad-labs/triad/pkg/canonicalize"
)

// TestDigestDeterminism verifies that hashing is a pure function of content.
func TestDigestDeterminism(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("digest is deterministic", prop.ForAll(
		func(keys []string, values []string) bool {
			obj := make(map[string]interface{})
			for i := 0; i < len(keys) && i < len(values); i++ {
				if keys[i] != "" {
					obj[keys[i]] = values[i]
				}
			}

			d1, err1 := canonicalize.Hash(obj)
			d2, err2 := canonicalize.Hash(obj)
			if err1 != nil || err2 != nil {
				return err1 != nil && err2 != nil
			}
			return d1 == d2
		},
		gen.SliceOf(gen.AlphaString()),
		gen.SliceOf(gen.AnyString()),
	))

	properties.TestingRun(t)
}
