package validator

import (
	"encoding/json"
	"strconv"

	"github.com/triad-labs/triad/pkg/prover"
)

// structureChecker scores the shape of one proof system's proof body.
type structureChecker func(proof map[string]interface{}, publicSignals []string) int

// structureCheckers is keyed by the package's declared proof system.
// Unknown systems score zero.
var structureCheckers = map[string]structureChecker{
	prover.ProofSystemGroth16: groth16Structure,
}

// structureScore checks the proof body's shape: 0 unparseable or missing
// components, 50 wrong protocol/curve or absent public signals, 60
// malformed proof points, 100 well-formed.
func (v *Validator) structureScore(pkg *prover.ProofPackage) int {
	check, ok := structureCheckers[pkg.Metadata.ProofSystem]
	if !ok {
		v.log.Warn("unknown proof system", "system", pkg.Metadata.ProofSystem)
		return 0
	}

	var proof map[string]interface{}
	if err := json.Unmarshal(pkg.Proof, &proof); err != nil {
		return 0
	}
	return check(proof, pkg.PublicSignals)
}

func groth16Structure(proof map[string]interface{}, publicSignals []string) int {
	for _, key := range []string{"pi_a", "pi_b", "pi_c", "protocol", "curve"} {
		if _, ok := proof[key]; !ok {
			return 0
		}
	}

	if proof["protocol"] != prover.ProofSystemGroth16 || proof["curve"] != prover.CurveBN128 {
		return 50
	}
	if len(publicSignals) == 0 {
		return 50
	}

	for _, key := range []string{"pi_a", "pi_b", "pi_c"} {
		point, ok := proof[key].([]interface{})
		if !ok || len(point) != 3 {
			return 60
		}
	}
	return 100
}

// parsePct parses an allocation bound, using def for an absent value.
func parsePct(s string, def int64) (int64, bool) {
	if s == "" {
		return def, true
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}
