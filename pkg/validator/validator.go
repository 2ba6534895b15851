// Package validator scores proof packages along three independent axes
// and derives the pass verdict. The scoring constants are protocol-fixed;
// changing them changes what counts as a valid rebalancing proof.
package validator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/triad-labs/triad/pkg/artifacts"
	"github.com/triad-labs/triad/pkg/audit"
	"github.com/triad-labs/triad/pkg/canonicalize"
	"github.com/triad-labs/triad/pkg/prover"
	"github.com/triad-labs/triad/pkg/rebalance"
)

// PassThreshold is the minimum overall score for a passing validation.
const PassThreshold = 70

// Scoring weights, in tenths of the overall score: structure 0.2,
// cryptographic 0.5, logic 0.3.
const (
	structureWeight = 2
	cryptoWeight    = 5
	logicWeight     = 3
)

// ErrPackageNotFound is returned by ValidateByDigest when the proof
// package is absent from the artifact store.
var ErrPackageNotFound = errors.New("proof package not found")

// Verifier checks a proof cryptographically. A false verdict with a nil
// error is a rejection; an error means the verifier could not run.
// *prover.SnarkJS and *prover.StaticToolkit satisfy it.
type Verifier interface {
	Verify(ctx context.Context, proof json.RawMessage, publicSignals []string) (bool, error)
}

// Report is the sub-score breakdown. The derived fields (OverallScore,
// ProofValid, MeetsConstraints) are always recomputed from the sub-scores,
// never trusted from input.
type Report struct {
	StructureScore     int  `json:"structure_score"`
	CryptographicScore int  `json:"cryptographic_score"`
	LogicScore         int  `json:"logic_score"`
	OverallScore       int  `json:"overall_score"`
	ProofValid         bool `json:"proof_valid"`
	MeetsConstraints   bool `json:"meets_constraints"`
}

// NewReport derives a complete report from the three sub-scores.
func NewReport(structure, crypto, logic int) Report {
	overall := (structure*structureWeight + crypto*cryptoWeight + logic*logicWeight) / 10
	return Report{
		StructureScore:     structure,
		CryptographicScore: crypto,
		LogicScore:         logic,
		OverallScore:       overall,
		ProofValid:         crypto == 100,
		MeetsConstraints:   logic >= 80,
	}
}

// Result is a completed validation run.
type Result struct {
	IsValid bool    `json:"is_valid"`
	Score   int     `json:"score"`
	Package Package `json:"validation_package"`
}

// Package is the validator's signed-off artifact, stored alongside the
// original proof for later audit.
type Package struct {
	DataHash         string               `json:"data_hash"`
	ValidatorAgentID uint64               `json:"validator_agent_id"`
	ValidatorDomain  string               `json:"validator_domain"`
	Timestamp        uint64               `json:"timestamp"`
	ValidationScore  int                  `json:"validation_score"`
	ValidationReport Report               `json:"validation_report"`
	OriginalProof    *prover.ProofPackage `json:"original_proof"`
}

// Validator scores proof packages for one validator identity.
type Validator struct {
	store    artifacts.Store
	verifier Verifier
	agentID  uint64
	domain   string
	audit    audit.Logger
	log      *slog.Logger
}

// Option customizes a Validator.
type Option func(*Validator)

// WithAudit attaches an audit logger.
func WithAudit(l audit.Logger) Option {
	return func(v *Validator) { v.audit = l }
}

// New builds a Validator bound to an artifact store and a verifier.
func New(store artifacts.Store, verifier Verifier, agentID uint64, domain string, opts ...Option) *Validator {
	v := &Validator{
		store:    store,
		verifier: verifier,
		agentID:  agentID,
		domain:   domain,
		audit:    audit.Nop(),
		log:      slog.Default().With("component", "validator"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ValidateByDigest fetches the proof package from the artifact store and
// validates it.
func (v *Validator) ValidateByDigest(ctx context.Context, digest canonicalize.Digest, timestamp uint64) (*Result, error) {
	raw, err := v.store.Get(ctx, digest)
	if err != nil {
		if errors.Is(err, artifacts.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPackageNotFound, digest)
		}
		return nil, err
	}

	var pkg prover.ProofPackage
	if err := json.Unmarshal(raw, &pkg); err != nil {
		return nil, fmt.Errorf("decode proof package %s: %w", digest, err)
	}
	return v.Validate(ctx, &pkg, digest, timestamp), nil
}

// Validate scores a proof package. It never fails: a package missing its
// proof body or public signals is rejected outright with a zero report,
// and every other defect maps to a sub-score.
func (v *Validator) Validate(ctx context.Context, pkg *prover.ProofPackage, digest canonicalize.Digest, timestamp uint64) *Result {
	// Public signals are an ordered, non-empty sequence; a package
	// without them (or without a proof body) is not scoreable at all.
	if len(pkg.Proof) == 0 || len(pkg.PublicSignals) == 0 {
		v.log.Warn("malformed proof package", "digest", digest.String())
		_ = v.audit.Record(ctx, audit.EventValidation, "validate", digest.String(), map[string]interface{}{
			"overall_score": 0,
			"reason":        "invalid package format",
		})
		return v.newResult(NewReport(0, 0, 0), pkg, digest, timestamp)
	}

	structure := v.structureScore(pkg)
	crypto := v.cryptoScore(ctx, pkg)
	logic := v.logicScore(pkg)

	report := NewReport(structure, crypto, logic)
	v.log.Info("validation complete",
		"digest", digest.String(),
		"structure", structure, "crypto", crypto, "logic", logic,
		"overall", report.OverallScore)

	_ = v.audit.Record(ctx, audit.EventValidation, "validate", digest.String(), map[string]interface{}{
		"overall_score":     report.OverallScore,
		"proof_valid":       report.ProofValid,
		"meets_constraints": report.MeetsConstraints,
	})

	return v.newResult(report, pkg, digest, timestamp)
}

func (v *Validator) newResult(report Report, pkg *prover.ProofPackage, digest canonicalize.Digest, timestamp uint64) *Result {
	return &Result{
		IsValid: report.OverallScore >= PassThreshold,
		Score:   report.OverallScore,
		Package: Package{
			DataHash:         digest.Hex(),
			ValidatorAgentID: v.agentID,
			ValidatorDomain:  v.domain,
			Timestamp:        timestamp,
			ValidationScore:  report.OverallScore,
			ValidationReport: report,
			OriginalProof:    pkg,
		},
	}
}

// cryptoScore runs the verifier: 100 valid, 0 rejected, 50 when the
// verifier itself could not run.
func (v *Validator) cryptoScore(ctx context.Context, pkg *prover.ProofPackage) int {
	if len(pkg.Proof) == 0 {
		return 0
	}
	valid, err := v.verifier.Verify(ctx, pkg.Proof, pkg.PublicSignals)
	if err != nil {
		v.log.Warn("cryptographic verification unavailable", "err", err)
		return 50
	}
	if !valid {
		return 0
	}
	return 100
}

// logicScore re-derives the plan invariants from the claimed inputs:
// 0 missing fields, 30 value not preserved, 70 value preserved but an
// allocation outside bounds, 100 both hold, 50 when the check itself
// failed on malformed data.
func (v *Validator) logicScore(pkg *prover.ProofPackage) int {
	plan := pkg.Plan
	if plan == nil || len(plan.OldBalances) == 0 || len(plan.NewBalances) == 0 || len(plan.Prices) == 0 {
		return 0
	}

	oldTotal, err := rebalance.TotalValue(plan.OldBalances, plan.Prices)
	if err != nil {
		return 50
	}
	newTotal, err := rebalance.TotalValue(plan.NewBalances, plan.Prices)
	if err != nil {
		return 50
	}
	if oldTotal.Cmp(newTotal) != 0 {
		v.log.Warn("value not preserved", "old", oldTotal, "new", newTotal)
		return 30
	}

	minPct, okMin := parsePct(plan.MinAllocationPct, 0)
	maxPct, okMax := parsePct(plan.MaxAllocationPct, 100)
	if !okMin || !okMax {
		return 50
	}
	within, err := rebalance.WithinBounds(plan.NewBalances, plan.Prices, minPct, maxPct)
	if err != nil {
		return 50
	}
	if !within {
		return 70
	}
	return 100
}
