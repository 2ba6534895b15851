// Package prover produces and checks Groth16 proof packages for
// rebalancing plans. The constraint system itself is external; this
// package shells out to the proving toolkit and shapes its artifacts.
package prover

import (
	"context"
	"encoding/json"

	"github.com/triad-labs/triad/pkg/rebalance"
)

// Proof-system identifiers baked into every package this module emits.
const (
	ProofSystemGroth16 = "groth16"
	CurveBN128         = "bn128"
	CircuitRebalancing = "rebalancing"
)

// CircuitInput is the witness input handed to the circuit. Field names
// follow the circuit's signal names.
type CircuitInput struct {
	OldBalances          []string `json:"oldBalances"`
	NewBalances          []string `json:"newBalances"`
	Prices               []string `json:"prices"`
	TotalValueCommitment string   `json:"totalValueCommitment"`
	MinAllocationPct     string   `json:"minAllocationPct"`
	MaxAllocationPct     string   `json:"maxAllocationPct"`
}

// InputFromPlan derives the circuit input from a built plan.
func InputFromPlan(p *rebalance.Plan) CircuitInput {
	return CircuitInput{
		OldBalances:          p.OldBalances,
		NewBalances:          p.NewBalances,
		Prices:               p.Prices,
		TotalValueCommitment: p.NewTotalValue,
		MinAllocationPct:     p.MinAllocationPct,
		MaxAllocationPct:     p.MaxAllocationPct,
	}
}

// Metadata tags a proof package with its proving context.
type Metadata struct {
	ProofSystem string `json:"proof_system"`
	Curve       string `json:"curve"`
	Circuit     string `json:"circuit"`
	AgentID     uint64 `json:"agent_id"`
	Timestamp   uint64 `json:"timestamp"`
}

// ProofPackage bundles a proof with everything needed to validate it.
// Immutable once produced; identified downstream by content digest.
type ProofPackage struct {
	Proof         json.RawMessage `json:"proof"`
	PublicSignals []string        `json:"public_inputs"`
	Plan          *rebalance.Plan `json:"rebalancing_plan"`
	CircuitInput  CircuitInput    `json:"circuit_input"`
	Metadata      Metadata        `json:"metadata"`
}

// Toolkit is the proving-system boundary.
type Toolkit interface {
	// Prove generates a proof and its public signals for the input.
	Prove(ctx context.Context, input CircuitInput) (json.RawMessage, []string, error)
	// Verify checks a proof against its public signals. A false verdict
	// with a nil error means the toolkit ran and rejected the proof; an
	// error means the toolkit could not run.
	Verify(ctx context.Context, proof json.RawMessage, publicSignals []string) (bool, error)
}

// GeneratePackage proves a plan and assembles the full package.
func GeneratePackage(ctx context.Context, tk Toolkit, plan *rebalance.Plan) (*ProofPackage, error) {
	input := InputFromPlan(plan)
	proof, signals, err := tk.Prove(ctx, input)
	if err != nil {
		return nil, err
	}
	return &ProofPackage{
		Proof:         proof,
		PublicSignals: signals,
		Plan:          plan,
		CircuitInput:  input,
		Metadata: Metadata{
			ProofSystem: ProofSystemGroth16,
			Curve:       CurveBN128,
			Circuit:     CircuitRebalancing,
			AgentID:     plan.AgentID,
			Timestamp:   plan.Timestamp,
		},
	}, nil
}
