package prover

import (
	"context"
	"encoding/json"
)

// StaticToolkit is a canned Toolkit for tests and dry runs.
type StaticToolkit struct {
	ProofJSON json.RawMessage
	Signals   []string
	ProveErr  error
	Valid     bool
	VerifyErr error
}

// WellFormedProof returns a structurally valid groth16/bn128 proof body.
func WellFormedProof() json.RawMessage {
	return json.RawMessage(`{
		"pi_a": ["1", "2", "1"],
		"pi_b": [["1", "2"], ["3", "4"], ["1", "0"]],
		"pi_c": ["5", "6", "1"],
		"protocol": "groth16",
		"curve": "bn128"
	}`)
}

// NewStaticToolkit returns a toolkit that proves and verifies successfully.
func NewStaticToolkit() *StaticToolkit {
	return &StaticToolkit{
		ProofJSON: WellFormedProof(),
		Signals:   []string{"4000", "10", "40"},
		Valid:     true,
	}
}

func (s *StaticToolkit) Prove(context.Context, CircuitInput) (json.RawMessage, []string, error) {
	if s.ProveErr != nil {
		return nil, nil, s.ProveErr
	}
	return s.ProofJSON, s.Signals, nil
}

func (s *StaticToolkit) Verify(context.Context, json.RawMessage, []string) (bool, error) {
	if s.VerifyErr != nil {
		return false, s.VerifyErr
	}
	return s.Valid, nil
}

var _ Toolkit = (*StaticToolkit)(nil)
