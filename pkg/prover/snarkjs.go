package prover

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrToolkitUnavailable is returned when the proving toolkit binary
// cannot be executed at all, as opposed to running and rejecting.
var ErrToolkitUnavailable = errors.New("proving toolkit unavailable")

// SnarkJS drives the snarkjs CLI against precompiled circuit artifacts
// in a build directory: <circuit>.wasm, <circuit>.r1cs,
// <circuit>_final.zkey and verification_key.json.
type SnarkJS struct {
	binary   string
	buildDir string
	circuit  string
	log      *slog.Logger
}

// SnarkJSOption customizes the CLI runner.
type SnarkJSOption func(*SnarkJS)

// WithBinary overrides the snarkjs binary path.
func WithBinary(path string) SnarkJSOption {
	return func(s *SnarkJS) { s.binary = path }
}

// WithCircuit overrides the circuit artifact basename.
func WithCircuit(name string) SnarkJSOption {
	return func(s *SnarkJS) { s.circuit = name }
}

// NewSnarkJS builds a runner over the given artifact directory.
func NewSnarkJS(buildDir string, opts ...SnarkJSOption) *SnarkJS {
	s := &SnarkJS{
		binary:   "snarkjs",
		buildDir: buildDir,
		circuit:  CircuitRebalancing,
		log:      slog.Default().With("component", "prover"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SnarkJS) artifact(name string) string {
	return filepath.Join(s.buildDir, name)
}

func (s *SnarkJS) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, s.binary, args...) //nolint:gosec // fixed binary, built args
	out, err := cmd.CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return "", fmt.Errorf("%w: %v", ErrToolkitUnavailable, err)
		}
		return string(out), fmt.Errorf("snarkjs %s: %s", args[0], strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// Prove runs witness calculation, witness check and proof generation.
func (s *SnarkJS) Prove(ctx context.Context, input CircuitInput) (json.RawMessage, []string, error) {
	dir, err := os.MkdirTemp("", "triad-prove-*")
	if err != nil {
		return nil, nil, fmt.Errorf("prove workspace: %w", err)
	}
	defer os.RemoveAll(dir)

	inputPath := filepath.Join(dir, "input.json")
	witnessPath := filepath.Join(dir, "witness.wtns")
	proofPath := filepath.Join(dir, "proof.json")
	publicPath := filepath.Join(dir, "public.json")

	raw, err := json.Marshal(input)
	if err != nil {
		return nil, nil, fmt.Errorf("encode circuit input: %w", err)
	}
	if err := os.WriteFile(inputPath, raw, 0o600); err != nil {
		return nil, nil, fmt.Errorf("write circuit input: %w", err)
	}

	s.log.Debug("calculating witness", "circuit", s.circuit)
	if _, err := s.run(ctx, "wtns", "calculate",
		s.artifact(s.circuit+".wasm"), inputPath, witnessPath); err != nil {
		return nil, nil, err
	}
	if _, err := s.run(ctx, "wtns", "check",
		s.artifact(s.circuit+".r1cs"), witnessPath); err != nil {
		return nil, nil, err
	}

	s.log.Debug("generating proof", "circuit", s.circuit)
	if _, err := s.run(ctx, "groth16", "prove",
		s.artifact(s.circuit+"_final.zkey"), witnessPath, proofPath, publicPath); err != nil {
		return nil, nil, err
	}

	proof, err := os.ReadFile(proofPath) //nolint:gosec // path built above
	if err != nil {
		return nil, nil, fmt.Errorf("read proof: %w", err)
	}
	publicRaw, err := os.ReadFile(publicPath) //nolint:gosec // path built above
	if err != nil {
		return nil, nil, fmt.Errorf("read public signals: %w", err)
	}
	var signals []string
	if err := json.Unmarshal(publicRaw, &signals); err != nil {
		return nil, nil, fmt.Errorf("decode public signals: %w", err)
	}
	return json.RawMessage(proof), signals, nil
}

// Verify runs groth16 verification. A rejected proof is (false, nil); an
// inability to run the toolkit is an error.
func (s *SnarkJS) Verify(ctx context.Context, proof json.RawMessage, publicSignals []string) (bool, error) {
	dir, err := os.MkdirTemp("", "triad-verify-*")
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrToolkitUnavailable, err)
	}
	defer os.RemoveAll(dir)

	proofPath := filepath.Join(dir, "proof.json")
	publicPath := filepath.Join(dir, "public.json")

	if err := os.WriteFile(proofPath, proof, 0o600); err != nil {
		return false, fmt.Errorf("%w: %v", ErrToolkitUnavailable, err)
	}
	signalsRaw, err := json.Marshal(publicSignals)
	if err != nil {
		return false, fmt.Errorf("encode public signals: %w", err)
	}
	if err := os.WriteFile(publicPath, signalsRaw, 0o600); err != nil {
		return false, fmt.Errorf("%w: %v", ErrToolkitUnavailable, err)
	}

	out, err := s.run(ctx, "groth16", "verify",
		s.artifact("verification_key.json"), publicPath, proofPath)
	if err != nil {
		if errors.Is(err, ErrToolkitUnavailable) {
			return false, err
		}
		// snarkjs exits non-zero for an invalid proof: a verdict, not an
		// operational failure.
		return false, nil
	}
	return strings.Contains(out, "OK"), nil
}

var _ Toolkit = (*SnarkJS)(nil)
