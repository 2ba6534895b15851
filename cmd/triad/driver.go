package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/triad-labs/triad/pkg/artifacts"
	"github.com/triad-labs/triad/pkg/audit"
	"github.com/triad-labs/triad/pkg/chain"
	"github.com/triad-labs/triad/pkg/config"
	"github.com/triad-labs/triad/pkg/prover"
	"github.com/triad-labs/triad/pkg/workflow"
)

// driver wires the configured collaborators into per-role sessions and
// persists workflow state between invocations.
type driver struct {
	cfg         *config.Config
	coordinator *workflow.Coordinator
	sessions    map[workflow.Role]workflow.Session
	store       artifacts.Store
}

func newDriver(profilePath string) (*driver, error) {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)
	if profilePath != "" {
		if err := config.LoadProfile(profilePath, cfg); err != nil {
			return nil, err
		}
	}

	deployment, err := chain.LoadDeployment(cfg.DeploymentPath)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()

	sessions := make(map[workflow.Role]workflow.Session, 3)
	keys := map[workflow.Role]string{
		workflow.RoleProposer:  cfg.ProposerKey,
		workflow.RoleValidator: cfg.ValidatorKey,
		workflow.RoleClient:    cfg.ClientKey,
	}
	for role, hexKey := range keys {
		if hexKey == "" {
			return nil, fmt.Errorf("no private key configured for %s", role)
		}
		wallet, err := chain.NewWallet(hexKey)
		if err != nil {
			return nil, fmt.Errorf("%s key: %w", role, err)
		}
		client, err := chain.Dial(ctx, cfg.RPCURL, wallet,
			chain.WithReceiptTimeout(cfg.ReceiptTimeout))
		if err != nil {
			return nil, err
		}
		sessions[role] = workflow.Session{
			Role:   role,
			Client: client,
			Signer: wallet,
		}
	}

	store, err := artifacts.NewStoreFromEnv(ctx)
	if err != nil {
		return nil, err
	}

	coordinator := workflow.New(
		workflow.Config{
			Deployment: deployment,
			Domains: map[workflow.Role]string{
				workflow.RoleProposer:  cfg.ProposerDomain,
				workflow.RoleValidator: cfg.ValidatorDomain,
				workflow.RoleClient:    cfg.ClientDomain,
			},
			InputPath:          cfg.InputPath,
			FeedbackIndexLimit: cfg.FeedbackIndexLimit,
			FeedbackTTL:        cfg.FeedbackTTL,
		},
		store,
		prover.NewSnarkJS(cfg.SnarkJSBindir),
		workflow.WithAudit(audit.NewLogger()),
	)

	return &driver{
		cfg:         cfg,
		coordinator: coordinator,
		sessions:    sessions,
		store:       store,
	}, nil
}

func (d *driver) close() {
	if c, ok := d.store.(io.Closer); ok {
		_ = c.Close()
	}
}

// runAs executes one step under the named role's wallet.
func (d *driver) runAs(ctx context.Context, stepID string, state workflow.State, role workflow.Role) (workflow.Result, workflow.State) {
	session, ok := d.sessions[role]
	if !ok {
		return workflow.Result{
			Step:    stepID,
			Outcome: workflow.OutcomeFailed,
			Err:     fmt.Errorf("no session for role %q", role),
		}, state
	}
	return d.coordinator.RunStep(ctx, stepID, state, session)
}

// loadState reads the persisted workflow state, starting fresh when none
// exists yet.
func (d *driver) loadState() (workflow.State, error) {
	raw, err := os.ReadFile(d.cfg.StatePath)
	if os.IsNotExist(err) {
		return workflow.State{}, nil
	}
	if err != nil {
		return workflow.State{}, fmt.Errorf("read state: %w", err)
	}

	var state workflow.State
	if err := json.Unmarshal(raw, &state); err != nil {
		return workflow.State{}, fmt.Errorf("parse state %s: %w", d.cfg.StatePath, err)
	}
	return state, nil
}

func (d *driver) saveState(state workflow.State) error {
	raw, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := os.WriteFile(d.cfg.StatePath, raw, 0o600); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}
