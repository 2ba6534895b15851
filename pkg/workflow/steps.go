package workflow

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/triad-labs/triad/pkg/artifacts"
	"github.com/triad-labs/triad/pkg/audit"
	"github.com/triad-labs/triad/pkg/chain"
	"github.com/triad-labs/triad/pkg/feedback"
	"github.com/triad-labs/triad/pkg/identity"
	"github.com/triad-labs/triad/pkg/prover"
	"github.com/triad-labs/triad/pkg/rebalance"
	"github.com/triad-labs/triad/pkg/validator"
)

// Step identifiers, in canonical execution order.
const (
	StepRegisterAgents      = "register-agents"
	StepLoadInput           = "load-input"
	StepGenerateProof       = "generate-proof"
	StepSubmitForValidation = "submit-for-validation"
	StepValidateProof       = "validate-proof"
	StepSubmitValidation    = "submit-validation"
	StepAuthorizeFeedback   = "authorize-feedback"
	StepSubmitFeedback      = "submit-feedback"
	StepCheckReputation     = "check-reputation"
)

type step struct {
	id       string
	role     Role
	precheck func(*State) error
	run      func(ctx context.Context, c *Coordinator, session Session, state *State) (Delta, error)
}

var steps = []step{
	{id: StepRegisterAgents, role: RoleAny, run: runRegisterAgents},
	{id: StepLoadInput, role: RoleAny, run: runLoadInput},
	{
		id: StepGenerateProof, role: RoleAny,
		precheck: func(s *State) error {
			if s.Input == nil {
				return missing("portfolio input")
			}
			if s.AgentIDs[RoleProposer] == 0 {
				return missing("proposer agent id")
			}
			return nil
		},
		run: runGenerateProof,
	},
	{
		id: StepSubmitForValidation, role: RoleProposer,
		precheck: func(s *State) error {
			if s.DataDigest.IsZero() {
				return missing("proof package digest")
			}
			if s.AgentIDs[RoleValidator] == 0 {
				return missing("validator agent id")
			}
			return nil
		},
		run: runSubmitForValidation,
	},
	{
		id: StepValidateProof, role: RoleValidator,
		precheck: func(s *State) error {
			if s.DataDigest.IsZero() {
				return missing("proof package digest")
			}
			return nil
		},
		run: runValidateProof,
	},
	{
		id: StepSubmitValidation, role: RoleValidator,
		precheck: func(s *State) error {
			if s.Report == nil {
				return missing("validation report")
			}
			if s.DataDigest.IsZero() {
				return missing("proof package digest")
			}
			return nil
		},
		run: runSubmitValidation,
	},
	{
		id: StepAuthorizeFeedback, role: RoleProposer,
		precheck: func(s *State) error {
			if s.AgentIDs[RoleProposer] == 0 {
				return missing("proposer agent id")
			}
			if _, ok := s.AddressOf(RoleClient); !ok {
				return missing("client registration")
			}
			return nil
		},
		run: runAuthorizeFeedback,
	},
	{
		id: StepSubmitFeedback, role: RoleClient,
		precheck: func(s *State) error {
			if len(s.FeedbackAuth) == 0 {
				return missing("feedback authorization")
			}
			if s.DataDigest.IsZero() {
				return missing("proof package digest")
			}
			return nil
		},
		run: runSubmitFeedback,
	},
	{
		id: StepCheckReputation, role: RoleAny,
		precheck: func(s *State) error {
			if s.AgentIDs[RoleProposer] == 0 {
				return missing("proposer agent id")
			}
			return nil
		},
		run: runCheckReputation,
	},
}

func stepByID(id string) (step, bool) {
	for _, s := range steps {
		if s.id == id {
			return s, true
		}
	}
	return step{}, false
}

// StepIDs returns the canonical step order.
func StepIDs() []string {
	ids := make([]string, len(steps))
	for i, s := range steps {
		ids[i] = s.id
	}
	return ids
}

func runRegisterAgents(ctx context.Context, c *Coordinator, session Session, _ *State) (Delta, error) {
	role := session.Role
	if role == "" || role == RoleAny {
		return Delta{}, fmt.Errorf("session role required for registration")
	}
	domain, ok := c.cfg.Domains[role]
	if !ok {
		return Delta{}, fmt.Errorf("no domain configured for role %s", role)
	}

	registry := chain.NewIdentityRegistry(c.cfg.Deployment.IdentityRegistry, session.Client)
	registrar := identity.NewRegistrar(registry, session.Client,
		identity.WithRetryDelay(c.cfg.RetryDelay),
		identity.WithAudit(c.audit))

	rec, err := registrar.EnsureRegistered(ctx, domain, string(role))
	if err != nil {
		return Delta{}, err
	}
	return Delta{
		AgentIDs:  map[Role]uint64{role: rec.AgentID},
		Addresses: map[Role]string{role: session.Client.Sender().Hex()},
	}, nil
}

func runLoadInput(_ context.Context, c *Coordinator, _ Session, _ *State) (Delta, error) {
	req, err := rebalance.LoadRequest(c.cfg.InputPath)
	if err != nil {
		return Delta{}, err
	}
	return Delta{Input: req}, nil
}

func runGenerateProof(ctx context.Context, c *Coordinator, _ Session, state *State) (Delta, error) {
	plan, err := rebalance.BuildPlan(state.Input,
		state.AgentIDs[RoleProposer], c.cfg.Domains[RoleProposer],
		uint64(c.now().Unix()))
	if err != nil {
		return Delta{}, err
	}

	pkg, err := prover.GeneratePackage(ctx, c.toolkit, plan)
	if err != nil {
		return Delta{}, err
	}

	digest, err := artifacts.PutCanonical(ctx, c.store, pkg)
	if err != nil {
		return Delta{}, err
	}
	_ = c.audit.Record(ctx, audit.EventArtifact, "put", digest.String(), map[string]interface{}{
		"kind": "proof-package",
	})
	return Delta{Plan: plan, DataDigest: &digest}, nil
}

func runSubmitForValidation(ctx context.Context, c *Coordinator, session Session, state *State) (Delta, error) {
	registry := chain.NewValidationRegistry(c.cfg.Deployment.ValidationRegistry, session.Client)
	dataHash := state.DataDigest.Bytes32()

	txHash, err := registry.Request(ctx,
		state.AgentIDs[RoleValidator], state.AgentIDs[RoleProposer], dataHash)
	if err != nil {
		return Delta{}, err
	}
	receipt, err := session.Client.WaitForReceipt(ctx, txHash)
	if err != nil {
		return Delta{}, err
	}

	requestDigest, ok := registry.RequestDigestFromReceipt(receipt)
	if !ok {
		requestDigest = chain.ComputeRequestDigest(
			state.AgentIDs[RoleValidator], state.AgentIDs[RoleProposer], dataHash)
	}
	_ = c.audit.Record(ctx, audit.EventChain, "validation-request", requestDigest.Hex(), map[string]interface{}{
		"tx": txHash.Hex(),
	})
	return Delta{RequestDigest: &requestDigest}, nil
}

func runValidateProof(ctx context.Context, c *Coordinator, _ Session, state *State) (Delta, error) {
	v := validator.New(c.store, c.toolkit,
		state.AgentIDs[RoleValidator], c.cfg.Domains[RoleValidator],
		validator.WithAudit(c.audit))

	res, err := v.ValidateByDigest(ctx, state.DataDigest, uint64(c.now().Unix()))
	if err != nil {
		return Delta{}, err
	}

	reportDigest, err := artifacts.PutCanonical(ctx, c.store, res.Package)
	if err != nil {
		return Delta{}, err
	}
	report := res.Package.ValidationReport
	return Delta{Report: &report, ReportDigest: &reportDigest}, nil
}

func runSubmitValidation(ctx context.Context, c *Coordinator, session Session, state *State) (Delta, error) {
	registry := chain.NewValidationRegistry(c.cfg.Deployment.ValidationRegistry, session.Client)
	dataHash := state.DataDigest.Bytes32()
	score := clampScore(state.Report.OverallScore)

	txHash, err := registry.Respond(ctx, dataHash, score)
	if err != nil {
		return Delta{}, err
	}
	receipt, err := session.Client.WaitForReceipt(ctx, txHash)
	if err != nil {
		return Delta{}, err
	}

	responseDigest, ok := registry.ResponseDigestFromReceipt(receipt)
	if !ok {
		responseDigest = chain.ComputeResponseDigest(dataHash, score)
	}
	_ = c.audit.Record(ctx, audit.EventChain, "validation-response", responseDigest.Hex(), map[string]interface{}{
		"tx":    txHash.Hex(),
		"score": score,
	})
	return Delta{ResponseDigest: &responseDigest}, nil
}

func runAuthorizeFeedback(ctx context.Context, c *Coordinator, session Session, state *State) (Delta, error) {
	chainID, err := session.Client.ChainID(ctx)
	if err != nil {
		return Delta{}, err
	}
	clientAddr, _ := state.AddressOf(RoleClient)

	issuer := feedback.NewIssuer(session.Signer, chainID, c.cfg.Deployment.IdentityRegistry,
		feedback.WithAudit(c.audit), feedback.WithClock(c.now))
	_, raw, err := issuer.Issue(ctx, state.AgentIDs[RoleProposer], clientAddr,
		c.cfg.FeedbackIndexLimit, c.cfg.FeedbackTTL)
	if err != nil {
		return Delta{}, err
	}
	return Delta{FeedbackAuth: raw}, nil
}

func runSubmitFeedback(ctx context.Context, c *Coordinator, session Session, state *State) (Delta, error) {
	// Local verification first: a token bound to another client or past
	// expiry must fail here, not as an on-chain revert.
	token, err := feedback.Verify(state.FeedbackAuth, session.Client.Sender(), c.now())
	if err != nil {
		return Delta{}, err
	}

	raw, err := c.store.Get(ctx, state.DataDigest)
	if err != nil {
		return Delta{}, err
	}
	var pkg prover.ProofPackage
	if err := json.Unmarshal(raw, &pkg); err != nil {
		return Delta{}, fmt.Errorf("decode proof package: %w", err)
	}
	score := feedback.EvaluateQuality(&pkg)

	registry := chain.NewReputationRegistry(c.cfg.Deployment.ReputationRegistry, session.Client)
	txHash, err := registry.GiveFeedback(ctx, token.AgentID, clampScore(score),
		state.DataDigest.String(), state.FeedbackAuth)
	if err != nil {
		return Delta{}, err
	}
	if _, err := session.Client.WaitForReceipt(ctx, txHash); err != nil {
		return Delta{}, err
	}

	c.history.Add(feedback.Entry{
		ServerID:  token.AgentID,
		Score:     clampScore(score),
		TxHash:    txHash.Hex(),
		Timestamp: c.now(),
	})
	return Delta{FeedbackScore: &score}, nil
}

func runCheckReputation(ctx context.Context, c *Coordinator, session Session, state *State) (Delta, error) {
	registry := chain.NewReputationRegistry(c.cfg.Deployment.ReputationRegistry, session.Client)
	count, average, err := registry.Summary(ctx, state.AgentIDs[RoleProposer])
	if err != nil {
		return Delta{}, err
	}
	return Delta{Reputation: &Reputation{Count: count, Average: average}}, nil
}

func clampScore(score int) uint8 {
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return uint8(score)
	}
}
