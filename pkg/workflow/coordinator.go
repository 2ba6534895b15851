// Package workflow sequences the agent lifecycle: registration, proof
// generation, validation and delegated feedback, across three distinct
// wallets. One coordinator drives one run; steps execute strictly in
// order and each contributes a complete state delta or none.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/triad-labs/triad/pkg/artifacts"
	"github.com/triad-labs/triad/pkg/audit"
	"github.com/triad-labs/triad/pkg/chain"
	"github.com/triad-labs/triad/pkg/feedback"
	"github.com/triad-labs/triad/pkg/prover"
)

// Session is one actor's signing context: the chain client bound to the
// active wallet and the role the driver loaded the key for.
type Session struct {
	Role   Role
	Client chain.Client
	Signer feedback.Signer
}

// Config fixes the run-wide parameters.
type Config struct {
	Deployment *chain.Deployment
	// Domains maps each role to the domain its agent registers under.
	Domains map[Role]string
	// InputPath is the portfolio input file for load-input.
	InputPath string

	FeedbackIndexLimit uint64
	FeedbackTTL        time.Duration

	// RetryDelay paces the receipt-event fallback re-query.
	RetryDelay time.Duration
}

// Coordinator owns the step table and the shared collaborators.
type Coordinator struct {
	cfg     Config
	store   artifacts.Store
	toolkit prover.Toolkit
	history *feedback.History
	audit   audit.Logger
	log     *slog.Logger
	now     func() time.Time
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithAudit attaches an audit logger.
func WithAudit(l audit.Logger) Option {
	return func(c *Coordinator) { c.audit = l }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// New builds a Coordinator over an artifact store and proving toolkit.
func New(cfg Config, store artifacts.Store, toolkit prover.Toolkit, opts ...Option) *Coordinator {
	if cfg.FeedbackIndexLimit == 0 {
		cfg.FeedbackIndexLimit = 1
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	c := &Coordinator{
		cfg:     cfg,
		store:   store,
		toolkit: toolkit,
		history: &feedback.History{},
		audit:   audit.Nop(),
		log:     slog.Default().With("component", "workflow"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// History exposes the client-local feedback aggregate.
func (c *Coordinator) History() *feedback.History { return c.history }

// RunStep executes one step against the current state. The returned state
// includes the step's delta only on an OK outcome; on any other outcome
// the input state comes back unchanged so the caller can fix the cause
// and resume from the same step.
func (c *Coordinator) RunStep(ctx context.Context, stepID string, state State, session Session) (Result, State) {
	step, ok := stepByID(stepID)
	if !ok {
		return Result{
			Step:    stepID,
			Outcome: OutcomeFailed,
			Err:     fmt.Errorf("unknown step %q", stepID),
		}, state
	}

	ctx = audit.WithActor(ctx, session.Client.Sender().Hex())

	// Wallet gating happens before anything else: a mismatched wallet
	// must not trigger a single chain call.
	if step.role != RoleAny {
		required, known := state.AddressOf(step.role)
		if !known {
			return Result{
				Step:    step.id,
				Outcome: OutcomeMissingPrerequisite,
				Err:     missing(fmt.Sprintf("%s not registered", step.role)),
			}, state
		}
		if active := session.Client.Sender(); active != required {
			c.log.Info("wallet switch required",
				"step", step.id, "role", step.role,
				"active", active.Hex(), "required", required.Hex())
			return Result{
				Step:    step.id,
				Outcome: OutcomeWalletSwitchRequired,
				WalletSwitch: &WalletSwitch{
					From: active,
					To:   required,
					Role: step.role,
				},
			}, state
		}
	}

	if step.precheck != nil {
		if err := step.precheck(&state); err != nil {
			return Result{Step: step.id, Outcome: OutcomeMissingPrerequisite, Err: err}, state
		}
	}

	c.log.Info("running step", "step", step.id, "version", state.Version)
	delta, err := step.run(ctx, c, session, &state)
	if err != nil {
		outcome := classify(err)
		c.log.Warn("step failed", "step", step.id, "outcome", outcome, "err", err)
		_ = c.audit.Record(ctx, audit.EventWorkflow, "step-failed", step.id, map[string]interface{}{
			"outcome": string(outcome),
		})
		return Result{Step: step.id, Outcome: outcome, Err: err}, state
	}

	next := state.Apply(delta)
	_ = c.audit.Record(ctx, audit.EventWorkflow, "step-complete", step.id, map[string]interface{}{
		"version": next.Version,
	})
	return Result{Step: step.id, Outcome: OutcomeOK}, next
}

// Run executes the remaining steps in order, starting at startStep (or
// the beginning when empty), halting at the first non-OK result.
func (c *Coordinator) Run(ctx context.Context, startStep string, state State, session Session) (Result, State) {
	started := startStep == ""
	var last Result
	for _, step := range steps {
		if !started {
			if step.id != startStep {
				continue
			}
			started = true
		}
		last, state = c.RunStep(ctx, step.id, state, session)
		if !last.OK() {
			return last, state
		}
	}
	return last, state
}
