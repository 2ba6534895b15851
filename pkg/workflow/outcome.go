package workflow

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/triad-labs/triad/pkg/artifacts"
	"github.com/triad-labs/triad/pkg/chain"
	"github.com/triad-labs/triad/pkg/validator"
)

// Outcome classifies how a step run ended. Callers branch on it to decide
// between resuming, retrying and aborting; the coordinator itself never
// retries.
type Outcome string

const (
	OutcomeOK                   Outcome = "ok"
	OutcomeWalletSwitchRequired Outcome = "wallet-switch-required"
	OutcomeMissingPrerequisite  Outcome = "missing-prerequisite"
	OutcomeUserRejected         Outcome = "user-rejected"
	OutcomeTransactionReverted  Outcome = "transaction-reverted"

	// OutcomeRPCError is ambiguous: the transaction may still confirm.
	// Resuming must re-check on-chain state before resubmitting.
	OutcomeRPCError Outcome = "rpc-error"

	OutcomeArtifactNotFound Outcome = "artifact-not-found"
	OutcomeFailed           Outcome = "failed"
)

// WalletSwitch tells the caller which signing identity the halted step
// needs before it can resume.
type WalletSwitch struct {
	From common.Address `json:"from"`
	To   common.Address `json:"to"`
	Role Role           `json:"role"`
}

// Result reports one step execution.
type Result struct {
	Step         string        `json:"step"`
	Outcome      Outcome       `json:"outcome"`
	Err          error         `json:"-"`
	WalletSwitch *WalletSwitch `json:"wallet_switch,omitempty"`
}

// OK reports whether the step completed and contributed its delta.
func (r Result) OK() bool { return r.Outcome == OutcomeOK }

func (r Result) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", r.Step, r.Outcome, r.Err)
	}
	return fmt.Sprintf("%s: %s", r.Step, r.Outcome)
}

// prerequisiteError marks a missing-prior-artifact failure so classify
// can distinguish it from a body failure.
type prerequisiteError struct{ what string }

func (e *prerequisiteError) Error() string { return "missing prerequisite: " + e.what }

func missing(what string) error { return &prerequisiteError{what: what} }

// classify maps a step error to its outcome.
func classify(err error) Outcome {
	var (
		prereq *prerequisiteError
		revert *chain.RevertError
		rpcErr *chain.RPCError
	)
	switch {
	case errors.As(err, &prereq):
		return OutcomeMissingPrerequisite
	case errors.Is(err, chain.ErrUserRejected):
		return OutcomeUserRejected
	case errors.As(err, &revert):
		return OutcomeTransactionReverted
	case errors.Is(err, artifacts.ErrNotFound), errors.Is(err, validator.ErrPackageNotFound):
		return OutcomeArtifactNotFound
	case errors.As(err, &rpcErr):
		return OutcomeRPCError
	default:
		return OutcomeFailed
	}
}
