package workflow

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/triad-labs/triad/pkg/canonicalize"
	"github.com/triad-labs/triad/pkg/rebalance"
	"github.com/triad-labs/triad/pkg/validator"
)

// Role identifies which actor a step must run as.
type Role string

const (
	RoleProposer  Role = "proposer"
	RoleValidator Role = "validator"
	RoleClient    Role = "client"

	// RoleAny marks steps any wallet may execute.
	RoleAny Role = "any"
)

// Reputation is the on-chain aggregate read back in the final step.
type Reputation struct {
	Count   uint64 `json:"count"`
	Average uint8  `json:"average"`
}

// State accumulates step-produced keys across a workflow run. It is a
// value: steps never mutate it, they return a Delta that Apply folds into
// a new snapshot.
type State struct {
	Version int `json:"version"`

	AgentIDs  map[Role]uint64 `json:"agent_ids,omitempty"`
	Addresses map[Role]string `json:"addresses,omitempty"`

	Input *rebalance.Request `json:"input,omitempty"`
	Plan  *rebalance.Plan    `json:"plan,omitempty"`

	DataDigest     canonicalize.Digest `json:"data_digest,omitempty"`
	RequestDigest  common.Hash         `json:"request_digest,omitempty"`
	ResponseDigest common.Hash         `json:"response_digest,omitempty"`

	Report       *validator.Report   `json:"report,omitempty"`
	ReportDigest canonicalize.Digest `json:"report_digest,omitempty"`

	FeedbackAuth  []byte      `json:"feedback_auth,omitempty"`
	FeedbackScore int         `json:"feedback_score,omitempty"`
	Reputation    *Reputation `json:"reputation,omitempty"`
}

// Delta is one step's complete contribution. Nil fields leave the state
// untouched; maps merge entry-wise.
type Delta struct {
	AgentIDs  map[Role]uint64
	Addresses map[Role]string

	Input *rebalance.Request
	Plan  *rebalance.Plan

	DataDigest     *canonicalize.Digest
	RequestDigest  *common.Hash
	ResponseDigest *common.Hash

	Report       *validator.Report
	ReportDigest *canonicalize.Digest

	FeedbackAuth  []byte
	FeedbackScore *int
	Reputation    *Reputation
}

// Apply folds a delta into a copy of the state and bumps the version.
// Per-role maps deep-merge so actors registering independently never
// clobber each other's entries.
func (s State) Apply(d Delta) State {
	next := s
	next.Version = s.Version + 1

	next.AgentIDs = mergeMap(s.AgentIDs, d.AgentIDs)
	next.Addresses = mergeMap(s.Addresses, d.Addresses)

	if d.Input != nil {
		next.Input = d.Input
	}
	if d.Plan != nil {
		next.Plan = d.Plan
	}
	if d.DataDigest != nil {
		next.DataDigest = *d.DataDigest
	}
	if d.RequestDigest != nil {
		next.RequestDigest = *d.RequestDigest
	}
	if d.ResponseDigest != nil {
		next.ResponseDigest = *d.ResponseDigest
	}
	if d.Report != nil {
		next.Report = d.Report
	}
	if d.ReportDigest != nil {
		next.ReportDigest = *d.ReportDigest
	}
	if d.FeedbackAuth != nil {
		next.FeedbackAuth = d.FeedbackAuth
	}
	if d.FeedbackScore != nil {
		next.FeedbackScore = *d.FeedbackScore
	}
	if d.Reputation != nil {
		next.Reputation = d.Reputation
	}
	return next
}

func mergeMap[K comparable, V any](base, overlay map[K]V) map[K]V {
	if len(overlay) == 0 {
		return base
	}
	merged := make(map[K]V, len(base)+len(overlay))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range overlay {
		merged[k] = v
	}
	return merged
}

// AddressOf returns the registered address for a role, if known.
func (s State) AddressOf(role Role) (common.Address, bool) {
	hex, ok := s.Addresses[role]
	if !ok || !common.IsHexAddress(hex) {
		return common.Address{}, false
	}
	return common.HexToAddress(hex), true
}
