package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// ABI fragments for the registry contract set. Only the surface this
// module touches is declared; the contracts' internals are external.
const identityRegistryABI = `[
  {"type":"function","name":"newAgent","stateMutability":"payable",
   "inputs":[{"name":"agentDomain","type":"string"},{"name":"agentAddress","type":"address"}],
   "outputs":[{"name":"agentId","type":"uint256"}]},
  {"type":"function","name":"resolveByAddress","stateMutability":"view",
   "inputs":[{"name":"agentAddress","type":"address"}],
   "outputs":[{"name":"agentId","type":"uint256"},{"name":"agentDomain","type":"string"},{"name":"agentAddress","type":"address"}]},
  {"type":"function","name":"getAgent","stateMutability":"view",
   "inputs":[{"name":"agentId","type":"uint256"}],
   "outputs":[{"name":"agentId","type":"uint256"},{"name":"agentDomain","type":"string"},{"name":"agentAddress","type":"address"}]},
  {"type":"event","name":"AgentRegistered","anonymous":false,
   "inputs":[{"name":"agentId","type":"uint256","indexed":true},{"name":"agentDomain","type":"string","indexed":false},{"name":"agentAddress","type":"address","indexed":false}]}
]`

const validationRegistryABI = `[
  {"type":"function","name":"validationRequest","stateMutability":"nonpayable",
   "inputs":[{"name":"validatorAgentId","type":"uint256"},{"name":"agentId","type":"uint256"},{"name":"dataHash","type":"bytes32"}],
   "outputs":[]},
  {"type":"function","name":"validationResponse","stateMutability":"nonpayable",
   "inputs":[{"name":"dataHash","type":"bytes32"},{"name":"response","type":"uint8"}],
   "outputs":[]},
  {"type":"event","name":"ValidationRequested","anonymous":false,
   "inputs":[{"name":"requestDigest","type":"bytes32","indexed":true},{"name":"validatorAgentId","type":"uint256","indexed":false},{"name":"agentId","type":"uint256","indexed":false},{"name":"dataHash","type":"bytes32","indexed":false}]},
  {"type":"event","name":"ValidationResponded","anonymous":false,
   "inputs":[{"name":"responseDigest","type":"bytes32","indexed":true},{"name":"dataHash","type":"bytes32","indexed":false},{"name":"response","type":"uint8","indexed":false}]}
]`

const reputationRegistryABI = `[
  {"type":"function","name":"giveFeedback","stateMutability":"nonpayable",
   "inputs":[{"name":"agentId","type":"uint256"},{"name":"score","type":"uint8"},{"name":"feedbackURI","type":"string"},{"name":"feedbackAuth","type":"bytes"}],
   "outputs":[]},
  {"type":"function","name":"getSummary","stateMutability":"view",
   "inputs":[{"name":"agentId","type":"uint256"}],
   "outputs":[{"name":"count","type":"uint64"},{"name":"averageScore","type":"uint8"}]},
  {"type":"event","name":"NewFeedback","anonymous":false,
   "inputs":[{"name":"agentId","type":"uint256","indexed":true},{"name":"clientAddress","type":"address","indexed":true},{"name":"score","type":"uint8","indexed":false}]}
]`

// Gas limits match the original deployment's fixed budgets.
const (
	gasRegister           = 200_000
	gasValidationRequest  = 150_000
	gasValidationResponse = 120_000
	gasGiveFeedback       = 200_000
)

var (
	identityABI   = mustParseABI(identityRegistryABI)
	validationABI = mustParseABI(validationRegistryABI)
	reputationABI = mustParseABI(reputationRegistryABI)
)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(fmt.Sprintf("chain: invalid ABI fragment: %v", err))
	}
	return parsed
}

// IdentityRegistry binds the identity registry contract for one client.
type IdentityRegistry struct {
	addr common.Address
	c    Client
}

// NewIdentityRegistry binds the registry at addr to a client.
func NewIdentityRegistry(addr common.Address, c Client) *IdentityRegistry {
	return &IdentityRegistry{addr: addr, c: c}
}

// Address returns the bound contract address.
func (r *IdentityRegistry) Address() common.Address { return r.addr }

// ResolveByAddress looks up the registration bound to addr. Returns
// ErrAgentNotFound for unregistered addresses, including the contract's
// custom-error revert path.
func (r *IdentityRegistry) ResolveByAddress(ctx context.Context, addr common.Address) (uint64, string, error) {
	data, err := identityABI.Pack("resolveByAddress", addr)
	if err != nil {
		return 0, "", fmt.Errorf("pack resolveByAddress: %w", err)
	}

	ret, err := r.c.Call(ctx, r.addr, data)
	if err != nil {
		var revert *RevertError
		if errors.As(err, &revert) {
			return 0, "", ErrAgentNotFound
		}
		return 0, "", err
	}

	outs, err := identityABI.Unpack("resolveByAddress", ret)
	if err != nil {
		return 0, "", fmt.Errorf("unpack resolveByAddress: %w", err)
	}
	agentID := outs[0].(*big.Int)
	domain := outs[1].(string)

	if agentID.Sign() == 0 {
		return 0, "", ErrAgentNotFound
	}
	return agentID.Uint64(), domain, nil
}

// Register submits a newAgent transaction carrying the registration stake.
func (r *IdentityRegistry) Register(ctx context.Context, domain string, stake *big.Int) (common.Hash, error) {
	data, err := identityABI.Pack("newAgent", domain, r.c.Sender())
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack newAgent: %w", err)
	}
	return r.c.Send(ctx, r.addr, data, stake, gasRegister)
}

// AgentIDFromReceipt extracts the minted agent id from an AgentRegistered
// event in the confirmed receipt.
func (r *IdentityRegistry) AgentIDFromReceipt(receipt *types.Receipt) (uint64, bool) {
	eventID := identityABI.Events["AgentRegistered"].ID
	for _, l := range receipt.Logs {
		if l.Address == r.addr && len(l.Topics) >= 2 && l.Topics[0] == eventID {
			return new(big.Int).SetBytes(l.Topics[1].Bytes()).Uint64(), true
		}
	}
	return 0, false
}

// ValidationRegistry binds the validation registry contract.
type ValidationRegistry struct {
	addr common.Address
	c    Client
}

// NewValidationRegistry binds the registry at addr to a client.
func NewValidationRegistry(addr common.Address, c Client) *ValidationRegistry {
	return &ValidationRegistry{addr: addr, c: c}
}

// Request submits a validation request committing to dataHash.
func (r *ValidationRegistry) Request(ctx context.Context, validatorAgentID, agentID uint64, dataHash [32]byte) (common.Hash, error) {
	data, err := validationABI.Pack("validationRequest",
		new(big.Int).SetUint64(validatorAgentID), new(big.Int).SetUint64(agentID), dataHash)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack validationRequest: %w", err)
	}
	return r.c.Send(ctx, r.addr, data, nil, gasValidationRequest)
}

// Respond submits the validator's score for dataHash.
func (r *ValidationRegistry) Respond(ctx context.Context, dataHash [32]byte, score uint8) (common.Hash, error) {
	data, err := validationABI.Pack("validationResponse", dataHash, score)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack validationResponse: %w", err)
	}
	return r.c.Send(ctx, r.addr, data, nil, gasValidationResponse)
}

// RequestDigestFromReceipt extracts the registry-assigned request digest
// from a ValidationRequested event.
func (r *ValidationRegistry) RequestDigestFromReceipt(receipt *types.Receipt) (common.Hash, bool) {
	return r.digestFromReceipt(receipt, "ValidationRequested")
}

// ResponseDigestFromReceipt extracts the registry-assigned response digest
// from a ValidationResponded event.
func (r *ValidationRegistry) ResponseDigestFromReceipt(receipt *types.Receipt) (common.Hash, bool) {
	return r.digestFromReceipt(receipt, "ValidationResponded")
}

func (r *ValidationRegistry) digestFromReceipt(receipt *types.Receipt, event string) (common.Hash, bool) {
	eventID := validationABI.Events[event].ID
	for _, l := range receipt.Logs {
		if l.Address == r.addr && len(l.Topics) >= 2 && l.Topics[0] == eventID {
			return l.Topics[1], true
		}
	}
	return common.Hash{}, false
}

// ComputeRequestDigest recomputes the registry's request digest locally.
// Fallback for when the event cannot be parsed from the receipt.
func ComputeRequestDigest(validatorAgentID, agentID uint64, dataHash [32]byte) common.Hash {
	return common.BytesToHash(crypto.Keccak256(
		common.LeftPadBytes(new(big.Int).SetUint64(validatorAgentID).Bytes(), 32),
		common.LeftPadBytes(new(big.Int).SetUint64(agentID).Bytes(), 32),
		dataHash[:],
	))
}

// ComputeResponseDigest recomputes the registry's response digest locally.
func ComputeResponseDigest(dataHash [32]byte, score uint8) common.Hash {
	return common.BytesToHash(crypto.Keccak256(
		dataHash[:],
		[]byte{score},
	))
}

// ReputationRegistry binds the reputation registry contract.
type ReputationRegistry struct {
	addr common.Address
	c    Client
}

// NewReputationRegistry binds the registry at addr to a client.
func NewReputationRegistry(addr common.Address, c Client) *ReputationRegistry {
	return &ReputationRegistry{addr: addr, c: c}
}

// GiveFeedback submits client feedback carrying the delegated
// authorization token. The registry, not this module, enforces that the
// sender matches the token's client binding.
func (r *ReputationRegistry) GiveFeedback(ctx context.Context, agentID uint64, score uint8, feedbackURI string, feedbackAuth []byte) (common.Hash, error) {
	data, err := reputationABI.Pack("giveFeedback",
		new(big.Int).SetUint64(agentID), score, feedbackURI, feedbackAuth)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack giveFeedback: %w", err)
	}
	return r.c.Send(ctx, r.addr, data, nil, gasGiveFeedback)
}

// Summary reads the aggregate feedback for an agent.
func (r *ReputationRegistry) Summary(ctx context.Context, agentID uint64) (count uint64, average uint8, err error) {
	data, err := reputationABI.Pack("getSummary", new(big.Int).SetUint64(agentID))
	if err != nil {
		return 0, 0, fmt.Errorf("pack getSummary: %w", err)
	}

	ret, err := r.c.Call(ctx, r.addr, data)
	if err != nil {
		return 0, 0, err
	}

	outs, err := reputationABI.Unpack("getSummary", ret)
	if err != nil {
		return 0, 0, fmt.Errorf("unpack getSummary: %w", err)
	}
	return outs[0].(uint64), outs[1].(uint8), nil
}
