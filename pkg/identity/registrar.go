// Package identity manages agent registrations on the identity registry.
// Registration is idempotent: an address already bound to an agent id is
// never re-registered, and concurrent registrations of the same address
// converge on the single on-chain record.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/triad-labs/triad/pkg/audit"
	"github.com/triad-labs/triad/pkg/chain"
)

var (
	// MinBalance is the minimum sender balance checked before attempting a
	// registration transaction, 0.01 ETH in wei.
	MinBalance = big.NewInt(10_000_000_000_000_000)

	// DefaultStake is the registration stake sent with newAgent,
	// 0.005 ETH in wei.
	DefaultStake = big.NewInt(5_000_000_000_000_000)

	// DefaultRetryDelay is the pause before re-querying the registry when
	// the AgentRegistered event cannot be parsed from the receipt.
	DefaultRetryDelay = 500 * time.Millisecond
)

// ErrRegistrationFailed is returned when a registration transaction
// confirmed with a failure status and no existing record explains it.
var ErrRegistrationFailed = errors.New("registration failed")

// Record is a confirmed registry entry for one agent wallet.
type Record struct {
	AgentID uint64         `json:"agent_id"`
	Domain  string         `json:"domain"`
	Address common.Address `json:"address"`
	Role    string         `json:"role"`
}

// Registry is the identity-registry surface the registrar consumes.
// *chain.IdentityRegistry satisfies it.
type Registry interface {
	ResolveByAddress(ctx context.Context, addr common.Address) (uint64, string, error)
	Register(ctx context.Context, domain string, stake *big.Int) (common.Hash, error)
	AgentIDFromReceipt(receipt *types.Receipt) (uint64, bool)
}

// Registrar performs idempotent registration for one signing identity.
type Registrar struct {
	registry   Registry
	client     chain.Client
	stake      *big.Int
	retryDelay time.Duration
	audit      audit.Logger
	log        *slog.Logger
}

// Option customizes a Registrar.
type Option func(*Registrar)

// WithStake overrides the registration stake.
func WithStake(stake *big.Int) Option {
	return func(r *Registrar) { r.stake = stake }
}

// WithRetryDelay overrides the event-fallback re-query delay.
func WithRetryDelay(d time.Duration) Option {
	return func(r *Registrar) { r.retryDelay = d }
}

// WithAudit attaches an audit logger.
func WithAudit(l audit.Logger) Option {
	return func(r *Registrar) { r.audit = l }
}

// NewRegistrar builds a Registrar over a bound identity registry.
func NewRegistrar(registry Registry, client chain.Client, opts ...Option) *Registrar {
	r := &Registrar{
		registry:   registry,
		client:     client,
		stake:      DefaultStake,
		retryDelay: DefaultRetryDelay,
		audit:      audit.Nop(),
		log:        slog.Default().With("component", "identity"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// EnsureRegistered returns the agent record for the client's signing
// address, registering it under domain when no record exists. Calling it
// for an already-registered address performs a single read and no
// transaction.
func (r *Registrar) EnsureRegistered(ctx context.Context, domain, role string) (*Record, error) {
	addr := r.client.Sender()

	id, existingDomain, err := r.registry.ResolveByAddress(ctx, addr)
	switch {
	case err == nil:
		if existingDomain != domain {
			r.log.Warn("address registered under a different domain",
				"address", addr.Hex(), "registered", existingDomain, "requested", domain)
		}
		return &Record{AgentID: id, Domain: existingDomain, Address: addr, Role: role}, nil
	case !errors.Is(err, chain.ErrAgentNotFound):
		return nil, err
	}

	bal, err := r.client.BalanceAt(ctx, addr)
	if err != nil {
		return nil, err
	}
	if bal.Cmp(MinBalance) < 0 {
		return nil, fmt.Errorf("%w: balance %s wei, need at least %s wei",
			chain.ErrInsufficientFunds, bal, MinBalance)
	}

	txHash, err := r.registry.Register(ctx, domain, r.stake)
	if err != nil {
		if rec, ok := r.recoverExisting(ctx, addr, role, err); ok {
			return rec, nil
		}
		return nil, err
	}

	receipt, err := r.client.WaitForReceipt(ctx, txHash)
	if err != nil {
		// A revert here usually means another process won the race and the
		// address is registered after all. Re-resolve before failing.
		if rec, ok := r.recoverExisting(ctx, addr, role, err); ok {
			return rec, nil
		}
		var revert *chain.RevertError
		if errors.As(err, &revert) {
			return nil, fmt.Errorf("%w: tx %s reverted", ErrRegistrationFailed, txHash.Hex())
		}
		return nil, err
	}

	id, err = chain.ResolveAssignedID(ctx, receipt,
		r.registry.AgentIDFromReceipt,
		func(ctx context.Context) (uint64, error) {
			got, _, rerr := r.registry.ResolveByAddress(ctx, addr)
			return got, rerr
		},
		r.retryDelay,
	)
	if err != nil {
		return nil, fmt.Errorf("registration confirmed but agent id unresolved: %w", err)
	}

	_ = r.audit.Record(ctx, audit.EventRegistry, "register", domain, map[string]interface{}{
		"agent_id": id,
		"address":  addr.Hex(),
		"role":     role,
		"tx":       txHash.Hex(),
	})
	r.log.Info("agent registered", "agent_id", id, "domain", domain, "role", role)

	return &Record{AgentID: id, Domain: domain, Address: addr, Role: role}, nil
}

// recoverExisting re-resolves the address after a failed registration
// attempt. It reports success only when the failure was a revert and the
// address turns out to be registered.
func (r *Registrar) recoverExisting(ctx context.Context, addr common.Address, role string, cause error) (*Record, bool) {
	var revert *chain.RevertError
	if !errors.As(cause, &revert) {
		return nil, false
	}
	id, domain, err := r.registry.ResolveByAddress(ctx, addr)
	if err != nil {
		return nil, false
	}
	r.log.Info("registration raced, reusing existing record", "agent_id", id, "address", addr.Hex())
	return &Record{AgentID: id, Domain: domain, Address: addr, Role: role}, true
}
