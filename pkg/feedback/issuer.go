package feedback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/triad-labs/triad/pkg/audit"
	"github.com/triad-labs/triad/pkg/chain"
)

var (
	// ErrAgentNotRegistered is returned when issuing is attempted before
	// the rated agent holds an on-chain id.
	ErrAgentNotRegistered = errors.New("agent not registered")

	// ErrSigningRejected is returned when the signer declines to sign the
	// delegation.
	ErrSigningRejected = errors.New("token signing rejected")
)

// DefaultTTL bounds how long an issued delegation stays valid.
const DefaultTTL = time.Hour

// Issuer mints feedback delegations for one rated agent. The signer must
// be the registry-verified owner of the agent id or the contract rejects
// the token at submission.
type Issuer struct {
	signer           Signer
	chainID          *big.Int
	identityRegistry common.Address
	audit            audit.Logger
	log              *slog.Logger
	now              func() time.Time
}

// IssuerOption customizes an Issuer.
type IssuerOption func(*Issuer)

// WithAudit attaches an audit logger.
func WithAudit(l audit.Logger) IssuerOption {
	return func(i *Issuer) { i.audit = l }
}

// WithClock overrides the expiry clock.
func WithClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) { i.now = now }
}

// NewIssuer builds an Issuer for the chain and identity registry the
// tokens are scoped to.
func NewIssuer(signer Signer, chainID *big.Int, identityRegistry common.Address, opts ...IssuerOption) *Issuer {
	i := &Issuer{
		signer:           signer,
		chainID:          chainID,
		identityRegistry: identityRegistry,
		audit:            audit.Nop(),
		log:              slog.Default().With("component", "feedback"),
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Issue signs a delegation allowing client to submit up to indexLimit
// feedback entries about agentID until ttl elapses. Returns the token
// fields and the 289-byte wire encoding.
func (i *Issuer) Issue(ctx context.Context, agentID uint64, client common.Address, indexLimit uint64, ttl time.Duration) (*Token, []byte, error) {
	if agentID == 0 {
		return nil, nil, ErrAgentNotRegistered
	}
	if indexLimit == 0 {
		return nil, nil, fmt.Errorf("index limit must be positive")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	token := &Token{
		AgentID:          agentID,
		ClientAddress:    client,
		IndexLimit:       indexLimit,
		Expiry:           uint64(i.now().Add(ttl).Unix()),
		ChainID:          i.chainID,
		IdentityRegistry: i.identityRegistry,
		SignerAddress:    i.signer.Address(),
	}

	raw, err := token.Encode(i.signer)
	if err != nil {
		if errors.Is(err, chain.ErrUserRejected) {
			return nil, nil, fmt.Errorf("%w: %v", ErrSigningRejected, err)
		}
		return nil, nil, err
	}

	_ = i.audit.Record(ctx, audit.EventFeedback, "authorize", client.Hex(), map[string]interface{}{
		"agent_id":    agentID,
		"index_limit": indexLimit,
		"expiry":      token.Expiry,
	})
	i.log.Info("feedback delegation issued",
		"agent_id", agentID, "client", client.Hex(), "expiry", token.Expiry)

	return token, raw, nil
}
