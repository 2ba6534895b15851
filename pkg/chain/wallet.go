package chain

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Wallet holds one agent's signing identity. Every agent is a long-lived
// actor bound to exactly one address.
type Wallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewWallet parses a hex-encoded private key (with or without 0x prefix).
func NewWallet(hexKey string) (*Wallet, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &Wallet{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// Address returns the wallet's account address.
func (w *Wallet) Address() common.Address { return w.address }

// SignTx signs a transaction for the given chain.
func (w *Wallet) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), w.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUserRejected, err)
	}
	return signed, nil
}

// SignPersonal produces a 65-byte recoverable signature over data using the
// EIP-191 personal-message convention, domain-separating it from raw
// transaction signing. V is in the 27/28 range expected by on-chain
// ecrecover.
func (w *Wallet) SignPersonal(data []byte) ([]byte, error) {
	digest := accounts.TextHash(data)
	sig, err := crypto.Sign(digest, w.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUserRejected, err)
	}
	sig[64] += 27
	return sig, nil
}

// RecoverPersonal recovers the address that produced a SignPersonal
// signature over data.
func RecoverPersonal(data, sig []byte) (common.Address, error) {
	if len(sig) != 65 {
		return common.Address{}, fmt.Errorf("invalid signature length: %d", len(sig))
	}
	normalized := make([]byte, 65)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash(data), normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("signature recovery failed: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
