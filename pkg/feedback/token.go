// Package feedback builds and verifies delegated feedback-authorization
// tokens. The byte layout is consumed by the reputation registry contract
// and must not change: 224 bytes of ABI-encoded struct followed by a
// 65-byte recoverable signature.
package feedback

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/triad-labs/triad/pkg/chain"
)

// Wire sizes of the encoded token.
const (
	StructSize    = 224
	SignatureSize = 65
	TokenSize     = StructSize + SignatureSize
)

var (
	// ErrMalformedToken is returned for an encoded token of the wrong size
	// or with undecodable struct bytes.
	ErrMalformedToken = errors.New("malformed feedback token")

	// ErrTokenExpired is returned when the token's expiry has elapsed.
	ErrTokenExpired = errors.New("feedback token expired")

	// ErrBadSignature is returned when the recovered signer does not match
	// the token's declared signer.
	ErrBadSignature = errors.New("feedback token signature mismatch")

	// ErrWrongClient is returned when a submitter address does not match
	// the token's client binding.
	ErrWrongClient = errors.New("feedback token bound to another client")
)

// Token is the delegation a rated agent signs for one client address.
// Field order matches the contract's struct decoding and is load-bearing.
type Token struct {
	AgentID          uint64         `json:"agent_id"`
	ClientAddress    common.Address `json:"client_address"`
	IndexLimit       uint64         `json:"index_limit"`
	Expiry           uint64         `json:"expiry"`
	ChainID          *big.Int       `json:"chain_id"`
	IdentityRegistry common.Address `json:"identity_registry"`
	SignerAddress    common.Address `json:"signer_address"`
}

var tokenArgs = abi.Arguments{
	{Name: "agentId", Type: mustType("uint256")},
	{Name: "clientAddress", Type: mustType("address")},
	{Name: "indexLimit", Type: mustType("uint64")},
	{Name: "expiry", Type: mustType("uint256")},
	{Name: "chainId", Type: mustType("uint256")},
	{Name: "identityRegistry", Type: mustType("address")},
	{Name: "signerAddress", Type: mustType("address")},
}

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(fmt.Sprintf("feedback: bad abi type %q: %v", t, err))
	}
	return typ
}

// EncodeStruct packs the seven fields into the 224-byte struct encoding.
func (t *Token) EncodeStruct() ([]byte, error) {
	chainID := t.ChainID
	if chainID == nil {
		chainID = new(big.Int)
	}
	packed, err := tokenArgs.Pack(
		new(big.Int).SetUint64(t.AgentID),
		t.ClientAddress,
		t.IndexLimit,
		new(big.Int).SetUint64(t.Expiry),
		chainID,
		t.IdentityRegistry,
		t.SignerAddress,
	)
	if err != nil {
		return nil, fmt.Errorf("pack feedback token: %w", err)
	}
	return packed, nil
}

// StructHash returns keccak256 over the struct encoding. This is the
// message the signer signs under EIP-191.
func (t *Token) StructHash() ([32]byte, error) {
	packed, err := t.EncodeStruct()
	if err != nil {
		return [32]byte{}, err
	}
	return crypto.Keccak256Hash(packed), nil
}

// Signer produces EIP-191 personal-message signatures for one address.
// *chain.Wallet satisfies it.
type Signer interface {
	Address() common.Address
	SignPersonal(data []byte) ([]byte, error)
}

// Encode signs the token and returns the full 289-byte wire form.
func (t *Token) Encode(signer Signer) ([]byte, error) {
	structBytes, err := t.EncodeStruct()
	if err != nil {
		return nil, err
	}
	hash := crypto.Keccak256Hash(structBytes)
	sig, err := signer.SignPersonal(hash[:])
	if err != nil {
		return nil, err
	}
	if len(sig) != SignatureSize {
		return nil, fmt.Errorf("%w: signature length %d", ErrMalformedToken, len(sig))
	}
	return append(structBytes, sig...), nil
}

// Decode splits and unpacks an encoded token into its fields and
// signature. It does not verify the signature; use Verify.
func Decode(raw []byte) (*Token, []byte, error) {
	if len(raw) != TokenSize {
		return nil, nil, fmt.Errorf("%w: %d bytes, want %d", ErrMalformedToken, len(raw), TokenSize)
	}
	structBytes, sig := raw[:StructSize], raw[StructSize:]

	vals, err := tokenArgs.Unpack(structBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	token := &Token{
		AgentID:          vals[0].(*big.Int).Uint64(),
		ClientAddress:    vals[1].(common.Address),
		IndexLimit:       vals[2].(uint64),
		Expiry:           vals[3].(*big.Int).Uint64(),
		ChainID:          vals[4].(*big.Int),
		IdentityRegistry: vals[5].(common.Address),
		SignerAddress:    vals[6].(common.Address),
	}
	return token, append([]byte(nil), sig...), nil
}

// Verify checks an encoded token locally the way the contract will:
// recover the signer from the struct hash and signature, match it against
// the declared signer, and require an unexpired token. The caller passes
// the submitting client address so the binding is checked up front
// instead of as an on-chain revert.
func Verify(raw []byte, submitter common.Address, now time.Time) (*Token, error) {
	token, sig, err := Decode(raw)
	if err != nil {
		return nil, err
	}

	if token.Expiry <= uint64(now.Unix()) {
		return nil, fmt.Errorf("%w: expired at %d", ErrTokenExpired, token.Expiry)
	}
	if submitter != (common.Address{}) && submitter != token.ClientAddress {
		return nil, fmt.Errorf("%w: token for %s, submitter %s",
			ErrWrongClient, token.ClientAddress.Hex(), submitter.Hex())
	}

	hash, err := token.StructHash()
	if err != nil {
		return nil, err
	}
	recovered, err := chain.RecoverPersonal(hash[:], sig)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	if recovered != token.SignerAddress {
		return nil, fmt.Errorf("%w: recovered %s, declared %s",
			ErrBadSignature, recovered.Hex(), token.SignerAddress.Hex())
	}
	return token, nil
}
