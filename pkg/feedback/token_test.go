package feedback

import (
	"context"
	"encoding/binary"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triad-labs/triad/pkg/chain"
)

const (
	proposerKey = "0x59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"
	clientHex   = "0x90F79bf6EB2c4f870365E785982E1f101E93b906"
)

var registryAddr = common.HexToAddress("0x1000000000000000000000000000000000000001")

func testWallet(t *testing.T) *chain.Wallet {
	t.Helper()
	w, err := chain.NewWallet(proposerKey)
	require.NoError(t, err)
	return w
}

func testToken(signer common.Address) *Token {
	return &Token{
		AgentID:          3,
		ClientAddress:    common.HexToAddress(clientHex),
		IndexLimit:       5,
		Expiry:           uint64(time.Now().Add(time.Hour).Unix()),
		ChainID:          big.NewInt(31337),
		IdentityRegistry: registryAddr,
		SignerAddress:    signer,
	}
}

func TestToken_WireLayout(t *testing.T) {
	w := testWallet(t)
	token := testToken(w.Address())

	structBytes, err := token.EncodeStruct()
	require.NoError(t, err)
	require.Len(t, structBytes, StructSize)

	// Slot 0: agentId, left-padded uint256.
	assert.Equal(t, uint64(3), binary.BigEndian.Uint64(structBytes[24:32]))
	// Slot 1: clientAddress in the low 20 bytes.
	assert.Equal(t, token.ClientAddress.Bytes(), structBytes[44:64])
	// Slot 2: indexLimit, left-padded.
	assert.Equal(t, uint64(5), binary.BigEndian.Uint64(structBytes[88:96]))
	// Slot 4: chainId.
	assert.Equal(t, uint64(31337), binary.BigEndian.Uint64(structBytes[152:160]))
	// Slot 6: signerAddress.
	assert.Equal(t, w.Address().Bytes(), structBytes[204:224])

	raw, err := token.Encode(w)
	require.NoError(t, err)
	require.Len(t, raw, TokenSize)
	assert.Equal(t, structBytes, raw[:StructSize])
}

func TestToken_RoundTrip(t *testing.T) {
	w := testWallet(t)
	token := testToken(w.Address())

	raw, err := token.Encode(w)
	require.NoError(t, err)

	decoded, sig, err := Decode(raw)
	require.NoError(t, err)
	require.Len(t, sig, SignatureSize)
	assert.Equal(t, token.AgentID, decoded.AgentID)
	assert.Equal(t, token.ClientAddress, decoded.ClientAddress)
	assert.Equal(t, token.IndexLimit, decoded.IndexLimit)
	assert.Equal(t, token.Expiry, decoded.Expiry)
	assert.Zero(t, token.ChainID.Cmp(decoded.ChainID))
	assert.Equal(t, token.IdentityRegistry, decoded.IdentityRegistry)
	assert.Equal(t, token.SignerAddress, decoded.SignerAddress)
}

func TestVerify(t *testing.T) {
	w := testWallet(t)
	token := testToken(w.Address())
	raw, err := token.Encode(w)
	require.NoError(t, err)

	got, err := Verify(raw, token.ClientAddress, time.Now())
	require.NoError(t, err)
	assert.Equal(t, token.AgentID, got.AgentID)
}

func TestVerify_Expired(t *testing.T) {
	w := testWallet(t)
	token := testToken(w.Address())
	token.Expiry = uint64(time.Now().Add(-time.Minute).Unix())
	raw, err := token.Encode(w)
	require.NoError(t, err)

	_, err = Verify(raw, token.ClientAddress, time.Now())
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerify_WrongClient(t *testing.T) {
	w := testWallet(t)
	token := testToken(w.Address())
	raw, err := token.Encode(w)
	require.NoError(t, err)

	_, err = Verify(raw, common.HexToAddress("0xdead"), time.Now())
	assert.ErrorIs(t, err, ErrWrongClient)
}

func TestVerify_TamperedField(t *testing.T) {
	w := testWallet(t)
	raw, err := testToken(w.Address()).Encode(w)
	require.NoError(t, err)

	// Bump agentId after signing.
	raw[31]++

	_, err = Verify(raw, testToken(w.Address()).ClientAddress, time.Now())
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestVerify_ForgedSigner(t *testing.T) {
	w := testWallet(t)
	token := testToken(w.Address())
	// Declare someone else as the signer but sign with our own key.
	token.SignerAddress = common.HexToAddress("0xbeef")
	raw, err := token.Encode(w)
	require.NoError(t, err)

	_, err = Verify(raw, token.ClientAddress, time.Now())
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestDecode_WrongSize(t *testing.T) {
	_, _, err := Decode(make([]byte, TokenSize-1))
	assert.ErrorIs(t, err, ErrMalformedToken)

	_, _, err = Decode(nil)
	assert.ErrorIs(t, err, ErrMalformedToken)
}

func TestIssuer(t *testing.T) {
	w := testWallet(t)
	issuer := NewIssuer(w, big.NewInt(31337), registryAddr)

	token, raw, err := issuer.Issue(context.Background(), 3,
		common.HexToAddress(clientHex), 5, time.Hour)
	require.NoError(t, err)
	require.Len(t, raw, TokenSize)
	assert.Equal(t, w.Address(), token.SignerAddress)

	got, err := Verify(raw, token.ClientAddress, time.Now())
	require.NoError(t, err)
	assert.Equal(t, uint64(5), got.IndexLimit)
}

func TestIssuer_RequiresRegistration(t *testing.T) {
	issuer := NewIssuer(testWallet(t), big.NewInt(31337), registryAddr)

	_, _, err := issuer.Issue(context.Background(), 0, common.HexToAddress(clientHex), 5, time.Hour)
	assert.ErrorIs(t, err, ErrAgentNotRegistered)
}

func TestIssuer_RejectsZeroIndexLimit(t *testing.T) {
	issuer := NewIssuer(testWallet(t), big.NewInt(31337), registryAddr)

	_, _, err := issuer.Issue(context.Background(), 3, common.HexToAddress(clientHex), 0, time.Hour)
	assert.Error(t, err)
}
