// Package chain is the boundary to the registry contract set. It wraps raw
// RPC access behind a narrow Client interface so every registry interaction
// flows through one mockable seam.
package chain

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/time/rate"
)

// Client is the consumed chain capability. One Client is bound to one
// signing identity; switching wallets means switching Clients.
type Client interface {
	// Sender returns the address transactions are signed with.
	Sender() common.Address
	// ChainID returns the connected chain's id.
	ChainID(ctx context.Context) (*big.Int, error)
	// BalanceAt returns the current balance of addr.
	BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error)
	// Call executes a read-only contract call.
	Call(ctx context.Context, to common.Address, data []byte) ([]byte, error)
	// Send signs and submits a transaction, returning its hash.
	Send(ctx context.Context, to common.Address, data []byte, value *big.Int, gasLimit uint64) (common.Hash, error)
	// WaitForReceipt blocks until the transaction confirms or the
	// configured timeout elapses (reported as an ambiguous RPCError).
	WaitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	// FilterLogs queries historical event logs.
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

// RPCClient implements Client over a JSON-RPC endpoint.
type RPCClient struct {
	eth            *ethclient.Client
	wallet         *Wallet
	receiptTimeout time.Duration
	pace           *rate.Limiter
	log            *slog.Logger
}

// RPCClientOption customizes an RPCClient.
type RPCClientOption func(*RPCClient)

// WithReceiptTimeout overrides the default receipt-wait timeout.
// On timeout the wait reports an ambiguous RPCError, not a failure: the
// transaction may still confirm later.
func WithReceiptTimeout(d time.Duration) RPCClientOption {
	return func(c *RPCClient) { c.receiptTimeout = d }
}

// WithPollInterval overrides the default receipt polling interval.
func WithPollInterval(d time.Duration) RPCClientOption {
	return func(c *RPCClient) { c.pace = rate.NewLimiter(rate.Every(d), 1) }
}

// Dial connects to an RPC endpoint with the given signing wallet.
func Dial(ctx context.Context, rpcURL string, wallet *Wallet, opts ...RPCClientOption) (*RPCClient, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, &RPCError{Op: "dial", Err: err}
	}
	return NewRPCClient(eth, wallet, opts...), nil
}

// NewRPCClient wraps an existing ethclient connection.
func NewRPCClient(eth *ethclient.Client, wallet *Wallet, opts ...RPCClientOption) *RPCClient {
	c := &RPCClient{
		eth:            eth,
		wallet:         wallet,
		receiptTimeout: 2 * time.Minute,
		pace:           rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
		log:            slog.Default().With("component", "chain"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RPCClient) Sender() common.Address { return c.wallet.Address() }

// Wallet exposes the signing identity for personal-message signatures.
func (c *RPCClient) Wallet() *Wallet { return c.wallet }

func (c *RPCClient) ChainID(ctx context.Context) (*big.Int, error) {
	id, err := c.eth.ChainID(ctx)
	if err != nil {
		return nil, &RPCError{Op: "chain-id", Err: err}
	}
	return id, nil
}

func (c *RPCClient) BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error) {
	bal, err := c.eth.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, &RPCError{Op: "balance", Err: err}
	}
	return bal, nil
}

func (c *RPCClient) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		if isRevert(err) {
			return nil, &RevertError{Reason: err.Error()}
		}
		return nil, &RPCError{Op: "call", Err: err}
	}
	return out, nil
}

func (c *RPCClient) Send(ctx context.Context, to common.Address, data []byte, value *big.Int, gasLimit uint64) (common.Hash, error) {
	chainID, err := c.ChainID(ctx)
	if err != nil {
		return common.Hash{}, err
	}

	nonce, err := c.eth.PendingNonceAt(ctx, c.wallet.Address())
	if err != nil {
		return common.Hash{}, &RPCError{Op: "nonce", Err: err}
	}
	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, &RPCError{Op: "gas-price", Err: err}
	}
	if value == nil {
		value = new(big.Int)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       &to,
		Value:    value,
		Data:     data,
	})
	signed, err := c.wallet.SignTx(tx, chainID)
	if err != nil {
		return common.Hash{}, err
	}

	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, wrapSendError("send", err)
	}

	c.log.Debug("transaction submitted", "to", to.Hex(), "tx", signed.Hash().Hex())
	return signed.Hash(), nil
}

func (c *RPCClient) WaitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, c.receiptTimeout)
	defer cancel()

	for {
		if err := c.pace.Wait(waitCtx); err != nil {
			// Ambiguous: the transaction may still confirm later.
			return nil, &RPCError{Op: "wait-receipt", Err: err}
		}

		receipt, err := c.eth.TransactionReceipt(waitCtx, txHash)
		switch {
		case err == nil:
			if receipt.Status != types.ReceiptStatusSuccessful {
				return receipt, &RevertError{TxHash: txHash}
			}
			return receipt, nil
		case errors.Is(err, ethereum.NotFound):
			continue
		default:
			return nil, &RPCError{Op: "wait-receipt", Err: err}
		}
	}
}

func (c *RPCClient) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	logs, err := c.eth.FilterLogs(ctx, q)
	if err != nil {
		return nil, &RPCError{Op: "filter-logs", Err: err}
	}
	return logs, nil
}

var _ Client = (*RPCClient)(nil)
