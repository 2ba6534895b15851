package chain

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
)

// ResolveAssignedID recovers an on-chain-assigned identifier after a
// confirmed transaction. The primary path parses the receipt's event logs;
// when that fails the registry is re-queried after a short delay. The
// state read is authoritative either way.
func ResolveAssignedID(
	ctx context.Context,
	receipt *types.Receipt,
	fromReceipt func(*types.Receipt) (uint64, bool),
	requery func(context.Context) (uint64, error),
	retryDelay time.Duration,
) (uint64, error) {
	if id, ok := fromReceipt(receipt); ok {
		return id, nil
	}

	select {
	case <-time.After(retryDelay):
	case <-ctx.Done():
		return 0, &RPCError{Op: "resolve-assigned-id", Err: ctx.Err()}
	}

	return requery(ctx)
}
