package chain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrUserRejected is returned when the signing identity declines to
	// sign. Recoverable: the caller may re-invoke the step.
	ErrUserRejected = errors.New("signer rejected request")

	// ErrAgentNotFound is returned by registry reads for an address or id
	// with no registration.
	ErrAgentNotFound = errors.New("agent not found")

	// ErrInsufficientFunds is returned before submitting a transaction
	// when the sender balance is below the required minimum.
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// RevertError reports an on-chain rejection, surfaced verbatim with the
// revert reason so callers can distinguish logic bugs from stale state.
type RevertError struct {
	Reason string
	TxHash common.Hash
}

func (e *RevertError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("transaction reverted (tx %s)", e.TxHash.Hex())
	}
	return fmt.Sprintf("transaction reverted: %s (tx %s)", e.Reason, e.TxHash.Hex())
}

// RPCError reports a network or timeout ambiguity. The underlying
// transaction may still confirm; callers must re-check on-chain state
// before resubmitting.
type RPCError struct {
	Op  string
	Err error
}

func (e *RPCError) Error() string { return fmt.Sprintf("rpc %s: %v", e.Op, e.Err) }
func (e *RPCError) Unwrap() error { return e.Err }

// wrapSendError classifies a transaction submission failure into the
// protocol error taxonomy.
func wrapSendError(op string, err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "user denied") || strings.Contains(msg, "user rejected"):
		return fmt.Errorf("%w: %v", ErrUserRejected, err)
	case strings.Contains(msg, "execution reverted") || strings.Contains(msg, "revert"):
		return &RevertError{Reason: err.Error()}
	case strings.Contains(msg, "insufficient funds"):
		return fmt.Errorf("%w: %v", ErrInsufficientFunds, err)
	default:
		return &RPCError{Op: op, Err: err}
	}
}

// isRevert reports whether a contract call failed with an on-chain revert
// rather than a transport problem.
func isRevert(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "execution reverted") || strings.Contains(msg, "revert")
}
