// Package rebalance builds portfolio rebalancing plans and checks their
// invariants: total value preservation and per-asset allocation bounds.
// Amounts are decimal strings of wei-scale integers; canonical JSON cannot
// carry them as numbers.
package rebalance

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
)

var (
	// ErrValueNotPreserved is returned when the proposed balances change
	// the total portfolio value at the given prices.
	ErrValueNotPreserved = errors.New("portfolio value not preserved")

	// ErrMalformedAmount is returned for a balance or price that is not a
	// non-negative decimal integer string.
	ErrMalformedAmount = errors.New("malformed amount")

	// ErrLengthMismatch is returned when balances and prices disagree on
	// the number of assets.
	ErrLengthMismatch = errors.New("balances and prices length mismatch")
)

// Allocation is one asset's share of the proposed portfolio.
type Allocation struct {
	TokenIndex    int     `json:"token_index"`
	Balance       string  `json:"balance"`
	Value         string  `json:"value"`
	AllocationPct float64 `json:"allocation_pct"`
}

// Plan is a complete rebalancing proposal. It is immutable once built;
// downstream components identify it by content digest.
type Plan struct {
	OldBalances      []string     `json:"old_balances"`
	NewBalances      []string     `json:"new_balances"`
	Prices           []string     `json:"prices"`
	OldTotalValue    string       `json:"old_total_value"`
	NewTotalValue    string       `json:"new_total_value"`
	NewAllocations   []Allocation `json:"new_allocations"`
	MinAllocationPct string       `json:"min_allocation_pct"`
	MaxAllocationPct string       `json:"max_allocation_pct"`
	Timestamp        uint64       `json:"timestamp"`
	AgentID          uint64       `json:"agent_id"`
	AgentDomain      string       `json:"agent_domain"`
}

// parseAmount parses a non-negative decimal integer string.
func parseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("%w: %q", ErrMalformedAmount, s)
	}
	return v, nil
}

// TotalValue sums balance*price across assets.
func TotalValue(balances, prices []string) (*big.Int, error) {
	if len(balances) != len(prices) {
		return nil, ErrLengthMismatch
	}
	total := new(big.Int)
	for i := range balances {
		bal, err := parseAmount(balances[i])
		if err != nil {
			return nil, err
		}
		price, err := parseAmount(prices[i])
		if err != nil {
			return nil, err
		}
		total.Add(total, new(big.Int).Mul(bal, price))
	}
	return total, nil
}

// WithinBounds reports whether every asset's allocation sits inside
// [minPct, maxPct] percent of the total. Comparisons use integer
// cross-multiplication, no floating point.
func WithinBounds(balances, prices []string, minPct, maxPct int64) (bool, error) {
	total, err := TotalValue(balances, prices)
	if err != nil {
		return false, err
	}
	if total.Sign() == 0 {
		return false, nil
	}

	lo := big.NewInt(minPct)
	hi := big.NewInt(maxPct)
	for i := range balances {
		bal, _ := parseAmount(balances[i])
		price, _ := parseAmount(prices[i])
		value := new(big.Int).Mul(bal, price)

		// value*100 < total*minPct  ->  below minimum
		scaled := new(big.Int).Mul(value, big.NewInt(100))
		if scaled.Cmp(new(big.Int).Mul(total, lo)) < 0 {
			return false, nil
		}
		if scaled.Cmp(new(big.Int).Mul(total, hi)) > 0 {
			return false, nil
		}
	}
	return true, nil
}

// BuildPlan validates a request and produces the rebalancing plan.
// A value-preservation failure is an error; allocation bound violations
// only warn, the validator scores them later.
func BuildPlan(req *Request, agentID uint64, agentDomain string, timestamp uint64) (*Plan, error) {
	if len(req.OldBalances) == 0 ||
		len(req.OldBalances) != len(req.NewBalances) ||
		len(req.OldBalances) != len(req.Prices) {
		return nil, ErrLengthMismatch
	}

	oldTotal, err := TotalValue(req.OldBalances, req.Prices)
	if err != nil {
		return nil, err
	}
	newTotal, err := TotalValue(req.NewBalances, req.Prices)
	if err != nil {
		return nil, err
	}
	if oldTotal.Cmp(newTotal) != 0 {
		return nil, fmt.Errorf("%w: old %s, new %s", ErrValueNotPreserved, oldTotal, newTotal)
	}

	minPct, err := parseAmount(req.MinAllocationPct)
	if err != nil {
		return nil, err
	}
	maxPct, err := parseAmount(req.MaxAllocationPct)
	if err != nil {
		return nil, err
	}

	log := slog.Default().With("component", "rebalance")
	allocations := make([]Allocation, 0, len(req.NewBalances))
	for i := range req.NewBalances {
		bal, _ := parseAmount(req.NewBalances[i])
		price, _ := parseAmount(req.Prices[i])
		value := new(big.Int).Mul(bal, price)

		pct := allocationPct(value, newTotal)
		if pct < float64(minPct.Int64()) {
			log.Warn("allocation below minimum", "token", i, "pct", pct, "min", minPct)
		}
		if pct > float64(maxPct.Int64()) {
			log.Warn("allocation above maximum", "token", i, "pct", pct, "max", maxPct)
		}
		allocations = append(allocations, Allocation{
			TokenIndex:    i,
			Balance:       req.NewBalances[i],
			Value:         value.String(),
			AllocationPct: pct,
		})
	}

	return &Plan{
		OldBalances:      req.OldBalances,
		NewBalances:      req.NewBalances,
		Prices:           req.Prices,
		OldTotalValue:    oldTotal.String(),
		NewTotalValue:    newTotal.String(),
		NewAllocations:   allocations,
		MinAllocationPct: req.MinAllocationPct,
		MaxAllocationPct: req.MaxAllocationPct,
		Timestamp:        timestamp,
		AgentID:          agentID,
		AgentDomain:      agentDomain,
	}, nil
}

// allocationPct computes value/total as a percentage rounded to two
// decimals. Rounding happens in integer centi-percent to keep the result
// stable across platforms.
func allocationPct(value, total *big.Int) float64 {
	if total.Sign() == 0 {
		return 0
	}
	scaled := new(big.Int).Mul(value, big.NewInt(10_000))
	scaled.Add(scaled, new(big.Int).Rsh(total, 1))
	scaled.Div(scaled, total)
	return float64(scaled.Int64()) / 100
}
