package rebalance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Four assets, 4000 total value before and after at the given prices.
func balancedRequest() *Request {
	return &Request{
		OldBalances:      []string{"100", "50", "20", "1000"},
		NewBalances:      []string{"50", "50", "30", "1000"},
		Prices:           []string{"10", "20", "50", "1"},
		MinAllocationPct: "10",
		MaxAllocationPct: "40",
	}
}

func TestBuildPlan_Balanced(t *testing.T) {
	plan, err := BuildPlan(balancedRequest(), 3, "proposer.test", 1700000000)
	require.NoError(t, err)

	assert.Equal(t, "4000", plan.OldTotalValue)
	assert.Equal(t, "4000", plan.NewTotalValue)
	require.Len(t, plan.NewAllocations, 4)

	for i, alloc := range plan.NewAllocations {
		assert.Equal(t, i, alloc.TokenIndex)
	}
	assert.InDelta(t, 12.5, plan.NewAllocations[0].AllocationPct, 0.001)
	assert.InDelta(t, 25.0, plan.NewAllocations[1].AllocationPct, 0.001)
	assert.InDelta(t, 37.5, plan.NewAllocations[2].AllocationPct, 0.001)
	assert.InDelta(t, 25.0, plan.NewAllocations[3].AllocationPct, 0.001)
	assert.Equal(t, uint64(3), plan.AgentID)
}

func TestBuildPlan_ValueNotPreserved(t *testing.T) {
	req := balancedRequest()
	req.NewBalances = []string{"50", "50", "30", "999"}

	_, err := BuildPlan(req, 3, "proposer.test", 0)
	assert.ErrorIs(t, err, ErrValueNotPreserved)
}

func TestBuildPlan_LengthMismatch(t *testing.T) {
	req := balancedRequest()
	req.Prices = req.Prices[:3]

	_, err := BuildPlan(req, 3, "proposer.test", 0)
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestBuildPlan_MalformedAmount(t *testing.T) {
	req := balancedRequest()
	req.OldBalances[0] = "12.5"

	_, err := BuildPlan(req, 3, "proposer.test", 0)
	assert.ErrorIs(t, err, ErrMalformedAmount)
}

func TestTotalValue_WeiScale(t *testing.T) {
	// Values beyond uint64 must not overflow.
	total, err := TotalValue(
		[]string{"1000000000000000000000"},
		[]string{"1000000000000000000000"},
	)
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000000000000000000000000000", total.String())
}

func TestWithinBounds(t *testing.T) {
	cases := []struct {
		name     string
		balances []string
		prices   []string
		min, max int64
		want     bool
	}{
		{"all inside", []string{"50", "75", "30", "1000"}, []string{"10", "20", "50", "1"}, 10, 40, true},
		{"one above max", []string{"250", "25", "10", "1000"}, []string{"10", "20", "50", "1"}, 10, 40, false},
		{"one below min", []string{"10", "90", "39", "50"}, []string{"10", "20", "50", "1"}, 10, 40, false},
		{"zero total", []string{"0"}, []string{"0"}, 10, 40, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := WithinBounds(tc.balances, tc.prices, tc.min, tc.max)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseRequest_JSON(t *testing.T) {
	raw := []byte(`{
		"old_balances": ["100", "50"],
		"new_balances": ["50", "75"],
		"prices": ["10", "20"]
	}`)

	req, err := ParseRequest(raw, ".json")
	require.NoError(t, err)
	assert.Equal(t, []string{"100", "50"}, req.OldBalances)
	assert.Equal(t, DefaultMinAllocationPct, req.MinAllocationPct)
	assert.Equal(t, DefaultMaxAllocationPct, req.MaxAllocationPct)
}

func TestParseRequest_YAML(t *testing.T) {
	raw := []byte(`
old_balances: ["100", "50"]
new_balances: ["50", "75"]
prices: ["10", "20"]
min_allocation_pct: "5"
max_allocation_pct: "60"
`)

	req, err := ParseRequest(raw, ".yaml")
	require.NoError(t, err)
	assert.Equal(t, "5", req.MinAllocationPct)
	assert.Equal(t, "60", req.MaxAllocationPct)
}

func TestParseRequest_SchemaRejects(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"missing prices", `{"old_balances":["1"],"new_balances":["1"]}`},
		{"numeric balances", `{"old_balances":[100],"new_balances":["1"],"prices":["1"]}`},
		{"non-decimal string", `{"old_balances":["0x10"],"new_balances":["1"],"prices":["1"]}`},
		{"unknown field", `{"old_balances":["1"],"new_balances":["1"],"prices":["1"],"slippage":"1"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseRequest([]byte(tc.raw), ".json")
			assert.Error(t, err)
		})
	}
}

func TestParseRequest_UnsupportedFormat(t *testing.T) {
	_, err := ParseRequest([]byte("old_balances = [\"1\"]"), ".toml")
	assert.Error(t, err)
}
