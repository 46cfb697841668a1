package commission

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestResolveTier_Coverage(t *testing.T) {
	engine := NewEngine(nil)

	for _, s := range []string{"0", "0.01", "99999.99", "100000", "100000.01", "312500", "999999", "1500000", "2000000", "2000000.01", "2500000", "987654321"} {
		x := dec(s)
		tier, err := engine.ResolveTier(x)
		require.NoError(t, err, s)
		assert.True(t, tier.Contains(x), "tier %s should contain %s", tier.ID, s)
	}
}

func TestResolveTier_Monotonic(t *testing.T) {
	engine := NewEngine(nil)

	prev := decimal.Zero
	for x := int64(0); x <= 3000000; x += 12500 {
		tier, err := engine.ResolveTier(decimal.NewFromInt(x))
		require.NoError(t, err)
		assert.True(t, tier.CommissionRate.GreaterThanOrEqual(prev), "rate dropped at %d", x)
		prev = tier.CommissionRate
	}
}

func TestResolveTier_InclusiveUpperBounds(t *testing.T) {
	engine := NewEngine(nil)

	tests := []struct {
		production string
		wantID     string
		wantRate   int64
	}{
		{"0", "tier1", 25},
		{"100000", "tier1", 25},
		{"100000.01", "tier2", 30},
		{"250000", "tier2", 30},
		{"250000.01", "tier3", 35},
		{"500000", "tier3", 35},
		{"500000.01", "tier4", 40},
		{"1000000", "tier4", 40},
		{"1000000.01", "tier5", 45},
		{"2000000", "tier5", 45},
		{"2000000.01", "tier6", 50},
		{"2500000", "tier6", 50},
	}

	for _, tt := range tests {
		t.Run(tt.production, func(t *testing.T) {
			tier, err := engine.ResolveTier(dec(tt.production))
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, tier.ID)
			assert.True(t, tier.CommissionRate.Equal(decimal.NewFromInt(tt.wantRate)))
		})
	}
}

func TestResolveTier_ZeroIsTierOne(t *testing.T) {
	tier, err := NewEngine(nil).ResolveTier(decimal.Zero)
	require.NoError(t, err)

	assert.Equal(t, "tier1", tier.ID)
	assert.True(t, tier.MinAmount.IsZero())
	require.NotNil(t, tier.MaxAmount)
	assert.True(t, tier.MaxAmount.Equal(decimal.NewFromInt(100000)))
}

func TestResolveTier_TopTierIsUnbounded(t *testing.T) {
	tier, err := NewEngine(nil).ResolveTier(decimal.NewFromInt(2500000))
	require.NoError(t, err)

	assert.Equal(t, "tier6", tier.ID)
	assert.True(t, tier.Unbounded())
	assert.Nil(t, tier.MonthlyMax)
}

func TestResolveTier_RejectsNegative(t *testing.T) {
	_, err := NewEngine(nil).ResolveTier(dec("-1"))

	require.ErrorIs(t, err, ErrInvalidInput)
	var inputErr *InputError
	require.ErrorAs(t, err, &inputErr)
	assert.Equal(t, "annual_production", inputErr.Field)
}

func sparseTable(t *testing.T) *TierTable {
	t.Helper()
	// A table starting above zero cannot be built through NewTierTable, so
	// the miss path is exercised on a hand-built one.
	upper := decimal.NewFromInt(500)
	return &TierTable{tiers: []CommissionTier{
		{ID: "low", MinAmount: decimal.NewFromInt(100), MaxAmount: &upper, CommissionRate: decimal.NewFromInt(10)},
		{ID: "high", MinAmount: upper, CommissionRate: decimal.NewFromInt(20)},
	}}
}

func TestResolveTier_FallbackLowestLogs(t *testing.T) {
	var buf bytes.Buffer
	engine := NewEngine(sparseTable(t), WithLogger(zerolog.New(&buf)))

	tier, err := engine.ResolveTier(decimal.NewFromInt(50))
	require.NoError(t, err)
	assert.Equal(t, "low", tier.ID)
	assert.Contains(t, buf.String(), "falling back to lowest tier")
}

func TestResolveTier_FallbackStrict(t *testing.T) {
	engine := NewEngine(sparseTable(t), WithFallback(FallbackStrict))

	_, err := engine.ResolveTier(decimal.NewFromInt(50))
	assert.ErrorIs(t, err, ErrNoMatchingTier)
}

func TestNewTierTable_Validation(t *testing.T) {
	bound := func(v int64) *decimal.Decimal {
		d := decimal.NewFromInt(v)
		return &d
	}

	tests := []struct {
		name  string
		tiers []CommissionTier
	}{
		{"empty", nil},
		{"missing id", []CommissionTier{{MinAmount: decimal.Zero, CommissionRate: decimal.NewFromInt(10)}}},
		{"first not zero", []CommissionTier{{ID: "a", MinAmount: decimal.NewFromInt(1), CommissionRate: decimal.NewFromInt(10)}}},
		{"rate above 100", []CommissionTier{{ID: "a", MinAmount: decimal.Zero, CommissionRate: decimal.NewFromInt(101)}}},
		{"gap", []CommissionTier{
			{ID: "a", MinAmount: decimal.Zero, MaxAmount: bound(100), CommissionRate: decimal.NewFromInt(10)},
			{ID: "b", MinAmount: decimal.NewFromInt(150), CommissionRate: decimal.NewFromInt(20)},
		}},
		{"rate not increasing", []CommissionTier{
			{ID: "a", MinAmount: decimal.Zero, MaxAmount: bound(100), CommissionRate: decimal.NewFromInt(20)},
			{ID: "b", MinAmount: decimal.NewFromInt(100), CommissionRate: decimal.NewFromInt(20)},
		}},
		{"unbounded in the middle", []CommissionTier{
			{ID: "a", MinAmount: decimal.Zero, CommissionRate: decimal.NewFromInt(10)},
			{ID: "b", MinAmount: decimal.NewFromInt(100), CommissionRate: decimal.NewFromInt(20)},
		}},
		{"top bounded", []CommissionTier{
			{ID: "a", MinAmount: decimal.Zero, MaxAmount: bound(100), CommissionRate: decimal.NewFromInt(10)},
		}},
		{"max below min", []CommissionTier{
			{ID: "a", MinAmount: decimal.Zero, MaxAmount: bound(0), CommissionRate: decimal.NewFromInt(10)},
			{ID: "b", MinAmount: decimal.Zero, CommissionRate: decimal.NewFromInt(20)},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTierTable(tt.tiers)
			assert.ErrorIs(t, err, ErrInvalidTierTable)
		})
	}
}

func TestNewTierTable_DerivesMonthlyBounds(t *testing.T) {
	table := DefaultTierTable()

	tier2, ok := table.Lookup("tier2")
	require.True(t, ok)
	assert.True(t, tier2.MonthlyMin.Equal(dec("100000").Div(twelve)))
	require.NotNil(t, tier2.MonthlyMax)
	assert.True(t, tier2.MonthlyMax.Equal(dec("250000").Div(twelve)))
}

func TestTierTable_IsolatedFromCallers(t *testing.T) {
	input := DefaultTiers()
	table, err := NewTierTable(input)
	require.NoError(t, err)

	*input[0].MaxAmount = decimal.NewFromInt(1)
	rows := table.Tiers()
	rows[0].ID = "changed"

	tier, ok := table.Match(decimal.NewFromInt(50000))
	require.True(t, ok)
	assert.Equal(t, "tier1", tier.ID)
	assert.True(t, tier.MaxAmount.Equal(decimal.NewFromInt(100000)))
}

func TestTierTable_Next(t *testing.T) {
	table := DefaultTierTable()

	next, ok := table.Next("tier3")
	require.True(t, ok)
	assert.Equal(t, "tier4", next.ID)

	_, ok = table.Next("tier6")
	assert.False(t, ok)
}

func TestParseFallbackPolicy(t *testing.T) {
	p, err := ParseFallbackPolicy("")
	require.NoError(t, err)
	assert.Equal(t, FallbackLowest, p)

	p, err = ParseFallbackPolicy("strict")
	require.NoError(t, err)
	assert.Equal(t, FallbackStrict, p)

	_, err = ParseFallbackPolicy("highest")
	assert.Error(t, err)
}
