/**
 * @description
 * Commission tier table and resolver. A tier maps a bracket of annual signed
 * production to the share of the platform commission a mandatary keeps.
 *
 * @notes
 * - Upper bounds are inclusive: production equal to a tier's MaxAmount belongs to
 *   that tier, not to the next one. Adjacent tiers share the boundary value and the
 *   resolver returns the first match.
 * - A table is immutable once built; Resolve is safe for concurrent use.
 */
package commission

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidTierTable = errors.New("invalid commission tier table")
	ErrNoMatchingTier   = errors.New("no commission tier matches production")
)

var twelve = decimal.NewFromInt(12)

// CommissionTier is one production bracket of the tier table.
type CommissionTier struct {
	ID             string           `json:"id"`
	MinAmount      decimal.Decimal  `json:"min_amount"`
	MaxAmount      *decimal.Decimal `json:"max_amount"`
	MonthlyMin     decimal.Decimal  `json:"monthly_min"`
	MonthlyMax     *decimal.Decimal `json:"monthly_max"`
	CommissionRate decimal.Decimal  `json:"commission_rate"`
}

// Contains reports whether annual production x falls inside the tier bounds.
func (t CommissionTier) Contains(x decimal.Decimal) bool {
	if x.LessThan(t.MinAmount) {
		return false
	}
	return t.MaxAmount == nil || x.LessThanOrEqual(*t.MaxAmount)
}

// Unbounded reports whether the tier has no upper limit.
func (t CommissionTier) Unbounded() bool {
	return t.MaxAmount == nil
}

// FallbackPolicy decides what Engine.ResolveTier does when no tier matches.
type FallbackPolicy int

const (
	// FallbackLowest returns the first tier and logs a warning.
	FallbackLowest FallbackPolicy = iota
	// FallbackStrict returns ErrNoMatchingTier.
	FallbackStrict
)

// ParseFallbackPolicy maps a configuration value to a policy.
func ParseFallbackPolicy(s string) (FallbackPolicy, error) {
	switch s {
	case "", "lowest":
		return FallbackLowest, nil
	case "strict":
		return FallbackStrict, nil
	default:
		return FallbackLowest, fmt.Errorf("unknown tier fallback policy %q", s)
	}
}

// TierTable is a validated, ordered list of commission tiers.
type TierTable struct {
	tiers []CommissionTier
}

// NewTierTable validates tiers and builds a table. Monthly bounds are derived
// from the annual ones. The input slice is copied.
func NewTierTable(tiers []CommissionTier) (*TierTable, error) {
	if len(tiers) == 0 {
		return nil, fmt.Errorf("%w: no tiers", ErrInvalidTierTable)
	}

	out := make([]CommissionTier, len(tiers))
	for i, t := range tiers {
		if t.ID == "" {
			return nil, fmt.Errorf("%w: tier %d has no id", ErrInvalidTierTable, i)
		}
		if t.CommissionRate.IsNegative() || t.CommissionRate.GreaterThan(hundred) {
			return nil, fmt.Errorf("%w: tier %s rate %s outside [0,100]", ErrInvalidTierTable, t.ID, t.CommissionRate)
		}
		if i == 0 && !t.MinAmount.IsZero() {
			return nil, fmt.Errorf("%w: first tier must start at 0", ErrInvalidTierTable)
		}
		if t.MaxAmount != nil && !t.MaxAmount.GreaterThan(t.MinAmount) {
			return nil, fmt.Errorf("%w: tier %s max must exceed min", ErrInvalidTierTable, t.ID)
		}
		if t.MaxAmount == nil && i != len(tiers)-1 {
			return nil, fmt.Errorf("%w: only the last tier may be unbounded", ErrInvalidTierTable)
		}
		if i > 0 {
			prev := tiers[i-1]
			if prev.MaxAmount == nil || !prev.MaxAmount.Equal(t.MinAmount) {
				return nil, fmt.Errorf("%w: tier %s does not start where %s ends", ErrInvalidTierTable, t.ID, prev.ID)
			}
			if !t.CommissionRate.GreaterThan(prev.CommissionRate) {
				return nil, fmt.Errorf("%w: tier %s rate must exceed %s rate", ErrInvalidTierTable, t.ID, prev.ID)
			}
		}

		t.MonthlyMin = t.MinAmount.Div(twelve)
		t.MonthlyMax = nil
		if t.MaxAmount != nil {
			upper := *t.MaxAmount
			t.MaxAmount = &upper
			monthly := upper.Div(twelve)
			t.MonthlyMax = &monthly
		}
		out[i] = t
	}

	if out[len(out)-1].MaxAmount != nil {
		return nil, fmt.Errorf("%w: top tier must be unbounded", ErrInvalidTierTable)
	}

	return &TierTable{tiers: out}, nil
}

// DefaultTiers returns the brokerage's standard six-bracket table.
func DefaultTiers() []CommissionTier {
	bound := func(v int64) *decimal.Decimal {
		d := decimal.NewFromInt(v)
		return &d
	}
	return []CommissionTier{
		{ID: "tier1", MinAmount: decimal.Zero, MaxAmount: bound(100000), CommissionRate: decimal.NewFromInt(25)},
		{ID: "tier2", MinAmount: decimal.NewFromInt(100000), MaxAmount: bound(250000), CommissionRate: decimal.NewFromInt(30)},
		{ID: "tier3", MinAmount: decimal.NewFromInt(250000), MaxAmount: bound(500000), CommissionRate: decimal.NewFromInt(35)},
		{ID: "tier4", MinAmount: decimal.NewFromInt(500000), MaxAmount: bound(1000000), CommissionRate: decimal.NewFromInt(40)},
		{ID: "tier5", MinAmount: decimal.NewFromInt(1000000), MaxAmount: bound(2000000), CommissionRate: decimal.NewFromInt(45)},
		{ID: "tier6", MinAmount: decimal.NewFromInt(2000000), MaxAmount: nil, CommissionRate: decimal.NewFromInt(50)},
	}
}

// DefaultTierTable builds the table from DefaultTiers.
func DefaultTierTable() *TierTable {
	table, err := NewTierTable(DefaultTiers())
	if err != nil {
		panic(err)
	}
	return table
}

// Tiers returns a copy of the table rows in ascending order.
func (t *TierTable) Tiers() []CommissionTier {
	out := make([]CommissionTier, len(t.tiers))
	copy(out, t.tiers)
	return out
}

// Lowest returns the first tier.
func (t *TierTable) Lowest() CommissionTier {
	return t.tiers[0]
}

// Lookup returns the tier with the given id.
func (t *TierTable) Lookup(id string) (CommissionTier, bool) {
	for _, tier := range t.tiers {
		if tier.ID == id {
			return tier, true
		}
	}
	return CommissionTier{}, false
}

// Match returns the first tier whose bounds contain x.
func (t *TierTable) Match(x decimal.Decimal) (CommissionTier, bool) {
	for _, tier := range t.tiers {
		if tier.Contains(x) {
			return tier, true
		}
	}
	return CommissionTier{}, false
}

// Next returns the tier following the given one, if any.
func (t *TierTable) Next(id string) (CommissionTier, bool) {
	for i, tier := range t.tiers {
		if tier.ID == id && i+1 < len(t.tiers) {
			return t.tiers[i+1], true
		}
	}
	return CommissionTier{}, false
}
