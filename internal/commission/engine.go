package commission

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ErrInvalidInput is the root of every validation failure raised by the engine.
var ErrInvalidInput = errors.New("invalid commission input")

var hundred = decimal.NewFromInt(100)

// InputError names the offending field of a rejected input.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrInvalidInput, e.Field, e.Reason)
}

func (e *InputError) Unwrap() error {
	return ErrInvalidInput
}

func requireNonNegative(field string, v decimal.Decimal) error {
	if v.IsNegative() {
		return &InputError{Field: field, Reason: "must not be negative"}
	}
	return nil
}

func requirePercent(field string, v decimal.Decimal) error {
	if v.IsNegative() || v.GreaterThan(hundred) {
		return &InputError{Field: field, Reason: "must be between 0 and 100"}
	}
	return nil
}

// Rates are the fixed percentages applied on top of the tier rate.
type Rates struct {
	Platform  decimal.Decimal `json:"platform"`
	VAT       decimal.Decimal `json:"vat"`
	Apporteur decimal.Decimal `json:"apporteur"`
}

// DefaultRates returns 12% platform commission, 20% VAT and 10% apporteur share.
func DefaultRates() Rates {
	return Rates{
		Platform:  decimal.NewFromInt(12),
		VAT:       decimal.NewFromInt(20),
		Apporteur: decimal.NewFromInt(10),
	}
}

// Validate checks every rate is a percentage.
func (r Rates) Validate() error {
	if err := requirePercent("platform_rate", r.Platform); err != nil {
		return err
	}
	if err := requirePercent("vat_rate", r.VAT); err != nil {
		return err
	}
	return requirePercent("apporteur_rate", r.Apporteur)
}

// Engine computes tiers, commissions and simulations over a fixed tier table.
// It holds no mutable state and may be shared between goroutines.
type Engine struct {
	table    *TierTable
	rates    Rates
	fallback FallbackPolicy
	logger   zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

func WithRates(r Rates) Option {
	return func(e *Engine) { e.rates = r }
}

func WithFallback(p FallbackPolicy) Option {
	return func(e *Engine) { e.fallback = p }
}

func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine builds an engine over table. A nil table means DefaultTierTable.
func NewEngine(table *TierTable, opts ...Option) *Engine {
	if table == nil {
		table = DefaultTierTable()
	}
	e := &Engine{
		table:    table,
		rates:    DefaultRates(),
		fallback: FallbackLowest,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Table() *TierTable { return e.table }

func (e *Engine) Rates() Rates { return e.rates }

// ResolveTier maps annual production to its bracket.
func (e *Engine) ResolveTier(annualProduction decimal.Decimal) (CommissionTier, error) {
	if err := requireNonNegative("annual_production", annualProduction); err != nil {
		return CommissionTier{}, err
	}

	if tier, ok := e.table.Match(annualProduction); ok {
		return tier, nil
	}

	if e.fallback == FallbackStrict {
		return CommissionTier{}, fmt.Errorf("%w: %s", ErrNoMatchingTier, annualProduction)
	}

	lowest := e.table.Lowest()
	e.logger.Warn().
		Str("annual_production", annualProduction.String()).
		Str("tier_id", lowest.ID).
		Msg("no commission tier matched; falling back to lowest tier")
	return lowest, nil
}

// Round applies the persistence rounding rule: banker's rounding to cents.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(2)
}

func percentOf(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).Div(hundred)
}
