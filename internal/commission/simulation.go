package commission

import (
	"github.com/shopspring/decimal"
)

// SimulationResult previews the effect of one more project on a mandatary's year.
type SimulationResult struct {
	CurrentProjection      decimal.Decimal `json:"current_projection"`
	NewProjectedProduction decimal.Decimal `json:"new_projected_production"`
	CurrentTierID          string          `json:"current_tier_id"`
	NewTierID              string          `json:"new_tier_id"`
	CurrentTierRate        decimal.Decimal `json:"current_tier_rate"`
	NewTierRate            decimal.Decimal `json:"new_tier_rate"`
	CommissionIncrease     decimal.Decimal `json:"commission_increase"`
	TierUpgrade            bool            `json:"tier_upgrade"`
}

// Simulate adds hypotheticalAmount to the projected year-end production and
// compares the mandatary's total annual commission before and after.
//
// Crossing a boundary re-rates the whole projected production at the new tier
// rate, so CommissionIncrease can be much larger than the marginal project's share.
func (e *Engine) Simulate(currentProduction decimal.Decimal, monthsElapsed int, hypotheticalAmount decimal.Decimal) (SimulationResult, error) {
	if err := requireNonNegative("current_production", currentProduction); err != nil {
		return SimulationResult{}, err
	}
	if err := requireNonNegative("hypothetical_amount", hypotheticalAmount); err != nil {
		return SimulationResult{}, err
	}
	if monthsElapsed < 0 {
		return SimulationResult{}, &InputError{Field: "months_elapsed", Reason: "must not be negative"}
	}

	currentProjection := ProjectAnnual(currentProduction, monthsElapsed)
	newProjected := currentProjection.Add(hypotheticalAmount)

	currentTier, err := e.ResolveTier(currentProjection)
	if err != nil {
		return SimulationResult{}, err
	}
	newTier, err := e.ResolveTier(newProjected)
	if err != nil {
		return SimulationResult{}, err
	}

	currentTotal := percentOf(percentOf(currentProjection, e.rates.Platform), currentTier.CommissionRate)
	newTotal := percentOf(percentOf(newProjected, e.rates.Platform), newTier.CommissionRate)

	return SimulationResult{
		CurrentProjection:      currentProjection,
		NewProjectedProduction: newProjected,
		CurrentTierID:          currentTier.ID,
		NewTierID:              newTier.ID,
		CurrentTierRate:        currentTier.CommissionRate,
		NewTierRate:            newTier.CommissionRate,
		CommissionIncrease:     newTotal.Sub(currentTotal),
		TierUpgrade:            newTier.CommissionRate.GreaterThan(currentTier.CommissionRate),
	}, nil
}
