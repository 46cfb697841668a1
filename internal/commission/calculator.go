package commission

import (
	"github.com/shopspring/decimal"
)

// CalculationInput carries everything Calculate needs; nothing is read from the clock.
type CalculationInput struct {
	MandataryID      string
	ProjectAmount    decimal.Decimal
	AnnualProduction decimal.Decimal
	// PlatformRate overrides the engine's platform rate when set.
	PlatformRate *decimal.Decimal
	Year         int
	Month        int
}

// CommissionCalculation is a freshly computed, never mutated result.
type CommissionCalculation struct {
	MandataryID               string           `json:"mandatary_id"`
	Year                      int              `json:"year"`
	Month                     int              `json:"month"`
	ProjectAmount             decimal.Decimal  `json:"project_amount"`
	AnnualProduction          decimal.Decimal  `json:"annual_production"`
	MonthlyProduction         decimal.Decimal  `json:"monthly_production"`
	CurrentTier               CommissionTier   `json:"current_tier"`
	PlatformCommissionRate    decimal.Decimal  `json:"platform_commission_rate"`
	PlatformCommission        decimal.Decimal  `json:"platform_commission"`
	MandataryCommission       decimal.Decimal  `json:"mandatary_commission"`
	ProjectedAnnualProduction *decimal.Decimal `json:"projected_annual_production,omitempty"`
	ProjectedAnnualCommission *decimal.Decimal `json:"projected_annual_commission,omitempty"`
	IsProjectionBased         bool             `json:"is_projection_based"`
}

func (e *Engine) platformRate(override *decimal.Decimal) decimal.Decimal {
	if override != nil {
		return *override
	}
	return e.rates.Platform
}

func (e *Engine) validateCalculation(in CalculationInput) error {
	if in.MandataryID == "" {
		return &InputError{Field: "mandatary_id", Reason: "is required"}
	}
	if err := requireNonNegative("project_amount", in.ProjectAmount); err != nil {
		return err
	}
	if err := requireNonNegative("annual_production", in.AnnualProduction); err != nil {
		return err
	}
	if err := requirePercent("platform_rate", e.platformRate(in.PlatformRate)); err != nil {
		return err
	}
	if in.Month < 1 || in.Month > 12 {
		return &InputError{Field: "month", Reason: "must be between 1 and 12"}
	}
	return nil
}

// Calculate computes the commission of one project for a mandatary whose
// annual production is already known.
func (e *Engine) Calculate(in CalculationInput) (CommissionCalculation, error) {
	if err := e.validateCalculation(in); err != nil {
		return CommissionCalculation{}, err
	}

	tier, err := e.ResolveTier(in.AnnualProduction)
	if err != nil {
		return CommissionCalculation{}, err
	}

	rate := e.platformRate(in.PlatformRate)
	platformCommission := percentOf(in.ProjectAmount, rate)

	return CommissionCalculation{
		MandataryID:            in.MandataryID,
		Year:                   in.Year,
		Month:                  in.Month,
		ProjectAmount:          in.ProjectAmount,
		AnnualProduction:       in.AnnualProduction,
		MonthlyProduction:      in.AnnualProduction.Div(twelve),
		CurrentTier:            tier,
		PlatformCommissionRate: rate,
		PlatformCommission:     platformCommission,
		MandataryCommission:    percentOf(platformCommission, tier.CommissionRate),
		IsProjectionBased:      false,
	}, nil
}

// CalculateProjected is Calculate with the tier taken from the year-end
// projection of AnnualProduction instead of the production to date.
func (e *Engine) CalculateProjected(in CalculationInput, monthsElapsed int) (CommissionCalculation, error) {
	if err := e.validateCalculation(in); err != nil {
		return CommissionCalculation{}, err
	}
	if monthsElapsed < 0 {
		return CommissionCalculation{}, &InputError{Field: "months_elapsed", Reason: "must not be negative"}
	}

	projected := ProjectAnnual(in.AnnualProduction, monthsElapsed)
	tier, err := e.ResolveTier(projected)
	if err != nil {
		return CommissionCalculation{}, err
	}

	rate := e.platformRate(in.PlatformRate)
	platformCommission := percentOf(in.ProjectAmount, rate)
	projectedCommission := percentOf(percentOf(projected, rate), tier.CommissionRate)

	return CommissionCalculation{
		MandataryID:               in.MandataryID,
		Year:                      in.Year,
		Month:                     in.Month,
		ProjectAmount:             in.ProjectAmount,
		AnnualProduction:          in.AnnualProduction,
		MonthlyProduction:         in.AnnualProduction.Div(twelve),
		CurrentTier:               tier,
		PlatformCommissionRate:    rate,
		PlatformCommission:        platformCommission,
		MandataryCommission:       percentOf(platformCommission, tier.CommissionRate),
		ProjectedAnnualProduction: &projected,
		ProjectedAnnualCommission: &projectedCommission,
		IsProjectionBased:         true,
	}, nil
}
