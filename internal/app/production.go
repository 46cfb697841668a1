package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/temi-crm/commission-service/internal/commission"
)

// ProductionSummary is a mandatary's year at a glance.
type ProductionSummary struct {
	MandataryID               string                     `json:"mandatary_id"`
	Year                      int                        `json:"year"`
	MonthsElapsed             int                        `json:"months_elapsed"`
	AnnualProduction          decimal.Decimal            `json:"annual_production"`
	MonthlyAverage            decimal.Decimal            `json:"monthly_average"`
	Monthly                   [12]decimal.Decimal        `json:"monthly"`
	ProjectedAnnualProduction decimal.Decimal            `json:"projected_annual_production"`
	CurrentTier               commission.CommissionTier  `json:"current_tier"`
	ProjectedTier             commission.CommissionTier  `json:"projected_tier"`
	NextTier                  *commission.CommissionTier `json:"next_tier,omitempty"`
	AmountToNextTier          *decimal.Decimal           `json:"amount_to_next_tier,omitempty"`
	ProjectedAnnualCommission decimal.Decimal            `json:"projected_annual_commission"`
}

// ProductionSummary aggregates a mandatary's signed production for year and
// projects it to year end.
func (s Service) ProductionSummary(ctx context.Context, mandataryID string, year int) (*ProductionSummary, error) {
	if strings.TrimSpace(mandataryID) == "" {
		return nil, fmt.Errorf("%w: mandatary id is required", ErrInvalidRequest)
	}
	if year == 0 {
		year = s.localNow().Year()
	}

	production, projects, err := s.freshAnnualProduction(ctx, mandataryID, year)
	if err != nil {
		return nil, err
	}

	months := s.monthsElapsed(year)
	projected := commission.ProjectAnnual(production, months)

	current, err := s.engine.ResolveTier(production)
	if err != nil {
		return nil, err
	}

	projection, err := s.engine.CalculateProjected(commission.CalculationInput{
		MandataryID:      mandataryID,
		ProjectAmount:    decimal.Zero,
		AnnualProduction: production,
		Year:             year,
		Month:            int(s.localNow().Month()),
	}, months)
	if err != nil {
		return nil, err
	}
	projectedTier := projection.CurrentTier
	projectedCommission := *projection.ProjectedAnnualCommission

	summary := &ProductionSummary{
		MandataryID:               mandataryID,
		Year:                      year,
		MonthsElapsed:             months,
		AnnualProduction:          commission.Round(production),
		MonthlyAverage:            commission.Round(production.Div(decimal.NewFromInt(12))),
		ProjectedAnnualProduction: commission.Round(projected),
		CurrentTier:               current,
		ProjectedTier:             projectedTier,
		ProjectedAnnualCommission: commission.Round(projectedCommission),
	}
	for i, m := range commission.MonthlyBreakdown(mandataryID, year, projects) {
		summary.Monthly[i] = commission.Round(m)
	}
	if next, ok := s.engine.Table().Next(current.ID); ok && current.MaxAmount != nil {
		remaining := commission.Round(current.MaxAmount.Sub(production))
		summary.NextTier = &next
		summary.AmountToNextTier = &remaining
	}

	return summary, nil
}

// CalculateRequest asks for the commission of one project amount.
type CalculateRequest struct {
	MandataryID      string
	ProjectAmount    decimal.Decimal
	AnnualProduction *decimal.Decimal
	PlatformRate     *decimal.Decimal
	Year             int
	Month            int
	UseProjection    bool
}

// CalculateCommission computes a project's commission. Annual production is
// aggregated when the request does not supply it.
func (s Service) CalculateCommission(ctx context.Context, req CalculateRequest) (*commission.CommissionCalculation, error) {
	now := s.localNow()
	if req.Year == 0 {
		req.Year = now.Year()
	}
	if req.Month == 0 {
		req.Month = int(now.Month())
	}

	var production decimal.Decimal
	if req.AnnualProduction != nil {
		production = *req.AnnualProduction
	} else {
		if req.MandataryID == "" {
			return nil, fmt.Errorf("%w: mandatary id is required", ErrInvalidRequest)
		}
		aggregated, err := s.annualProduction(ctx, req.MandataryID, req.Year)
		if err != nil {
			return nil, err
		}
		production = aggregated
	}

	in := commission.CalculationInput{
		MandataryID:      req.MandataryID,
		ProjectAmount:    req.ProjectAmount,
		AnnualProduction: production,
		PlatformRate:     req.PlatformRate,
		Year:             req.Year,
		Month:            req.Month,
	}

	var (
		calc commission.CommissionCalculation
		err  error
	)
	if req.UseProjection {
		calc, err = s.engine.CalculateProjected(in, s.monthsElapsed(req.Year))
	} else {
		calc, err = s.engine.Calculate(in)
	}
	if err != nil {
		return nil, err
	}

	rounded := roundCalculation(calc)
	return &rounded, nil
}

// SimulateRequest previews one more project for a mandatary.
type SimulateRequest struct {
	MandataryID        string
	HypotheticalAmount decimal.Decimal
	CurrentProduction  *decimal.Decimal
	MonthsElapsed      *int
	Year               int
}

// SimulateProjectImpact is rate limited per caller.
func (s Service) SimulateProjectImpact(ctx context.Context, subject string, req SimulateRequest) (*commission.SimulationResult, error) {
	if err := s.consumeSimulationQuota(ctx, subject); err != nil {
		return nil, err
	}

	if req.Year == 0 {
		req.Year = s.localNow().Year()
	}

	var current decimal.Decimal
	if req.CurrentProduction != nil {
		current = *req.CurrentProduction
	} else {
		if req.MandataryID == "" {
			return nil, fmt.Errorf("%w: mandatary id or current production is required", ErrInvalidRequest)
		}
		aggregated, err := s.annualProduction(ctx, req.MandataryID, req.Year)
		if err != nil {
			return nil, err
		}
		current = aggregated
	}

	months := s.monthsElapsed(req.Year)
	if req.MonthsElapsed != nil {
		months = *req.MonthsElapsed
	}

	result, err := s.engine.Simulate(current, months, req.HypotheticalAmount)
	if err != nil {
		return nil, err
	}

	result.CurrentProjection = commission.Round(result.CurrentProjection)
	result.NewProjectedProduction = commission.Round(result.NewProjectedProduction)
	result.CommissionIncrease = commission.Round(result.CommissionIncrease)
	return &result, nil
}

func (s Service) consumeSimulationQuota(ctx context.Context, subject string) error {
	limit := s.opts.SimulationLimitPerMinute
	if s.limiter == nil || limit <= 0 {
		return nil
	}

	count, retryAfter, err := s.limiter.ConsumeRateLimit(ctx, "simulation", subject, limit, time.Minute)
	if err != nil {
		s.logger.Warn().Err(err).Str("subject", subject).Msg("simulation rate limiter unavailable; allowing request")
		return nil
	}
	if count > limit {
		return &RateLimitError{RetryAfterSeconds: retryAfter}
	}
	return nil
}

func roundCalculation(c commission.CommissionCalculation) commission.CommissionCalculation {
	c.AnnualProduction = commission.Round(c.AnnualProduction)
	c.MonthlyProduction = commission.Round(c.MonthlyProduction)
	c.PlatformCommission = commission.Round(c.PlatformCommission)
	c.MandataryCommission = commission.Round(c.MandataryCommission)
	if c.ProjectedAnnualProduction != nil {
		v := commission.Round(*c.ProjectedAnnualProduction)
		c.ProjectedAnnualProduction = &v
	}
	if c.ProjectedAnnualCommission != nil {
		v := commission.Round(*c.ProjectedAnnualCommission)
		c.ProjectedAnnualCommission = &v
	}
	return c
}
