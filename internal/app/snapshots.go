package app

import (
	"context"

	"github.com/temi-crm/commission-service/internal/commission"
	"github.com/temi-crm/commission-service/internal/store"
)

// SnapshotResult summarizes a tier snapshot run.
type SnapshotResult struct {
	Year    int `json:"year"`
	Month   int `json:"month"`
	Written int `json:"written"`
	Failed  int `json:"failed"`
}

// SnapshotTiers records, for every mandatary with signed production this
// year, the tier they currently sit in and their projected production.
func (s Service) SnapshotTiers(ctx context.Context) (*SnapshotResult, error) {
	now := s.localNow()
	year, month := now.Year(), int(now.Month())
	from, to := s.yearBounds(year)

	mandataries, err := s.repo.ListActiveMandataries(ctx, from, to)
	if err != nil {
		return nil, err
	}

	result := &SnapshotResult{Year: year, Month: month}
	months := s.monthsElapsed(year)
	for _, id := range mandataries {
		production, _, err := s.freshAnnualProduction(ctx, id, year)
		if err != nil {
			s.logger.Error().Err(err).Str("mandatary_id", id).Msg("failed to aggregate production for snapshot")
			result.Failed++
			continue
		}
		tier, err := s.engine.ResolveTier(production)
		if err != nil {
			s.logger.Error().Err(err).Str("mandatary_id", id).Msg("failed to resolve tier for snapshot")
			result.Failed++
			continue
		}

		snapshot := store.TierSnapshot{
			MandataryID:         id,
			Year:                year,
			Month:               month,
			AnnualProduction:    commission.Round(production),
			ProjectedProduction: commission.Round(commission.ProjectAnnual(production, months)),
			TierID:              tier.ID,
			TierRate:            tier.CommissionRate,
		}
		if err := s.repo.UpsertTierSnapshot(ctx, snapshot); err != nil {
			s.logger.Error().Err(err).Str("mandatary_id", id).Msg("failed to write tier snapshot")
			result.Failed++
			continue
		}
		result.Written++
	}
	return result, nil
}
