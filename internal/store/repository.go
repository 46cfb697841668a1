/**
 * @description
 * Data access layer for the commission service. Status changes are applied
 * with conditional updates on the expected current status so that two
 * operators acting on the same record cannot both win.
 */
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/temi-crm/commission-service/internal/commission"
	"github.com/temi-crm/commission-service/internal/domain"
)

var (
	ErrProjectNotFound    = errors.New("project not found")
	ErrCommissionNotFound = errors.New("commission not found")
	ErrInvoiceNotFound    = errors.New("invoice not found")
	ErrStatusConflict     = errors.New("record status changed concurrently")
)

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// Repository handles database operations for commissions and invoices.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Ping checks the database connection.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

// ListTiers returns the configured tier rows ordered by position. An empty
// result means the default table applies.
func (r *Repository) ListTiers(ctx context.Context) ([]commission.CommissionTier, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, min_amount, max_amount, commission_rate
		FROM commission_tiers
		ORDER BY position ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tiers []commission.CommissionTier
	for rows.Next() {
		var tier commission.CommissionTier
		if err := rows.Scan(&tier.ID, &tier.MinAmount, &tier.MaxAmount, &tier.CommissionRate); err != nil {
			return nil, err
		}
		tiers = append(tiers, tier)
	}
	return tiers, rows.Err()
}

const projectColumns = `id, agent_id, apporteur_id, amount, quote_status, down_payment_status, created_at`

func scanProject(row scanner) (domain.Project, error) {
	var p domain.Project
	err := row.Scan(&p.ID, &p.AgentID, &p.ApporteurID, &p.Amount, &p.QuoteStatus, &p.DownPaymentStatus, &p.CreatedAt)
	return p, err
}

// GetProject retrieves a project by id.
func (r *Repository) GetProject(ctx context.Context, projectID string) (*domain.Project, error) {
	p, err := scanProject(r.db.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, projectID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	return &p, nil
}

// ListProjectsForAgent returns the signed projects of an agent created in [from, to).
func (r *Repository) ListProjectsForAgent(ctx context.Context, agentID string, from, to time.Time) ([]domain.Project, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+projectColumns+`
		FROM projects
		WHERE agent_id = $1
		  AND quote_status = 'signed'
		  AND created_at >= $2
		  AND created_at < $3
		ORDER BY created_at ASC
	`, agentID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// ListActiveMandataries returns the agents with at least one signed project in [from, to).
func (r *Repository) ListActiveMandataries(ctx context.Context, from, to time.Time) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT agent_id
		FROM projects
		WHERE quote_status = 'signed'
		  AND created_at >= $1
		  AND created_at < $2
		ORDER BY agent_id
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// TierSnapshot records the tier a mandatary sat in for a given month.
type TierSnapshot struct {
	MandataryID         string
	Year                int
	Month               int
	AnnualProduction    decimal.Decimal
	ProjectedProduction decimal.Decimal
	TierID              string
	TierRate            decimal.Decimal
}

// UpsertTierSnapshot writes or refreshes the snapshot for (mandatary, year, month).
func (r *Repository) UpsertTierSnapshot(ctx context.Context, s TierSnapshot) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO tier_snapshots (
			mandatary_id, year, month, annual_production, projected_production, tier_id, tier_rate
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (mandatary_id, year, month) DO UPDATE
		SET annual_production = EXCLUDED.annual_production,
		    projected_production = EXCLUDED.projected_production,
		    tier_id = EXCLUDED.tier_id,
		    tier_rate = EXCLUDED.tier_rate,
		    updated_at = NOW()
	`, s.MandataryID, s.Year, s.Month, s.AnnualProduction, s.ProjectedProduction, s.TierID, s.TierRate)
	if err != nil {
		return fmt.Errorf("upsert tier snapshot %s %d-%02d: %w", s.MandataryID, s.Year, s.Month, err)
	}
	return nil
}
