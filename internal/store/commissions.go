package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/temi-crm/commission-service/internal/domain"
)

const commissionColumns = `
	id, project_id, mandatary_id, apporteur_id, project_amount, annual_production,
	tier_id, tier_rate, platform_amount, vat_amount, platform_net_amount,
	mandatary_amount, apporteur_amount, status, invoice_date, due_date,
	payment_date, cancelled_at, cancel_reason, created_at, updated_at`

func scanCommission(row scanner) (domain.Commission, error) {
	var c domain.Commission
	err := row.Scan(
		&c.ID,
		&c.ProjectID,
		&c.MandataryID,
		&c.ApporteurID,
		&c.ProjectAmount,
		&c.AnnualProduction,
		&c.TierID,
		&c.TierRate,
		&c.PlatformAmount,
		&c.VATAmount,
		&c.PlatformNetAmount,
		&c.MandataryAmount,
		&c.ApporteurAmount,
		&c.Status,
		&c.InvoiceDate,
		&c.DueDate,
		&c.PaymentDate,
		&c.CancelledAt,
		&c.CancelReason,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}

// CreateCommission inserts a pending commission. A project has at most one
// commission: when one already exists it is returned with created=false.
func (r *Repository) CreateCommission(ctx context.Context, c domain.Commission) (*domain.Commission, bool, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO commissions (
			id, project_id, mandatary_id, apporteur_id, project_amount, annual_production,
			tier_id, tier_rate, platform_amount, vat_amount, platform_net_amount,
			mandatary_amount, apporteur_amount, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (project_id) DO NOTHING
		RETURNING `+commissionColumns,
		c.ID, c.ProjectID, c.MandataryID, c.ApporteurID, c.ProjectAmount, c.AnnualProduction,
		c.TierID, c.TierRate, c.PlatformAmount, c.VATAmount, c.PlatformNetAmount,
		c.MandataryAmount, c.ApporteurAmount, c.Status,
	)

	created, err := scanCommission(row)
	if err == nil {
		return &created, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}

	existing, err := r.GetCommissionByProject(ctx, c.ProjectID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// GetCommission retrieves a commission by id.
func (r *Repository) GetCommission(ctx context.Context, id string) (*domain.Commission, error) {
	c, err := scanCommission(r.db.QueryRow(ctx, `SELECT `+commissionColumns+` FROM commissions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCommissionNotFound
		}
		return nil, err
	}
	return &c, nil
}

// GetCommissionByProject retrieves the commission of a project.
func (r *Repository) GetCommissionByProject(ctx context.Context, projectID string) (*domain.Commission, error) {
	c, err := scanCommission(r.db.QueryRow(ctx, `SELECT `+commissionColumns+` FROM commissions WHERE project_id = $1`, projectID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCommissionNotFound
		}
		return nil, err
	}
	return &c, nil
}

// ListCommissions returns commissions matching filter, newest first.
func (r *Repository) ListCommissions(ctx context.Context, filter domain.CommissionFilter) ([]domain.Commission, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.MandataryID != "" {
		args = append(args, filter.MandataryID)
		conditions = append(conditions, fmt.Sprintf("mandatary_id = $%d", len(args)))
	}
	if filter.ApporteurID != "" {
		args = append(args, filter.ApporteurID)
		conditions = append(conditions, fmt.Sprintf("apporteur_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + commissionColumns + ` FROM commissions`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	args = append(args, limitOrDefault(filter.Limit))
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var commissions []domain.Commission
	for rows.Next() {
		c, err := scanCommission(rows)
		if err != nil {
			return nil, err
		}
		commissions = append(commissions, c)
	}
	return commissions, rows.Err()
}

// UpdateCommissionStatus persists a transitioned commission if its stored
// status is still expected. Otherwise ErrStatusConflict is returned.
func (r *Repository) UpdateCommissionStatus(ctx context.Context, c domain.Commission, expected domain.CommissionStatus) (*domain.Commission, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE commissions
		SET status = $3,
		    invoice_date = $4,
		    due_date = $5,
		    payment_date = $6,
		    cancelled_at = $7,
		    cancel_reason = $8,
		    updated_at = NOW()
		WHERE id = $1
		  AND status = $2
		RETURNING `+commissionColumns,
		c.ID, expected, c.Status, c.InvoiceDate, c.DueDate, c.PaymentDate, c.CancelledAt, c.CancelReason,
	)

	updated, err := scanCommission(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: commission %s is no longer %s", ErrStatusConflict, c.ID, expected)
		}
		return nil, err
	}
	return &updated, nil
}

func limitOrDefault(limit int) int {
	if limit <= 0 || limit > 500 {
		return 100
	}
	return limit
}
