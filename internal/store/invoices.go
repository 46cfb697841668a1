package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/temi-crm/commission-service/internal/domain"
)

const invoiceColumns = `
	id, number, project_id, recipient_type, recipient_id, description,
	amount_ht, tva_rate, amount_ttc, amount_paid, status, issue_date, due_date,
	sent_at, paid_at, cancelled_at, created_at, updated_at`

func scanInvoice(row scanner) (domain.Invoice, error) {
	var inv domain.Invoice
	err := row.Scan(
		&inv.ID,
		&inv.Number,
		&inv.ProjectID,
		&inv.RecipientType,
		&inv.RecipientID,
		&inv.Description,
		&inv.AmountHT,
		&inv.TVARate,
		&inv.AmountTTC,
		&inv.AmountPaid,
		&inv.Status,
		&inv.IssueDate,
		&inv.DueDate,
		&inv.SentAt,
		&inv.PaidAt,
		&inv.CancelledAt,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)
	return inv, err
}

// CreateInvoice inserts a draft invoice and assigns its sequential number.
func (r *Repository) CreateInvoice(ctx context.Context, inv domain.Invoice) (*domain.Invoice, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO invoices (
			id, number, project_id, recipient_type, recipient_id, description,
			amount_ht, tva_rate, amount_ttc, amount_paid, status, due_date
		)
		VALUES (
			$1,
			'INV-' || TO_CHAR(NOW(), 'YYYY') || '-' || LPAD(NEXTVAL('invoice_number_seq')::TEXT, 6, '0'),
			$2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
		RETURNING `+invoiceColumns,
		inv.ID, inv.ProjectID, inv.RecipientType, inv.RecipientID, inv.Description,
		inv.AmountHT, inv.TVARate, inv.AmountTTC, inv.AmountPaid, inv.Status, inv.DueDate,
	)

	created, err := scanInvoice(row)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// GetInvoice retrieves an invoice by id.
func (r *Repository) GetInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	inv, err := scanInvoice(r.db.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	return &inv, nil
}

// ListInvoices returns invoices matching filter, newest first.
func (r *Repository) ListInvoices(ctx context.Context, filter domain.InvoiceFilter) ([]domain.Invoice, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.RecipientID != "" {
		args = append(args, filter.RecipientID)
		conditions = append(conditions, fmt.Sprintf("recipient_id = $%d", len(args)))
	}
	if filter.ProjectID != "" {
		args = append(args, filter.ProjectID)
		conditions = append(conditions, fmt.Sprintf("project_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + invoiceColumns + ` FROM invoices`
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

	var invoices []domain.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

const updateInvoiceSQL = `
	UPDATE invoices
	SET status = $3,
	    amount_paid = $4,
	    issue_date = $5,
	    due_date = $6,
	    sent_at = $7,
	    paid_at = $8,
	    cancelled_at = $9,
	    updated_at = NOW()
	WHERE id = $1
	  AND status = $2
	RETURNING ` + invoiceColumns

func invoiceUpdateArgs(inv domain.Invoice, expected domain.InvoiceStatus) []any {
	return []any{inv.ID, expected, inv.Status, inv.AmountPaid, inv.IssueDate, inv.DueDate, inv.SentAt, inv.PaidAt, inv.CancelledAt}
}

// UpdateInvoice persists a transitioned invoice if its stored status is still expected.
func (r *Repository) UpdateInvoice(ctx context.Context, inv domain.Invoice, expected domain.InvoiceStatus) (*domain.Invoice, error) {
	updated, err := scanInvoice(r.db.QueryRow(ctx, updateInvoiceSQL, invoiceUpdateArgs(inv, expected)...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: invoice %s is no longer %s", ErrStatusConflict, inv.ID, expected)
		}
		return nil, err
	}
	return &updated, nil
}

// ApplyInvoicePayment records payment and persists the resulting invoice in one transaction.
func (r *Repository) ApplyInvoicePayment(ctx context.Context, inv domain.Invoice, expected domain.InvoiceStatus, payment domain.InvoicePayment) (*domain.Invoice, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	updated, err := scanInvoice(tx.QueryRow(ctx, updateInvoiceSQL, invoiceUpdateArgs(inv, expected)...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: invoice %s is no longer %s", ErrStatusConflict, inv.ID, expected)
		}
		return nil, err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO invoice_payments (id, invoice_id, amount, reference, paid_at)
		VALUES ($1, $2, $3, $4, $5)
	`, payment.ID, payment.InvoiceID, payment.Amount, payment.Reference, payment.PaidAt); err != nil {
		return nil, fmt.Errorf("insert invoice payment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &updated, nil
}

// ListInvoicePayments returns the payments of an invoice, oldest first.
func (r *Repository) ListInvoicePayments(ctx context.Context, invoiceID string) ([]domain.InvoicePayment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, invoice_id, amount, reference, paid_at, created_at
		FROM invoice_payments
		WHERE invoice_id = $1
		ORDER BY paid_at ASC
	`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []domain.InvoicePayment
	for rows.Next() {
		var p domain.InvoicePayment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.Amount, &p.Reference, &p.PaidAt, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// ClaimOverdueInvoices marks issued or sent invoices past due as notified and
// returns them. Each invoice is claimed once.
func (r *Repository) ClaimOverdueInvoices(ctx context.Context, now time.Time) ([]domain.Invoice, error) {
	rows, err := r.db.Query(ctx, `
		UPDATE invoices
		SET overdue_notified_at = $1
		WHERE status IN ('issued', 'sent')
		  AND due_date < $1
		  AND overdue_notified_at IS NULL
		RETURNING `+invoiceColumns, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []domain.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}
