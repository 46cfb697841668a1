package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/temi-crm/commission-service/internal/domain"
	"github.com/temi-crm/commission-service/internal/workflow"
)

// InvoiceView is an invoice with its derived display status.
type InvoiceView struct {
	domain.Invoice
	DisplayStatus string                  `json:"display_status"`
	Balance       decimal.Decimal         `json:"balance"`
	Payments      []domain.InvoicePayment `json:"payments,omitempty"`
}

func (s Service) view(inv domain.Invoice) InvoiceView {
	return InvoiceView{
		Invoice:       inv,
		DisplayStatus: workflow.DisplayStatus(inv, s.now()),
		Balance:       inv.Balance(),
	}
}

// CreateInvoiceRequest describes a new draft invoice.
type CreateInvoiceRequest struct {
	ProjectID     *string
	RecipientType domain.RecipientType
	RecipientID   string
	Description   string
	AmountHT      decimal.Decimal
	TVARate       *decimal.Decimal
	DueDate       *time.Time
}

// CreateInvoice stores a draft invoice.
func (s Service) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*InvoiceView, error) {
	if req.RecipientType != domain.RecipientPartner && req.RecipientType != domain.RecipientClient {
		return nil, fmt.Errorf("%w: unknown recipient type %q", ErrInvalidRequest, req.RecipientType)
	}
	if strings.TrimSpace(req.RecipientID) == "" {
		return nil, fmt.Errorf("%w: recipient id is required", ErrInvalidRequest)
	}

	draft, err := workflow.NewDraftInvoice(domain.Invoice{
		ID:            uuid.NewString(),
		ProjectID:     req.ProjectID,
		RecipientType: req.RecipientType,
		RecipientID:   req.RecipientID,
		Description:   strings.TrimSpace(req.Description),
		AmountHT:      req.AmountHT,
		DueDate:       req.DueDate,
	}, req.TVARate, s.now().UTC())
	if err != nil {
		return nil, err
	}

	created, err := s.repo.CreateInvoice(ctx, draft)
	if err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}
	v := s.view(*created)
	return &v, nil
}

// GetInvoice returns an invoice visible to the caller, with its payments.
func (s Service) GetInvoice(ctx context.Context, role domain.Role, userID, id string) (*InvoiceView, error) {
	inv, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if !domain.CanViewInvoice(role, userID, *inv) {
		return nil, ErrForbidden
	}

	payments, err := s.repo.ListInvoicePayments(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	v := s.view(*inv)
	v.Payments = payments
	return &v, nil
}

// ListInvoices scopes filter to what role may see.
func (s Service) ListInvoices(ctx context.Context, role domain.Role, userID string, filter domain.InvoiceFilter) ([]InvoiceView, error) {
	perms := domain.PermissionsFor(role)
	switch {
	case perms.ViewAllInvoices:
	case perms.ViewOwnInvoices:
		filter.RecipientID = userID
	default:
		return nil, ErrForbidden
	}

	invoices, err := s.repo.ListInvoices(ctx, filter)
	if err != nil {
		return nil, err
	}

	views := make([]InvoiceView, 0, len(invoices))
	for _, inv := range domain.FilterInvoices(role, userID, invoices) {
		views = append(views, s.view(inv))
	}
	return views, nil
}

// IssueInvoice moves a draft invoice to issued.
func (s Service) IssueInvoice(ctx context.Context, id string) (*InvoiceView, error) {
	inv, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	next, tr, err := workflow.IssueInvoice(*inv, s.now().UTC(), s.opts.CommissionDueDays)
	if err != nil {
		return nil, err
	}
	return s.persistInvoiceTransition(ctx, next, tr, domain.EventInvoiceIssued)
}

// SendInvoice marks an issued invoice as sent.
func (s Service) SendInvoice(ctx context.Context, id string) (*InvoiceView, error) {
	inv, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	next, tr, err := workflow.SendInvoice(*inv, s.now().UTC())
	if err != nil {
		return nil, err
	}
	return s.persistInvoiceTransition(ctx, next, tr, "")
}

// CancelInvoice cancels an unpaid invoice.
func (s Service) CancelInvoice(ctx context.Context, id string) (*InvoiceView, error) {
	inv, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	next, tr, err := workflow.CancelInvoice(*inv, s.now().UTC())
	if err != nil {
		return nil, err
	}
	return s.persistInvoiceTransition(ctx, next, tr, domain.EventInvoiceCancelled)
}

// RecordInvoicePayment applies a payment. Reaching the TTC amount publishes
// invoice.paid, which triggers the project's commission computation.
func (s Service) RecordInvoicePayment(ctx context.Context, id string, amount decimal.Decimal, reference *string) (*InvoiceView, error) {
	inv, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	amount = amount.RoundBank(2)
	next, tr, err := workflow.RecordPayment(*inv, amount, now)
	if err != nil {
		return nil, err
	}

	payment := domain.InvoicePayment{
		ID:        uuid.NewString(),
		InvoiceID: inv.ID,
		Amount:    amount,
		Reference: reference,
		PaidAt:    now,
	}
	updated, err := s.repo.ApplyInvoicePayment(ctx, next, domain.InvoiceStatus(tr.From), payment)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("invoice_id", updated.ID).
		Str("amount", amount.StringFixed(2)).
		Str("from", tr.From).
		Str("to", tr.To).
		Msg("invoice payment recorded")
	if updated.Status == domain.InvoicePaid {
		s.publishInvoiceEvent(ctx, domain.EventInvoicePaid, *updated, string(updated.Status))
	}

	v := s.view(*updated)
	return &v, nil
}

func (s Service) persistInvoiceTransition(ctx context.Context, next domain.Invoice, tr workflow.Transition, routingKey string) (*InvoiceView, error) {
	updated, err := s.repo.UpdateInvoice(ctx, next, domain.InvoiceStatus(tr.From))
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("invoice_id", updated.ID).
		Str("from", tr.From).
		Str("to", tr.To).
		Msg("invoice status changed")
	if routingKey != "" {
		s.publishInvoiceEvent(ctx, routingKey, *updated, string(updated.Status))
	}

	v := s.view(*updated)
	return &v, nil
}

// OverdueResult summarizes an overdue sweep.
type OverdueResult struct {
	Notified int `json:"notified"`
}

// NotifyOverdueInvoices publishes invoice.overdue once for every issued or
// sent invoice past its due date. The stored status is left untouched.
func (s Service) NotifyOverdueInvoices(ctx context.Context) (*OverdueResult, error) {
	invoices, err := s.repo.ClaimOverdueInvoices(ctx, s.now().UTC())
	if err != nil {
		return nil, err
	}

	for _, inv := range invoices {
		s.publishInvoiceEvent(ctx, domain.EventInvoiceOverdue, inv, domain.InvoiceDisplayOverdue)
	}
	return &OverdueResult{Notified: len(invoices)}, nil
}
