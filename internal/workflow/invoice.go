package workflow

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/temi-crm/commission-service/internal/domain"
)

const entityInvoice = "invoice"

// DefaultTVARate is the French standard VAT rate applied to invoices.
var DefaultTVARate = decimal.NewFromInt(20)

var invoiceTransitions = map[domain.InvoiceStatus][]domain.InvoiceStatus{
	domain.InvoiceDraft:         {domain.InvoiceIssued, domain.InvoiceCancelled},
	domain.InvoiceIssued:        {domain.InvoiceSent, domain.InvoicePartiallyPaid, domain.InvoicePaid, domain.InvoiceCancelled},
	domain.InvoiceSent:          {domain.InvoicePartiallyPaid, domain.InvoicePaid, domain.InvoiceCancelled},
	domain.InvoicePartiallyPaid: {domain.InvoicePartiallyPaid, domain.InvoicePaid, domain.InvoiceCancelled},
}

// CanTransitionInvoice reports whether from -> to is an edge of the invoice lifecycle.
func CanTransitionInvoice(from, to domain.InvoiceStatus) bool {
	for _, next := range invoiceTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func invoiceTransition(inv *domain.Invoice, to domain.InvoiceStatus, now time.Time) (Transition, error) {
	if !CanTransitionInvoice(inv.Status, to) {
		return Transition{}, &TransitionError{Entity: entityInvoice, From: string(inv.Status), To: string(to)}
	}
	t := Transition{Entity: entityInvoice, ID: inv.ID, From: string(inv.Status), To: string(to), At: now}
	inv.Status = to
	inv.UpdatedAt = now
	return t, nil
}

// AmountTTC adds VAT at tvaRate percent to amountHT, rounded to cents.
func AmountTTC(amountHT, tvaRate decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Add(tvaRate.Div(decimal.NewFromInt(100)))
	return amountHT.Mul(factor).RoundBank(2)
}

// NewDraftInvoice prepares a draft invoice. A nil tvaRate means DefaultTVARate.
func NewDraftInvoice(inv domain.Invoice, tvaRate *decimal.Decimal, now time.Time) (domain.Invoice, error) {
	if !inv.AmountHT.IsPositive() {
		return inv, fmt.Errorf("%w: amount_ht must be positive", ErrInvalidAmount)
	}
	rate := DefaultTVARate
	if tvaRate != nil {
		rate = *tvaRate
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(100)) {
		return inv, fmt.Errorf("%w: tva_rate must be between 0 and 100", ErrInvalidAmount)
	}

	inv.AmountHT = inv.AmountHT.RoundBank(2)
	inv.TVARate = rate
	inv.AmountTTC = AmountTTC(inv.AmountHT, rate)
	inv.AmountPaid = decimal.Zero
	inv.Status = domain.InvoiceDraft
	inv.CreatedAt = now
	inv.UpdatedAt = now
	return inv, nil
}

// IssueInvoice moves a draft to issued and fixes its due date. A due date set
// on the draft is kept.
func IssueInvoice(inv domain.Invoice, now time.Time, dueDays int) (domain.Invoice, Transition, error) {
	t, err := invoiceTransition(&inv, domain.InvoiceIssued, now)
	if err != nil {
		return inv, Transition{}, err
	}
	issued := now
	inv.IssueDate = &issued
	if inv.DueDate == nil {
		due := dueDate(now, dueDays)
		inv.DueDate = &due
	}
	return inv, t, nil
}

// SendInvoice marks an issued invoice as sent to its recipient.
func SendInvoice(inv domain.Invoice, now time.Time) (domain.Invoice, Transition, error) {
	t, err := invoiceTransition(&inv, domain.InvoiceSent, now)
	if err != nil {
		return inv, Transition{}, err
	}
	sent := now
	inv.SentAt = &sent
	return inv, t, nil
}

// RecordPayment adds amount to what was paid. Once the cumulative payment
// reaches AmountTTC the invoice is paid, otherwise partially paid.
func RecordPayment(inv domain.Invoice, amount decimal.Decimal, now time.Time) (domain.Invoice, Transition, error) {
	if !amount.IsPositive() {
		return inv, Transition{}, fmt.Errorf("%w: %s", ErrInvalidPayment, amount)
	}

	paid := inv.AmountPaid.Add(amount)
	to := domain.InvoicePartiallyPaid
	if paid.GreaterThanOrEqual(inv.AmountTTC) {
		to = domain.InvoicePaid
	}

	t, err := invoiceTransition(&inv, to, now)
	if err != nil {
		return inv, Transition{}, err
	}
	inv.AmountPaid = paid
	if to == domain.InvoicePaid {
		paidAt := now
		inv.PaidAt = &paidAt
	}
	return inv, t, nil
}

// CancelInvoice cancels any invoice that is not paid or already cancelled.
func CancelInvoice(inv domain.Invoice, now time.Time) (domain.Invoice, Transition, error) {
	t, err := invoiceTransition(&inv, domain.InvoiceCancelled, now)
	if err != nil {
		return inv, Transition{}, err
	}
	cancelled := now
	inv.CancelledAt = &cancelled
	return inv, t, nil
}

// IsOverdue reports whether an issued or sent invoice is past its due date.
func IsOverdue(inv domain.Invoice, now time.Time) bool {
	if inv.Status != domain.InvoiceIssued && inv.Status != domain.InvoiceSent {
		return false
	}
	return inv.DueDate != nil && now.After(*inv.DueDate)
}

// DisplayStatus is the stored status, or "overdue" when IsOverdue holds.
func DisplayStatus(inv domain.Invoice, now time.Time) string {
	if IsOverdue(inv, now) {
		return domain.InvoiceDisplayOverdue
	}
	return string(inv.Status)
}
