package workflow

import (
	"strings"
	"time"

	"github.com/temi-crm/commission-service/internal/domain"
)

const entityCommission = "commission"

var commissionTransitions = map[domain.CommissionStatus][]domain.CommissionStatus{
	domain.CommissionPending:  {domain.CommissionInvoiced, domain.CommissionCancelled},
	domain.CommissionInvoiced: {domain.CommissionPaid, domain.CommissionCancelled},
}

// CanTransitionCommission reports whether from -> to is an edge of the commission lifecycle.
func CanTransitionCommission(from, to domain.CommissionStatus) bool {
	for _, next := range commissionTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func commissionTransition(c *domain.Commission, to domain.CommissionStatus, now time.Time) (Transition, error) {
	if !CanTransitionCommission(c.Status, to) {
		return Transition{}, &TransitionError{Entity: entityCommission, From: string(c.Status), To: string(to)}
	}
	t := Transition{Entity: entityCommission, ID: c.ID, From: string(c.Status), To: string(to), At: now}
	c.Status = to
	c.UpdatedAt = now
	return t, nil
}

// InvoiceCommission moves a pending commission to invoiced. The project's quote
// must be signed and its down payment received.
func InvoiceCommission(c domain.Commission, project domain.Project, now time.Time, dueDays int) (domain.Commission, Transition, error) {
	if !CanTransitionCommission(c.Status, domain.CommissionInvoiced) {
		return c, Transition{}, &TransitionError{Entity: entityCommission, From: string(c.Status), To: string(domain.CommissionInvoiced)}
	}
	if !project.Invoiceable() {
		return c, Transition{}, ErrNotInvoiceable
	}

	t, err := commissionTransition(&c, domain.CommissionInvoiced, now)
	if err != nil {
		return c, Transition{}, err
	}
	invoiceDate := now
	due := dueDate(now, dueDays)
	c.InvoiceDate = &invoiceDate
	c.DueDate = &due
	return c, t, nil
}

// PayCommission moves an invoiced commission to paid.
func PayCommission(c domain.Commission, now time.Time) (domain.Commission, Transition, error) {
	t, err := commissionTransition(&c, domain.CommissionPaid, now)
	if err != nil {
		return c, Transition{}, err
	}
	paidAt := now
	c.PaymentDate = &paidAt
	return c, t, nil
}

// CancelCommission cancels a commission that is not yet paid or cancelled.
func CancelCommission(c domain.Commission, reason string, now time.Time) (domain.Commission, Transition, error) {
	t, err := commissionTransition(&c, domain.CommissionCancelled, now)
	if err != nil {
		return c, Transition{}, err
	}
	cancelledAt := now
	c.CancelledAt = &cancelledAt
	if r := strings.TrimSpace(reason); r != "" {
		c.CancelReason = &r
	}
	return c, t, nil
}
