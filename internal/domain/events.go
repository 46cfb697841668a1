package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Routing keys published on the events exchange.
const (
	EventCommissionCreated   = "commission.created"
	EventCommissionInvoiced  = "commission.invoiced"
	EventCommissionPaid      = "commission.paid"
	EventCommissionCancelled = "commission.cancelled"
	EventInvoiceIssued       = "invoice.issued"
	EventInvoicePaid         = "invoice.paid"
	EventInvoiceOverdue      = "invoice.overdue"
	EventInvoiceCancelled    = "invoice.cancelled"
)

// CommissionEvent is the payload of every commission.* message.
type CommissionEvent struct {
	EventID         string           `json:"event_id"`
	CommissionID    string           `json:"commission_id"`
	ProjectID       string           `json:"project_id"`
	MandataryID     string           `json:"mandatary_id"`
	ApporteurID     *string          `json:"apporteur_id,omitempty"`
	From            CommissionStatus `json:"from,omitempty"`
	Status          CommissionStatus `json:"status"`
	PlatformAmount  decimal.Decimal  `json:"platform_amount"`
	MandataryAmount decimal.Decimal  `json:"mandatary_amount"`
	ApporteurAmount decimal.Decimal  `json:"apporteur_amount"`
	DueDate         *time.Time       `json:"due_date,omitempty"`
	PaymentDate     *time.Time       `json:"payment_date,omitempty"`
	Timestamp       time.Time        `json:"timestamp"`
}

// InvoiceEvent is the payload of every invoice.* message.
type InvoiceEvent struct {
	EventID     string          `json:"event_id"`
	InvoiceID   string          `json:"invoice_id"`
	Number      string          `json:"number"`
	ProjectID   *string         `json:"project_id,omitempty"`
	RecipientID string          `json:"recipient_id"`
	Status      string          `json:"status"`
	AmountTTC   decimal.Decimal `json:"amount_ttc"`
	AmountPaid  decimal.Decimal `json:"amount_paid"`
	DueDate     *time.Time      `json:"due_date,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}
