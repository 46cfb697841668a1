package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus is the stored state of a partner or client invoice.
// Overdue is never stored; see InvoiceDisplayOverdue.
type InvoiceStatus string

const (
	InvoiceDraft         InvoiceStatus = "draft"
	InvoiceIssued        InvoiceStatus = "issued"
	InvoiceSent          InvoiceStatus = "sent"
	InvoicePartiallyPaid InvoiceStatus = "partially_paid"
	InvoicePaid          InvoiceStatus = "paid"
	InvoiceCancelled     InvoiceStatus = "cancelled"
)

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceDraft, InvoiceIssued, InvoiceSent, InvoicePartiallyPaid, InvoicePaid, InvoiceCancelled:
		return true
	}
	return false
}

// InvoiceDisplayOverdue is the derived status of an issued or sent invoice past its due date.
const InvoiceDisplayOverdue = "overdue"

// RecipientType says who an invoice is addressed to.
type RecipientType string

const (
	RecipientPartner RecipientType = "partner"
	RecipientClient  RecipientType = "client"
)

// Invoice is a billing document for a partner company or a client.
type Invoice struct {
	ID            string          `json:"id"`
	Number        string          `json:"number"`
	ProjectID     *string         `json:"project_id,omitempty"`
	RecipientType RecipientType   `json:"recipient_type"`
	RecipientID   string          `json:"recipient_id"`
	Description   string          `json:"description"`
	AmountHT      decimal.Decimal `json:"amount_ht"`
	TVARate       decimal.Decimal `json:"tva_rate"`
	AmountTTC     decimal.Decimal `json:"amount_ttc"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	Status        InvoiceStatus   `json:"status"`
	IssueDate     *time.Time      `json:"issue_date,omitempty"`
	DueDate       *time.Time      `json:"due_date,omitempty"`
	SentAt        *time.Time      `json:"sent_at,omitempty"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	CancelledAt   *time.Time      `json:"cancelled_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Balance returns what remains to be paid, never below zero.
func (i Invoice) Balance() decimal.Decimal {
	remaining := i.AmountTTC.Sub(i.AmountPaid)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// InvoicePayment is one payment recorded against an invoice.
type InvoicePayment struct {
	ID        string          `json:"id"`
	InvoiceID string          `json:"invoice_id"`
	Amount    decimal.Decimal `json:"amount"`
	Reference *string         `json:"reference,omitempty"`
	PaidAt    time.Time       `json:"paid_at"`
	CreatedAt time.Time       `json:"created_at"`
}

// InvoiceFilter narrows ListInvoices. Zero values match everything.
type InvoiceFilter struct {
	RecipientID string
	ProjectID   string
	Status      InvoiceStatus
	Limit       int
}
