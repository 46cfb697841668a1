/**
 * @description
 * Domain models for the commission service. Projects are owned by the CRM and
 * only read here; commissions and invoices are owned by this service.
 */
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuoteStatus is the lifecycle state of a project's quote.
type QuoteStatus string

const (
	QuoteStatusDraft    QuoteStatus = "draft"
	QuoteStatusSent     QuoteStatus = "sent"
	QuoteStatusSigned   QuoteStatus = "signed"
	QuoteStatusRejected QuoteStatus = "rejected"
)

// DownPaymentStatus tracks the client's deposit on a signed quote.
type DownPaymentStatus string

const (
	DownPaymentPending  DownPaymentStatus = "pending"
	DownPaymentReceived DownPaymentStatus = "received"
)

// Project is the quote-bearing project record a commission is computed from.
type Project struct {
	ID                string            `json:"id"`
	AgentID           string            `json:"agent_id"`
	ApporteurID       *string           `json:"apporteur_id,omitempty"`
	Amount            decimal.Decimal   `json:"amount"`
	QuoteStatus       QuoteStatus       `json:"quote_status"`
	DownPaymentStatus DownPaymentStatus `json:"down_payment_status"`
	CreatedAt         time.Time         `json:"created_at"`
}

// HasApporteur reports whether a business provider brought the project in.
func (p Project) HasApporteur() bool {
	return p.ApporteurID != nil && *p.ApporteurID != ""
}

// Invoiceable reports whether a commission on this project may be invoiced.
func (p Project) Invoiceable() bool {
	return p.QuoteStatus == QuoteStatusSigned && p.DownPaymentStatus == DownPaymentReceived
}
