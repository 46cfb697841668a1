package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CommissionStatus is the stored state of a commission record.
type CommissionStatus string

const (
	CommissionPending   CommissionStatus = "pending"
	CommissionInvoiced  CommissionStatus = "invoiced"
	CommissionPaid      CommissionStatus = "paid"
	CommissionCancelled CommissionStatus = "cancelled"
)

func (s CommissionStatus) Valid() bool {
	switch s {
	case CommissionPending, CommissionInvoiced, CommissionPaid, CommissionCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed.
func (s CommissionStatus) Terminal() bool {
	return s == CommissionPaid || s == CommissionCancelled
}

// Commission is the persisted split of one project between the platform, its
// mandatary and its apporteur. Amounts are rounded to cents when created and
// never edited afterwards.
type Commission struct {
	ID                string           `json:"id"`
	ProjectID         string           `json:"project_id"`
	MandataryID       string           `json:"mandatary_id"`
	ApporteurID       *string          `json:"apporteur_id,omitempty"`
	ProjectAmount     decimal.Decimal  `json:"project_amount"`
	AnnualProduction  decimal.Decimal  `json:"annual_production"`
	TierID            string           `json:"tier_id"`
	TierRate          decimal.Decimal  `json:"tier_rate"`
	PlatformAmount    decimal.Decimal  `json:"platform_amount"`
	VATAmount         decimal.Decimal  `json:"vat_amount"`
	PlatformNetAmount decimal.Decimal  `json:"platform_net_amount"`
	MandataryAmount   decimal.Decimal  `json:"mandatary_amount"`
	ApporteurAmount   decimal.Decimal  `json:"apporteur_amount"`
	Status            CommissionStatus `json:"status"`
	InvoiceDate       *time.Time       `json:"invoice_date,omitempty"`
	DueDate           *time.Time       `json:"due_date,omitempty"`
	PaymentDate       *time.Time       `json:"payment_date,omitempty"`
	CancelledAt       *time.Time       `json:"cancelled_at,omitempty"`
	CancelReason      *string          `json:"cancel_reason,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// CommissionFilter narrows ListCommissions. Zero values match everything.
type CommissionFilter struct {
	MandataryID string
	ApporteurID string
	Status      CommissionStatus
	Limit       int
}
