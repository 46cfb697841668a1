package workflow

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temi-crm/commission-service/internal/domain"
)

var now = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func invoiceableProject() domain.Project {
	return domain.Project{
		ID:                "p1",
		QuoteStatus:       domain.QuoteStatusSigned,
		DownPaymentStatus: domain.DownPaymentReceived,
	}
}

func TestInvoiceCommission(t *testing.T) {
	c := domain.Commission{ID: "c1", Status: domain.CommissionPending}

	got, tr, err := InvoiceCommission(c, invoiceableProject(), now, 0)
	require.NoError(t, err)

	assert.Equal(t, domain.CommissionInvoiced, got.Status)
	require.NotNil(t, got.InvoiceDate)
	require.NotNil(t, got.DueDate)
	assert.Equal(t, now, *got.InvoiceDate)
	assert.Equal(t, now.AddDate(0, 0, 30), *got.DueDate)
	assert.Equal(t, Transition{Entity: "commission", ID: "c1", From: "pending", To: "invoiced", At: now}, tr)
	assert.Equal(t, domain.CommissionPending, c.Status, "input must not be mutated")
}

func TestInvoiceCommission_Guard(t *testing.T) {
	c := domain.Commission{ID: "c1", Status: domain.CommissionPending}

	tests := []struct {
		name    string
		project domain.Project
	}{
		{"quote not signed", domain.Project{QuoteStatus: domain.QuoteStatusSent, DownPaymentStatus: domain.DownPaymentReceived}},
		{"down payment pending", domain.Project{QuoteStatus: domain.QuoteStatusSigned, DownPaymentStatus: domain.DownPaymentPending}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := InvoiceCommission(c, tt.project, now, 30)
			assert.ErrorIs(t, err, ErrNotInvoiceable)
		})
	}
}

func TestCommissionLifecycle(t *testing.T) {
	c := domain.Commission{ID: "c1", Status: domain.CommissionPending}

	c, _, err := InvoiceCommission(c, invoiceableProject(), now, 30)
	require.NoError(t, err)

	paidAt := now.AddDate(0, 0, 12)
	c, tr, err := PayCommission(c, paidAt)
	require.NoError(t, err)
	assert.Equal(t, domain.CommissionPaid, c.Status)
	require.NotNil(t, c.PaymentDate)
	assert.Equal(t, paidAt, *c.PaymentDate)
	assert.Equal(t, "invoiced", tr.From)

	_, _, err = CancelCommission(c, "late", paidAt)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCommissionInvalidTransitions(t *testing.T) {
	pending := domain.Commission{Status: domain.CommissionPending}
	_, _, err := PayCommission(pending, now)
	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "pending", te.From)
	assert.Equal(t, "paid", te.To)

	cancelled := domain.Commission{Status: domain.CommissionCancelled}
	_, _, err = InvoiceCommission(cancelled, invoiceableProject(), now, 30)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCancelCommission(t *testing.T) {
	for _, status := range []domain.CommissionStatus{domain.CommissionPending, domain.CommissionInvoiced} {
		c, tr, err := CancelCommission(domain.Commission{Status: status}, "  duplicate project  ", now)
		require.NoError(t, err, status)
		assert.Equal(t, domain.CommissionCancelled, c.Status)
		require.NotNil(t, c.CancelReason)
		assert.Equal(t, "duplicate project", *c.CancelReason)
		assert.Equal(t, string(status), tr.From)
	}
}

func draft(t *testing.T, ht string) domain.Invoice {
	t.Helper()
	inv, err := NewDraftInvoice(domain.Invoice{ID: "i1", AmountHT: decimal.RequireFromString(ht)}, nil, now)
	require.NoError(t, err)
	return inv
}

func TestNewDraftInvoice(t *testing.T) {
	inv := draft(t, "1000")
	assert.Equal(t, domain.InvoiceDraft, inv.Status)
	assert.True(t, inv.TVARate.Equal(decimal.NewFromInt(20)))
	assert.True(t, inv.AmountTTC.Equal(decimal.NewFromInt(1200)))

	reduced := decimal.RequireFromString("5.5")
	inv, err := NewDraftInvoice(domain.Invoice{AmountHT: decimal.RequireFromString("199.99")}, &reduced, now)
	require.NoError(t, err)
	assert.Equal(t, "210.99", inv.AmountTTC.StringFixed(2))

	_, err = NewDraftInvoice(domain.Invoice{AmountHT: decimal.Zero}, nil, now)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestInvoiceLifecycle_PartialThenFull(t *testing.T) {
	inv := draft(t, "1000")

	inv, _, err := IssueInvoice(inv, now, 30)
	require.NoError(t, err)
	require.NotNil(t, inv.DueDate)
	assert.Equal(t, now.AddDate(0, 0, 30), *inv.DueDate)

	inv, _, err = SendInvoice(inv, now)
	require.NoError(t, err)

	inv, tr, err := RecordPayment(inv, decimal.NewFromInt(500), now)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoicePartiallyPaid, inv.Status)
	assert.Equal(t, "sent", tr.From)
	assert.Nil(t, inv.PaidAt)
	assert.True(t, inv.Balance().Equal(decimal.NewFromInt(700)))

	inv, _, err = RecordPayment(inv, decimal.NewFromInt(200), now)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoicePartiallyPaid, inv.Status)

	inv, tr, err = RecordPayment(inv, decimal.NewFromInt(500), now)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoicePaid, inv.Status)
	assert.Equal(t, "partially_paid", tr.From)
	require.NotNil(t, inv.PaidAt)
	assert.True(t, inv.Balance().IsZero())

	_, _, err = CancelInvoice(inv, now)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRecordPayment_FullFromIssued(t *testing.T) {
	inv, _, err := IssueInvoice(draft(t, "100"), now, 30)
	require.NoError(t, err)

	inv, _, err = RecordPayment(inv, decimal.NewFromInt(120), now)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoicePaid, inv.Status)
}

func TestRecordPayment_Rejections(t *testing.T) {
	_, _, err := RecordPayment(draft(t, "100"), decimal.NewFromInt(10), now)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	issued, _, err := IssueInvoice(draft(t, "100"), now, 30)
	require.NoError(t, err)
	_, _, err = RecordPayment(issued, decimal.Zero, now)
	assert.ErrorIs(t, err, ErrInvalidPayment)
}

func TestIssueInvoice_KeepsExplicitDueDate(t *testing.T) {
	inv := draft(t, "100")
	due := now.AddDate(0, 0, 45)
	inv.DueDate = &due

	inv, _, err := IssueInvoice(inv, now, 30)
	require.NoError(t, err)
	assert.Equal(t, due, *inv.DueDate)
}

func TestDisplayStatus(t *testing.T) {
	due := now.AddDate(0, 0, -1)

	tests := []struct {
		status domain.InvoiceStatus
		want   string
	}{
		{domain.InvoiceIssued, "overdue"},
		{domain.InvoiceSent, "overdue"},
		{domain.InvoiceDraft, "draft"},
		{domain.InvoicePartiallyPaid, "partially_paid"},
		{domain.InvoicePaid, "paid"},
		{domain.InvoiceCancelled, "cancelled"},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			inv := domain.Invoice{Status: tt.status, DueDate: &due}
			assert.Equal(t, tt.want, DisplayStatus(inv, now))
			assert.Equal(t, tt.status, inv.Status, "overdue is never stored")
		})
	}

	notDue := domain.Invoice{Status: domain.InvoiceSent, DueDate: &now}
	assert.Equal(t, "sent", DisplayStatus(notDue, now))
}
