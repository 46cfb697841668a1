package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/temi-crm/commission-service/internal/app"
	"github.com/temi-crm/commission-service/internal/domain"
)

type createInvoiceRequest struct {
	ProjectID     *string          `json:"project_id,omitempty" validate:"omitempty,max=64"`
	RecipientType string           `json:"recipient_type" validate:"required,oneof=partner client"`
	RecipientID   string           `json:"recipient_id" validate:"required,max=64"`
	Description   string           `json:"description" validate:"max=500"`
	AmountHT      decimal.Decimal  `json:"amount_ht"`
	TVARate       *decimal.Decimal `json:"tva_rate,omitempty"`
	DueDate       *time.Time       `json:"due_date,omitempty"`
}

type recordPaymentRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Reference *string         `json:"reference,omitempty" validate:"omitempty,max=128"`
}

func (h *Handler) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if err := h.decodeAndValidate(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}

	inv, err := h.service.CreateInvoice(r.Context(), app.CreateInvoiceRequest{
		ProjectID:     req.ProjectID,
		RecipientType: domain.RecipientType(req.RecipientType),
		RecipientID:   req.RecipientID,
		Description:   req.Description,
		AmountHT:      req.AmountHT,
		TVARate:       req.TVARate,
		DueDate:       req.DueDate,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, inv)
}

func (h *Handler) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	filter := domain.InvoiceFilter{
		RecipientID: strings.TrimSpace(q.Get("recipient_id")),
		ProjectID:   strings.TrimSpace(q.Get("project_id")),
		Status:      domain.InvoiceStatus(strings.TrimSpace(q.Get("status"))),
		Limit:       limit,
	}
	if filter.Status != "" && !filter.Status.Valid() {
		respondWithError(w, http.StatusBadRequest, "unknown invoice status")
		return
	}

	invoices, err := h.service.ListInvoices(r.Context(), p.Role, p.UserID, filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if invoices == nil {
		invoices = []app.InvoiceView{}
	}
	respondWithJSON(w, http.StatusOK, invoices)
}

func (h *Handler) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	inv, err := h.service.GetInvoice(r.Context(), p.Role, p.UserID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, inv)
}

func (h *Handler) handleIssueInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.service.IssueInvoice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, inv)
}

func (h *Handler) handleSendInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.service.SendInvoice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, inv)
}

func (h *Handler) handleCancelInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.service.CancelInvoice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, inv)
}

func (h *Handler) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	var req recordPaymentRequest
	if err := h.decodeAndValidate(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}

	inv, err := h.service.RecordInvoicePayment(r.Context(), chi.URLParam(r, "id"), req.Amount, req.Reference)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, inv)
}

func (h *Handler) handleRunOverdueJob(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.NotifyOverdueInvoices(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (h *Handler) handleRunTierSnapshotJob(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.SnapshotTiers(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}
