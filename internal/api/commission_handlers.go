package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/temi-crm/commission-service/internal/app"
	"github.com/temi-crm/commission-service/internal/domain"
)

type calculateRequest struct {
	MandataryID      string           `json:"mandatary_id" validate:"omitempty,max=64"`
	ProjectAmount    decimal.Decimal  `json:"project_amount"`
	AnnualProduction *decimal.Decimal `json:"annual_production,omitempty"`
	PlatformRate     *decimal.Decimal `json:"platform_rate,omitempty"`
	Year             int              `json:"year" validate:"omitempty,gte=2000,lte=2100"`
	Month            int              `json:"month" validate:"omitempty,min=1,max=12"`
	UseProjection    bool             `json:"use_projection"`
}

type simulateRequest struct {
	MandataryID        string           `json:"mandatary_id" validate:"omitempty,max=64"`
	HypotheticalAmount decimal.Decimal  `json:"hypothetical_amount"`
	CurrentProduction  *decimal.Decimal `json:"current_production,omitempty"`
	MonthsElapsed      *int             `json:"months_elapsed,omitempty" validate:"omitempty,min=0,max=12"`
	Year               int              `json:"year" validate:"omitempty,gte=2000,lte=2100"`
}

type cancelCommissionRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// scopeMandatary resolves which mandatary's production the caller may read.
// Callers limited to their own production always get their own id.
func scopeMandatary(p Principal, requested string) (string, error) {
	perms := domain.PermissionsFor(p.Role)
	switch {
	case perms.ViewAnyProduction:
		return requested, nil
	case perms.ViewOwnProduction && (requested == "" || requested == p.UserID):
		return p.UserID, nil
	default:
		return "", app.ErrForbidden
	}
}

func (h *Handler) handleProductionSummary(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	mandataryID := chi.URLParam(r, "id")
	if !domain.CanViewProduction(p.Role, p.UserID, mandataryID) {
		h.writeError(w, r, app.ErrForbidden)
		return
	}
	year, err := queryInt(r, "year")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	summary, err := h.service.ProductionSummary(r.Context(), mandataryID, year)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleCalculate(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req calculateRequest
	if err := h.decodeAndValidate(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}
	mandataryID, err := scopeMandatary(p, req.MandataryID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	calc, err := h.service.CalculateCommission(r.Context(), app.CalculateRequest{
		MandataryID:      mandataryID,
		ProjectAmount:    req.ProjectAmount,
		AnnualProduction: req.AnnualProduction,
		PlatformRate:     req.PlatformRate,
		Year:             req.Year,
		Month:            req.Month,
		UseProjection:    req.UseProjection,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, calc)
}

func (h *Handler) handleSimulate(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req simulateRequest
	if err := h.decodeAndValidate(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}
	mandataryID, err := scopeMandatary(p, req.MandataryID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.service.SimulateProjectImpact(r.Context(), p.UserID, app.SimulateRequest{
		MandataryID:        mandataryID,
		HypotheticalAmount: req.HypotheticalAmount,
		CurrentProduction:  req.CurrentProduction,
		MonthsElapsed:      req.MonthsElapsed,
		Year:               req.Year,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (h *Handler) handleListCommissions(w http.ResponseWriter, r *http.Request) {
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
	filter := domain.CommissionFilter{
		MandataryID: strings.TrimSpace(q.Get("mandatary_id")),
		ApporteurID: strings.TrimSpace(q.Get("apporteur_id")),
		Status:      domain.CommissionStatus(strings.TrimSpace(q.Get("status"))),
		Limit:       limit,
	}
	if filter.Status != "" && !filter.Status.Valid() {
		respondWithError(w, http.StatusBadRequest, "unknown commission status")
		return
	}

	commissions, err := h.service.ListCommissions(r.Context(), p.Role, p.UserID, filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if commissions == nil {
		commissions = []domain.Commission{}
	}
	respondWithJSON(w, http.StatusOK, commissions)
}

func (h *Handler) handleGetCommission(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	c, err := h.service.GetCommission(r.Context(), p.Role, p.UserID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, c)
}

func (h *Handler) handleCreateProjectCommission(w http.ResponseWriter, r *http.Request) {
	c, created, err := h.service.CreateProjectCommission(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondWithJSON(w, status, c)
}

func (h *Handler) handleIssueCommissionInvoice(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.IssueCommissionInvoice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, c)
}

func (h *Handler) handleMarkCommissionPaid(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.MarkCommissionPaid(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, c)
}

func (h *Handler) handleCancelCommission(w http.ResponseWriter, r *http.Request) {
	var req cancelCommissionRequest
	if err := h.decodeAndValidate(r, &req, true); err != nil {
		h.writeError(w, r, err)
		return
	}
	c, err := h.service.CancelCommission(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, c)
}
