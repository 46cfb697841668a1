/**
 * @description
 * HTTP handlers for the commission service.
 */
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/temi-crm/commission-service/internal/app"
	"github.com/temi-crm/commission-service/internal/commission"
	"github.com/temi-crm/commission-service/internal/domain"
	"github.com/temi-crm/commission-service/internal/store"
	"github.com/temi-crm/commission-service/internal/workflow"
)

// Service is the application surface the handlers call.
type Service interface {
	Tiers() []commission.CommissionTier
	ProductionSummary(ctx context.Context, mandataryID string, year int) (*app.ProductionSummary, error)
	CalculateCommission(ctx context.Context, req app.CalculateRequest) (*commission.CommissionCalculation, error)
	SimulateProjectImpact(ctx context.Context, subject string, req app.SimulateRequest) (*commission.SimulationResult, error)

	CreateProjectCommission(ctx context.Context, projectID string) (*domain.Commission, bool, error)
	GetCommission(ctx context.Context, role domain.Role, userID, id string) (*domain.Commission, error)
	ListCommissions(ctx context.Context, role domain.Role, userID string, filter domain.CommissionFilter) ([]domain.Commission, error)
	IssueCommissionInvoice(ctx context.Context, id string) (*domain.Commission, error)
	MarkCommissionPaid(ctx context.Context, id string) (*domain.Commission, error)
	CancelCommission(ctx context.Context, id, reason string) (*domain.Commission, error)

	CreateInvoice(ctx context.Context, req app.CreateInvoiceRequest) (*app.InvoiceView, error)
	GetInvoice(ctx context.Context, role domain.Role, userID, id string) (*app.InvoiceView, error)
	ListInvoices(ctx context.Context, role domain.Role, userID string, filter domain.InvoiceFilter) ([]app.InvoiceView, error)
	IssueInvoice(ctx context.Context, id string) (*app.InvoiceView, error)
	SendInvoice(ctx context.Context, id string) (*app.InvoiceView, error)
	CancelInvoice(ctx context.Context, id string) (*app.InvoiceView, error)
	RecordInvoicePayment(ctx context.Context, id string, amount decimal.Decimal, reference *string) (*app.InvoiceView, error)

	NotifyOverdueInvoices(ctx context.Context) (*app.OverdueResult, error)
	SnapshotTiers(ctx context.Context) (*app.SnapshotResult, error)
}

// Handler holds the application service that handlers will interact with.
type Handler struct {
	service  Service
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewHandler creates a new Handler with the given service.
func NewHandler(service Service, logger zerolog.Logger) *Handler {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Handler{
		service:  service,
		validate: validate,
		logger:   logger,
	}
}

func (h *Handler) handleListTiers(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.service.Tiers())
}

// decodeAndValidate reads a JSON body into dst and runs its validate tags.
// An empty body is accepted when allowEmpty is set.
func (h *Handler) decodeAndValidate(r *http.Request, dst interface{}, allowEmpty bool) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if !allowEmpty || !errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: malformed JSON body: %v", app.ErrInvalidRequest, err)
		}
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return &validationError{fields: verrs}
		}
		return fmt.Errorf("%w: %v", app.ErrInvalidRequest, err)
	}
	return nil
}

type validationError struct {
	fields validator.ValidationErrors
}

func (e *validationError) Error() string {
	parts := make([]string, 0, len(e.fields))
	for _, f := range e.fields {
		parts = append(parts, fmt.Sprintf("%s failed %s", f.Field(), f.Tag()))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *validationError) details() map[string]string {
	out := make(map[string]string, len(e.fields))
	for _, f := range e.fields {
		out[f.Field()] = f.Tag()
	}
	return out
}

func (e *validationError) Unwrap() error { return app.ErrInvalidRequest }

func queryInt(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", app.ErrInvalidRequest, key)
	}
	return v, nil
}

func principal(w http.ResponseWriter, r *http.Request) (Principal, bool) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
	}
	return p, ok
}

// errorResponse is the envelope of every non-2xx JSON response.
type errorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

// writeError maps service errors to HTTP statuses.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		rateLimited *app.RateLimitError
		invalid     *validationError
		transition  *workflow.TransitionError
	)

	switch {
	case errors.As(err, &invalid):
		respondWithJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Details: invalid.details()})
	case errors.As(err, &rateLimited):
		w.Header().Set("Retry-After", strconv.Itoa(rateLimited.RetryAfterSeconds))
		respondWithError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, commission.ErrInvalidInput),
		errors.Is(err, app.ErrInvalidRequest),
		errors.Is(err, workflow.ErrInvalidAmount),
		errors.Is(err, workflow.ErrInvalidPayment):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrForbidden):
		respondWithError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, store.ErrProjectNotFound),
		errors.Is(err, store.ErrCommissionNotFound),
		errors.Is(err, store.ErrInvoiceNotFound):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &transition), errors.Is(err, store.ErrStatusConflict):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, workflow.ErrNotInvoiceable),
		errors.Is(err, app.ErrProjectNotSigned),
		errors.Is(err, commission.ErrNoMatchingTier):
		respondWithError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.logger.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		respondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, errorResponse{Error: message})
}

// respondWithJSON writes JSON responses.
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
