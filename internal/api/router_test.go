package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temi-crm/commission-service/internal/app"
	"github.com/temi-crm/commission-service/internal/commission"
	"github.com/temi-crm/commission-service/internal/domain"
	"github.com/temi-crm/commission-service/internal/store"
	"github.com/temi-crm/commission-service/internal/workflow"
)

const (
	testSecret      = "test-secret"
	testInternalKey = "internal-key"
)

// serviceStub embeds Service so tests only implement what they exercise.
type serviceStub struct {
	Service

	productionFor string
	calcReq       app.CalculateRequest
	simSubject    string
	simReq        app.SimulateRequest
	cancelReason  string
	paymentAmount decimal.Decimal
	listFilter    domain.CommissionFilter
	err           error
	created       bool
	overdueRuns   int
}

func (s *serviceStub) Tiers() []commission.CommissionTier {
	return commission.DefaultTiers()
}

func (s *serviceStub) ProductionSummary(ctx context.Context, mandataryID string, year int) (*app.ProductionSummary, error) {
	s.productionFor = mandataryID
	if s.err != nil {
		return nil, s.err
	}
	return &app.ProductionSummary{MandataryID: mandataryID, Year: year}, nil
}

func (s *serviceStub) CalculateCommission(ctx context.Context, req app.CalculateRequest) (*commission.CommissionCalculation, error) {
	s.calcReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &commission.CommissionCalculation{MandataryID: req.MandataryID, ProjectAmount: req.ProjectAmount}, nil
}

func (s *serviceStub) SimulateProjectImpact(ctx context.Context, subject string, req app.SimulateRequest) (*commission.SimulationResult, error) {
	s.simSubject = subject
	s.simReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &commission.SimulationResult{TierUpgrade: true}, nil
}

func (s *serviceStub) CreateProjectCommission(ctx context.Context, projectID string) (*domain.Commission, bool, error) {
	if s.err != nil {
		return nil, false, s.err
	}
	return &domain.Commission{ID: "c-1", ProjectID: projectID}, s.created, nil
}

func (s *serviceStub) GetCommission(ctx context.Context, role domain.Role, userID, id string) (*domain.Commission, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Commission{ID: id}, nil
}

func (s *serviceStub) ListCommissions(ctx context.Context, role domain.Role, userID string, filter domain.CommissionFilter) ([]domain.Commission, error) {
	s.listFilter = filter
	return nil, s.err
}

func (s *serviceStub) MarkCommissionPaid(ctx context.Context, id string) (*domain.Commission, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Commission{ID: id, Status: domain.CommissionPaid}, nil
}

func (s *serviceStub) CancelCommission(ctx context.Context, id, reason string) (*domain.Commission, error) {
	s.cancelReason = reason
	return &domain.Commission{ID: id, Status: domain.CommissionCancelled}, s.err
}

func (s *serviceStub) CreateInvoice(ctx context.Context, req app.CreateInvoiceRequest) (*app.InvoiceView, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &app.InvoiceView{Invoice: domain.Invoice{ID: "inv-1", RecipientType: req.RecipientType, AmountHT: req.AmountHT}}, nil
}

func (s *serviceStub) RecordInvoicePayment(ctx context.Context, id string, amount decimal.Decimal, reference *string) (*app.InvoiceView, error) {
	s.paymentAmount = amount
	if s.err != nil {
		return nil, s.err
	}
	return &app.InvoiceView{Invoice: domain.Invoice{ID: id, Status: domain.InvoicePaid}, DisplayStatus: "paid"}, nil
}

func (s *serviceStub) NotifyOverdueInvoices(ctx context.Context) (*app.OverdueResult, error) {
	s.overdueRuns++
	return &app.OverdueResult{Notified: 2}, nil
}

type pingStub struct{ err error }

func (p pingStub) Ping(context.Context) error { return p.err }

func newTestRouter(svc Service, health HealthChecker) http.Handler {
	return NewRouter(NewHandler(svc, zerolog.Nop()), RouterOptions{
		JWTSecret:      testSecret,
		InternalAPIKey: testInternalKey,
		AllowedOrigins: []string{"*"},
		Health:         health,
		Logger:         zerolog.Nop(),
	})
}

func authRequest(t *testing.T, method, path, body string, userID string, role domain.Role) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		token, err := SignToken(testSecret, userID, role, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	rec := serve(newTestRouter(&serviceStub{}, pingStub{}), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(newTestRouter(&serviceStub{}, pingStub{err: errors.New("down")}), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAuth(t *testing.T) {
	router := newTestRouter(&serviceStub{}, nil)

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/commission-tiers", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/commission-tiers", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	assert.Equal(t, http.StatusUnauthorized, serve(router, req).Code)

	forged, err := SignToken("other-secret", "u-1", domain.RoleAdmin, time.Hour)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/commission-tiers", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	assert.Equal(t, http.StatusUnauthorized, serve(router, req).Code)

	expired, err := SignToken(testSecret, "u-1", domain.RoleAdmin, -time.Minute)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/commission-tiers", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	assert.Equal(t, http.StatusUnauthorized, serve(router, req).Code)

	rec = serve(router, authRequest(t, http.MethodGet, "/commission-tiers", "", "u-1", "superuser"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListTiers(t *testing.T) {
	router := newTestRouter(&serviceStub{}, nil)

	rec := serve(router, authRequest(t, http.MethodGet, "/commission-tiers", "", "m-1", domain.RoleMandatary))
	require.Equal(t, http.StatusOK, rec.Code)
	var tiers []commission.CommissionTier
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tiers))
	assert.Len(t, tiers, 6)

	rec = serve(router, authRequest(t, http.MethodGet, "/commission-tiers", "", "c-1", domain.RoleClient))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestProductionSummaryAccess(t *testing.T) {
	svc := &serviceStub{}
	router := newTestRouter(svc, nil)

	rec := serve(router, authRequest(t, http.MethodGet, "/mandataries/m-1/production?year=2025", "", "m-1", domain.RoleMandatary))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "m-1", svc.productionFor)

	rec = serve(router, authRequest(t, http.MethodGet, "/mandataries/m-2/production", "", "m-1", domain.RoleMandatary))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(router, authRequest(t, http.MethodGet, "/mandataries/m-2/production", "", "mgr", domain.RoleManager))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(router, authRequest(t, http.MethodGet, "/mandataries/m-2/production?year=abc", "", "mgr", domain.RoleManager))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCalculate_ScopesMandataryToCaller(t *testing.T) {
	svc := &serviceStub{}
	router := newTestRouter(svc, nil)

	rec := serve(router, authRequest(t, http.MethodPost, "/commissions/calculate", `{"project_amount":"100000"}`, "m-1", domain.RoleMandatary))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "m-1", svc.calcReq.MandataryID)
	assert.True(t, svc.calcReq.ProjectAmount.Equal(decimal.NewFromInt(100000)))

	rec = serve(router, authRequest(t, http.MethodPost, "/commissions/calculate", `{"mandatary_id":"m-2","project_amount":1}`, "m-1", domain.RoleMandatary))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(router, authRequest(t, http.MethodPost, "/commissions/calculate", `{"project_amount":1}`, "bp-1", domain.RoleBusinessProvider))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCalculate_Validation(t *testing.T) {
	svc := &serviceStub{}
	router := newTestRouter(svc, nil)

	rec := serve(router, authRequest(t, http.MethodPost, "/commissions/calculate", `{"project_amount":1,"month":13}`, "a-1", domain.RoleAdmin))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "max", body.Details["month"])

	rec = serve(router, authRequest(t, http.MethodPost, "/commissions/calculate", `{"project_amount":`, "a-1", domain.RoleAdmin))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(router, authRequest(t, http.MethodPost, "/commissions/calculate", `{"project_amount":1,"bonus":true}`, "a-1", domain.RoleAdmin))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	svc.err = &commission.InputError{Field: "project_amount", Reason: "must not be negative"}
	rec = serve(router, authRequest(t, http.MethodPost, "/commissions/calculate", `{"mandatary_id":"m-1","project_amount":-1}`, "a-1", domain.RoleAdmin))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Error, "project_amount")
}

func TestSimulate_RateLimited(t *testing.T) {
	svc := &serviceStub{err: &app.RateLimitError{RetryAfterSeconds: 17}}
	router := newTestRouter(svc, nil)

	rec := serve(router, authRequest(t, http.MethodPost, "/commissions/simulate", `{"hypothetical_amount":"50000"}`, "m-1", domain.RoleMandatary))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "17", rec.Header().Get("Retry-After"))
	assert.Equal(t, "m-1", svc.simSubject)
	assert.Equal(t, "m-1", svc.simReq.MandataryID)
}

func TestCommissionWorkflowRoutes(t *testing.T) {
	svc := &serviceStub{created: true}
	router := newTestRouter(svc, nil)

	rec := serve(router, authRequest(t, http.MethodPost, "/projects/p-1/commissions", "", "a-1", domain.RoleAdmin))
	assert.Equal(t, http.StatusCreated, rec.Code)

	svc.created = false
	rec = serve(router, authRequest(t, http.MethodPost, "/projects/p-1/commissions", "", "a-1", domain.RoleAdmin))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(router, authRequest(t, http.MethodPost, "/commissions/c-1/pay", "", "m-1", domain.RoleMandatary))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(router, authRequest(t, http.MethodPost, "/commissions/c-1/cancel", "", "a-1", domain.RoleAdmin))
	assert.Equal(t, http.StatusOK, rec.Code, "cancel accepts an empty body")

	rec = serve(router, authRequest(t, http.MethodPost, "/commissions/c-1/cancel", `{"reason":"duplicate"}`, "a-1", domain.RoleAdmin))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "duplicate", svc.cancelReason)
}

func TestListCommissions_Filters(t *testing.T) {
	svc := &serviceStub{}
	router := newTestRouter(svc, nil)

	rec := serve(router, authRequest(t, http.MethodGet, "/commissions?status=invoiced&limit=20", "", "a-1", domain.RoleAdmin))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
	assert.Equal(t, domain.CommissionInvoiced, svc.listFilter.Status)
	assert.Equal(t, 20, svc.listFilter.Limit)

	rec = serve(router, authRequest(t, http.MethodGet, "/commissions?status=overdue", "", "a-1", domain.RoleAdmin))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{store.ErrCommissionNotFound, http.StatusNotFound},
		{fmt.Errorf("load: %w", store.ErrProjectNotFound), http.StatusNotFound},
		{app.ErrForbidden, http.StatusForbidden},
		{&workflow.TransitionError{Entity: "commission", From: "paid", To: "cancelled"}, http.StatusConflict},
		{store.ErrStatusConflict, http.StatusConflict},
		{workflow.ErrNotInvoiceable, http.StatusUnprocessableEntity},
		{app.ErrProjectNotSigned, http.StatusUnprocessableEntity},
		{errors.New("connection refused"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			router := newTestRouter(&serviceStub{err: tt.err}, nil)
			rec := serve(router, authRequest(t, http.MethodGet, "/commissions/c-1", "", "a-1", domain.RoleAdmin))
			assert.Equal(t, tt.want, rec.Code)
			body := decodeError(t, rec)
			assert.NotEmpty(t, body.Error)
			if tt.want == http.StatusInternalServerError {
				assert.Equal(t, "internal server error", body.Error)
			}
		})
	}
}

func TestInvoiceRoutes(t *testing.T) {
	svc := &serviceStub{}
	router := newTestRouter(svc, nil)

	rec := serve(router, authRequest(t, http.MethodPost, "/invoices", `{"recipient_type":"client","recipient_id":"c-1","amount_ht":"1000"}`, "a-1", domain.RoleAdmin))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = serve(router, authRequest(t, http.MethodPost, "/invoices", `{"recipient_type":"supplier","recipient_id":"c-1","amount_ht":"1000"}`, "a-1", domain.RoleAdmin))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "oneof", decodeError(t, rec).Details["recipient_type"])

	rec = serve(router, authRequest(t, http.MethodPost, "/invoices", `{"recipient_type":"client","recipient_id":"c-1","amount_ht":"1000"}`, "c-1", domain.RoleClient))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(router, authRequest(t, http.MethodPost, "/invoices/inv-1/payments", `{"amount":"1200.50","reference":"VIR-1"}`, "a-1", domain.RoleAdmin))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, svc.paymentAmount.Equal(decimal.RequireFromString("1200.50")))

	svc.err = workflow.ErrInvalidPayment
	rec = serve(router, authRequest(t, http.MethodPost, "/invoices/inv-1/payments", `{"amount":"-1"}`, "a-1", domain.RoleAdmin))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInternalJobs(t *testing.T) {
	svc := &serviceStub{}
	router := newTestRouter(svc, nil)

	rec := serve(router, httptest.NewRequest(http.MethodPost, "/internal/jobs/overdue/run", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/internal/jobs/overdue/run", nil)
	req.Header.Set("X-Internal-API-Key", testInternalKey)
	rec = serve(router, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"notified":2}`, rec.Body.String())
	assert.Equal(t, 1, svc.overdueRuns)
}
