/**
 * @description
 * Core business logic for the commission service: production summaries,
 * commission calculation and simulation, and the commission and invoice
 * workflows with their persisted state and published events.
 */
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/temi-crm/commission-service/internal/commission"
	"github.com/temi-crm/commission-service/internal/domain"
	"github.com/temi-crm/commission-service/internal/store"
)

var (
	ErrForbidden        = errors.New("not allowed for this role")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrProjectNotSigned = errors.New("project quote is not signed")
	ErrRateLimited      = errors.New("rate limit exceeded")
)

// RateLimitError carries how long the caller should wait.
type RateLimitError struct {
	RetryAfterSeconds int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: retry in %ds", ErrRateLimited, e.RetryAfterSeconds)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// Repository defines the database operations the service needs.
type Repository interface {
	GetProject(ctx context.Context, projectID string) (*domain.Project, error)
	ListProjectsForAgent(ctx context.Context, agentID string, from, to time.Time) ([]domain.Project, error)
	ListActiveMandataries(ctx context.Context, from, to time.Time) ([]string, error)
	CreateCommission(ctx context.Context, c domain.Commission) (*domain.Commission, bool, error)
	GetCommission(ctx context.Context, id string) (*domain.Commission, error)
	ListCommissions(ctx context.Context, filter domain.CommissionFilter) ([]domain.Commission, error)
	UpdateCommissionStatus(ctx context.Context, c domain.Commission, expected domain.CommissionStatus) (*domain.Commission, error)
	CreateInvoice(ctx context.Context, inv domain.Invoice) (*domain.Invoice, error)
	GetInvoice(ctx context.Context, id string) (*domain.Invoice, error)
	ListInvoices(ctx context.Context, filter domain.InvoiceFilter) ([]domain.Invoice, error)
	UpdateInvoice(ctx context.Context, inv domain.Invoice, expected domain.InvoiceStatus) (*domain.Invoice, error)
	ApplyInvoicePayment(ctx context.Context, inv domain.Invoice, expected domain.InvoiceStatus, payment domain.InvoicePayment) (*domain.Invoice, error)
	ListInvoicePayments(ctx context.Context, invoiceID string) ([]domain.InvoicePayment, error)
	ClaimOverdueInvoices(ctx context.Context, now time.Time) ([]domain.Invoice, error)
	UpsertTierSnapshot(ctx context.Context, s store.TierSnapshot) error
}

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
}

// ProductionCache stores annual production per mandatary and year.
type ProductionCache interface {
	Get(ctx context.Context, mandataryID string, year int) (decimal.Decimal, bool, error)
	Set(ctx context.Context, mandataryID string, year int, production decimal.Decimal) error
}

// RateLimiter counts calls per scope and subject within a window.
type RateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// Options are the tunables of the service.
type Options struct {
	Exchange                 string
	Timezone                 string
	CommissionDueDays        int
	SimulationLimitPerMinute int
}

// Service provides the business logic for commission management.
type Service struct {
	repo      Repository
	engine    *commission.Engine
	publisher EventPublisher
	cache     ProductionCache
	limiter   RateLimiter
	logger    zerolog.Logger
	opts      Options
	loc       *time.Location
	now       func() time.Time
}

// NewService creates a new commission service. cache and limiter may be nil.
func NewService(repo Repository, engine *commission.Engine, publisher EventPublisher, cache ProductionCache, limiter RateLimiter, opts Options, logger zerolog.Logger) Service {
	loc, err := time.LoadLocation(opts.Timezone)
	if err != nil {
		logger.Warn().Str("timezone", opts.Timezone).Msg("invalid timezone, defaulting to UTC")
		loc = time.UTC
	}
	if opts.Exchange == "" {
		opts.Exchange = "crm.events"
	}

	return Service{
		repo:      repo,
		engine:    engine,
		publisher: publisher,
		cache:     cache,
		limiter:   limiter,
		logger:    logger,
		opts:      opts,
		loc:       loc,
		now:       time.Now,
	}
}

// WithClock returns a copy of the service reading time from now.
func (s Service) WithClock(now func() time.Time) Service {
	s.now = now
	return s
}

// Location is the business timezone production years are counted in.
func (s Service) Location() *time.Location {
	return s.loc
}

// Tiers returns the active tier table.
func (s Service) Tiers() []commission.CommissionTier {
	return s.engine.Table().Tiers()
}

func (s Service) localNow() time.Time {
	return s.now().In(s.loc)
}

// yearBounds returns [Jan 1 year, Jan 1 year+1) in the business timezone.
func (s Service) yearBounds(year int) (time.Time, time.Time) {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, s.loc)
	return from, from.AddDate(1, 0, 0)
}

// monthsElapsed is 12 for past years, 0 for future ones and the current
// calendar month otherwise.
func (s Service) monthsElapsed(year int) int {
	now := s.localNow()
	switch {
	case year < now.Year():
		return 12
	case year > now.Year():
		return 0
	default:
		return commission.MonthsElapsed(now)
	}
}

func (s Service) loadProjects(ctx context.Context, mandataryID string, year int) ([]domain.Project, error) {
	from, to := s.yearBounds(year)
	projects, err := s.repo.ListProjectsForAgent(ctx, mandataryID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list projects for %s: %w", mandataryID, err)
	}
	for i := range projects {
		projects[i].CreatedAt = projects[i].CreatedAt.In(s.loc)
	}
	return projects, nil
}

// freshAnnualProduction aggregates from the store and refreshes the cache.
func (s Service) freshAnnualProduction(ctx context.Context, mandataryID string, year int) (decimal.Decimal, []domain.Project, error) {
	projects, err := s.loadProjects(ctx, mandataryID, year)
	if err != nil {
		return decimal.Zero, nil, err
	}
	production := commission.AnnualProduction(mandataryID, year, projects)

	if s.cache != nil {
		if err := s.cache.Set(ctx, mandataryID, year, production); err != nil {
			s.logger.Warn().Err(err).Str("mandatary_id", mandataryID).Int("year", year).Msg("failed to cache annual production")
		}
	}
	return production, projects, nil
}

// annualProduction reads through the cache.
func (s Service) annualProduction(ctx context.Context, mandataryID string, year int) (decimal.Decimal, error) {
	if s.cache != nil {
		production, ok, err := s.cache.Get(ctx, mandataryID, year)
		if err != nil {
			s.logger.Warn().Err(err).Str("mandatary_id", mandataryID).Int("year", year).Msg("production cache read failed")
		} else if ok {
			return production, nil
		}
	}
	production, _, err := s.freshAnnualProduction(ctx, mandataryID, year)
	return production, err
}

func (s Service) publishEvent(ctx context.Context, routingKey string, payload interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, s.opts.Exchange, routingKey, payload); err != nil {
		s.logger.Warn().Err(err).Str("routing_key", routingKey).Msg("failed to publish event")
	}
}

func (s Service) publishCommissionEvent(ctx context.Context, routingKey string, c domain.Commission, from domain.CommissionStatus) {
	s.publishEvent(ctx, routingKey, domain.CommissionEvent{
		EventID:         uuid.NewString(),
		CommissionID:    c.ID,
		ProjectID:       c.ProjectID,
		MandataryID:     c.MandataryID,
		ApporteurID:     c.ApporteurID,
		From:            from,
		Status:          c.Status,
		PlatformAmount:  c.PlatformAmount,
		MandataryAmount: c.MandataryAmount,
		ApporteurAmount: c.ApporteurAmount,
		DueDate:         c.DueDate,
		PaymentDate:     c.PaymentDate,
		Timestamp:       s.now().UTC(),
	})
}

func (s Service) publishInvoiceEvent(ctx context.Context, routingKey string, inv domain.Invoice, status string) {
	s.publishEvent(ctx, routingKey, domain.InvoiceEvent{
		EventID:     uuid.NewString(),
		InvoiceID:   inv.ID,
		Number:      inv.Number,
		ProjectID:   inv.ProjectID,
		RecipientID: inv.RecipientID,
		Status:      status,
		AmountTTC:   inv.AmountTTC,
		AmountPaid:  inv.AmountPaid,
		DueDate:     inv.DueDate,
		Timestamp:   s.now().UTC(),
	})
}
