package app

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/temi-crm/commission-service/internal/domain"
	"github.com/temi-crm/commission-service/internal/store"
)

// CommissionCreator is the part of Service the consumer drives.
type CommissionCreator interface {
	CreateProjectCommission(ctx context.Context, projectID string) (*domain.Commission, bool, error)
}

// InvoicePaidConsumer computes a project's commission when its invoice is fully paid.
type InvoicePaidConsumer struct {
	service CommissionCreator
	logger  zerolog.Logger
}

func NewInvoicePaidConsumer(service CommissionCreator, logger zerolog.Logger) *InvoicePaidConsumer {
	return &InvoicePaidConsumer{service: service, logger: logger}
}

// HandleMessage returns false only for failures worth redelivering.
func (c *InvoicePaidConsumer) HandleMessage(body []byte) bool {
	var event domain.InvoiceEvent
	if err := json.Unmarshal(body, &event); err != nil {
		c.logger.Error().Err(err).Msg("invoice-paid consumer: failed to unmarshal payload")
		return true
	}

	if event.ProjectID == nil || *event.ProjectID == "" {
		c.logger.Debug().Str("invoice_id", event.InvoiceID).Msg("invoice-paid consumer: invoice has no project; acknowledging")
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	commission, created, err := c.service.CreateProjectCommission(ctx, *event.ProjectID)
	if err != nil {
		if errors.Is(err, store.ErrProjectNotFound) || errors.Is(err, ErrProjectNotSigned) {
			c.logger.Warn().Err(err).Str("project_id", *event.ProjectID).Msg("invoice-paid consumer: project not eligible; acknowledging")
			return true
		}
		c.logger.Error().Err(err).Str("project_id", *event.ProjectID).Msg("invoice-paid consumer: processing error")
		return false
	}

	c.logger.Info().
		Str("invoice_id", event.InvoiceID).
		Str("commission_id", commission.ID).
		Bool("created", created).
		Msg("invoice-paid consumer: commission ready")
	return true
}
