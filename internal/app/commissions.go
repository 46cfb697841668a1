package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/temi-crm/commission-service/internal/commission"
	"github.com/temi-crm/commission-service/internal/domain"
	"github.com/temi-crm/commission-service/internal/workflow"
)

// CreateProjectCommission splits a signed project between platform, mandatary
// and apporteur and stores the pending commission. Calling it again for the
// same project returns the stored commission with created=false.
func (s Service) CreateProjectCommission(ctx context.Context, projectID string) (*domain.Commission, bool, error) {
	project, err := s.repo.GetProject(ctx, projectID)
	if err != nil {
		return nil, false, err
	}
	if project.QuoteStatus != domain.QuoteStatusSigned {
		return nil, false, fmt.Errorf("%w: project %s is %s", ErrProjectNotSigned, project.ID, project.QuoteStatus)
	}

	year := project.CreatedAt.In(s.loc).Year()
	production, _, err := s.freshAnnualProduction(ctx, project.AgentID, year)
	if err != nil {
		return nil, false, err
	}

	split, err := s.engine.Split(commission.SplitInput{
		ProjectAmount:    project.Amount,
		AnnualProduction: production,
		HasApporteur:     project.HasApporteur(),
	})
	if err != nil {
		return nil, false, err
	}

	record := domain.Commission{
		ID:                uuid.NewString(),
		ProjectID:         project.ID,
		MandataryID:       project.AgentID,
		ProjectAmount:     commission.Round(project.Amount),
		AnnualProduction:  commission.Round(production),
		TierID:            split.Tier.ID,
		TierRate:          split.Tier.CommissionRate,
		PlatformAmount:    commission.Round(split.PlatformGross),
		VATAmount:         commission.Round(split.VATDue),
		PlatformNetAmount: commission.Round(split.PlatformNet),
		MandataryAmount:   commission.Round(split.MandataryCommission),
		ApporteurAmount:   commission.Round(split.ApporteurCommission),
		Status:            domain.CommissionPending,
	}
	if project.HasApporteur() {
		record.ApporteurID = project.ApporteurID
	}

	stored, created, err := s.repo.CreateCommission(ctx, record)
	if err != nil {
		return nil, false, fmt.Errorf("create commission for project %s: %w", project.ID, err)
	}
	if created {
		s.logger.Info().
			Str("commission_id", stored.ID).
			Str("project_id", project.ID).
			Str("tier_id", stored.TierID).
			Str("mandatary_amount", stored.MandataryAmount.StringFixed(2)).
			Msg("commission created")
		s.publishCommissionEvent(ctx, domain.EventCommissionCreated, *stored, "")
	}
	return stored, created, nil
}

// GetCommission returns a commission visible to the caller.
func (s Service) GetCommission(ctx context.Context, role domain.Role, userID, id string) (*domain.Commission, error) {
	c, err := s.repo.GetCommission(ctx, id)
	if err != nil {
		return nil, err
	}
	if !domain.CanViewCommission(role, userID, *c) {
		return nil, ErrForbidden
	}
	return c, nil
}

// ListCommissions scopes filter to what role may see.
func (s Service) ListCommissions(ctx context.Context, role domain.Role, userID string, filter domain.CommissionFilter) ([]domain.Commission, error) {
	perms := domain.PermissionsFor(role)
	switch {
	case perms.ViewAllCommissions:
	case perms.ViewOwnCommissions && role == domain.RoleMandatary:
		filter.MandataryID = userID
	case perms.ViewOwnCommissions && role == domain.RoleBusinessProvider:
		filter.ApporteurID = userID
	default:
		return nil, ErrForbidden
	}

	commissions, err := s.repo.ListCommissions(ctx, filter)
	if err != nil {
		return nil, err
	}
	return domain.FilterCommissions(role, userID, commissions), nil
}

// IssueCommissionInvoice moves a pending commission to invoiced.
func (s Service) IssueCommissionInvoice(ctx context.Context, id string) (*domain.Commission, error) {
	c, err := s.repo.GetCommission(ctx, id)
	if err != nil {
		return nil, err
	}
	project, err := s.repo.GetProject(ctx, c.ProjectID)
	if err != nil {
		return nil, err
	}

	next, tr, err := workflow.InvoiceCommission(*c, *project, s.now().UTC(), s.opts.CommissionDueDays)
	if err != nil {
		return nil, err
	}
	return s.persistCommissionTransition(ctx, next, tr, domain.EventCommissionInvoiced)
}

// MarkCommissionPaid moves an invoiced commission to paid. The published
// commission.paid event drives payee notification and provider statistics.
func (s Service) MarkCommissionPaid(ctx context.Context, id string) (*domain.Commission, error) {
	c, err := s.repo.GetCommission(ctx, id)
	if err != nil {
		return nil, err
	}

	next, tr, err := workflow.PayCommission(*c, s.now().UTC())
	if err != nil {
		return nil, err
	}
	return s.persistCommissionTransition(ctx, next, tr, domain.EventCommissionPaid)
}

// CancelCommission cancels a pending or invoiced commission.
func (s Service) CancelCommission(ctx context.Context, id, reason string) (*domain.Commission, error) {
	c, err := s.repo.GetCommission(ctx, id)
	if err != nil {
		return nil, err
	}

	next, tr, err := workflow.CancelCommission(*c, reason, s.now().UTC())
	if err != nil {
		return nil, err
	}
	return s.persistCommissionTransition(ctx, next, tr, domain.EventCommissionCancelled)
}

func (s Service) persistCommissionTransition(ctx context.Context, next domain.Commission, tr workflow.Transition, routingKey string) (*domain.Commission, error) {
	from := domain.CommissionStatus(tr.From)
	updated, err := s.repo.UpdateCommissionStatus(ctx, next, from)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("commission_id", updated.ID).
		Str("from", tr.From).
		Str("to", tr.To).
		Msg("commission status changed")
	s.publishCommissionEvent(ctx, routingKey, *updated, from)
	return updated, nil
}
