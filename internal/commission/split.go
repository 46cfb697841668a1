package commission

import (
	"github.com/shopspring/decimal"
)

// SplitInput describes one signed project for the platform/mandatary/apporteur split.
type SplitInput struct {
	ProjectAmount    decimal.Decimal
	AnnualProduction decimal.Decimal
	HasApporteur     bool
}

// Split holds the per-payee figures of a project. The payee shares are each a
// fraction of PlatformGross and are not meant to add up to it.
type Split struct {
	ProjectAmount       decimal.Decimal `json:"project_amount"`
	PlatformRate        decimal.Decimal `json:"platform_rate"`
	PlatformGross       decimal.Decimal `json:"platform_gross"`
	VATRate             decimal.Decimal `json:"vat_rate"`
	VATDue              decimal.Decimal `json:"vat_due"`
	PlatformNet         decimal.Decimal `json:"platform_net"`
	ApporteurRate       decimal.Decimal `json:"apporteur_rate"`
	ApporteurCommission decimal.Decimal `json:"apporteur_commission"`
	Tier                CommissionTier  `json:"tier"`
	MandataryCommission decimal.Decimal `json:"mandatary_commission"`
}

// Split computes the platform gross, VAT, net and the two payee commissions.
func (e *Engine) Split(in SplitInput) (Split, error) {
	if err := requireNonNegative("project_amount", in.ProjectAmount); err != nil {
		return Split{}, err
	}
	if err := e.rates.Validate(); err != nil {
		return Split{}, err
	}

	tier, err := e.ResolveTier(in.AnnualProduction)
	if err != nil {
		return Split{}, err
	}

	gross := percentOf(in.ProjectAmount, e.rates.Platform)
	vat := percentOf(gross, e.rates.VAT)

	apporteur := decimal.Zero
	if in.HasApporteur {
		apporteur = percentOf(gross, e.rates.Apporteur)
	}

	return Split{
		ProjectAmount:       in.ProjectAmount,
		PlatformRate:        e.rates.Platform,
		PlatformGross:       gross,
		VATRate:             e.rates.VAT,
		VATDue:              vat,
		PlatformNet:         gross.Sub(vat),
		ApporteurRate:       e.rates.Apporteur,
		ApporteurCommission: apporteur,
		Tier:                tier,
		MandataryCommission: percentOf(gross, tier.CommissionRate),
	}, nil
}
