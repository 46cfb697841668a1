package commission

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/temi-crm/commission-service/internal/domain"
)

func countsToward(p domain.Project, mandataryID string, year int) bool {
	return p.AgentID == mandataryID &&
		p.QuoteStatus == domain.QuoteStatusSigned &&
		p.CreatedAt.Year() == year
}

// AnnualProduction sums the signed-quote amounts of mandataryID created in year.
// Projects are read as given: CreatedAt must already be in the business timezone.
func AnnualProduction(mandataryID string, year int, projects []domain.Project) decimal.Decimal {
	total := decimal.Zero
	for _, p := range projects {
		if countsToward(p, mandataryID, year) {
			total = total.Add(p.Amount)
		}
	}
	return total
}

// MonthlyBreakdown splits the same production by calendar month (index 0 = January).
func MonthlyBreakdown(mandataryID string, year int, projects []domain.Project) [12]decimal.Decimal {
	var months [12]decimal.Decimal
	for i := range months {
		months[i] = decimal.Zero
	}
	for _, p := range projects {
		if countsToward(p, mandataryID, year) {
			m := p.CreatedAt.Month() - time.January
			months[m] = months[m].Add(p.Amount)
		}
	}
	return months
}
