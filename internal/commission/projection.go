package commission

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProjectAnnual extrapolates year-end production linearly from the production
// accumulated over monthsElapsed months. Zero elapsed months project to zero.
// Values outside [1,12] are not rejected.
func ProjectAnnual(currentProduction decimal.Decimal, monthsElapsed int) decimal.Decimal {
	if monthsElapsed == 0 {
		return decimal.Zero
	}
	return currentProduction.Mul(twelve).Div(decimal.NewFromInt(int64(monthsElapsed)))
}

// MonthsElapsed counts the current month as elapsed: March 10th gives 3.
func MonthsElapsed(now time.Time) int {
	return int(now.Month())
}
