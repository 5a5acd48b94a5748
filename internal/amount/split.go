// internal/amount/split.go
package amount

import (
	"errors"

	"splitbill-bot/internal/models"

	"github.com/shopspring/decimal"
)

// ErrInvalidInput is returned when the total or party size fails validation.
var ErrInvalidInput = errors.New("INVALID_INPUT")

// Split divides total evenly across people, rounding the per-person
// share to two decimal places with ties going away from zero. The sum
// of shares may differ from the total by a few minor units; no
// remainder redistribution is performed.
func Split(total decimal.Decimal, people int) (*models.SplitResult, error) {
	if people < 1 {
		return nil, ErrInvalidInput
	}
	if total.IsNegative() {
		return nil, ErrInvalidInput
	}
	if !total.Equal(total.Round(2)) {
		return nil, ErrInvalidInput
	}

	perPerson := total.DivRound(decimal.NewFromInt(int64(people)), 2)

	return &models.SplitResult{
		Total:     total,
		People:    people,
		PerPerson: perPerson,
	}, nil
}

// FormatAmount renders a decimal the way receipts show it: whole
// amounts without a fraction, everything else with two places.
func FormatAmount(value decimal.Decimal) string {
	if value.Equal(value.Truncate(0)) {
		return value.StringFixed(0)
	}
	return value.StringFixed(2)
}
