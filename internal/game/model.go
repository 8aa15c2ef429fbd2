package game

import (
	"errors"
	"fmt"
	"math"
)

const (
	// LoanSharkAmount is the forced cash injection applied whenever a team's
	// capital is at or below zero during the survival months.
	LoanSharkAmount = int64(30_000)

	// LoanInterestRate is charged on outstanding debt every survival month.
	LoanInterestRate = 0.10

	// SalesHardCap bounds the predictor output.
	SalesHardCap = int64(10_000)

	MinProfitMargin = int64(0)
	MaxProfitMargin = int64(200)
)

var (
	ErrInvalidSelection    = errors.New("selection not in catalog")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInconsistentClaim   = errors.New("claim inconsistent with earlier choices")
	ErrOutOfSequence       = errors.New("earlier stage not completed")
	ErrStageClosed         = errors.New("stage not opened yet")
	ErrTeamNotFound        = errors.New("team not found")
	ErrGameFinished        = errors.New("survival game already finished")
	ErrDuplicateSubmission = errors.New("duplicate submission")
)

// DirectCost is the per-cup variable cost: bean + milk + material.
func DirectCost(bean, milk string) (int64, error) {
	beanCost, err := BeanCost(bean)
	if err != nil {
		return 0, err
	}
	milkCost, err := MilkCost(milk)
	if err != nil {
		return 0, err
	}
	return beanCost + milkCost + MaterialCost, nil
}

// IndirectTotal sums the five monthly overhead items. Negative values are
// rejected; the service layer additionally requires the user-entered items
// to be positive.
func IndirectTotal(rent, depreciation, staff, operating, marketing int64) (int64, error) {
	items := []struct {
		name  string
		value int64
	}{
		{"rent", rent},
		{"depreciation", depreciation},
		{"staff", staff},
		{"operating", operating},
		{"marketing", marketing},
	}
	total := int64(0)
	for _, item := range items {
		if item.value < 0 {
			return 0, fmt.Errorf("%w: %s must not be negative", ErrInvalidInput, item.name)
		}
		total += item.value
	}
	return total, nil
}

// PredictSales is the "AI" demand model: base foot traffic, a linear price
// response, and a style-dependent marketing response, clamped between the
// marketing-proportional floor and the hard cap. All arithmetic is float64
// with the final value truncated toward zero, so results are reproducible
// across runs.
func PredictSales(styleID string, price, marketingBudget int64) (int64, error) {
	style, err := StyleByID(styleID)
	if err != nil {
		return 0, err
	}
	if price < 1 {
		return 0, fmt.Errorf("%w: price must be >= 1", ErrInvalidInput)
	}
	if marketingBudget < 0 {
		return 0, fmt.Errorf("%w: marketing budget must not be negative", ErrInvalidInput)
	}

	budget := float64(marketingBudget)
	priceFactor := float64(150-price) * 18

	var marketingEffect float64
	switch style.ID {
	case "A":
		marketingEffect = math.Sqrt(budget)
	case "B":
		marketingEffect = math.Sqrt(budget) * 5
	case "C":
		// Hidden-alley shops are invisible without a minimum spend: the
		// effect ramps from -300 up to 0 below 3000, then pays off hard.
		if marketingBudget < 3000 {
			marketingEffect = -300 + (budget/3000)*300
		} else {
			marketingEffect = math.Sqrt(budget) * 10
		}
	}

	predicted := float64(style.BaseTraffic) + priceFactor + marketingEffect
	units := int64(predicted)
	if minGuarantee := marketingBudget / 500; units < minGuarantee {
		units = minGuarantee
	}
	if units > SalesHardCap {
		units = SalesHardCap
	}
	return units, nil
}

// SuggestPrice allocates the monthly overhead across the forecast volume and
// applies the desired margin on the full unit cost.
func SuggestPrice(directCost, totalIndirect, salesForecast, profitMargin int64) (int64, error) {
	if salesForecast < 1 {
		return 0, fmt.Errorf("%w: sales forecast must be >= 1", ErrInvalidInput)
	}
	if profitMargin < MinProfitMargin || profitMargin > MaxProfitMargin {
		return 0, fmt.Errorf("%w: profit margin must be between %d and %d", ErrInvalidInput, MinProfitMargin, MaxProfitMargin)
	}
	allocatedIndirect := float64(totalIndirect) / float64(salesForecast)
	totalUnitCost := float64(directCost) + allocatedIndirect
	return int64(math.Round(totalUnitCost * (1 + float64(profitMargin)/100))), nil
}

// BreakEven returns the break-even volume in cups. When the contribution
// margin is zero or negative the point is unreachable: the returned volume is
// +Inf and ok is false, and callers must branch on ok instead of dividing.
func BreakEven(totalIndirect, finalPrice, directCost int64) (cups float64, ok bool) {
	contributionMargin := finalPrice - directCost
	if contributionMargin <= 0 {
		return math.Inf(1), false
	}
	return float64(totalIndirect) / float64(contributionMargin), true
}

// ForecastVsBEP is positive when the forecast clears the break-even point.
func ForecastVsBEP(salesForecast int64, breakEvenCups float64) int64 {
	return int64(math.Round(float64(salesForecast) - breakEvenCups))
}

func monthlyInterest(debt int64) int64 {
	return int64(math.Floor(float64(debt) * LoanInterestRate))
}
