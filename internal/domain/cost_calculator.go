package domain

import (
	"context"
	"fmt"
)

// CostCalculator prices a single model execution. Pure: no side effects,
// safe to memoize per (model, inputUnits, outputUnits) for audit replay.
type CostCalculator struct {
	catalog RateCardCatalog
}

// NewCostCalculator creates a cost calculator (DI constructor).
func NewCostCalculator(catalog RateCardCatalog) *CostCalculator {
	return &CostCalculator{
		catalog: catalog,
	}
}

// Calculate computes the cost of an execution:
//
//	cost = in×inCost×(1+inMargin/100) + out×outCost×(1+outMargin/100)
//
// converted by the card's FX rate and rounded half-up to the currency's
// minor-unit precision.
func (c *CostCalculator) Calculate(
	ctx context.Context,
	model string,
	inputUnits, outputUnits int64,
) (Money, error) {
	if inputUnits < 0 || outputUnits < 0 {
		return Money{}, fmt.Errorf("%w: input=%d output=%d", ErrInvalidUnits, inputUnits, outputUnits)
	}

	card, err := c.catalog.Get(ctx, model)
	if err != nil {
		return Money{}, err
	}

	inputCost := marginAdjusted(card.InputUnitCost, card.InputMarginPct).
		Mul(NewDecimalFromInt64(inputUnits))
	outputCost := marginAdjusted(card.OutputUnitCost, card.OutputMarginPct).
		Mul(NewDecimalFromInt64(outputUnits))

	total := inputCost.Add(outputCost).Mul(card.FXRate)

	return NewMoney(total, card.Currency).Round(), nil
}

// marginAdjusted uplifts a raw unit cost by the margin percentage.
func marginAdjusted(unitCost Decimal, marginPct *Decimal) Decimal {
	margin := DefaultMarginPct
	if marginPct != nil {
		margin = *marginPct
	}
	return unitCost.Add(unitCost.Percent(margin))
}
