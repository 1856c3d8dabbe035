package domain

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// InMemoryRateCardCatalog stores rate cards in memory.
type InMemoryRateCardCatalog struct {
	mu    sync.RWMutex
	cards map[string]RateCard
}

// NewInMemoryRateCardCatalog creates an empty rate card catalog.
func NewInMemoryRateCardCatalog() *InMemoryRateCardCatalog {
	return &InMemoryRateCardCatalog{
		cards: make(map[string]RateCard),
	}
}

var _ RateCardCatalog = (*InMemoryRateCardCatalog)(nil)

// Get retrieves the rate card for a model.
func (c *InMemoryRateCardCatalog) Get(_ context.Context, model string) (RateCard, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	card, exists := c.cards[model]
	if !exists {
		return RateCard{}, fmt.Errorf("%w: %s", ErrUnknownModel, model)
	}

	return card, nil
}

// Register adds a rate card after validation. Margins left unset default to
// DefaultMarginPct. Existing cards are never replaced.
func (c *InMemoryRateCardCatalog) Register(_ context.Context, card RateCard) error {
	if card.Model == "" {
		return errors.New("model cannot be empty")
	}
	if card.InputUnitCost.IsNegative() || card.OutputUnitCost.IsNegative() {
		return fmt.Errorf("rate card %s: unit costs must be non-negative", card.Model)
	}
	if card.FXRate.IsNegative() {
		return fmt.Errorf("rate card %s: fx rate must be non-negative", card.Model)
	}
	if card.Currency == "" {
		card.Currency = "USD"
	}
	if card.FXRate.IsZero() {
		card.FXRate = NewDecimalFromInt64(1)
	}
	if card.InputMarginPct == nil {
		m := DefaultMarginPct
		card.InputMarginPct = &m
	}
	if card.OutputMarginPct == nil {
		m := DefaultMarginPct
		card.OutputMarginPct = &m
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.cards[card.Model]; exists {
		return fmt.Errorf("%w: %s", ErrRateCardExists, card.Model)
	}

	c.cards[card.Model] = card
	return nil
}
