package payment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"scentry/internal/logger"
)

func TestPricingPolicyPassThrough(t *testing.T) {
	p := NewPricingPolicy(0, logger.NopLogger())
	items := []CartItem{
		{PriceID: "price_1", ProductID: "prod_1", Quantity: 1, UnitPriceMinorUnits: 4999},
		{PriceID: "price_2", ProductID: "prod_2", Quantity: 2, UnitPriceMinorUnits: 2500},
	}

	got := p.Apply(context.Background(), items)
	assert.Equal(t, items, got)
}

func TestPricingPolicyOverride(t *testing.T) {
	p := NewPricingPolicy(100, logger.NopLogger())
	items := []CartItem{
		{PriceID: "price_1", ProductID: "prod_1", Quantity: 1, UnitPriceMinorUnits: 4999},
		{PriceID: "price_2", ProductID: "prod_2", Quantity: 2, UnitPriceMinorUnits: 2500},
	}

	got := p.Apply(context.Background(), items)
	for _, item := range got {
		assert.Equal(t, int64(100), item.UnitPriceMinorUnits)
		assert.Empty(t, item.PriceID, "override must not reuse processor price objects")
	}

	// Input untouched.
	assert.Equal(t, int64(4999), items[0].UnitPriceMinorUnits)
	assert.Equal(t, "price_1", items[0].PriceID)
}
