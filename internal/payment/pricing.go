package payment

import (
	"context"

	"scentry/internal/logger"
)

// PricingPolicy is the single place unit prices can be overridden. Earlier
// iterations of the storefront forced a fixed price in one checkout path and
// used real prices in another; here the override is one explicit, logged
// policy applied identically to every path.
type PricingPolicy struct {
	fixedUnitPriceCents int64
	logger              logger.Logger
}

func NewPricingPolicy(fixedUnitPriceCents int64, log logger.Logger) PricingPolicy {
	return PricingPolicy{
		fixedUnitPriceCents: fixedUnitPriceCents,
		logger:              log,
	}
}

// Apply returns the items with the policy applied. With no override
// configured the cart's own prices pass through untouched.
func (p PricingPolicy) Apply(ctx context.Context, items []CartItem) []CartItem {
	if p.fixedUnitPriceCents == 0 {
		return items
	}

	out := make([]CartItem, len(items))
	copy(out, items)
	for i := range out {
		out[i].UnitPriceMinorUnits = p.fixedUnitPriceCents
		out[i].PriceID = ""
	}

	p.logger.WarnwCtx(ctx, "Fixed unit price override active",
		"fixed_unit_price_cents", p.fixedUnitPriceCents,
		"line_items", len(out),
	)
	return out
}
