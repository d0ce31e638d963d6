// Package generation holds the answer generators and the cost-tracking
// wrapper shared by all of them.
package generation

import (
	"context"

	"docrag/internal/domain"
)

// DefaultCostPerToken is the flat per-token price used for cost estimates.
const DefaultCostPerToken = 0.000002

// CostTracker wraps a Generator and fills in Usage.Cost from the token counts.
type CostTracker struct {
	next         domain.Generator
	costPerToken float64
}

var _ domain.Generator = (*CostTracker)(nil)

// WithCost returns g wrapped in a CostTracker. A non-positive price selects DefaultCostPerToken.
func WithCost(g domain.Generator, costPerToken float64) *CostTracker {
	if costPerToken <= 0 {
		costPerToken = DefaultCostPerToken
	}
	return &CostTracker{next: g, costPerToken: costPerToken}
}

func (c *CostTracker) Name() string { return c.next.Name() }

func (c *CostTracker) Generate(ctx context.Context, system, prompt string) (domain.Generation, error) {
	gen, err := c.next.Generate(ctx, system, prompt)
	if err != nil {
		return gen, err
	}
	total := gen.Usage.TotalTokens
	if total == 0 {
		total = gen.Usage.PromptTokens + gen.Usage.CompletionTokens
		gen.Usage.TotalTokens = total
	}
	gen.Usage.Cost = float64(total) * c.costPerToken
	return gen, nil
}
