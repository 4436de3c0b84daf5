// ABOUTME: Per-model pricing table and cost estimation for Gemini interactions
// ABOUTME: Prices input, cached, and output tokens; thought tokens bill as output

package telemetry

import (
	"strings"

	"github.com/mauromedda/genai-go/pkg/interactions"
)

// ModelPricing holds per-million-token rates for a model.
type ModelPricing struct {
	InputPerMillion  float64 // USD per million input tokens
	CachedPerMillion float64 // USD per million cached input tokens
	OutputPerMillion float64 // USD per million output and thought tokens
}

// defaultPricing is keyed by model ID prefix. Rates are list prices for
// prompts up to 200k tokens.
var defaultPricing = map[string]ModelPricing{
	"gemini-3-pro":           {InputPerMillion: 2.0, CachedPerMillion: 0.20, OutputPerMillion: 12.0},
	"gemini-2.5-pro":         {InputPerMillion: 1.25, CachedPerMillion: 0.125, OutputPerMillion: 10.0},
	"gemini-2.5-flash":       {InputPerMillion: 0.30, CachedPerMillion: 0.03, OutputPerMillion: 2.50},
	"gemini-2.5-flash-lite":  {InputPerMillion: 0.10, CachedPerMillion: 0.01, OutputPerMillion: 0.40},
	"gemini-2.5-flash-image": {InputPerMillion: 0.30, CachedPerMillion: 0.03, OutputPerMillion: 30.0},
	"gemini-2.0-flash":       {InputPerMillion: 0.10, CachedPerMillion: 0.025, OutputPerMillion: 0.40},
}

// LookupPricing returns the pricing for a model ID.
// Tries exact match first, then longest prefix match.
func LookupPricing(modelID string) (ModelPricing, bool) {
	if p, ok := defaultPricing[modelID]; ok {
		return p, true
	}

	bestKey := ""
	for key := range defaultPricing {
		if strings.HasPrefix(modelID, key) && len(key) > len(bestKey) {
			bestKey = key
		}
	}
	if bestKey != "" {
		return defaultPricing[bestKey], true
	}
	return ModelPricing{}, false
}

// EstimateCost returns the estimated cost in USD of an interaction's usage.
// The second result is false when the model has no known pricing.
func EstimateCost(modelID string, u *interactions.Usage) (float64, bool) {
	p, ok := LookupPricing(modelID)
	if !ok || u == nil {
		return 0, false
	}

	cached := min(u.TotalCachedTokens, u.TotalInputTokens)
	input := u.TotalInputTokens - cached + u.TotalToolUseTokens
	output := u.TotalOutputTokens + u.TotalThoughtTokens

	cost := float64(input)/1_000_000*p.InputPerMillion +
		float64(cached)/1_000_000*p.CachedPerMillion +
		float64(output)/1_000_000*p.OutputPerMillion
	return cost, true
}
