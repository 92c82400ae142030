package llm

import "math"

// Price is the USD cost per 1K tokens.
type Price struct {
	Prompt     float64
	Completion float64
}

// DefaultPrices covers the models the scanner has been run with.
// Unknown models are billed at the DefaultModel rate.
var DefaultPrices = map[string]Price{
	"gpt-4o":      {Prompt: 0.0025, Completion: 0.010},
	"gpt-4o-mini": {Prompt: 0.00015, Completion: 0.0006},
}

// DefaultModel is the fallback price key.
const DefaultModel = "gpt-4o"

// PriceTable computes request costs.
type PriceTable map[string]Price

// Cost returns the USD cost of a request rounded to 6 decimal places.
func (t PriceTable) Cost(model string, promptTokens, completionTokens int) float64 {
	price, ok := t[model]
	if !ok {
		price, ok = t[DefaultModel]
	}
	if !ok {
		price = DefaultPrices[DefaultModel]
	}
	cost := float64(promptTokens)/1000*price.Prompt + float64(completionTokens)/1000*price.Completion
	return math.Round(cost*1e6) / 1e6
}
