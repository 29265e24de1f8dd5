package model

import (
	"strings"

	"github.com/cloudwego/eino/schema"
)

// Pricing is the USD price per 1M text tokens.
type Pricing struct {
	InputPerM  float64
	OutputPerM float64
}

// Cost is the USD cost of one model call.
type Cost struct {
	Input  float64
	Output float64
}

func (c Cost) Total() float64 { return c.Input + c.Output }

// geminiPricing is matched by prefix, so more specific names come first.
var geminiPricing = []struct {
	prefix string
	price  Pricing
}{
	{"gemini-2.5-flash-lite", Pricing{InputPerM: 0.10, OutputPerM: 0.40}},
	{"gemini-2.5-flash", Pricing{InputPerM: 0.30, OutputPerM: 2.50}},
	{"gemini-2.5-pro", Pricing{InputPerM: 1.25, OutputPerM: 10.00}},
	{"gemini-2.0-flash", Pricing{InputPerM: 0.10, OutputPerM: 0.40}},
}

// PricingFor resolves versioned and "models/"-qualified names. Unknown models cost nothing.
func PricingFor(name string) Pricing {
	name = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(name)), "models/")
	for _, p := range geminiPricing {
		if strings.HasPrefix(name, p.prefix) {
			return p.price
		}
	}
	return Pricing{}
}

// Cost converts token usage to USD.
func (p Pricing) Cost(usage *schema.TokenUsage) Cost {
	if usage == nil {
		return Cost{}
	}
	return Cost{
		Input:  p.InputPerM * float64(usage.PromptTokens) / 1_000_000,
		Output: p.OutputPerM * float64(usage.CompletionTokens) / 1_000_000,
	}
}
