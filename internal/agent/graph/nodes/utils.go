package nodes

import (
	"github.com/cloudwego/eino/schema"

	"github.com/mf-advisor-core/server/internal/agent/model"
)

// Graph node keys.
const (
	NodeInputConverter = "InputConverter"
	NodeAgentChatModel = "AgentChatModel"
	NodeParser         = "CompletionParser"
)

// usageCost annotates out.Extra with the usage cost and returns the total in USD.
func usageCost(out *schema.Message, modelName string) (float64, bool) {
	if out == nil || out.ResponseMeta == nil || out.ResponseMeta.Usage == nil {
		return 0, false
	}
	usage := out.ResponseMeta.Usage
	cost := model.PricingFor(modelName).Cost(usage)
	if out.Extra == nil {
		out.Extra = map[string]any{}
	}
	out.Extra["usage_cost"] = map[string]any{
		"currency":          "USD",
		"model":             modelName,
		"prompt_tokens":     usage.PromptTokens,
		"completion_tokens": usage.CompletionTokens,
		"total_tokens":      usage.TotalTokens,
		"input_cost":        cost.Input,
		"output_cost":       cost.Output,
		"total_cost":        cost.Total(),
	}
	return cost.Total(), true
}
