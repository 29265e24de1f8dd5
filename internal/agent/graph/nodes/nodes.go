package nodes

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/mf-advisor-core/server/internal/agent/graph/conversations"
	"github.com/mf-advisor-core/server/internal/agent/graph/parsers"
	"github.com/mf-advisor-core/server/internal/agent/graph/prompts"
	"github.com/mf-advisor-core/server/internal/agent/model"
	logx "github.com/mf-advisor-core/server/pkg/logger"
)

// NewInputConverterPreHandler creates the pre-handler for InputConverter node
func NewInputConverterPreHandler() func(context.Context, model.CompletionRequest, *model.CompletionState) (model.CompletionRequest, error) {
	return func(ctx context.Context, in model.CompletionRequest, s *model.CompletionState) (model.CompletionRequest, error) {
		s.AgentID = in.AgentID
		s.SessionID = in.SessionID
		// Reset accumulated total cost for each new request
		s.TotalCostUSD = 0
		return in, nil
	}
}

// NewInputConverterNode creates the InputConverter node: system prompt plus rendered turn context.
func NewInputConverterNode(mm *conversations.MessagesManager, now func() time.Time) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, input model.CompletionRequest) ([]*schema.Message, error) {
		systemPrompt, err := prompts.RenderAgentSystem(ctx, input, now())
		if err != nil {
			return nil, fmt.Errorf("render agent system prompt: %w", err)
		}

		turnCtx, err := mm.BuildContext(input)
		if err != nil {
			return nil, fmt.Errorf("error building turn context: %w", err)
		}

		messages := []*schema.Message{
			schema.SystemMessage(systemPrompt),
			schema.UserMessage(turnCtx),
		}
		return messages, nil
	})
}

// NewChatModelPostHandler computes and logs usage cost for the agent model.
func NewChatModelPostHandler(modelName string) func(context.Context, *schema.Message, *model.CompletionState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.CompletionState) (*schema.Message, error) {
		totalC, ok := usageCost(out, modelName)
		if !ok {
			return out, nil
		}
		usage := out.ResponseMeta.Usage
		logx.Debug().
			Str("session_id", state.SessionID).
			Str("agent", state.AgentID.String()).
			Str("node", NodeAgentChatModel).
			Str("model", modelName).
			Int("prompt_tokens", usage.PromptTokens).
			Int("completion_tokens", usage.CompletionTokens).
			Int("total_tokens", usage.TotalTokens).
			Float64("total_cost_usd", totalC).
			Msg("LLM usage")

		// Accumulate only total cost into state
		state.TotalCostUSD += totalC
		out.Extra["usage_cost_total_usd"] = state.TotalCostUSD
		return out, nil
	}
}

// NewParserNode creates the Parser node for the agent's JSON reply.
func NewParserNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, resp *schema.Message) (*model.Completion, error) {
		if resp == nil {
			return nil, fmt.Errorf("model returned no message")
		}
		result, err := parsers.ParseCompletion(resp.Content)
		if err != nil {
			logx.Error().Err(err).Msg("Error parsing completion")
			return nil, err
		}
		if result == nil {
			logx.Error().Msg("Parsing returned nil result")
			return nil, fmt.Errorf("parsing returned nil result")
		}
		return result, nil
	})
}

// NewParserPostHandler copies the accumulated cost onto the completion.
func NewParserPostHandler() func(context.Context, *model.Completion, *model.CompletionState) (*model.Completion, error) {
	return func(ctx context.Context, out *model.Completion, state *model.CompletionState) (*model.Completion, error) {
		out.CostUSD = state.TotalCostUSD
		logx.Debug().
			Str("session_id", state.SessionID).
			Str("agent", state.AgentID.String()).
			Int("fields", len(out.Fields)).
			Msg("Completion parsed")
		return out, nil
	}
}
