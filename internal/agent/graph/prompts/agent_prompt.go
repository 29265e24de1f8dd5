package prompts

import (
	"context"
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/mf-advisor-core/server/internal/agent/model"
)

//go:embed template/*.txt
var templates embed.FS

var agentTemplates = map[model.AgentID]string{
	model.AgentUserProfile:        "template/user_profile.txt",
	model.AgentInvestorClassifier: "template/investor_classifier.txt",
	model.AgentGoalPlanner:        "template/goal_planner.txt",
	model.AgentFundRecommender:    "template/fund_recommender.txt",
	model.AgentSIPCalculator:      "template/sip_calculator.txt",
	model.AgentInvestment:         "template/investment.txt",
}

// RenderAgentSystem renders the system prompt of one sub-agent via Eino prompt component.
// This triggers Prompt callbacks and returns the final system prompt string.
func RenderAgentSystem(ctx context.Context, req model.CompletionRequest, now time.Time) (string, error) {
	path, ok := agentTemplates[req.AgentID]
	if !ok {
		return "", fmt.Errorf("no prompt template for agent %q", req.AgentID)
	}
	persona, err := templates.ReadFile("template/persona.txt")
	if err != nil {
		return "", fmt.Errorf("read persona template: %w", err)
	}
	agent, err := templates.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	fields := "none"
	if len(req.Fields) > 0 {
		fields = strings.Join(req.Fields, ", ")
	}
	instruction := strings.TrimSpace(req.Instruction)
	if instruction == "" {
		instruction = "Continue the conversation."
	}

	// Safely render known tokens only to avoid interfering with JSON braces in template
	content := strings.NewReplacer(
		"{agent_name}", req.AgentID.String(),
		"{today}", now.Format(model.DateLayout),
		"{agent_instructions}", strings.TrimSpace(string(agent)),
		"{turn_instruction}", instruction,
		"{fields}", fields,
	).Replace(string(persona))

	// Wrap via Eino prompt component using a messages placeholder to emit callbacks
	tpl := prompt.FromMessages(
		schema.FString,
		schema.MessagesPlaceholder("system_messages", false),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"system_messages": []*schema.Message{schema.SystemMessage(content)},
	})
	if err != nil {
		return "", fmt.Errorf("agent prompt callbacks: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("agent prompt callbacks: empty result")
	}
	return msgs[0].Content, nil
}
