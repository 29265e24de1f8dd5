package prompts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mf-advisor-core/server/internal/agent/model"
)

func TestRenderAgentSystem(t *testing.T) {
	now := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)
	out, err := RenderAgentSystem(context.Background(), model.CompletionRequest{
		AgentID:     model.AgentUserProfile,
		Instruction: "Still missing: age, gender.",
		Fields:      []string{"age", "gender"},
	}, now)
	require.NoError(t, err)

	assert.Contains(t, out, "You are UserProfileAgent")
	assert.Contains(t, out, "Today is 2025-03-04.")
	assert.Contains(t, out, "Still missing: age, gender.")
	assert.Contains(t, out, "Allowed keys inside \"fields\": age, gender")
	assert.Contains(t, out, "investment_horizon_years")
	assert.Contains(t, out, `{"reply": "<message to the user>"`)
	assert.NotContains(t, out, "{agent_instructions}")
}

func TestEveryAgentHasTemplate(t *testing.T) {
	for _, id := range model.KnownAgents {
		if id == model.AgentAdvisor {
			continue
		}
		_, err := RenderAgentSystem(context.Background(), model.CompletionRequest{AgentID: id}, time.Now())
		assert.NoError(t, err, id)
	}
}

func TestRenderAgentSystemUnknownAgent(t *testing.T) {
	_, err := RenderAgentSystem(context.Background(), model.CompletionRequest{AgentID: model.AgentAdvisor}, time.Now())
	assert.Error(t, err)
}
