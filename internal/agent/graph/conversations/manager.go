package conversations

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mf-advisor-core/server/internal/agent/model"
)

// MessagesManager renders the user-turn context a sub-agent sees.
type MessagesManager struct {
	maxTurns int
}

func NewMessagesManager(config model.ConversationConfig) *MessagesManager {
	maxTurns := config.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 10
	}
	return &MessagesManager{maxTurns: maxTurns}
}

// BuildContext renders recent history, the visible session state and the current message.
func (cm *MessagesManager) BuildContext(req model.CompletionRequest) (string, error) {
	var b strings.Builder
	b.WriteString(cm.buildConversationContext(req.History))

	b.WriteString("\n<session_state>\n")
	if len(req.StateView) > 0 {
		state, err := json.MarshalIndent(req.StateView, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal state view: %w", err)
		}
		b.Write(state)
		b.WriteString("\n")
	}
	b.WriteString("</session_state>\n")

	b.WriteString("<current_message>\n")
	b.WriteString("UserMessage(" + req.Message + ")\n")
	b.WriteString("</current_message>")
	return b.String(), nil
}

func (cm *MessagesManager) buildConversationContext(history []model.Interaction) string {
	recent := trimTail(history, cm.maxTurns)

	var contextBuilder strings.Builder
	contextBuilder.WriteString("<conversation_context>\n")

	for _, it := range recent {
		if it.Payload == "" {
			continue
		}
		switch it.Action {
		case model.ActionUserQuery:
			contextBuilder.WriteString("UserMessage(" + it.Payload + ")\n")
		case model.ActionAgentResponse:
			contextBuilder.WriteString("AssistantMessage(" + it.Payload + ")\n")
		}
	}

	contextBuilder.WriteString("</conversation_context>")
	return contextBuilder.String()
}

// ====================== Helper function ======================
func trimTail(items []model.Interaction, maxTurns int) []model.Interaction {
	if len(items) <= maxTurns {
		result := make([]model.Interaction, len(items))
		copy(result, items)
		return result
	}
	source := items[len(items)-maxTurns:]
	result := make([]model.Interaction, len(source))
	copy(result, source)
	return result
}
