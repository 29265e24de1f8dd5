package observers

import (
	einocb "github.com/cloudwego/eino/callbacks"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"
	"github.com/rs/zerolog"

	logx "github.com/mf-advisor-core/server/pkg/logger"
)

// Labels identify the turn a callback fires for.
type Labels struct {
	Agent     string
	SessionID string
}

func (l Labels) debug() *zerolog.Event {
	return logx.Debug().Str("agent", l.Agent).Str("session_id", l.SessionID)
}

func (l Labels) fail(err error) *zerolog.Event {
	return logx.Error().Err(err).Str("agent", l.Agent).Str("session_id", l.SessionID)
}

// NewCallbacks returns the prompt and chat model observers for one completion.
func NewCallbacks(l Labels) einocb.Handler {
	return callbackHelper.NewHandlerHelper().
		ChatModel(newModelHandler(l)).
		Prompt(newPromptHandler(l)).
		Handler()
}
