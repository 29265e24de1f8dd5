package subagents

import (
	"context"
	"time"

	"github.com/mf-advisor-core/server/internal/agent/model"
	"github.com/mf-advisor-core/server/internal/portal"
)

// Turn is what a sub-agent receives for one user message.
// State is a private copy; sub-agents never mutate shared state directly.
type Turn struct {
	SessionID string
	State     *model.State
	Message   string
	// History is the interaction log before the current message.
	History []model.Interaction
	Now     time.Time
	// CompletionTimeout bounds each model call of the turn. Zero means no extra bound.
	CompletionTimeout time.Duration
}

// Result is a sub-agent's reply plus its proposed change set.
// Non-empty Problems means the updates must not be merged and the user is asked again.
type Result struct {
	Reply    string
	Updates  model.Updates
	Problems model.ValidationErrors
	// Redacted, when set, replaces the user message in history and events.
	Redacted string
}

// SubAgent is one step of the advisory flow.
type SubAgent interface {
	ID() model.AgentID
	// Sections lists the state sections this agent may write.
	Sections() []model.Section
	// IsComplete reports whether the agent's step is done for s.
	IsComplete(s *model.State) bool
	Act(ctx context.Context, turn Turn) (*Result, error)
}

// Portal is the subset of the investment portal the sub-agents call.
type Portal interface {
	Register(ctx context.Context, name, email, password, phone string) (*portal.AuthResult, error)
	Login(ctx context.Context, email, password string) (*portal.AuthResult, error)
	ListFunds(ctx context.Context) ([]model.Fund, error)
	GetFund(ctx context.Context, fundID string) (*model.Fund, error)
	StartSIP(ctx context.Context, token string, req portal.SIPRequest) (*portal.SIPResult, error)
}

// Registry indexes the sub-agents by id.
type Registry map[model.AgentID]SubAgent

// NewRegistry wires the six sub-agents.
func NewRegistry(c model.Completer, p Portal) Registry {
	agents := []SubAgent{
		NewUserProfileAgent(c),
		NewInvestorClassifierAgent(c),
		NewGoalPlannerAgent(c),
		NewFundRecommenderAgent(c, p),
		NewSIPCalculatorAgent(c),
		NewInvestmentAgent(c, p),
	}
	r := make(Registry, len(agents))
	for _, a := range agents {
		r[a.ID()] = a
	}
	return r
}

// Owns reports whether agent id may write section sec.
func (r Registry) Owns(id model.AgentID, sec model.Section) bool {
	a, ok := r[id]
	if !ok {
		return false
	}
	for _, s := range a.Sections() {
		if s == sec {
			return true
		}
	}
	return false
}

func complete(ctx context.Context, c model.Completer, id model.AgentID, turn Turn, instruction string, fields []string, sections ...model.Section) (*model.Completion, error) {
	if turn.CompletionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, turn.CompletionTimeout)
		defer cancel()
	}
	out, err := c.Complete(ctx, model.CompletionRequest{
		AgentID:     id,
		SessionID:   turn.SessionID,
		Instruction: instruction,
		StateView:   turn.State.View(sections...),
		History:     turn.History,
		Message:     turn.Message,
		Fields:      fields,
	})
	if err != nil {
		return nil, err
	}
	if out.Fields == nil {
		out.Fields = map[string]any{}
	}
	return out, nil
}

// check applies mutate to a copy of s and returns the violations it introduces in sec.
func check(s *model.State, sec model.Section, mutate func(*model.State)) model.ValidationErrors {
	c := s.Clone()
	mutate(c)
	var out model.ValidationErrors
	for _, e := range c.Validate() {
		if e.Section == sec {
			out = append(out, e)
		}
	}
	return out
}
