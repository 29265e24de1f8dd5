package orchestrator

import (
	"github.com/mf-advisor-core/server/internal/agent/model"
	"github.com/mf-advisor-core/server/internal/agent/subagents"
)

// flow is the fixed delegation order. The first agent whose step is not
// complete handles the turn.
var flow = []model.AgentID{
	model.AgentUserProfile,
	model.AgentInvestorClassifier,
	model.AgentGoalPlanner,
	model.AgentFundRecommender,
	model.AgentSIPCalculator,
	model.AgentInvestment,
}

// Route is the outcome of Select.
type Route struct {
	// Agent is AgentAdvisor while consent is pending, otherwise the sub-agent to delegate to.
	Agent model.AgentID
	// Terminal is set once the SIP has been initiated.
	Terminal bool
}

// Select evaluates the delegation rules top to bottom. It depends only on the
// state sections, never on how long the conversation has been.
func Select(agents subagents.Registry, s *model.State) Route {
	if !s.ConsentGiven {
		return Route{Agent: model.AgentAdvisor}
	}
	for _, id := range flow {
		if !agents[id].IsComplete(s) {
			return Route{Agent: id}
		}
	}
	return Route{Agent: model.AgentInvestment, Terminal: true}
}
