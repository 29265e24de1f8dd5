package model

// AgentID names the orchestrator or one of its sub-agents.
type AgentID string

const (
	AgentAdvisor            AgentID = "MutualFundAdvisor"
	AgentUserProfile        AgentID = "UserProfileAgent"
	AgentInvestorClassifier AgentID = "InvestorClassifierAgent"
	AgentGoalPlanner        AgentID = "GoalPlannerAgent"
	AgentFundRecommender    AgentID = "FundRecommenderAgent"
	AgentSIPCalculator      AgentID = "SIPCalculatorAgent"
	AgentInvestment         AgentID = "InvestmentAgent"
)

// KnownAgents lists every valid value of current_agent_status.current_agent.
var KnownAgents = []AgentID{
	AgentAdvisor,
	AgentUserProfile,
	AgentInvestorClassifier,
	AgentGoalPlanner,
	AgentFundRecommender,
	AgentSIPCalculator,
	AgentInvestment,
}

// IsKnown reports whether id is the orchestrator or one of the six sub-agents.
func (id AgentID) IsKnown() bool {
	for _, k := range KnownAgents {
		if k == id {
			return true
		}
	}
	return false
}

func (id AgentID) String() string {
	return string(id)
}

// NextExpectedInput is the static lookup used for current_agent_status.next_expected_input.
var NextExpectedInput = map[AgentID]string{
	AgentAdvisor:            "consent",
	AgentUserProfile:        "name",
	AgentInvestorClassifier: "risk_assessment",
	AgentGoalPlanner:        "goal_type",
	AgentFundRecommender:    "fund_selection",
	AgentSIPCalculator:      "monthly_investment",
	AgentInvestment:         "email",
}

// Section names a top-level key of the State document.
type Section string

const (
	SectionUserProfile            Section = "user_profile"
	SectionInvestorClassification Section = "investor_classification"
	SectionInvestmentGoal         Section = "investment_goal"
	SectionFundRecommendations    Section = "fund_recommendations"
	SectionShownFundIDs           Section = "shown_fund_ids"
	SectionSelectedFund           Section = "selected_fund"
	SectionSIPCalculatorOutput    Section = "sip_calculator_output"
	SectionInvestmentDetails      Section = "investment_details"
	SectionInvestmentStatus       Section = "investment_status"
	SectionCurrentAgentStatus     Section = "current_agent_status"
	SectionConsentGiven           Section = "consent_given"
	SectionInteractionHistory     Section = "interaction_history"
)
