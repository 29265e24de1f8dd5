package model

import (
	"encoding/json"
	"time"
)

// Enumerations accepted by the state schema.
var (
	InvestmentExperiences = []string{"Beginner", "Intermediate", "Advanced"}
	RiskTolerances        = []string{"Low", "Medium", "High"}
	InvestmentModes       = []string{"SIP", "Lumpsum", "Hybrid"}
	InvestorTypes         = []string{"Conservative", "Balanced", "Aggressive"}
	GoalTypes             = []string{"Retirement", "Education", "Wealth Creation", "House Purchase"}
)

const (
	// SIPFrequency is the only frequency the advisor sets up.
	SIPFrequency = "Monthly"
	// DateLayout is the wire format of SIP start/end dates.
	DateLayout = "2006-01-02"
)

// UserProfile is collected field by field; nil pointers and empty strings are "not yet supplied".
type UserProfile struct {
	Name                    string   `json:"name,omitempty"`
	Age                     *int     `json:"age,omitempty"`
	Gender                  string   `json:"gender,omitempty"`
	MonthlyIncome           *float64 `json:"monthly_income,omitempty"`
	InvestmentExperience    string   `json:"investment_experience,omitempty"`
	RiskTolerance           string   `json:"risk_tolerance,omitempty"`
	InvestmentHorizonYears  *int     `json:"investment_horizon_years,omitempty"`
	PreferredInvestmentMode string   `json:"preferred_investment_mode,omitempty"`
}

// ProfileFields is the collection order of the profile.
var ProfileFields = []string{
	"name",
	"age",
	"gender",
	"monthly_income",
	"investment_experience",
	"risk_tolerance",
	"investment_horizon_years",
	"preferred_investment_mode",
}

// MissingFields returns the profile fields not yet supplied, in collection order.
func (p *UserProfile) MissingFields() []string {
	if p == nil {
		return append([]string(nil), ProfileFields...)
	}
	present := map[string]bool{
		"name":                      p.Name != "",
		"age":                       p.Age != nil,
		"gender":                    p.Gender != "",
		"monthly_income":            p.MonthlyIncome != nil,
		"investment_experience":     p.InvestmentExperience != "",
		"risk_tolerance":            p.RiskTolerance != "",
		"investment_horizon_years":  p.InvestmentHorizonYears != nil,
		"preferred_investment_mode": p.PreferredInvestmentMode != "",
	}
	var missing []string
	for _, f := range ProfileFields {
		if !present[f] {
			missing = append(missing, f)
		}
	}
	return missing
}

type InvestorClassification struct {
	Type               string `json:"type,omitempty"`
	RiskToleranceScore *int   `json:"risk_tolerance_score,omitempty"`
}

type InvestmentGoal struct {
	GoalType         string   `json:"goal_type,omitempty"`
	TargetAmount     *float64 `json:"target_amount,omitempty"`
	TimeHorizonYears *int     `json:"time_horizon_years,omitempty"`
	MonthlySIPTarget *float64 `json:"monthly_sip_target,omitempty"`
}

// GoalFields is the collection order of the goal.
var GoalFields = []string{"goal_type", "target_amount", "time_horizon_years", "monthly_sip_target"}

// MissingFields returns the goal fields not yet supplied, in collection order.
func (g *InvestmentGoal) MissingFields() []string {
	if g == nil {
		return append([]string(nil), GoalFields...)
	}
	var missing []string
	if g.GoalType == "" {
		missing = append(missing, "goal_type")
	}
	if g.TargetAmount == nil {
		missing = append(missing, "target_amount")
	}
	if g.TimeHorizonYears == nil {
		missing = append(missing, "time_horizon_years")
	}
	if g.MonthlySIPTarget == nil {
		missing = append(missing, "monthly_sip_target")
	}
	return missing
}

// SIPCalculation is the calculator output. Skipped marks a user who declined an estimate.
type SIPCalculation struct {
	MonthlyInvestment      float64 `json:"monthly_investment,omitempty"`
	DurationYears          int     `json:"duration_years,omitempty"`
	ExpectedReturnRate     float64 `json:"expected_return_rate,omitempty"`
	TotalInvested          float64 `json:"total_invested,omitempty"`
	EstimatedMaturityValue float64 `json:"estimated_maturity_value,omitempty"`
	EstimatedReturns       float64 `json:"estimated_returns,omitempty"`
	Skipped                bool    `json:"skipped,omitempty"`
}

// InvestmentDetails holds what the investment step has collected so far.
// Passwords are never stored here.
type InvestmentDetails struct {
	Email        string   `json:"email,omitempty"`
	PhoneNumber  string   `json:"phone_number,omitempty"`
	HasAccount   *bool    `json:"has_account,omitempty"`
	Amount       *float64 `json:"amount,omitempty"`
	Frequency    string   `json:"frequency,omitempty"`
	DeductionDay *int     `json:"deduction_day,omitempty"`
	StartDate    string   `json:"start_date,omitempty"`
	EndDate      string   `json:"end_date,omitempty"`
	PortalUserID string   `json:"portal_user_id,omitempty"`
	PortalToken  string   `json:"portal_token,omitempty"`
}

type InvestmentStatus struct {
	UserAccountCreated       bool    `json:"user_account_created"`
	LoggedInInvestmentPortal bool    `json:"logged_in_investment_portal"`
	SIPInitiated             bool    `json:"sip_initiated"`
	SIPTransactionID         *string `json:"sip_transaction_id"`
}

type AgentStatus struct {
	CurrentAgent      AgentID `json:"current_agent"`
	PreviousAgent     AgentID `json:"previous_agent,omitempty"`
	NextExpectedInput string  `json:"next_expected_input,omitempty"`
	LastAgentResponse string  `json:"last_agent_response,omitempty"`
}

// ActionKind classifies an interaction_history entry.
type ActionKind string

const (
	ActionUserQuery     ActionKind = "user_query"
	ActionAgentResponse ActionKind = "agent_response"
	ActionSystem        ActionKind = "system"
)

type Interaction struct {
	Actor     string     `json:"actor"`
	Action    ActionKind `json:"action"`
	Payload   string     `json:"payload"`
	Timestamp time.Time  `json:"timestamp"`
}

// State is the shared document every sub-agent reads and writes.
type State struct {
	UserProfile            *UserProfile            `json:"user_profile,omitempty"`
	InvestorClassification *InvestorClassification `json:"investor_classification,omitempty"`
	InvestmentGoal         *InvestmentGoal         `json:"investment_goal,omitempty"`
	FundRecommendations    []Fund                  `json:"fund_recommendations,omitempty"`
	ShownFundIDs           []string                `json:"shown_fund_ids,omitempty"`
	SelectedFund           *SelectedFund           `json:"selected_fund,omitempty"`
	SIPCalculatorOutput    *SIPCalculation         `json:"sip_calculator_output,omitempty"`
	InvestmentDetails      *InvestmentDetails      `json:"investment_details,omitempty"`
	InvestmentStatus       InvestmentStatus        `json:"investment_status"`
	CurrentAgentStatus     AgentStatus             `json:"current_agent_status"`
	ConsentGiven           bool                    `json:"consent_given"`
	InteractionHistory     []Interaction           `json:"interaction_history"`
}

// NewState returns the empty template a fresh or cleared session starts from.
func NewState() *State {
	return &State{
		CurrentAgentStatus: AgentStatus{
			CurrentAgent:      AgentAdvisor,
			NextExpectedInput: NextExpectedInput[AgentAdvisor],
		},
		InteractionHistory: []Interaction{},
	}
}

// Encode serializes the state as a single JSON document.
func (s *State) Encode() ([]byte, error) {
	return json.Marshal(s)
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	b, err := json.Marshal(s)
	if err != nil {
		panic("model: state is not serializable: " + err.Error())
	}
	var out State
	if err := json.Unmarshal(b, &out); err != nil {
		panic("model: state round trip failed: " + err.Error())
	}
	if out.InteractionHistory == nil {
		out.InteractionHistory = []Interaction{}
	}
	return &out
}

// AppendInteraction appends one history entry.
func (s *State) AppendInteraction(actor string, action ActionKind, payload string, at time.Time) {
	s.InteractionHistory = append(s.InteractionHistory, Interaction{
		Actor:     actor,
		Action:    action,
		Payload:   payload,
		Timestamp: at.UTC(),
	})
}

// HasRecommended reports whether fundID is among the current recommendations.
func (s *State) HasRecommended(fundID string) bool {
	for _, f := range s.FundRecommendations {
		if f.FundID == fundID {
			return true
		}
	}
	return false
}

// RecommendedFund returns the recommendation with the given id.
func (s *State) RecommendedFund(fundID string) (Fund, bool) {
	for _, f := range s.FundRecommendations {
		if f.FundID == fundID {
			return f, true
		}
	}
	return Fund{}, false
}

// View returns the named sections as plain JSON values, for prompts.
// The portal token never leaves the state through a view.
func (s *State) View(sections ...Section) map[string]any {
	doc, err := s.Document()
	if err != nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(sections))
	for _, sec := range sections {
		v, ok := doc[string(sec)]
		if !ok {
			continue
		}
		if sec == SectionInvestmentDetails {
			if m, ok := v.(map[string]any); ok {
				delete(m, "portal_token")
			}
		}
		out[string(sec)] = v
	}
	return out
}

// Document returns the state as a generic JSON object.
func (s *State) Document() (map[string]any, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Contains reports whether v (compared case-sensitively) is in set.
func Contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
