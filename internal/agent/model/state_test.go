package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errx "github.com/mf-advisor-core/server/internal/core/error"
)

func intPtr(v int) *int { return &v }
func floatPtr(v float64) *float64 { return &v }
func strPtr(v string) *string { return &v }

func TestNewState(t *testing.T) {
	s := NewState()
	assert.Equal(t, AgentAdvisor, s.CurrentAgentStatus.CurrentAgent)
	assert.Equal(t, "consent", s.CurrentAgentStatus.NextExpectedInput)
	assert.False(t, s.ConsentGiven)
	assert.NotNil(t, s.InteractionHistory)
	assert.Nil(t, s.Validate())
}

func TestProfileMissingFields(t *testing.T) {
	var p *UserProfile
	assert.Equal(t, ProfileFields, p.MissingFields())

	p = &UserProfile{Name: "Asha", Age: intPtr(30)}
	assert.Equal(t, []string{
		"gender",
		"monthly_income",
		"investment_experience",
		"risk_tolerance",
		"investment_horizon_years",
		"preferred_investment_mode",
	}, p.MissingFields())
}

func TestGoalMissingFields(t *testing.T) {
	g := &InvestmentGoal{GoalType: "Retirement", TimeHorizonYears: intPtr(20)}
	assert.Equal(t, []string{"target_amount", "monthly_sip_target"}, g.MissingFields())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *State)
		fields []string
	}{
		{
			name:   "age below range",
			mutate: func(s *State) { s.UserProfile = &UserProfile{Age: intPtr(17)} },
			fields: []string{"age"},
		},
		{
			name:   "unknown risk tolerance",
			mutate: func(s *State) { s.UserProfile = &UserProfile{RiskTolerance: "Extreme"} },
			fields: []string{"risk_tolerance"},
		},
		{
			name: "score out of range",
			mutate: func(s *State) {
				s.InvestorClassification = &InvestorClassification{Type: "Balanced", RiskToleranceScore: intPtr(101)}
			},
			fields: []string{"risk_tolerance_score"},
		},
		{
			name: "duplicate fund ids",
			mutate: func(s *State) {
				s.FundRecommendations = []Fund{{FundID: "a", Name: "A"}, {FundID: "a", Name: "A again"}}
			},
			fields: []string{"[1]"},
		},
		{
			name: "selected fund never recommended",
			mutate: func(s *State) {
				s.FundRecommendations = []Fund{{FundID: "a", Name: "A"}}
				s.SelectedFund = &SelectedFund{FundID: "b", Name: "B"}
			},
			fields: []string{"fund_id"},
		},
		{
			name: "transaction id without initiation",
			mutate: func(s *State) {
				s.InvestmentStatus.SIPTransactionID = strPtr("tx-1")
			},
			fields: []string{"sip_transaction_id"},
		},
		{
			name:   "initiated without transaction id",
			mutate: func(s *State) { s.InvestmentStatus.SIPInitiated = true },
			fields: []string{"sip_initiated"},
		},
		{
			name: "bad email and dates",
			mutate: func(s *State) {
				s.InvestmentDetails = &InvestmentDetails{
					Email:     "not-an-email",
					StartDate: "2025-06-01",
					EndDate:   "2025-01-01",
				}
			},
			fields: []string{"email", "end_date"},
		},
		{
			name: "non monthly frequency",
			mutate: func(s *State) {
				s.InvestmentDetails = &InvestmentDetails{Frequency: "Weekly"}
			},
			fields: []string{"frequency"},
		},
		{
			name:   "unknown current agent",
			mutate: func(s *State) { s.CurrentAgentStatus.CurrentAgent = "Nobody" },
			fields: []string{"current_agent"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewState()
			tt.mutate(s)
			errs := s.Validate()
			require.NotNil(t, errs)
			assert.Equal(t, tt.fields, errs.Fields())
		})
	}
}

func TestValidateSkippedSIP(t *testing.T) {
	s := NewState()
	s.SIPCalculatorOutput = &SIPCalculation{Skipped: true}
	assert.Nil(t, s.Validate())
}

func TestDecodeState(t *testing.T) {
	s, err := DecodeState(nil)
	require.NoError(t, err)
	assert.Equal(t, AgentAdvisor, s.CurrentAgentStatus.CurrentAgent)

	_, err = DecodeState([]byte(`{"user_profile": `))
	require.Error(t, err)
	assert.True(t, errx.IsKind(err, errx.KindStateCorruption))

	_, err = DecodeState([]byte(`{"current_agent_status":{"current_agent":"MutualFundAdvisor"},"investment_status":{"sip_initiated":true}}`))
	require.Error(t, err)
	assert.True(t, errx.IsKind(err, errx.KindStateCorruption))
}

func TestEncodeDecode(t *testing.T) {
	s := NewState()
	s.ConsentGiven = true
	s.UserProfile = &UserProfile{Name: "Asha", MonthlyIncome: floatPtr(50000)}
	s.AppendInteraction("user", ActionUserQuery, "hello", time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC))

	raw, err := s.Encode()
	require.NoError(t, err)

	got, err := DecodeState(raw)
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestCloneIsDeep(t *testing.T) {
	s := NewState()
	s.UserProfile = &UserProfile{Name: "Asha"}
	c := s.Clone()
	c.UserProfile.Name = "Ravi"
	assert.Equal(t, "Asha", s.UserProfile.Name)
}

func TestViewHidesPortalToken(t *testing.T) {
	s := NewState()
	s.InvestmentDetails = &InvestmentDetails{Email: "a@b.com", PortalToken: "secret"}
	v := s.View(SectionInvestmentDetails, SectionUserProfile)

	details, ok := v[string(SectionInvestmentDetails)].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "a@b.com", details["email"])
	assert.NotContains(t, details, "portal_token")
	assert.NotContains(t, v, string(SectionUserProfile))

	b, err := json.Marshal(v)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "secret")
}

func TestStateFromDocument(t *testing.T) {
	doc, err := NewState().Document()
	require.NoError(t, err)

	doc["user_profile"] = map[string]any{"age": 150}
	_, err = StateFromDocument(doc)
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, []string{"age"}, verrs.Fields())

	doc["user_profile"] = map[string]any{"age": 40}
	s, err := StateFromDocument(doc)
	require.NoError(t, err)
	assert.Equal(t, 40, *s.UserProfile.Age)
}

func TestPricingFor(t *testing.T) {
	usage := &schema.TokenUsage{PromptTokens: 1_000_000, CompletionTokens: 1_000_000}

	cost := PricingFor("gemini-2.5-flash").Cost(usage)
	assert.InDelta(t, 0.30, cost.Input, 1e-9)
	assert.InDelta(t, 2.50, cost.Output, 1e-9)
	assert.InDelta(t, 2.80, cost.Total(), 1e-9)

	assert.Equal(t, PricingFor("gemini-2.5-flash-lite"), PricingFor("models/Gemini-2.5-Flash-Lite-001"))
	assert.InDelta(t, 1.25, PricingFor("gemini-2.5-pro-preview").InputPerM, 1e-9)

	assert.Zero(t, PricingFor("unknown").Cost(usage).Total())
	assert.Zero(t, PricingFor("gemini-2.5-flash").Cost(nil).Total())
}
