package subagents

import (
	"context"
	"errors"
	"testing"

	"github.com/mf-advisor-core/server/internal/agent/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserProfileAgentExtractsAndAsksNext(t *testing.T) {
	c := fields(map[string]any{"name": "Asha", "age": "32"})
	a := NewUserProfileAgent(c)

	res, err := a.Act(context.Background(), turnFor(model.NewState(), "I'm Asha, 32"))
	require.NoError(t, err)

	p := res.Updates[model.SectionUserProfile].(*model.UserProfile)
	assert.Equal(t, "Asha", p.Name)
	require.NotNil(t, p.Age)
	assert.Equal(t, 32, *p.Age)
	assert.Nil(t, p.MonthlyIncome)
	assert.Equal(t, profileQuestions["gender"], res.Reply)

	require.Len(t, c.reqs, 1)
	assert.Equal(t, model.AgentUserProfile, c.reqs[0].AgentID)
	assert.Equal(t, model.ProfileFields, c.reqs[0].Fields)
	assert.Contains(t, c.reqs[0].Instruction, "Still missing: name, age")
}

func TestUserProfileAgentNormalizesEnums(t *testing.T) {
	c := fields(map[string]any{
		"risk_tolerance":            "moderate",
		"investment_experience":     "expert",
		"preferred_investment_mode": "lump sum",
		"gender":                    "FEMALE",
	})
	res, err := NewUserProfileAgent(c).Act(context.Background(), turnFor(model.NewState(), "..."))
	require.NoError(t, err)

	p := res.Updates[model.SectionUserProfile].(*model.UserProfile)
	assert.Equal(t, "Medium", p.RiskTolerance)
	assert.Equal(t, "Advanced", p.InvestmentExperience)
	assert.Equal(t, "Lumpsum", p.PreferredInvestmentMode)
	assert.Equal(t, "Female", p.Gender)
}

func TestUserProfileAgentKeepsModelReply(t *testing.T) {
	c := &fakeCompleter{out: &model.Completion{Reply: "Nice to meet you! How old are you?"}}
	res, err := NewUserProfileAgent(c).Act(context.Background(), turnFor(model.NewState(), "hi"))
	require.NoError(t, err)
	assert.Equal(t, "Nice to meet you! How old are you?", res.Reply)
	assert.Empty(t, res.Updates)
}

func TestUserProfileAgentCompletes(t *testing.T) {
	s := model.NewState()
	s.UserProfile = &model.UserProfile{
		Name:                   "Asha",
		Age:                    intPtr(32),
		Gender:                 "Female",
		MonthlyIncome:          floatPtr(90000),
		InvestmentExperience:   "Beginner",
		RiskTolerance:          "Medium",
		InvestmentHorizonYears: intPtr(10),
	}
	a := NewUserProfileAgent(fields(map[string]any{"preferred_investment_mode": "SIP"}))
	assert.False(t, a.IsComplete(s))

	res, err := a.Act(context.Background(), turnFor(s, "SIP"))
	require.NoError(t, err)
	assert.Contains(t, res.Reply, "Your profile is complete")
}

func TestUserProfileAgentPropagatesCompleterError(t *testing.T) {
	boom := errors.New("llm down")
	_, err := NewUserProfileAgent(&fakeCompleter{err: boom}).Act(context.Background(), turnFor(model.NewState(), "hi"))
	assert.ErrorIs(t, err, boom)
}

func TestRiskScore(t *testing.T) {
	tests := []struct {
		name string
		p    *model.UserProfile
		want int
	}{
		{"no profile", nil, 50},
		{"cautious", &model.UserProfile{RiskTolerance: "Low", InvestmentHorizonYears: intPtr(2), Age: intPtr(60), InvestmentExperience: "Beginner"}, 0},
		{"bold", &model.UserProfile{RiskTolerance: "High", InvestmentHorizonYears: intPtr(10), Age: intPtr(30), InvestmentExperience: "Advanced"}, 100},
		{"middle", &model.UserProfile{RiskTolerance: "Medium", InvestmentHorizonYears: intPtr(5), Age: intPtr(40), InvestmentExperience: "Intermediate"}, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RiskScore(tt.p))
		})
	}
}

func TestInvestorType(t *testing.T) {
	assert.Equal(t, "Conservative", InvestorType(39))
	assert.Equal(t, "Balanced", InvestorType(40))
	assert.Equal(t, "Balanced", InvestorType(69))
	assert.Equal(t, "Aggressive", InvestorType(70))
}

func TestInvestorClassifierIgnoresMalformedProposal(t *testing.T) {
	s := model.NewState()
	s.UserProfile = &model.UserProfile{RiskTolerance: "High", InvestmentHorizonYears: intPtr(10), Age: intPtr(30), InvestmentExperience: "Advanced"}

	c := fields(map[string]any{"type": "Reckless", "risk_tolerance_score": 150})
	res, err := NewInvestorClassifierAgent(c).Act(context.Background(), turnFor(s, "go on"))
	require.NoError(t, err)

	got := res.Updates[model.SectionInvestorClassification].(*model.InvestorClassification)
	assert.Equal(t, "Aggressive", got.Type)
	assert.Equal(t, 100, *got.RiskToleranceScore)
	assert.Contains(t, res.Reply, "Aggressive investor")
}

func TestInvestorClassifierAcceptsValidProposal(t *testing.T) {
	s := model.NewState()
	s.UserProfile = &model.UserProfile{RiskTolerance: "Medium"}

	c := fields(map[string]any{"type": "aggressive", "risk_tolerance_score": 80.0})
	res, err := NewInvestorClassifierAgent(c).Act(context.Background(), turnFor(s, "yes"))
	require.NoError(t, err)

	got := res.Updates[model.SectionInvestorClassification].(*model.InvestorClassification)
	assert.Equal(t, "Aggressive", got.Type)
	assert.Equal(t, 80, *got.RiskToleranceScore)
	assert.Contains(t, c.reqs[0].Instruction, "Balanced")
}

func TestGoalPlannerAgent(t *testing.T) {
	c := fields(map[string]any{"goal_type": "retire", "target_amount": "1 crore", "time_horizon_years": 15})
	a := NewGoalPlannerAgent(c)

	res, err := a.Act(context.Background(), turnFor(model.NewState(), "I want 1 crore for retirement in 15 years"))
	require.NoError(t, err)

	g := res.Updates[model.SectionInvestmentGoal].(*model.InvestmentGoal)
	assert.Equal(t, "Retirement", g.GoalType)
	assert.InDelta(t, 1e7, *g.TargetAmount, 1e-6)
	assert.Equal(t, 15, *g.TimeHorizonYears)
	assert.Nil(t, g.MonthlySIPTarget)
	assert.Equal(t, goalQuestions["monthly_sip_target"], res.Reply)

	s := model.NewState()
	s.InvestmentGoal = &model.InvestmentGoal{GoalType: "Retirement", TargetAmount: floatPtr(1e7), TimeHorizonYears: intPtr(15), MonthlySIPTarget: floatPtr(20000)}
	assert.True(t, a.IsComplete(s))
}
