package subagents

import (
	"context"
	"fmt"
	"strings"

	"github.com/mf-advisor-core/server/internal/agent/model"
)

var profileQuestions = map[string]string{
	"name":                      "What's your name?",
	"age":                       "How old are you?",
	"gender":                    "What is your gender?",
	"monthly_income":            "What is your approximate monthly income (in ₹)?",
	"investment_experience":     "How would you describe your investment experience: Beginner, Intermediate or Advanced?",
	"risk_tolerance":            "What is your risk tolerance: Low, Medium or High?",
	"investment_horizon_years":  "For how many years are you planning to stay invested?",
	"preferred_investment_mode": "Do you prefer to invest through SIP, Lumpsum or a Hybrid of both?",
}

var (
	experienceSynonyms = map[string]string{
		"beginner":     "Beginner",
		"new":          "Beginner",
		"novice":       "Beginner",
		"none":         "Beginner",
		"intermediate": "Intermediate",
		"some":         "Intermediate",
		"moderate":     "Intermediate",
		"advanced":     "Advanced",
		"expert":       "Advanced",
		"experienced":  "Advanced",
	}
	riskSynonyms = map[string]string{
		"low":       "Low",
		"medium":    "Medium",
		"moderate":  "Medium",
		"average":   "Medium",
		"high":      "High",
		"very high": "High",
	}
	modeSynonyms = map[string]string{
		"sip":                        "SIP",
		"systematic investment plan": "SIP",
		"monthly":                    "SIP",
		"lumpsum":                    "Lumpsum",
		"lump sum":                   "Lumpsum",
		"one time":                   "Lumpsum",
		"hybrid":                     "Hybrid",
		"both":                       "Hybrid",
	}
)

// UserProfileAgent collects the eight profile fields.
type UserProfileAgent struct {
	completer model.Completer
}

func NewUserProfileAgent(c model.Completer) *UserProfileAgent {
	return &UserProfileAgent{completer: c}
}

func (a *UserProfileAgent) ID() model.AgentID { return model.AgentUserProfile }

func (a *UserProfileAgent) Sections() []model.Section {
	return []model.Section{model.SectionUserProfile}
}

func (a *UserProfileAgent) IsComplete(s *model.State) bool {
	return s.UserProfile != nil && len(s.UserProfile.MissingFields()) == 0
}

func (a *UserProfileAgent) Act(ctx context.Context, turn Turn) (*Result, error) {
	missing := turn.State.UserProfile.MissingFields()
	instruction := fmt.Sprintf("Still missing: %s. Extract any profile values in the user's message and ask for the next missing one.", strings.Join(missing, ", "))

	out, err := complete(ctx, a.completer, a.ID(), turn, instruction, model.ProfileFields, model.SectionUserProfile)
	if err != nil {
		return nil, err
	}

	patch, n := profilePatch(out.Fields)
	res := &Result{Reply: out.Reply, Updates: model.Updates{}}
	if n > 0 {
		res.Updates.Set(model.SectionUserProfile, patch)
	}

	if res.Reply == "" {
		merged := applyProfile(turn.State.UserProfile, patch)
		res.Reply = nextProfileQuestion(merged)
	}
	return res, nil
}

// profilePatch converts extracted values into a sparse profile; n counts the set fields.
func profilePatch(fields map[string]any) (*model.UserProfile, int) {
	p := &model.UserProfile{}
	n := 0
	if v, ok := asString(fields["name"]); ok {
		p.Name = v
		n++
	}
	if v, ok := asInt(fields["age"]); ok {
		p.Age = &v
		n++
	}
	if v, ok := asString(fields["gender"]); ok {
		p.Gender = titleCase(v)
		n++
	}
	if v, ok := asFloat(fields["monthly_income"]); ok {
		p.MonthlyIncome = &v
		n++
	}
	if v, ok := asString(fields["investment_experience"]); ok {
		p.InvestmentExperience = matchEnum(v, model.InvestmentExperiences, experienceSynonyms)
		n++
	}
	if v, ok := asString(fields["risk_tolerance"]); ok {
		p.RiskTolerance = matchEnum(v, model.RiskTolerances, riskSynonyms)
		n++
	}
	if v, ok := asInt(fields["investment_horizon_years"]); ok {
		p.InvestmentHorizonYears = &v
		n++
	}
	if v, ok := asString(fields["preferred_investment_mode"]); ok {
		p.PreferredInvestmentMode = matchEnum(v, model.InvestmentModes, modeSynonyms)
		n++
	}
	return p, n
}

func applyProfile(base, patch *model.UserProfile) *model.UserProfile {
	out := model.UserProfile{}
	if base != nil {
		out = *base
	}
	if patch.Name != "" {
		out.Name = patch.Name
	}
	if patch.Age != nil {
		out.Age = patch.Age
	}
	if patch.Gender != "" {
		out.Gender = patch.Gender
	}
	if patch.MonthlyIncome != nil {
		out.MonthlyIncome = patch.MonthlyIncome
	}
	if patch.InvestmentExperience != "" {
		out.InvestmentExperience = patch.InvestmentExperience
	}
	if patch.RiskTolerance != "" {
		out.RiskTolerance = patch.RiskTolerance
	}
	if patch.InvestmentHorizonYears != nil {
		out.InvestmentHorizonYears = patch.InvestmentHorizonYears
	}
	if patch.PreferredInvestmentMode != "" {
		out.PreferredInvestmentMode = patch.PreferredInvestmentMode
	}
	return &out
}

func nextProfileQuestion(p *model.UserProfile) string {
	missing := p.MissingFields()
	if len(missing) == 0 {
		return "Thank you! Your profile is complete. Shall I assess your investor type now?"
	}
	return profileQuestions[missing[0]]
}
