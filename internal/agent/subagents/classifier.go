package subagents

import (
	"context"
	"fmt"

	"github.com/mf-advisor-core/server/internal/agent/model"
)

// InvestorClassifierAgent derives the investor type and risk score from the profile.
type InvestorClassifierAgent struct {
	completer model.Completer
}

func NewInvestorClassifierAgent(c model.Completer) *InvestorClassifierAgent {
	return &InvestorClassifierAgent{completer: c}
}

func (a *InvestorClassifierAgent) ID() model.AgentID { return model.AgentInvestorClassifier }

func (a *InvestorClassifierAgent) Sections() []model.Section {
	return []model.Section{model.SectionInvestorClassification}
}

func (a *InvestorClassifierAgent) IsComplete(s *model.State) bool {
	c := s.InvestorClassification
	return c != nil && c.Type != "" && c.RiskToleranceScore != nil
}

func (a *InvestorClassifierAgent) Act(ctx context.Context, turn Turn) (*Result, error) {
	score := RiskScore(turn.State.UserProfile)
	typ := InvestorType(score)
	instruction := fmt.Sprintf("A rule-based estimate for this profile is %s with a risk tolerance score of %d. Adjust only if the conversation clearly justifies it.", typ, score)

	out, err := complete(ctx, a.completer, a.ID(), turn, instruction,
		[]string{"type", "risk_tolerance_score"},
		model.SectionUserProfile, model.SectionInvestorClassification)
	if err != nil {
		return nil, err
	}

	// the model's proposal is used only when it is well-formed
	if v, ok := asString(out.Fields["type"]); ok {
		if t := matchEnum(v, model.InvestorTypes, nil); model.Contains(model.InvestorTypes, t) {
			typ = t
		}
	}
	if v, ok := asInt(out.Fields["risk_tolerance_score"]); ok && v >= 0 && v <= 100 {
		score = v
	}

	reply := out.Reply
	if reply == "" {
		reply = fmt.Sprintf("Based on your profile, you are a %s investor with a risk tolerance score of %d out of 100. Next, let's talk about your investment goal. What are you investing for: Retirement, Education, Wealth Creation or a House Purchase?", typ, score)
	}
	return &Result{
		Reply: reply,
		Updates: model.Updates{
			model.SectionInvestorClassification: &model.InvestorClassification{Type: typ, RiskToleranceScore: &score},
		},
	}, nil
}

// RiskScore is a deterministic 0-100 risk appetite estimate from the profile.
func RiskScore(p *model.UserProfile) int {
	if p == nil {
		return 50
	}
	score := 50
	switch p.RiskTolerance {
	case "Low":
		score = 25
	case "High":
		score = 75
	}
	if h := p.InvestmentHorizonYears; h != nil {
		switch {
		case *h < 3:
			score -= 10
		case *h >= 7:
			score += 10
		}
	}
	if age := p.Age; age != nil {
		switch {
		case *age > 55:
			score -= 10
		case *age < 35:
			score += 5
		}
	}
	switch p.InvestmentExperience {
	case "Beginner":
		score -= 5
	case "Advanced":
		score += 10
	}
	return clamp(score, 0, 100)
}

// InvestorType buckets a risk score.
func InvestorType(score int) string {
	switch {
	case score < 40:
		return "Conservative"
	case score < 70:
		return "Balanced"
	default:
		return "Aggressive"
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
