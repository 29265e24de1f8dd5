package subagents

import (
	"context"
	"fmt"
	"strings"

	"github.com/mf-advisor-core/server/internal/agent/model"
)

var goalQuestions = map[string]string{
	"goal_type":          "What are you investing for: Retirement, Education, Wealth Creation or a House Purchase?",
	"target_amount":      "How much money (in ₹) would you like to have for this goal?",
	"time_horizon_years": "In how many years will you need this money?",
	"monthly_sip_target": "How much would you be comfortable investing every month (in ₹)?",
}

var goalSynonyms = map[string]string{
	"retire":          "Retirement",
	"retirement":      "Retirement",
	"pension":         "Retirement",
	"education":       "Education",
	"child education": "Education",
	"children":        "Education",
	"college":         "Education",
	"wealth":          "Wealth Creation",
	"wealth creation": "Wealth Creation",
	"wealth building": "Wealth Creation",
	"grow wealth":     "Wealth Creation",
	"house":           "House Purchase",
	"home":            "House Purchase",
	"house purchase":  "House Purchase",
	"buying a house":  "House Purchase",
	"property":        "House Purchase",
}

// GoalPlannerAgent captures the investment goal.
type GoalPlannerAgent struct {
	completer model.Completer
}

func NewGoalPlannerAgent(c model.Completer) *GoalPlannerAgent {
	return &GoalPlannerAgent{completer: c}
}

func (a *GoalPlannerAgent) ID() model.AgentID { return model.AgentGoalPlanner }

func (a *GoalPlannerAgent) Sections() []model.Section {
	return []model.Section{model.SectionInvestmentGoal}
}

func (a *GoalPlannerAgent) IsComplete(s *model.State) bool {
	return s.InvestmentGoal != nil && len(s.InvestmentGoal.MissingFields()) == 0
}

func (a *GoalPlannerAgent) Act(ctx context.Context, turn Turn) (*Result, error) {
	missing := turn.State.InvestmentGoal.MissingFields()
	instruction := fmt.Sprintf("Still missing: %s. Extract any goal values in the user's message and ask for the next missing one.", strings.Join(missing, ", "))

	out, err := complete(ctx, a.completer, a.ID(), turn, instruction, model.GoalFields,
		model.SectionUserProfile, model.SectionInvestorClassification, model.SectionInvestmentGoal)
	if err != nil {
		return nil, err
	}

	patch, n := goalPatch(out.Fields)
	res := &Result{Reply: out.Reply, Updates: model.Updates{}}
	if n > 0 {
		res.Updates.Set(model.SectionInvestmentGoal, patch)
	}
	if res.Reply == "" {
		res.Reply = nextGoalQuestion(applyGoal(turn.State.InvestmentGoal, patch))
	}
	return res, nil
}

func goalPatch(fields map[string]any) (*model.InvestmentGoal, int) {
	g := &model.InvestmentGoal{}
	n := 0
	if v, ok := asString(fields["goal_type"]); ok {
		g.GoalType = matchEnum(v, model.GoalTypes, goalSynonyms)
		n++
	}
	if v, ok := asFloat(fields["target_amount"]); ok {
		g.TargetAmount = &v
		n++
	}
	if v, ok := asInt(fields["time_horizon_years"]); ok {
		g.TimeHorizonYears = &v
		n++
	}
	if v, ok := asFloat(fields["monthly_sip_target"]); ok {
		g.MonthlySIPTarget = &v
		n++
	}
	return g, n
}

func applyGoal(base, patch *model.InvestmentGoal) *model.InvestmentGoal {
	out := model.InvestmentGoal{}
	if base != nil {
		out = *base
	}
	if patch.GoalType != "" {
		out.GoalType = patch.GoalType
	}
	if patch.TargetAmount != nil {
		out.TargetAmount = patch.TargetAmount
	}
	if patch.TimeHorizonYears != nil {
		out.TimeHorizonYears = patch.TimeHorizonYears
	}
	if patch.MonthlySIPTarget != nil {
		out.MonthlySIPTarget = patch.MonthlySIPTarget
	}
	return &out
}

func nextGoalQuestion(g *model.InvestmentGoal) string {
	missing := g.MissingFields()
	if len(missing) == 0 {
		return "Thanks, I have your goal. Shall I find mutual funds that suit you?"
	}
	return goalQuestions[missing[0]]
}
