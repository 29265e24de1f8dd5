package subagents

import (
	"context"
	"fmt"
	"math"

	"github.com/mf-advisor-core/server/internal/agent/model"
)

// DefaultExpectedReturnRate is the annual return assumed when the user gives none.
const DefaultExpectedReturnRate = 12.0

// CalculateSIP computes the future value of a monthly SIP paid at the start of each month:
// FV = P * ((1+r)^n - 1) / r * (1+r), r = rate/12/100, n = years*12.
// The maturity value is rounded to the nearest hundred rupees.
func CalculateSIP(monthly float64, years int, annualRate float64) model.SIPCalculation {
	n := float64(years * 12)
	r := annualRate / 12 / 100

	var fv float64
	if r == 0 {
		fv = monthly * n
	} else {
		fv = monthly * (math.Pow(1+r, n) - 1) / r * (1 + r)
	}
	maturity := math.Round(fv/100) * 100
	invested := monthly * n

	return model.SIPCalculation{
		MonthlyInvestment:      monthly,
		DurationYears:          years,
		ExpectedReturnRate:     annualRate,
		TotalInvested:          invested,
		EstimatedMaturityValue: maturity,
		EstimatedReturns:       maturity - invested,
	}
}

// SIPCalculatorAgent offers a maturity estimate; the user may skip it.
type SIPCalculatorAgent struct {
	completer model.Completer
}

func NewSIPCalculatorAgent(c model.Completer) *SIPCalculatorAgent {
	return &SIPCalculatorAgent{completer: c}
}

func (a *SIPCalculatorAgent) ID() model.AgentID { return model.AgentSIPCalculator }

func (a *SIPCalculatorAgent) Sections() []model.Section {
	return []model.Section{model.SectionSIPCalculatorOutput}
}

func (a *SIPCalculatorAgent) IsComplete(s *model.State) bool {
	return s.SIPCalculatorOutput != nil
}

func (a *SIPCalculatorAgent) Act(ctx context.Context, turn Turn) (*Result, error) {
	if wantsSkip(turn.Message) {
		return skipped(), nil
	}

	out, err := complete(ctx, a.completer, a.ID(), turn,
		"Collect the monthly amount and duration for an SIP estimate, or detect that the user wants to skip it.",
		[]string{"monthly_investment", "duration_years", "expected_return_rate", "skip"},
		model.SectionInvestmentGoal, model.SectionSelectedFund)
	if err != nil {
		return nil, err
	}
	if skip, ok := asBool(out.Fields["skip"]); ok && skip {
		return skipped(), nil
	}

	monthly, hasMonthly := asFloat(out.Fields["monthly_investment"])
	years, hasYears := asInt(out.Fields["duration_years"])
	rate, hasRate := asFloat(out.Fields["expected_return_rate"])
	if !hasRate {
		rate = DefaultExpectedReturnRate
	}

	// "yes" to the offer uses the goal's own numbers
	if g := turn.State.InvestmentGoal; g != nil && IsAffirmative(turn.Message) {
		if !hasMonthly && g.MonthlySIPTarget != nil {
			monthly, hasMonthly = *g.MonthlySIPTarget, true
		}
		if !hasYears && g.TimeHorizonYears != nil {
			years, hasYears = *g.TimeHorizonYears, true
		}
	}

	if !hasMonthly || !hasYears {
		reply := out.Reply
		if reply == "" {
			reply = "How much would you like to invest every month, and for how many years? Or say \"skip\" to go straight to investing."
		}
		return &Result{Reply: reply}, nil
	}

	calc := CalculateSIP(monthly, years, rate)
	if problems := check(turn.State, model.SectionSIPCalculatorOutput, func(s *model.State) { s.SIPCalculatorOutput = &calc }); len(problems) > 0 {
		return &Result{Problems: problems}, nil
	}

	fund := "your selected fund"
	if sf := turn.State.SelectedFund; sf != nil && sf.Name != "" {
		fund = sf.Name
	}
	return &Result{
		Reply:   FormatSIPEstimate(calc, fund),
		Updates: model.Updates{model.SectionSIPCalculatorOutput: &calc},
	}, nil
}

func skipped() *Result {
	return &Result{
		Reply:   "No problem, let's skip the estimate. Have you already registered on our investment portal, or would you like to create a new account?",
		Updates: model.Updates{model.SectionSIPCalculatorOutput: &model.SIPCalculation{Skipped: true}},
	}
}

func wantsSkip(msg string) bool {
	return IsNegative(msg) || containsAny(msg, "skip", "invest directly", "straight to invest", "no estimate", "not needed")
}

// FormatSIPEstimate renders the calculation for the user.
func FormatSIPEstimate(c model.SIPCalculation, fund string) string {
	return fmt.Sprintf(
		"Here's your SIP estimate for %s:\n"+
			"- Monthly investment: %s\n"+
			"- Duration: %d years\n"+
			"- Expected annual return: %g%%\n"+
			"- Total invested: %s\n"+
			"- Estimated maturity value: %s\n"+
			"- Estimated returns: %s\n\n"+
			"These are estimates, not guaranteed returns. Shall we set up this SIP? Have you already registered on our investment portal, or would you like to create a new account?",
		fund,
		FormatINR(c.MonthlyInvestment),
		c.DurationYears,
		c.ExpectedReturnRate,
		FormatINR(c.TotalInvested),
		FormatINR(c.EstimatedMaturityValue),
		FormatINR(c.EstimatedReturns),
	)
}
