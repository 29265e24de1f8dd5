package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/mail"
	"strings"
	"time"

	errx "github.com/mf-advisor-core/server/internal/core/error"
)

// FieldError is one violated constraint.
type FieldError struct {
	Section Section `json:"section"`
	Field   string  `json:"field"`
	Message string  `json:"message"`
}

func (e FieldError) String() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Section, e.Message)
	}
	return fmt.Sprintf("%s.%s: %s", e.Section, e.Field, e.Message)
}

// ValidationErrors collects FieldErrors and implements error.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, e := range v {
		parts = append(parts, e.String())
	}
	return strings.Join(parts, "; ")
}

// Fields returns the names of the offending fields.
func (v ValidationErrors) Fields() []string {
	out := make([]string, 0, len(v))
	for _, e := range v {
		out = append(out, e.Field)
	}
	return out
}

func (v *ValidationErrors) add(sec Section, field, format string, args ...any) {
	*v = append(*v, FieldError{Section: sec, Field: field, Message: fmt.Sprintf(format, args...)})
}

// Validate checks every populated section. Missing values are not errors;
// present values must satisfy their constraints.
func (s *State) Validate() ValidationErrors {
	var errs ValidationErrors
	validateProfile(&errs, s.UserProfile)
	validateClassification(&errs, s.InvestorClassification)
	validateGoal(&errs, s.InvestmentGoal)
	validateFunds(&errs, s)
	validateSIP(&errs, s.SIPCalculatorOutput)
	validateDetails(&errs, s.InvestmentDetails)
	validateStatus(&errs, s.InvestmentStatus)

	if !s.CurrentAgentStatus.CurrentAgent.IsKnown() {
		errs.add(SectionCurrentAgentStatus, "current_agent", "unknown agent %q", s.CurrentAgentStatus.CurrentAgent)
	}
	if p := s.CurrentAgentStatus.PreviousAgent; p != "" && !p.IsKnown() {
		errs.add(SectionCurrentAgentStatus, "previous_agent", "unknown agent %q", p)
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func validateProfile(errs *ValidationErrors, p *UserProfile) {
	if p == nil {
		return
	}
	if p.Age != nil && (*p.Age < 18 || *p.Age > 100) {
		errs.add(SectionUserProfile, "age", "must be between 18 and 100")
	}
	if p.MonthlyIncome != nil && *p.MonthlyIncome <= 0 {
		errs.add(SectionUserProfile, "monthly_income", "must be greater than zero")
	}
	if p.InvestmentExperience != "" && !Contains(InvestmentExperiences, p.InvestmentExperience) {
		errs.add(SectionUserProfile, "investment_experience", "must be one of %v", InvestmentExperiences)
	}
	if p.RiskTolerance != "" && !Contains(RiskTolerances, p.RiskTolerance) {
		errs.add(SectionUserProfile, "risk_tolerance", "must be one of %v", RiskTolerances)
	}
	if p.InvestmentHorizonYears != nil && *p.InvestmentHorizonYears <= 0 {
		errs.add(SectionUserProfile, "investment_horizon_years", "must be greater than zero")
	}
	if p.PreferredInvestmentMode != "" && !Contains(InvestmentModes, p.PreferredInvestmentMode) {
		errs.add(SectionUserProfile, "preferred_investment_mode", "must be one of %v", InvestmentModes)
	}
}

func validateClassification(errs *ValidationErrors, c *InvestorClassification) {
	if c == nil {
		return
	}
	if c.Type != "" && !Contains(InvestorTypes, c.Type) {
		errs.add(SectionInvestorClassification, "type", "must be one of %v", InvestorTypes)
	}
	if c.RiskToleranceScore != nil && (*c.RiskToleranceScore < 0 || *c.RiskToleranceScore > 100) {
		errs.add(SectionInvestorClassification, "risk_tolerance_score", "must be between 0 and 100")
	}
}

func validateGoal(errs *ValidationErrors, g *InvestmentGoal) {
	if g == nil {
		return
	}
	if g.GoalType != "" && !Contains(GoalTypes, g.GoalType) {
		errs.add(SectionInvestmentGoal, "goal_type", "must be one of %v", GoalTypes)
	}
	if g.TargetAmount != nil && *g.TargetAmount <= 0 {
		errs.add(SectionInvestmentGoal, "target_amount", "must be greater than zero")
	}
	if g.TimeHorizonYears != nil && *g.TimeHorizonYears <= 0 {
		errs.add(SectionInvestmentGoal, "time_horizon_years", "must be greater than zero")
	}
	if g.MonthlySIPTarget != nil && *g.MonthlySIPTarget <= 0 {
		errs.add(SectionInvestmentGoal, "monthly_sip_target", "must be greater than zero")
	}
}

func validateFunds(errs *ValidationErrors, s *State) {
	seen := make(map[string]bool, len(s.FundRecommendations))
	for i, f := range s.FundRecommendations {
		if strings.TrimSpace(f.FundID) == "" || strings.TrimSpace(f.Name) == "" {
			errs.add(SectionFundRecommendations, fmt.Sprintf("[%d]", i), "fund_id and name are required")
			continue
		}
		if seen[f.FundID] {
			errs.add(SectionFundRecommendations, fmt.Sprintf("[%d]", i), "duplicate fund_id %q", f.FundID)
		}
		seen[f.FundID] = true
	}
	if sf := s.SelectedFund; sf != nil && sf.FundID != "" {
		if sf.Name == "" {
			errs.add(SectionSelectedFund, "name", "is required")
		}
		if !seen[sf.FundID] {
			errs.add(SectionSelectedFund, "fund_id", "%q was never recommended", sf.FundID)
		}
	}
}

func validateSIP(errs *ValidationErrors, c *SIPCalculation) {
	if c == nil || c.Skipped {
		return
	}
	if c.MonthlyInvestment <= 0 {
		errs.add(SectionSIPCalculatorOutput, "monthly_investment", "must be greater than zero")
	}
	if c.DurationYears <= 0 {
		errs.add(SectionSIPCalculatorOutput, "duration_years", "must be greater than zero")
	}
	if c.ExpectedReturnRate < 0 {
		errs.add(SectionSIPCalculatorOutput, "expected_return_rate", "must not be negative")
	}
}

func validateDetails(errs *ValidationErrors, d *InvestmentDetails) {
	if d == nil {
		return
	}
	if d.Email != "" {
		if _, err := mail.ParseAddress(d.Email); err != nil || !strings.Contains(d.Email, ".") {
			errs.add(SectionInvestmentDetails, "email", "is not a valid email address")
		}
	}
	if d.Amount != nil && *d.Amount <= 0 {
		errs.add(SectionInvestmentDetails, "amount", "must be greater than zero")
	}
	if d.Frequency != "" && d.Frequency != SIPFrequency {
		errs.add(SectionInvestmentDetails, "frequency", "must be %s", SIPFrequency)
	}
	if d.DeductionDay != nil && (*d.DeductionDay < 1 || *d.DeductionDay > 31) {
		errs.add(SectionInvestmentDetails, "deduction_day", "must be between 1 and 31")
	}
	var start, end time.Time
	var err error
	if d.StartDate != "" {
		if start, err = time.Parse(DateLayout, d.StartDate); err != nil {
			errs.add(SectionInvestmentDetails, "start_date", "must be in YYYY-MM-DD format")
		}
	}
	if d.EndDate != "" {
		if end, err = time.Parse(DateLayout, d.EndDate); err != nil {
			errs.add(SectionInvestmentDetails, "end_date", "must be in YYYY-MM-DD format")
		}
	}
	if !start.IsZero() && !end.IsZero() && !end.After(start) {
		errs.add(SectionInvestmentDetails, "end_date", "must be after the start date")
	}
}

func validateStatus(errs *ValidationErrors, st InvestmentStatus) {
	hasTx := st.SIPTransactionID != nil && strings.TrimSpace(*st.SIPTransactionID) != ""
	if hasTx && !st.SIPInitiated {
		errs.add(SectionInvestmentStatus, "sip_transaction_id", "present while sip_initiated is false")
	}
	if st.SIPInitiated && !hasTx {
		errs.add(SectionInvestmentStatus, "sip_initiated", "true without a transaction id")
	}
}

// DecodeState parses a stored document. An empty document is the empty template.
// Any decode or constraint failure is reported as state corruption.
func DecodeState(raw []byte) (*State, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return NewState(), nil
	}
	var s State
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, errx.Corruption(fmt.Errorf("decode state: %w", err))
	}
	if errs := s.Validate(); errs != nil {
		return nil, errx.Corruption(fmt.Errorf("stored state: %w", errs))
	}
	if s.InteractionHistory == nil {
		s.InteractionHistory = []Interaction{}
	}
	return &s, nil
}

// StateFromDocument converts a generic JSON object back into a validated State.
func StateFromDocument(doc map[string]any) (*State, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	var s State
	if err := dec.Decode(&s); err != nil {
		return nil, err
	}
	if errs := s.Validate(); errs != nil {
		return nil, errs
	}
	if s.InteractionHistory == nil {
		s.InteractionHistory = []Interaction{}
	}
	return &s, nil
}
