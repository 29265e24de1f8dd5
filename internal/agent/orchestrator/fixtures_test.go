package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/mf-advisor-core/server/internal/agent/model"
	"github.com/mf-advisor-core/server/internal/agent/repo"
	"github.com/mf-advisor-core/server/internal/agent/subagents"
	"github.com/mf-advisor-core/server/internal/portal"
)

var fixedNow = time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

type fakeCompleter struct {
	mu     sync.Mutex
	fields map[string]any
	reply  string
	err    error
	calls  int
}

func (f *fakeCompleter) Complete(context.Context, model.CompletionRequest) (*model.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]any, len(f.fields))
	for k, v := range f.fields {
		out[k] = v
	}
	return &model.Completion{Reply: f.reply, Fields: out}, nil
}

type fakePortal struct {
	funds []model.Fund
	txID  string
}

func (p *fakePortal) Register(_ context.Context, name, email, _, _ string) (*portal.AuthResult, error) {
	return &portal.AuthResult{User: portal.User{ID: "u-1", Name: name, Email: email}}, nil
}

func (p *fakePortal) Login(_ context.Context, email, _ string) (*portal.AuthResult, error) {
	return &portal.AuthResult{User: portal.User{ID: "u-1", Email: email}, Token: "tok-1"}, nil
}

func (p *fakePortal) ListFunds(context.Context) ([]model.Fund, error) { return p.funds, nil }

func (p *fakePortal) GetFund(context.Context, string) (*model.Fund, error) { return nil, nil }

func (p *fakePortal) StartSIP(context.Context, string, portal.SIPRequest) (*portal.SIPResult, error) {
	return &portal.SIPResult{TransactionID: p.txID}, nil
}

// stubAgent replaces one registry entry with scripted behaviour.
type stubAgent struct {
	id       model.AgentID
	sections []model.Section
	done     func(*model.State) bool
	act      func(context.Context, subagents.Turn) (*subagents.Result, error)
}

func (a *stubAgent) ID() model.AgentID { return a.id }
func (a *stubAgent) Sections() []model.Section { return a.sections }
func (a *stubAgent) IsComplete(s *model.State) bool { return a.done(s) }
func (a *stubAgent) Act(ctx context.Context, t subagents.Turn) (*subagents.Result, error) {
	return a.act(ctx, t)
}

type harness struct {
	orch      *Orchestrator
	sessions  *repo.MemorySessionRepository
	agents    subagents.Registry
	completer *fakeCompleter
	portal    *fakePortal
	metrics   *Metrics
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		sessions:  repo.NewMemorySessionRepository(),
		completer: &fakeCompleter{},
		portal:    &fakePortal{txID: "tx-1"},
		metrics:   NewMetrics(prometheus.NewRegistry()),
	}
	h.agents = subagents.NewRegistry(h.completer, h.portal)
	o, err := New(Config{
		AppName:    "mutual_fund_advisor",
		Sessions:   h.sessions,
		Agents:     h.agents,
		Metrics:    h.metrics,
		LLMTimeout: time.Second,
		Now:        func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	h.orch = o
	return h
}

// seed stores s under user/session.
func (h *harness) seed(t *testing.T, userID, sessionID string, s *model.State) {
	t.Helper()
	raw, err := s.Encode()
	require.NoError(t, err)
	_, err = h.sessions.CreateOrReplace(context.Background(), h.orch.AppName(), userID, sessionID, raw)
	require.NoError(t, err)
}

func (h *harness) state(t *testing.T, userID, sessionID string) *model.State {
	t.Helper()
	s, err := h.orch.State(context.Background(), userID, sessionID)
	require.NoError(t, err)
	return s
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
func boolPtr(v bool) *bool        { return &v }

func consented() *model.State {
	s := model.NewState()
	s.ConsentGiven = true
	s.CurrentAgentStatus = model.AgentStatus{CurrentAgent: model.AgentUserProfile, PreviousAgent: model.AgentAdvisor, NextExpectedInput: "name"}
	return s
}

func withProfile(s *model.State) *model.State {
	s.UserProfile = &model.UserProfile{
		Name:                    "Asha",
		Age:                     intPtr(32),
		Gender:                  "Female",
		MonthlyIncome:           floatPtr(90000),
		InvestmentExperience:    "Intermediate",
		RiskTolerance:           "High",
		InvestmentHorizonYears:  intPtr(10),
		PreferredInvestmentMode: "SIP",
	}
	return s
}

func withClassification(s *model.State) *model.State {
	s.InvestorClassification = &model.InvestorClassification{Type: "Aggressive", RiskToleranceScore: intPtr(85)}
	return s
}

func withGoal(s *model.State) *model.State {
	s.InvestmentGoal = &model.InvestmentGoal{GoalType: "Wealth Creation", TargetAmount: floatPtr(5e6), TimeHorizonYears: intPtr(10), MonthlySIPTarget: floatPtr(10000)}
	return s
}

func testFunds() []model.Fund {
	return []model.Fund{
		{FundID: "f1", Name: "Alpha Small Cap", RiskLevel: "High", Category: "Small Cap", MinSIPAmount: 500, IsActive: true},
		{FundID: "f2", Name: "Beta Flexi Cap", RiskLevel: "High", Category: "Flexi Cap", MinSIPAmount: 1000, IsActive: true},
	}
}

func withRecommendations(s *model.State) *model.State {
	s.FundRecommendations = testFunds()
	s.ShownFundIDs = []string{"f1", "f2"}
	return s
}

func withSelection(s *model.State) *model.State {
	s.SelectedFund = &model.SelectedFund{FundID: "f1", Name: "Alpha Small Cap"}
	return s
}

func withSIP(s *model.State) *model.State {
	s.SIPCalculatorOutput = &model.SIPCalculation{Skipped: true}
	return s
}

func withLogin(s *model.State) *model.State {
	s.InvestmentDetails = &model.InvestmentDetails{Email: "asha@example.com", HasAccount: boolPtr(true), PortalUserID: "u-1", PortalToken: "tok-1"}
	s.InvestmentStatus = model.InvestmentStatus{UserAccountCreated: true, LoggedInInvestmentPortal: true}
	return s
}

func atInvestment() *model.State {
	return withLogin(withSIP(withSelection(withRecommendations(withGoal(withClassification(withProfile(consented())))))))
}
