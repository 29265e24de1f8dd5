package subagents

import (
	"context"
	"errors"
	"testing"

	"github.com/mf-advisor-core/server/internal/agent/model"
	"github.com/mf-advisor-core/server/internal/portal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func catalogue() []model.Fund {
	return []model.Fund{
		{FundID: "f1", Name: "Alpha Small Cap", RiskLevel: "High", Category: "Small Cap", MinSIPAmount: 500, IsActive: true, Returns: model.FundReturns{"10Y": 18, "5Y": 20}},
		{FundID: "f2", Name: "Beta Flexi Cap", RiskLevel: "High", Category: "Flexi Cap", MinSIPAmount: 1000, IsActive: true, Returns: model.FundReturns{"10Y": 15}},
		{FundID: "f3", Name: "Gamma Mid Cap", RiskLevel: "High", Category: "Mid Cap", MinSIPAmount: 500, IsActive: true, Returns: model.FundReturns{"5Y": 16}},
		{FundID: "f4", Name: "Delta Liquid", RiskLevel: "Low", Category: "Liquid", MinSIPAmount: 500, IsActive: true, Returns: model.FundReturns{"1Y": 6}},
		{FundID: "f5", Name: "Epsilon Thematic", RiskLevel: "High", Category: "Thematic", MinSIPAmount: 500, IsActive: true, Returns: model.FundReturns{"10Y": 12}},
	}
}

func aggressiveState() *model.State {
	s := model.NewState()
	s.InvestorClassification = &model.InvestorClassification{Type: "Aggressive", RiskToleranceScore: intPtr(80)}
	s.InvestmentGoal = &model.InvestmentGoal{GoalType: "Wealth Creation", TargetAmount: floatPtr(5e6), TimeHorizonYears: intPtr(10), MonthlySIPTarget: floatPtr(10000)}
	return s
}

func TestFilterNewFunds(t *testing.T) {
	cands := []model.Fund{{FundID: "a"}, {FundID: "b"}, {FundID: "c"}, {FundID: "c"}, {FundID: ""}}
	got := FilterNewFunds(cands, []string{"a", "b"})
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].FundID)
}

func TestMatchFunds(t *testing.T) {
	got := MatchFunds(catalogue(), "Conservative")
	require.Len(t, got, 1)
	assert.Equal(t, "f4", got[0].FundID)

	assert.Len(t, MatchFunds(catalogue(), ""), 5)
}

func TestReturnKey(t *testing.T) {
	assert.Equal(t, "3Y", ReturnKey(1))
	assert.Equal(t, "3Y", ReturnKey(3))
	assert.Equal(t, "5Y", ReturnKey(7))
	assert.Equal(t, "10Y", ReturnKey(8))
}

func TestRankFundsFallsBackToShorterHorizon(t *testing.T) {
	got := RankFunds(catalogue()[:3], "10Y")
	assert.Equal(t, []string{"f1", "f3", "f2"}, fundIDs(got))
}

func TestRecommend(t *testing.T) {
	s := aggressiveState()
	got := Recommend(catalogue(), s)
	require.Len(t, got, MaxRecommendations)
	assert.Equal(t, []string{"f1", "f3", "f2"}, fundIDs(got))
	for _, f := range got {
		assert.NotEmpty(t, f.RecommendationReason)
	}
	assert.Contains(t, got[0].RecommendationReason, "Aggressive investor")

	// matched funds exhausted: fall back to whatever is new
	s.ShownFundIDs = []string{"f1", "f2", "f3", "f5"}
	got = Recommend(catalogue(), s)
	assert.Equal(t, []string{"f4"}, fundIDs(got))

	s.ShownFundIDs = fundIDs(catalogue())
	assert.Empty(t, Recommend(catalogue(), s))
}

func TestFormatFundList(t *testing.T) {
	out := FormatFundList(catalogue()[:2])
	assert.Contains(t, out, "1. Alpha Small Cap (Small Cap, High risk, min SIP ₹500)")
	assert.Contains(t, out, "2. Beta Flexi Cap")
}

func TestFundRecommenderShowsTopFunds(t *testing.T) {
	p := &fakePortal{funds: catalogue()}
	c := &fakeCompleter{}
	a := NewFundRecommenderAgent(c, p)

	res, err := a.Act(context.Background(), turnFor(aggressiveState(), "yes please"))
	require.NoError(t, err)

	recs := res.Updates[model.SectionFundRecommendations].([]model.Fund)
	assert.Equal(t, []string{"f1", "f3", "f2"}, fundIDs(recs))
	assert.Equal(t, []string{"f1", "f3", "f2"}, res.Updates[model.SectionShownFundIDs])
	assert.Contains(t, res.Reply, "1. Alpha Small Cap")
	assert.Empty(t, c.reqs)
}

func TestFundRecommenderOnlyShowsNewFunds(t *testing.T) {
	s := aggressiveState()
	cat := catalogue()[:3]
	s.FundRecommendations = cat[:2]
	s.ShownFundIDs = []string{"f1", "f2"}

	a := NewFundRecommenderAgent(&fakeCompleter{}, &fakePortal{funds: cat})
	res, err := a.Act(context.Background(), turnFor(s, "show me other funds"))
	require.NoError(t, err)

	recs := res.Updates[model.SectionFundRecommendations].([]model.Fund)
	assert.Equal(t, []string{"f3"}, fundIDs(recs))
	assert.Equal(t, []string{"f1", "f2", "f3"}, res.Updates[model.SectionShownFundIDs])
	assert.Contains(t, res.Reply, "other funds")
}

func TestFundRecommenderNoMoreFunds(t *testing.T) {
	s := aggressiveState()
	s.FundRecommendations = catalogue()[:2]
	s.ShownFundIDs = []string{"f1", "f2"}

	a := NewFundRecommenderAgent(&fakeCompleter{}, &fakePortal{funds: catalogue()[:2]})
	res, err := a.Act(context.Background(), turnFor(s, "show more"))
	require.NoError(t, err)
	assert.Contains(t, res.Reply, NoMoreFundsReply)
	assert.Empty(t, res.Updates)
}

func TestFundRecommenderEmptyCatalogue(t *testing.T) {
	a := NewFundRecommenderAgent(&fakeCompleter{}, &fakePortal{})
	res, err := a.Act(context.Background(), turnFor(aggressiveState(), "ok"))
	require.NoError(t, err)
	assert.Contains(t, res.Reply, "couldn't find any active mutual funds")
	assert.Empty(t, res.Updates)
}

func TestFundRecommenderPropagatesPortalError(t *testing.T) {
	boom := errors.New("portal down")
	a := NewFundRecommenderAgent(&fakeCompleter{}, &fakePortal{listErr: boom})
	_, err := a.Act(context.Background(), turnFor(aggressiveState(), "ok"))
	assert.ErrorIs(t, err, boom)
}

func TestFundRecommenderSelection(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want string
	}{
		{"index", "2", "f2"},
		{"option", "option 3", "f3"},
		{"ordinal", "I'll take the first one", "f1"},
		{"name", "Gamma Mid Cap sounds good", "f3"},
		{"id", "f2", "f2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := aggressiveState()
			s.FundRecommendations = catalogue()[:3]
			c := &fakeCompleter{}
			res, err := NewFundRecommenderAgent(c, &fakePortal{}).Act(context.Background(), turnFor(s, tt.msg))
			require.NoError(t, err)

			sel := res.Updates[model.SectionSelectedFund].(*model.SelectedFund)
			assert.Equal(t, tt.want, sel.FundID)
			assert.Contains(t, res.Reply, "You've selected")
			assert.Empty(t, c.reqs)
		})
	}
}

func TestFundRecommenderSelectionViaModel(t *testing.T) {
	s := aggressiveState()
	s.FundRecommendations = catalogue()[:3]

	res, err := NewFundRecommenderAgent(fields(map[string]any{"selected_index": 2}), &fakePortal{}).
		Act(context.Background(), turnFor(s, "the flexi one"))
	require.NoError(t, err)
	assert.Equal(t, "f2", res.Updates[model.SectionSelectedFund].(*model.SelectedFund).FundID)
}

func TestFundRecommenderFetchesUnlistedFund(t *testing.T) {
	s := aggressiveState()
	s.FundRecommendations = catalogue()[:2]
	s.ShownFundIDs = []string{"f1", "f2"}
	extra := catalogue()[4]

	p := &fakePortal{fund: &extra}
	res, err := NewFundRecommenderAgent(fields(map[string]any{"selected_fund_id": "f5"}), p).
		Act(context.Background(), turnFor(s, "I want the thematic fund"))
	require.NoError(t, err)

	assert.Equal(t, "f5", res.Updates[model.SectionSelectedFund].(*model.SelectedFund).FundID)
	recs := res.Updates[model.SectionFundRecommendations].([]model.Fund)
	assert.Equal(t, []string{"f1", "f2", "f5"}, fundIDs(recs))
	assert.Equal(t, []string{"f1", "f2", "f5"}, res.Updates[model.SectionShownFundIDs])
}

func TestFundRecommenderUnknownFund(t *testing.T) {
	s := aggressiveState()
	s.FundRecommendations = catalogue()[:2]

	p := &fakePortal{fundErr: &portal.StatusError{Method: "GET", Path: "/funds/zz", Code: 404}}
	res, err := NewFundRecommenderAgent(fields(map[string]any{"selected_fund_id": "zz"}), p).
		Act(context.Background(), turnFor(s, "zz please"))
	require.NoError(t, err)
	assert.Contains(t, res.Reply, `couldn't find a fund with id "zz"`)
	assert.Empty(t, res.Updates)
}

func TestFundRecommenderRejectsInactiveFund(t *testing.T) {
	s := aggressiveState()
	s.FundRecommendations = catalogue()[:2]
	closed := catalogue()[4]
	closed.IsActive = false

	p := &fakePortal{fund: &closed}
	res, err := NewFundRecommenderAgent(fields(map[string]any{"selected_fund_id": "f5"}), p).
		Act(context.Background(), turnFor(s, "the thematic one"))
	require.NoError(t, err)
	assert.Contains(t, res.Reply, `couldn't find a fund with id "f5"`)
	assert.NotContains(t, res.Updates, model.SectionSelectedFund)
}
