package subagents

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mf-advisor-core/server/internal/agent/model"
	"github.com/mf-advisor-core/server/internal/portal"
	logx "github.com/mf-advisor-core/server/pkg/logger"
)

var (
	indexRe  = regexp.MustCompile(`^\s*(?:option|fund|number|no\.?|#)?\s*(\d{1,2})\s*[.)]?\s*$`)
	ordinals = map[string]int{"first": 1, "1st": 1, "second": 2, "2nd": 2, "third": 3, "3rd": 3}
)

// FundRecommenderAgent shows matching funds and records the user's pick.
type FundRecommenderAgent struct {
	completer model.Completer
	portal    Portal
}

func NewFundRecommenderAgent(c model.Completer, p Portal) *FundRecommenderAgent {
	return &FundRecommenderAgent{completer: c, portal: p}
}

func (a *FundRecommenderAgent) ID() model.AgentID { return model.AgentFundRecommender }

func (a *FundRecommenderAgent) Sections() []model.Section {
	return []model.Section{model.SectionFundRecommendations, model.SectionShownFundIDs, model.SectionSelectedFund}
}

func (a *FundRecommenderAgent) IsComplete(s *model.State) bool {
	return s.SelectedFund != nil && s.SelectedFund.FundID != ""
}

func (a *FundRecommenderAgent) Act(ctx context.Context, turn Turn) (*Result, error) {
	if len(turn.State.FundRecommendations) == 0 {
		return a.recommend(ctx, turn.State)
	}
	return a.selectFund(ctx, turn)
}

func (a *FundRecommenderAgent) recommend(ctx context.Context, s *model.State) (*Result, error) {
	catalogue, err := a.portal.ListFunds(ctx)
	if err != nil {
		return nil, err
	}

	picks := Recommend(catalogue, s)
	if len(picks) == 0 {
		if len(s.FundRecommendations) == 0 {
			return &Result{Reply: "I couldn't find any active mutual funds right now. Please try again in a little while."}, nil
		}
		return &Result{
			Reply: NoMoreFundsReply + "\n\n" + FormatFundList(s.FundRecommendations) + "\n\nWhich of these would you like to choose?",
		}, nil
	}

	shown := append(append([]string(nil), s.ShownFundIDs...), fundIDs(picks)...)
	lead := "Based on your profile and goal, here are the funds I recommend:"
	if len(s.FundRecommendations) > 0 {
		lead = "Here are some other funds you could consider:"
	}
	return &Result{
		Reply: lead + "\n\n" + FormatFundList(picks) + "\n\nWhich fund would you like to choose? Reply with its number or name, or ask to see other funds.",
		Updates: model.Updates{
			model.SectionFundRecommendations: picks,
			model.SectionShownFundIDs:        shown,
		},
	}, nil
}

func (a *FundRecommenderAgent) selectFund(ctx context.Context, turn Turn) (*Result, error) {
	s := turn.State
	if wantsMoreFunds(turn.Message) {
		return a.recommend(ctx, s)
	}
	if f, ok := pickFromMessage(turn.Message, s.FundRecommendations); ok {
		return selected(f, nil, s), nil
	}

	instruction := "The user should pick one of the recommended funds. Identify their choice if they made one."
	out, err := complete(ctx, a.completer, a.ID(), turn, instruction,
		[]string{"selected_index", "selected_fund_id", "show_more"},
		model.SectionInvestorClassification, model.SectionInvestmentGoal, model.SectionFundRecommendations)
	if err != nil {
		return nil, err
	}

	if more, ok := asBool(out.Fields["show_more"]); ok && more {
		return a.recommend(ctx, s)
	}
	if i, ok := asInt(out.Fields["selected_index"]); ok && i >= 1 && i <= len(s.FundRecommendations) {
		return selected(s.FundRecommendations[i-1], nil, s), nil
	}
	if id, ok := asString(out.Fields["selected_fund_id"]); ok {
		if f, found := s.RecommendedFund(id); found {
			return selected(f, nil, s), nil
		}
		notFound := &Result{Reply: fmt.Sprintf("I couldn't find a fund with id %q. Please choose one of these:\n\n%s", id, FormatFundList(s.FundRecommendations))}
		fetched, err := a.portal.GetFund(ctx, id)
		if err != nil {
			if portal.IsClientError(err) {
				logx.Info().Str("fundID", id).Msg("user named an unknown fund")
				return notFound, nil
			}
			return nil, err
		}
		if fetched == nil || !fetched.IsActive {
			logx.Info().Str("fundID", id).Msg("user named an inactive fund")
			return notFound, nil
		}
		return selected(*fetched, fetched, s), nil
	}

	reply := out.Reply
	if reply == "" {
		reply = "Please choose one of these funds by its number or name:\n\n" + FormatFundList(s.FundRecommendations)
	}
	return &Result{Reply: reply}, nil
}

// selected builds the selection result; fetched is set when the fund came from the portal directly.
func selected(f model.Fund, fetched *model.Fund, s *model.State) *Result {
	updates := model.Updates{
		model.SectionSelectedFund: &model.SelectedFund{FundID: f.FundID, Name: f.Name},
	}
	if fetched != nil {
		fetched.RecommendationReason = "Requested by you"
		recs := append(append([]model.Fund(nil), s.FundRecommendations...), *fetched)
		updates[model.SectionFundRecommendations] = recs
		if !model.Contains(s.ShownFundIDs, fetched.FundID) {
			updates[model.SectionShownFundIDs] = append(append([]string(nil), s.ShownFundIDs...), fetched.FundID)
		}
	}

	minSIP := ""
	if f.MinSIPAmount > 0 {
		minSIP = fmt.Sprintf(" The minimum SIP amount is %s.", FormatINR(f.MinSIPAmount))
	}
	return &Result{
		Reply: fmt.Sprintf("Great choice! You've selected %s.%s Would you like an SIP estimate for this fund? Tell me a monthly amount and duration, or say \"skip\" to go straight to investing.",
			f.Name, minSIP),
		Updates: updates,
	}
}

func wantsMoreFunds(msg string) bool {
	return containsAny(msg, "other funds", "more funds", "show more", "different fund", "other options", "more options", "something else", "others")
}

// pickFromMessage resolves "2", "the second one", a fund id or a fund name.
func pickFromMessage(msg string, funds []model.Fund) (model.Fund, bool) {
	lower := strings.ToLower(strings.TrimSpace(msg))
	if m := indexRe.FindStringSubmatch(lower); m != nil {
		if i, err := strconv.Atoi(m[1]); err == nil && i >= 1 && i <= len(funds) {
			return funds[i-1], true
		}
	}
	for _, w := range strings.Fields(lower) {
		if i, ok := ordinals[strings.Trim(w, ".,!")]; ok && i <= len(funds) {
			return funds[i-1], true
		}
	}
	for _, f := range funds {
		if strings.Contains(lower, strings.ToLower(f.FundID)) {
			return f, true
		}
	}
	var match model.Fund
	n := 0
	for _, f := range funds {
		if f.Name != "" && strings.Contains(lower, strings.ToLower(f.Name)) {
			match = f
			n++
		}
	}
	return match, n == 1
}

func fundIDs(funds []model.Fund) []string {
	out := make([]string, 0, len(funds))
	for _, f := range funds {
		out = append(out, f.FundID)
	}
	return out
}
