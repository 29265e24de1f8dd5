package subagents

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mf-advisor-core/server/internal/agent/model"
)

// MaxRecommendations is how many funds are shown at once.
const MaxRecommendations = 3

// NoMoreFundsReply is sent when every catalogue fund has already been shown.
const NoMoreFundsReply = "We currently have only these mutual funds available."

type fundProfile struct {
	risk     string
	keywords []string
}

var fundProfiles = map[string]fundProfile{
	"Conservative": {risk: "Low", keywords: []string{"debt", "liquid", "gilt", "bond", "short duration", "money market", "overnight"}},
	"Balanced":     {risk: "Medium", keywords: []string{"hybrid", "balanced", "large cap", "index", "large & mid"}},
	"Aggressive":   {risk: "High", keywords: []string{"small cap", "mid cap", "flexi", "thematic", "sectoral", "multi cap", "elss"}},
}

// FilterNewFunds drops funds already shown and duplicates within candidates, keeping order.
func FilterNewFunds(candidates []model.Fund, shown []string) []model.Fund {
	seen := make(map[string]bool, len(shown)+len(candidates))
	for _, id := range shown {
		seen[id] = true
	}
	out := make([]model.Fund, 0, len(candidates))
	for _, f := range candidates {
		if f.FundID == "" || seen[f.FundID] {
			continue
		}
		seen[f.FundID] = true
		out = append(out, f)
	}
	return out
}

// MatchFunds keeps the funds suited to an investor type.
func MatchFunds(funds []model.Fund, investorType string) []model.Fund {
	p, ok := fundProfiles[investorType]
	if !ok {
		return append([]model.Fund(nil), funds...)
	}
	var out []model.Fund
	for _, f := range funds {
		if strings.EqualFold(f.RiskLevel, p.risk) || containsAny(f.Category+" "+f.FundType, p.keywords...) {
			out = append(out, f)
		}
	}
	return out
}

// ReturnKey picks the return horizon that best matches an investment horizon in years.
func ReturnKey(years int) string {
	switch {
	case years <= 3:
		return model.Return3Y
	case years <= 7:
		return model.Return5Y
	default:
		return model.Return10Y
	}
}

// fundReturn reads key, falling back to the nearest shorter horizon.
func fundReturn(f model.Fund, key string) (float64, string) {
	order := []string{model.Return10Y, model.Return5Y, model.Return3Y, model.Return1Y}
	start := 0
	for i, k := range order {
		if k == key {
			start = i
		}
	}
	for _, k := range order[start:] {
		if v, ok := f.Returns[k]; ok {
			return v, k
		}
	}
	return 0, ""
}

// RankFunds sorts by the horizon return, best first; ties by name.
func RankFunds(funds []model.Fund, key string) []model.Fund {
	out := append([]model.Fund(nil), funds...)
	sort.SliceStable(out, func(i, j int) bool {
		ri, _ := fundReturn(out[i], key)
		rj, _ := fundReturn(out[j], key)
		if ri != rj {
			return ri > rj
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Recommend picks up to MaxRecommendations new funds for the state, matched to the
// classification and ranked by the goal horizon. Unmatched new funds are used only
// when no matched fund is left.
func Recommend(catalogue []model.Fund, s *model.State) []model.Fund {
	investorType := ""
	if s.InvestorClassification != nil {
		investorType = s.InvestorClassification.Type
	}
	key := ReturnKey(horizonYears(s))

	fresh := FilterNewFunds(MatchFunds(catalogue, investorType), s.ShownFundIDs)
	if len(fresh) == 0 {
		fresh = FilterNewFunds(catalogue, s.ShownFundIDs)
	}
	ranked := RankFunds(fresh, key)
	if len(ranked) > MaxRecommendations {
		ranked = ranked[:MaxRecommendations]
	}
	for i := range ranked {
		ranked[i].RecommendationReason = reasonFor(ranked[i], investorType, key)
	}
	return ranked
}

func horizonYears(s *model.State) int {
	if g := s.InvestmentGoal; g != nil && g.TimeHorizonYears != nil {
		return *g.TimeHorizonYears
	}
	if p := s.UserProfile; p != nil && p.InvestmentHorizonYears != nil {
		return *p.InvestmentHorizonYears
	}
	return 5
}

func reasonFor(f model.Fund, investorType, key string) string {
	var parts []string
	if investorType != "" {
		parts = append(parts, fmt.Sprintf("suits a %s investor", investorType))
	}
	if f.RiskLevel != "" {
		parts = append(parts, strings.ToLower(f.RiskLevel)+" risk")
	}
	if v, k := fundReturn(f, key); k != "" {
		parts = append(parts, fmt.Sprintf("%s return of %.1f%%", k, v))
	}
	if len(parts) == 0 {
		return "Available in our catalogue"
	}
	return titleFirst(strings.Join(parts, ", "))
}

func titleFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// FormatFundList renders funds as a numbered list for the user.
func FormatFundList(funds []model.Fund) string {
	var b strings.Builder
	for i, f := range funds {
		fmt.Fprintf(&b, "%d. %s", i+1, f.Name)
		var meta []string
		if f.Category != "" {
			meta = append(meta, f.Category)
		}
		if f.RiskLevel != "" {
			meta = append(meta, f.RiskLevel+" risk")
		}
		if f.MinSIPAmount > 0 {
			meta = append(meta, "min SIP "+FormatINR(f.MinSIPAmount))
		}
		if len(meta) > 0 {
			b.WriteString(" (" + strings.Join(meta, ", ") + ")")
		}
		if f.RecommendationReason != "" {
			b.WriteString("\n   " + f.RecommendationReason)
		}
		if i < len(funds)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}
