package subagents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mf-advisor-core/server/internal/agent/model"
	"github.com/mf-advisor-core/server/internal/portal"
	logx "github.com/mf-advisor-core/server/pkg/logger"
)

// FundSelectionIssueReply is sent when the selected fund cannot be resolved.
const FundSelectionIssueReply = "I notice there's an issue with the fund selection. Let me help you choose a fund again."

var investmentFields = []string{"has_account", "email", "password", "phone_number", "amount", "deduction_day", "end_date"}

// endDateLayouts are the date spellings accepted for end_date.
var endDateLayouts = []string{
	model.DateLayout,
	"02-01-2006",
	"02/01/2006",
	"2 Jan 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2006",
	"January 2006",
}

// InvestmentAgent registers or logs the user in and starts the SIP.
// The password is used within one Act call and masked out of the stored message.
type InvestmentAgent struct {
	completer model.Completer
	portal    Portal
}

func NewInvestmentAgent(c model.Completer, p Portal) *InvestmentAgent {
	return &InvestmentAgent{completer: c, portal: p}
}

func (a *InvestmentAgent) ID() model.AgentID { return model.AgentInvestment }

func (a *InvestmentAgent) Sections() []model.Section {
	return []model.Section{model.SectionInvestmentDetails, model.SectionInvestmentStatus}
}

func (a *InvestmentAgent) IsComplete(s *model.State) bool {
	return s.InvestmentStatus.SIPInitiated
}

type investmentTurn struct {
	details  model.InvestmentDetails
	status   model.InvestmentStatus
	orig     model.InvestmentStatus
	fund     model.Fund
	password string
	authed   bool
}

func (t *investmentTurn) result(reply string) *Result {
	st := t.status
	return &Result{
		Reply: reply,
		Updates: model.Updates{
			model.SectionInvestmentDetails: detailsPatch(t.details),
			model.SectionInvestmentStatus:  &st,
		},
	}
}

// detailsPatch encodes d as an overlay. A cleared token or amount is sent as null so the
// stored value is removed rather than kept.
func detailsPatch(d model.InvestmentDetails) map[string]any {
	m := map[string]any{}
	if b, err := json.Marshal(d); err == nil {
		_ = json.Unmarshal(b, &m)
	}
	if d.PortalToken == "" {
		m["portal_token"] = nil
	}
	if d.Amount == nil {
		m["amount"] = nil
	}
	return m
}

func (t *investmentTurn) progressed() bool {
	return t.status.UserAccountCreated != t.orig.UserAccountCreated ||
		t.status.LoggedInInvestmentPortal != t.orig.LoggedInInvestmentPortal
}

// Redact masks password-looking values; used when a turn fails before the password is known.
func (a *InvestmentAgent) Redact(message string) string {
	return MaskSecrets(message)
}

func (a *InvestmentAgent) Act(ctx context.Context, turn Turn) (*Result, error) {
	var password string
	res, err := a.act(ctx, turn, &password)
	if password == "" {
		return res, err
	}
	masked := MaskSecrets(turn.Message, password)
	if err != nil {
		return nil, &RedactedError{Err: err, Message: masked}
	}
	res.Redacted = masked
	// The model may echo the password back.
	res.Reply = MaskSecrets(res.Reply, password)
	return res, nil
}

func (a *InvestmentAgent) act(ctx context.Context, turn Turn, password *string) (*Result, error) {
	s := turn.State
	if s.SelectedFund == nil {
		return &Result{Reply: FundSelectionIssueReply}, nil
	}
	fund, ok := s.RecommendedFund(s.SelectedFund.FundID)
	if !ok {
		return &Result{Reply: FundSelectionIssueReply}, nil
	}

	out, err := complete(ctx, a.completer, a.ID(), turn,
		a.instruction(s, fund),
		investmentFields,
		model.SectionSelectedFund, model.SectionInvestmentDetails, model.SectionInvestmentStatus)
	if err != nil {
		return nil, err
	}

	t := &investmentTurn{status: s.InvestmentStatus, orig: s.InvestmentStatus, fund: fund}
	if s.InvestmentDetails != nil {
		t.details = *s.InvestmentDetails
	}
	t.password, _ = asString(out.Fields["password"])
	*password = t.password
	applyDetails(&t.details, out.Fields, turn.Now)
	if t.details.HasAccount == nil {
		if v, ok := accountAnswer(turn.Message); ok {
			t.details.HasAccount = &v
		}
	}

	if problems := check(s, model.SectionInvestmentDetails, func(c *model.State) {
		d := t.details
		c.InvestmentDetails = &d
	}); len(problems) > 0 {
		return &Result{Problems: problems}, nil
	}

	if !t.status.LoggedInInvestmentPortal || t.details.PortalToken == "" {
		t.status.LoggedInInvestmentPortal = false
		reply, err := a.authenticate(ctx, s, t)
		if err != nil {
			if t.progressed() {
				return t.result("Your account is ready, but I couldn't reach the investment portal to finish logging in. Please send your password again in a moment."), nil
			}
			return nil, err
		}
		if reply != "" {
			if !t.progressed() && out.Reply != "" {
				reply = out.Reply
			}
			return t.result(reply), nil
		}
	}

	prefix := ""
	if t.authed {
		prefix = "You're now logged in to the investment portal. "
	}
	if missing := sipQuestions(t.details, fund); len(missing) > 0 {
		reply := prefix + strings.Join(missing, " ")
		if prefix == "" && out.Reply != "" {
			reply = out.Reply
		}
		return t.result(reply), nil
	}
	if fund.MinSIPAmount > 0 && *t.details.Amount < fund.MinSIPAmount {
		t.details.Amount = nil
		return t.result(fmt.Sprintf("%sThe minimum SIP amount for %s is %s. How much would you like to invest every month?",
			prefix, fund.Name, FormatINR(fund.MinSIPAmount))), nil
	}

	return a.startSIP(ctx, t, prefix)
}

func (a *InvestmentAgent) instruction(s *model.State, fund model.Fund) string {
	st := s.InvestmentStatus
	switch {
	case !st.LoggedInInvestmentPortal:
		return fmt.Sprintf("The user has selected %s. Find out whether they already have a portal account, then collect email and password (and phone number for a new account).", fund.Name)
	default:
		return fmt.Sprintf("The user is logged in. Collect the monthly amount (minimum %s), the deduction day (1-31) and the end date (YYYY-MM-DD).", FormatINR(fund.MinSIPAmount))
	}
}

// authenticate returns a reply when the user must supply more details, or "" once logged in.
func (a *InvestmentAgent) authenticate(ctx context.Context, s *model.State, t *investmentTurn) (string, error) {
	d := &t.details
	if d.HasAccount == nil {
		return "Have you already registered on our investment portal, or would you like to create a new account?", nil
	}
	newAccount := !*d.HasAccount && !t.status.UserAccountCreated

	switch {
	case newAccount && (d.Email == "" || t.password == "" || d.PhoneNumber == ""):
		return "To create your investment portal account, please share your email address, a password and your phone number.", nil
	case d.Email == "" || t.password == "":
		return "Please share the email address and password of your investment portal account.", nil
	}

	if newAccount {
		name := ""
		if s.UserProfile != nil {
			name = s.UserProfile.Name
		}
		res, err := a.portal.Register(ctx, name, d.Email, t.password, d.PhoneNumber)
		if err != nil {
			if portal.IsClientError(err) {
				logx.Info().Err(err).Msg("portal rejected registration")
				return "I couldn't create your account with those details. If you already have an account, just tell me and we'll log in instead.", nil
			}
			return "", err
		}
		t.status.UserAccountCreated = true
		d.PortalUserID = res.User.ID
		if res.Token != "" {
			d.PortalToken = res.Token
			t.status.LoggedInInvestmentPortal = true
			t.authed = true
			return "", nil
		}
	}

	res, err := a.portal.Login(ctx, d.Email, t.password)
	if err != nil {
		if portal.IsClientError(err) {
			logx.Info().Err(err).Msg("portal rejected login")
			return "I couldn't log you in with those details. Please check your email and password and try again.", nil
		}
		return "", err
	}
	d.PortalToken = res.Token
	if res.User.ID != "" {
		d.PortalUserID = res.User.ID
	}
	t.status.UserAccountCreated = true
	t.status.LoggedInInvestmentPortal = true
	t.authed = true
	return "", nil
}

func (a *InvestmentAgent) startSIP(ctx context.Context, t *investmentTurn, prefix string) (*Result, error) {
	d := &t.details
	res, err := a.portal.StartSIP(ctx, d.PortalToken, portal.SIPRequest{
		FundID:       t.fund.FundID,
		Amount:       *d.Amount,
		Frequency:    model.SIPFrequency,
		DeductionDay: *d.DeductionDay,
		StartDate:    d.StartDate,
		EndDate:      d.EndDate,
	})
	if err != nil {
		var se *portal.StatusError
		switch {
		case errors.As(err, &se) && se.Code == http.StatusUnauthorized:
			d.PortalToken = ""
			t.status.LoggedInInvestmentPortal = false
			return t.result("Your portal session has expired. Please share your portal password again so I can log you back in."), nil
		case portal.IsClientError(err):
			logx.Info().Err(err).Msg("portal rejected SIP request")
			return t.result(prefix + "The portal couldn't set up the SIP with these details. Please check the amount, deduction day and end date."), nil
		case t.progressed():
			return t.result(prefix + "I couldn't reach the investment portal to start the SIP. Please try again in a moment."), nil
		}
		return nil, err
	}
	if strings.TrimSpace(res.TransactionID) == "" {
		return t.result(prefix + "The portal did not confirm the SIP. Please try again."), nil
	}

	tx := res.TransactionID
	t.status.SIPInitiated = true
	t.status.SIPTransactionID = &tx
	return t.result(fmt.Sprintf("%sYour SIP is set up! %s per month in %s, deducted on day %d of each month from %s until %s. Transaction ID: %s.",
		prefix, FormatINR(*d.Amount), t.fund.Name, *d.DeductionDay, d.StartDate, d.EndDate, tx)), nil
}

// applyDetails overlays extracted values; the start date is always today and frequency Monthly.
func applyDetails(d *model.InvestmentDetails, fields map[string]any, now time.Time) {
	if v, ok := asBool(fields["has_account"]); ok {
		d.HasAccount = &v
	}
	if v, ok := asString(fields["email"]); ok {
		d.Email = strings.ToLower(v)
	}
	if v, ok := asString(fields["phone_number"]); ok {
		d.PhoneNumber = normalizePhone(v)
	}
	if v, ok := asFloat(fields["amount"]); ok {
		d.Amount = &v
	}
	if v, ok := asInt(fields["deduction_day"]); ok {
		d.DeductionDay = &v
	}
	if v, ok := asString(fields["end_date"]); ok {
		d.EndDate = normalizeDate(v)
	}
	d.Frequency = model.SIPFrequency
	d.StartDate = now.Format(model.DateLayout)
}

// accountAnswer reads "I already have an account" / "create a new one" style replies.
func accountAnswer(msg string) (bool, bool) {
	switch {
	case containsAny(msg, "new account", "create", "register me", "sign up", "signup", "don't have", "do not have", "not registered"):
		return false, true
	case containsAny(msg, "already", "have an account", "existing account", "registered", "log in", "login"):
		return true, true
	}
	return false, false
}

func sipQuestions(d model.InvestmentDetails, fund model.Fund) []string {
	var out []string
	if d.Amount == nil {
		q := "How much would you like to invest every month?"
		if fund.MinSIPAmount > 0 {
			q = fmt.Sprintf("How much would you like to invest every month? (minimum %s)", FormatINR(fund.MinSIPAmount))
		}
		out = append(out, q)
	}
	if d.DeductionDay == nil {
		out = append(out, "On which day of the month should the SIP be deducted (1-31)?")
	}
	if d.EndDate == "" {
		out = append(out, "When would you like the SIP to end? (YYYY-MM-DD)")
	}
	return out
}

// normalizeDate rewrites common spellings to YYYY-MM-DD; unknown input is returned as is.
func normalizeDate(v string) string {
	v = strings.TrimSpace(v)
	for _, layout := range endDateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Format(model.DateLayout)
		}
	}
	return v
}

func normalizePhone(v string) string {
	var b strings.Builder
	for i, r := range v {
		if (r >= '0' && r <= '9') || (r == '+' && i == 0) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
