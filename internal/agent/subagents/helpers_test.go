package subagents

import (
	"context"
	"time"

	"github.com/mf-advisor-core/server/internal/agent/model"
	"github.com/mf-advisor-core/server/internal/portal"
)

var testNow = time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

type fakeCompleter struct {
	out  *model.Completion
	err  error
	reqs []model.CompletionRequest
}

func (f *fakeCompleter) Complete(_ context.Context, req model.CompletionRequest) (*model.Completion, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	if f.out == nil {
		return &model.Completion{}, nil
	}
	c := *f.out
	return &c, nil
}

func fields(kv map[string]any) *fakeCompleter {
	return &fakeCompleter{out: &model.Completion{Fields: kv}}
}

type fakePortal struct {
	funds    []model.Fund
	listErr  error
	fund     *model.Fund
	fundErr  error
	register func(name, email, password, phone string) (*portal.AuthResult, error)
	login    func(email, password string) (*portal.AuthResult, error)
	sip      func(token string, req portal.SIPRequest) (*portal.SIPResult, error)

	registered []string
	logins     []string
	sipReqs    []portal.SIPRequest
}

func (p *fakePortal) Register(_ context.Context, name, email, password, phone string) (*portal.AuthResult, error) {
	p.registered = append(p.registered, email)
	if p.register == nil {
		return &portal.AuthResult{User: portal.User{ID: "u-1", Name: name, Email: email}}, nil
	}
	return p.register(name, email, password, phone)
}

func (p *fakePortal) Login(_ context.Context, email, password string) (*portal.AuthResult, error) {
	p.logins = append(p.logins, email)
	if p.login == nil {
		return &portal.AuthResult{User: portal.User{ID: "u-1", Email: email}, Token: "tok-1"}, nil
	}
	return p.login(email, password)
}

func (p *fakePortal) ListFunds(context.Context) ([]model.Fund, error) {
	return p.funds, p.listErr
}

func (p *fakePortal) GetFund(_ context.Context, _ string) (*model.Fund, error) {
	return p.fund, p.fundErr
}

func (p *fakePortal) StartSIP(_ context.Context, token string, req portal.SIPRequest) (*portal.SIPResult, error) {
	p.sipReqs = append(p.sipReqs, req)
	if p.sip == nil {
		return &portal.SIPResult{TransactionID: "tx-1", Status: "active"}, nil
	}
	return p.sip(token, req)
}

func turnFor(s *model.State, msg string) Turn {
	return Turn{SessionID: "s-1", State: s, Message: msg, History: s.InteractionHistory, Now: testNow}
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
func boolPtr(v bool) *bool        { return &v }
