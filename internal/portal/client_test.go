package portal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/mf-advisor-core/server/internal/agent/model"
	errx "github.com/mf-advisor-core/server/internal/core/error"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(model.PortalConfig{BaseURL: srv.URL + "/api", Timeout: "2s", MaxRetries: 2})
	require.NoError(t, err)
	return c
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(model.PortalConfig{BaseURL: "::nope", Timeout: "1s"})
	assert.Error(t, err)
	_, err = New(model.PortalConfig{BaseURL: "http://localhost", Timeout: "soon"})
	assert.Error(t, err)
}

func TestRegisterSendsPayload(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/users/register", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]string{
			"name":        "Asha",
			"email":       "asha@example.com",
			"password":    "pw",
			"phoneNumber": "9999999999",
		}, body)
		_, _ = w.Write([]byte(`{"user":{"_id":"u1","name":"Asha","email":"asha@example.com"}}`))
	}))

	res, err := c.Register(context.Background(), "Asha", "asha@example.com", "pw", "9999999999")
	require.NoError(t, err)
	assert.Equal(t, "u1", res.User.ID)
	assert.Empty(t, res.Token)
}

func TestLoginRequiresToken(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"user":{"_id":"u1"}}`))
	}))
	_, err := c.Login(context.Background(), "a@b.com", "pw")
	require.Error(t, err)
	assert.True(t, errx.IsKind(err, errx.KindTransport))
}

func TestLoginUnauthorizedIsClientError(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, `{"message":"invalid credentials"}`, http.StatusUnauthorized)
	}))
	_, err := c.Login(context.Background(), "a@b.com", "wrong")
	require.Error(t, err)
	assert.True(t, IsClientError(err))
	assert.True(t, errx.IsKind(err, errx.KindTransport))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestListFundsMapsWireFormat(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/funds", r.URL.Path)
		_, _ = w.Write([]byte(`[
			{"_id":"f1","name":"Alpha Debt","risk_level":"Low","category":"Debt","min_sip_amount":500,"nav":12.5,"returns":{"Y_3":6.1,"5y":7.2}},
			{"_id":"f2","name":"Closed Fund","is_active":false},
			{"_id":"","name":"Broken"}
		]`))
	}))

	funds, err := c.ListFunds(context.Background())
	require.NoError(t, err)
	require.Len(t, funds, 1)
	f := funds[0]
	assert.Equal(t, "f1", f.FundID)
	assert.Equal(t, 500.0, f.MinSIPAmount)
	assert.True(t, f.IsActive)
	assert.Equal(t, model.FundReturns{model.Return3Y: 6.1, model.Return5Y: 7.2}, f.Returns)
}

func TestListFundsAcceptsWrappedResponse(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"funds":[{"_id":"f1","name":"Alpha"}]}`))
	}))
	funds, err := c.ListFunds(context.Background())
	require.NoError(t, err)
	require.Len(t, funds, 1)
}

func TestGetRetriesServerErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		assert.Equal(t, "/api/funds/f 1", r.URL.Path)
		_, _ = w.Write([]byte(`{"_id":"f 1","name":"Spaced"}`))
	}))

	f, err := c.GetFund(context.Background(), "f 1")
	require.NoError(t, err)
	assert.Equal(t, "Spaced", f.Name)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGetFundNotFoundIsNotRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	_, err := c.GetFund(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsClientError(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestStartSIPSendsBearerToken(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		var req SIPRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, SIPRequest{
			FundID:       "f1",
			Amount:       1000,
			Frequency:    "Monthly",
			DeductionDay: 5,
			StartDate:    "2025-01-01",
			EndDate:      "2030-01-01",
		}, req)
		_, _ = w.Write([]byte(`{"_id":"tx-42","status":"active"}`))
	}))

	res, err := c.StartSIP(context.Background(), "tok", SIPRequest{
		FundID:       "f1",
		Amount:       1000,
		Frequency:    "Monthly",
		DeductionDay: 5,
		StartDate:    "2025-01-01",
		EndDate:      "2030-01-01",
	})
	require.NoError(t, err)
	assert.Equal(t, "tx-42", res.TransactionID)
}

func TestTransportFailure(t *testing.T) {
	c, err := New(model.PortalConfig{BaseURL: "http://127.0.0.1:1/api", Timeout: "200ms"})
	require.NoError(t, err)
	_, err = c.StartSIP(context.Background(), "tok", SIPRequest{FundID: "f1"})
	require.Error(t, err)
	assert.True(t, errx.IsKind(err, errx.KindTransport))
	assert.False(t, IsClientError(err))
}
