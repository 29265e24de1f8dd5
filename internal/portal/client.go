package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mf-advisor-core/server/internal/agent/model"
	errx "github.com/mf-advisor-core/server/internal/core/error"
	logx "github.com/mf-advisor-core/server/pkg/logger"
)

// maxBody caps how much of a response is read.
const maxBody = 4 << 20

// StatusError is a non-2xx portal response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("portal %s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// IsClientError reports whether the portal rejected the request itself (4xx).
func IsClientError(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code >= 400 && se.Code < 500
}

// Client talks to the investment portal REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries uint64
}

func New(cfg model.PortalConfig) (*Client, error) {
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid portal base url: %w", err)
	}
	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid portal timeout: %w", err)
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: cfg.MaxRetries,
	}, nil
}

func (c *Client) Register(ctx context.Context, name, email, password, phone string) (*AuthResult, error) {
	var out AuthResult
	body := registerRequest{Name: name, Email: email, Password: password, PhoneNumber: phone}
	if err := c.do(ctx, http.MethodPost, "/users/register", "", body, &out); err != nil {
		return nil, err
	}
	if out.User.Email == "" && out.User.ID == "" {
		return nil, errx.Transport(errors.New("register response has no user"), "")
	}
	return &out, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var out AuthResult
	if err := c.do(ctx, http.MethodPost, "/users/login", "", loginRequest{Email: email, Password: password}, &out); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, errx.Transport(errors.New("login response has no token"), "")
	}
	return &out, nil
}

// ListFunds returns the active catalogue.
func (c *Client) ListFunds(ctx context.Context) ([]model.Fund, error) {
	var raw json.RawMessage
	if err := c.get(ctx, "/funds", &raw); err != nil {
		return nil, err
	}

	// the portal returns either a bare array or {"funds": [...]}
	var wires []fundWire
	if err := json.Unmarshal(raw, &wires); err != nil {
		var wrapped struct {
			Funds []fundWire `json:"funds"`
		}
		if err2 := json.Unmarshal(raw, &wrapped); err2 != nil {
			return nil, errx.Transport(fmt.Errorf("decode funds: %w", err), "")
		}
		wires = wrapped.Funds
	}

	funds := make([]model.Fund, 0, len(wires))
	for _, w := range wires {
		f := w.toModel()
		if f.FundID == "" || f.Name == "" || !f.IsActive {
			continue
		}
		funds = append(funds, f)
	}
	return funds, nil
}

func (c *Client) GetFund(ctx context.Context, fundID string) (*model.Fund, error) {
	var w fundWire
	if err := c.get(ctx, "/funds/"+url.PathEscape(fundID), &w); err != nil {
		return nil, err
	}
	f := w.toModel()
	if f.FundID == "" || f.Name == "" {
		return nil, errx.Transport(fmt.Errorf("fund %q has no id or name", fundID), "")
	}
	return &f, nil
}

func (c *Client) StartSIP(ctx context.Context, token string, req SIPRequest) (*SIPResult, error) {
	var out SIPResult
	if err := c.do(ctx, http.MethodPost, "/transactions/sip", token, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// get retries transient failures; 4xx responses are final.
func (c *Client) get(ctx context.Context, path string, out any) error {
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
	return backoff.RetryNotify(func() error {
		err := c.do(ctx, http.MethodGet, path, "", nil, out)
		if err != nil && IsClientError(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b, func(err error, wait time.Duration) {
		logx.Warn().Err(err).Str("path", path).Dur("retryIn", wait).Msg("portal request failed, retrying")
	})
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logx.Error().Err(err).Str("method", method).Str("path", path).Msg("portal request failed")
		return errx.Transport(err, "")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return errx.Transport(fmt.Errorf("read response: %w", err), "")
	}
	logx.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("portal response")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errx.Transport(&StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: truncate(string(data), 256)}, "")
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errx.Transport(fmt.Errorf("decode %s response: %w", path, err), "")
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
