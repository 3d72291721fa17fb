package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"credledger/internal/models"
	"credledger/internal/observability"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
)

// HTTPConfig configures an HTTPOracle.
type HTTPConfig struct {
	BaseURL string
	Timeout time.Duration
	// RPS bounds outgoing requests per second; <= 0 disables the limiter.
	RPS   float64
	Burst int
	// APIKey is sent as a bearer token when set.
	APIKey string
}

// HTTPOracle talks to a reputation service over JSON/HTTP:
//
//	GET  {base}/v1/accounts/{account}/reputation  -> {"reputation": n}
//	GET  {base}/v1/accounts/{account}/activation  -> {"activated": bool}
//	POST {base}/v1/accounts/{account}/activation
type HTTPOracle struct {
	base    *url.URL
	apiKey  string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

var errNotFound = errors.New("account not known to oracle")

// NewHTTPOracle validates cfg and builds the client.
func NewHTTPOracle(cfg HTTPConfig) (*HTTPOracle, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid oracle url %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}

	o := &HTTPOracle{
		base:    base,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: newBreaker("reputation-oracle"),
	}
	if cfg.RPS > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = max(1, int(cfg.RPS))
		}
		o.limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}
	return o, nil
}

func newBreaker(name string) *gobreaker.CircuitBreaker {
	st := gobreaker.Settings{Name: name}
	st.Interval = 60 * time.Second
	st.Timeout = 30 * time.Second
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		if counts.ConsecutiveFailures >= 3 {
			return true
		}
		if counts.Requests < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) > 0.05
	}
	st.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, errNotFound)
	}
	st.OnStateChange = func(name string, from, to gobreaker.State) {
		observability.Logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
	}
	return gobreaker.NewCircuitBreaker(st)
}

type reputationResponse struct {
	Account    string `json:"account"`
	Reputation int64  `json:"reputation"`
}

type activationResponse struct {
	Account   string `json:"account"`
	Activated bool   `json:"activated"`
}

// ReputationOf returns the account's reputation. Accounts the oracle does
// not know have reputation 0.
func (o *HTTPOracle) ReputationOf(ctx context.Context, account string) (int64, error) {
	var resp reputationResponse
	err := o.do(ctx, "reputation_of", http.MethodGet, account, "reputation", &resp)
	if errors.Is(err, errNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, models.NewOracleUnavailableError(err)
	}
	return resp.Reputation, nil
}

// IsAccountActivated reports whether the account is activated.
func (o *HTTPOracle) IsAccountActivated(ctx context.Context, account string) (bool, error) {
	var resp activationResponse
	err := o.do(ctx, "is_activated", http.MethodGet, account, "activation", &resp)
	if errors.Is(err, errNotFound) {
		return false, nil
	}
	if err != nil {
		return false, models.NewOracleUnavailableError(err)
	}
	return resp.Activated, nil
}

// ActivateAccount asks the oracle to activate the account.
func (o *HTTPOracle) ActivateAccount(ctx context.Context, account string) error {
	if err := o.do(ctx, "activate", http.MethodPost, account, "activation", nil); err != nil {
		return models.NewOracleUnavailableError(err)
	}
	return nil
}

func (o *HTTPOracle) do(ctx context.Context, method, verb, account, resource string, dest any) error {
	span, ctx := observability.NewSpan(ctx, "oracle."+method,
		attribute.String("oracle.account", account))
	defer span.End()

	err := o.call(ctx, verb, account, resource, dest)
	outcome := "ok"
	switch {
	case errors.Is(err, errNotFound):
		outcome = "not_found"
	case err != nil:
		outcome = "error"
		span.SetError(err)
	}
	observability.OracleRequests.WithLabelValues(method, outcome).Inc()
	return err
}

func (o *HTTPOracle) call(ctx context.Context, verb, account, resource string, dest any) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("account is required")
	}
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	_, err := o.breaker.Execute(func() (any, error) {
		u := o.base.JoinPath("v1", "accounts", account, resource)
		req, err := http.NewRequestWithContext(ctx, verb, u.String(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if o.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+o.apiKey)
		}

		resp, err := o.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return nil, errNotFound
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, fmt.Errorf("oracle returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		if dest == nil {
			return nil, nil
		}
		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			return nil, fmt.Errorf("decode oracle response: %w", err)
		}
		return nil, nil
	})
	return err
}
