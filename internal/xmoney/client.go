package xmoney

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

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/xmoney-playground/internal/resilience"
)

const (
	// LiveBaseURL is the production REST host.
	LiveBaseURL = "https://api.xmoney.com"
	// TestBaseURL is the sandbox REST host.
	TestBaseURL = "https://api-stage.xmoney.com"

	maxBodyBytes = 4 << 20
)

// Auth selects the bearer token and environment of a call.
type Auth struct {
	APIKey string
	IsLive bool
}

// Config configures a Client. Zero values use the public hosts and no retries.
type Config struct {
	LiveBaseURL string
	TestBaseURL string
	Timeout     time.Duration
	MaxAttempts int
	Breaker     resilience.Settings
	Transport   http.RoundTripper
	Logger      *zerolog.Logger
}

// Client calls the xMoney REST API. It is safe for concurrent use.
type Client struct {
	live string
	test string
	http resilience.HTTPClient
}

// NewClient builds a Client with a traced transport behind a circuit breaker.
func NewClient(cfg Config) *Client {
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	settings := cfg.Breaker
	if settings.Target == "" {
		settings.Target = "xmoney"
	}
	breaker := resilience.NewBreaker(settings)
	if cfg.Logger != nil {
		breaker.WithLogger(*cfg.Logger)
	}
	return &Client{
		live: strings.TrimRight(firstNonEmpty(cfg.LiveBaseURL, LiveBaseURL), "/"),
		test: strings.TrimRight(firstNonEmpty(cfg.TestBaseURL, TestBaseURL), "/"),
		http: resilience.HTTPClient{
			Client:      &http.Client{Transport: otelhttp.NewTransport(transport)},
			Breaker:     breaker,
			Target:      settings.Target,
			Logger:      cfg.Logger,
			MaxAttempts: attempts,
			Jitter:      0.2,
			Timeout:     timeout,
		},
	}
}

// BaseURL returns the host used for the given environment.
func (c *Client) BaseURL(isLive bool) string {
	if isLive {
		return c.live
	}
	return c.test
}

// FindCustomers looks customers up by merchant identifier.
func (c *Client) FindCustomers(ctx context.Context, auth Auth, identifier string) ([]Customer, error) {
	q := url.Values{"identifier": {identifier}}
	var out envelope[[]Customer]
	if err := c.getJSON(ctx, auth, "/customer?"+q.Encode(), "Failed to fetch customer", &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// ListCards returns the saved cards of a customer.
func (c *Client) ListCards(ctx context.Context, auth Auth, customerID ID) ([]Card, error) {
	q := url.Values{"customerId": {customerID.String()}}
	var out envelope[[]Card]
	if err := c.getJSON(ctx, auth, "/card?"+q.Encode(), "Failed to fetch customer cards", &out); err != nil {
		return nil, err
	}
	if out.Data == nil {
		return []Card{}, nil
	}
	return out.Data, nil
}

// DeleteCard removes a saved card and returns the upstream response body as is.
func (c *Client) DeleteCard(ctx context.Context, auth Auth, cardID ID) (json.RawMessage, error) {
	body, err := c.do(ctx, auth, http.MethodDelete, "/card/"+url.PathEscape(cardID.String()), "Failed to delete card")
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("xmoney: delete card: response is not JSON")
	}
	return json.RawMessage(body), nil
}

func (c *Client) getJSON(ctx context.Context, auth Auth, path, fallback string, out any) error {
	body, err := c.do(ctx, auth, http.MethodGet, path, fallback)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("xmoney: decode %s: %w", strings.SplitN(path, "?", 2)[0], err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, auth Auth, method, path, fallback string) ([]byte, error) {
	if strings.TrimSpace(auth.APIKey) == "" {
		return nil, errors.New("xmoney: api key is required")
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL(auth.IsLive)+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+auth.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("xmoney: %s %s: %w", method, strings.SplitN(path, "?", 2)[0], err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("xmoney: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newUpstreamError(resp.StatusCode, body, fallback)
	}
	return body, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
