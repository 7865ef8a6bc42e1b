package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"pesaflow/internal/config"
)

var (
	// ErrPollExhausted means the attempt budget ran out without a
	// terminal status. The transaction must stay pending.
	ErrPollExhausted = errors.New("status polling exhausted without terminal status")
)

// Client talks to the mobile-money provider over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Config holds gateway connection settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// NewClient creates a gateway client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// NewClientFromEnv builds a client from GATEWAY_* environment variables.
func NewClientFromEnv() *Client {
	return NewClient(Config{
		BaseURL: config.GetEnv("GATEWAY_BASE_URL", "https://api.gateway.local"),
		APIKey:  config.GetEnv("GATEWAY_API_KEY", ""),
		Timeout: config.GetDurationEnv("GATEWAY_TIMEOUT", 30*time.Second),
	})
}

// Initiate starts a B2C money movement. Callers must not retry on
// error: the outcome is ambiguous and retrying risks a duplicate payout.
func (c *Client) Initiate(ctx context.Context, req InitiateRequest) (*Response, error) {
	body := map[string]interface{}{
		"phone_number": req.Phone,
		"amount":       req.Amount,
		"network":      req.Network,
		"reference":    req.Reference,
		"reason":       req.Reason,
	}
	return c.post(ctx, "/v1/payouts", body)
}

// CheckStatus fetches the current status of a gateway transaction.
func (c *Client) CheckStatus(ctx context.Context, id string) (*Response, error) {
	return c.get(ctx, "/v1/payouts/"+id)
}

// PollStatus calls CheckStatus until a terminal status or the attempt
// budget runs out. Per-attempt errors are logged and swallowed so one
// flaky check does not abort an otherwise-successful settlement; the
// caller's context cancels the wait at any point. No locks are held
// while waiting.
func (c *Client) PollStatus(ctx context.Context, id string, opts PollOptions) (*Response, error) {
	opts = opts.withDefaults()

	if err := sleep(ctx, opts.InitialDelay); err != nil {
		return nil, err
	}

	var last *Response
	for attempt := 1; attempt <= opts.Attempts; attempt++ {
		resp, err := c.CheckStatus(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Printf("gateway: status check %d/%d for %s failed: %v", attempt, opts.Attempts, id, err)
		} else {
			last = resp
			if resp.Terminal() {
				return resp, nil
			}
		}

		if attempt < opts.Attempts {
			if err := sleep(ctx, opts.Interval); err != nil {
				return nil, err
			}
		}
	}

	if last == nil {
		last = &Response{TransactionID: id, Status: StatusUnknown}
	}
	return last, ErrPollExhausted
}

func (c *Client) post(ctx context.Context, path string, body map[string]interface{}) (*Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("gateway: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("gateway: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	return c.do(req)
}

func (c *Client) get(ctx context.Context, path string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("gateway: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	return c.do(req)
}

func (c *Client) do(req *http.Request) (*Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway: request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gateway: read response: %w", err)
	}

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("gateway: server error %d: %s", resp.StatusCode, data)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("gateway: decode response: %w", err)
	}

	parsed := parseResponse(raw)
	if resp.StatusCode >= 400 {
		if parsed.Status == StatusUnknown {
			parsed.Status = StatusFailed
		}
		return parsed, fmt.Errorf("gateway: request rejected with %d", resp.StatusCode)
	}
	return parsed, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
