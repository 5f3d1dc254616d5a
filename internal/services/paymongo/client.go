package paymongo

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"event-marketplace/internal/status"
	"event-marketplace/monitoring"
	"event-marketplace/utils"
	"fmt"
	"io"
	"net/http"
	"time"
)

type Config struct {
	// SecretKey is the server-side secret key. Requests authenticate with
	// HTTP Basic auth as base64(secretKey + ":").
	SecretKey string `json:"secretKey" mapstructure:"secret_key"`

	// WebhookSecret signs inbound webhook payloads. Empty means webhook
	// signature verification is skipped (local development).
	WebhookSecret string `json:"webhookSecret" mapstructure:"webhook_secret"`

	BaseURL string        `json:"baseUrl" mapstructure:"base_url"`
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// Client is a thin request/response wrapper around the PayMongo REST API.
// It carries no retry logic of its own; re-invocation from webhook
// redelivery or client polling is the retry mechanism.
type Client struct {
	baseURL       string
	authHeader    string
	webhookSecret string

	hc      *http.Client
	breaker *utils.CircuitBreaker
}

func NewClient(cfg *Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:       cfg.BaseURL,
		authHeader:    "Basic " + base64.StdEncoding.EncodeToString([]byte(cfg.SecretKey+":")),
		webhookSecret: cfg.WebhookSecret,
		hc:            &http.Client{Timeout: timeout},
		breaker:       utils.NewCircuitBreaker("paymongo"),
	}
}

// APIError carries the provider's error detail for a non-2xx response.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paymongo: status %d: %s", e.StatusCode, e.Detail)
}

// request performs a single authenticated call and decodes the reply
// envelope into out. Transport failures and timeouts come back wrapped as
// status.ErrGatewayUnavailable so callers can fall back to local state.
func (c *Client) request(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("paymongoRequest: json.Marshal: %w", err)
		}
		body = bytes.NewBuffer(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("paymongoRequest: http.NewRequestWithContext: %w", err)
	}
	req.Header.Set("Authorization", c.authHeader)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	reply, err := c.breaker.Execute(ctx, func() (interface{}, error) {
		resp, err := c.hc.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", status.ErrGatewayUnavailable, err)
		}
		defer resp.Body.Close()

		rbody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: read body: %v", status.ErrGatewayUnavailable, err)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &APIError{StatusCode: resp.StatusCode, Detail: errorDetail(rbody, resp.Status)}
		}

		return rbody, nil
	})
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	monitoring.ObserveGatewayRequest(method, outcome, time.Since(start))
	if err != nil {
		// An open breaker means the provider is effectively down; callers
		// treat it like any other transport failure.
		if errors.Is(err, utils.ErrCircuitOpen) || errors.Is(err, utils.ErrTooManyRequests) {
			err = fmt.Errorf("%w: %v", status.ErrGatewayUnavailable, err)
		}
		return fmt.Errorf("paymongoRequest: %s %s: %w", method, path, err)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(reply.([]byte), out); err != nil {
		return fmt.Errorf("paymongoRequest: json.Unmarshal: %w", err)
	}
	return nil
}

// errorDetail pulls errors[0].detail out of a provider error body,
// falling back to the HTTP status line.
func errorDetail(body []byte, fallback string) string {
	var reply struct {
		Errors []struct {
			Code   string `json:"code"`
			Detail string `json:"detail"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &reply); err == nil && len(reply.Errors) > 0 && reply.Errors[0].Detail != "" {
		return reply.Errors[0].Detail
	}
	return fallback
}
