// Package telegram implements a thin Telegram Bot API transport: JSON-encoded
// method calls over HTTPS, rate-limit retries, and an optional circuit breaker.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flemzord/tgplug/internal/metrics"
)

// DefaultBaseURL is the public Bot API endpoint.
const DefaultBaseURL = "https://api.telegram.org"

const (
	maxRetries       = 3
	initialBackoff   = time.Second
	maxResponseBytes = 10 << 20 // 10 MiB
	maxLoggedBody    = 512

	tracerName = "github.com/flemzord/tgplug/internal/telegram"
)

// Client sends Bot API methods for one bot token.
type Client struct {
	token   string
	baseURL string
	http    *http.Client
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	breaker *gobreaker.CircuitBreaker[json.RawMessage]
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the HTTP timeout of a single request. It must exceed the
// long-poll timeout used with getUpdates.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics records API call counters on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithTracerProvider sets the provider spans are created from. By default
// the global provider is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) { c.tracer = tp.Tracer(tracerName) }
}

// BreakerSettings tunes the circuit breaker wrapped around every call.
type BreakerSettings struct {
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	MinRequests  uint32
	FailureRatio float64
}

// WithBreaker wraps calls in a circuit breaker that opens once the failure
// ratio over at least MinRequests calls reaches FailureRatio.
func WithBreaker(s BreakerSettings) Option {
	return func(c *Client) {
		c.breaker = gobreaker.NewCircuitBreaker[json.RawMessage](gobreaker.Settings{
			Name:        "telegram",
			MaxRequests: s.MaxRequests,
			Interval:    s.Interval,
			Timeout:     s.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				if counts.Requests < s.MinRequests {
					return false
				}
				return float64(counts.TotalFailures)/float64(counts.Requests) >= s.FailureRatio
			},
			IsSuccessful: isBreakerSuccess,
			OnStateChange: func(name string, from, to gobreaker.State) {
				c.logger.Warn("telegram: circuit breaker state changed",
					"name", name,
					"from", from.String(),
					"to", to.String(),
				)
			},
		})
	}
}

// NewClient creates a Bot API client. An empty baseURL selects DefaultBaseURL.
func NewClient(token, baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		token:   token,
		baseURL: baseURL,
		http:    &http.Client{Timeout: 120 * time.Second},
		logger:  slog.Default(),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send performs m and returns the raw "result" field of a successful reply.
// Failed calls return a *RequestError. 429 replies are retried up to three
// attempts, honoring retry_after.
func (c *Client) Send(ctx context.Context, m Method) (json.RawMessage, error) {
	name := m.MethodName()
	ctx, span := c.tracer.Start(ctx, "telegram."+name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("telegram.method", name)),
	)
	defer span.End()

	payload, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("telegram: marshal %s request: %w", name, err)
	}

	result, err := c.sendWithRetry(ctx, name, payload)
	c.metrics.RecordAPICall(name, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return result, nil
}

// Call performs m and decodes its result into T.
func Call[T any](ctx context.Context, c *Client, m Method) (*T, error) {
	raw, err := c.Send(ctx, m)
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("telegram: decode %s result: %w", m.MethodName(), err)
	}
	return &v, nil
}

func (c *Client) sendWithRetry(ctx context.Context, name string, payload []byte) (json.RawMessage, error) {
	backoff := initialBackoff

	for attempt := range maxRetries {
		result, err := c.execute(ctx, name, payload)

		var reqErr *RequestError
		if err == nil || attempt == maxRetries-1 ||
			!errors.As(err, &reqErr) || reqErr.StatusCode != http.StatusTooManyRequests {
			return result, err
		}

		if reqErr.RetryAfter > 0 {
			backoff = time.Duration(reqErr.RetryAfter) * time.Second
		}
		c.logger.Warn("telegram: rate limited", "method", name, "retry_in", backoff)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, &RequestError{Method: name, Err: ctx.Err()}
		case <-timer.C:
		}
		backoff *= 2
	}

	// Unreachable under normal flow, but satisfy the compiler.
	return nil, fmt.Errorf("telegram: %s: max retries exceeded", name)
}

func (c *Client) execute(ctx context.Context, name string, payload []byte) (json.RawMessage, error) {
	if c.breaker == nil {
		return c.roundTrip(ctx, name, payload)
	}
	result, err := c.breaker.Execute(func() (json.RawMessage, error) {
		return c.roundTrip(ctx, name, payload)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &RequestError{Method: name, Err: err}
	}
	return result, err
}

func (c *Client) roundTrip(ctx context.Context, name string, payload []byte) (json.RawMessage, error) {
	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, name)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &RequestError{Method: name, Err: stripURL(err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &RequestError{Method: name, Err: stripURL(err)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	_ = resp.Body.Close()
	if err != nil {
		return nil, &RequestError{Method: name, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	c.logger.Debug("telegram: response",
		"method", name,
		"status", resp.StatusCode,
		"body", truncate(body, maxLoggedBody),
	)

	var apiResp rawResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, &RequestError{
			Method:      name,
			StatusCode:  resp.StatusCode,
			Description: http.StatusText(resp.StatusCode),
			Err:         fmt.Errorf("decode response: %w", err),
		}
	}

	if !apiResp.OK {
		reqErr := &RequestError{
			Method:      name,
			StatusCode:  apiResp.ErrorCode,
			Description: apiResp.Description,
		}
		if reqErr.StatusCode == 0 {
			reqErr.StatusCode = resp.StatusCode
		}
		if apiResp.Parameters != nil {
			reqErr.RetryAfter = apiResp.Parameters.RetryAfter
		}
		return nil, reqErr
	}

	return apiResp.Result, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// GetMe returns the bot's user information.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	return Call[User](ctx, c, GetMe{})
}

// GetUpdates fetches incoming updates using long polling.
func (c *Client) GetUpdates(ctx context.Context, req GetUpdates) ([]Update, error) {
	result, err := Call[[]Update](ctx, c, req)
	if err != nil {
		return nil, err
	}
	return *result, nil
}

// DeleteWebhook removes the current webhook integration.
func (c *Client) DeleteWebhook(ctx context.Context) error {
	_, err := c.Send(ctx, DeleteWebhook{})
	return err
}

// SendMessage sends a text message to the specified chat.
func (c *Client) SendMessage(ctx context.Context, req SendMessage) (*Message, error) {
	return Call[Message](ctx, c, req)
}
