package backend

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

	pkgerrors "github.com/0x360x36/miauhome.cl/pkg/errors"
	"github.com/0x360x36/miauhome.cl/pkg/logger"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultTimeout              = 10 * time.Second
	defaultBreakerFailures      = 5
	defaultBreakerOpenTimeout   = 30 * time.Second
	errorBodyReadLimit    int64 = 1024
	bodyReadLimit         int64 = 4 << 20
)

var errBaseURLRequired = errors.New("store backend base url is required")

// Observer receives per-request latency samples.
type Observer interface {
	ObserveBackend(endpoint string, duration time.Duration, err error)
}

// Client talks to the miauhome REST backend.
type Client struct {
	httpClient      *http.Client
	baseURL         string
	timeout         time.Duration
	breakerFailures uint32
	breakerTimeout  time.Duration
	breaker         *gobreaker.CircuitBreaker[*rawResponse]
	observer        Observer
	logg            *logger.Logger
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout bounds each request.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithBreaker tunes the circuit breaker guarding the backend.
func WithBreaker(maxFailures uint32, openTimeout time.Duration) Option {
	return func(c *Client) {
		if maxFailures > 0 {
			c.breakerFailures = maxFailures
		}
		if openTimeout > 0 {
			c.breakerTimeout = openTimeout
		}
	}
}

// WithObserver records request latencies.
func WithObserver(observer Observer) Option {
	return func(c *Client) {
		c.observer = observer
	}
}

// WithLogger logs breaker state transitions.
func WithLogger(logg *logger.Logger) Option {
	return func(c *Client) {
		c.logg = logg
	}
}

// NewClient builds the backend client for baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return nil, fmt.Errorf("invalid store backend base url: %w", err)
	}

	client := &Client{
		baseURL:         trimmed,
		timeout:         defaultTimeout,
		breakerFailures: defaultBreakerFailures,
		breakerTimeout:  defaultBreakerOpenTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}

	client.breaker = gobreaker.NewCircuitBreaker[*rawResponse](gobreaker.Settings{
		Name:    "store-backend",
		Timeout: client.breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= client.breakerFailures
		},
		IsSuccessful: func(err error) bool {
			return !pkgerrors.HasCode(err, pkgerrors.CodeTransport)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if client.logg == nil {
				return
			}
			ctx := client.logg.WithFields(context.Background(), map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
			client.logg.Warn(ctx, "store backend breaker state changed")
		},
	})

	return client, nil
}

type rawResponse struct {
	status int
	body   []byte
}

type request struct {
	endpoint string
	method   string
	path     string
	query    url.Values
	token    string
	payload  any
}

func (c *Client) do(ctx context.Context, req request) (*rawResponse, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeTransport, "store backend client not configured")
	}

	start := time.Now()
	resp, err := c.breaker.Execute(func() (*rawResponse, error) {
		return c.roundTrip(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = pkgerrors.Wrap(pkgerrors.CodeTransport, err, "store backend unavailable")
	}
	if c.observer != nil {
		c.observer.ObserveBackend(req.endpoint, time.Since(start), err)
	}
	return resp, err
}

func (c *Client) roundTrip(ctx context.Context, req request) (*rawResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if req.payload != nil {
		payload, err := json.Marshal(req.payload)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal "+req.endpoint+" request")
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.buildURL(req.path, req.query), body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build "+req.endpoint+" request")
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeTransport, err, "execute "+req.endpoint+" request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		return nil, statusError(req.endpoint, resp.StatusCode, msg)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, bodyReadLimit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeTransport, err, "read "+req.endpoint+" response")
	}
	return &rawResponse{status: resp.StatusCode, body: data}, nil
}

// statusError maps a non-2xx backend answer onto a typed error. FastAPI style
// {"detail": "..."} bodies become the message when present.
func statusError(endpoint string, status int, body []byte) error {
	detail := strings.TrimSpace(string(body))
	var parsed struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if s, ok := parsed.Detail.(string); ok && s != "" {
			detail = s
		}
	}
	cause := fmt.Errorf("status %d: %s", status, detail)

	switch {
	case status == http.StatusUnauthorized:
		return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, cause, "session expired, please sign in again")
	case status == http.StatusForbidden:
		return pkgerrors.Wrap(pkgerrors.CodeForbidden, cause, nonEmpty(detail, endpoint+" not permitted"))
	case status == http.StatusNotFound:
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, cause, nonEmpty(detail, endpoint+" not found"))
	case status == http.StatusConflict:
		return pkgerrors.Wrap(pkgerrors.CodeConflict, cause, nonEmpty(detail, endpoint+" conflict"))
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return pkgerrors.Wrap(pkgerrors.CodeValidation, cause, nonEmpty(detail, endpoint+" rejected"))
	default:
		return pkgerrors.Wrap(pkgerrors.CodeTransport, cause, endpoint+" request failed")
	}
}

func decode(what string, resp *rawResponse, dest any) error {
	if err := json.Unmarshal(resp.body, dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeParse, err, "decode "+what+" response")
	}
	return nil
}

func (c *Client) buildURL(path string, query url.Values) string {
	u := fmt.Sprintf("%s/%s", c.baseURL, strings.TrimLeft(path, "/"))
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func nonEmpty(v, fallback string) string {
	if len(v) > 200 || strings.HasPrefix(v, "{") || v == "" {
		return fallback
	}
	return v
}

// Ready reports whether the breaker currently lets requests through.
func (c *Client) Ready(context.Context) error {
	if c == nil || c.breaker == nil {
		return errors.New("store backend client not configured")
	}
	if c.breaker.State() == gobreaker.StateOpen {
		return errors.New("store backend breaker is open")
	}
	return nil
}
