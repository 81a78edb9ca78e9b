package provider

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/cheese-llm-chess/internal/obslog"
)

// HeaderProvider injects per-request headers such as credentials.
type HeaderProvider func() map[string]string

type client struct {
	name    string
	baseURL string
	http    *fasthttp.Client
	headers HeaderProvider
	logger  *zap.Logger

	defaultTimeout time.Duration
	retryMax       int
}

type option func(*client)

func withTimeout(d time.Duration) option {
	return func(c *client) {
		if d > 0 {
			c.defaultTimeout = d
			c.http.ReadTimeout = d
			c.http.WriteTimeout = d
		}
	}
}

func withRetry(max int) option {
	return func(c *client) { c.retryMax = max }
}

func withHeaderProvider(h HeaderProvider) option {
	return func(c *client) { c.headers = h }
}

func withLogger(l *zap.Logger) option {
	return func(c *client) {
		if l != nil {
			c.logger = l
		}
	}
}

func newClient(name, baseURL string, opts ...option) *client {
	c := &client{
		name:           name,
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: DefaultTimeout, WriteTimeout: DefaultTimeout, MaxConnsPerHost: 4},
		logger:         obslog.L(),
		defaultTimeout: DefaultTimeout,
		retryMax:       1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type apiErrorBody struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// postJSON sends in as JSON and decodes a 2xx reply into out. Failures are *ProviderError.
// Network errors, 429 and 5xx are retried up to retryMax attempts with exponential backoff.
func (c *client) postJSON(ctx context.Context, path string, in any, out any) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(c.baseURL + path)
	req.Header.SetContentType("application/json")
	if c.headers != nil {
		for k, v := range c.headers() {
			if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
				req.Header.Set(k, v)
			}
		}
	}

	payload, err := json.Marshal(in)
	if err != nil {
		return &ProviderError{Provider: c.name, Kind: FailureRequest, Message: "marshal request", Err: err}
	}
	req.SetBody(payload)

	attempts := c.retryMax
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr *ProviderError
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return c.contextError(err)
		}
		resp.Reset()
		err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx))
		if err != nil {
			lastErr = c.transportError(ctx, err)
		} else if status := resp.StatusCode(); status < 200 || status >= 300 {
			lastErr = c.statusError(status, resp.Body())
		} else {
			if err := json.Unmarshal(resp.Body(), out); err != nil {
				return &ProviderError{Provider: c.name, Kind: FailureBadResponse, StatusCode: resp.StatusCode(), Message: "decode response", Err: err}
			}
			return nil
		}

		if attempt == attempts || !lastErr.Retryable() {
			return lastErr
		}
		c.logger.Warn("llm_request_retry",
			zap.String("provider", c.name),
			zap.Int("attempt", attempt),
			zap.String("kind", string(lastErr.Kind)),
			zap.Int("status", lastErr.StatusCode),
		)
		if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
			return c.contextError(sleepErr)
		}
	}
	return lastErr
}

func (c *client) transportError(ctx context.Context, err error) *ProviderError {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return c.contextError(ctxErr)
	}
	if errors.Is(err, fasthttp.ErrTimeout) || errors.Is(err, fasthttp.ErrDialTimeout) {
		return &ProviderError{Provider: c.name, Kind: FailureTimeout, Err: err}
	}
	return &ProviderError{Provider: c.name, Kind: FailureNetwork, Err: err}
}

func (c *client) contextError(err error) *ProviderError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &ProviderError{Provider: c.name, Kind: FailureTimeout, Err: err}
	}
	return &ProviderError{Provider: c.name, Kind: FailureCanceled, Err: err}
}

func (c *client) statusError(status int, body []byte) *ProviderError {
	pe := &ProviderError{Provider: c.name, Kind: kindForStatus(status), StatusCode: status}
	var parsed apiErrorBody
	if json.Unmarshal(body, &parsed) == nil && parsed.Error.Message != "" {
		pe.Message = parsed.Error.Message
		if parsed.Error.Type == "overloaded_error" {
			pe.Kind = FailureServer
		}
	} else {
		pe.Message = truncate(strings.TrimSpace(string(body)), 512)
	}
	return pe
}

func (c *client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	base := 100 * time.Millisecond
	return time.Duration(1<<uint(attempt-1)) * base // 100ms, 200ms ...
}
