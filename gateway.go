package trustkit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Gateway executes calls against the identity service. It owns bearer-token
// attachment and transport retry policy; the coordinator only sees decoded
// responses or taxonomy errors.
//
// out may be nil when the response body is not needed.
type Gateway interface {
	Get(ctx context.Context, path string, out any) error
	Post(ctx context.Context, path string, body, out any) error
	Put(ctx context.Context, path string, body, out any) error
	Delete(ctx context.Context, path string, body, out any) error
}

// TokenSource supplies the bearer token for outgoing requests. Token refresh
// is the source's concern; a returned error fails the request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource returning a fixed token. Intended for examples
// and tests.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }

// finalError marks a failure local to the client (token acquisition, request
// encoding, response decoding) that retrying the request cannot fix.
type finalError struct{ err error }

func (e *finalError) Error() string { return e.err.Error() }
func (e *finalError) Unwrap() error { return e.err }

// HTTPGateway is the production Gateway backed by net/http.
type HTTPGateway struct {
	baseURL string
	tokens  TokenSource
	client  *http.Client

	maxAttempts int
	retryDelay  time.Duration
}

// HTTPGatewayConfig contains options for NewHTTPGateway.
type HTTPGatewayConfig struct {
	// BaseURL is the identity service root, e.g. "https://auth.example.com/auth".
	BaseURL string

	// Tokens supplies bearer tokens. Required.
	Tokens TokenSource

	// Client is the underlying HTTP client. Default: 15s timeout client.
	Client *http.Client

	// MaxAttempts bounds transport retries per request. Default: 3.
	MaxAttempts int

	// RetryDelay is the pause between attempts. Default: 500ms.
	RetryDelay time.Duration
}

// NewHTTPGateway creates a Gateway for the identity service.
func NewHTTPGateway(cfg HTTPGatewayConfig) (*HTTPGateway, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("trustkit: gateway base URL is required")
	}
	if cfg.Tokens == nil {
		return nil, fmt.Errorf("trustkit: gateway token source is required")
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 500 * time.Millisecond
	}

	return &HTTPGateway{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		tokens:      cfg.Tokens,
		client:      client,
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
	}, nil
}

func (g *HTTPGateway) Get(ctx context.Context, path string, out any) error {
	return g.do(ctx, http.MethodGet, path, nil, out)
}

func (g *HTTPGateway) Post(ctx context.Context, path string, body, out any) error {
	return g.do(ctx, http.MethodPost, path, body, out)
}

func (g *HTTPGateway) Put(ctx context.Context, path string, body, out any) error {
	return g.do(ctx, http.MethodPut, path, body, out)
}

func (g *HTTPGateway) Delete(ctx context.Context, path string, body, out any) error {
	return g.do(ctx, http.MethodDelete, path, body, out)
}

// do runs one request with bounded retries. Only transport failures and 5xx
// responses are retried; 4xx responses are final and mapped to APIError.
func (g *HTTPGateway) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return &finalError{fmt.Errorf("trustkit: failed to encode request body: %w", err)}
		}
	}

	var lastErr error
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(g.retryDelay):
			}
		}

		err := g.once(ctx, method, path, payload, out)
		if err == nil {
			return nil
		}
		if !IsTransport(err) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func (g *HTTPGateway) once(ctx context.Context, method, path string, payload []byte, out any) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return &finalError{fmt.Errorf("trustkit: failed to build request: %w", err)}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := g.tokens.Token(ctx)
	if err != nil {
		return &finalError{fmt.Errorf("trustkit: failed to obtain token: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("trustkit: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &finalError{fmt.Errorf("trustkit: failed to decode response: %w", err)}
	}
	return nil
}

// decodeAPIError maps a non-2xx response to an APIError, picking up the
// service's error envelope when present.
func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}

	var envelope struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&envelope); err == nil {
		apiErr.Code = envelope.Code
		apiErr.Message = envelope.Message
		if apiErr.Message == "" {
			apiErr.Message = envelope.Error
		}
	}
	return apiErr
}
