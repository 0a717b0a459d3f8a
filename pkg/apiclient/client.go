// Package apiclient talks to the external storefront API.
package apiclient

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

	"github.com/sony/gobreaker/v2"

	"github.com/angelmondragon/storefront-checkout/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

const maxBodyBytes = 1 << 20

// TokenSource resolves and revokes the bearer token persisted for a session.
// ClearToken drops the stored token only while it still equals token.
type TokenSource interface {
	Token(ctx context.Context, sessionKey string) (string, error)
	ClearToken(ctx context.Context, sessionKey, token string) error
}

// Request describes one JSON call against the external API.
type Request struct {
	Method     string
	Path       string
	SessionKey string
	Body       any
}

type response struct {
	status int
	body   []byte
}

// StatusError carries a 5xx reply; those are the replies that trip the breaker.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("external api returned %d", e.Status)
}

// Client sends JSON requests with the session's bearer token. A 401 reply
// clears the token. Nothing is retried.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	breaker   *gobreaker.CircuitBreaker[response]
	tokens    TokenSource
	loginPath string
	logg      *logger.Logger
}

// New builds a client from config. tokens may be nil for anonymous calls.
func New(cfg config.ExternalAPIConfig, tokens TokenSource, loginPath string, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("external api base url required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse external api url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("external api url %q must be absolute", cfg.BaseURL)
	}
	if logg == nil {
		logg = logger.Nop()
	}
	if loginPath == "" {
		loginPath = "/login"
	}
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	breaker := gobreaker.NewCircuitBreaker[response](gobreaker.Settings{
		Name:        "external-api",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logg.Warn(logg.WithFields(context.Background(), map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}), "apiclient.breaker_state_changed")
		},
	})
	return &Client{
		baseURL:   base,
		http:      &http.Client{Timeout: cfg.Timeout},
		breaker:   breaker,
		tokens:    tokens,
		loginPath: loginPath,
		logg:      logg,
	}, nil
}

// Do sends req and decodes a 2xx JSON reply into out when out is non-nil.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return err
	}

	resp, err := c.breaker.Execute(func() (response, error) {
		return c.send(httpReq)
	})
	if err != nil {
		return c.transportError(ctx, err)
	}

	switch {
	case resp.status == http.StatusUnauthorized:
		c.revoke(ctx, req.SessionKey, strings.TrimPrefix(httpReq.Header.Get("Authorization"), "Bearer "))
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "session expired").WithDetails(map[string]string{
			"redirect": c.loginPath,
		})
	case resp.status < 200 || resp.status >= 300:
		return rejected(resp)
	}

	if out == nil || len(bytes.TrimSpace(resp.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode external api response")
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	target := c.baseURL.String() + "/" + strings.TrimLeft(req.Path, "/")

	var body io.Reader
	if req.Body != nil {
		raw, err := json.Marshal(req.Body)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode external api request")
		}
		body = bytes.NewReader(raw)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build external api request")
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil && req.SessionKey != "" {
		token, err := c.tokens.Token(ctx, req.SessionKey)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load session token")
		}
		if token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return httpReq, nil
}

func (c *Client) send(req *http.Request) (response, error) {
	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return response{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return response{}, fmt.Errorf("read external api response: %w", err)
	}
	c.logg.Debug(c.logg.WithFields(req.Context(), map[string]any{
		"method":      req.Method,
		"path":        req.URL.Path,
		"status":      resp.StatusCode,
		"duration_ms": time.Since(started).Milliseconds(),
	}), "apiclient.response")

	out := response{status: resp.StatusCode, body: body}
	if resp.StatusCode >= http.StatusInternalServerError {
		return out, &StatusError{Status: resp.StatusCode, Body: string(body)}
	}
	return out, nil
}

func (c *Client) transportError(ctx context.Context, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "external api unavailable").WithDetails(map[string]string{
			"breaker": c.breaker.State().String(),
		})
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return pkgerrors.Wrap(pkgerrors.CodeCanceled, ctxErr, "external api call canceled")
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "external api failed").WithDetails(map[string]any{
			"status": statusErr.Status,
		})
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "external api unreachable")
}

func (c *Client) revoke(ctx context.Context, sessionKey, token string) {
	if c.tokens == nil || sessionKey == "" || token == "" {
		return
	}
	if err := c.tokens.ClearToken(context.WithoutCancel(ctx), sessionKey, token); err != nil {
		c.logg.Error(c.logg.WithSessionID(ctx, sessionKey), "apiclient.clear_token_failed", err)
	}
}

var codeByStatus = map[int]pkgerrors.Code{
	http.StatusBadRequest:          pkgerrors.CodeValidation,
	http.StatusUnprocessableEntity: pkgerrors.CodeValidation,
	http.StatusForbidden:           pkgerrors.CodeForbidden,
	http.StatusNotFound:            pkgerrors.CodeNotFound,
	http.StatusConflict:            pkgerrors.CodeConflict,
	http.StatusTooManyRequests:     pkgerrors.CodeRateLimit,
}

func rejected(resp response) error {
	code, ok := codeByStatus[resp.status]
	if !ok {
		code = pkgerrors.CodeDependency
	}
	details := map[string]any{"status": resp.status}
	if msg := upstreamMessage(resp.body); msg != "" {
		details["upstream"] = msg
	}
	return pkgerrors.New(code, fmt.Sprintf("external api rejected request with status %d", resp.status)).WithDetails(details)
}

// upstreamMessage pulls a human message out of common error bodies.
func upstreamMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Error.Message != "" {
		return payload.Error.Message
	}
	return payload.Message
}
