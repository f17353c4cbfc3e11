package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bnema/rigpilot/internal/adapters/remote/wire"
	"github.com/bnema/rigpilot/internal/domain"
	"github.com/bnema/rigpilot/internal/ports"
)

const (
	maxResponseBytes      = 4 << 20
	defaultRequestTimeout = 10 * time.Second
	userAgent             = "rigpilot"
)

// Client talks to the game server over JSON/HTTP.
type Client struct {
	BaseURL        string
	Token          string
	HTTPClient     *http.Client
	RequestTimeout time.Duration
}

var _ ports.RemoteAPI = (*Client)(nil)

func NewClient(baseURL, token string, timeout time.Duration) (*Client, error) {
	if _, err := buildAPIURL(baseURL, wire.SnapshotPath); err != nil {
		return nil, err
	}

	return &Client{
		BaseURL:        baseURL,
		Token:          token,
		RequestTimeout: timeout,
	}, nil
}

func (c *Client) FetchSnapshot(ctx context.Context) (domain.Snapshot, error) {
	var payload wire.Snapshot
	if err := c.do(ctx, http.MethodGet, wire.SnapshotPath, &payload); err != nil {
		return domain.Snapshot{}, fmt.Errorf("fetch snapshot: %w", err)
	}
	return payload.Domain(), nil
}

func (c *Client) PerformAction(ctx context.Context, rigID domain.RigID, kind domain.ActionKind) (domain.RigUpdate, error) {
	path := strings.NewReplacer(
		"{id}", url.PathEscape(string(rigID)),
		"{kind}", url.PathEscape(string(kind)),
	).Replace(wire.ActionPath)

	var payload wire.ActionResult
	if err := c.do(ctx, http.MethodPost, path, &payload); err != nil {
		return domain.RigUpdate{}, fmt.Errorf("%s %s: %w", kind, rigID, err)
	}
	return payload.Domain(rigID), nil
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	endpoint, err := buildAPIURL(c.BaseURL, path)
	if err != nil {
		return err
	}

	requestCtx, cancel := c.requestContext(ctx)
	defer cancel()
	req, err := http.NewRequestWithContext(requestCtx, method, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return &domain.ActionError{Kind: domain.ErrorKindTransient, Detail: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return decodeError(resp)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return &domain.ActionError{Kind: domain.ErrorKindTransient, Detail: fmt.Sprintf("decode response: %v", err)}
	}
	return nil
}

// decodeError turns a failed response into an ActionError. The body's kind
// wins; without one the status code decides.
func decodeError(resp *http.Response) *domain.ActionError {
	var body wire.ErrorBody
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err := json.Unmarshal(raw, &body); err != nil || body.Error.Kind == "" {
		actionErr := &domain.ActionError{
			Kind:   wire.KindForStatus(resp.StatusCode),
			Detail: fmt.Sprintf("status %d", resp.StatusCode),
		}
		if body.Error.Detail != "" {
			actionErr.Detail = body.Error.Detail
		}
		actionErr.RetryAfter = retryAfterHeader(resp.Header.Get("Retry-After"))
		return actionErr
	}

	actionErr := body.Error.Domain()
	if actionErr.RetryAfter == 0 {
		actionErr.RetryAfter = retryAfterHeader(resp.Header.Get("Retry-After"))
	}
	return actionErr
}

func retryAfterHeader(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	seconds, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}

	requestTimeout := c.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}

	return context.WithTimeout(ctx, requestTimeout)
}

func buildAPIURL(baseURL string, path string) (string, error) {
	if baseURL == "" {
		return "", errors.New("api base url is required")
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse api base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", errors.New("api base url must use http or https")
	}
	if parsed.Host == "" {
		return "", errors.New("api base url host is required")
	}

	return strings.TrimRight(parsed.String(), "/") + path, nil
}
