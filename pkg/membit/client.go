package membit

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"membitnode/pkg/errors"
	"membitnode/pkg/logger"
	"membitnode/pkg/retry"
)

// Client talks to the Membit rewards API on behalf of one account. Every
// request carries the account's bearer token and rides the node's transport,
// so proxied nodes stay proxied for rewards traffic too.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	accessToken string
	logger      logger.Logger
	retryCfg    *retry.Config
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL. Tests point this at httptest
// servers.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithTransport routes the client through the given transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.httpClient.Transport = rt }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithRetry enables retrying of read-only requests.
func WithRetry(cfg *retry.Config) Option {
	return func(c *Client) { c.retryCfg = cfg }
}

// NewClient creates a rewards API client.
func NewClient(accessToken string, log logger.Logger, opts ...Option) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	c := &Client{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		baseURL:     DefaultBaseURL,
		accessToken: accessToken,
		logger:      log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Whoami fetches the authenticated account's identity and points.
func (c *Client) Whoami(ctx context.Context) (*Whoami, error) {
	var out Whoami
	if err := c.getJSON(ctx, EndpointWhoami, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchNextEpoch polls the epoch/points endpoint.
func (c *Client) FetchNextEpoch(ctx context.Context) (*NextEpoch, error) {
	var out NextEpoch
	err := c.withRetry(func() error {
		return c.postJSON(ctx, EndpointNextEpoch, nil, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateUploadURL requests a signed upload slot for an image.
func (c *Client) GenerateUploadURL(ctx context.Context, req *UploadSlotRequest) (*UploadSlot, error) {
	var out UploadSlot
	if err := c.postJSON(ctx, EndpointGenerateUploadURL, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitPost submits one post. Never retried: a retry after an ambiguous
// failure could double-submit, and the pipeline treats failures as
// skip-and-continue anyway.
func (c *Client) SubmitPost(ctx context.Context, payload *PostPayload) (*SubmitReceipt, error) {
	var out SubmitReceipt
	if err := c.postJSON(ctx, EndpointSubmitPost, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitEngagements submits engagement counters for an accepted post.
func (c *Client) SubmitEngagements(ctx context.Context, payload *EngagementsPayload) error {
	return c.postJSON(ctx, EndpointSubmitEngagements, payload, nil)
}

func (c *Client) withRetry(op retry.Operation) error {
	if c.retryCfg == nil {
		return op()
	}
	return retry.Do(op, c.retryCfg)
}

func (c *Client) getJSON(ctx context.Context, endpoint string, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return errors.New(errors.ErrorTypeUnknown, 0, "failed to create request: %v", err)
	}
	return c.do(req, target)
}

func (c *Client) postJSON(ctx context.Context, endpoint string, body, target interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.New(errors.ErrorTypeUnknown, 0, "failed to encode request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, reader)
	if err != nil {
		return errors.New(errors.ErrorTypeUnknown, 0, "failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, target)
}

func (c *Client) do(req *http.Request, target interface{}) error {
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.ErrorWithFields("rewards API request failed", map[string]interface{}{
			"method": req.Method,
			"path":   req.URL.Path,
			"error":  err.Error(),
		})
		return errors.New(errors.ErrorTypeNetwork, 0, "network error: %v", err)
	}
	defer resp.Body.Close()

	c.logger.DebugWithFields("rewards API request completed", map[string]interface{}{
		"method":   req.Method,
		"path":     req.URL.Path,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	})

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.New(errors.ErrorTypeNetwork, resp.StatusCode, "failed to read response body: %v", err)
	}

	if err := checkStatus(resp.StatusCode, body); err != nil {
		return err
	}

	if target == nil {
		return nil
	}
	if err := json.Unmarshal(body, target); err != nil {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		c.logger.ErrorWithFields("failed to parse rewards API response", map[string]interface{}{
			"path":         req.URL.Path,
			"status":       resp.StatusCode,
			"body_preview": preview,
		})
		return errors.New(errors.ErrorTypeParsing, resp.StatusCode, "failed to parse JSON: %v", err)
	}
	return nil
}

// checkStatus maps HTTP status codes onto the error taxonomy. The response
// body is included for 4xx responses because the API explains rejections
// (duplicate, irrelevant, invalid) there.
func checkStatus(code int, body []byte) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return errors.New(errors.ErrorTypeAuth, code, "authentication failed")
	case code == http.StatusNotFound:
		return errors.New(errors.ErrorTypeNotFound, code, "resource not found")
	case code == http.StatusTooManyRequests:
		return errors.New(errors.ErrorTypeRateLimit, code, "rate limit exceeded")
	case code >= 500:
		return errors.New(errors.ErrorTypeServerError, code, "server error")
	default:
		detail := string(body)
		if len(detail) > 300 {
			detail = detail[:300] + "..."
		}
		return errors.New(errors.ErrorTypeUnknown, code, "unexpected status %d: %s", code, detail)
	}
}
