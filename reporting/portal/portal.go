// Package portal implements reporting.Client against the ReportPortal v1
// HTTP API.
//
// Every call is a single synchronous request. There are no retries: a
// failed call surfaces to the bridge as a *StatusError or a transport
// error.
package portal

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

	"github.com/pithecene-io/rpbridge/iox"
	"github.com/pithecene-io/rpbridge/reporting"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 4 << 10

// Config configures the ReportPortal client.
type Config struct {
	// Endpoint is the server base URL, e.g. https://rp.example.com (required).
	Endpoint string
	// Project is the ReportPortal project name (required).
	Project string
	// Token is the API token sent as a bearer credential (required).
	Token string
	// Timeout is the per-request timeout (default 30s).
	Timeout time.Duration
	// HTTPClient overrides the default client. Timeout is ignored when set.
	HTTPClient *http.Client
}

// Client speaks the ReportPortal v1 API.
type Client struct {
	base   string
	token  string
	client *http.Client
}

// New creates a ReportPortal client.
// Returns an error if endpoint, project or token is empty, or the endpoint
// is not an absolute URL.
func New(cfg Config) (*Client, error) {
	var missing []string
	if cfg.Endpoint == "" {
		missing = append(missing, "endpoint")
	}
	if cfg.Project == "" {
		missing = append(missing, "project")
	}
	if cfg.Token == "" {
		missing = append(missing, "token")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("portal client requires %s", strings.Join(missing, ", "))
	}

	u, err := url.Parse(cfg.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("portal endpoint %q is not an absolute URL", cfg.Endpoint)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		if cfg.Timeout <= 0 {
			cfg.Timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		base:   strings.TrimRight(cfg.Endpoint, "/") + "/api/v1/" + url.PathEscape(cfg.Project),
		token:  cfg.Token,
		client: hc,
	}, nil
}

// StatusError is returned for non-2xx HTTP responses.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("portal: unexpected status %d", e.Code)
	}
	return fmt.Sprintf("portal: unexpected status %d: %s", e.Code, e.Message)
}

// IsAlreadyFinished reports whether the status means the item was already
// finished. ReportPortal answers a repeated finish with 406 Not Acceptable;
// some deployments answer 409 Conflict.
func (e *StatusError) IsAlreadyFinished() bool {
	return e.Code == http.StatusNotAcceptable || e.Code == http.StatusConflict
}

// StartLaunch implements reporting.Client.
func (c *Client) StartLaunch(ctx context.Context, req *reporting.StartLaunchRequest) (string, error) {
	body := startLaunchRQ{
		Name:        req.Name,
		Description: req.Description,
		StartTime:   formatTime(req.StartTime),
		Mode:        string(req.Mode),
	}
	for _, a := range req.Attributes {
		body.Attributes = append(body.Attributes, attributeRQ{Key: a.Key, Value: a.Value})
	}

	var out entryCreatedRS
	if err := c.doJSON(ctx, http.MethodPost, "/launch", body, &out); err != nil {
		return "", fmt.Errorf("portal: start launch: %w", err)
	}
	return out.ID, nil
}

// FinishLaunch implements reporting.Client.
func (c *Client) FinishLaunch(ctx context.Context, launchID string, req *reporting.FinishLaunchRequest) error {
	body := finishLaunchRQ{EndTime: formatTime(req.EndTime)}
	if err := c.doJSON(ctx, http.MethodPut, "/launch/"+url.PathEscape(launchID)+"/finish", body, nil); err != nil {
		return fmt.Errorf("portal: finish launch: %w", err)
	}
	return nil
}

// StartItem implements reporting.Client.
func (c *Client) StartItem(ctx context.Context, launchID, parentID string, req *reporting.StartItemRequest) (string, error) {
	path := "/item"
	if parentID != "" {
		path += "/" + url.PathEscape(parentID)
	}
	body := startItemRQ{
		Name:       req.Name,
		Type:       string(req.Type),
		StartTime:  formatTime(req.StartTime),
		LaunchUUID: launchID,
	}

	var out entryCreatedRS
	if err := c.doJSON(ctx, http.MethodPost, path, body, &out); err != nil {
		return "", fmt.Errorf("portal: start item: %w", err)
	}
	return out.ID, nil
}

// FinishItem implements reporting.Client.
// A 406 or 409 response is reported as reporting.ErrAlreadyFinished.
func (c *Client) FinishItem(ctx context.Context, launchID, itemID string, req *reporting.FinishItemRequest) error {
	body := finishItemRQ{
		EndTime:    formatTime(req.EndTime),
		Status:     string(req.Status),
		LaunchUUID: launchID,
	}
	err := c.doJSON(ctx, http.MethodPut, "/item/"+url.PathEscape(itemID), body, nil)
	if err == nil {
		return nil
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.IsAlreadyFinished() {
		return fmt.Errorf("portal: finish item %s: %w: %w", itemID, reporting.ErrAlreadyFinished, statusErr)
	}
	return fmt.Errorf("portal: finish item: %w", err)
}

// AddLog implements reporting.Client.
// Entries with an attachment are sent as multipart/form-data.
func (c *Client) AddLog(ctx context.Context, launchID, itemID string, req *reporting.LogRequest) error {
	entry := saveLogRQ{
		LaunchUUID: launchID,
		ItemUUID:   itemID,
		Time:       formatTime(req.Time),
		Level:      levelName(req.Level),
		Message:    req.Message,
	}

	var err error
	if req.Attachment == nil {
		err = c.doJSON(ctx, http.MethodPost, "/log", entry, nil)
	} else {
		err = c.doMultipart(ctx, "/log", entry, req.Attachment)
	}
	if err != nil {
		return fmt.Errorf("portal: add log: %w", err)
	}
	return nil
}

// Sync implements reporting.Client. Every call is already acknowledged by
// the server when it returns, so there is nothing to flush.
func (c *Client) Sync(_ context.Context) error {
	return nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// doJSON sends body as JSON and decodes a 2xx response into out when out
// is non-nil.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	return c.do(ctx, method, path, "application/json", bytes.NewReader(payload), out)
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer iox.DrainClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode, Message: errorMessage(resp.Body)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorMessage extracts the message of a ReportPortal error body, falling
// back to the raw text.
func errorMessage(r io.Reader) string {
	raw := iox.Snippet(r, maxErrorBody)
	var rs errorRS
	if err := json.Unmarshal([]byte(raw), &rs); err == nil && rs.Message != "" {
		return rs.Message
	}
	return raw
}

// Verify Client implements reporting.Client.
var _ reporting.Client = (*Client)(nil)
