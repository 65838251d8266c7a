// Package livingapps is the record gateway to the Living Apps REST API.
//
// Every entity lives in its own app. Records are read and written as
// {"fields": {...}} documents; list responses are id-keyed maps that are
// flattened into slices before they leave this package.
package livingapps

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"buchhaltung/internal/core"
	"buchhaltung/internal/log"
	"buchhaltung/internal/records"
)

const (
	DefaultBaseURL = "https://my.living-apps.de/rest"

	defaultKostengruppenApp  = "698db1e550eb37f16846d889"
	defaultBelegbuchungenApp = "698db1eaa3041ca34d1f38c4"
	defaultUebergabenApp     = "698db1ead8a6024900573129"
	defaultSessionCookieName = "livingapps_session"
)

// AppIDs identifies the three apps backing the entity collections.
type AppIDs struct {
	CostGroups string
	Receipts   string
	Handovers  string
}

// DefaultAppIDs are the apps of the production workspace.
func DefaultAppIDs() AppIDs {
	return AppIDs{
		CostGroups: defaultKostengruppenApp,
		Receipts:   defaultBelegbuchungenApp,
		Handovers:  defaultUebergabenApp,
	}
}

// Config is everything the client needs; nothing is read from the
// environment here.
type Config struct {
	BaseURL string
	Apps    AppIDs
	// Session is the value of the session cookie of a logged-in browser.
	Session string
	// SessionCookieName defaults to "livingapps_session".
	SessionCookieName string
	// Token is sent as a bearer credential when set.
	Token      string
	HTTPClient *http.Client
}

type Client struct {
	baseURL    string
	apps       AppIDs
	session    string
	cookieName string
	token      string
	http       *http.Client
}

var _ records.Backend = (*Client)(nil)

// New validates cfg and returns a client. Empty fields fall back to the
// production defaults.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		return nil, fmt.Errorf("invalid base URL %q: must start with http:// or https://", cfg.BaseURL)
	}
	apps := cfg.Apps
	def := DefaultAppIDs()
	if apps.CostGroups == "" {
		apps.CostGroups = def.CostGroups
	}
	if apps.Receipts == "" {
		apps.Receipts = def.Receipts
	}
	if apps.Handovers == "" {
		apps.Handovers = def.Handovers
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	name := cfg.SessionCookieName
	if name == "" {
		name = defaultSessionCookieName
	}
	return &Client{
		baseURL:    base,
		apps:       apps,
		session:    cfg.Session,
		cookieName: name,
		token:      cfg.Token,
		http:       hc,
	}, nil
}

// BaseURL returns the REST root the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// Apps returns the configured app ids.
func (c *Client) Apps() AppIDs { return c.apps }

// CostGroupRef builds the reference URL a receipt stores for a cost group.
func (c *Client) CostGroupRef(id string) string {
	return core.RecordURL(c.baseURL, c.apps.CostGroups, id)
}

func (c *Client) recordsPath(appID string) string {
	return "/apps/" + appID + "/records"
}

func (c *Client) recordPath(appID, id string) string {
	return "/apps/" + appID + "/records/" + id
}

// call performs one request against the REST API. A non-2xx response turns
// into an *APIError carrying the raw body. When out is nil the body is
// discarded.
func (c *Client) call(ctx context.Context, method, endpoint string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, endpoint, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.session != "" {
		req.AddCookie(&http.Cookie{Name: c.cookieName, Value: c.session})
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s %s: %w", method, endpoint, err)
	}

	slog.DebugContext(ctx, "Living Apps call",
		log.FieldComponent, log.ComponentGateway,
		log.FieldMethod, method,
		log.FieldPath, endpoint,
		log.FieldStatusCode, resp.StatusCode,
		log.FieldDuration, time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Method:     method,
			Endpoint:   endpoint,
			Body:       string(raw),
		}
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, endpoint, err)
	}
	return nil
}

// APIError is a non-2xx answer of the REST API. Its message is the raw
// response body so callers can show exactly what the service said.
type APIError struct {
	StatusCode int
	Method     string
	Endpoint   string
	Body       string
}

func (e *APIError) Error() string {
	if msg := strings.TrimSpace(e.Body); msg != "" {
		return msg
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Endpoint, e.StatusCode, http.StatusText(e.StatusCode))
}

// IsNotFound reports whether err is a 404 from the REST API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
