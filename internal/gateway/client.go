// Package gateway talks to the spreadsheet backend (an Apps Script web
// app). Everything past this package sees typed results; transport
// problems come back wrapped in apperror.ErrNetwork and unreadable bodies
// in apperror.ErrMalformedResponse.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"anoa.com/classboard/internal/entity"
	"anoa.com/classboard/internal/metrics"
	"anoa.com/classboard/pkg/apperror"
)

const maxBodyBytes = 32 << 20

const (
	ListStyleAction = "action"
	ListStyleLegacy = "legacy"
)

// LoginResult is the backend's answer to action=login.
type LoginResult struct {
	Success bool       `json:"success"`
	Name    flexString `json:"name"`
	Role    flexString `json:"role"`
	Status  flexString `json:"status"`
	Code    flexString `json:"code"`
	Error   flexString `json:"error"`
}

// SignupResult is the backend's answer to action=signup.
type SignupResult struct {
	Success bool       `json:"success"`
	Code    flexString `json:"code"`
	Error   flexString `json:"error"`
}

// Image is a base64 encoded gallery upload.
type Image struct {
	MimeType string
	Data     string
}

type Submission struct {
	Category entity.Category
	Title    string
	Body     string
	Author   string
	Image    *Image
}

// Client calls the remote content gateway.
type Client struct {
	BaseURL   string
	ListStyle string
	HTTP      *http.Client
	Now       func() time.Time
}

// New creates a client with configurable timeout.
func New(baseURL, listStyle string, timeout time.Duration) *Client {
	if listStyle == "" {
		listStyle = ListStyleAction
	}
	return &Client{
		BaseURL:   baseURL,
		ListStyle: listStyle,
		HTTP:      &http.Client{Timeout: timeout},
		Now:       time.Now,
	}
}

func (c *Client) Login(ctx context.Context, id, pw string) (res *LoginResult, err error) {
	defer observe("login", &err)

	res = &LoginResult{}
	err = c.getJSON(ctx, url.Values{"action": {"login"}, "id": {id}, "pw": {pw}}, res)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) Signup(ctx context.Context, id, pw, name string) (res *SignupResult, err error) {
	defer observe("signup", &err)

	res = &SignupResult{}
	err = c.getJSON(ctx, url.Values{"action": {"signup"}, "id": {id}, "pw": {pw}, "name": {name}}, res)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// List fetches the full current list of a board, newest first as the
// backend returns it.
func (c *Client) List(ctx context.Context, category entity.Category) (items []entity.BoardItem, err error) {
	defer observe("list", &err)

	params := url.Values{"action": {"list"}, "category": {category.ListParam()}}
	if c.ListStyle == ListStyleLegacy {
		params = url.Values{"type": {category.LegacyType()}}
	}

	body, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}
	rows, err := decodeList(body)
	if err != nil {
		return nil, err
	}

	items = make([]entity.BoardItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toItem(category, c.now()))
	}
	return items, nil
}

// Submit posts a new item. The response body is never read: several
// deployments answer with an opaque cross-origin redirect.
func (c *Client) Submit(ctx context.Context, sub Submission) (err error) {
	defer observe("submit", &err)

	payload := map[string]string{
		"Action":   "write",
		"Title":    sub.Title,
		"Content":  sub.Body,
		"Author":   sub.Author,
		"Type":     sub.Category.LegacyType(),
		"Category": sub.Category.ListParam(),
	}
	if sub.Image != nil {
		payload["Image"] = sub.Image.Data
		payload["MimeType"] = sub.Image.MimeType
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	// text/plain keeps Apps Script from demanding a CORS preflight.
	req.Header.Set("Content-Type", "text/plain;charset=utf-8")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("gateway submit: %w (%w)", apperror.ErrNetwork, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))

	if resp.StatusCode >= 300 {
		return fmt.Errorf("gateway submit: %w: status %s", apperror.ErrNetwork, resp.Status)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, params url.Values, out any) error {
	body, err := c.get(ctx, params)
	if err != nil {
		return err
	}
	if err := decodeJSON(body, out); err != nil {
		return err
	}
	return nil
}

func (c *Client) get(ctx context.Context, params url.Values) ([]byte, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid gateway url: %w", err)
	}
	q := u.Query()
	for k, vs := range params {
		q[k] = vs
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request: %w (%w)", apperror.ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("gateway read: %w (%w)", apperror.ErrNetwork, err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("gateway error %s: %w", resp.Status, apperror.ErrNetwork)
	}
	return body, nil
}

func (c *Client) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func observe(action string, err *error) {
	metrics.GatewayRequests.WithLabelValues(action, metrics.Outcome(*err)).Inc()
}

// decodeJSON rejects the HTML error pages the backend sometimes serves
// with a 200 status.
func decodeJSON(body []byte, out any) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] == '<' {
		return fmt.Errorf("%w: expected JSON, got %q", apperror.ErrMalformedResponse, preview(trimmed))
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return fmt.Errorf("%w: %v", apperror.ErrMalformedResponse, err)
	}
	return nil
}

func preview(b []byte) string {
	s := string(b)
	if len(s) > 60 {
		s = s[:60] + "..."
	}
	return strings.ReplaceAll(s, "\n", " ")
}
