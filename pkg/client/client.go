package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// maxResponseBytes bounds how much of a response body is read. Item records
// can carry image data URIs, so this is larger than a typical JSON reply.
const maxResponseBytes = 32 << 20

// Record is the content of an item as stored on the ledger.
type Record struct {
	ID           string `json:"id"`
	Kind         string `json:"kind"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Location     string `json:"location"`
	Date         string `json:"date"`
	ImageURL     string `json:"image_url,omitempty"`
	OwnerID      string `json:"owner_id"`
	OwnerContact string `json:"owner_contact"`
}

// Entry is one link of the ledger chain.
type Entry struct {
	Timestamp           int64  `json:"timestamp"`
	Record              Record `json:"record"`
	PreviousFingerprint string `json:"previous_fingerprint"`
	Fingerprint         string `json:"fingerprint"`
}

// Time returns the entry timestamp.
func (e Entry) Time() time.Time { return time.UnixMilli(e.Timestamp) }

// ItemRequest is the payload for ReportItem and EditItem.
type ItemRequest struct {
	ID          string `json:"id,omitempty"`
	Kind        string `json:"kind"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
	Date        string `json:"date,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`

	// ImagePath, when set, uploads the file as a multipart form instead of
	// sending ImageURL.
	ImagePath string `json:"-"`
}

// Session is the result of StartSession.
type Session struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	ExpiresIn int    `json:"expires_in"`
	OwnerID   string `json:"owner_id"`
}

// Verification is the integrity verdict returned by Verify.
type Verification struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
	Index *int   `json:"index,omitempty"`
}

// APIError is returned for every non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
	Field      string
}

func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("server returned %d: %s (field %s)", e.StatusCode, e.Message, e.Field)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsForbidden reports whether err is an APIError with status 403.
func IsForbidden(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusForbidden
}

// Client talks to a lostfound server.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	bearerToken string
	adminSecret string
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return errors.New("http client is nil")
		}
		c.httpClient = hc
		return nil
	}
}

// WithBearerToken attaches a session token to every request.
func WithBearerToken(token string) Option {
	return func(c *Client) error {
		c.bearerToken = token
		return nil
	}
}

// WithAdminSecret sets the X-Admin-Secret header used by Rechain.
func WithAdminSecret(secret string) Option {
	return func(c *Client) error {
		c.adminSecret = secret
		return nil
	}
}

// New creates a Client for the server at baseURL.
//
//	c, err := client.New("http://localhost:8080",
//	    client.WithBearerToken(token),
//	)
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", baseURL)
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// SetBearerToken replaces the session token, e.g. after StartSession.
func (c *Client) SetBearerToken(token string) { c.bearerToken = token }

// StartSession obtains a session token for ownerID. The client keeps using
// the new token for later calls.
func (c *Client) StartSession(ctx context.Context, ownerID, contact string) (*Session, error) {
	var s Session
	err := c.doJSON(ctx, http.MethodPost, "/api/v1/session", map[string]string{
		"owner_id":      ownerID,
		"owner_contact": contact,
	}, &s)
	if err != nil {
		return nil, err
	}
	c.bearerToken = s.Token
	return &s, nil
}

// ListItems returns every live item, oldest first.
func (c *Client) ListItems(ctx context.Context) ([]Entry, error) {
	var resp struct {
		Items []Entry `json:"items"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/items", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// ReportItem appends a new item.
func (c *Client) ReportItem(ctx context.Context, item ItemRequest) (*Entry, error) {
	return c.sendItem(ctx, http.MethodPost, "/api/v1/items", item)
}

// EditItem replaces the editable fields of item id.
func (c *Client) EditItem(ctx context.Context, id string, item ItemRequest) (*Entry, error) {
	return c.sendItem(ctx, http.MethodPut, "/api/v1/items/"+url.PathEscape(id), item)
}

// WithdrawItem removes item id.
func (c *Client) WithdrawItem(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/v1/items/"+url.PathEscape(id), nil, nil)
}

// Chain returns the full ledger, genesis first.
func (c *Client) Chain(ctx context.Context) ([]Entry, error) {
	var resp struct {
		Entries []Entry `json:"entries"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/ledger/entries", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

// Entry returns the ledger entry at position idx.
func (c *Client) Entry(ctx context.Context, idx int) (*Entry, error) {
	var e Entry
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/ledger/entries/"+strconv.Itoa(idx), nil, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Verify asks the server to check chain integrity. A broken chain is not an
// error; inspect Verification.Valid.
func (c *Client) Verify(ctx context.Context) (*Verification, error) {
	var v Verification
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/ledger/verify", nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Rechain re-links the chain and returns how many entries were rewritten.
// Requires WithAdminSecret.
func (c *Client) Rechain(ctx context.Context) (int, error) {
	var resp struct {
		Changed int `json:"changed"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/ledger/rechain", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Changed, nil
}

func (c *Client) sendItem(ctx context.Context, method, path string, item ItemRequest) (*Entry, error) {
	var e Entry
	if item.ImagePath == "" {
		if err := c.doJSON(ctx, method, path, item, &e); err != nil {
			return nil, err
		}
		return &e, nil
	}

	body, contentType, err := multipartItem(item)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if err := c.do(req, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func multipartItem(item ItemRequest) (io.Reader, string, error) {
	data, err := os.ReadFile(item.ImagePath)
	if err != nil {
		return nil, "", fmt.Errorf("read image: %w", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := [][2]string{
		{"id", item.ID},
		{"kind", item.Kind},
		{"title", item.Title},
		{"description", item.Description},
		{"location", item.Location},
		{"date", item.Date},
	}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("write form field: %w", err)
		}
	}
	fw, err := mw.CreateFormFile("image", filepath.Base(item.ImagePath))
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return nil, "", fmt.Errorf("write image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, reqBody, respBody any) error {
	var body io.Reader
	if reqBody != nil {
		payload, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, respBody)
}

// do executes req with the configured credentials and decodes a 2xx body
// into out when out is non-nil.
func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}
	if c.adminSecret != "" {
		req.Header.Set("X-Admin-Secret", c.adminSecret)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		var e struct {
			Error string `json:"error"`
			Field string `json:"field"`
		}
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			apiErr.Message = e.Error
			apiErr.Field = e.Field
		}
		return apiErr
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
