package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"notepush.app/notepush/core/config"
)

const (
	defaultBaseURL = "https://api.github.com"
	apiVersion     = "2022-11-28"

	// requestTimeout bounds each Contents API call. The webhook sender
	// expects an acknowledgement promptly, so calls can't hang forever.
	requestTimeout = 10 * time.Second
)

// Document is the result of fetching a note by path. SHA is the opaque
// version token the Contents API requires as a precondition on update; it
// changes on every write and is never cached across deliveries.
type Document struct {
	Exists  bool
	SHA     string
	Content string
}

// APIError is a non-success Contents API response. The numeric status is
// kept so callers detect conflicts by field comparison instead of matching
// error-message substrings.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github api: status %d: %s", e.StatusCode, e.Body)
}

// IsConflict reports whether the write was rejected because the supplied
// SHA no longer matches the file's current revision. The Contents API
// signals this as 409; 422 covers stale-sha validation rejections.
func (e *APIError) IsConflict() bool {
	return e.StatusCode == http.StatusConflict ||
		e.StatusCode == http.StatusUnprocessableEntity
}

// NoteStore is the remote document surface the orchestrator appends through.
type NoteStore interface {
	Fetch(ctx context.Context, path string) (Document, error)
	Write(ctx context.Context, path, content, sha, message string) error
}

// Client talks to the GitHub Contents API for a single owner/repo/branch.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	owner      string
	repo       string
	branch     string
}

type Option func(*Client)

// WithBaseURL overrides the API base URL. Used in tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func NewClient(cfg config.StoreConfig, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    defaultBaseURL,
		token:      cfg.Token,
		owner:      cfg.Owner,
		repo:       cfg.Repo,
		branch:     cfg.Branch,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type contentsResponse struct {
	SHA     string `json:"sha"`
	Content string `json:"content"`
}

type contentsRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch"`
	SHA     string `json:"sha,omitempty"`
}

// Fetch retrieves the note at path on the configured branch. A 404 is not
// an error: it returns Document{Exists: false} so the caller can create the
// file. Any other non-2xx response becomes an *APIError.
func (c *Client) Fetch(ctx context.Context, path string) (Document, error) {
	endpoint := c.contentsURL(path) + "?ref=" + url.QueryEscape(c.branch)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Document{}, fmt.Errorf("building fetch request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Document{}, fmt.Errorf("fetching %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Document{Exists: false}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return Document{}, readAPIError(resp)
	}

	var payload contentsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Document{}, fmt.Errorf("decoding contents response: %w", err)
	}

	content, err := decodeContent(payload.Content)
	if err != nil {
		return Document{}, fmt.Errorf("decoding %s content: %w", path, err)
	}

	return Document{Exists: true, SHA: payload.SHA, Content: content}, nil
}

// Write creates or updates the note at path. Pass the SHA from the
// preceding Fetch to update; pass "" to create. A stale SHA comes back as
// an *APIError whose IsConflict is true.
func (c *Client) Write(ctx context.Context, path, content, sha, message string) error {
	body, err := json.Marshal(contentsRequest{
		Message: message,
		Content: base64.StdEncoding.EncodeToString([]byte(content)),
		Branch:  c.branch,
		SHA:     sha,
	})
	if err != nil {
		return fmt.Errorf("encoding contents request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.contentsURL(path), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building write request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return readAPIError(resp)
	}
	return nil
}

func (c *Client) contentsURL(path string) string {
	escaped := url.PathEscape(path)
	// Keep path separators readable in commit URLs.
	escaped = strings.ReplaceAll(escaped, "%2F", "/")
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s", c.baseURL, c.owner, c.repo, escaped)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
}

func readAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8*1024))
	return &APIError{
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}

// decodeContent handles the Contents API's line-wrapped base64 encoding.
func decodeContent(encoded string) (string, error) {
	cleaned := strings.ReplaceAll(encoded, "\n", "")
	raw, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
