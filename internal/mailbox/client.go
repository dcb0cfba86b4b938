package mailbox

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Source defines the read operations ingestion needs from the remote
// mailbox API.
type Source interface {
	ListThreads(ctx context.Context, query, pageToken string) (*ThreadPage, error)
	GetThread(ctx context.Context, id string) (*Thread, error)
	GetAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error)
}

// Client provides paginated read access to a mailbox-style HTTP API.
type Client struct {
	baseURL        string
	tokens         TokenProvider
	pageSize       int
	httpClient     *http.Client
	downloadClient *http.Client
}

var _ Source = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithDownloadClient overrides the client used for attachment byte
// fetches, which carry a longer timeout than metadata calls.
func WithDownloadClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.downloadClient = client
		}
	}
}

// WithPageSize overrides the listing page size.
func WithPageSize(size int) Option {
	return func(c *Client) {
		if size > 0 {
			c.pageSize = size
		}
	}
}

// New creates a mailbox API client.
func New(baseURL string, tokens TokenProvider, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("mailbox base url required")
	}
	if tokens == nil {
		return nil, errors.New("mailbox token provider required")
	}
	client := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		tokens:         tokens,
		pageSize:       50,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		downloadClient: &http.Client{Timeout: 2 * time.Minute},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// ListThreads returns one page of thread summaries matching the query.
func (c *Client) ListThreads(ctx context.Context, query, pageToken string) (*ThreadPage, error) {
	endpoint, err := url.Parse(c.baseURL + "/threads")
	if err != nil {
		return nil, fmt.Errorf("parse mailbox url: %w", err)
	}
	params := url.Values{}
	if query != "" {
		params.Set("q", query)
	}
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}
	params.Set("maxResults", strconv.Itoa(c.pageSize))
	endpoint.RawQuery = params.Encode()

	var page ThreadPage
	if err := c.getJSON(ctx, c.httpClient, endpoint.String(), &page); err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	return &page, nil
}

// GetThread fetches one thread with every message in source order.
func (c *Client) GetThread(ctx context.Context, id string) (*Thread, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("thread id required")
	}
	endpoint := fmt.Sprintf("%s/threads/%s?format=full", c.baseURL, url.PathEscape(id))

	var thread Thread
	if err := c.getJSON(ctx, c.httpClient, endpoint, &thread); err != nil {
		return nil, fmt.Errorf("get thread %s: %w", id, err)
	}
	return &thread, nil
}

// GetAttachment fetches and decodes one attachment's bytes.
func (c *Client) GetAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error) {
	if strings.TrimSpace(messageID) == "" || strings.TrimSpace(attachmentID) == "" {
		return nil, errors.New("message id and attachment id required")
	}
	endpoint := fmt.Sprintf(
		"%s/messages/%s/attachments/%s",
		c.baseURL,
		url.PathEscape(messageID),
		url.PathEscape(attachmentID),
	)

	var payload attachmentPayload
	if err := c.getJSON(ctx, c.downloadClient, endpoint, &payload); err != nil {
		return nil, fmt.Errorf("get attachment %s: %w", attachmentID, err)
	}

	data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(payload.Data, "="))
	if err != nil {
		return nil, fmt.Errorf("decode attachment %s: %w", attachmentID, err)
	}
	return data, nil
}

func (c *Client) getJSON(ctx context.Context, client *http.Client, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("acquire token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	requestStart := time.Now()
	resp, err := client.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return classifyStatus(resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
