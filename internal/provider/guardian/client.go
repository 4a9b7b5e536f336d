// Package guardian provides the keyword news search client backed by
// The Guardian content API.
package guardian

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/trogers1052/market-sync/internal/provider"
)

const (
	// DefaultBaseURL is the base URL for the content API.
	DefaultBaseURL = "https://content.guardianapis.com"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 15 * time.Second
)

// Client searches news articles by keyword.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     arbor.ILogger
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithTimeout sets the HTTP timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new search client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger: arbor.NewNoOpLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents a non-200 response from the content API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("guardian API error: %s (status: %d)", e.Message, e.StatusCode)
}

// Unwrap maps the HTTP status onto the provider error taxonomy.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusTooManyRequests:
		return provider.ErrRateLimited
	case http.StatusNotFound:
		return provider.ErrNotFound
	}
	return nil
}

type searchResponse struct {
	Response struct {
		Status  string `json:"status"`
		Results []struct {
			WebURL             string `json:"webUrl"`
			WebTitle           string `json:"webTitle"`
			WebPublicationDate string `json:"webPublicationDate"`
			Fields             struct {
				Headline  string `json:"headline"`
				TrailText string `json:"trailText"`
			} `json:"fields"`
		} `json:"results"`
	} `json:"response"`
}

// SearchNews returns the newest articles matching the quoted query.
func (c *Client) SearchNews(ctx context.Context, query string, count int) ([]provider.Article, error) {
	if c.apiKey == "" {
		c.logger.Warn().Msg("Guardian API key is missing, skipping news search")
		return nil, nil
	}

	params := url.Values{}
	params.Set("q", strconv.Quote(query))
	params.Set("api-key", c.apiKey)
	params.Set("format", "json")
	params.Set("show-fields", "headline,trailText")
	params.Set("order-by", "newest")
	params.Set("page-size", strconv.Itoa(count))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Str("query", query).Msg("Guardian search request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	articles := make([]provider.Article, 0, len(result.Response.Results))
	for _, r := range result.Response.Results {
		title := r.Fields.Headline
		if title == "" {
			title = r.WebTitle
		}
		articles = append(articles, provider.Article{
			Title:       title,
			Summary:     r.Fields.TrailText,
			URL:         r.WebURL,
			PublishedAt: r.WebPublicationDate,
		})
	}
	return articles, nil
}

// Ensure Client implements provider.NewsSearch
var _ provider.NewsSearch = (*Client)(nil)
