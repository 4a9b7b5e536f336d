// Package eodhd provides the market-data provider client backed by the EODHD API.
package eodhd

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
	"golang.org/x/time/rate"

	"github.com/trogers1052/market-sync/internal/provider"
)

const (
	// DefaultBaseURL is the base URL for the EODHD API.
	DefaultBaseURL = "https://eodhd.com/api"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the default rate limit (requests per second).
	DefaultRateLimit = 10

	dateLayout = "2006-01-02"
)

// Client is an EODHD API client implementing provider.MarketData.
type Client struct {
	baseURL    string
	apiKey     string
	exchange   string
	httpClient *http.Client
	logger     arbor.ILogger
	limiter    *rate.Limiter
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithExchange sets the exchange suffix appended to bare tickers ("AAPL" -> "AAPL.US").
func WithExchange(exchange string) ClientOption {
	return func(c *Client) {
		c.exchange = exchange
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
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

// WithRateLimit sets a custom rate limit.
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// NewClient creates a new EODHD API client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:  DefaultBaseURL,
		apiKey:   apiKey,
		exchange: "US",
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger:  arbor.NewNoOpLogger(),
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents a non-200 response from the EODHD API.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("EODHD API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
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

// symbol qualifies a bare ticker with the configured exchange.
func (c *Client) symbol(ticker string) string {
	if strings.Contains(ticker, ".") || c.exchange == "" {
		return ticker
	}
	return ticker + "." + c.exchange
}

// get performs a rate-limited GET request to the API.
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("api_token", c.apiKey)
	params.Set("fmt", "json")

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Str("url", c.baseURL+path).Msg("EODHD API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// eodBarResponse represents one row of the /eod endpoint.
type eodBarResponse struct {
	Date   string   `json:"date"`
	Open   *float64 `json:"open"`
	High   *float64 `json:"high"`
	Low    *float64 `json:"low"`
	Close  *float64 `json:"close"`
	Volume *float64 `json:"volume"`
}

// GetDailyBars retrieves daily bars between req.From and req.To inclusive.
func (c *Client) GetDailyBars(ctx context.Context, req provider.BarsRequest) ([]provider.RawBar, error) {
	params := url.Values{}
	params.Set("period", "d")
	params.Set("order", "a")
	if !req.From.IsZero() {
		params.Set("from", req.From.Format(dateLayout))
	}
	if !req.To.IsZero() {
		params.Set("to", req.To.Format(dateLayout))
	}

	var rows []eodBarResponse
	if err := c.get(ctx, "/eod/"+c.symbol(req.Symbol), params, &rows); err != nil {
		return nil, err
	}

	bars := make([]provider.RawBar, len(rows))
	for i, row := range rows {
		bars[i] = provider.RawBar{
			Date:   row.Date,
			Open:   row.Open,
			High:   row.High,
			Low:    row.Low,
			Close:  row.Close,
			Volume: row.Volume,
		}
	}
	return bars, nil
}

// fundamentalsResponse is the subset of /fundamentals used for statements.
type fundamentalsResponse struct {
	Financials *struct {
		BalanceSheet    *financialStatement `json:"Balance_Sheet"`
		CashFlow        *financialStatement `json:"Cash_Flow"`
		IncomeStatement *financialStatement `json:"Income_Statement"`
	} `json:"Financials"`
	Earnings struct {
		Annual map[string]struct {
			Date      string      `json:"date"`
			EPSActual interface{} `json:"epsActual"`
		} `json:"Annual"`
	} `json:"Earnings"`
}

type financialStatement struct {
	Currency string             `json:"currency_symbol"`
	Yearly   provider.Statement `json:"yearly"`
}

func (s *financialStatement) yearly() provider.Statement {
	out := provider.Statement{}
	if s == nil {
		return out
	}
	// Years reported as null carry no line items
	for date, items := range s.Yearly {
		if items != nil {
			out[date] = items
		}
	}
	return out
}

// GetAnnualStatements retrieves the yearly income, balance sheet and cash flow
// statements. Annual reported EPS is merged into the income statement as
// "epsActual" when the statement does not carry an EPS line.
func (c *Client) GetAnnualStatements(ctx context.Context, symbol string) (*provider.AnnualStatements, error) {
	var resp fundamentalsResponse
	if err := c.get(ctx, "/fundamentals/"+c.symbol(symbol), nil, &resp); err != nil {
		return nil, err
	}

	if resp.Financials == nil {
		return nil, fmt.Errorf("no financial statements for %s: %w", symbol, provider.ErrNotFound)
	}

	statements := &provider.AnnualStatements{
		Income:       resp.Financials.IncomeStatement.yearly(),
		BalanceSheet: resp.Financials.BalanceSheet.yearly(),
		CashFlow:     resp.Financials.CashFlow.yearly(),
	}

	for _, entry := range resp.Earnings.Annual {
		items, ok := statements.Income[entry.Date]
		if !ok || items == nil || entry.EPSActual == nil {
			continue
		}
		if _, exists := items["epsActual"]; !exists {
			items["epsActual"] = entry.EPSActual
		}
	}

	return statements, nil
}

type newsResponse struct {
	Date    string `json:"date"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Link    string `json:"link"`
}

// GetLatestNews retrieves up to count recent articles for a symbol.
func (c *Client) GetLatestNews(ctx context.Context, symbol string, count int) ([]provider.Article, error) {
	params := url.Values{}
	params.Set("s", c.symbol(symbol))
	params.Set("limit", strconv.Itoa(count))

	var items []newsResponse
	if err := c.get(ctx, "/news", params, &items); err != nil {
		return nil, err
	}

	if len(items) > count && count > 0 {
		items = items[:count]
	}

	articles := make([]provider.Article, len(items))
	for i, item := range items {
		articles[i] = provider.Article{
			Title:       item.Title,
			Summary:     item.Content,
			URL:         item.Link,
			PublishedAt: item.Date,
		}
	}
	return articles, nil
}

type generalResponse struct {
	Code     string `json:"Code"`
	Name     string `json:"Name"`
	Exchange string `json:"Exchange"`
	Industry string `json:"Industry"`
}

// GetEntityProfile retrieves the company name, exchange and industry.
func (c *Client) GetEntityProfile(ctx context.Context, symbol string) (*provider.Profile, error) {
	params := url.Values{}
	params.Set("filter", "General")

	var general generalResponse
	if err := c.get(ctx, "/fundamentals/"+c.symbol(symbol), params, &general); err != nil {
		return nil, err
	}

	if general.Name == "" {
		return nil, fmt.Errorf("no profile for %s: %w", symbol, provider.ErrNotFound)
	}

	return &provider.Profile{
		Symbol:   symbol,
		Name:     general.Name,
		Exchange: general.Exchange,
		Industry: general.Industry,
	}, nil
}

// Ensure Client implements provider.MarketData
var _ provider.MarketData = (*Client)(nil)
