// Package provider defines the external data sources the sync engine consumes.
// Concrete clients live in the subpackages; the engine only sees these interfaces.
package provider

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrRateLimited signals the provider refused the call because of request volume.
	// Callers may retry.
	ErrRateLimited = errors.New("provider rate limit exceeded")

	// ErrNotFound signals the provider has no data for the request.
	// Callers should treat it as an empty result.
	ErrNotFound = errors.New("provider has no data")
)

// BarsRequest selects the daily bars to fetch. From and To are inclusive
// calendar dates.
type BarsRequest struct {
	Symbol string
	From   time.Time
	To     time.Time
}

// RawBar is one daily row as delivered by the provider, before validation.
// Pointer fields are nil when the provider omitted the value.
type RawBar struct {
	Date   string
	Open   *float64
	High   *float64
	Low    *float64
	Close  *float64
	Volume *float64
}

// Statement maps a reporting date ("2006-01-02") to its line items.
// Line item values are raw JSON scalars: float64, string, or nil.
type Statement map[string]map[string]interface{}

// AnnualStatements groups the three yearly statements of a company
type AnnualStatements struct {
	Income       Statement
	BalanceSheet Statement
	CashFlow     Statement
}

// Article is a news article from either provider
type Article struct {
	Title       string
	Summary     string
	URL         string
	PublishedAt string
}

// Profile describes a company as the provider knows it
type Profile struct {
	Symbol   string
	Name     string
	Exchange string
	Industry string
}

// MarketData is the market-data provider consumed by the engine
type MarketData interface {
	GetDailyBars(ctx context.Context, req BarsRequest) ([]RawBar, error)
	GetAnnualStatements(ctx context.Context, symbol string) (*AnnualStatements, error)
	GetLatestNews(ctx context.Context, symbol string, count int) ([]Article, error)
	GetEntityProfile(ctx context.Context, symbol string) (*Profile, error)
}

// NewsSearch is the secondary news provider, searched by keyword
type NewsSearch interface {
	SearchNews(ctx context.Context, query string, count int) ([]Article, error)
}
