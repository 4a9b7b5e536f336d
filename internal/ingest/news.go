package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/trogers1052/market-sync/internal/models"
	"github.com/trogers1052/market-sync/internal/provider"
)

// News presentation defaults
const (
	IndustryTitlePrefix = "[INDUSTRY] "
	DefaultSummary      = "No description available."
)

var publishedLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC1123Z,
	time.RFC1123,
	DateLayout,
}

// NewsDeduplicator stores articles once per (company, link)
type NewsDeduplicator struct {
	store  Store
	loc    *time.Location
	now    func() time.Time
	logger arbor.ILogger
}

// NewNewsDeduplicator creates a NewsDeduplicator normalizing timestamps to loc
func NewNewsDeduplicator(store Store, loc *time.Location, now func() time.Time, logger arbor.ILogger) *NewsDeduplicator {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &NewsDeduplicator{store: store, loc: loc, now: now, logger: logger}
}

// Store inserts the articles whose link is not yet stored for the company,
// in one transaction. Returns the number of new items.
func (d *NewsDeduplicator) Store(ctx context.Context, company *models.Company, articles []provider.Article, category string) (int, error) {
	if len(articles) == 0 {
		return 0, nil
	}

	known, err := d.store.NewsLinks(ctx, company.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to load stored news links: %w", err)
	}

	var items []*models.NewsItem
	for _, a := range articles {
		link := strings.TrimSpace(a.URL)
		if link == "" {
			d.logger.Warn().Str("ticker", company.Ticker).Str("title", a.Title).Msg("Skipping article without link")
			continue
		}
		if _, ok := known[link]; ok {
			continue
		}
		known[link] = struct{}{}
		items = append(items, d.item(company, a, link, category))
	}

	if len(items) == 0 {
		return 0, nil
	}

	inserted := 0
	err = d.store.InTx(ctx, func(tx TxStore) error {
		inserted = 0
		for _, item := range items {
			ok, err := tx.InsertNewsItem(ctx, item)
			if err != nil {
				return fmt.Errorf("failed to insert news item %s: %w", item.Link, err)
			}
			if ok {
				inserted++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func (d *NewsDeduplicator) item(company *models.Company, a provider.Article, link, category string) *models.NewsItem {
	title := strings.TrimSpace(a.Title)
	if category == models.NewsCategoryIndustry {
		title = IndustryTitlePrefix + title
	}
	summary := strings.TrimSpace(a.Summary)
	if summary == "" {
		summary = DefaultSummary
	}
	return &models.NewsItem{
		CompanyID:   company.ID,
		Title:       title,
		Link:        link,
		PublishedAt: d.published(a.PublishedAt),
		Summary:     summary,
		Category:    category,
	}
}

// published parses an article timestamp into the reference location. Values
// without a zone are taken as UTC; absent or unparseable values become now.
func (d *NewsDeduplicator) published(value string) time.Time {
	value = strings.TrimSpace(value)
	if value != "" {
		for _, layout := range publishedLayouts {
			if t, err := time.Parse(layout, value); err == nil {
				return t.In(d.loc)
			}
		}
		d.logger.Debug().Str("published_at", value).Msg("Unparseable article timestamp, using current time")
	}
	return d.now().In(d.loc)
}
