package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/trogers1052/market-sync/internal/models"
)

// NewsLinks returns the set of links already stored for a company
func (db *DB) NewsLinks(ctx context.Context, companyID int) (map[string]struct{}, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT link FROM news_items WHERE company_id = $1`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query news links: %w", err)
	}
	defer rows.Close()

	links := make(map[string]struct{})
	for rows.Next() {
		var link string
		if err := rows.Scan(&link); err != nil {
			return nil, fmt.Errorf("failed to scan news link: %w", err)
		}
		links[link] = struct{}{}
	}
	return links, rows.Err()
}

// GetNewsByCompany returns the latest stored articles of a company, newest first
func (db *DB) GetNewsByCompany(ctx context.Context, companyID, limit int) ([]*models.NewsItem, error) {
	query := `
		SELECT id, company_id, title, link, published_at, summary, category, created_at
		FROM news_items
		WHERE company_id = $1
		ORDER BY published_at DESC, id DESC
		LIMIT $2
	`
	rows, err := db.conn.QueryContext(ctx, query, companyID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query news: %w", err)
	}
	defer rows.Close()

	var items []*models.NewsItem
	for rows.Next() {
		n := &models.NewsItem{}
		err := rows.Scan(&n.ID, &n.CompanyID, &n.Title, &n.Link, &n.PublishedAt, &n.Summary, &n.Category, &n.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan news item: %w", err)
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

// InsertNewsItem inserts an article unless its link is already stored for the company
func (t *Tx) InsertNewsItem(ctx context.Context, item *models.NewsItem) (bool, error) {
	query := `
		INSERT INTO news_items (company_id, title, link, published_at, summary, category, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (company_id, link) DO NOTHING
		RETURNING id
	`
	now := time.Now()
	err := t.q.QueryRowContext(ctx, query,
		item.CompanyID, item.Title, item.Link, item.PublishedAt, item.Summary, item.Category, now,
	).Scan(&item.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert news item: %w", err)
	}
	item.CreatedAt = now
	return true, nil
}
