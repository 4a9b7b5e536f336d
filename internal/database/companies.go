package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/trogers1052/market-sync/internal/models"
)

const companyColumns = `id, ticker, name, exchange, industry, created_at, updated_at`

// CreateCompany inserts a company. When the ticker already exists the stored
// row is kept and c receives its ID and timestamps.
func (db *DB) CreateCompany(ctx context.Context, c *models.Company) error {
	query := `
		INSERT INTO companies (ticker, name, exchange, industry, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (ticker) DO UPDATE SET ticker = EXCLUDED.ticker
		RETURNING id, created_at, updated_at
	`
	err := db.conn.QueryRowContext(ctx, query,
		c.Ticker, c.Name, c.Exchange, c.Industry, time.Now(),
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create company: %w", err)
	}
	return nil
}

// GetCompanyByTicker returns the company for ticker, or ErrNotFound
func (db *DB) GetCompanyByTicker(ctx context.Context, ticker string) (*models.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies WHERE ticker = $1`
	c, err := scanCompany(db.conn.QueryRowContext(ctx, query, ticker))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("company %s: %w", ticker, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return c, nil
}

// FindCompanyByTicker is GetCompanyByTicker returning nil for unknown tickers
func (db *DB) FindCompanyByTicker(ctx context.Context, ticker string) (*models.Company, error) {
	c, err := db.GetCompanyByTicker(ctx, ticker)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return c, err
}

// ListCompanies returns every company ordered by ticker
func (db *DB) ListCompanies(ctx context.Context) ([]*models.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies ORDER BY ticker`
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	defer rows.Close()

	var companies []*models.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}
		companies = append(companies, c)
	}
	return companies, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCompany(row rowScanner) (*models.Company, error) {
	c := &models.Company{}
	err := row.Scan(&c.ID, &c.Ticker, &c.Name, &c.Exchange, &c.Industry, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}
