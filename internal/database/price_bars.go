package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/trogers1052/market-sync/internal/models"
)

const priceBarColumns = `
	id, company_id, date, open, high, low, close, volume,
	eps, pe_ratio, revenue, debt_to_equity, cash_flow, roi, created_at, updated_at`

// MaxPriceDate returns the latest bar date stored for a company.
// ok is false when the company has no bars.
func (db *DB) MaxPriceDate(ctx context.Context, companyID int) (time.Time, bool, error) {
	var latest sql.NullTime
	err := db.conn.QueryRowContext(ctx,
		`SELECT MAX(date) FROM price_bars WHERE company_id = $1`, companyID,
	).Scan(&latest)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to get max price date: %w", err)
	}
	if !latest.Valid {
		return time.Time{}, false, nil
	}
	return civilDate(latest.Time), true, nil
}

// GetPriceBars returns the latest bars of a company, newest first
func (db *DB) GetPriceBars(ctx context.Context, companyID, limit int) ([]*models.PriceBar, error) {
	query := `SELECT ` + priceBarColumns + `
		FROM price_bars
		WHERE company_id = $1
		ORDER BY date DESC
		LIMIT $2
	`
	return queryPriceBars(ctx, db.conn, query, companyID, limit)
}

// InsertPriceBar inserts bar unless a row exists for its (company, date).
// A conflicting row is left untouched and reported as false.
func (t *Tx) InsertPriceBar(ctx context.Context, bar *models.PriceBar) (bool, error) {
	query := `
		INSERT INTO price_bars (
			company_id, date, open, high, low, close, volume,
			eps, pe_ratio, revenue, debt_to_equity, cash_flow, roi, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)
		ON CONFLICT (company_id, date) DO NOTHING
		RETURNING id
	`
	now := time.Now()
	err := t.q.QueryRowContext(ctx, query,
		bar.CompanyID, civil(bar.Date), bar.Open, bar.High, bar.Low, bar.Close, bar.Volume,
		bar.EPS, bar.PERatio, bar.Revenue, bar.DebtToEquity, bar.CashFlow, bar.ROI, now,
	).Scan(&bar.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert price bar: %w", err)
	}
	bar.CreatedAt = now
	bar.UpdatedAt = now
	return true, nil
}

// ListPriceBars returns the bars of a company dated within [from, to], oldest first
func (t *Tx) ListPriceBars(ctx context.Context, companyID int, from, to time.Time) ([]*models.PriceBar, error) {
	query := `SELECT ` + priceBarColumns + `
		FROM price_bars
		WHERE company_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC
	`
	return queryPriceBars(ctx, t.q, query, companyID, civil(from), civil(to))
}

// FillDerived sets the derived columns of a bar that are null and have an
// incoming value. Reports whether the row changed.
func (t *Tx) FillDerived(ctx context.Context, barID int, d models.Derived) (bool, error) {
	query := `
		UPDATE price_bars SET
			eps = COALESCE(eps, $2),
			pe_ratio = COALESCE(pe_ratio, $3),
			revenue = COALESCE(revenue, $4),
			debt_to_equity = COALESCE(debt_to_equity, $5),
			cash_flow = COALESCE(cash_flow, $6),
			roi = COALESCE(roi, $7),
			updated_at = $8
		WHERE id = $1 AND (
			(eps IS NULL AND $2::numeric IS NOT NULL) OR
			(pe_ratio IS NULL AND $3::numeric IS NOT NULL) OR
			(revenue IS NULL AND $4::numeric IS NOT NULL) OR
			(debt_to_equity IS NULL AND $5::numeric IS NOT NULL) OR
			(cash_flow IS NULL AND $6::numeric IS NOT NULL) OR
			(roi IS NULL AND $7::numeric IS NOT NULL)
		)
	`
	result, err := t.q.ExecContext(ctx, query,
		barID, d.EPS, d.PERatio, d.Revenue, d.DebtToEquity, d.CashFlow, d.ROI, time.Now(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to fill derived fields: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

func queryPriceBars(ctx context.Context, q querier, query string, args ...interface{}) ([]*models.PriceBar, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query price bars: %w", err)
	}
	defer rows.Close()

	var bars []*models.PriceBar
	for rows.Next() {
		b := &models.PriceBar{}
		err := rows.Scan(
			&b.ID, &b.CompanyID, &b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume,
			&b.EPS, &b.PERatio, &b.Revenue, &b.DebtToEquity, &b.CashFlow, &b.ROI,
			&b.CreatedAt, &b.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price bar: %w", err)
		}
		b.Date = civilDate(b.Date)
		bars = append(bars, b)
	}
	return bars, rows.Err()
}
