package ingest

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/trogers1052/market-sync/internal/models"
)

// Fill is a planned update of the null derived fields of a stored bar
type Fill struct {
	Bar    *models.PriceBar
	Values models.Derived
}

// Reconciler merges fetched and derived data into the store without
// duplicating rows or overwriting values already present.
type Reconciler struct {
	logger arbor.ILogger
}

// NewReconciler creates a Reconciler
func NewReconciler(logger arbor.ILogger) *Reconciler {
	return &Reconciler{logger: logger}
}

// UpsertBars inserts the bars with no stored row for their (company, date).
// Existing rows are left untouched. Returns the number of rows inserted.
func (r *Reconciler) UpsertBars(ctx context.Context, tx TxStore, bars []*models.PriceBar) (int, error) {
	inserted := 0
	for _, bar := range bars {
		ok, err := tx.InsertPriceBar(ctx, bar)
		if err != nil {
			return inserted, fmt.Errorf("failed to insert price bar %s: %w", bar.Date.Format(DateLayout), err)
		}
		if ok {
			inserted++
		} else {
			r.logger.Debug().
				Int("company_id", bar.CompanyID).
				Str("date", bar.Date.Format(DateLayout)).
				Msg("Price bar already stored")
		}
	}
	return inserted, nil
}

// FillFundamentals sets each null derived field of the targeted bars whose
// incoming value is present. Returns the number of rows changed.
func (r *Reconciler) FillFundamentals(ctx context.Context, tx TxStore, fills []Fill) (int, error) {
	filled := 0
	for _, f := range fills {
		if !f.Bar.Derived.Fillable(f.Values) {
			continue
		}
		ok, err := tx.FillDerived(ctx, f.Bar.ID, f.Values)
		if err != nil {
			return filled, fmt.Errorf("failed to fill fundamentals for %s: %w", f.Bar.Date.Format(DateLayout), err)
		}
		if ok {
			f.Bar.Derived = f.Bar.Derived.FillFrom(f.Values)
			filled++
		}
	}
	return filled, nil
}
