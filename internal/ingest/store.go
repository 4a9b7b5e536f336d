package ingest

import (
	"context"
	"time"

	"github.com/trogers1052/market-sync/internal/models"
)

// Store is the persistent store the engine reads and writes
type Store interface {
	CursorStore

	ListCompanies(ctx context.Context) ([]*models.Company, error)
	// FindCompanyByTicker returns nil without error when the ticker is unknown
	FindCompanyByTicker(ctx context.Context, ticker string) (*models.Company, error)
	CreateCompany(ctx context.Context, c *models.Company) error
	NewsLinks(ctx context.Context, companyID int) (map[string]struct{}, error)

	// InTx runs fn in one transaction, committed only when fn returns nil
	InTx(ctx context.Context, fn func(tx TxStore) error) error
}

// TxStore holds the writes performed inside a per-company transaction.
// Inserts report false, without error, when the row already exists.
type TxStore interface {
	InsertPriceBar(ctx context.Context, bar *models.PriceBar) (bool, error)
	ListPriceBars(ctx context.Context, companyID int, from, to time.Time) ([]*models.PriceBar, error)
	FillDerived(ctx context.Context, barID int, d models.Derived) (bool, error)
	InsertNewsItem(ctx context.Context, item *models.NewsItem) (bool, error)
}
