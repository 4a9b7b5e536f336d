package ingest

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trogers1052/market-sync/internal/models"
	"github.com/trogers1052/market-sync/internal/provider"
)

// DateLayout is the civil date format used across providers and storage
const DateLayout = "2006-01-02"

// ErrMalformedRow marks a provider row that was rejected during normalization
var ErrMalformedRow = errors.New("malformed row")

// ParseDate parses a civil date, accepting a trailing time component, and
// returns it as midnight UTC.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if len(value) > len(DateLayout) {
		value = value[:len(DateLayout)]
	}
	d, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, err
	}
	return d, nil
}

// CivilDate truncates t to its calendar date in t's own location and returns
// that date as midnight UTC.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NormalizeBars validates raw rows and converts them into price bars sorted
// by date. Rows that fail validation are skipped; each one is reported as an
// error wrapping ErrMalformedRow. A date seen twice keeps its first row.
func NormalizeBars(companyID int, rows []provider.RawBar) ([]*models.PriceBar, []error) {
	var (
		bars    []*models.PriceBar
		rejects []error
	)
	seen := make(map[time.Time]struct{}, len(rows))

	for i, row := range rows {
		bar, err := normalizeBar(companyID, row)
		if err != nil {
			rejects = append(rejects, fmt.Errorf("row %d (%s): %w: %v", i, row.Date, ErrMalformedRow, err))
			continue
		}
		if _, dup := seen[bar.Date]; dup {
			rejects = append(rejects, fmt.Errorf("row %d (%s): %w: duplicate date", i, row.Date, ErrMalformedRow))
			continue
		}
		seen[bar.Date] = struct{}{}
		bars = append(bars, bar)
	}

	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Date.Before(bars[j].Date)
	})
	return bars, rejects
}

func normalizeBar(companyID int, row provider.RawBar) (*models.PriceBar, error) {
	date, err := ParseDate(row.Date)
	if err != nil {
		return nil, fmt.Errorf("invalid date: %w", err)
	}

	open, err := price("open", row.Open)
	if err != nil {
		return nil, err
	}
	high, err := price("high", row.High)
	if err != nil {
		return nil, err
	}
	low, err := price("low", row.Low)
	if err != nil {
		return nil, err
	}
	closePrice, err := price("close", row.Close)
	if err != nil {
		return nil, err
	}
	if high.LessThan(low) {
		return nil, fmt.Errorf("high %s below low %s", high, low)
	}

	if row.Volume == nil {
		return nil, errors.New("missing volume")
	}
	vol := *row.Volume
	if math.IsNaN(vol) || math.IsInf(vol, 0) || vol < 0 {
		return nil, fmt.Errorf("invalid volume %v", vol)
	}
	if vol != math.Trunc(vol) || vol > math.MaxInt64 {
		return nil, fmt.Errorf("non-integral volume %v", vol)
	}

	return &models.PriceBar{
		CompanyID: companyID,
		Date:      date,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePrice,
		Volume:    int64(vol),
	}, nil
}

func price(field string, v *float64) (decimal.Decimal, error) {
	if v == nil {
		return decimal.Zero, fmt.Errorf("missing %s", field)
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) || *v < 0 {
		return decimal.Zero, fmt.Errorf("invalid %s %v", field, *v)
	}
	return decimal.NewFromFloat(*v).Round(4), nil
}
