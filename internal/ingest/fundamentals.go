package ingest

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trogers1052/market-sync/internal/models"
	"github.com/trogers1052/market-sync/internal/provider"
)

// DefaultFundamentalsYears is how many annual periods are extracted
const DefaultFundamentalsYears = 5

// Line item aliases, tried in order. Providers and filing eras name the same
// item differently; the first present and parseable value wins.
var (
	epsKeys       = []string{"basicEPS", "BasicEPS", "eps", "epsActual", "dilutedEPS", "DilutedEPS"}
	revenueKeys   = []string{"totalRevenue", "TotalRevenue", "revenue", "Revenue"}
	netIncomeKeys = []string{"netIncome", "NetIncome", "netIncomeApplicableToCommonShares", "netIncomeFromContinuingOps"}
	debtKeys      = []string{"totalDebt", "TotalDebt", "shortLongTermDebtTotal"}
	equityKeys    = []string{"totalStockholderEquity", "StockholdersEquity", "stockholdersEquity", "totalStockholdersEquity", "commonStockEquity"}
	cashFlowKeys  = []string{"totalCashFromOperatingActivities", "OperatingCashFlow", "operatingCashFlow", "CashFlowFromContinuingOperatingActivities"}
)

// FundamentalsExtractor turns raw annual statements into per-period records
type FundamentalsExtractor struct {
	years int
}

// NewFundamentalsExtractor keeps the latest years periods; years < 1 uses the default
func NewFundamentalsExtractor(years int) *FundamentalsExtractor {
	if years < 1 {
		years = DefaultFundamentalsYears
	}
	return &FundamentalsExtractor{years: years}
}

// Extract builds one record per income statement reporting date, newest
// periods first selected, returned in ascending date order. Balance sheet and
// cash flow items are matched by reporting date, falling back to the closest
// statement in the same fiscal year. Missing items stay null.
func (e *FundamentalsExtractor) Extract(ticker string, st *provider.AnnualStatements) []*models.Fundamentals {
	if st == nil || len(st.Income) == 0 {
		return nil
	}

	dates := sortedDates(st.Income)
	if len(dates) > e.years {
		dates = dates[len(dates)-e.years:]
	}

	balance := indexStatement(st.BalanceSheet)
	cash := indexStatement(st.CashFlow)

	records := make([]*models.Fundamentals, 0, len(dates))
	for _, d := range dates {
		income := st.Income[d.key]
		bs := balance.match(d.date)
		cf := cash.match(d.date)

		rec := &models.Fundamentals{
			Ticker:             ticker,
			ReportDate:         d.date,
			EPS:                lookup(income, epsKeys),
			Revenue:            lookup(income, revenueKeys),
			NetIncome:          lookup(income, netIncomeKeys),
			TotalDebt:          lookup(bs, debtKeys),
			StockholdersEquity: lookup(bs, equityKeys),
			OperatingCashFlow:  lookup(cf, cashFlowKeys),
		}
		rec.DebtToEquity = DebtToEquity(rec.TotalDebt, rec.StockholdersEquity)
		rec.ROI = ROI(rec.NetIncome, rec.StockholdersEquity)
		records = append(records, rec)
	}
	return records
}

type statementDate struct {
	key  string
	date time.Time
}

// sortedDates returns the parseable reporting dates of s in ascending order
func sortedDates(s provider.Statement) []statementDate {
	dates := make([]statementDate, 0, len(s))
	for key := range s {
		d, err := ParseDate(key)
		if err != nil {
			continue
		}
		dates = append(dates, statementDate{key: key, date: d})
	}
	sort.Slice(dates, func(i, j int) bool {
		if dates[i].date.Equal(dates[j].date) {
			return dates[i].key < dates[j].key
		}
		return dates[i].date.Before(dates[j].date)
	})
	return dates
}

type statementIndex struct {
	dates []statementDate
	items provider.Statement
}

func indexStatement(s provider.Statement) statementIndex {
	return statementIndex{dates: sortedDates(s), items: s}
}

// match returns the items reported on date, else those of the closest date in
// the same year, else nil.
func (idx statementIndex) match(date time.Time) map[string]interface{} {
	var (
		best     map[string]interface{}
		bestDiff time.Duration = -1
	)
	for _, d := range idx.dates {
		if d.date.Equal(date) {
			return idx.items[d.key]
		}
		if d.date.Year() != date.Year() {
			continue
		}
		diff := d.date.Sub(date)
		if diff < 0 {
			diff = -diff
		}
		if bestDiff < 0 || diff < bestDiff {
			best, bestDiff = idx.items[d.key], diff
		}
	}
	return best
}

func lookup(items map[string]interface{}, keys []string) decimal.NullDecimal {
	if items == nil {
		return decimal.NullDecimal{}
	}
	for _, key := range keys {
		if v, ok := toDecimal(items[key]); ok {
			return decimal.NewNullDecimal(v)
		}
	}
	return decimal.NullDecimal{}
}

// toDecimal parses a raw JSON scalar. Providers send numbers either as JSON
// numbers or as strings, with "None" and friends for missing values.
func toDecimal(raw interface{}) (decimal.Decimal, bool) {
	switch v := raw.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case string:
		s := strings.TrimSpace(v)
		switch strings.ToLower(s) {
		case "", "none", "null", "nan", "n/a", "-":
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	default:
		return decimal.Zero, false
	}
}
