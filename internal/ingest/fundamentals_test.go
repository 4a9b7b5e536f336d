package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trogers1052/market-sync/internal/provider"
)

func TestExtract_AliasFallbackAndDerivedRatios(t *testing.T) {
	st := &provider.AnnualStatements{
		Income: provider.Statement{
			"2023-12-31": {"dilutedEPS": 4.0, "totalRevenue": "1000.00", "netIncome": "200"},
			"2024-12-31": {"basicEPS": "5.5", "eps": 9.9, "totalRevenue": 1200.0, "netIncome": 300.0},
		},
		BalanceSheet: provider.Statement{
			"2023-12-31": {"shortLongTermDebtTotal": "500", "totalStockholderEquity": "1000"},
			"2024-12-30": {"totalDebt": 600.0, "totalStockholderEquity": "0"},
		},
		CashFlow: provider.Statement{
			"2024-12-31": {"totalCashFromOperatingActivities": "None"},
		},
	}

	records := NewFundamentalsExtractor(5).Extract("ACME", st)
	require.Len(t, records, 2)

	first, second := records[0], records[1]
	assert.Equal(t, day("2023-12-31"), first.ReportDate)
	assert.Equal(t, "ACME", first.Ticker)
	assert.Equal(t, "4", first.EPS.Decimal.String())
	assert.Equal(t, "500", first.TotalDebt.Decimal.String())
	assert.Equal(t, "0.5", first.DebtToEquity.Decimal.String())
	assert.Equal(t, "0.2", first.ROI.Decimal.String())
	assert.False(t, first.OperatingCashFlow.Valid)

	assert.Equal(t, day("2024-12-31"), second.ReportDate)
	assert.Equal(t, "5.5", second.EPS.Decimal.String(), "basicEPS wins over later aliases")
	assert.Equal(t, "1200", second.Revenue.Decimal.String())
	// balance sheet matched by same fiscal year, equity zero guards both ratios
	assert.Equal(t, "600", second.TotalDebt.Decimal.String())
	assert.True(t, second.StockholdersEquity.Valid)
	assert.False(t, second.DebtToEquity.Valid)
	assert.False(t, second.ROI.Valid)
	assert.False(t, second.OperatingCashFlow.Valid)
}

func TestExtract_KeepsLatestYears(t *testing.T) {
	st := &provider.AnnualStatements{
		Income: provider.Statement{
			"2020-12-31": {"eps": 1.0},
			"2021-12-31": {"eps": 2.0},
			"2022-12-31": {"eps": 3.0},
			"garbage":    {"eps": 4.0},
		},
	}

	records := NewFundamentalsExtractor(2).Extract("X", st)
	require.Len(t, records, 2)
	assert.Equal(t, day("2021-12-31"), records[0].ReportDate)
	assert.Equal(t, day("2022-12-31"), records[1].ReportDate)
	assert.False(t, records[0].TotalDebt.Valid)
}

func TestExtract_EmptyStatements(t *testing.T) {
	e := NewFundamentalsExtractor(5)
	assert.Nil(t, e.Extract("X", nil))
	assert.Nil(t, e.Extract("X", &provider.AnnualStatements{}))
}

func TestToDecimal(t *testing.T) {
	tests := []struct {
		in   interface{}
		want string
		ok   bool
	}{
		{12.25, "12.25", true},
		{" 42 ", "42", true},
		{"-3.5", "-3.5", true},
		{"None", "", false},
		{"", "", false},
		{"abc", "", false},
		{nil, "", false},
		{true, "", false},
	}
	for _, tt := range tests {
		got, ok := toDecimal(tt.in)
		assert.Equal(t, tt.ok, ok, "%v", tt.in)
		if tt.ok {
			assert.Equal(t, tt.want, got.String())
		}
	}
}
