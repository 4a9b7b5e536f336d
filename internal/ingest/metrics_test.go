package ingest

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/trogers1052/market-sync/internal/models"
)

func nd(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func TestPERatio_ZeroOrMissingEPSIsNull(t *testing.T) {
	closePrice := decimal.RequireFromString("150")

	assert.False(t, PERatio(closePrice, nd("0")).Valid)
	assert.False(t, PERatio(closePrice, decimal.NullDecimal{}).Valid)

	pe := PERatio(closePrice, nd("12"))
	assert.True(t, pe.Valid)
	assert.Equal(t, "12.5", pe.Decimal.String())
}

func TestRatios_GuardEquity(t *testing.T) {
	assert.Equal(t, "0.3333", DebtToEquity(nd("1"), nd("3")).Decimal.String())
	assert.False(t, DebtToEquity(nd("1"), nd("0")).Valid)
	assert.False(t, DebtToEquity(decimal.NullDecimal{}, nd("5")).Valid)

	assert.Equal(t, "0.25", ROI(nd("25"), nd("100")).Decimal.String())
	assert.False(t, ROI(nd("25"), decimal.NullDecimal{}).Valid)
	assert.Equal(t, "-0.5", ROI(nd("-50"), nd("100")).Decimal.String())
}

func TestDerive(t *testing.T) {
	r := &models.Fundamentals{
		EPS:               nd("0"),
		Revenue:           nd("1234.5678"),
		OperatingCashFlow: nd("99.999"),
		DebtToEquity:      nd("0.123456"),
	}

	d := Derive(decimal.RequireFromString("50"), r)
	assert.Equal(t, "0", d.EPS.Decimal.String())
	assert.False(t, d.PERatio.Valid)
	assert.Equal(t, "1234.57", d.Revenue.Decimal.String())
	assert.Equal(t, "100", d.CashFlow.Decimal.String())
	assert.Equal(t, "0.1235", d.DebtToEquity.Decimal.String())
	assert.False(t, d.ROI.Valid)

	assert.True(t, Derive(decimal.Zero, nil).IsEmpty())
}
