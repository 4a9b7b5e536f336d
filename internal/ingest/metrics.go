package ingest

import (
	"github.com/shopspring/decimal"

	"github.com/trogers1052/market-sync/internal/models"
)

// Storage scales of the derived columns
const (
	ratioScale  = 4
	epsScale    = 4
	amountScale = 2
)

// Ratio returns num ÷ den, or null when either operand is missing or den is zero
func Ratio(num, den decimal.NullDecimal) decimal.NullDecimal {
	if !num.Valid || !den.Valid || den.Decimal.IsZero() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(num.Decimal.Div(den.Decimal).Round(ratioScale))
}

// PERatio is close ÷ EPS
func PERatio(closePrice decimal.Decimal, eps decimal.NullDecimal) decimal.NullDecimal {
	return Ratio(decimal.NewNullDecimal(closePrice), eps)
}

// DebtToEquity is total debt ÷ stockholders' equity
func DebtToEquity(debt, equity decimal.NullDecimal) decimal.NullDecimal {
	return Ratio(debt, equity)
}

// ROI is net income ÷ stockholders' equity
func ROI(netIncome, equity decimal.NullDecimal) decimal.NullDecimal {
	return Ratio(netIncome, equity)
}

// Derive computes the derived fields a record projects onto a bar with the given close
func Derive(closePrice decimal.Decimal, rec *models.Fundamentals) models.Derived {
	if rec == nil {
		return models.Derived{}
	}
	return models.Derived{
		EPS:          round(rec.EPS, epsScale),
		PERatio:      PERatio(closePrice, rec.EPS),
		Revenue:      round(rec.Revenue, amountScale),
		DebtToEquity: round(rec.DebtToEquity, ratioScale),
		CashFlow:     round(rec.OperatingCashFlow, amountScale),
		ROI:          round(rec.ROI, ratioScale),
	}
}

func round(v decimal.NullDecimal, places int32) decimal.NullDecimal {
	if !v.Valid {
		return v
	}
	return decimal.NewNullDecimal(v.Decimal.Round(places))
}
