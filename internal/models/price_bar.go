package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceBar is one trading day of OHLCV data for a company, optionally
// annotated with values projected from the annual statements.
// OHLCV fields never change once stored; only the derived fields are filled.
type PriceBar struct {
	ID        int             `json:"id"`
	CompanyID int             `json:"company_id"`
	Date      time.Time       `json:"date"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    int64           `json:"volume"`
	Derived
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Derived holds the nullable fundamentals-derived columns of a price bar
type Derived struct {
	EPS          decimal.NullDecimal `json:"eps"`
	PERatio      decimal.NullDecimal `json:"pe_ratio"`
	Revenue      decimal.NullDecimal `json:"revenue"`
	DebtToEquity decimal.NullDecimal `json:"debt_to_equity"`
	CashFlow     decimal.NullDecimal `json:"cash_flow"`
	ROI          decimal.NullDecimal `json:"roi"`
}

// HasMissing reports whether any derived field is still null
func (d Derived) HasMissing() bool {
	return !d.EPS.Valid || !d.PERatio.Valid || !d.Revenue.Valid ||
		!d.DebtToEquity.Valid || !d.CashFlow.Valid || !d.ROI.Valid
}

// IsEmpty reports whether no derived field carries a value
func (d Derived) IsEmpty() bool {
	return !d.EPS.Valid && !d.PERatio.Valid && !d.Revenue.Valid &&
		!d.DebtToEquity.Valid && !d.CashFlow.Valid && !d.ROI.Valid
}

// FillFrom returns d with every null field replaced by the value in other.
// Fields that already hold a value are kept.
func (d Derived) FillFrom(other Derived) Derived {
	d.EPS = fillNull(d.EPS, other.EPS)
	d.PERatio = fillNull(d.PERatio, other.PERatio)
	d.Revenue = fillNull(d.Revenue, other.Revenue)
	d.DebtToEquity = fillNull(d.DebtToEquity, other.DebtToEquity)
	d.CashFlow = fillNull(d.CashFlow, other.CashFlow)
	d.ROI = fillNull(d.ROI, other.ROI)
	return d
}

func fillNull(current, incoming decimal.NullDecimal) decimal.NullDecimal {
	if current.Valid || !incoming.Valid {
		return current
	}
	return incoming
}

// Fillable reports whether other would set at least one field of d that is still null
func (d Derived) Fillable(other Derived) bool {
	return (!d.EPS.Valid && other.EPS.Valid) ||
		(!d.PERatio.Valid && other.PERatio.Valid) ||
		(!d.Revenue.Valid && other.Revenue.Valid) ||
		(!d.DebtToEquity.Valid && other.DebtToEquity.Valid) ||
		(!d.CashFlow.Valid && other.CashFlow.Valid) ||
		(!d.ROI.Valid && other.ROI.Valid)
}
