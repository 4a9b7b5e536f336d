package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Fundamentals is one annual reporting period extracted from the provider's
// statements. It is never persisted on its own; its values are projected
// onto price bars.
type Fundamentals struct {
	Ticker             string              `json:"ticker"`
	ReportDate         time.Time           `json:"report_date"`
	EPS                decimal.NullDecimal `json:"eps"`
	Revenue            decimal.NullDecimal `json:"revenue"`
	NetIncome          decimal.NullDecimal `json:"net_income"`
	TotalDebt          decimal.NullDecimal `json:"total_debt"`
	StockholdersEquity decimal.NullDecimal `json:"stockholders_equity"`
	OperatingCashFlow  decimal.NullDecimal `json:"operating_cash_flow"`
	DebtToEquity       decimal.NullDecimal `json:"debt_to_equity"`
	ROI                decimal.NullDecimal `json:"roi"`
}
