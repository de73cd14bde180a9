package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BalanceSnapshot is the latest reported balance for one gateway
// sub-account ("Working Account", "Utility Account", ...). One row per
// bucket; new snapshots overwrite.
type BalanceSnapshot struct {
	AccountType string          `json:"account_type"`
	Currency    string          `json:"currency"`
	Amount      decimal.Decimal `json:"amount"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
