package models

import (
	"github.com/Telepatic-Kodes/rei-os/src/lib"
)

// DateLayout is the on-disk layout of ledger and quality dates.
const DateLayout = "2006-01-02"

// AutoSyncSession tags ledger rows pulled from the usage API. Those rows are
// replaced wholesale on every token sync; all other rows are kept.
const AutoSyncSession = "auto-sync"

// TokenEntry is one row of the token ledger.
type TokenEntry struct {
	Date      string  `json:"date" validate:"datetime=2006-01-02"`
	Project   string  `json:"project" validate:"notblank"`
	Session   string  `json:"session" validate:"notblank"`
	TokensIn  int64   `json:"tokensIn" validate:"gte=0"`
	TokensOut int64   `json:"tokensOut" validate:"gte=0"`
	Cost      float64 `json:"cost" validate:"gte=0"`
	Model     string  `json:"model" validate:"notblank"`
}

// IsAutoSync reports whether the row came from the usage API.
func (e TokenEntry) IsAutoSync() bool {
	return e.Session == AutoSyncSession
}

// Validate checks a single ledger row.
func (e TokenEntry) Validate() error {
	return lib.ValidateStruct("token entry", e)
}

// BudgetConfig is the monthly budget stored alongside the ledger.
type BudgetConfig struct {
	Monthly  float64 `json:"monthly" validate:"gte=0"`
	Currency string  `json:"currency" validate:"notblank"`
}

// TokenData is the tokens.json document: budget config plus the ledger.
type TokenData struct {
	Budget  BudgetConfig `json:"budget"`
	Entries []TokenEntry `json:"entries" validate:"required,dive"`
}

// DefaultTokenData returns an empty ledger.
func DefaultTokenData() *TokenData {
	return &TokenData{
		Budget:  BudgetConfig{Monthly: 0, Currency: "USD"},
		Entries: []TokenEntry{},
	}
}

// Validate checks the budget and every ledger row.
func (d *TokenData) Validate() error {
	return lib.ValidateStruct("tokens", d)
}
