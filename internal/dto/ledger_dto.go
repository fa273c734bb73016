package dto

import (
	"github.com/easebot/rankledger/internal/core/domain"
	"github.com/shopspring/decimal"
)

// UserResponse is the query view of one account: ledger state plus the tier
// the current total resolves to.
type UserResponse struct {
	UserID  string                 `json:"userID"`
	Total   decimal.Decimal        `json:"total"`
	History []domain.PurchaseEvent `json:"history"`
	Rank    string                 `json:"rank,omitempty"` // role ID of the resolved tier
}

// BackupResponse reports where an on-demand snapshot was written.
type BackupResponse struct {
	Path string `json:"path"`
}
