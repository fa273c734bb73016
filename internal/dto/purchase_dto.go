package dto

import "github.com/shopspring/decimal"

// ManualPurchaseRequest registers a contribution for the authenticated user.
// Amount must be a positive decimal; validated by the handler so the error
// matches the webhook path's taxonomy.
type ManualPurchaseRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// ManualPurchaseResponse confirms an accepted manual contribution.
type ManualPurchaseResponse struct {
	OK       bool            `json:"ok"`
	Total    decimal.Decimal `json:"total"`
	NewTier  string          `json:"newTier,omitempty"`
	Promoted bool            `json:"promoted"`
}
