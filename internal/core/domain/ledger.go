package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ContributionSource tags where a purchase event entered the system.
type ContributionSource string

const (
	SourceManual  ContributionSource = "manual"
	SourceWebhook ContributionSource = "webhook"
)

// PurchaseEvent is a single accepted contribution. Immutable once appended to
// an account's history.
type PurchaseEvent struct {
	TS      time.Time          `json:"ts"`
	Amount  decimal.Decimal    `json:"amount"` // Positive; precise decimal type
	Source  ContributionSource `json:"source"`
	EventID string             `json:"eventID,omitempty"` // Sender-supplied correlation ID, if any
}

// UserAccount accumulates contributions for one user.
// Invariant: Total is the left fold of History amounts with rounding to 2
// digits applied after every addition, not once at the end.
type UserAccount struct {
	Total   decimal.Decimal `json:"total"`
	History []PurchaseEvent `json:"history"`
}

// Meta is the singleton aggregate across all users, updated alongside every
// account mutation under the same incremental rounding rule.
type Meta struct {
	TotalAll decimal.Decimal `json:"totalAll"`
}

// Snapshot is the full persisted ledger state: every account plus the global
// aggregate, loaded and saved as one unit.
type Snapshot struct {
	Users map[string]*UserAccount `json:"users"`
	Meta  Meta                    `json:"meta"`
	// ProcessedEvents maps sender-supplied event IDs to the time they were
	// first applied, for webhook redelivery dedup.
	ProcessedEvents map[string]time.Time `json:"processedEvents,omitempty"`
}

// NewSnapshot returns an empty ledger snapshot.
func NewSnapshot() Snapshot {
	return Snapshot{
		Users: make(map[string]*UserAccount),
		Meta:  Meta{TotalAll: decimal.Zero},
	}
}

// Account returns the account for userID, creating a zero-valued one if absent.
// Creation is implicit on first contribution.
func (s *Snapshot) Account(userID string) *UserAccount {
	if s.Users == nil {
		s.Users = make(map[string]*UserAccount)
	}
	acct, ok := s.Users[userID]
	if !ok {
		acct = &UserAccount{Total: decimal.Zero}
		s.Users[userID] = acct
	}
	return acct
}

// AddRounded returns total + amount rounded to 2 fractional digits.
// Rounding is applied per addition so totals are order-sensitive; callers must
// use this for every mutation to match persisted state bit-for-bit.
func AddRounded(total, amount decimal.Decimal) decimal.Decimal {
	return total.Add(amount).Round(2)
}
