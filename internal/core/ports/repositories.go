package ports

import (
	"context"

	"github.com/easebot/rankledger/internal/core/domain"
	"github.com/shopspring/decimal"
)

// Note: Context is included for cancellation/timeouts even where current
// backends are local files.

// LedgerRepository defines the persistence operations for the purchase ledger.
// ApplyContribution is the sole mutation entry point and must serialize all
// callers internally: the whole load-mutate-save cycle (or transaction) runs
// under mutual exclusion so concurrent contributions never lose an update.
type LedgerRepository interface {
	// Load returns the full current ledger state.
	Load(ctx context.Context) (domain.Snapshot, error)
	// ApplyContribution appends a purchase event for userID, advancing the
	// user total and the global total under the incremental rounding rule,
	// and durably persists the result before returning. A non-empty eventID
	// dedups redeliveries: a repeat returns apperrors.ErrDuplicateEvent with
	// no mutation.
	ApplyContribution(ctx context.Context, userID string, amount decimal.Decimal, source domain.ContributionSource, eventID string) (domain.UserAccount, error)
	// FindUser returns the account for userID, or apperrors.ErrNotFound.
	FindUser(ctx context.Context, userID string) (*domain.UserAccount, error)
	// Backup writes a timestamped full-ledger snapshot and returns its path.
	Backup(ctx context.Context) (string, error)
}

// AuditRepository defines the bounded append-only audit log, independent of
// the ledger store (no transactional relationship).
type AuditRepository interface {
	Append(ctx context.Context, entry domain.AuditEntry) error
	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]domain.AuditEntry, error)
}
