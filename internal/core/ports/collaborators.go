package ports

import (
	"context"

	"github.com/shopspring/decimal"
)

// RoleManager is the external role-membership collaborator. Role state held by
// the collaborator is best-effort: callers log failures and move on, the
// ledger remains authoritative.
type RoleManager interface {
	// MemberRoles returns the role IDs currently held by userID in the target
	// guild, or apperrors.ErrNotFound when the user is not a member.
	MemberRoles(ctx context.Context, userID string) ([]string, error)
	AddRole(ctx context.Context, userID, roleID string) error
	RemoveRole(ctx context.Context, userID, roleID string) error
}

// Announcer emits promotion notifications to the designated channel.
type Announcer interface {
	AnnouncePromotion(ctx context.Context, userID string, total decimal.Decimal, roleID string) error
}
