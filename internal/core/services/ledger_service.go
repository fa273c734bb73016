package services

import (
	"context"
	"fmt"

	"github.com/easebot/rankledger/internal/apperrors"
	"github.com/easebot/rankledger/internal/core/domain"
	"github.com/easebot/rankledger/internal/core/ports"
	"github.com/shopspring/decimal"
)

// LedgerService fronts the ledger repository: it owns input validation, the
// repository owns atomicity and serialization.
type LedgerService struct {
	repo ports.LedgerRepository
}

// NewLedgerService creates a new LedgerService.
func NewLedgerService(repo ports.LedgerRepository) *LedgerService {
	return &LedgerService{repo: repo}
}

// RecordContribution validates and applies a single contribution. It is the
// only path that mutates the ledger.
func (s *LedgerService) RecordContribution(ctx context.Context, userID string, amount decimal.Decimal, source domain.ContributionSource, eventID string) (domain.UserAccount, error) {
	if userID == "" {
		return domain.UserAccount{}, fmt.Errorf("%w: empty user ID", apperrors.ErrValidation)
	}
	if !amount.IsPositive() {
		return domain.UserAccount{}, fmt.Errorf("%w: amount must be positive, got %s", apperrors.ErrValidation, amount)
	}
	return s.repo.ApplyContribution(ctx, userID, amount, source, eventID)
}

// GetUser returns the account for userID, or apperrors.ErrNotFound.
func (s *LedgerService) GetUser(ctx context.Context, userID string) (*domain.UserAccount, error) {
	return s.repo.FindUser(ctx, userID)
}

// Snapshot returns the full current ledger state.
func (s *LedgerService) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	return s.repo.Load(ctx)
}

// Backup writes a timestamped full-ledger snapshot and returns its path.
func (s *LedgerService) Backup(ctx context.Context) (string, error) {
	return s.repo.Backup(ctx)
}
