package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/easebot/rankledger/internal/apperrors"
	"github.com/easebot/rankledger/internal/core/domain"
	"github.com/easebot/rankledger/internal/core/ports"
)

// ReconcileService periodically re-derives every user's target tier from the
// ledger and re-applies it to the external role system. Role sync on the
// contribution path is best-effort with no rollback, so this pass is what
// heals roles that drifted after collaborator failures. Announcements are
// suppressed: reconciliation repairs state, it is not a promotion.
type ReconcileService struct {
	ledger   *LedgerService
	ranks    *RankService
	roles    ports.RoleManager
	audit    *AuditService
	logger   *slog.Logger
	interval time.Duration
}

// NewReconcileService creates a new ReconcileService.
func NewReconcileService(ledger *LedgerService, ranks *RankService, roles ports.RoleManager, audit *AuditService, logger *slog.Logger, interval time.Duration) *ReconcileService {
	return &ReconcileService{
		ledger:   ledger,
		ranks:    ranks,
		roles:    roles,
		audit:    audit,
		logger:   logger,
		interval: interval,
	}
}

// Run blocks, reconciling on every tick until ctx is cancelled. It returns
// immediately when reconciliation is disabled or no role collaborator is
// configured.
func (s *ReconcileService) Run(ctx context.Context) {
	if s.interval <= 0 || s.roles == nil {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.ReconcileOnce(ctx)
		}
	}
}

// ReconcileOnce runs a single reconciliation pass over every ledger account.
func (s *ReconcileService) ReconcileOnce(ctx context.Context) {
	snap, err := s.ledger.Snapshot(ctx)
	if err != nil {
		s.logger.Error("reconciliation failed to load ledger", slog.String("error", err.Error()))
		return
	}

	var repaired int
	for userID, acct := range snap.Users {
		target := s.ranks.Resolve(acct.Total)
		if target == nil {
			continue
		}
		held, err := s.roles.MemberRoles(ctx, userID)
		if err != nil {
			if !errors.Is(err, apperrors.ErrNotFound) {
				s.logger.Warn("reconciliation failed to fetch roles", slog.String("user_id", userID), slog.String("error", err.Error()))
			}
			continue
		}
		plan := s.ranks.PlanPromotion(held, target)
		if !plan.Changed() {
			continue
		}
		for _, roleID := range plan.ToRemove {
			if err := s.roles.RemoveRole(ctx, userID, roleID); err != nil {
				s.audit.Record(domain.AuditRoleSyncError, map[string]any{"userId": userID, "role": roleID, "error": err.Error()})
			}
		}
		if plan.ToAdd != "" {
			if err := s.roles.AddRole(ctx, userID, plan.ToAdd); err != nil {
				s.audit.Record(domain.AuditRoleSyncError, map[string]any{"userId": userID, "role": plan.ToAdd, "error": err.Error()})
				continue
			}
		}
		repaired++
	}
	if repaired > 0 {
		s.logger.Info("reconciliation pass repaired roles", slog.Int("users", repaired))
	}
}
