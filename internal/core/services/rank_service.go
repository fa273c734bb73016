package services

import (
	"github.com/easebot/rankledger/internal/core/domain"
	"github.com/shopspring/decimal"
)

// PromotionPlan is the minimal operation set that moves a user's externally
// held rank roles to the target tier. Removals must be executed in full before
// the add so no observer ever sees two tiers held at once.
type PromotionPlan struct {
	ToRemove []string
	ToAdd    string
}

// Changed reports whether applying the plan changes the user's tier.
func (p PromotionPlan) Changed() bool {
	return p.ToAdd != "" || len(p.ToRemove) > 0
}

// RankService resolves totals to tiers and plans role changes. Pure: no I/O,
// no side effects.
type RankService struct {
	table domain.RankTable
}

// NewRankService creates a RankService over a validated tier table.
func NewRankService(table domain.RankTable) *RankService {
	return &RankService{table: table}
}

// Resolve returns the tier with the greatest threshold not exceeding total,
// or nil when total is below the lowest threshold. Monotonic in total since
// thresholds are strictly ascending.
func (s *RankService) Resolve(total decimal.Decimal) *domain.RankTier {
	var best *domain.RankTier
	for i := range s.table {
		if total.GreaterThanOrEqual(s.table[i].Threshold) {
			best = &s.table[i]
		}
	}
	return best
}

// PlanPromotion diffs the rank roles currently held against the target tier.
// Rank membership is exclusive: every held tier role that is not the target
// is removed. The plan is empty when the target is already the sole held tier,
// so applying a promotion twice is a no-op. Roles outside the tier table are
// never touched. A nil target plans nothing: totals never decrease, so a tier
// once granted is never revoked.
func (s *RankService) PlanPromotion(held []string, target *domain.RankTier) PromotionPlan {
	if target == nil {
		return PromotionPlan{}
	}

	heldSet := make(map[string]bool, len(held))
	for _, roleID := range held {
		heldSet[roleID] = true
	}

	var plan PromotionPlan
	for _, tier := range s.table {
		if tier.RoleID != target.RoleID && heldSet[tier.RoleID] {
			plan.ToRemove = append(plan.ToRemove, tier.RoleID)
		}
	}
	if !heldSet[target.RoleID] {
		plan.ToAdd = target.RoleID
	}
	return plan
}
