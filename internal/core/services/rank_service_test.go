package services_test

import (
	"testing"

	"github.com/easebot/rankledger/internal/core/domain"
	"github.com/easebot/rankledger/internal/core/services"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testTable() domain.RankTable {
	return domain.RankTable{
		{Threshold: dec("1"), RoleID: "tier-1"},
		{Threshold: dec("50"), RoleID: "tier-50"},
		{Threshold: dec("100"), RoleID: "tier-100"},
		{Threshold: dec("500"), RoleID: "tier-500"},
	}
}

func TestResolve(t *testing.T) {
	svc := services.NewRankService(testTable())

	tests := []struct {
		total string
		want  string // empty means no tier
	}{
		{"0", ""},
		{"0.99", ""},
		{"1", "tier-1"},
		{"49.99", "tier-1"},
		{"50", "tier-50"},
		{"50.01", "tier-50"},
		{"100", "tier-100"},
		{"499.99", "tier-100"},
		{"500", "tier-500"},
		{"99999", "tier-500"},
	}
	for _, tt := range tests {
		got := svc.Resolve(dec(tt.total))
		if tt.want == "" {
			assert.Nil(t, got, "total %s", tt.total)
		} else {
			require.NotNil(t, got, "total %s", tt.total)
			assert.Equal(t, tt.want, got.RoleID, "total %s", tt.total)
		}
	}
}

func TestResolve_Monotonic(t *testing.T) {
	svc := services.NewRankService(testTable())

	totals := []string{"0", "0.5", "1", "25", "50", "75", "100", "300", "500", "1000"}
	prev := decimal.Zero
	havePrev := false
	for _, s := range totals {
		tier := svc.Resolve(dec(s))
		if tier == nil {
			continue
		}
		if havePrev {
			assert.True(t, prev.LessThanOrEqual(tier.Threshold),
				"threshold decreased at total %s", s)
		}
		prev = tier.Threshold
		havePrev = true
	}
}

func TestPlanPromotion_FirstTier(t *testing.T) {
	svc := services.NewRankService(testTable())

	// 40 + 10 crosses the 50 threshold from no tier at all.
	target := svc.Resolve(dec("50.00"))
	require.NotNil(t, target)
	plan := svc.PlanPromotion(nil, target)
	assert.Equal(t, "tier-50", plan.ToAdd)
	assert.Empty(t, plan.ToRemove)
	assert.True(t, plan.Changed())
}

func TestPlanPromotion_TierUpgradeSwapsRoles(t *testing.T) {
	svc := services.NewRankService(testTable())

	target := svc.Resolve(dec("120"))
	plan := svc.PlanPromotion([]string{"tier-50", "unrelated-role"}, target)
	assert.Equal(t, "tier-100", plan.ToAdd)
	assert.Equal(t, []string{"tier-50"}, plan.ToRemove, "roles outside the table must not be touched")
}

func TestPlanPromotion_NoChangeIsEmpty(t *testing.T) {
	svc := services.NewRankService(testTable())

	// Already holding the sole target tier: both sets empty.
	target := svc.Resolve(dec("50.01"))
	plan := svc.PlanPromotion([]string{"tier-50"}, target)
	assert.Empty(t, plan.ToAdd)
	assert.Empty(t, plan.ToRemove)
	assert.False(t, plan.Changed())
}

func TestPlanPromotion_Idempotent(t *testing.T) {
	svc := services.NewRankService(testTable())
	target := svc.Resolve(dec("100"))

	first := svc.PlanPromotion([]string{"tier-50"}, target)
	require.True(t, first.Changed())

	// Simulate the first plan having been applied, then plan again.
	second := svc.PlanPromotion([]string{first.ToAdd}, target)
	assert.False(t, second.Changed())
	assert.Empty(t, second.ToAdd)
	assert.Empty(t, second.ToRemove)
}

func TestPlanPromotion_StaleExtraTiersRemoved(t *testing.T) {
	svc := services.NewRankService(testTable())

	// Holding the target plus stale lower tiers: removals only.
	target := svc.Resolve(dec("600"))
	plan := svc.PlanPromotion([]string{"tier-1", "tier-100", "tier-500"}, target)
	assert.Empty(t, plan.ToAdd)
	assert.Equal(t, []string{"tier-1", "tier-100"}, plan.ToRemove)
}

func TestPlanPromotion_NoTargetPlansNothing(t *testing.T) {
	svc := services.NewRankService(testTable())
	plan := svc.PlanPromotion([]string{"tier-1"}, nil)
	assert.False(t, plan.Changed())
}
