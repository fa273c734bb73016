package domain_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/easebot/rankledger/internal/core/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRankTableIsValid(t *testing.T) {
	table := domain.DefaultRankTable()
	require.NoError(t, table.Validate())
	assert.Len(t, table.RoleIDs(), len(table))
}

func TestLoadRankTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ranks.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"amount": 10, "role": "bronze"},
		{"amount": 100, "role": "silver"},
		{"amount": 1000, "role": "gold"}
	]`), 0o644))

	table, err := domain.LoadRankTable(path)
	require.NoError(t, err)
	require.Len(t, table, 3)
	assert.Equal(t, "silver", table[1].RoleID)
	assert.True(t, table[1].Threshold.Equal(decimal.NewFromInt(100)))
}

func TestLoadRankTable_MissingFile(t *testing.T) {
	_, err := domain.LoadRankTable(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestRankTableValidate(t *testing.T) {
	tier := func(n int64, role string) domain.RankTier {
		return domain.RankTier{Threshold: decimal.NewFromInt(n), RoleID: role}
	}
	tests := []struct {
		name    string
		table   domain.RankTable
		wantErr bool
	}{
		{"empty", domain.RankTable{}, true},
		{"single", domain.RankTable{tier(1, "a")}, false},
		{"ascending", domain.RankTable{tier(1, "a"), tier(50, "b")}, false},
		{"descending", domain.RankTable{tier(50, "b"), tier(1, "a")}, true},
		{"duplicate threshold", domain.RankTable{tier(1, "a"), tier(1, "b")}, true},
		{"zero threshold", domain.RankTable{tier(0, "a")}, true},
		{"missing role", domain.RankTable{{Threshold: decimal.NewFromInt(1)}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.table.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAddRounded_PerAdditionRounding(t *testing.T) {
	half := decimal.RequireFromString("0.005")

	// Each 0.005 rounds the running total up by a cent; summing first and
	// rounding once would give 0.02 instead.
	total := decimal.Zero
	for i := 0; i < 3; i++ {
		total = domain.AddRounded(total, half)
	}
	assert.Equal(t, "0.03", total.String())
}
