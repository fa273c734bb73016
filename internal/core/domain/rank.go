package domain

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
)

// RankTier is one row of the threshold table: crossing Threshold grants RoleID.
type RankTier struct {
	Threshold decimal.Decimal `json:"amount"`
	RoleID    string          `json:"role"`
}

// RankTable is the ordered tier table, ascending by threshold, loaded at
// process start and immutable thereafter.
type RankTable []RankTier

// DefaultRankTable returns the built-in tier table used when no ranks file is
// configured.
func DefaultRankTable() RankTable {
	tiers := []struct {
		threshold int64
		role      string
	}{
		{1, "1437232831112941589"},
		{50, "1437233140757168288"},
		{100, "1437233233086517329"},
		{500, "1437233800537968656"},
		{1000, "1437234287761166396"},
		{5000, "1437234433081212938"},
		{10000, "1437234657191137311"},
		{15000, "1437234823684161536"},
		{20000, "1437234957314560070"},
	}
	table := make(RankTable, 0, len(tiers))
	for _, t := range tiers {
		table = append(table, RankTier{Threshold: decimal.NewFromInt(t.threshold), RoleID: t.role})
	}
	return table
}

// LoadRankTable reads a tier table from a JSON file and validates it.
func LoadRankTable(path string) (RankTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ranks file: %w", err)
	}
	var table RankTable
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse ranks file: %w", err)
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

// Validate checks that the table is non-empty with strictly ascending,
// positive thresholds and non-empty role IDs.
func (t RankTable) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("rank table must not be empty")
	}
	for i, tier := range t {
		if tier.RoleID == "" {
			return fmt.Errorf("rank table entry %d has no role ID", i)
		}
		if !tier.Threshold.IsPositive() {
			return fmt.Errorf("rank table entry %d has non-positive threshold %s", i, tier.Threshold)
		}
		if i > 0 && !t[i-1].Threshold.LessThan(tier.Threshold) {
			return fmt.Errorf("rank table thresholds must be strictly ascending, entry %d is not", i)
		}
	}
	return nil
}

// RoleIDs returns every role ID in the table, in threshold order.
func (t RankTable) RoleIDs() []string {
	ids := make([]string, len(t))
	for i, tier := range t {
		ids[i] = tier.RoleID
	}
	return ids
}
