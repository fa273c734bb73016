package jsonfile_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/easebot/rankledger/internal/apperrors"
	"github.com/easebot/rankledger/internal/core/domain"
	"github.com/easebot/rankledger/internal/repositories/database/jsonfile"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *jsonfile.LedgerRepository {
	t.Helper()
	repo, err := jsonfile.NewLedgerRepository(t.TempDir())
	require.NoError(t, err)
	return repo
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestApplyContribution_CreatesAccountImplicitly(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	acct, err := repo.ApplyContribution(ctx, "42", dec("50"), domain.SourceWebhook, "")
	require.NoError(t, err)
	assert.True(t, acct.Total.Equal(dec("50")))
	require.Len(t, acct.History, 1)
	assert.Equal(t, domain.SourceWebhook, acct.History[0].Source)

	snap, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.True(t, snap.Meta.TotalAll.Equal(dec("50")))
}

func TestApplyContribution_IncrementalRounding(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	// Rounding happens after every addition, so three 0.005 contributions
	// accumulate to 0.03, not the 0.02 a single final rounding would give.
	var acct domain.UserAccount
	var err error
	for i := 0; i < 3; i++ {
		acct, err = repo.ApplyContribution(ctx, "7", dec("0.005"), domain.SourceManual, "")
		require.NoError(t, err)
	}
	assert.True(t, acct.Total.Equal(dec("0.03")), "got %s", acct.Total)

	snap, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.True(t, snap.Meta.TotalAll.Equal(dec("0.03")))
}

func TestApplyContribution_TotalMatchesHistoryFold(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	amounts := []string{"40", "10", "0.01", "12.345", "3.333"}
	for _, a := range amounts {
		_, err := repo.ApplyContribution(ctx, "42", dec(a), domain.SourceWebhook, "")
		require.NoError(t, err)
	}

	acct, err := repo.FindUser(ctx, "42")
	require.NoError(t, err)

	fold := decimal.Zero
	for _, ev := range acct.History {
		fold = domain.AddRounded(fold, ev.Amount)
	}
	assert.True(t, acct.Total.Equal(fold), "total %s, fold %s", acct.Total, fold)
}

func TestApplyContribution_DuplicateEventID(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.ApplyContribution(ctx, "42", dec("10"), domain.SourceWebhook, "evt_001")
	require.NoError(t, err)

	_, err = repo.ApplyContribution(ctx, "42", dec("10"), domain.SourceWebhook, "evt_001")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrDuplicateEvent))

	// Redelivery must not have mutated anything.
	acct, err := repo.FindUser(ctx, "42")
	require.NoError(t, err)
	assert.True(t, acct.Total.Equal(dec("10")))
	assert.Len(t, acct.History, 1)
}

func TestApplyContribution_ConcurrentContributionsSerialize(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	const workers = 2
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.ApplyContribution(ctx, "42", dec("10"), domain.SourceWebhook, "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	acct, err := repo.FindUser(ctx, "42")
	require.NoError(t, err)
	assert.True(t, acct.Total.Equal(dec("20")), "lost update: total %s", acct.Total)
	assert.Len(t, acct.History, workers)
}

func TestApplyContribution_ManyConcurrentUsers(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := repo.ApplyContribution(ctx, fmt.Sprintf("user-%d", n%3), dec("1.50"), domain.SourceManual, "")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	snap, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.True(t, snap.Meta.TotalAll.Equal(dec("15")), "got %s", snap.Meta.TotalAll)
}

func TestFindUser_NotFound(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.FindUser(context.Background(), "missing")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestLoad_SurvivesProcessRestart(t *testing.T) {
	dir := t.TempDir()
	repo, err := jsonfile.NewLedgerRepository(dir)
	require.NoError(t, err)
	_, err = repo.ApplyContribution(context.Background(), "42", dec("40"), domain.SourceManual, "")
	require.NoError(t, err)

	reopened, err := jsonfile.NewLedgerRepository(dir)
	require.NoError(t, err)
	acct, err := reopened.FindUser(context.Background(), "42")
	require.NoError(t, err)
	assert.True(t, acct.Total.Equal(dec("40")))
}

func TestSave_LeavesNoTemporaryFile(t *testing.T) {
	dir := t.TempDir()
	repo, err := jsonfile.NewLedgerRepository(dir)
	require.NoError(t, err)
	_, err = repo.ApplyContribution(context.Background(), "42", dec("1"), domain.SourceManual, "")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "db.json.tmp"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestBackup_WritesTimestampedCopy(t *testing.T) {
	dir := t.TempDir()
	repo, err := jsonfile.NewLedgerRepository(dir)
	require.NoError(t, err)
	_, err = repo.ApplyContribution(context.Background(), "42", dec("5"), domain.SourceManual, "")
	require.NoError(t, err)

	dest, err := repo.Backup(context.Background())
	require.NoError(t, err)
	assert.Contains(t, dest, filepath.Join(dir, "backups", "db-backup-"))

	orig, err := os.ReadFile(filepath.Join(dir, "db.json"))
	require.NoError(t, err)
	copied, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, orig, copied)
}
