package jsonfile_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/easebot/rankledger/internal/core/domain"
	"github.com/easebot/rankledger/internal/repositories/database/jsonfile"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func auditEntry(typ domain.AuditType, fields map[string]any) domain.AuditEntry {
	return domain.AuditEntry{
		ID:     uuid.NewString(),
		TS:     time.Now().UTC(),
		Type:   typ,
		Fields: fields,
	}
}

func TestAudit_AppendAndRecentOrder(t *testing.T) {
	repo, err := jsonfile.NewAuditRepository(t.TempDir(), 100)
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := repo.Append(ctx, auditEntry(domain.AuditPurchase, map[string]any{"seq": i}))
		require.NoError(t, err)
	}

	got, err := repo.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	// Newest first.
	assert.EqualValues(t, 4, got[0].Fields["seq"])
	assert.EqualValues(t, 2, got[2].Fields["seq"])
}

func TestAudit_RingEvictsOldestFirst(t *testing.T) {
	const capacity = 10
	repo, err := jsonfile.NewAuditRepository(t.TempDir(), capacity)
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < capacity+5; i++ {
		err := repo.Append(ctx, auditEntry(domain.AuditBadPayload, map[string]any{"seq": i}))
		require.NoError(t, err)
	}

	got, err := repo.Recent(ctx, capacity*2)
	require.NoError(t, err)
	require.Len(t, got, capacity, "ring must never exceed capacity")
	// Entries 0..4 were evicted from the front; 14 is the newest.
	assert.EqualValues(t, capacity+4, got[0].Fields["seq"])
	assert.EqualValues(t, 5, got[len(got)-1].Fields["seq"])
}

func TestAudit_RecentLimitLargerThanLog(t *testing.T) {
	repo, err := jsonfile.NewAuditRepository(t.TempDir(), 100)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, auditEntry(domain.AuditHMACMissing, nil)))
	got, err := repo.Recent(ctx, 200)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, domain.AuditHMACMissing, got[0].Type)
}

func TestAudit_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	repo, err := jsonfile.NewAuditRepository(dir, 100)
	require.NoError(t, err)
	require.NoError(t, repo.Append(context.Background(), auditEntry(domain.AuditInvalidSignature, map[string]any{"ip": "10.0.0.1"})))

	reopened, err := jsonfile.NewAuditRepository(dir, 100)
	require.NoError(t, err)
	got, err := reopened.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "10.0.0.1", fmt.Sprint(got[0].Fields["ip"]))
}
