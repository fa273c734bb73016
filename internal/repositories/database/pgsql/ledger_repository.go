// Package pgsql is the optional Postgres ledger backend, selected when
// PGSQL_URL is configured. Contributions serialize through row locks instead
// of the jsonfile backend's whole-store mutex.
package pgsql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/easebot/rankledger/internal/apperrors"
	"github.com/easebot/rankledger/internal/core/domain"
	"github.com/easebot/rankledger/internal/core/ports"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type LedgerRepository struct {
	BaseRepository
	backupDir string
}

var _ ports.LedgerRepository = (*LedgerRepository)(nil)

// NewLedgerRepository creates a Postgres-backed ledger repository. backupDir
// is where on-demand snapshot dumps are written.
func NewLedgerRepository(pool *pgxpool.Pool, backupDir string) *LedgerRepository {
	return &LedgerRepository{BaseRepository: BaseRepository{Pool: pool}, backupDir: backupDir}
}

// ApplyContribution runs the whole mutation in a single transaction with the
// account and meta rows locked, so concurrent contributions for the same user
// cannot interleave and lose an update.
func (r *LedgerRepository) ApplyContribution(ctx context.Context, userID string, amount decimal.Decimal, source domain.ContributionSource, eventID string) (domain.UserAccount, error) {
	tx, err := r.Begin(ctx)
	if err != nil {
		return domain.UserAccount{}, err
	}
	defer r.Rollback(ctx, tx)

	now := time.Now().UTC()

	if eventID != "" {
		tag, err := tx.Exec(ctx, `
			INSERT INTO processed_events (event_id, processed_at)
			VALUES ($1, $2)
			ON CONFLICT (event_id) DO NOTHING;
		`, eventID, now)
		if err != nil {
			return domain.UserAccount{}, fmt.Errorf("%w: failed to record event id: %v", apperrors.ErrPersistence, err)
		}
		if tag.RowsAffected() == 0 {
			return domain.UserAccount{}, fmt.Errorf("%w: %s", apperrors.ErrDuplicateEvent, eventID)
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO ledger_accounts (user_id, total)
		VALUES ($1, 0)
		ON CONFLICT (user_id) DO NOTHING;
	`, userID)
	if err != nil {
		return domain.UserAccount{}, fmt.Errorf("%w: failed to ensure account: %v", apperrors.ErrPersistence, err)
	}

	var total decimal.Decimal
	err = tx.QueryRow(ctx, `
		SELECT total FROM ledger_accounts WHERE user_id = $1 FOR UPDATE;
	`, userID).Scan(&total)
	if err != nil {
		return domain.UserAccount{}, fmt.Errorf("%w: failed to lock account: %v", apperrors.ErrPersistence, err)
	}

	total = domain.AddRounded(total, amount)
	if _, err := tx.Exec(ctx, `
		UPDATE ledger_accounts SET total = $2 WHERE user_id = $1;
	`, userID, total); err != nil {
		return domain.UserAccount{}, fmt.Errorf("%w: failed to update total: %v", apperrors.ErrPersistence, err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO ledger_events (user_id, ts, amount, source, event_id)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''));
	`, userID, now, amount, string(source), eventID); err != nil {
		return domain.UserAccount{}, fmt.Errorf("%w: failed to append event: %v", apperrors.ErrPersistence, err)
	}

	var totalAll decimal.Decimal
	err = tx.QueryRow(ctx, `
		SELECT total_all FROM ledger_meta WHERE id = 1 FOR UPDATE;
	`).Scan(&totalAll)
	if err != nil {
		return domain.UserAccount{}, fmt.Errorf("%w: failed to lock meta: %v", apperrors.ErrPersistence, err)
	}
	totalAll = domain.AddRounded(totalAll, amount)
	if _, err := tx.Exec(ctx, `
		UPDATE ledger_meta SET total_all = $1 WHERE id = 1;
	`, totalAll); err != nil {
		return domain.UserAccount{}, fmt.Errorf("%w: failed to update meta: %v", apperrors.ErrPersistence, err)
	}

	if err := r.Commit(ctx, tx); err != nil {
		return domain.UserAccount{}, err
	}

	history, err := r.eventsForUser(ctx, userID)
	if err != nil {
		return domain.UserAccount{}, err
	}
	return domain.UserAccount{Total: total, History: history}, nil
}

// Load materializes the full ledger state.
func (r *LedgerRepository) Load(ctx context.Context) (domain.Snapshot, error) {
	snap := domain.NewSnapshot()

	rows, err := r.Pool.Query(ctx, `SELECT user_id, total FROM ledger_accounts;`)
	if err != nil {
		return snap, fmt.Errorf("%w: failed to list accounts: %v", apperrors.ErrPersistence, err)
	}
	defer rows.Close()
	for rows.Next() {
		var userID string
		var total decimal.Decimal
		if err := rows.Scan(&userID, &total); err != nil {
			return snap, fmt.Errorf("%w: %v", apperrors.ErrPersistence, err)
		}
		snap.Users[userID] = &domain.UserAccount{Total: total}
	}
	if err := rows.Err(); err != nil {
		return snap, fmt.Errorf("%w: %v", apperrors.ErrPersistence, err)
	}
	rows.Close()

	evRows, err := r.Pool.Query(ctx, `
		SELECT user_id, ts, amount, source, COALESCE(event_id, '')
		FROM ledger_events ORDER BY event_seq;
	`)
	if err != nil {
		return snap, fmt.Errorf("%w: failed to list events: %v", apperrors.ErrPersistence, err)
	}
	defer evRows.Close()
	for evRows.Next() {
		var userID string
		var ev domain.PurchaseEvent
		var source string
		if err := evRows.Scan(&userID, &ev.TS, &ev.Amount, &source, &ev.EventID); err != nil {
			return snap, fmt.Errorf("%w: %v", apperrors.ErrPersistence, err)
		}
		ev.Source = domain.ContributionSource(source)
		if acct, ok := snap.Users[userID]; ok {
			acct.History = append(acct.History, ev)
		}
	}
	if err := evRows.Err(); err != nil {
		return snap, fmt.Errorf("%w: %v", apperrors.ErrPersistence, err)
	}

	err = r.Pool.QueryRow(ctx, `SELECT total_all FROM ledger_meta WHERE id = 1;`).Scan(&snap.Meta.TotalAll)
	if err != nil {
		return snap, fmt.Errorf("%w: failed to read meta: %v", apperrors.ErrPersistence, err)
	}
	return snap, nil
}

// FindUser returns the account for userID, or apperrors.ErrNotFound.
func (r *LedgerRepository) FindUser(ctx context.Context, userID string) (*domain.UserAccount, error) {
	var total decimal.Decimal
	err := r.Pool.QueryRow(ctx, `
		SELECT total FROM ledger_accounts WHERE user_id = $1;
	`, userID).Scan(&total)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %s", apperrors.ErrNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrPersistence, err)
	}

	history, err := r.eventsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &domain.UserAccount{Total: total, History: history}, nil
}

// Backup dumps the current snapshot as JSON into the backup directory. The
// on-disk layout matches the jsonfile backend's backups.
func (r *LedgerRepository) Backup(ctx context.Context) (string, error) {
	snap, err := r.Load(ctx)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrPersistence, err)
	}
	if err := os.MkdirAll(r.backupDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrPersistence, err)
	}
	ts := strings.NewReplacer(":", "-", ".", "-").Replace(time.Now().UTC().Format(time.RFC3339Nano))
	dest := filepath.Join(r.backupDir, fmt.Sprintf("db-backup-%s.json", ts))
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrPersistence, err)
	}
	return dest, nil
}

func (r *LedgerRepository) eventsForUser(ctx context.Context, userID string) ([]domain.PurchaseEvent, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT ts, amount, source, COALESCE(event_id, '')
		FROM ledger_events WHERE user_id = $1 ORDER BY event_seq;
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list events: %v", apperrors.ErrPersistence, err)
	}
	defer rows.Close()

	var history []domain.PurchaseEvent
	for rows.Next() {
		var ev domain.PurchaseEvent
		var source string
		if err := rows.Scan(&ev.TS, &ev.Amount, &source, &ev.EventID); err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrPersistence, err)
		}
		ev.Source = domain.ContributionSource(source)
		history = append(history, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrPersistence, err)
	}
	return history, nil
}
