// Package jsonfile persists the ledger and audit log as whole-file JSON
// snapshots. Writes go to a temporary file which is renamed over the previous
// one, so a crash mid-write never leaves an observably partial file.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/easebot/rankledger/internal/apperrors"
	"github.com/easebot/rankledger/internal/core/domain"
	"github.com/easebot/rankledger/internal/core/ports"
	"github.com/shopspring/decimal"
)

const (
	ledgerFileName = "db.json"
	backupDirName  = "backups"
)

// LedgerRepository stores the full ledger snapshot in a single JSON file.
// Every mutation runs its whole load-mutate-save cycle under one mutex:
// persistence is whole-file, so per-user locking buys nothing, and
// interleaved load/save pairs would lose updates.
type LedgerRepository struct {
	mu   sync.Mutex
	path string
	dir  string
}

var _ ports.LedgerRepository = (*LedgerRepository)(nil)

// NewLedgerRepository creates the data directory, backup directory and an
// empty ledger file if absent.
func NewLedgerRepository(dataDir string) (*LedgerRepository, error) {
	if err := os.MkdirAll(filepath.Join(dataDir, backupDirName), 0o755); err != nil {
		return nil, fmt.Errorf("%w: failed to create data dir: %v", apperrors.ErrPersistence, err)
	}
	r := &LedgerRepository{path: filepath.Join(dataDir, ledgerFileName), dir: dataDir}
	if _, err := os.Stat(r.path); errors.Is(err, fs.ErrNotExist) {
		if err := writeJSON(r.path, domain.NewSnapshot()); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrPersistence, err)
	}
	return r, nil
}

// Load returns the full current ledger state.
func (r *LedgerRepository) Load(ctx context.Context) (domain.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

// ApplyContribution appends a purchase event and persists the updated
// snapshot atomically, within one load/save pair.
func (r *LedgerRepository) ApplyContribution(ctx context.Context, userID string, amount decimal.Decimal, source domain.ContributionSource, eventID string) (domain.UserAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap, err := r.load()
	if err != nil {
		return domain.UserAccount{}, err
	}

	if eventID != "" {
		if _, seen := snap.ProcessedEvents[eventID]; seen {
			return domain.UserAccount{}, fmt.Errorf("%w: %s", apperrors.ErrDuplicateEvent, eventID)
		}
	}

	now := time.Now().UTC()
	acct := snap.Account(userID)
	acct.Total = domain.AddRounded(acct.Total, amount)
	acct.History = append(acct.History, domain.PurchaseEvent{
		TS:      now,
		Amount:  amount,
		Source:  source,
		EventID: eventID,
	})
	snap.Meta.TotalAll = domain.AddRounded(snap.Meta.TotalAll, amount)

	if eventID != "" {
		if snap.ProcessedEvents == nil {
			snap.ProcessedEvents = make(map[string]time.Time)
		}
		snap.ProcessedEvents[eventID] = now
	}

	if err := writeJSON(r.path, snap); err != nil {
		return domain.UserAccount{}, err
	}
	return *acct, nil
}

// FindUser returns the account for userID, or apperrors.ErrNotFound.
func (r *LedgerRepository) FindUser(ctx context.Context, userID string) (*domain.UserAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap, err := r.load()
	if err != nil {
		return nil, err
	}
	acct, ok := snap.Users[userID]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", apperrors.ErrNotFound, userID)
	}
	return acct, nil
}

// Backup copies the current ledger file into the backup directory under a
// timestamped name and returns the destination path.
func (r *LedgerRepository) Backup(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrPersistence, err)
	}
	ts := strings.NewReplacer(":", "-", ".", "-").Replace(time.Now().UTC().Format(time.RFC3339Nano))
	dest := filepath.Join(r.dir, backupDirName, fmt.Sprintf("db-backup-%s.json", ts))
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrPersistence, err)
	}
	return dest, nil
}

func (r *LedgerRepository) load() (domain.Snapshot, error) {
	snap := domain.NewSnapshot()
	f, err := os.Open(r.path)
	if err != nil {
		return snap, fmt.Errorf("%w: %v", apperrors.ErrPersistence, err)
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(&snap); err != nil {
		return snap, fmt.Errorf("%w: %v", apperrors.ErrPersistence, err)
	}
	if snap.Users == nil {
		snap.Users = make(map[string]*domain.UserAccount)
	}
	return snap, nil
}

// writeJSON writes v to path atomically: encode into path+".tmp", then rename
// over the original. Indented output keeps the files hand-inspectable.
func writeJSON(path string, v any) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrPersistence, err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		f.Close()
		return fmt.Errorf("%w: %v", apperrors.ErrPersistence, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrPersistence, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrPersistence, err)
	}
	return nil
}
