package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/easebot/rankledger/internal/apperrors"
	"github.com/easebot/rankledger/internal/core/domain"
	"github.com/easebot/rankledger/internal/core/ports"
)

const auditFileName = "logs.json"

// AuditRepository stores the audit log as a bounded JSON array. It is a
// separate store with its own lock: audit writes interleave freely with
// ledger writes and the two are not transactionally linked.
type AuditRepository struct {
	mu       sync.Mutex
	path     string
	capacity int
}

var _ ports.AuditRepository = (*AuditRepository)(nil)

// NewAuditRepository creates the log file if absent. A non-positive capacity
// falls back to domain.AuditLogCapacity.
func NewAuditRepository(dataDir string, capacity int) (*AuditRepository, error) {
	if capacity <= 0 {
		capacity = domain.AuditLogCapacity
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: failed to create data dir: %v", apperrors.ErrPersistence, err)
	}
	r := &AuditRepository{path: filepath.Join(dataDir, auditFileName), capacity: capacity}
	if _, err := os.Stat(r.path); errors.Is(err, fs.ErrNotExist) {
		if err := writeJSON(r.path, []domain.AuditEntry{}); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrPersistence, err)
	}
	return r, nil
}

// Append adds an entry, evicting the oldest entries once the ring exceeds its
// capacity (FIFO, recency preserved).
func (r *AuditRepository) Append(ctx context.Context, entry domain.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.load()
	if err != nil {
		return err
	}
	entries = append(entries, entry)
	if len(entries) > r.capacity {
		entries = entries[len(entries)-r.capacity:]
	}
	return writeJSON(r.path, entries)
}

// Recent returns up to limit entries, newest first.
func (r *AuditRepository) Recent(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.load()
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > len(entries) {
		limit = len(entries)
	}
	out := make([]domain.AuditEntry, 0, limit)
	for i := len(entries) - 1; i >= len(entries)-limit; i-- {
		out = append(out, entries[i])
	}
	return out, nil
}

func (r *AuditRepository) load() ([]domain.AuditEntry, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrPersistence, err)
	}
	var entries []domain.AuditEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrPersistence, err)
	}
	return entries, nil
}
