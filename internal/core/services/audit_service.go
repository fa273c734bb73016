package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/easebot/rankledger/internal/core/domain"
	"github.com/easebot/rankledger/internal/core/ports"
	"github.com/google/uuid"
)

// AuditService records accepted and rejected events through a buffered
// background writer. Auditing is best-effort: a full buffer drops the entry
// with a warning rather than slowing or failing the request path, and the
// audit store is never transactionally linked to the ledger.
type AuditService struct {
	repo    ports.AuditRepository
	entryCh chan domain.AuditEntry
	logger  *slog.Logger
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewAuditService creates an AuditService with the given buffer size.
func NewAuditService(repo ports.AuditRepository, bufferSize int, logger *slog.Logger) *AuditService {
	ctx, cancel := context.WithCancel(context.Background())
	return &AuditService{
		repo:    repo,
		entryCh: make(chan domain.AuditEntry, bufferSize),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the background writer.
func (s *AuditService) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-s.ctx.Done():
				s.logger.Info("draining audit entries before shutdown", slog.Int("remaining", len(s.entryCh)))
				for len(s.entryCh) > 0 {
					entry := <-s.entryCh
					if err := s.repo.Append(context.Background(), entry); err != nil {
						s.logger.Error("failed to append audit entry during shutdown", slog.String("error", err.Error()), slog.String("type", string(entry.Type)))
					}
				}
				return
			case entry := <-s.entryCh:
				if err := s.repo.Append(s.ctx, entry); err != nil {
					s.logger.Error("failed to append audit entry", slog.String("error", err.Error()), slog.String("type", string(entry.Type)))
				}
			}
		}
	}()
}

// Record queues an audit entry. Non-blocking.
func (s *AuditService) Record(typ domain.AuditType, fields map[string]any) {
	entry := domain.AuditEntry{
		ID:     uuid.NewString(),
		TS:     time.Now().UTC(),
		Type:   typ,
		Fields: fields,
	}
	select {
	case s.entryCh <- entry:
	default:
		s.logger.Warn("audit buffer full, dropping entry", slog.String("type", string(typ)))
	}
}

// Recent returns up to limit entries, newest first.
func (s *AuditService) Recent(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	return s.repo.Recent(ctx, limit)
}

// Shutdown stops the writer after draining queued entries.
func (s *AuditService) Shutdown() {
	s.cancel()
	s.wg.Wait()
}
