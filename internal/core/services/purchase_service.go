package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/easebot/rankledger/internal/apperrors"
	"github.com/easebot/rankledger/internal/core/domain"
	"github.com/easebot/rankledger/internal/core/ports"
	"github.com/easebot/rankledger/internal/signature"
	"github.com/shopspring/decimal"
)

// Receipt is the outcome of an accepted contribution.
type Receipt struct {
	UserID    string           `json:"userID"`
	Amount    decimal.Decimal  `json:"amount"`
	Total     decimal.Decimal  `json:"total"`
	Promotion *domain.RankTier `json:"promotion,omitempty"`
	// Note carries soft-fail detail for accepted contributions (member not in
	// guild, duplicate delivery, ...). Empty on the plain success path.
	Note string `json:"note,omitempty"`
}

// PurchaseService orchestrates the ingestion pipeline for both the webhook
// path and the manual path: verify, persist, resolve, sync roles, notify.
// Verification and payload validation reject before any mutation; once the
// ledger mutation is committed, collaborator failures are logged and swallowed
// and the contribution is still reported as accepted.
type PurchaseService struct {
	verifier  *signature.Verifier
	ledger    *LedgerService
	ranks     *RankService
	roles     ports.RoleManager // nil when the role collaborator is unconfigured
	announcer ports.Announcer   // nil when the announcement channel is unconfigured
	audit     *AuditService
	logger    *slog.Logger
}

// NewPurchaseService creates a new PurchaseService.
func NewPurchaseService(verifier *signature.Verifier, ledger *LedgerService, ranks *RankService, roles ports.RoleManager, announcer ports.Announcer, audit *AuditService, logger *slog.Logger) *PurchaseService {
	return &PurchaseService{
		verifier:  verifier,
		ledger:    ledger,
		ranks:     ranks,
		roles:     roles,
		announcer: announcer,
		audit:     audit,
		logger:    logger,
	}
}

// IngestWebhook processes one signed webhook delivery. rawBody must be the
// exact bytes as received; the signature is computed over them, never over a
// re-serialized form.
func (s *PurchaseService) IngestWebhook(ctx context.Context, rawBody []byte, sig string, clientIP string) (*Receipt, error) {
	// Fail closed before anything else: with no secret configured the
	// request can never be accepted.
	if !s.verifier.Configured() {
		s.audit.Record(domain.AuditHMACMissing, nil)
		return nil, fmt.Errorf("%w: webhook secret not configured", apperrors.ErrConfiguration)
	}

	sig = strings.TrimSpace(sig)
	if sig == "" {
		s.audit.Record(domain.AuditMissingSignature, map[string]any{"ip": clientIP})
		return nil, fmt.Errorf("%w: missing signature", apperrors.ErrAuthentication)
	}

	if err := s.verifier.Verify(rawBody, sig); err != nil {
		s.audit.Record(domain.AuditInvalidSignature, map[string]any{"ip": clientIP})
		return nil, err
	}

	buyerID, amount, eventID, err := decodePayload(rawBody)
	if err != nil {
		// The raw payload is kept in the audit trail for diagnosis.
		s.audit.Record(domain.AuditBadPayload, map[string]any{"payload": string(rawBody)})
		return nil, err
	}

	acct, err := s.ledger.RecordContribution(ctx, buyerID, amount, domain.SourceWebhook, eventID)
	if errors.Is(err, apperrors.ErrDuplicateEvent) {
		s.audit.Record(domain.AuditDuplicateEvent, map[string]any{"buyerId": buyerID, "eventId": eventID})
		return &Receipt{UserID: buyerID, Amount: amount, Note: "duplicate event ignored"}, nil
	}
	if err != nil {
		s.audit.Record(domain.AuditWebhookError, map[string]any{"buyerId": buyerID, "error": err.Error()})
		return nil, err
	}
	s.audit.Record(domain.AuditPurchase, map[string]any{"buyerId": buyerID, "amount": amount.String()})

	receipt := &Receipt{UserID: buyerID, Amount: amount, Total: acct.Total}
	receipt.Promotion, receipt.Note = s.syncAndAnnounce(ctx, buyerID, acct.Total, domain.AuditRoleAddedWebhook)
	return receipt, nil
}

// IngestManual processes a contribution from an authenticated session
// identity. Role sync and the announcement run after the fact so the caller's
// response stays fast; the ledger mutation and tier resolution are synchronous.
func (s *PurchaseService) IngestManual(ctx context.Context, userID string, amount decimal.Decimal) (*Receipt, error) {
	acct, err := s.ledger.RecordContribution(ctx, userID, amount, domain.SourceManual, "")
	if err != nil {
		if !errors.Is(err, apperrors.ErrValidation) {
			s.audit.Record(domain.AuditCommandError, map[string]any{"userId": userID, "error": err.Error()})
		}
		return nil, err
	}
	s.audit.Record(domain.AuditManualPurchase, map[string]any{"userId": userID, "amount": amount.String()})

	receipt := &Receipt{
		UserID:    userID,
		Amount:    amount,
		Total:     acct.Total,
		Promotion: s.ranks.Resolve(acct.Total),
	}

	syncCtx := context.WithoutCancel(ctx)
	go func() {
		s.syncAndAnnounce(syncCtx, userID, acct.Total, domain.AuditRoleAddedManual)
	}()
	return receipt, nil
}

// syncAndAnnounce applies the promotion plan for the user's current total and
// emits the announcement when a tier change occurred. Individual collaborator
// failures never propagate: persistence is authoritative, role state is
// best-effort and re-derived on the next contribution.
func (s *PurchaseService) syncAndAnnounce(ctx context.Context, userID string, total decimal.Decimal, auditType domain.AuditType) (*domain.RankTier, string) {
	target := s.ranks.Resolve(total)
	if target == nil {
		return nil, ""
	}
	if s.roles == nil {
		return nil, "saved but guild not found"
	}

	held, err := s.roles.MemberRoles(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, "saved but member not in guild"
		}
		s.logger.Error("failed to fetch member roles", slog.String("user_id", userID), slog.String("error", err.Error()))
		s.audit.Record(domain.AuditRoleSyncError, map[string]any{"userId": userID, "error": err.Error()})
		return nil, ""
	}

	plan := s.ranks.PlanPromotion(held, target)
	if !plan.Changed() {
		return nil, ""
	}

	// Removals complete before the add so the user is never observed holding
	// two tiers at once.
	for _, roleID := range plan.ToRemove {
		if err := s.roles.RemoveRole(ctx, userID, roleID); err != nil {
			s.logger.Error("failed to remove role", slog.String("user_id", userID), slog.String("role_id", roleID), slog.String("error", err.Error()))
			s.audit.Record(domain.AuditRoleSyncError, map[string]any{"userId": userID, "role": roleID, "error": err.Error()})
		}
	}
	if plan.ToAdd == "" {
		return nil, ""
	}
	if err := s.roles.AddRole(ctx, userID, plan.ToAdd); err != nil {
		s.logger.Error("failed to add role", slog.String("user_id", userID), slog.String("role_id", plan.ToAdd), slog.String("error", err.Error()))
		s.audit.Record(domain.AuditRoleSyncError, map[string]any{"userId": userID, "role": plan.ToAdd, "error": err.Error()})
		return nil, ""
	}
	s.audit.Record(auditType, map[string]any{"userId": userID, "role": plan.ToAdd})

	if s.announcer != nil {
		if err := s.announcer.AnnouncePromotion(ctx, userID, total, plan.ToAdd); err != nil {
			s.logger.Warn("failed to announce promotion", slog.String("user_id", userID), slog.String("error", err.Error()))
		}
	}
	return target, ""
}

// decodePayload extracts the buyer identifier (under buyer_id, user_id or id,
// normalized to digits only), the amount (under amount or value) and the
// optional event_id from a webhook payload.
func decodePayload(raw []byte) (userID string, amount decimal.Decimal, eventID string, err error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return "", decimal.Zero, "", fmt.Errorf("%w: bad payload", apperrors.ErrValidation)
	}

	for _, key := range []string{"buyer_id", "user_id", "id"} {
		if v, ok := payload[key]; ok {
			userID = digitsOnly(fmt.Sprint(v))
			if userID != "" {
				break
			}
		}
	}

	for _, key := range []string{"amount", "value"} {
		v, ok := payload[key]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case json.Number:
			amount, err = decimal.NewFromString(n.String())
		case string:
			amount, err = decimal.NewFromString(n)
		default:
			err = fmt.Errorf("unsupported amount type %T", v)
		}
		break
	}
	if v, ok := payload["event_id"].(string); ok {
		eventID = v
	}

	if userID == "" || err != nil || !amount.IsPositive() {
		return "", decimal.Zero, "", fmt.Errorf("%w: bad payload", apperrors.ErrValidation)
	}
	return userID, amount, eventID, nil
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}
