package domain

import "time"

// AuditType tags what an audit entry records.
type AuditType string

const (
	AuditPurchase         AuditType = "purchase"
	AuditManualPurchase   AuditType = "manual_purchase"
	AuditHMACMissing      AuditType = "hmac_missing"
	AuditMissingSignature AuditType = "missing_signature"
	AuditInvalidSignature AuditType = "invalid_signature"
	AuditBadPayload       AuditType = "bad_payload"
	AuditDuplicateEvent   AuditType = "duplicate_event"
	AuditRoleAddedWebhook AuditType = "role_added_webhook"
	AuditRoleAddedManual  AuditType = "role_added_manual"
	AuditRoleSyncError    AuditType = "role_sync_error"
	AuditBackupCreated    AuditType = "backup_created"
	AuditWebhookError     AuditType = "webhook_top_error"
	AuditCommandError     AuditType = "command_error"
)

// AuditEntry is one append-only record in the bounded audit log.
type AuditEntry struct {
	ID     string         `json:"id"`
	TS     time.Time      `json:"ts"`
	Type   AuditType      `json:"type"`
	Fields map[string]any `json:"fields,omitempty"`
}

// AuditLogCapacity bounds the audit ring; once exceeded the oldest entries are
// discarded from the front.
const AuditLogCapacity = 20000
