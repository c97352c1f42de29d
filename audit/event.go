package audit

import "time"

// Kind classifies an audit event.
type Kind string

const (
	KindSessionCreated  Kind = "SESSION_CREATED"
	KindSessionExtended Kind = "SESSION_EXTENDED"
	KindSessionRevoked  Kind = "SESSION_REVOKED"
	KindBackupGenerated Kind = "BACKUP_GENERATED"
	KindBackupRestored  Kind = "BACKUP_RESTORED"
	KindKeyAccessed     Kind = "KEY_ACCESSED"
	KindSecurityWarning Kind = "SECURITY_WARNING"
)

// Severity ranks an audit event.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Event is one immutable ledger entry.
type Event struct {
	ID        uint64                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	Kind      Kind                   `json:"kind"`
	SessionID string                 `json:"sessionId,omitempty"`
	PublicKey string                 `json:"publicKey,omitempty"`
	Severity  Severity               `json:"severity"`
	Detail    map[string]interface{} `json:"detail,omitempty"`
}

// Summary aggregates the retained events.
type Summary struct {
	TotalEvents             int        `json:"totalEvents"`
	CriticalCount           int        `json:"criticalEvents"`
	HighCount               int        `json:"highSeverityEvents"`
	DistinctSessionsLast24h int        `json:"recentSessions"`
	LastActivity            *time.Time `json:"lastActivity,omitempty"`
}
