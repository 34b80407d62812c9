package auth

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gatehouse-io/gatehouse/pkg/storage/postgres"
)

// Audit event names
const (
	EventLoginSuccess    = "login.success"
	EventLoginFailure    = "login.failure"
	EventLogout          = "logout"
	EventTokenRefresh    = "token.refresh"
	EventSessionRevoked  = "session.revoked"
	EventPasswordChange  = "password.change"
	EventPasswordReset   = "password.reset"
	EventResetTokenIssue = "password.reset_token_issued"
)

// AuditRecorder writes security-relevant auth events to the auth_events
// table. Recording is best-effort: callers log failures instead of failing
// the operation that produced the event.
type AuditRecorder struct {
	db postgres.DBTX
}

// NewAuditRecorder creates an audit recorder
func NewAuditRecorder(db postgres.DBTX) *AuditRecorder {
	return &AuditRecorder{db: db}
}

// WithTx returns a recorder bound to the given transaction
func (r *AuditRecorder) WithTx(tx postgres.DBTX) *AuditRecorder {
	return &AuditRecorder{db: tx}
}

// Record writes one auth event. userID may be nil for events with no
// resolved account (failed logins by unknown email).
func (r *AuditRecorder) Record(ctx context.Context, userID *int64, event string, metadata map[string]interface{}) error {
	if event == "" {
		return fmt.Errorf("event is required")
	}
	if metadata == nil {
		metadata = map[string]interface{}{}
	}

	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO auth_events (user_id, event, metadata) VALUES ($1, $2, $3)",
		userID, event, metadataJSON)
	if err != nil {
		return fmt.Errorf("failed to record auth event: %w", err)
	}
	return nil
}
