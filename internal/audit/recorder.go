// ABOUTME: Fire-and-observe audit recorder appending action records after mutations
// ABOUTME: Write failures are logged and swallowed, never surfaced to the caller

package audit

import (
	"context"
	"log/slog"

	"github.com/partforge/partforge/internal/store"
)

// AuditStore is the append side of the audit log.
type AuditStore interface {
	AppendAuditLog(ctx context.Context, e *store.AuditEntry) error
}

// Recorder appends audit entries after mutating operations. A failed
// append must not revert the primary operation it follows, so Record never
// returns an error.
type Recorder struct {
	store  AuditStore
	logger *slog.Logger
}

// NewRecorder creates a recorder over the given store.
func NewRecorder(s AuditStore) *Recorder {
	return &Recorder{
		store:  s,
		logger: slog.Default().With("component", "audit"),
	}
}

// Record appends one entry with a server-generated timestamp. userID is nil
// for actions without an authenticated caller.
func (r *Recorder) Record(ctx context.Context, userID *string, action string) {
	entry := &store.AuditEntry{
		UserID: userID,
		Action: action,
	}
	if err := r.store.AppendAuditLog(ctx, entry); err != nil {
		r.logger.Error("failed to append audit entry", "action", action, "error", err)
	}
}
