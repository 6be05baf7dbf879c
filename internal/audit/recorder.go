package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Recorder appends events to the audit store. Emission is best-effort: a
// failed append is logged and swallowed so that traceability loss never
// blocks the primary operation.
type Recorder struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewRecorder builds an audit recorder over the given store.
func NewRecorder(store Store, logger *slog.Logger) *Recorder {
	return &Recorder{store: store, logger: logger, now: time.Now}
}

// Event captures the variable parts of an audit record.
type Event struct {
	Kind      string
	UserID    string
	Data      map[string]any
	Channel   string
	IPAddress string
}

// Record appends an audit event.
func (r *Recorder) Record(ctx context.Context, ev Event) {
	if r == nil || r.store == nil {
		return
	}
	rec := Record{
		ID:        uuid.NewString(),
		UserID:    ev.UserID,
		EventKind: ev.Kind,
		Data:      ev.Data,
		Channel:   ev.Channel,
		IPAddress: ev.IPAddress,
		CreatedAt: r.now().UTC(),
	}
	if err := r.store.Append(ctx, rec); err != nil && r.logger != nil {
		r.logger.Warn("audit append failed",
			slog.String("event_kind", ev.Kind),
			slog.String("user_id", ev.UserID),
			slog.Any("error", err),
		)
	}
}

// UserLogs returns the most recent audit records for a user.
func (r *Recorder) UserLogs(ctx context.Context, userID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	return r.store.ListByUser(ctx, userID, limit)
}

// LoanTrail returns the audit events correlated to a loan, oldest first.
func (r *Recorder) LoanTrail(ctx context.Context, loanID string) ([]Record, error) {
	return r.store.ListByLoan(ctx, loanID)
}
