package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists audit records. Records are never updated or deleted.
type Store interface {
	Append(ctx context.Context, rec Record) error
	ListByUser(ctx context.Context, userID string, limit int) ([]Record, error)
	ListByLoan(ctx context.Context, loanID string) ([]Record, error)
}

// PostgresStore writes audit records to PostgreSQL, with the structured
// payload held as jsonb.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore builds a Postgres-backed audit store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Append inserts an audit record.
func (s *PostgresStore) Append(ctx context.Context, rec Record) error {
	recID, err := uuid.Parse(rec.ID)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(rec.Data)
	if err != nil {
		return err
	}
	var userID any
	if rec.UserID != "" {
		userID = rec.UserID
	}
	_, err = s.db.Exec(ctx, `INSERT INTO audit_logs (id, user_id, event_kind, event_data, channel, ip_address, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		recID, userID, rec.EventKind, payload, rec.Channel, rec.IPAddress, rec.CreatedAt.UTC())
	return err
}

// ListByUser returns the most recent records for a user, newest first.
func (s *PostgresStore) ListByUser(ctx context.Context, userID string, limit int) ([]Record, error) {
	rows, err := s.db.Query(ctx, `SELECT id, COALESCE(user_id::text, ''), event_kind, event_data, channel, ip_address, created_at
        FROM audit_logs WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// ListByLoan returns every loan-related record carrying the given loan id,
// oldest first.
func (s *PostgresStore) ListByLoan(ctx context.Context, loanID string) ([]Record, error) {
	rows, err := s.db.Query(ctx, `SELECT id, COALESCE(user_id::text, ''), event_kind, event_data, channel, ip_address, created_at
        FROM audit_logs
        WHERE event_kind = ANY($1) AND event_data->>'loan_id' = $2
        ORDER BY created_at ASC`,
		[]string{EventLoanRequest, EventLoanDecision, EventPayoutSimulated, EventRepay, EventLoanOverdue}, loanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

type pgxRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanRecords(rows pgxRows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var (
			id      uuid.UUID
			rec     Record
			payload []byte
			created time.Time
		)
		if err := rows.Scan(&id, &rec.UserID, &rec.EventKind, &payload, &rec.Channel, &rec.IPAddress, &created); err != nil {
			return nil, err
		}
		rec.ID = id.String()
		rec.CreatedAt = created.UTC()
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &rec.Data); err != nil {
				return nil, err
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
