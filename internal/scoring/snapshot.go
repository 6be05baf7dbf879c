package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lisalisi-cash/lisalisi_cash/internal/mobilemoney"
)

// ErrSnapshotNotFound indicates the user has no cached score yet.
var ErrSnapshotNotFound = errors.New("scoring snapshot not found")

// Snapshot caches the inputs and outcome of the last score computation for a
// user. It is not authoritative: loans capture their own score at request
// time.
type Snapshot struct {
	UserID         string
	AccountAgeDays int
	USSDUsageCount int
	AppUsageCount  int
	TotalLoans     int
	RepaidLoans    int
	OverdueLoans   int
	Signals        mobilemoney.Signals
	Score          int
	ScoreVersion   string
	Factors        Factors
	CalculatedAt   time.Time
}

// SnapshotRepository persists one snapshot per user.
type SnapshotRepository interface {
	Get(ctx context.Context, userID string) (Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
}

// PostgresSnapshots stores snapshots in PostgreSQL with the signal and factor
// breakdowns held as jsonb.
type PostgresSnapshots struct {
	db *pgxpool.Pool
}

// NewPostgresSnapshots builds a Postgres-backed snapshot repository.
func NewPostgresSnapshots(db *pgxpool.Pool) *PostgresSnapshots {
	return &PostgresSnapshots{db: db}
}

// Get fetches the cached snapshot for a user.
func (r *PostgresSnapshots) Get(ctx context.Context, userID string) (Snapshot, error) {
	row := r.db.QueryRow(ctx, `SELECT user_id, account_age_days, ussd_usage_count, app_usage_count,
            total_loans, repaid_loans, overdue_loans, signals, score, score_version, factors, calculated_at
        FROM scoring_snapshots WHERE user_id = $1`, userID)

	var (
		snap       Snapshot
		signals    []byte
		factors    []byte
		calculated time.Time
	)
	err := row.Scan(&snap.UserID, &snap.AccountAgeDays, &snap.USSDUsageCount, &snap.AppUsageCount,
		&snap.TotalLoans, &snap.RepaidLoans, &snap.OverdueLoans, &signals, &snap.Score, &snap.ScoreVersion,
		&factors, &calculated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Snapshot{}, ErrSnapshotNotFound
		}
		return Snapshot{}, err
	}
	if err := json.Unmarshal(signals, &snap.Signals); err != nil {
		return Snapshot{}, err
	}
	if err := json.Unmarshal(factors, &snap.Factors); err != nil {
		return Snapshot{}, err
	}
	snap.CalculatedAt = calculated.UTC()
	return snap, nil
}

// Save upserts the snapshot for a user.
func (r *PostgresSnapshots) Save(ctx context.Context, snap Snapshot) error {
	signals, err := json.Marshal(snap.Signals)
	if err != nil {
		return err
	}
	factors, err := json.Marshal(snap.Factors)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO scoring_snapshots (user_id, account_age_days, ussd_usage_count,
            app_usage_count, total_loans, repaid_loans, overdue_loans, signals, score, score_version, factors, calculated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        ON CONFLICT (user_id) DO UPDATE SET
            account_age_days = EXCLUDED.account_age_days,
            ussd_usage_count = EXCLUDED.ussd_usage_count,
            app_usage_count = EXCLUDED.app_usage_count,
            total_loans = EXCLUDED.total_loans,
            repaid_loans = EXCLUDED.repaid_loans,
            overdue_loans = EXCLUDED.overdue_loans,
            signals = EXCLUDED.signals,
            score = EXCLUDED.score,
            score_version = EXCLUDED.score_version,
            factors = EXCLUDED.factors,
            calculated_at = EXCLUDED.calculated_at`,
		snap.UserID, snap.AccountAgeDays, snap.USSDUsageCount, snap.AppUsageCount,
		snap.TotalLoans, snap.RepaidLoans, snap.OverdueLoans, signals, snap.Score, snap.ScoreVersion,
		factors, snap.CalculatedAt.UTC())
	return err
}
