package loan

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lisalisi-cash/lisalisi_cash/internal/scoring"
)

var (
	// ErrLoanNotFound indicates the loan does not exist or belongs to
	// another user.
	ErrLoanNotFound = errors.New("loan not found")
	// ErrLoanAlreadyActive indicates the user already has a loan in a
	// non-terminal state.
	ErrLoanAlreadyActive = errors.New("an active loan already exists")
)

// Repository persists loans. Create enforces at most one open loan per user;
// violations surface as ErrLoanAlreadyActive.
type Repository interface {
	Create(ctx context.Context, l Loan) error
	Update(ctx context.Context, l Loan) error
	FindByID(ctx context.Context, userID, loanID string) (Loan, error)
	ListByUser(ctx context.Context, userID string) ([]Loan, error)
	Counts(ctx context.Context, userID string) (scoring.LoanCounts, error)
	MarkOverdue(ctx context.Context, now time.Time) ([]Loan, error)
}

// PostgresRepository stores loans in PostgreSQL. The loans table carries a
// partial unique index on user_id restricted to PENDING/ACTIVE/OVERDUE rows,
// which closes the check-then-act race on concurrent requests.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed loan repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new loan.
func (r *PostgresRepository) Create(ctx context.Context, l Loan) error {
	loanID, err := uuid.Parse(l.ID)
	if err != nil {
		return err
	}
	userID, err := uuid.Parse(l.UserID)
	if err != nil {
		return err
	}
	var dueDate, repaidAt any
	if l.DueDate != nil {
		dueDate = l.DueDate.UTC()
	}
	if l.RepaidAt != nil {
		repaidAt = l.RepaidAt.UTC()
	}
	_, err = r.db.Exec(ctx, `INSERT INTO loans
        (id, user_id, requested_amount, approved_amount, remaining, interest_rate,
         duration_days, status, score_at_request, score_explanation, decision_reason,
         channel, disbursement_ref, due_date, requested_at, decided_at, repaid_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		loanID, userID, l.RequestedAmount, l.ApprovedAmount, l.Remaining, l.InterestRate,
		l.DurationDays, string(l.Status), l.ScoreAtRequest, l.ScoreExplanation, l.DecisionReason,
		l.Channel, l.DisbursementRef, dueDate, l.RequestedAt.UTC(), l.DecidedAt.UTC(), repaidAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrLoanAlreadyActive
	}
	return err
}

// Update rewrites the mutable fields of an existing loan: the repayment
// balance and status, plus the disbursement reference and due date written
// after the payout.
func (r *PostgresRepository) Update(ctx context.Context, l Loan) error {
	var dueDate, repaidAt any
	if l.DueDate != nil {
		dueDate = l.DueDate.UTC()
	}
	if l.RepaidAt != nil {
		repaidAt = l.RepaidAt.UTC()
	}
	tag, err := r.db.Exec(ctx, `UPDATE loans
        SET remaining = $1, status = $2, disbursement_ref = $3, due_date = $4, repaid_at = $5
        WHERE id = $6 AND user_id = $7`,
		l.Remaining, string(l.Status), l.DisbursementRef, dueDate, repaidAt, l.ID, l.UserID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLoanNotFound
	}
	return nil
}

const loanColumns = `id, user_id, requested_amount, approved_amount, remaining, interest_rate,
        duration_days, status, score_at_request, score_explanation, decision_reason,
        channel, disbursement_ref, due_date, requested_at, decided_at, repaid_at`

// FindByID fetches a loan owned by the given user.
func (r *PostgresRepository) FindByID(ctx context.Context, userID, loanID string) (Loan, error) {
	row := r.db.QueryRow(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = $1 AND user_id = $2`,
		loanID, userID)
	l, err := scanLoan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Loan{}, ErrLoanNotFound
	}
	return l, err
}

// ListByUser returns the user's loans, newest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]Loan, error) {
	rows, err := r.db.Query(ctx, `SELECT `+loanColumns+` FROM loans
        WHERE user_id = $1 ORDER BY requested_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var loans []Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, l)
	}
	return loans, rows.Err()
}

// Counts aggregates the user's loan book for the scoring engine.
func (r *PostgresRepository) Counts(ctx context.Context, userID string) (scoring.LoanCounts, error) {
	row := r.db.QueryRow(ctx, `SELECT
            COUNT(*),
            COUNT(*) FILTER (WHERE status = 'REPAID'),
            COUNT(*) FILTER (WHERE status = 'OVERDUE'),
            COUNT(*) FILTER (WHERE status IN ('PENDING', 'ACTIVE', 'OVERDUE')) > 0
        FROM loans WHERE user_id = $1`, userID)
	var c scoring.LoanCounts
	if err := row.Scan(&c.Total, &c.Repaid, &c.Overdue, &c.HasOpen); err != nil {
		return scoring.LoanCounts{}, err
	}
	return c, nil
}

// MarkOverdue flips ACTIVE loans past their due date to OVERDUE and returns
// the affected loans.
func (r *PostgresRepository) MarkOverdue(ctx context.Context, now time.Time) ([]Loan, error) {
	rows, err := r.db.Query(ctx, `UPDATE loans SET status = 'OVERDUE'
        WHERE status = 'ACTIVE' AND due_date < $1
        RETURNING `+loanColumns, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var loans []Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, l)
	}
	return loans, rows.Err()
}

func scanLoan(row pgx.Row) (Loan, error) {
	var (
		l        Loan
		id       uuid.UUID
		userID   uuid.UUID
		status   string
		dueDate  *time.Time
		repaidAt *time.Time
	)
	err := row.Scan(&id, &userID, &l.RequestedAmount, &l.ApprovedAmount, &l.Remaining,
		&l.InterestRate, &l.DurationDays, &status, &l.ScoreAtRequest, &l.ScoreExplanation,
		&l.DecisionReason, &l.Channel, &l.DisbursementRef, &dueDate, &l.RequestedAt,
		&l.DecidedAt, &repaidAt)
	if err != nil {
		return Loan{}, err
	}
	l.ID = id.String()
	l.UserID = userID.String()
	l.Status = Status(status)
	if dueDate != nil {
		t := dueDate.UTC()
		l.DueDate = &t
	}
	if repaidAt != nil {
		t := repaidAt.UTC()
		l.RepaidAt = &t
	}
	return l, nil
}
