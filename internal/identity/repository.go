package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrUserExists indicates the MSISDN is already registered.
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound indicates no user is registered for the MSISDN.
	ErrUserNotFound = errors.New("user not found")
)

// Repository persists users.
type Repository interface {
	Create(ctx context.Context, user User) error
	Delete(ctx context.Context, id string) error
	FindByMSISDN(ctx context.Context, msisdn string) (User, error)
	FindByID(ctx context.Context, id string) (User, error)
	SetPIN(ctx context.Context, id string, hash []byte) error
	BumpUsage(ctx context.Context, id, channel string, at time.Time) error
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed user repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new user. The unique index on msisdn enforces one account
// per subscriber number.
func (r *PostgresRepository) Create(ctx context.Context, user User) error {
	userID, err := uuid.Parse(user.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO users (id, msisdn, full_name, pin_hash, created_at, last_seen, ussd_usage_count, app_usage_count)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		userID, user.MSISDN, user.FullName, user.PINHash, user.CreatedAt.UTC(), user.LastSeen.UTC(),
		user.USSDUsageCount, user.AppUsageCount)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrUserExists
		}
		return err
	}
	return nil
}

// Delete removes a user record. Only used to unwind a failed registration;
// dependent rows cascade at the schema level.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	userID, err := uuid.Parse(id)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	return err
}

// FindByMSISDN fetches a user by subscriber number.
func (r *PostgresRepository) FindByMSISDN(ctx context.Context, msisdn string) (User, error) {
	row := r.db.QueryRow(ctx, `SELECT id, msisdn, full_name, pin_hash, created_at, last_seen, ussd_usage_count, app_usage_count
        FROM users WHERE msisdn = $1`, msisdn)
	return scanUser(row)
}

// FindByID fetches a user by identifier.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return User{}, err
	}
	row := r.db.QueryRow(ctx, `SELECT id, msisdn, full_name, pin_hash, created_at, last_seen, ussd_usage_count, app_usage_count
        FROM users WHERE id = $1`, userID)
	return scanUser(row)
}

// SetPIN stores the hashed PIN credential.
func (r *PostgresRepository) SetPIN(ctx context.Context, id string, hash []byte) error {
	userID, err := uuid.Parse(id)
	if err != nil {
		return err
	}
	cmd, err := r.db.Exec(ctx, `UPDATE users SET pin_hash = $1 WHERE id = $2`, hash, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// BumpUsage increments the per-channel usage counter and refreshes last_seen.
func (r *PostgresRepository) BumpUsage(ctx context.Context, id, channel string, at time.Time) error {
	userID, err := uuid.Parse(id)
	if err != nil {
		return err
	}
	column := "app_usage_count"
	if channel == ChannelUSSD {
		column = "ussd_usage_count"
	}
	cmd, err := r.db.Exec(ctx, `UPDATE users SET `+column+` = `+column+` + 1, last_seen = $1 WHERE id = $2`, at.UTC(), userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (User, error) {
	var (
		id       uuid.UUID
		user     User
		created  time.Time
		lastSeen time.Time
	)
	if err := row.Scan(&id, &user.MSISDN, &user.FullName, &user.PINHash, &created, &lastSeen,
		&user.USSDUsageCount, &user.AppUsageCount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}
	user.ID = id.String()
	user.CreatedAt = created.UTC()
	user.LastSeen = lastSeen.UTC()
	return user, nil
}
