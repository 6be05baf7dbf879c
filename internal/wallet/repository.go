package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrWalletNotFound indicates no wallet exists for the requested user.
var ErrWalletNotFound = errors.New("wallet not found")

// Repository persists wallets.
type Repository interface {
	Create(ctx context.Context, w Wallet) error
	GetByUser(ctx context.Context, userID string) (Wallet, error)
}

// PostgresRepository stores wallets in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a wallet record.
func (r *PostgresRepository) Create(ctx context.Context, w Wallet) error {
	walletID, err := uuid.Parse(w.ID)
	if err != nil {
		return err
	}
	userID, err := uuid.Parse(w.UserID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO wallets (id, user_id, balance, savings_balance, created_at)
        VALUES ($1, $2, $3, $4, $5)`, walletID, userID, w.Balance, w.SavingsBalance, w.CreatedAt.UTC())
	return err
}

// GetByUser fetches the wallet owned by the given user.
func (r *PostgresRepository) GetByUser(ctx context.Context, userID string) (Wallet, error) {
	row := r.db.QueryRow(ctx, `SELECT id, user_id, balance, savings_balance, created_at
        FROM wallets WHERE user_id = $1`, userID)
	var (
		w         Wallet
		id        uuid.UUID
		owner     uuid.UUID
		createdAt time.Time
	)
	if err := row.Scan(&id, &owner, &w.Balance, &w.SavingsBalance, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrWalletNotFound
		}
		return Wallet{}, err
	}
	w.ID = id.String()
	w.UserID = owner.String()
	w.CreatedAt = createdAt.UTC()
	return w, nil
}
