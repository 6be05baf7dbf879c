package consent

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrConsentNotFound indicates no record exists for the (user, kind) pair.
var ErrConsentNotFound = errors.New("consent not found")

// Repository persists consent records, at most one per (user, kind).
type Repository interface {
	Save(ctx context.Context, c Consent) error
	Find(ctx context.Context, userID string, kind Kind) (Consent, error)
}

// PostgresRepository stores consents in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed consent repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Save upserts the single record per (user, kind).
func (r *PostgresRepository) Save(ctx context.Context, c Consent) error {
	consentID, err := uuid.Parse(c.ID)
	if err != nil {
		return err
	}
	userID, err := uuid.Parse(c.UserID)
	if err != nil {
		return err
	}
	var acceptedAt any
	if !c.AcceptedAt.IsZero() {
		acceptedAt = c.AcceptedAt.UTC()
	}
	_, err = r.db.Exec(ctx, `INSERT INTO consents (id, user_id, consent_kind, version, accepted, channel, accepted_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (user_id, consent_kind)
        DO UPDATE SET version = EXCLUDED.version, accepted = EXCLUDED.accepted,
                      channel = EXCLUDED.channel, accepted_at = EXCLUDED.accepted_at`,
		consentID, userID, string(c.Kind), c.Version, c.Accepted, c.Channel, acceptedAt)
	return err
}

// Find fetches the record for the (user, kind) pair.
func (r *PostgresRepository) Find(ctx context.Context, userID string, kind Kind) (Consent, error) {
	row := r.db.QueryRow(ctx, `SELECT id, user_id, consent_kind, version, accepted, channel, accepted_at
        FROM consents WHERE user_id = $1 AND consent_kind = $2`, userID, string(kind))
	var (
		c          Consent
		id         uuid.UUID
		owner      uuid.UUID
		kindStr    string
		acceptedAt *time.Time
	)
	if err := row.Scan(&id, &owner, &kindStr, &c.Version, &c.Accepted, &c.Channel, &acceptedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Consent{}, ErrConsentNotFound
		}
		return Consent{}, err
	}
	c.ID = id.String()
	c.UserID = owner.String()
	c.Kind = Kind(kindStr)
	if acceptedAt != nil {
		c.AcceptedAt = acceptedAt.UTC()
	}
	return c, nil
}
