package crdb

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ledgerline/event-ticketing/internal/domain"
	"github.com/ledgerline/event-ticketing/internal/observability"
)

const (
	SerializationFailureCode = "40001"
	UniqueViolationCode      = "23505"
)

type Repository struct {
	pool      *pgxpool.Pool
	txTimeout time.Duration
}

func NewRepository(pool *pgxpool.Pool, txTimeout time.Duration) *Repository {
	if txTimeout <= 0 {
		txTimeout = 5 * time.Second
	}
	return &Repository{pool: pool, txTimeout: txTimeout}
}

// WithTx runs fn in a SERIALIZABLE transaction bounded by the configured
// timeout, so a mutation waiting on a row lock fails with a retryable error
// instead of blocking indefinitely. Serialization conflicts (40001) and
// deadline expiry both surface as domain.ErrSerializationFailure.
func (r *Repository) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, r.txTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		observability.DBTxDuration.Observe(time.Since(start).Seconds())
	}()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, "SET TRANSACTION ISOLATION LEVEL SERIALIZABLE")
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == SerializationFailureCode {
			return domain.ErrSerializationFailure
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.ErrSerializationFailure
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == SerializationFailureCode {
			return domain.ErrSerializationFailure
		}
		return err
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == UniqueViolationCode
}

// CreateAccount inserts the principal and its role-matched profile row in one
// transaction, so no principal is ever visible without a profile.
func (r *Repository) CreateAccount(ctx context.Context, p domain.Principal) (uuid.UUID, error) {
	profileID := uuid.New()
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO principals (id, email, name, role, password_hash, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, p.ID, p.Email, p.Name, string(p.Role), p.PasswordHash, p.CreatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.ErrEmailTaken
			}
			return errors.Wrap(err, "insert principal")
		}

		table := "customer_profiles"
		if p.Role == domain.RoleOrganizer {
			table = "organizer_profiles"
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO `+table+` (id, principal_id, created_at)
			VALUES ($1, $2, $3)
		`, profileID, p.ID, p.CreatedAt)
		if err != nil {
			return errors.Wrap(err, "insert profile")
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return profileID, nil
}

func (r *Repository) PrincipalByEmail(ctx context.Context, email string) (*domain.Principal, error) {
	return r.scanPrincipal(ctx, `
		SELECT id, email, name, role, password_hash, created_at
		FROM principals WHERE email = $1
	`, email)
}

func (r *Repository) PrincipalByID(ctx context.Context, id uuid.UUID) (*domain.Principal, error) {
	return r.scanPrincipal(ctx, `
		SELECT id, email, name, role, password_hash, created_at
		FROM principals WHERE id = $1
	`, id)
}

func (r *Repository) scanPrincipal(ctx context.Context, query string, arg interface{}) (*domain.Principal, error) {
	var p domain.Principal
	var role string
	err := r.pool.QueryRow(ctx, query, arg).
		Scan(&p.ID, &p.Email, &p.Name, &role, &p.PasswordHash, &p.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get principal")
	}
	p.Role = domain.Role(role)
	return &p, nil
}

func (r *Repository) UpdatePrincipal(ctx context.Context, id uuid.UUID, name, passwordHash string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE principals SET name = $2, password_hash = $3 WHERE id = $1
	`, id, name, passwordHash)
	if err != nil {
		return errors.Wrap(err, "update principal")
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repository) InsertOrganizerProfile(ctx context.Context, p domain.OrganizerProfile) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO organizer_profiles (id, principal_id, created_at)
		VALUES ($1, $2, $3)
	`, p.ID, p.PrincipalID, p.CreatedAt)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	return err
}

func (r *Repository) InsertCustomerProfile(ctx context.Context, p domain.CustomerProfile) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO customer_profiles (id, principal_id, created_at)
		VALUES ($1, $2, $3)
	`, p.ID, p.PrincipalID, p.CreatedAt)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	return err
}

func (r *Repository) OrganizerProfileByPrincipal(ctx context.Context, principalID uuid.UUID) (*domain.OrganizerProfile, error) {
	var p domain.OrganizerProfile
	err := r.pool.QueryRow(ctx, `
		SELECT id, principal_id, created_at
		FROM organizer_profiles WHERE principal_id = $1
	`, principalID).Scan(&p.ID, &p.PrincipalID, &p.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get organizer profile")
	}
	return &p, nil
}

func (r *Repository) CustomerProfileByPrincipal(ctx context.Context, principalID uuid.UUID) (*domain.CustomerProfile, error) {
	var p domain.CustomerProfile
	err := r.pool.QueryRow(ctx, `
		SELECT id, principal_id, created_at
		FROM customer_profiles WHERE principal_id = $1
	`, principalID).Scan(&p.ID, &p.PrincipalID, &p.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get customer profile")
	}
	return &p, nil
}
