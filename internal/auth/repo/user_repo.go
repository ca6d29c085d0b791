package repo

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/abilimap/client-core-go/internal/auth/entity"
)

// UserRepo provides data access for the users table using sqlx.
type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

// EnsureTable creates the users table if not exists (idempotent).
// This is a convenience for early development; prefer migrations in production.
func (r *UserRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT UNIQUE NOT NULL,
  display_name TEXT,
  email_verified BOOLEAN NOT NULL DEFAULT false,
  password_hash TEXT NOT NULL,
  password_algo TEXT NOT NULL,
  admin BOOLEAN NOT NULL DEFAULT false,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Create inserts a new account row.
func (r *UserRepo) Create(ctx context.Context, u *entity.User) error {
	const q = `INSERT INTO users (id, email, display_name, email_verified, password_hash, password_algo, admin, created_at, updated_at)
		VALUES (:id, :email, :display_name, :email_verified, :password_hash, :password_algo, :admin, :created_at, :updated_at)`
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	_, err := r.db.NamedExecContext(ctx, q, u)
	return err
}

// GetByEmail returns the account matched by email or sql.ErrNoRows.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	const q = `SELECT id, email, display_name, email_verified, password_hash, password_algo, admin, created_at, updated_at
		FROM users WHERE email = $1`
	var u entity.User
	if err := r.db.GetContext(ctx, &u, q, email); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByID returns the account matched by id or sql.ErrNoRows.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	const q = `SELECT id, email, display_name, email_verified, password_hash, password_algo, admin, created_at, updated_at
		FROM users WHERE id = $1`
	var u entity.User
	if err := r.db.GetContext(ctx, &u, q, id); err != nil {
		return nil, err
	}
	return &u, nil
}

// SetEmailVerified flips the verification flag. Returns affected row count.
func (r *UserRepo) SetEmailVerified(ctx context.Context, id string, verified bool) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET email_verified = $2, updated_at = NOW() WHERE id = $1`, id, verified)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Delete removes the account row. Returns affected row count.
func (r *UserRepo) Delete(ctx context.Context, id string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
