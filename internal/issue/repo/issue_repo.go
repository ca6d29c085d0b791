package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/abilimap/client-core-go/internal/issue/entity"
)

// IssueRepo provides data access for the issues table using sqlx.
type IssueRepo struct {
	db *sqlx.DB
}

func NewIssueRepo(db *sqlx.DB) *IssueRepo { return &IssueRepo{db: db} }

// EnsureTable creates the issues table if not exists (idempotent).
// This is a convenience for early development; prefer migrations in production.
func (r *IssueRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS issues (
  id TEXT PRIMARY KEY,
  full_name TEXT NOT NULL,
  description TEXT NOT NULL,
  category TEXT NOT NULL,
  business_name TEXT,
  address TEXT NOT NULL,
  county TEXT,
  email TEXT NOT NULL,
  photo_refs TEXT[] NOT NULL DEFAULT '{}',
  user_id TEXT NOT NULL,
  user_name TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'Pending',
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_issues_email ON issues(email);
CREATE INDEX IF NOT EXISTS idx_issues_status ON issues(status);
CREATE INDEX IF NOT EXISTS idx_issues_user_id ON issues(user_id);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Save inserts a new issue record.
func (r *IssueRepo) Save(ctx context.Context, rec *entity.Record) error {
	const q = `INSERT INTO issues (id, full_name, description, category, business_name, address, county, email, photo_refs, user_id, user_name, status, created_at)
		VALUES (:id, :full_name, :description, :category, :business_name, :address, :county, :email, :photo_refs, :user_id, :user_name, :status, :created_at)`
	_, err := r.db.NamedExecContext(ctx, q, rec)
	return err
}

const selectCols = `id, full_name, description, category, business_name, address, county, email, photo_refs, user_id, user_name, status, created_at`

// GetByID returns one issue or sql.ErrNoRows.
func (r *IssueRepo) GetByID(ctx context.Context, id string) (*entity.Record, error) {
	var rec entity.Record
	if err := r.db.GetContext(ctx, &rec, `SELECT `+selectCols+` FROM issues WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListByEmail returns the issues submitted with the given contact email,
// newest first.
func (r *IssueRepo) ListByEmail(ctx context.Context, email string) ([]*entity.Record, error) {
	var recs []*entity.Record
	err := r.db.SelectContext(ctx, &recs,
		`SELECT `+selectCols+` FROM issues WHERE email = $1 ORDER BY created_at DESC`, email)
	return recs, err
}

// ListByStatus returns the issues in the given lifecycle state, newest first.
func (r *IssueRepo) ListByStatus(ctx context.Context, status string) ([]*entity.Record, error) {
	var recs []*entity.Record
	err := r.db.SelectContext(ctx, &recs,
		`SELECT `+selectCols+` FROM issues WHERE status = $1 ORDER BY created_at DESC`, status)
	return recs, err
}

// UpdateStatus moves an issue to a new lifecycle state. Returns affected
// row count.
func (r *IssueRepo) UpdateStatus(ctx context.Context, id, status string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE issues SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
