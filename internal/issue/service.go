package issue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/abilimap/client-core-go/internal/issue/entity"
	"github.com/abilimap/client-core-go/internal/session"
	"github.com/abilimap/client-core-go/pkg/utilities"
)

// Repository persists and queries issue records.
type Repository interface {
	Save(ctx context.Context, rec *entity.Record) error
	GetByID(ctx context.Context, id string) (*entity.Record, error)
	ListByEmail(ctx context.Context, email string) ([]*entity.Record, error)
	ListByStatus(ctx context.Context, status string) ([]*entity.Record, error)
	UpdateStatus(ctx context.Context, id, status string) (int64, error)
}

// Uploader settles a batch of photo uploads, returning refs in input order
// or a single aggregated failure.
type Uploader interface {
	UploadAll(ctx context.Context, blobs [][]byte, basePath string) ([]string, error)
}

// Sessions provides the read-only session snapshot a submission embeds.
type Sessions interface {
	Current() session.Snapshot
}

var (
	ErrNotAuthenticated = errors.New("issue: not authenticated")
	ErrNotFound         = errors.New("issue: not found")
	ErrBadStatus        = errors.New("issue: unknown status")
	// ErrTimeout means the submission budget elapsed with the outcome
	// unknown: in-flight uploads or the record write may still land.
	ErrTimeout = errors.New("issue: submission timed out")
)

// PersistenceError wraps a failed record write that happened after every
// photo upload succeeded. The uploaded blobs are left in place; the caller
// decides on cleanup.
type PersistenceError struct{ Cause error }

func (e *PersistenceError) Error() string { return fmt.Sprintf("persist issue: %v", e.Cause) }
func (e *PersistenceError) Unwrap() error { return e.Cause }

// Service is the single orchestration point that turns a validated draft
// plus the current session snapshot into a persisted record.
type Service struct {
	repo     Repository
	uploader Uploader
	sessions Sessions
	logger   *zap.SugaredLogger

	// SubmitTimeout bounds one submission end to end. On expiry the result
	// is ErrTimeout; underlying transport calls are not guaranteed cancelled.
	SubmitTimeout time.Duration
}

func NewService(repo Repository, uploader Uploader, sessions Sessions, logger *zap.SugaredLogger) *Service {
	return &Service{
		repo:          repo,
		uploader:      uploader,
		sessions:      sessions,
		logger:        logger,
		SubmitTimeout: 30 * time.Second,
	}
}

// Submit validates the draft, uploads its photos, and persists the record.
// It settles exactly once: either the record (with one photo ref per draft
// photo) or a single error. The session is snapshotted at entry; the record
// is attributed to the identity that initiated the submission even if the
// session changes mid-flight. Validation and auth failures are checked
// before any storage call, with zero side effects. Each call is a fresh
// attempt with a fresh id; submissions are never deduplicated.
func (s *Service) Submit(ctx context.Context, draft *entity.Draft) (*entity.Record, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	snap := s.sessions.Current()
	if snap.UserID == "" {
		return nil, ErrNotAuthenticated
	}

	ctx, cancel := context.WithTimeout(ctx, s.SubmitTimeout)
	defer cancel()

	id := utilities.NewKSUID()

	refs := []string{}
	if len(draft.Photos) > 0 {
		var err error
		refs, err = s.uploader.UploadAll(ctx, draft.Photos, "issues/"+id)
		if err != nil {
			// the record write is never attempted on upload failure
			return nil, s.timeoutOr(ctx, err)
		}
	}

	rec := buildRecord(id, draft, snap, refs)
	if err := s.repo.Save(ctx, rec); err != nil {
		return nil, s.timeoutOr(ctx, &PersistenceError{Cause: err})
	}
	s.logger.Infow("issue submitted", "issue_id", id, "user_id", snap.UserID, "photos", len(refs))
	return rec, nil
}

func buildRecord(id string, draft *entity.Draft, snap session.Snapshot, refs []string) *entity.Record {
	rec := &entity.Record{
		ID:          id,
		FullName:    draft.FullName,
		Description: draft.Description,
		Category:    draft.Category,
		Address:     draft.Address,
		Email:       draft.Email,
		PhotoRefs:   pq.StringArray(refs),
		UserID:      snap.UserID,
		UserName:    snap.UserName,
		Status:      entity.StatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	if draft.BusinessName != "" {
		rec.BusinessName = &draft.BusinessName
	}
	if draft.County != "" {
		rec.County = &draft.County
	}
	return rec
}

// timeoutOr maps a failure that raced the submission budget to ErrTimeout,
// since the caller must treat it as unknown outcome rather than confirmed
// failure.
func (s *Service) timeoutOr(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

// Get returns one issue by id.
func (s *Service) Get(ctx context.Context, id string) (*entity.Record, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

// UserIssues returns the issues submitted with the given contact email.
func (s *Service) UserIssues(ctx context.Context, email string) ([]*entity.Record, error) {
	return s.repo.ListByEmail(ctx, email)
}

// PendingIssues returns issues awaiting review.
func (s *Service) PendingIssues(ctx context.Context) ([]*entity.Record, error) {
	return s.repo.ListByStatus(ctx, entity.StatusPending)
}

// IssuesByStatus returns issues in the given lifecycle state.
func (s *Service) IssuesByStatus(ctx context.Context, status string) ([]*entity.Record, error) {
	if !entity.ValidStatus(status) {
		return nil, ErrBadStatus
	}
	return s.repo.ListByStatus(ctx, status)
}

// UpdateStatus moves an issue to a new lifecycle state.
func (s *Service) UpdateStatus(ctx context.Context, id, status string) error {
	if !entity.ValidStatus(status) {
		return ErrBadStatus
	}
	rows, err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
