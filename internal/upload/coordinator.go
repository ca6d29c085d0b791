package upload

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/abilimap/client-core-go/pkg/utilities"
)

// BlobStore stores a binary payload under a caller-chosen path and returns a
// retrievable reference. Idempotency by path is not assumed; the coordinator
// uses a fresh unique path component per upload.
type BlobStore interface {
	Put(ctx context.Context, path string, data []byte) (string, error)
}

// Error reports a failed upload batch, naming the first failing input index.
type Error struct {
	Index int
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("upload of photo %d failed: %v", e.Index, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// DefaultLimit bounds simultaneous in-flight uploads.
const DefaultLimit = 5

// Coordinator fans a batch of blobs out to the store and joins the results.
// It holds no state across calls; each invocation owns its own task set.
type Coordinator struct {
	store  BlobStore
	limit  int
	logger *zap.SugaredLogger
}

func NewCoordinator(store BlobStore, limit int, logger *zap.SugaredLogger) *Coordinator {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Coordinator{store: store, limit: limit, logger: logger}
}

// UploadAll stores every blob concurrently (at most limit in flight) and
// returns their references in input order regardless of completion order.
// Every started upload runs to a terminal state before the call returns;
// there is no early return on first failure, so a partial batch is never
// silently orphaned mid-flight. If any upload failed the whole batch fails
// with the lowest failing index; already-stored blobs are left in place for
// the caller to reconcile.
func (c *Coordinator) UploadAll(ctx context.Context, blobs [][]byte, basePath string) ([]string, error) {
	if len(blobs) == 0 {
		return []string{}, nil
	}

	refs := make([]string, len(blobs))
	errs := make([]error, len(blobs))

	var g errgroup.Group
	g.SetLimit(c.limit)
	for i, blob := range blobs {
		g.Go(func() error {
			path := fmt.Sprintf("%s/%s_%d", basePath, utilities.NewKSUID(), i)
			ref, err := c.store.Put(ctx, path, blob)
			if err != nil {
				errs[i] = err
				return nil
			}
			refs[i] = ref
			return nil
		})
	}
	// join: errors are collected per index, so Wait itself cannot fail
	_ = g.Wait()

	for i, err := range errs {
		if err != nil {
			if c.logger != nil {
				c.logger.Warnw("upload batch failed", "base_path", basePath, "index", i, "error", err)
			}
			return nil, &Error{Index: i, Cause: err}
		}
	}
	return refs, nil
}
