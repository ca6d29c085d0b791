package upload

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

// fakeStore records every Put and can inject per-index latency and failure.
// The uploaded payload's first byte carries the input index so tests can
// check result ordering against completion ordering.
type fakeStore struct {
	mu       sync.Mutex
	paths    []string
	calls    atomic.Int32
	inFlight atomic.Int32
	maxSeen  atomic.Int32

	latency func(index byte) time.Duration
	failOn  map[byte]error
}

func (f *fakeStore) Put(ctx context.Context, path string, data []byte) (string, error) {
	f.calls.Add(1)
	cur := f.inFlight.Add(1)
	for {
		prev := f.maxSeen.Load()
		if cur <= prev || f.maxSeen.CompareAndSwap(prev, cur) {
			break
		}
	}
	defer f.inFlight.Add(-1)

	idx := data[0]
	if f.latency != nil {
		time.Sleep(f.latency(idx))
	}
	f.mu.Lock()
	f.paths = append(f.paths, path)
	f.mu.Unlock()
	if err, ok := f.failOn[idx]; ok {
		return "", err
	}
	return fmt.Sprintf("ref-%d", idx), nil
}

func blobs(n int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		out[i] = []byte{byte(i)}
	}
	return out
}

func TestUploadAllEmpty(t *testing.T) {
	store := &fakeStore{}
	c := NewCoordinator(store, 0, zap.NewNop().Sugar())

	refs, err := c.UploadAll(context.Background(), nil, "issues/x")
	if err != nil {
		t.Fatalf("UploadAll(nil) returned error: %v", err)
	}
	if len(refs) != 0 {
		t.Errorf("expected no refs, got %v", refs)
	}
	if store.calls.Load() != 0 {
		t.Errorf("expected no store calls for empty input, got %d", store.calls.Load())
	}
}

func TestUploadAllPreservesInputOrder(t *testing.T) {
	// later inputs finish first; refs must still line up with input indexes
	store := &fakeStore{
		latency: func(idx byte) time.Duration {
			return time.Duration(8-int(idx)) * 5 * time.Millisecond
		},
	}
	c := NewCoordinator(store, 8, zap.NewNop().Sugar())

	refs, err := c.UploadAll(context.Background(), blobs(8), "issues/x")
	if err != nil {
		t.Fatalf("UploadAll returned error: %v", err)
	}
	if len(refs) != 8 {
		t.Fatalf("expected 8 refs, got %d", len(refs))
	}
	for i, ref := range refs {
		if want := fmt.Sprintf("ref-%d", i); ref != want {
			t.Errorf("refs[%d] = %q, want %q", i, ref, want)
		}
	}
}

func TestUploadAllUniquePaths(t *testing.T) {
	store := &fakeStore{}
	c := NewCoordinator(store, 4, zap.NewNop().Sugar())

	if _, err := c.UploadAll(context.Background(), blobs(6), "issues/abc"); err != nil {
		t.Fatalf("UploadAll returned error: %v", err)
	}
	seen := map[string]bool{}
	for _, p := range store.paths {
		if !strings.HasPrefix(p, "issues/abc/") {
			t.Errorf("path %q not under base path", p)
		}
		if seen[p] {
			t.Errorf("duplicate path %q", p)
		}
		seen[p] = true
	}
}

func TestUploadAllSingleFailureFailsBatch(t *testing.T) {
	boom := errors.New("disk full")
	store := &fakeStore{failOn: map[byte]error{1: boom}}
	c := NewCoordinator(store, 3, zap.NewNop().Sugar())

	refs, err := c.UploadAll(context.Background(), blobs(3), "issues/x")
	if refs != nil {
		t.Errorf("expected no refs on failure, got %v", refs)
	}
	var uerr *Error
	if !errors.As(err, &uerr) {
		t.Fatalf("expected *upload.Error, got %v", err)
	}
	if uerr.Index != 1 {
		t.Errorf("Error.Index = %d, want 1", uerr.Index)
	}
	if !errors.Is(err, boom) {
		t.Errorf("error does not wrap cause: %v", err)
	}
	// fan-out does not stop early: every upload reached a terminal state
	if got := store.calls.Load(); got != 3 {
		t.Errorf("expected all 3 uploads attempted, got %d", got)
	}
}

func TestUploadAllReportsLowestFailingIndex(t *testing.T) {
	store := &fakeStore{
		failOn: map[byte]error{2: errors.New("a"), 4: errors.New("b")},
		// make the higher index fail first
		latency: func(idx byte) time.Duration {
			if idx == 2 {
				return 20 * time.Millisecond
			}
			return 0
		},
	}
	c := NewCoordinator(store, 5, zap.NewNop().Sugar())

	_, err := c.UploadAll(context.Background(), blobs(5), "issues/x")
	var uerr *Error
	if !errors.As(err, &uerr) {
		t.Fatalf("expected *upload.Error, got %v", err)
	}
	if uerr.Index != 2 {
		t.Errorf("Error.Index = %d, want lowest failing index 2", uerr.Index)
	}
}

func TestUploadAllBoundsConcurrency(t *testing.T) {
	store := &fakeStore{
		latency: func(byte) time.Duration { return 10 * time.Millisecond },
	}
	c := NewCoordinator(store, 2, zap.NewNop().Sugar())

	if _, err := c.UploadAll(context.Background(), blobs(10), "issues/x"); err != nil {
		t.Fatalf("UploadAll returned error: %v", err)
	}
	if max := store.maxSeen.Load(); max > 2 {
		t.Errorf("observed %d simultaneous uploads, limit is 2", max)
	}
	if got := store.calls.Load(); got != 10 {
		t.Errorf("expected 10 uploads, got %d", got)
	}
}
