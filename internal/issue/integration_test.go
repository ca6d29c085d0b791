package issue

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	authentity "github.com/abilimap/client-core-go/internal/auth/entity"
	"github.com/abilimap/client-core-go/internal/session"
)

// TestSubmitAgainstLiveSessionMirror drives the real session state holder
// from an identity feed and checks the submission path reads it coherently
// across sign-in, verification, and sign-out.
func TestSubmitAgainstLiveSessionMirror(t *testing.T) {
	state := session.NewState(zap.NewNop().Sugar())
	applied := make(chan session.Snapshot, 8)
	state.Subscribe(func(snap session.Snapshot, err error) {
		if err == nil {
			applied <- snap
		}
	})

	feed := make(chan *authentity.Identity)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go state.Run(ctx, feed)

	repo := newFakeRepo()
	svc := NewService(repo, &fakeUploader{}, state, zap.NewNop().Sugar())

	// logged out: submission refused before any storage call
	if _, err := svc.Submit(context.Background(), validDraft()); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated while logged out, got %v", err)
	}

	name := "Ada"
	email := "ada@x.com"
	push := func(id *authentity.Identity) {
		feed <- id
		select {
		case <-applied:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for session update")
		}
	}

	// signed in and verified
	push(&authentity.Identity{ID: "u1", DisplayName: &name, Email: &email, EmailVerified: true})

	rec, err := svc.Submit(context.Background(), validDraft())
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if rec.UserID != "u1" || rec.UserName != "Ada" {
		t.Errorf("record author = %q/%q, want u1/Ada", rec.UserID, rec.UserName)
	}

	// signed out again
	push(nil)
	if _, err := svc.Submit(context.Background(), validDraft()); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated after sign-out, got %v", err)
	}
	if repo.saves.Load() != 1 {
		t.Errorf("saves = %d, want exactly 1", repo.saves.Load())
	}
}
