package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/abilimap/client-core-go/internal/auth"
	authrepo "github.com/abilimap/client-core-go/internal/auth/repo"
	"github.com/abilimap/client-core-go/internal/blob"
	"github.com/abilimap/client-core-go/internal/device"
	"github.com/abilimap/client-core-go/internal/issue"
	issuerepo "github.com/abilimap/client-core-go/internal/issue/repo"
	"github.com/abilimap/client-core-go/internal/router"
	"github.com/abilimap/client-core-go/internal/session"
	"github.com/abilimap/client-core-go/internal/upload"
	"github.com/abilimap/client-core-go/pkg/database"
	"github.com/abilimap/client-core-go/pkg/utilities"
)

func main() {
	// load .env file if present so os.Getenv picks values from it
	// this is best-effort: if no .env exists, continue (use defaults or real env)
	_ = godotenv.Load()

	// init logger
	lg, err := utilities.InitLogger(utilities.LogConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Info("starting abilimap client core")

	// device-local settings; generates the fallback identifier on first run
	statePath := os.Getenv("DEVICE_STATE_FILE")
	if statePath == "" {
		statePath = "data/device.json"
	}
	kv, err := device.Open(statePath)
	if err != nil {
		sugar.Fatalf("device store: %v", err)
	}
	deviceID, err := kv.EnsureID()
	if err != nil {
		sugar.Fatalf("device id: %v", err)
	}
	sugar.Infow("device ready", "device_id", deviceID)

	// init db
	db, err := database.Connect(database.ConfigFromEnv())
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	setupCtx, setupCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer setupCancel()

	users := authrepo.NewUserRepo(db)
	if err := users.EnsureTable(setupCtx); err != nil {
		sugar.Fatalf("ensure users table: %v", err)
	}
	issues := issuerepo.NewIssueRepo(db)
	if err := issues.EnsureTable(setupCtx); err != nil {
		sugar.Fatalf("ensure issues table: %v", err)
	}

	secret := os.Getenv("AUTH_TOKEN_SECRET")
	if secret == "" {
		sugar.Fatal("AUTH_TOKEN_SECRET is required")
	}
	authSvc := auth.NewService(users, nil, []byte(secret), sugar)
	defer authSvc.Close()

	// session mirror: single writer over the provider's identity feed
	sessions := session.NewState(sugar)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go sessions.Run(ctx, authSvc.Subscribe())

	// observe before replaying the restore so the restore event itself is
	// persisted like any other change
	sessions.Subscribe(func(snap session.Snapshot, err error) {
		if err != nil {
			return
		}
		if snap.UserID == "" {
			_ = kv.Delete("last_user_id")
			return
		}
		_ = kv.Set("last_user_id", snap.UserID)
	})

	// restore a previously signed-in user, if any
	if userID, ok := kv.Get("last_user_id"); ok {
		if err := authSvc.Restore(setupCtx, userID); err != nil {
			sugar.Warnf("session restore failed: %v", err)
		}
	}

	// blob store + upload coordinator
	blobRoot := os.Getenv("BLOB_ROOT")
	if blobRoot == "" {
		blobRoot = "data/blobs"
	}
	blobBaseURL := os.Getenv("BLOB_BASE_URL")
	if blobBaseURL == "" {
		blobBaseURL = "http://localhost:8431/blobs"
	}
	store := blob.NewFSStore(blobRoot, blobBaseURL)
	uploader := upload.NewCoordinator(store, upload.DefaultLimit, sugar)

	issueSvc := issue.NewService(issues, uploader, sessions, sugar)

	// mount http server
	handler := router.RegisterRoutes(sugar, authSvc, issueSvc)
	srv := &http.Server{
		Addr:    "0.0.0.0:8431",
		Handler: handler,
	}

	// run server in background
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()

	sugar.Info("service is running; press Ctrl+C to stop")

	<-ctx.Done()

	sugar.Info("shutting down")

	// give a short grace period for cleanup
	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}
	if err := db.PingContext(doneCtx); err != nil {
		sugar.Warnf("db ping on shutdown failed: %v", err)
	}

	sugar.Info("goodbye")
}
