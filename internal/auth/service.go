package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/abilimap/client-core-go/internal/auth/entity"
	"github.com/abilimap/client-core-go/pkg/utilities"
)

// PasswordHasher defines minimal hashing interface (abstract so we can swap to argon2 later).
type PasswordHasher interface {
	Hash(pw string) (hash string, algo string, err error)
	Verify(hash, pw string) bool
}

// BcryptHasher implementation.
type BcryptHasher struct{ Cost int }

func (b BcryptHasher) Hash(pw string) (string, string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	if err != nil {
		return "", "", err
	}
	return string(h), fmt.Sprintf("bcrypt:%d", cost), nil
}

func (b BcryptHasher) Verify(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// Accounts is the data access the provider needs from the users table.
type Accounts interface {
	Create(ctx context.Context, u *entity.User) error
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	GetByID(ctx context.Context, id string) (*entity.User, error)
	SetEmailVerified(ctx context.Context, id string, verified bool) (int64, error)
	Delete(ctx context.Context, id string) (int64, error)
}

var (
	ErrBadCredentials = errors.New("invalid credentials")
	ErrEmailTaken     = errors.New("email already registered")
	ErrNotSignedIn    = errors.New("no user is signed in")
	ErrUserNotFound   = errors.New("user not found")
)

// Service is the identity provider: it owns credential state, performs
// sign-in/up/out/delete against the users table, and publishes every
// authentication state change on its event feed. Consumers (the session
// state holder) subscribe to the feed; they never read provider internals.
type Service struct {
	repo   Accounts
	hasher PasswordHasher
	secret []byte
	logger *zap.SugaredLogger

	// TokenTTL bounds the lifetime of issued access tokens.
	TokenTTL time.Duration

	mu      sync.Mutex
	events  chan *entity.Identity
	current *entity.Identity
	closed  bool
}

func NewService(repo Accounts, hasher PasswordHasher, secret []byte, logger *zap.SugaredLogger) *Service {
	if hasher == nil {
		hasher = BcryptHasher{Cost: 12}
	}
	return &Service{
		repo:     repo,
		hasher:   hasher,
		secret:   secret,
		logger:   logger,
		TokenTTL: 12 * time.Hour,
		events:   make(chan *entity.Identity, 32),
	}
}

// Subscribe returns the identity event feed. The channel emits on every
// authentication state change, including startup restore; it is closed when
// the provider shuts down.
func (s *Service) Subscribe() <-chan *entity.Identity {
	return s.events
}

// Close tears down the event feed. Subscribers treat the closed feed as a
// degraded-mode signal, not a crash.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.events)
}

func (s *Service) emit(id *entity.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.current = id
	// never block an auth operation on a stalled feed consumer: when the
	// buffer is full, drop the oldest event (last writer wins)
	for {
		select {
		case s.events <- id:
			return
		default:
		}
		select {
		case <-s.events:
		default:
		}
	}
}

// SignUp creates an account (email unverified) and signs the new user in.
func (s *Service) SignUp(ctx context.Context, email, password, fullName string) (*entity.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrBadCredentials
	}
	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	hash, algo, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	u := &entity.User{
		ID:           utilities.NewKSUID(),
		Email:        email,
		PasswordHash: hash,
		PasswordAlgo: algo,
	}
	if name := strings.TrimSpace(fullName); name != "" {
		u.DisplayName = &name
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Infow("user signed up", "user_id", u.ID)
	s.emit(u.Identity())
	return u, nil
}

// SignIn authenticates by email and password, publishes the new identity on
// the feed, and returns a signed access token.
func (s *Service) SignIn(ctx context.Context, email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", ErrBadCredentials
	}
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrBadCredentials
		} // avoid user enumeration
		return "", err
	}
	if !s.hasher.Verify(u.PasswordHash, password) {
		return "", ErrBadCredentials
	}
	token, err := s.issueToken(u)
	if err != nil {
		return "", err
	}
	s.logger.Infow("user signed in", "user_id", u.ID)
	s.emit(u.Identity())
	return token, nil
}

// SignOut publishes a signed-out state on the feed.
func (s *Service) SignOut(ctx context.Context) error {
	s.logger.Info("user signed out")
	s.emit(nil)
	return nil
}

// Delete removes the signed-in account and publishes a signed-out state.
func (s *Service) Delete(ctx context.Context) error {
	s.mu.Lock()
	cur := s.current
	s.mu.Unlock()
	if cur == nil {
		return ErrNotSignedIn
	}
	rows, err := s.repo.Delete(ctx, cur.ID)
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrUserNotFound
	}
	s.logger.Infow("account deleted", "user_id", cur.ID)
	s.emit(nil)
	return nil
}

// VerifyEmail marks the account's email verified and, when it belongs to the
// signed-in user, republishes the updated identity.
func (s *Service) VerifyEmail(ctx context.Context, userID string) error {
	rows, err := s.repo.SetEmailVerified(ctx, userID, true)
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrUserNotFound
	}
	s.mu.Lock()
	cur := s.current
	s.mu.Unlock()
	if cur != nil && cur.ID == userID {
		u, err := s.repo.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		s.emit(u.Identity())
	}
	return nil
}

// Restore replays a previously signed-in user onto the feed at startup, or a
// signed-out state when the account no longer exists. Mirrors the provider
// emitting the restored session when the app launches.
func (s *Service) Restore(ctx context.Context, userID string) error {
	if userID == "" {
		s.emit(nil)
		return nil
	}
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.emit(nil)
			return nil
		}
		return err
	}
	s.emit(u.Identity())
	return nil
}

// Claims is the verified projection of an access token.
type Claims struct {
	UserID string
	Email  string
	Admin  bool
}

func (s *Service) issueToken(u *entity.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":            u.ID,
		"email":          u.Email,
		"admin":          u.Admin,
		"email_verified": u.EmailVerified,
		"iat":            now.Unix(),
		"exp":            now.Add(s.TokenTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// VerifyToken parses and validates an access token issued by SignIn.
func (s *Service) VerifyToken(token string) (*Claims, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	c := &Claims{}
	if sub, ok := mc["sub"].(string); ok {
		c.UserID = sub
	}
	if email, ok := mc["email"].(string); ok {
		c.Email = email
	}
	if admin, ok := mc["admin"].(bool); ok {
		c.Admin = admin
	}
	if c.UserID == "" {
		return nil, errors.New("token missing subject")
	}
	return c, nil
}
