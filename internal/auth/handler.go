package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
)

// Handler contains dependencies for handling auth endpoints.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

// NewHandler constructs a new Handler.
func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
}

// SignUp handles POST /auth/sign-up.
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	u, err := h.svc.SignUp(r.Context(), req.Email, req.Password, req.FullName)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, map[string]any{
			"userId":        u.ID,
			"emailVerified": u.EmailVerified,
		})
	case errors.Is(err, ErrEmailTaken):
		writeError(w, http.StatusConflict, "email already registered")
	case errors.Is(err, ErrBadCredentials):
		writeError(w, http.StatusBadRequest, "email and password are required")
	default:
		h.logger.Errorw("sign up failed", "error", err)
		writeError(w, http.StatusInternalServerError, "sign up failed")
	}
}

// SignIn handles POST /auth/sign-in.
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	token, err := h.svc.SignIn(r.Context(), req.Email, req.Password)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"token": token})
	case errors.Is(err, ErrBadCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	default:
		h.logger.Errorw("sign in failed", "error", err)
		writeError(w, http.StatusInternalServerError, "sign in failed")
	}
}

// SignOut handles POST /auth/sign-out.
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.SignOut(r.Context()); err != nil {
		h.logger.Errorw("sign out failed", "error", err)
		writeError(w, http.StatusInternalServerError, "sign out failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type verifyRequest struct {
	UserID string `json:"userId"`
}

// VerifyEmail handles POST /auth/verify (admin only): it marks the account's
// email verified, which republishes the identity on the feed when the
// account is the signed-in user.
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}
	err := h.svc.VerifyEmail(r.Context(), req.UserID)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, ErrUserNotFound):
		writeError(w, http.StatusNotFound, "account not found")
	default:
		h.logger.Errorw("email verification failed", "error", err)
		writeError(w, http.StatusInternalServerError, "email verification failed")
	}
}

// DeleteAccount handles DELETE /auth/account.
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	err := h.svc.Delete(r.Context())
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, ErrNotSignedIn):
		writeError(w, http.StatusUnauthorized, "no user is signed in")
	case errors.Is(err, ErrUserNotFound):
		writeError(w, http.StatusNotFound, "account not found")
	default:
		h.logger.Errorw("account deletion failed", "error", err)
		writeError(w, http.StatusInternalServerError, "account deletion failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
