package issue

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/abilimap/client-core-go/internal/auth"
	"github.com/abilimap/client-core-go/internal/issue/entity"
	"github.com/abilimap/client-core-go/internal/upload"
)

// Handler contains dependencies for handling issue endpoints.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

// NewHandler constructs a new Handler.
func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

type submitRequest struct {
	FullName     string   `json:"fullName"`
	Description  string   `json:"description"`
	Category     string   `json:"category"`
	BusinessName string   `json:"businessName"`
	Address      string   `json:"address"`
	County       string   `json:"county"`
	Email        string   `json:"email"`
	// Photos are base64-encoded image payloads, in attachment order.
	Photos []string `json:"photos"`
}

// Submit handles POST /issues.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	photos := make([][]byte, 0, len(req.Photos))
	for _, p := range req.Photos {
		raw, err := base64.StdEncoding.DecodeString(p)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid photo encoding")
			return
		}
		photos = append(photos, raw)
	}
	draft := &entity.Draft{
		FullName:     req.FullName,
		Description:  req.Description,
		Category:     entity.Category(req.Category),
		BusinessName: req.BusinessName,
		Address:      req.Address,
		County:       req.County,
		Email:        req.Email,
		Photos:       photos,
	}

	rec, err := h.svc.Submit(r.Context(), draft)
	if err != nil {
		h.writeSubmitError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *Handler) writeSubmitError(w http.ResponseWriter, err error) {
	var verr *entity.ValidationError
	var uerr *upload.Error
	var perr *PersistenceError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, ErrNotAuthenticated):
		writeError(w, http.StatusUnauthorized, "sign in to submit an issue")
	case errors.Is(err, ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, "submission timed out; outcome unknown")
	case errors.As(err, &uerr):
		h.logger.Errorw("photo upload failed", "index", uerr.Index, "error", uerr.Cause)
		writeError(w, http.StatusBadGateway, uerr.Error())
	case errors.As(err, &perr):
		h.logger.Errorw("issue persist failed", "error", perr.Cause)
		writeError(w, http.StatusInternalServerError, "failed to save issue")
	default:
		h.logger.Errorw("issue submit failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to submit issue")
	}
}

// Get handles GET /issues/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "issue not found")
			return
		}
		h.logger.Errorw("issue get failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load issue")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ListMine handles GET /issues for the signed-in reporter. The listing is
// scoped to the email in the caller's verified token claims; a reporter can
// only ever see their own issues.
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil || claims.Email == "" {
		writeError(w, http.StatusUnauthorized, "sign in to list your issues")
		return
	}
	recs, err := h.svc.UserIssues(r.Context(), claims.Email)
	if err != nil {
		h.logger.Errorw("issue list failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list issues")
		return
	}
	writeRecords(w, recs)
}

// ListByStatus handles GET /issues?status= (admin only).
func (h *Handler) ListByStatus(w http.ResponseWriter, r *http.Request) {
	recs, err := h.svc.IssuesByStatus(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		if errors.Is(err, ErrBadStatus) {
			writeError(w, http.StatusBadRequest, "unknown status")
			return
		}
		h.logger.Errorw("issue list failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list issues")
		return
	}
	writeRecords(w, recs)
}

func writeRecords(w http.ResponseWriter, recs []*entity.Record) {
	if recs == nil {
		recs = []*entity.Record{}
	}
	writeJSON(w, http.StatusOK, recs)
}

type statusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus handles PATCH /issues/{id}/status.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	err := h.svc.UpdateStatus(r.Context(), r.PathValue("id"), req.Status)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, ErrBadStatus):
		writeError(w, http.StatusBadRequest, "unknown status")
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "issue not found")
	default:
		h.logger.Errorw("issue status update failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update status")
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
