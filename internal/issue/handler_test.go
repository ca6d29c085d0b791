package issue

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/abilimap/client-core-go/internal/issue/entity"
)

func postSubmit(t *testing.T, h *Handler, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest("POST", "/abilimap-api/issues", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.Submit(w, req)
	return w
}

func submitBody() map[string]any {
	return map[string]any{
		"fullName":     "A",
		"email":        "a@x.com",
		"description":  "d",
		"category":     "Private Business",
		"businessName": "B",
		"address":      "1 Main",
	}
}

func TestSubmitEndpoint(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, &fakeUploader{}, loggedIn(), zap.NewNop().Sugar())
	h := NewHandler(svc, zap.NewNop().Sugar())

	body := submitBody()
	body["photos"] = []string{base64.StdEncoding.EncodeToString([]byte{1, 2, 3})}
	w := postSubmit(t, h, body)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %s)", w.Code, w.Body.String())
	}
	var rec entity.Record
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if rec.ID == "" || rec.Status != entity.StatusPending {
		t.Errorf("unexpected record in response: %+v", rec)
	}
	if len(rec.PhotoRefs) != 1 {
		t.Errorf("photoRefs count = %d, want 1", len(rec.PhotoRefs))
	}
}

func TestSubmitEndpointValidation(t *testing.T) {
	svc := NewService(newFakeRepo(), &fakeUploader{}, loggedIn(), zap.NewNop().Sugar())
	h := NewHandler(svc, zap.NewNop().Sugar())

	body := submitBody()
	body["description"] = ""
	if w := postSubmit(t, h, body); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}

	body = submitBody()
	body["photos"] = []string{"not-base64!!"}
	if w := postSubmit(t, h, body); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for undecodable photo", w.Code)
	}
}

func TestSubmitEndpointRequiresSession(t *testing.T) {
	svc := NewService(newFakeRepo(), &fakeUploader{}, &fakeSessions{}, zap.NewNop().Sugar())
	h := NewHandler(svc, zap.NewNop().Sugar())

	if w := postSubmit(t, h, submitBody()); w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}
