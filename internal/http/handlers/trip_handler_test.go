// README: Trip handler tests for auth and request validation.
package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"fleetops/internal/http/handlers"
	httpmiddleware "fleetops/internal/http/middleware"
	"fleetops/internal/infra"
	"fleetops/internal/modules/trip"
)

// stubTokenVerifier is a test double for infra.TokenVerifier.
type stubTokenVerifier struct {
	token *infra.FirebaseToken
	err   error
}

func (s *stubTokenVerifier) VerifyIDToken(_ context.Context, _ string) (*infra.FirebaseToken, error) {
	return s.token, s.err
}

// buildTestRouter wires a minimal engine with the auth middleware and the
// trip handler. trip.NewService(nil, ...) is safe here because every covered
// request is rejected before any store access.
func buildTestRouter(verifier infra.TokenVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := trip.NewService(nil, trip.ServiceDeps{})
	r := gin.New()
	r.Use(httpmiddleware.Auth(verifier))
	h := handlers.NewTripHandler(svc)
	r.POST("/api/trips", h.Create)
	r.POST("/api/trips/:id/approve", httpmiddleware.RequireRole("admin"), h.Approve)
	return r
}

func makeVerifier(uid, role string) *stubTokenVerifier {
	return &stubTokenVerifier{token: &infra.FirebaseToken{UID: uid, Role: role}}
}

func doRequest(r *gin.Engine, method, path string, body interface{}, authHeader string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateTrip_Unauthenticated(t *testing.T) {
	r := buildTestRouter(&stubTokenVerifier{err: errors.New("no token")})
	w := doRequest(r, http.MethodPost, "/api/trips", map[string]any{
		"requester_id": "u1",
		"pickup":       "Depot",
		"destination":  "Site A",
		"date":         "2026-09-01",
	}, "Bearer badtoken")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestCreateTrip_InvalidJSON(t *testing.T) {
	r := buildTestRouter(makeVerifier("u1", ""))
	req := httptest.NewRequest(http.MethodPost, "/api/trips", bytes.NewBufferString("{not json"))
	req.Header.Set("Authorization", "Bearer token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestCreateTrip_MissingFields(t *testing.T) {
	r := buildTestRouter(makeVerifier("u1", ""))
	w := doRequest(r, http.MethodPost, "/api/trips", map[string]any{
		"requester_id": "u1",
		"date":         "2026-09-01",
	}, "Bearer token")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestCreateTrip_BadDate(t *testing.T) {
	r := buildTestRouter(makeVerifier("u1", ""))
	w := doRequest(r, http.MethodPost, "/api/trips", map[string]any{
		"requester_id": "u1",
		"pickup":       "Depot",
		"destination":  "Site A",
		"date":         "tomorrow-ish",
	}, "Bearer token")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestApprove_RequiresAdminRole(t *testing.T) {
	r := buildTestRouter(makeVerifier("u1", "requester"))
	w := doRequest(r, http.MethodPost, "/api/trips/t1/approve", map[string]any{
		"vehicle_id": "v1",
		"driver_id":  "d1",
	}, "Bearer token")
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
}
