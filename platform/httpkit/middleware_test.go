package httpkit

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"recovery_backend/platform/apperr"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type jwtConfig string

func (s jwtConfig) GetJWTAccessSecret() string { return string(s) }

const testSecret = jwtConfig("test-secret")

func signToken(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func newIdentityRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AuthRequired(testSecret))
	r.GET("/whoami", func(c *gin.Context) {
		tenantID, ok := MustGetTenantID(c)
		if !ok {
			return
		}
		OK(c, gin.H{"user": GetIdentity(c).UserID().String(), "tenant": tenantID.String()})
	})
	return r
}

func TestAuthRequiredSetsIdentity(t *testing.T) {
	userID := uuid.New()
	tenantID := uuid.New()
	token := signToken(t, jwt.MapClaims{
		"sub":       userID.String(),
		"tenant_id": tenantID.String(),
		"type":      "access",
		"roles":     []string{"agent"},
		"exp":       time.Now().Add(time.Hour).Unix(),
	}, string(testSecret))

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	newIdentityRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["user"] != userID.String() || body["tenant"] != tenantID.String() {
		t.Fatalf("unexpected identity %v", body)
	}
}

func TestAuthRequiredRejectsBadTokens(t *testing.T) {
	valid := jwt.MapClaims{
		"sub":  uuid.NewString(),
		"type": "access",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	refresh := jwt.MapClaims{
		"sub":  uuid.NewString(),
		"type": "refresh",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	expired := jwt.MapClaims{
		"sub":  uuid.NewString(),
		"type": "access",
		"exp":  time.Now().Add(-time.Hour).Unix(),
	}

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "wrong secret", header: "Bearer " + signToken(t, valid, "other")},
		{name: "refresh token", header: "Bearer " + signToken(t, refresh, string(testSecret))},
		{name: "expired", header: "Bearer " + signToken(t, expired, string(testSecret))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			newIdentityRouter().ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestMissingTenantIsForbidden(t *testing.T) {
	token := signToken(t, jwt.MapClaims{
		"sub":  uuid.NewString(),
		"type": "access",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}, string(testSecret))

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	newIdentityRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestHandleErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{name: "not found", err: apperr.NotFound("case not found"), wantCode: http.StatusNotFound, wantBody: "case not found"},
		{name: "wrapped validation", err: errors.Join(errors.New("ctx"), apperr.Validation("bad rows")), wantCode: http.StatusBadRequest, wantBody: "bad rows"},
		{name: "conflict", err: apperr.Conflict("upload running"), wantCode: http.StatusConflict, wantBody: "upload running"},
		{name: "unsupported", err: apperr.UnsupportedFormat(".pdf"), wantCode: http.StatusBadRequest, wantBody: "unsupported file format"},
		{name: "raw error hidden", err: errors.New("pq: relation missing"), wantCode: http.StatusInternalServerError, wantBody: "internal server error"},
		{name: "internal hidden", err: apperr.Internal("archive cases: boom"), wantCode: http.StatusInternalServerError, wantBody: "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)
			HandleError(c, tt.err)

			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, rec.Code)
			}
			var body ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error != tt.wantBody {
				t.Fatalf("expected %q, got %q", tt.wantBody, body.Error)
			}
		})
	}
}
