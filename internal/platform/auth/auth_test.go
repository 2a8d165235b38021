package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test-secret-key-32-bytes-long!!!")

func signToken(t *testing.T, subject, role string, exp time.Time) string {
	t.Helper()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Role: role,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestParse_ValidToken(t *testing.T) {
	tok := signToken(t, "user-1", "user", time.Now().Add(time.Hour))
	claims, err := JWTVerifier{Secret: testSecret}.Parse(tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "user-1" || claims.Role != "user" {
		t.Fatalf("unexpected claims: subject=%q role=%q", claims.Subject, claims.Role)
	}
}

func TestParse_Rejections(t *testing.T) {
	valid := signToken(t, "user-1", "user", time.Now().Add(time.Hour))
	parts := strings.Split(valid, ".")
	tampered := parts[0] + ".dGFtcGVyZWQ." + parts[2]

	tests := []struct {
		name     string
		verifier JWTVerifier
		token    string
	}{
		{"expired", JWTVerifier{Secret: testSecret}, signToken(t, "user-1", "user", time.Now().Add(-time.Hour))},
		{"wrong secret", JWTVerifier{Secret: []byte("wrong-secret")}, valid},
		{"malformed", JWTVerifier{Secret: testSecret}, "not.a.valid.token"},
		{"tampered payload", JWTVerifier{Secret: testSecret}, tampered},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.verifier.Parse(tt.token); err == nil {
				t.Fatal("expected parse to fail")
			}
		})
	}
}

func serveRequireUser(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	RequireUser(JWTVerifier{Secret: testSecret})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, _ := UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(uid))
	})).ServeHTTP(rr, req)
	return rr
}

func TestRequireUser_ValidBearer(t *testing.T) {
	tok := signToken(t, "user-42", "user", time.Now().Add(time.Hour))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)

	rr := serveRequireUser(req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr.Body.String() != "user-42" {
		t.Fatalf("expected subject in context, got %q", rr.Body.String())
	}
}

func TestRequireUser_RejectsWithErrorCode(t *testing.T) {
	expired := signToken(t, "user-1", "user", time.Now().Add(-time.Hour))

	tests := []struct {
		name     string
		header   string
		wantCode string
	}{
		{"missing header", "", "AUTH_MISSING"},
		{"non-bearer scheme", "Basic dXNlcjpwYXNz", "AUTH_SCHEME"},
		{"garbage token", "Bearer invalid.token.here", "AUTH_INVALID"},
		{"expired token", "Bearer " + expired, "AUTH_INVALID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := serveRequireUser(req)
			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rr.Code)
			}
			var body struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if body.Error.Code != tt.wantCode {
				t.Fatalf("expected code %q, got %q", tt.wantCode, body.Error.Code)
			}
		})
	}
}

func TestRequireUser_InjectsRole(t *testing.T) {
	tok := signToken(t, "user-99", "admin", time.Now().Add(time.Hour))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)

	var capturedRole string
	rr := httptest.NewRecorder()
	RequireUser(JWTVerifier{Secret: testSecret})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedRole, _ = RoleFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rr, req)

	if capturedRole != "admin" {
		t.Fatalf("expected role 'admin', got %q", capturedRole)
	}
}

func serveRequireAdmin(ctx context.Context) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodDelete, "/admin", nil).WithContext(ctx)
	rr := httptest.NewRecorder()
	RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rr, req)
	return rr
}

func TestRequireAdmin(t *testing.T) {
	tests := []struct {
		name     string
		role     string
		wantCode int
	}{
		{"admin role", "admin", http.StatusOK},
		{"uppercase admin", "ADMIN", http.StatusOK},
		{"user role", "user", http.StatusForbidden},
		{"no role", "", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			if tt.role != "" {
				ctx = context.WithValue(ctx, ctxKeyRole{}, tt.role)
			}
			if rr := serveRequireAdmin(ctx); rr.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, rr.Code)
			}
		})
	}
}
