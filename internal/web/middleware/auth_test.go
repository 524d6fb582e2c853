package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/database"
)

const testSecret = "test-secret"

func TestIssueAndParseToken(t *testing.T) {
	p := attendance.Principal{UserID: 42, Role: database.RoleTeacher}

	token, err := IssueToken(testSecret, p, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	got, err := ParseToken(testSecret, token)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if got != p {
		t.Errorf("ParseToken() = %+v, want %+v", got, p)
	}
}

func TestIssueToken_RequiresSecret(t *testing.T) {
	if _, err := IssueToken("", attendance.Principal{UserID: 1, Role: database.RoleAdmin}, time.Hour); err == nil {
		t.Error("expected error for empty secret")
	}
}

func TestParseToken_Rejects(t *testing.T) {
	valid, _ := IssueToken(testSecret, attendance.Principal{UserID: 1, Role: database.RoleAdmin}, time.Hour)
	expired, _ := IssueToken(testSecret, attendance.Principal{UserID: 1, Role: database.RoleAdmin}, -time.Minute)
	badRole, _ := IssueToken(testSecret, attendance.Principal{UserID: 1, Role: "janitor"}, time.Hour)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		Role:             database.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "1"},
	})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	noSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Role: database.RoleAdmin}).SignedString([]byte(testSecret))

	tests := []struct {
		name   string
		secret string
		token  string
	}{
		{"wrong secret", "other", valid},
		{"expired", testSecret, expired},
		{"unknown role", testSecret, badRole},
		{"alg none", testSecret, unsigned},
		{"missing subject", testSecret, noSubject},
		{"garbage", testSecret, "not.a.token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseToken(tt.secret, tt.token); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRequireAuth(t *testing.T) {
	token, _ := IssueToken(testSecret, attendance.Principal{UserID: 7, Role: database.RoleStudent}, time.Hour)

	var seen *attendance.Principal
	handler := RequireAuth(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetPrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name     string
		prepare  func(r *http.Request)
		wantCode int
	}{
		{"no token", func(r *http.Request) {}, http.StatusUnauthorized},
		{"bearer header", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, http.StatusOK},
		{"lowercase bearer", func(r *http.Request) { r.Header.Set("Authorization", "bearer "+token) }, http.StatusOK},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: TokenCookieName, Value: token}) }, http.StatusOK},
		{"bad token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest("GET", "/api/v1/recognize", nil)
			tt.prepare(req)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantCode == http.StatusOK && (seen == nil || seen.UserID != 7) {
				t.Errorf("expected principal 7 in context, got %+v", seen)
			}
		})
	}
}

func TestGetPrincipalFromContext_Missing(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	if p := GetPrincipalFromContext(req.Context()); p != nil {
		t.Errorf("expected nil principal, got %+v", p)
	}
}

func TestCORS(t *testing.T) {
	handler := CORS([]string{"https://school.example.com"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		origin string
		want   string
	}{
		{"https://school.example.com", "https://school.example.com"},
		{"http://localhost:5173", "http://localhost:5173"},
		{"https://evil.example.com", ""},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/v1/health", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.want)
			}
		})
	}
}
