package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/database"
)

type contextKey string

const principalContextKey contextKey = "principal"

// TokenCookieName is read when a request carries no Authorization header
const TokenCookieName = "access_token"

// Claims are the JWT claims of an access token. The subject is the user id.
type Claims struct {
	Role database.Role `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 access token for p valid for ttl.
func IssueToken(secret string, p attendance.Principal, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("JWT secret is required")
	}
	now := time.Now()
	claims := Claims{
		Role: p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(p.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// ParseToken verifies an access token and returns its principal.
func ParseToken(secret, raw string) (attendance.Principal, error) {
	var claims Claims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return attendance.Principal{}, err
	}
	if !tok.Valid {
		return attendance.Principal{}, errors.New("invalid token")
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return attendance.Principal{}, errors.New("invalid token subject")
	}
	switch claims.Role {
	case database.RoleAdmin, database.RoleTeacher, database.RoleStudent:
	default:
		return attendance.Principal{}, fmt.Errorf("unknown role %q", claims.Role)
	}
	return attendance.Principal{UserID: userID, Role: claims.Role}, nil
}

// tokenFromRequest returns the bearer token, falling back to the token cookie
func tokenFromRequest(r *http.Request) string {
	if authz := strings.TrimSpace(r.Header.Get("Authorization")); len(authz) > 7 && strings.EqualFold(authz[:7], "bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	if c, err := r.Cookie(TokenCookieName); err == nil {
		return c.Value
	}
	return ""
}

// RequireAuth is middleware that requires a valid access token
func RequireAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := tokenFromRequest(r)
			if raw == "" || secret == "" {
				http.Error(w, `{"error": "unauthorized"}`, http.StatusUnauthorized)
				return
			}
			p, err := ParseToken(secret, raw)
			if err != nil {
				http.Error(w, `{"error": "unauthorized"}`, http.StatusUnauthorized)
				return
			}

			ctx := SetPrincipalInContext(r.Context(), p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetPrincipalFromContext retrieves the principal from the request context
func GetPrincipalFromContext(ctx context.Context) *attendance.Principal {
	p, ok := ctx.Value(principalContextKey).(attendance.Principal)
	if !ok {
		return nil
	}
	return &p
}

// SetPrincipalInContext adds a principal to the context.
// This is primarily for testing - use RequireAuth middleware in production.
func SetPrincipalInContext(ctx context.Context, p attendance.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}
