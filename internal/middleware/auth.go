// Package middleware hosts authentication, logging, and rate limiting middleware.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"swiftpay/internal/domain"
)

// contextKey avoids collisions when storing values in request contexts.
type contextKey string

const (
	ctxPrincipalKey contextKey = "principal"
	ctxTokenKey     contextKey = "bearer_token"
)

// BearerToken is the credential a request authenticated with, kept on the
// context so logout can revoke exactly the token that was presented.
type BearerToken struct {
	Raw       string
	ExpiresAt time.Time
}

// AuthMiddleware validates bearer JWTs and injects the principal into the context.
type AuthMiddleware struct {
	jwtSecret string
	blacklist TokenBlacklist
}

// NewAuthMiddleware constructs an AuthMiddleware with the given secret and an
// optional blacklist for revoked tokens.
func NewAuthMiddleware(secret string, blacklist TokenBlacklist) *AuthMiddleware {
	return &AuthMiddleware{jwtSecret: secret, blacklist: blacklist}
}

// Authenticate enforces bearer auth and populates the principal on the
// request context. Missing, malformed, or expired credentials all fail here,
// before any business logic runs.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if strings.TrimSpace(authHeader) == "" {
			jsonError(w, http.StatusUnauthorized, "Authorization header required")
			return
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			jsonError(w, http.StatusUnauthorized, "Invalid authorization format")
			return
		}
		tokenString := parts[1]

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(m.jwtSecret), nil
		})

		if err != nil || !token.Valid {
			jsonError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		if m.blacklist != nil {
			revoked, err := m.blacklist.IsBlacklisted(r.Context(), tokenString)
			if err != nil {
				jsonError(w, http.StatusInternalServerError, "Internal server error")
				return
			}
			if revoked {
				jsonError(w, http.StatusUnauthorized, "Token revoked")
				return
			}
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			jsonError(w, http.StatusUnauthorized, "Invalid token claims")
			return
		}

		var expiresAt time.Time
		if exp, ok := claims["exp"].(float64); ok {
			expiresAt = time.Unix(int64(exp), 0)
			if time.Now().After(expiresAt) {
				jsonError(w, http.StatusUnauthorized, "Token expired")
				return
			}
		}

		userIDStr, ok := claims["user_id"].(string)
		if !ok {
			jsonError(w, http.StatusUnauthorized, "Invalid user ID in token")
			return
		}

		userID, err := uuid.Parse(userIDStr)
		if err != nil {
			jsonError(w, http.StatusUnauthorized, "Invalid user ID format")
			return
		}

		roleStr, ok := claims["role"].(string)
		role := domain.Role(roleStr)
		if !ok || (role != domain.RoleCustomer && role != domain.RoleEmployee) {
			jsonError(w, http.StatusUnauthorized, "Invalid role in token")
			return
		}

		principal := domain.Principal{
			ID:   userID,
			Role: role,
		}
		if username, ok := claims["username"].(string); ok {
			principal.Username = username
		}
		if acct, ok := claims["account_number"].(string); ok {
			principal.AccountNumber = acct
		}

		ctx := context.WithValue(r.Context(), ctxPrincipalKey, principal)
		ctx = context.WithValue(ctx, ctxTokenKey, BearerToken{Raw: tokenString, ExpiresAt: expiresAt})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TokenFromContext returns the bearer token the request authenticated with.
func TokenFromContext(ctx context.Context) (BearerToken, bool) {
	v := ctx.Value(ctxTokenKey)
	t, ok := v.(BearerToken)
	return t, ok
}

// RequireRole rejects requests whose principal does not exactly match role.
// Role checks are allow-list matches per operation, never a hierarchy.
func RequireRole(role domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				jsonError(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			if p.Role != role {
				jsonError(w, http.StatusForbidden, "Insufficient role for this operation")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// PrincipalFromContext returns the authenticated principal from context.
func PrincipalFromContext(ctx context.Context) (domain.Principal, bool) {
	v := ctx.Value(ctxPrincipalKey)
	p, ok := v.(domain.Principal)
	return p, ok
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(fmt.Sprintf(`{"error":"%s"}`, message)))
}
