package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swiftpay/internal/domain"
)

const testSecret = "test-secret-not-for-production"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func validClaims(role domain.Role) jwt.MapClaims {
	return jwt.MapClaims{
		"user_id":  uuid.New().String(),
		"username": "alice_lee",
		"role":     string(role),
		"exp":      time.Now().Add(time.Hour).Unix(),
		"iat":      time.Now().Unix(),
	}
}

// fakeBlacklist is an in-memory TokenBlacklist for tests.
type fakeBlacklist struct {
	revoked map[string]bool
}

func newFakeBlacklist() *fakeBlacklist {
	return &fakeBlacklist{revoked: make(map[string]bool)}
}

func (f *fakeBlacklist) Blacklist(ctx context.Context, token string, expiration time.Duration) error {
	f.revoked[token] = true
	return nil
}

func (f *fakeBlacklist) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	return f.revoked[token], nil
}

func runAuthenticated(t *testing.T, authHeader string) (*httptest.ResponseRecorder, *domain.Principal) {
	t.Helper()
	mw := NewAuthMiddleware(testSecret, nil)

	var captured *domain.Principal
	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, ok := PrincipalFromContext(r.Context()); ok {
			captured = &p
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/my", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, captured
}

func TestAuthenticate_ValidToken(t *testing.T) {
	claims := validClaims(domain.RoleCustomer)
	claims["account_number"] = "1234567890"
	token := signToken(t, testSecret, claims)

	rec, principal := runAuthenticated(t, "Bearer "+token)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, principal)
	assert.Equal(t, domain.RoleCustomer, principal.Role)
	assert.Equal(t, "alice_lee", principal.Username)
	assert.Equal(t, "1234567890", principal.AccountNumber)
}

func TestAuthenticate_Rejections(t *testing.T) {
	expired := validClaims(domain.RoleCustomer)
	expired["exp"] = time.Now().Add(-time.Hour).Unix()

	badRole := validClaims("admin")
	badUserID := validClaims(domain.RoleEmployee)
	badUserID["user_id"] = "not-a-uuid"

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic dXNlcjpwYXNz"},
		{"garbage token", "Bearer not.a.token"},
		{"wrong secret", "Bearer " + signToken(t, "other-secret", validClaims(domain.RoleCustomer))},
		{"expired token", "Bearer " + signToken(t, testSecret, expired)},
		{"unknown role", "Bearer " + signToken(t, testSecret, badRole)},
		{"malformed user id", "Bearer " + signToken(t, testSecret, badUserID)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, principal := runAuthenticated(t, tc.header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Nil(t, principal)
		})
	}
}

func TestAuthenticate_RevokedTokenRejected(t *testing.T) {
	blacklist := newFakeBlacklist()
	mw := NewAuthMiddleware(testSecret, blacklist)

	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	token := signToken(t, testSecret, validClaims(domain.RoleCustomer))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/my", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// The same token is refused once revoked.
	require.NoError(t, blacklist.Blacklist(context.Background(), token, time.Hour))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/payments/my", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticate_TokenOnContext(t *testing.T) {
	mw := NewAuthMiddleware(testSecret, nil)

	var captured BearerToken
	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = TokenFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	token := signToken(t, testSecret, validClaims(domain.RoleCustomer))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, token, captured.Raw)
	assert.True(t, captured.ExpiresAt.After(time.Now()))
}

func TestRequireRole(t *testing.T) {
	mw := NewAuthMiddleware(testSecret, nil)
	protected := mw.Authenticate(RequireRole(domain.RoleEmployee)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	))

	employeeToken := signToken(t, testSecret, validClaims(domain.RoleEmployee))
	customerToken := signToken(t, testSecret, validClaims(domain.RoleCustomer))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments", nil)
	req.Header.Set("Authorization", "Bearer "+employeeToken)
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Exact match, not a hierarchy: a customer is refused outright.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/payments", nil)
	req.Header.Set("Authorization", "Bearer "+customerToken)
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
