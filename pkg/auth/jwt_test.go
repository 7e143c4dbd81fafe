package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTService(t *testing.T) *JWTService {
	t.Helper()
	svc, err := NewJWTService(JWTConfig{
		Secret:     "test-secret-key-for-unit-tests",
		Issuer:     "loan-ledger-test",
		Expiration: 15 * time.Minute,
	})
	require.NoError(t, err)
	return svc
}

func TestGenerateAndValidateToken(t *testing.T) {
	svc := newTestJWTService(t)

	tokenString, err := svc.GenerateToken("user-1", []string{RoleOperator})
	require.NoError(t, err)
	require.NotEmpty(t, tokenString)

	claims, err := svc.ValidateToken(tokenString)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "loan-ledger-test", claims.Issuer)
	assert.True(t, claims.HasRole(RoleOperator))
	assert.False(t, claims.HasRole(RoleAdmin))
}

func TestNewJWTService_RequiresSecret(t *testing.T) {
	_, err := NewJWTService(JWTConfig{})
	assert.Error(t, err)
}

func TestValidateToken_Kinds(t *testing.T) {
	svc := newTestJWTService(t)

	expired := newTestJWTService(t)
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expiredToken, err := expired.GenerateToken("user-1", nil)
	require.NoError(t, err)

	other, err := NewJWTService(JWTConfig{Secret: "another-secret", Issuer: "loan-ledger-test"})
	require.NoError(t, err)
	foreignToken, err := other.GenerateToken("user-1", nil)
	require.NoError(t, err)

	wrongIssuer, err := NewJWTService(JWTConfig{Secret: "test-secret-key-for-unit-tests", Issuer: "someone-else"})
	require.NoError(t, err)
	wrongIssuerToken, err := wrongIssuer.GenerateToken("user-1", nil)
	require.NoError(t, err)

	noSubjectToken, err := svc.GenerateToken("", nil)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		kind  ErrorKind
	}{
		{"missing", "", KindMissing},
		{"malformed", "not-a-jwt", KindMalformed},
		{"expired", expiredToken, KindExpired},
		{"bad signature", foreignToken, KindInvalid},
		{"wrong issuer", wrongIssuerToken, KindInvalid},
		{"no subject", noSubjectToken, KindInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateToken(tt.token)
			require.Error(t, err)
			assert.Equal(t, tt.kind, KindOf(err))
		})
	}
}

func TestMiddleware(t *testing.T) {
	svc := newTestJWTService(t)
	token, err := svc.GenerateToken("user-1", []string{RoleCustomer})
	require.NoError(t, err)

	var seenOwner string
	handler := Middleware(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenOwner, _ = OwnerIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name           string
		header         string
		expectedStatus int
		expectedBody   string
	}{
		{"valid", "Bearer " + token, http.StatusNoContent, ""},
		{"missing", "", http.StatusUnauthorized, "missing bearer token"},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, "malformed bearer token"},
		{"garbage", "Bearer abc", http.StatusUnauthorized, "malformed bearer token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seenOwner = ""
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			if tt.expectedBody != "" {
				assert.Contains(t, rec.Body.String(), tt.expectedBody)
				assert.Empty(t, seenOwner)
			} else {
				assert.Equal(t, "user-1", seenOwner)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	svc := newTestJWTService(t)
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := Middleware(svc)(RequireRole(RoleOperator, RoleAdmin)(ok))

	tests := []struct {
		name           string
		roles          []string
		expectedStatus int
	}{
		{"operator", []string{RoleOperator}, http.StatusOK},
		{"admin", []string{RoleCustomer, RoleAdmin}, http.StatusOK},
		{"customer", []string{RoleCustomer}, http.StatusForbidden},
		{"no roles", nil, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := svc.GenerateToken("user-1", tt.roles)
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodPost, "/", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.expectedStatus, rec.Code)
		})
	}
}

func TestRequireRole_WithoutClaims(t *testing.T) {
	handler := RequireRole(RoleOperator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
