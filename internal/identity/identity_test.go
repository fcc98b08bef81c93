package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeforge/controlplane/internal/platform/apierrors"
)

func signToken(t *testing.T, secret, tenantID, userID string) string {
	t.Helper()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		TenantID: tenantID,
		UserID:   userID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestResolver_BearerTokenIdentityMismatch(t *testing.T) {
	r := NewResolver("test-secret")
	tok := signToken(t, "test-secret", "tenant-001", "user-001")

	req := httptest.NewRequest(http.MethodGet, "/v1/deployments", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("X-Tenant-Id", "tenant-002")

	_, err := r.Resolve(req)
	require.Error(t, err)
	apiErr, ok := apierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.CodeAuthIdentityMismatch, apiErr.Code)
}

func TestResolver_BearerTokenHappyPath(t *testing.T) {
	r := NewResolver("test-secret")
	tok := signToken(t, "test-secret", "tenant-001", "user-001")

	req := httptest.NewRequest(http.MethodGet, "/v1/deployments", nil)
	req.Header.Set("Authorization", "Bearer "+tok)

	ident, err := r.Resolve(req)
	require.NoError(t, err)
	assert.Equal(t, "tenant-001", ident.TenantID)
	assert.Equal(t, "user-001", ident.UserID)
}

func TestResolver_APIKeyDerivesDeterministicIdentity(t *testing.T) {
	r := NewResolver("test-secret")
	req := httptest.NewRequest(http.MethodGet, "/v1/deployments", nil)
	req.Header.Set("X-API-Key", "my-api-key")

	first, err := r.Resolve(req)
	require.NoError(t, err)

	second, err := r.Resolve(req)
	require.NoError(t, err)
	assert.Equal(t, first.TenantID, second.TenantID)
	assert.Equal(t, first.UserID, second.UserID)
	assert.True(t, len(first.TenantID) > 0 && len(first.UserID) > 0)
}

func TestResolver_NoCredentials(t *testing.T) {
	r := NewResolver("test-secret")
	req := httptest.NewRequest(http.MethodGet, "/v1/deployments", nil)

	_, err := r.Resolve(req)
	require.Error(t, err)
	apiErr, ok := apierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.CodeAuthUnauthorized, apiErr.Code)
}

func TestResolver_MissingHeaderIsNotMismatch(t *testing.T) {
	r := NewResolver("test-secret")
	tok := signToken(t, "test-secret", "tenant-001", "user-001")
	req := httptest.NewRequest(http.MethodGet, "/v1/deployments", nil)
	req.Header.Set("Authorization", "Bearer "+tok)

	_, err := r.Resolve(req)
	require.NoError(t, err)
}
