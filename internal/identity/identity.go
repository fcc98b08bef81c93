// Package identity resolves the authenticated (tenantId, userId, requestId)
// for an inbound request from a signed bearer token or an API key, and
// rejects header spoofing against the resolved identity.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tradeforge/controlplane/internal/platform/apierrors"
)

// Identity is the resolved caller for one request.
type Identity struct {
	TenantID  string
	UserID    string
	RequestID string
	Email     string
}

// Claims is the HS256 bearer token payload this resolver accepts.
type Claims struct {
	jwt.RegisteredClaims
	TenantID string `json:"tenantId"`
	UserID   string `json:"userId"`
	Email    string `json:"email"`
}

// Resolver resolves identity from request headers using an HS256 secret for
// bearer tokens.
type Resolver struct {
	secret []byte
	leeway time.Duration
}

// NewResolver builds a Resolver. An empty secret means bearer tokens are
// never accepted; API-key derivation still works.
func NewResolver(secret string) *Resolver {
	return &Resolver{secret: []byte(secret), leeway: 5 * time.Second}
}

// Resolve implements spec rules 4.1.1-4.1.5.
func (r *Resolver) Resolve(req *http.Request) (Identity, error) {
	requestID := strings.TrimSpace(req.Header.Get("X-Request-Id"))

	ident, ok := r.fromBearerToken(req)
	if !ok {
		ident, ok = fromAPIKey(req)
	}
	if !ok {
		return Identity{}, apierrors.Unauthorized("missing or invalid credentials")
	}
	ident.RequestID = requestID

	if headerTenant := strings.TrimSpace(req.Header.Get("X-Tenant-Id")); headerTenant != "" && headerTenant != ident.TenantID {
		return Identity{}, apierrors.IdentityMismatch("X-Tenant-Id")
	}
	if headerUser := strings.TrimSpace(req.Header.Get("X-User-Id")); headerUser != "" && headerUser != ident.UserID {
		return Identity{}, apierrors.IdentityMismatch("X-User-Id")
	}
	return ident, nil
}

func (r *Resolver) fromBearerToken(req *http.Request) (Identity, bool) {
	if len(r.secret) == 0 {
		return Identity{}, false
	}
	raw := extractBearer(req)
	if raw == "" {
		return Identity{}, false
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return r.secret, nil
	}, jwt.WithLeeway(r.leeway))
	if err != nil || !token.Valid {
		return Identity{}, false
	}
	if claims.TenantID == "" || claims.UserID == "" {
		return Identity{}, false
	}
	return Identity{
		TenantID: claims.TenantID,
		UserID:   claims.UserID,
		Email:    strings.ToLower(claims.Email),
	}, true
}

func extractBearer(req *http.Request) string {
	header := strings.TrimSpace(req.Header.Get("Authorization"))
	parts := strings.Fields(header)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}
	return ""
}

// fromAPIKey derives a deterministic (tenantId, userId) pair from the content
// hash of the API key per spec §4.1.2: tenant-apikey-<h12>, user-apikey-<h13..24>.
func fromAPIKey(req *http.Request) (Identity, bool) {
	key := strings.TrimSpace(req.Header.Get("X-API-Key"))
	if key == "" {
		return Identity{}, false
	}
	sum := sha256.Sum256([]byte(key))
	hexDigest := hex.EncodeToString(sum[:])
	return Identity{
		TenantID: "tenant-apikey-" + hexDigest[0:12],
		UserID:   "user-apikey-" + hexDigest[12:24],
	}, true
}
