// Package httpmw provides the HTTP middleware chain shared by every router
// mount: panic recovery, request-id propagation, structured request logging,
// CORS, and per-tenant rate limiting.
package httpmw

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/tradeforge/controlplane/internal/platform/apierrors"
	"github.com/tradeforge/controlplane/internal/platform/logger"
)

type ctxKey string

const requestIDKey ctxKey = "httpmw.requestId"

// RequestIDFromContext returns the request id assigned by RequestID, or "" if
// none was assigned (e.g. in a unit test calling a handler directly).
func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// RequestID assigns a request id (from X-Request-Id if present, else a fresh
// uuid), stashes it on the context and echoes it back as a response header.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Recovery turns a panic in a downstream handler into a rendered 500
// PlatformAPIError instead of a crashed connection.
func Recovery(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.WithContext(r.Context()).WithField("stack", string(debug.Stack())).
						Errorf("panic recovered: %v", rec)
					apiErr := apierrors.Internal("internal server error", fmt.Errorf("%v", rec)).
						WithRequestID(RequestIDFromContext(r.Context()))
					WriteError(w, apiErr)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// Logging logs one structured line per completed request.
func Logging(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			log.WithContext(r.Context()).WithFields(map[string]interface{}{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     rec.status,
				"durationMs": time.Since(start).Milliseconds(),
			}).Info("http request")
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// CORS returns the cross-origin middleware allowing the given origins
// ("*" allows any).
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "Idempotency-Key", "X-Request-Id", "X-Tenant-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           3600,
	})
}

// TenantRateLimiter shapes request traffic per tenant using a token bucket per
// tenant id, lazily created on first use.
type TenantRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// NewTenantRateLimiter builds a limiter allowing rps requests/sec per tenant
// with the given burst.
func NewTenantRateLimiter(rps float64, burst int) *TenantRateLimiter {
	if rps <= 0 {
		rps = 20
	}
	if burst <= 0 {
		burst = 40
	}
	return &TenantRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

func (t *TenantRateLimiter) limiterFor(tenantID string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.limiters[tenantID]
	if !ok {
		l = rate.NewLimiter(t.rps, t.burst)
		t.limiters[tenantID] = l
	}
	return l
}

// Handler enforces the per-tenant limit, keying on the X-Tenant-Id header
// (requests without one share an "anonymous" bucket).
func (t *TenantRateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID := r.Header.Get("X-Tenant-Id")
		if tenantID == "" {
			tenantID = "anonymous"
		}
		if !t.limiterFor(tenantID).Allow() {
			apiErr := apierrors.New("RATE_LIMITED", http.StatusTooManyRequests, "too many requests").
				WithRequestID(RequestIDFromContext(r.Context()))
			WriteError(w, apiErr)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WriteError renders a PlatformAPIError as the canonical JSON envelope. It is
// the single place in the codebase that writes an error response body.
func WriteError(w http.ResponseWriter, err *apierrors.PlatformAPIError) {
	WriteJSONError(w, err)
}
