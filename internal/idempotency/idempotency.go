// Package idempotency implements the (scope, key) -> cached response cache
// that backs safe client-side retries of side-effecting commands.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/tradeforge/controlplane/internal/domain"
	"github.com/tradeforge/controlplane/internal/platform/apierrors"
	"github.com/tradeforge/controlplane/internal/store"
)

// Cache wraps a store.Store with the idempotency contract from spec §4.2:
// miss runs the command; hit with the same fingerprint replays verbatim;
// hit with a different fingerprint conflicts.
type Cache struct {
	store store.Store
}

// New builds a Cache backed by s.
func New(s store.Store) *Cache {
	return &Cache{store: s}
}

// Fingerprint computes the canonical-JSON (sorted keys) SHA-256 digest of an
// arbitrary payload.
func Fingerprint(payload interface{}) (string, error) {
	canonical, err := canonicalize(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// canonicalize round-trips payload through a map with sorted keys so two
// structurally-equal payloads with different field order produce the same
// bytes.
func canonicalize(payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return marshalSorted(generic)
}

func marshalSorted(v interface{}) ([]byte, error) {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf := []byte("{")
		for i, k := range keys {
			if i > 0 {
				buf = append(buf, ',')
			}
			kb, _ := json.Marshal(k)
			buf = append(buf, kb...)
			buf = append(buf, ':')
			vb, err := marshalSorted(val[k])
			if err != nil {
				return nil, err
			}
			buf = append(buf, vb...)
		}
		return append(buf, '}'), nil
	case []interface{}:
		buf := []byte("[")
		for i, item := range val {
			if i > 0 {
				buf = append(buf, ',')
			}
			ib, err := marshalSorted(item)
			if err != nil {
				return nil, err
			}
			buf = append(buf, ib...)
		}
		return append(buf, ']'), nil
	default:
		return json.Marshal(val)
	}
}

// Result is returned on a cache hit that should short-circuit execution.
type Result struct {
	Replayed bool
	Body     []byte
	Status   int
}

// Lookup checks for an existing entry. If found with a matching fingerprint,
// Result.Replayed is true and the caller must not re-execute side effects.
// A found entry with a different fingerprint returns IDEMPOTENCY_KEY_CONFLICT.
func (c *Cache) Lookup(ctx context.Context, scope, key string, payload interface{}) (Result, error) {
	if key == "" {
		return Result{}, nil
	}
	fp, err := Fingerprint(payload)
	if err != nil {
		return Result{}, apierrors.Internal("failed to fingerprint idempotency payload", err)
	}

	existing, found, err := c.store.GetIdempotency(ctx, scope, key)
	if err != nil {
		return Result{}, apierrors.Internal("idempotency lookup failed", err)
	}
	if !found {
		return Result{}, nil
	}
	if existing.PayloadFingerprint != fp {
		return Result{}, apierrors.IdempotencyConflict(scope, key)
	}
	return Result{Replayed: true, Body: existing.ResponseBody, Status: existing.ResponseStatus}, nil
}

// Store records a command's response under (scope,key,fingerprint). Because
// the store's compare-and-set may lose a race to a concurrent identical
// request, a lost race is not an error: the racing request's own response is
// semantically equivalent since the fingerprints matched.
func (c *Cache) Store(ctx context.Context, scope, key string, payload interface{}, status int, body []byte) error {
	if key == "" {
		return nil
	}
	fp, err := Fingerprint(payload)
	if err != nil {
		return apierrors.Internal("failed to fingerprint idempotency payload", err)
	}
	_, _, err = c.store.PutIdempotencyIfAbsent(ctx, domain.IdempotencyEntry{
		Scope:              scope,
		Key:                key,
		PayloadFingerprint: fp,
		ResponseBody:       body,
		ResponseStatus:     status,
	})
	if err != nil {
		return apierrors.Internal("failed to store idempotency entry", err)
	}
	return nil
}
