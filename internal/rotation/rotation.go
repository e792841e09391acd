// Package rotation runs caller-supplied remote operations against a
// provider's pool of enabled API keys, falling through to the next key when
// an attempt fails. Callers never learn how many keys exist or which one
// succeeded.
package rotation

import (
	"context"
	"errors"
	"fmt"

	"github.com/narratage/narratage/internal/keystore"
	"github.com/narratage/narratage/internal/metrics"
	"github.com/narratage/narratage/internal/provider"
	"github.com/rs/zerolog"
)

// ErrNoKeys is returned before any remote attempt when the provider has no
// enabled credentials. The API layer maps it to a "please add a key" prompt,
// so it must stay distinguishable from attempt failures.
var ErrNoKeys = errors.New("no enabled API keys for provider")

// ExhaustedError reports that every enabled credential's attempt failed.
// Last carries the final underlying failure unmodified.
type ExhaustedError struct {
	Provider provider.Provider
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all %d enabled %s keys failed, last error: %v", e.Attempts, e.Provider, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Operation is one attempt of a remote call using a single credential's key
// material. Any returned error, regardless of cause, advances rotation to
// the next key.
type Operation[T any] func(ctx context.Context, key string) (T, error)

// Executor resolves the enabled key pool per call and drives rotation.
type Executor struct {
	keys *keystore.Store
	log  zerolog.Logger
}

// NewExecutor creates a rotation executor backed by the given key store.
func NewExecutor(keys *keystore.Store, log zerolog.Logger) *Executor {
	return &Executor{
		keys: keys,
		log:  log.With().Str("component", "rotation").Logger(),
	}
}

// Execute runs op against each enabled credential for the provider, in store
// order, until one succeeds. Attempts are strictly sequential: one in-flight
// remote call at a time keeps failure attribution unambiguous and avoids
// piling load onto a provider that is already failing.
//
// The pool is snapshotted once at entry; concurrent key mutations affect
// later calls, not this one. No timeout is imposed here; that belongs to op.
func Execute[T any](ctx context.Context, ex *Executor, p provider.Provider, op Operation[T]) (T, error) {
	var zero T

	pool := ex.keys.EnabledKeys(p)
	if len(pool) == 0 {
		ex.log.Warn().Str("provider", string(p)).Msg("no enabled keys")
		return zero, fmt.Errorf("%w: %s", ErrNoKeys, p)
	}

	var lastErr error
	for i, cred := range pool {
		result, err := op(ctx, cred.Key)
		if err == nil {
			metrics.RotationAttemptsTotal.WithLabelValues(string(p), "success").Inc()
			if i > 0 {
				ex.log.Info().
					Str("provider", string(p)).
					Str("key_label", cred.Label).
					Int("attempt", i+1).
					Msg("attempt succeeded after rotation")
			}
			return result, nil
		}

		// Deliberately no classification: auth, quota, network, and
		// malformed-response failures all rotate the same way.
		metrics.RotationAttemptsTotal.WithLabelValues(string(p), "failure").Inc()
		ex.log.Warn().Err(err).
			Str("provider", string(p)).
			Str("key_label", cred.Label).
			Int("attempt", i+1).
			Int("pool_size", len(pool)).
			Msg("attempt failed, rotating to next key")
		lastErr = err
	}

	metrics.RotationExhaustedTotal.WithLabelValues(string(p)).Inc()
	return zero, &ExhaustedError{Provider: p, Attempts: len(pool), Last: lastErr}
}
