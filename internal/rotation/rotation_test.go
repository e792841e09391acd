package rotation

import (
	"context"
	"errors"
	"testing"

	"github.com/narratage/narratage/internal/keystore"
	"github.com/narratage/narratage/internal/metrics"
	"github.com/narratage/narratage/internal/provider"
	"github.com/narratage/narratage/internal/recordstore"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func newExecutor(t *testing.T, keys ...string) (*Executor, *keystore.Store) {
	t.Helper()
	ks, err := keystore.Load(context.Background(), recordstore.NewMemoryStore(), zerolog.Nop())
	if err != nil {
		t.Fatalf("keystore.Load: %v", err)
	}
	for _, k := range keys {
		if _, err := ks.Add(context.Background(), k, provider.Gemini, ""); err != nil {
			t.Fatalf("Add(%q): %v", k, err)
		}
	}
	return NewExecutor(ks, zerolog.Nop()), ks
}

func TestRotationOrder(t *testing.T) {
	ex, _ := newExecutor(t, "key-a", "key-b", "key-c")

	var tried []string
	got, err := Execute(context.Background(), ex, provider.Gemini,
		func(_ context.Context, key string) (string, error) {
			tried = append(tried, key)
			if key != "key-c" {
				return "", errors.New("quota exceeded")
			}
			return "result-from-c", nil
		})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got != "result-from-c" {
		t.Errorf("result = %q, want result-from-c", got)
	}

	want := []string{"key-a", "key-b", "key-c"}
	if len(tried) != len(want) {
		t.Fatalf("attempts = %v, want %v", tried, want)
	}
	for i := range want {
		if tried[i] != want[i] {
			t.Fatalf("attempt order = %v, want %v", tried, want)
		}
	}
}

func TestShortCircuitOnFirstSuccess(t *testing.T) {
	ex, _ := newExecutor(t, "key-a", "key-b", "key-c")

	calls := 0
	got, err := Execute(context.Background(), ex, provider.Gemini,
		func(_ context.Context, key string) (int, error) {
			calls++
			return 42, nil
		})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got != 42 {
		t.Errorf("result = %d, want 42", got)
	}
	if calls != 1 {
		t.Errorf("operation invoked %d times, want 1", calls)
	}
}

func TestEmptyPool(t *testing.T) {
	t.Run("no_keys_at_all", func(t *testing.T) {
		ex, _ := newExecutor(t)
		calls := 0
		_, err := Execute(context.Background(), ex, provider.Gemini,
			func(_ context.Context, _ string) (string, error) {
				calls++
				return "", nil
			})
		if !errors.Is(err, ErrNoKeys) {
			t.Fatalf("err = %v, want ErrNoKeys", err)
		}
		if calls != 0 {
			t.Errorf("operation invoked %d times on empty pool", calls)
		}
	})

	t.Run("all_disabled", func(t *testing.T) {
		ex, ks := newExecutor(t, "key-a", "key-b")
		for _, c := range ks.Keys(provider.Gemini) {
			if err := ks.Toggle(context.Background(), c.ID); err != nil {
				t.Fatal(err)
			}
		}
		calls := 0
		_, err := Execute(context.Background(), ex, provider.Gemini,
			func(_ context.Context, _ string) (string, error) {
				calls++
				return "", nil
			})
		if !errors.Is(err, ErrNoKeys) {
			t.Fatalf("err = %v, want ErrNoKeys", err)
		}
		if calls != 0 {
			t.Errorf("operation invoked %d times with all keys disabled", calls)
		}
	})
}

func TestAllAttemptsFail(t *testing.T) {
	ex, _ := newExecutor(t, "key-a", "key-b")

	lastErr := errors.New("rate limited")
	_, err := Execute(context.Background(), ex, provider.Gemini,
		func(_ context.Context, key string) (string, error) {
			if key == "key-a" {
				return "", errors.New("invalid key")
			}
			return "", lastErr
		})

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("err = %v, want ExhaustedError", err)
	}
	if errors.Is(err, ErrNoKeys) {
		t.Error("exhausted pool must stay distinguishable from ErrNoKeys")
	}
	if exhausted.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", exhausted.Attempts)
	}
	// The last observed failure, not the first, is propagated.
	if !errors.Is(err, lastErr) {
		t.Errorf("exhausted error does not wrap the last attempt error: %v", err)
	}
}

func TestRotationCounters(t *testing.T) {
	ex, _ := newExecutor(t, "key-a", "key-b")

	p := string(provider.Gemini)
	success := metrics.RotationAttemptsTotal.WithLabelValues(p, "success")
	failure := metrics.RotationAttemptsTotal.WithLabelValues(p, "failure")
	exhausted := metrics.RotationExhaustedTotal.WithLabelValues(p)

	// Counters are process-global, so assert deltas.
	baseSuccess := testutil.ToFloat64(success)
	baseFailure := testutil.ToFloat64(failure)
	baseExhausted := testutil.ToFloat64(exhausted)

	_, err := Execute(context.Background(), ex, provider.Gemini,
		func(_ context.Context, key string) (string, error) {
			if key == "key-a" {
				return "", errors.New("invalid key")
			}
			return "ok", nil
		})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if got := testutil.ToFloat64(failure) - baseFailure; got != 1 {
		t.Errorf("failure attempts = %v, want 1", got)
	}
	if got := testutil.ToFloat64(success) - baseSuccess; got != 1 {
		t.Errorf("success attempts = %v, want 1", got)
	}
	if got := testutil.ToFloat64(exhausted) - baseExhausted; got != 0 {
		t.Errorf("exhausted = %v, want 0 after recovery", got)
	}

	_, err = Execute(context.Background(), ex, provider.Gemini,
		func(_ context.Context, _ string) (string, error) {
			return "", errors.New("quota")
		})
	if err == nil {
		t.Fatal("expected exhausted pool")
	}

	if got := testutil.ToFloat64(failure) - baseFailure; got != 3 {
		t.Errorf("failure attempts = %v, want 3 after exhausted call", got)
	}
	if got := testutil.ToFloat64(exhausted) - baseExhausted; got != 1 {
		t.Errorf("exhausted = %v, want 1", got)
	}
}

func TestDisabledKeysSkipped(t *testing.T) {
	ex, ks := newExecutor(t, "key-a", "key-b", "key-c")
	keys := ks.Keys(provider.Gemini)
	if err := ks.Toggle(context.Background(), keys[1].ID); err != nil {
		t.Fatal(err)
	}

	var tried []string
	_, err := Execute(context.Background(), ex, provider.Gemini,
		func(_ context.Context, key string) (string, error) {
			tried = append(tried, key)
			return "", errors.New("fail")
		})
	if err == nil {
		t.Fatal("expected failure")
	}
	if len(tried) != 2 || tried[0] != "key-a" || tried[1] != "key-c" {
		t.Errorf("tried = %v, want [key-a key-c]", tried)
	}
}
