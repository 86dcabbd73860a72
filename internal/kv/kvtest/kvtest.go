// Package kvtest checks a kv.Store implementation against the behaviour the
// ledger relies on. Backends call Run from their own tests.
package kvtest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dvloznov/household-ledger/internal/kv"
)

// Run exercises the store returned by open. open is called once per subtest
// and must return an empty store; keys are prefixed so a shared remote
// backend can be reused.
func Run(t *testing.T, open func(t *testing.T) kv.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("AbsentKey", func(t *testing.T) {
		s := open(t)
		key := uniqueKey(t, "absent")
		if _, ok, err := s.Get(ctx, key); ok || err != nil {
			t.Fatalf("Get(absent) = ok %v err %v", ok, err)
		}
		if err := s.Remove(ctx, key); err != nil {
			t.Fatalf("Remove(absent) error = %v", err)
		}
	})

	t.Run("SetOverwrites", func(t *testing.T) {
		s := open(t)
		key := uniqueKey(t, "users")
		for _, v := range []string{`[{"id":1}]`, `[]`} {
			if err := s.Set(ctx, key, []byte(v)); err != nil {
				t.Fatalf("Set failed: %v", err)
			}
			got, ok, err := s.Get(ctx, key)
			if err != nil || !ok || string(got) != v {
				t.Fatalf("Get = %q ok %v err %v, want %q", got, ok, err, v)
			}
		}
		if err := s.Remove(ctx, key); err != nil {
			t.Fatalf("Remove failed: %v", err)
		}
		if _, ok, _ := s.Get(ctx, key); ok {
			t.Error("key present after Remove")
		}
	})

	t.Run("Batch", func(t *testing.T) {
		s := open(t)
		a, b, missing := uniqueKey(t, "a"), uniqueKey(t, "b"), uniqueKey(t, "missing")
		entries := map[string][]byte{a: []byte("1"), b: []byte(`{"x":"y"}`)}
		if err := s.MultiSet(ctx, entries); err != nil {
			t.Fatalf("MultiSet failed: %v", err)
		}

		got, err := s.MultiGet(ctx, []string{a, b, missing})
		if err != nil {
			t.Fatalf("MultiGet failed: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("MultiGet returned %d keys, want 2", len(got))
		}
		for k, v := range entries {
			if string(got[k]) != string(v) {
				t.Errorf("MultiGet[%s] = %q, want %q", k, got[k], v)
			}
		}

		if err := s.MultiRemove(ctx, []string{a, b, missing}); err != nil {
			t.Fatalf("MultiRemove failed: %v", err)
		}
		got, err = s.MultiGet(ctx, []string{a, b})
		if err != nil || len(got) != 0 {
			t.Errorf("MultiGet after MultiRemove = %v, %v", got, err)
		}
	})

	t.Run("EmptyBatches", func(t *testing.T) {
		s := open(t)
		if err := s.MultiSet(ctx, nil); err != nil {
			t.Errorf("MultiSet(nil) error = %v", err)
		}
		if got, err := s.MultiGet(ctx, nil); err != nil || len(got) != 0 {
			t.Errorf("MultiGet(nil) = %v, %v", got, err)
		}
		if err := s.MultiRemove(ctx, nil); err != nil {
			t.Errorf("MultiRemove(nil) error = %v", err)
		}
	})

	t.Run("Lock", func(t *testing.T) {
		s := open(t)
		locker, ok := s.(kv.Locker)
		if !ok {
			t.Skip("store does not implement kv.Locker")
		}
		name := uniqueKey(t, "lock")

		release, err := locker.Lock(ctx, name)
		if err != nil {
			t.Fatalf("Lock failed: %v", err)
		}

		waitCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
		defer cancel()
		if again, err := locker.Lock(waitCtx, name); err == nil {
			_ = again(ctx)
			t.Fatal("second Lock acquired a held lock")
		}

		other, err := locker.Lock(ctx, uniqueKey(t, "other"))
		if err != nil {
			t.Fatalf("Lock on another name failed: %v", err)
		}
		if err := other(ctx); err != nil {
			t.Errorf("release other failed: %v", err)
		}

		if err := release(ctx); err != nil {
			t.Fatalf("release failed: %v", err)
		}
		relock, err := locker.Lock(ctx, name)
		if err != nil {
			t.Fatalf("Lock after release failed: %v", err)
		}
		if err := relock(ctx); err != nil {
			t.Errorf("release after relock failed: %v", err)
		}
	})
}

func uniqueKey(t *testing.T, name string) string {
	return fmt.Sprintf("kvtest/%s/%s", t.Name(), name)
}
