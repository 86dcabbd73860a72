package inmemory

import (
	"context"
	"errors"
	"testing"

	"github.com/dvloznov/household-ledger/internal/kv"
	"github.com/dvloznov/household-ledger/internal/kv/kvtest"
)

func TestStore_GetSetRemove(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	if _, ok, err := s.Get(ctx, "missing"); ok || err != nil {
		t.Fatalf("Get(missing) = ok %v err %v, want absent", ok, err)
	}

	value := []byte(`[1,2]`)
	if err := s.Set(ctx, "k", value); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	value[0] = 'x'

	got, ok, err := s.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Get(k) = ok %v err %v", ok, err)
	}
	if string(got) != `[1,2]` {
		t.Errorf("stored value was aliased: %q", got)
	}

	if err := s.Remove(ctx, "k"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Error("key still present after Remove")
	}
}

func TestStore_Batch(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	err := s.MultiSet(ctx, map[string][]byte{"a": []byte("1"), "b": []byte("2")})
	if err != nil {
		t.Fatalf("MultiSet failed: %v", err)
	}

	got, err := s.MultiGet(ctx, []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("MultiGet failed: %v", err)
	}
	if len(got) != 2 || string(got["a"]) != "1" || string(got["b"]) != "2" {
		t.Errorf("MultiGet = %v", got)
	}

	if err := s.MultiRemove(ctx, []string{"a", "c"}); err != nil {
		t.Fatalf("MultiRemove failed: %v", err)
	}
	got, _ = s.MultiGet(ctx, []string{"a", "b"})
	if _, ok := got["a"]; ok || len(got) != 1 {
		t.Errorf("MultiGet after remove = %v", got)
	}
}

func TestStore_Closed(t *testing.T) {
	s := NewStore()
	_ = s.Close()

	if err := s.Set(context.Background(), "k", nil); !errors.Is(err, kv.ErrClosed) {
		t.Errorf("Set after Close error = %v, want ErrClosed", err)
	}
}

func TestStore_Contract(t *testing.T) {
	kvtest.Run(t, func(t *testing.T) kv.Store { return NewStore() })
}
