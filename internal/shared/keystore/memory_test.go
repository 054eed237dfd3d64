package keystore

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemory_CounterIncrements(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := m.IncrCounter(ctx, "counter:abc")
		if err != nil {
			t.Fatalf("IncrCounter: %v", err)
		}
		if got != want {
			t.Errorf("counter = %d, want %d", got, want)
		}
	}
}

func TestMemory_ListPreservesInsertionOrder(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	for _, v := range []string{"a", "b", "c"} {
		if err := m.AppendList(ctx, "requests:abc", v); err != nil {
			t.Fatalf("AppendList: %v", err)
		}
	}

	got, err := m.ListRange(ctx, "requests:abc")
	if err != nil {
		t.Fatalf("ListRange: %v", err)
	}
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestMemory_ListRangeMissingKeyIsEmpty(t *testing.T) {
	m := NewMemory()

	got, err := m.ListRange(context.Background(), "requests:nobody")
	if err != nil {
		t.Fatalf("ListRange: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}

func TestMemory_GetMissingKey(t *testing.T) {
	m := NewMemory()

	_, err := m.Get(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestMemory_SetWithTTLExpires(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	m.SetNow(func() time.Time { return now })

	if err := m.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if got, err := m.Get(ctx, "k"); err != nil || got != "v" {
		t.Fatalf("Get before expiry = (%q, %v), want (v, nil)", got, err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := m.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after expiry: err = %v, want ErrNotFound", err)
	}
}

func TestMemory_SetWithoutTTLNeverExpires(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	m.SetNow(func() time.Time { return now })

	if err := m.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	now = now.Add(1000 * time.Hour)
	if got, err := m.Get(ctx, "k"); err != nil || got != "v" {
		t.Errorf("Get = (%q, %v), want (v, nil)", got, err)
	}
}

func TestMemory_DownFailsEverything(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	m.SetDown(true)

	if _, err := m.IncrCounter(ctx, "c"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("IncrCounter err = %v, want ErrUnavailable", err)
	}
	if err := m.AppendList(ctx, "l", "v"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("AppendList err = %v, want ErrUnavailable", err)
	}
	if _, err := m.ListRange(ctx, "l"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("ListRange err = %v, want ErrUnavailable", err)
	}
	if err := m.Set(ctx, "k", "v", 0); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Set err = %v, want ErrUnavailable", err)
	}
	if _, err := m.Get(ctx, "k"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Get err = %v, want ErrUnavailable", err)
	}
}
