package idempotency

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if rec, _ := store.Get(ctx, "missing"); rec != nil {
		t.Fatalf("expected nil for missing key")
	}

	record := Record{
		StatusCode: 201,
		Response:   []byte(`{"txHash":"0x01"}`),
		CreatedAt:  time.Now(),
		ExpiresAt:  time.Now().Add(time.Minute),
	}
	if err := store.Save(ctx, "abc", record); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, _ := store.Get(ctx, "abc")
	if got == nil || string(got.Response) != `{"txHash":"0x01"}` {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore()
	now := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	_ = store.Save(ctx, "k", Record{StatusCode: 200, ExpiresAt: now.Add(time.Second)})
	if rec, _ := store.Get(ctx, "k"); rec == nil {
		t.Fatalf("expected live record")
	}

	now = now.Add(2 * time.Second)
	if rec, _ := store.Get(ctx, "k"); rec != nil {
		t.Fatalf("expected expired record to be hidden, got %+v", rec)
	}
}

func TestFileStorePersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "idem.json")

	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}

	ctx := context.Background()
	record := Record{
		StatusCode: 201,
		Response:   []byte("resp"),
		CreatedAt:  time.Unix(0, 0),
		ExpiresAt:  time.Now().Add(time.Hour),
	}
	if err := store.Save(ctx, "key", record); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Save(ctx, "old", Record{StatusCode: 200, ExpiresAt: time.Now().Add(-time.Hour)}); err != nil {
		t.Fatalf("save expired: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file on disk: %v", err)
	}

	store2, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("re-open store: %v", err)
	}

	got, _ := store2.Get(ctx, "key")
	if got == nil || string(got.Response) != "resp" {
		t.Fatalf("unexpected record: %+v", got)
	}
	if _, ok := store2.data["old"]; ok {
		t.Fatalf("expired record should have been pruned on write")
	}
}

func TestLookupFingerprint(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	fp := Fingerprint("POST /v1/deposits", []byte(`{"amount":"1"}`))
	_ = store.Save(ctx, "k", Record{StatusCode: 201, Fingerprint: fp, ExpiresAt: time.Now().Add(time.Minute)})

	rec, err := Lookup(ctx, store, "k", fp)
	if err != nil || rec == nil {
		t.Fatalf("expected match, got %v %v", rec, err)
	}

	other := Fingerprint("POST /v1/deposits", []byte(`{"amount":"2"}`))
	if _, err := Lookup(ctx, store, "k", other); !errors.Is(err, ErrKeyReused) {
		t.Fatalf("expected ErrKeyReused, got %v", err)
	}

	if rec, err := Lookup(ctx, store, "missing", fp); rec != nil || err != nil {
		t.Fatalf("expected nil, nil for a missing key")
	}
}

func TestFingerprintIncludesRoute(t *testing.T) {
	body := []byte(`{}`)
	if Fingerprint("POST /v1/funds/add", body) == Fingerprint("POST /v1/funds/remove", body) {
		t.Fatalf("fingerprints for different routes should differ")
	}
}
