package transient

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestContactKey(t *testing.T) {
	if got := ContactKey(" 2 "); got != "cid_2" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestContactID(t *testing.T) {
	var nilTransient *Transient
	if _, ok := nilTransient.ContactID("1"); ok {
		t.Fatalf("expected nil transient to have no contacts")
	}

	tr := New("sess")
	if _, ok := tr.ContactID("1"); ok {
		t.Fatalf("expected unset link")
	}
	tr.SetContact("1", 0)
	if _, ok := tr.ContactID("1"); ok {
		t.Fatalf("expected zero contact id to count as unset")
	}
	tr.SetContact("1", 42)
	if id, ok := tr.ContactID("1"); !ok || id != 42 {
		t.Fatalf("expected 42, got %d %v", id, ok)
	}

	bare := &Transient{ID: "bare"}
	bare.SetContact("3", 9)
	if diff := cmp.Diff(map[string]int64{"cid_3": 9}, bare.Contacts); diff != "" {
		t.Fatalf("contacts mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeKeepsRequestedID(t *testing.T) {
	got, err := decode("wanted", []byte(`{"id":"stored","meta":{"k":"v"}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := &Transient{ID: "wanted", Contacts: map[string]int64{}, Meta: map[string]string{"k": "v"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("transient mismatch (-want +got):\n%s", diff)
	}
	if _, err := decode("x", []byte("{")); err == nil {
		t.Fatalf("expected decode error")
	}
}

// exerciseStore runs the behaviour every backend shares.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	empty, err := store.Get(ctx, "unknown")
	if err != nil {
		t.Fatalf("get unknown: %v", err)
	}
	if empty == nil || empty.ID != "unknown" || len(empty.Contacts) != 0 {
		t.Fatalf("expected empty transient, got %+v", empty)
	}

	if err := store.Save(ctx, &Transient{}, time.Minute); err == nil {
		t.Fatalf("expected error saving transient without id")
	}

	tr := New("sess-1")
	tr.SetContact("1", 42)
	if err := store.Save(ctx, tr, time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}
	tr.SetContact("2", 43)
	if err := store.Save(ctx, tr, time.Minute); err != nil {
		t.Fatalf("save again: %v", err)
	}

	got, err := store.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if diff := cmp.Diff(map[string]int64{"cid_1": 42, "cid_2": 43}, got.Contacts); diff != "" {
		t.Fatalf("contacts mismatch (-want +got):\n%s", diff)
	}

	if err := store.Delete(ctx, "sess-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err = store.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if len(got.Contacts) != 0 {
		t.Fatalf("expected deleted transient to be empty, got %+v", got)
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	defer store.Close()
	exerciseStore(t, store)
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	defer store.Close()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	ctx := context.Background()
	for _, id := range []string{"short", "forever"} {
		tr := New(id)
		tr.SetContact("1", 1)
		ttl := time.Minute
		if id == "forever" {
			ttl = 0
		}
		if err := store.Save(ctx, tr, ttl); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}

	now = now.Add(2 * time.Minute)
	got, err := store.Get(ctx, "short")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, ok := got.ContactID("1"); ok {
		t.Fatalf("expected expired transient to be empty")
	}

	tr := New("swept")
	tr.SetContact("1", 1)
	if err := store.Save(ctx, tr, time.Second); err != nil {
		t.Fatalf("save: %v", err)
	}
	now = now.Add(time.Minute)
	store.sweep()

	store.mu.RLock()
	_, sweptPresent := store.items["swept"]
	_, foreverPresent := store.items["forever"]
	store.mu.RUnlock()
	if sweptPresent {
		t.Fatalf("expected sweep to drop expired entry")
	}
	if !foreverPresent {
		t.Fatalf("expected entry without ttl to survive sweep")
	}
}

func TestMemoryStoreExpiryKeepsConcurrentSave(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	defer store.Close()

	ctx := context.Background()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start
	store.now = func() time.Time { return now }

	old := New("sess")
	old.SetContact("1", 1)
	if err := store.Save(ctx, old, time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}

	fresh := New("sess")
	fresh.SetContact("1", 2)
	data, err := fresh.encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	later := start.Add(2 * time.Minute)
	replaced := false
	// the first clock read happens after Get released its read lock; a Save
	// landing there must survive the expiry of the entry Get saw
	store.now = func() time.Time {
		if !replaced {
			replaced = true
			store.mu.Lock()
			store.items["sess"] = memoryEntry{value: data, expiresAt: later.Add(time.Hour)}
			store.mu.Unlock()
		}
		return later
	}

	got, err := store.Get(ctx, "sess")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if id, ok := got.ContactID("1"); !ok || id != 2 {
		t.Fatalf("expected the fresh transient, got %d %v", id, ok)
	}
	store.mu.RLock()
	_, present := store.items["sess"]
	store.mu.RUnlock()
	if !present {
		t.Fatalf("fresh entry was deleted")
	}
}

func TestMemoryStoreCancelledContext(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Get(ctx, "x"); err == nil {
		t.Fatalf("expected get to fail")
	}
	if err := store.Save(ctx, New("x"), 0); err == nil {
		t.Fatalf("expected save to fail")
	}
	if err := store.Delete(ctx, "x"); err == nil {
		t.Fatalf("expected delete to fail")
	}
}

func TestMemoryStoreCloseTwice(t *testing.T) {
	store := NewMemoryStore(time.Millisecond)
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "transients.db")

	store, err := OpenSQLStore(ctx, DialectSQLite, dsn, time.Hour)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()
	exerciseStore(t, store)

	now := time.Now()
	store.now = func() time.Time { return now }
	tr := New("ttl")
	tr.SetContact("1", 5)
	if err := store.Save(ctx, tr, time.Second); err != nil {
		t.Fatalf("save: %v", err)
	}
	now = now.Add(time.Minute)
	got, err := store.Get(ctx, "ttl")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, ok := got.ContactID("1"); ok {
		t.Fatalf("expected expired row to read as empty")
	}
}

func TestSQLStorePurge(t *testing.T) {
	ctx := context.Background()
	store, err := OpenSQLStore(ctx, DialectSQLite, filepath.Join(t.TempDir(), "purge.db"), time.Hour)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	now := time.Now()
	store.now = func() time.Time { return now }
	for id, ttl := range map[string]time.Duration{"stale-1": time.Second, "stale-2": time.Second, "live": time.Hour, "forever": 0} {
		if err := store.Save(ctx, New(id), ttl); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}

	now = now.Add(time.Minute)
	n, err := store.Purge(ctx)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 purged rows, got %d", n)
	}

	var remaining int
	if err := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+tableName).Scan(&remaining); err != nil {
		t.Fatalf("count: %v", err)
	}
	if remaining != 2 {
		t.Fatalf("expected live rows to remain, got %d", remaining)
	}
}

func TestSQLPlaceholders(t *testing.T) {
	pg := &SQLStore{dialect: DialectPostgres}
	lite := &SQLStore{dialect: DialectSQLite}
	if pg.placeholder(2) != "$2" || lite.placeholder(2) != "?" {
		t.Fatalf("unexpected placeholders %q %q", pg.placeholder(2), lite.placeholder(2))
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	store, err := Open(ctx, Options{})
	if err != nil {
		t.Fatalf("open default: %v", err)
	}
	if _, ok := store.(*MemoryStore); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}
	_ = store.Close()

	cases := map[string]struct {
		opts Options
		want string
	}{
		"unknown backend": {opts: Options{Backend: "etcd"}, want: "unknown backend"},
		"redis addr":      {opts: Options{Backend: "redis"}, want: "redis addr is required"},
		"sqlite dsn":      {opts: Options{Backend: "SQLite"}, want: "dsn is required"},
		"postgres dsn":    {opts: Options{Backend: "postgresql"}, want: "dsn is required"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Open(ctx, tc.opts)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestRedisStoreKeys(t *testing.T) {
	store := NewRedisStore(RedisOptions{Addr: "127.0.0.1:0"})
	defer store.Close()
	if got := store.key("abc"); got != "formcrm:transient:abc" {
		t.Fatalf("unexpected default key %q", got)
	}

	custom := NewRedisStore(RedisOptions{Addr: "127.0.0.1:0", Prefix: "app:"})
	defer custom.Close()
	if got := custom.key("abc"); got != "app:abc" {
		t.Fatalf("unexpected custom key %q", got)
	}
}
