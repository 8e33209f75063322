package cache

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/encode-hub/encode-hub/internal/transport"
)

func TestNewStoreCreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "cache")
	if _, err := NewStore(root, Options{}); err != nil {
		t.Fatalf("new store error: %v", err)
	}
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		t.Fatalf("expected cache root directory to be created, err=%v", err)
	}

	// existing directory is fine
	if _, err := NewStore(root, Options{}); err != nil {
		t.Fatalf("reopen store error: %v", err)
	}
}

func TestNewStoreRejectsFileRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "cache")
	if err := os.WriteFile(root, nil, 0o644); err != nil {
		t.Fatalf("write file error: %v", err)
	}
	if _, err := NewStore(root, Options{}); !errors.Is(err, ErrNotDirectory) {
		t.Fatalf("expected ErrNotDirectory, got %v", err)
	}
}

func TestFetchDownloadsOnceAndHonoursForce(t *testing.T) {
	srv, hits := newPayloadServer(t, strings.Repeat("x", 20000))
	var reports int
	store := newTestStore(t, srv, func(blocks int64, blockSize int, total int64) {
		reports++
	})
	ctx := context.Background()

	if store.Exists("a.tmp") {
		t.Fatalf("a.tmp should not exist yet")
	}
	got, err := store.Fetch(ctx, srv.URL+"/page", "a.tmp", false)
	if err != nil {
		t.Fatalf("fetch error: %v", err)
	}
	if got != filepath.Join(store.Root(), "a.tmp") {
		t.Fatalf("unexpected fetch path %s", got)
	}
	if !store.Exists("a.tmp") {
		t.Fatalf("a.tmp should exist after fetch")
	}
	if reports == 0 {
		t.Fatalf("expected progress reports on first fetch")
	}

	reports = 0
	if _, err := store.Fetch(ctx, srv.URL+"/page", "a.tmp", false); err != nil {
		t.Fatalf("second fetch error: %v", err)
	}
	if reports != 0 {
		t.Fatalf("cache hit should not report progress, got %d", reports)
	}
	if n := hits.Load(); n != 1 {
		t.Fatalf("expected a single upstream request, got %d", n)
	}

	if _, err := store.Fetch(ctx, srv.URL+"/page", "a.tmp", true); err != nil {
		t.Fatalf("forced fetch error: %v", err)
	}
	if reports == 0 {
		t.Fatalf("forced fetch should report progress")
	}
	if n := hits.Load(); n != 2 {
		t.Fatalf("forced fetch should hit upstream again, got %d requests", n)
	}
}

func TestFetchProgressSequence(t *testing.T) {
	srv, _ := newPayloadServer(t, strings.Repeat("y", 2500))
	var calls [][3]int64
	store := newTestStore(t, srv, func(blocks int64, blockSize int, total int64) {
		calls = append(calls, [3]int64{blocks, int64(blockSize), total})
	})

	if _, err := store.Fetch(context.Background(), srv.URL+"/p", "p.bin", false); err != nil {
		t.Fatalf("fetch error: %v", err)
	}
	if len(calls) < 2 {
		t.Fatalf("expected at least two progress calls, got %v", calls)
	}
	if calls[0][0] != 0 {
		t.Fatalf("first progress call should report zero blocks, got %v", calls[0])
	}
	if calls[0][2] != 2500 {
		t.Fatalf("expected total size 2500, got %d", calls[0][2])
	}
	for i := 1; i < len(calls); i++ {
		if calls[i][0] != int64(i) {
			t.Fatalf("block counter should increase by one, got %v", calls)
		}
	}
}

func TestFetchCreatesNestedDirectories(t *testing.T) {
	srv, _ := newPayloadServer(t, "nested")
	store := newTestStore(t, srv, nil)

	if _, err := store.Fetch(context.Background(), srv.URL+"/x", "a/b/c/d/e.tmp", false); err != nil {
		t.Fatalf("fetch error: %v", err)
	}
	if !store.Exists("a/b/c/d/e.tmp") {
		t.Fatalf("nested file should exist")
	}
}

func TestFetchDoesNotCacheFailures(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)
	store := newTestStore(t, srv, nil)

	_, err := store.Fetch(context.Background(), srv.URL+"/missing", "missing.txt", false)
	if !errors.Is(err, transport.ErrNotRetrievable) {
		t.Fatalf("expected ErrNotRetrievable, got %v", err)
	}
	if store.Exists("missing.txt") {
		t.Fatalf("failed fetch must not leave a cache entry")
	}
}

func TestJSONRoundTripAndErase(t *testing.T) {
	store := newTestStore(t, nil, nil)
	in := []string{"a", "b", "c"}

	if store.Exists("x.json") {
		t.Fatalf("x.json should not exist yet")
	}
	if err := store.StoreJSON(in, "x.json"); err != nil {
		t.Fatalf("store json error: %v", err)
	}
	if !store.Exists("x.json") {
		t.Fatalf("x.json should exist")
	}
	var out []string
	if err := store.LoadJSON("x.json", &out); err != nil {
		t.Fatalf("load json error: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("round trip mismatch: %v != %v", in, out)
	}

	if err := store.Erase("x.json"); err != nil {
		t.Fatalf("erase error: %v", err)
	}
	if store.Exists("x.json") {
		t.Fatalf("x.json should be gone")
	}
	if err := store.Erase("x.json"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("erasing a missing entry should fail with ErrNotExist, got %v", err)
	}
}

func TestStoreJSONCreatesDirectories(t *testing.T) {
	store := newTestStore(t, nil, nil)
	if err := store.StoreJSON(map[string]int{"n": 1}, "deep/dir/v.json"); err != nil {
		t.Fatalf("store json error: %v", err)
	}
	if !store.Exists("deep/dir/v.json") {
		t.Fatalf("nested json should exist")
	}
}

func TestPathRejectsEscapes(t *testing.T) {
	store := newTestStore(t, nil, nil)
	if err := store.StoreJSON(1, ""); !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("empty path should be rejected, got %v", err)
	}
	// ../ is clamped to the root instead of escaping it
	if got := store.LocalPath("../../etc/passwd"); got != filepath.Join(store.Root(), "etc", "passwd") {
		t.Fatalf("unexpected local path %s", got)
	}
}

// newTestStore returns a Store backed by a temporary directory.
func newTestStore(t *testing.T, srv *httptest.Server, progress ProgressFunc) *Store {
	t.Helper()
	opts := Options{Progress: progress, BlockSize: 1024}
	if srv != nil {
		opts.Client = transport.WithHTTPClient(srv.Client())
	}
	store, err := NewStore(t.TempDir(), opts)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}

func newPayloadServer(t *testing.T, payload string) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		_, _ = w.Write([]byte(payload))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}
