package encode

import (
	"context"
	"testing"

	"github.com/encode-hub/encode-hub/internal/encodetest"
)

func openTestCatalogue(t *testing.T, stub *encodetest.Stub, dir string) *Catalogue {
	t.Helper()
	cat, err := Open(context.Background(), Options{CacheDir: dir, RootURL: stub.Root + "/"})
	if err != nil {
		t.Fatalf("open catalogue: %v", err)
	}
	return cat
}

func mustCollection(t *testing.T, cat *Catalogue, name string) *Collection {
	t.Helper()
	c, err := cat.Collection(name)
	if err != nil {
		t.Fatalf("collection %s: %v", name, err)
	}
	return c
}

func mustFile(t *testing.T, cat *Catalogue, collection, name string) *File {
	t.Helper()
	f, err := mustCollection(t, cat, collection).File(context.Background(), name)
	if err != nil {
		t.Fatalf("file %s/%s: %v", collection, name, err)
	}
	return f
}
