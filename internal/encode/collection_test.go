package encode

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/encode-hub/encode-hub/internal/encodetest"
	"github.com/encode-hub/encode-hub/internal/transport"
)

func TestCollectionLoadsManifestOnce(t *testing.T) {
	stub := encodetest.New(t)
	cat := openTestCatalogue(t, stub, t.TempDir())
	c := mustCollection(t, cat, "BroadHistone")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Files(context.Background()); err != nil {
				t.Errorf("files error: %v", err)
			}
		}()
	}
	wg.Wait()

	if !c.Populated() {
		t.Fatalf("collection should be populated")
	}
	if hits := stub.Hits("wgEncodeBroadHistone/files.txt"); hits != 1 {
		t.Fatalf("expected one manifest request, got %d", hits)
	}

	files, err := c.Files(context.Background())
	if err != nil {
		t.Fatalf("files error: %v", err)
	}
	var names []string
	for _, f := range files {
		names = append(names, f.Name)
	}
	want := []string{"Gm12878H3k4me3StdPk", "Gm12878H3k4me3StdSig", "Readme"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("unexpected file names %v", names)
	}
}

func TestCollectionUsesCachedManifest(t *testing.T) {
	stub := encodetest.New(t)
	dir := t.TempDir()
	if _, err := mustCollection(t, openTestCatalogue(t, stub, dir), "AwgTfbsUniform").Files(context.Background()); err != nil {
		t.Fatalf("files error: %v", err)
	}

	second := mustCollection(t, openTestCatalogue(t, stub, dir), "AwgTfbsUniform")
	if second.Populated() {
		t.Fatalf("a new catalogue starts unpopulated")
	}
	if _, err := second.File(context.Background(), "HaibH1hescGabpPcr1xUniPk"); err != nil {
		t.Fatalf("file error: %v", err)
	}
	if hits := stub.Hits("wgEncodeAwgTfbsUniform/files.txt"); hits != 1 {
		t.Fatalf("manifest should come from the cache, hits=%d", hits)
	}
}

func TestCollectionFailureLeavesUnpopulated(t *testing.T) {
	stub := encodetest.New(t)
	manifest := "wgEncodeBroadHistoneReadme.txt\ttype=txt\n"
	stub.Remove("wgEncodeBroadHistone/files.txt")

	cat := openTestCatalogue(t, stub, t.TempDir())
	c := mustCollection(t, cat, "BroadHistone")

	if _, err := c.Files(context.Background()); !errors.Is(err, transport.ErrNotRetrievable) {
		t.Fatalf("expected ErrNotRetrievable, got %v", err)
	}
	if c.Populated() {
		t.Fatalf("failed load must leave the collection unpopulated")
	}

	stub.Put("wgEncodeBroadHistone/files.txt", []byte(manifest))
	files, err := c.Files(context.Background())
	if err != nil {
		t.Fatalf("retry error: %v", err)
	}
	if len(files) != 1 || files[0].Name != "Readme" {
		t.Fatalf("unexpected files after retry: %v", files)
	}
}

func TestCollectionInvariantViolation(t *testing.T) {
	stub := encodetest.New(t)
	stub.Put("wgEncodeBroadHistone/files.txt", []byte("wgEncodeSydhTfbsK562.bed.gz\ttype=bed\n"))
	c := mustCollection(t, openTestCatalogue(t, stub, t.TempDir()), "BroadHistone")

	_, err := c.Files(context.Background())
	var invariant *InvariantError
	if !errors.As(err, &invariant) {
		t.Fatalf("expected InvariantError, got %v", err)
	}
	if c.Populated() {
		t.Fatalf("collection must stay unpopulated")
	}
}

func TestCollectionNameCollisionLastWins(t *testing.T) {
	stub := encodetest.New(t)
	stub.Put("wgEncodeBroadHistone/files.txt", []byte(
		"wgEncodeBroadHistoneX.bed.gz\ttype=bed\n"+
			"wgEncodeBroadHistoneX.narrowPeak.gz\ttype=narrowPeak\n"))
	c := mustCollection(t, openTestCatalogue(t, stub, t.TempDir()), "BroadHistone")

	files, err := c.Files(context.Background())
	if err != nil {
		t.Fatalf("files error: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("ordered list keeps every record, got %d", len(files))
	}
	f, err := c.File(context.Background(), "X")
	if err != nil {
		t.Fatalf("file error: %v", err)
	}
	if f.Filename() != "wgEncodeBroadHistoneX.narrowPeak.gz" {
		t.Fatalf("expected later record, got %s", f.Filename())
	}
}

func TestCollectionKnownMalformedRecord(t *testing.T) {
	stub := encodetest.New(t)
	cat := openTestCatalogue(t, stub, t.TempDir())
	f := mustFile(t, cat, "CshlLongRnaSeq", "SknshraCellPapFastqRd2Rep1")
	if !reflect.DeepEqual(f.Keys(), []string{"project", "cell", "type", "filename"}) {
		t.Fatalf("unexpected keys %v", f.Keys())
	}
}

func TestCollectionFileNotFound(t *testing.T) {
	stub := encodetest.New(t)
	c := mustCollection(t, openTestCatalogue(t, stub, t.TempDir()), "AwgDnaseUniform")

	if _, err := c.File(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := c.File(context.Background(), "UwAg04449UniPk"); err != nil {
		t.Fatalf("uniform naming lookup failed: %v", err)
	}
}

func TestSortByName(t *testing.T) {
	stub := encodetest.New(t)
	cat := openTestCatalogue(t, stub, t.TempDir())

	list := cat.Collections()
	SortByName(list)
	var names []string
	for _, c := range list {
		names = append(names, c.Name)
	}
	want := []string{"AwgDnaseUniform", "AwgTfbsUniform", "BroadHistone", "CshlLongRnaSeq"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("unexpected order %v", names)
	}
	if !reflect.DeepEqual(cat.Names(), encodetest.DefaultCollections) {
		t.Fatalf("sorting a copy must not reorder the catalogue")
	}
}
