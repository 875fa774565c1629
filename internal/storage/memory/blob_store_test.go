package memory

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	uri, err := store.PutObject(context.Background(), "run/PAMI2019.csv", "text/csv", strings.NewReader("content"))
	if err != nil {
		t.Fatalf("PutObject() error = %v", err)
	}
	if uri != "memory://run/PAMI2019.csv" {
		t.Fatalf("unexpected uri %s", uri)
	}

	obj, ok := store.Object("run/PAMI2019.csv")
	if !ok {
		t.Fatal("expected object to be stored")
	}
	if obj.ContentType != "text/csv" {
		t.Fatalf("unexpected content type %q", obj.ContentType)
	}
	obj.Data[0] = 'C'
	again, _ := store.Object("run/PAMI2019.csv")
	if !bytes.Equal(again.Data, []byte("content")) {
		t.Fatalf("expected stored copy to be immutable, got %q", again.Data)
	}
}

func TestBlobStoreRejectsEmptyPath(t *testing.T) {
	t.Parallel()

	if _, err := NewBlobStore().PutObject(context.Background(), "", "text/csv", strings.NewReader("x")); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestBlobStoreDeletePrefix(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	ctx := context.Background()
	for _, p := range []string{"a/1.csv", "a/2.csv", "b/1.csv"} {
		if _, err := store.PutObject(ctx, p, "text/csv", strings.NewReader(p)); err != nil {
			t.Fatalf("PutObject(%s) error = %v", p, err)
		}
	}

	n, err := store.DeletePrefix(ctx, "a/")
	if err != nil {
		t.Fatalf("DeletePrefix() error = %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 deletions, got %d", n)
	}
	if got := store.Paths(); len(got) != 1 || got[0] != "b/1.csv" {
		t.Fatalf("unexpected remaining paths %v", got)
	}
}
