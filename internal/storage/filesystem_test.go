package storage

import (
	"bytes"
	"context"
	"testing"
)

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "http://localhost:8080/assets")
	if err != nil {
		t.Fatal(err)
	}

	key, err := store.Upload(context.Background(), "jobs/abc/edited-0.png", []byte("png-bytes"), "image/png")
	if err != nil {
		t.Fatalf("Upload error: %v", err)
	}
	if key != "jobs/abc/edited-0.png" {
		t.Fatalf("key = %q", key)
	}

	data, err := store.Download(context.Background(), key)
	if err != nil {
		t.Fatalf("Download error: %v", err)
	}
	if !bytes.Equal(data, []byte("png-bytes")) {
		t.Fatalf("round trip mismatch: %q", data)
	}

	if got := store.PublicURL(key); got != "http://localhost:8080/assets/jobs/abc/edited-0.png" {
		t.Fatalf("PublicURL = %q", got)
	}
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Upload(context.Background(), "../escape.png", []byte("x"), "image/png"); err == nil {
		t.Fatal("expected traversal key to be rejected")
	}
	if _, err := store.Upload(context.Background(), "", []byte("x"), "image/png"); err == nil {
		t.Fatal("expected empty key to be rejected")
	}
}

func TestFileStoreCleansKeys(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "")
	if err != nil {
		t.Fatal(err)
	}
	key, err := store.Upload(context.Background(), "./a//b.png", []byte("x"), "image/png")
	if err != nil {
		t.Fatal(err)
	}
	if key != "a/b.png" {
		t.Fatalf("key = %q, want a/b.png", key)
	}
}
