package storage

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestWriteAndReadRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "http://files.test/static")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	key, err := store.Write(context.Background(), "stories/s1/reference_image/a.png", []byte("payload"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, err := store.Read(context.Background(), key)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(data, []byte("payload")) {
		t.Fatalf("data = %q", data)
	}
}

func TestWriteRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "http://files.test")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if _, err := store.Write(context.Background(), "../escape.txt", []byte("x")); err == nil {
		t.Fatalf("expected traversal key to be rejected")
	}
}

func TestUploadBufferGeneratesKeyedFile(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "http://files.test")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	key, url, err := store.UploadBuffer(context.Background(), []byte("img"), "image/png", "stories/s1/reference_image")
	if err != nil {
		t.Fatalf("UploadBuffer: %v", err)
	}
	if !strings.HasPrefix(key, "stories/s1/reference_image/") || !strings.HasSuffix(key, ".png") {
		t.Fatalf("key = %q", key)
	}
	if url != "http://files.test/"+key {
		t.Fatalf("url = %q", url)
	}
	if _, err := store.Read(context.Background(), key); err != nil {
		t.Fatalf("Read after upload: %v", err)
	}
}

func TestUploadBufferRejectsEmptyData(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "http://files.test")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if _, _, err := store.UploadBuffer(context.Background(), nil, "image/png", "p"); err == nil {
		t.Fatalf("expected error for empty buffer")
	}
}

func TestResolveURLFileStore(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "http://files.test/static/")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if got := store.ResolveURL("/a/b.png"); got != "http://files.test/static/a/b.png" {
		t.Fatalf("url = %q", got)
	}
	if got := store.ResolveURL(""); got != "" {
		t.Fatalf("url for empty key = %q", got)
	}
}

func TestExtensionForMIME(t *testing.T) {
	tests := map[string]string{
		"image/png":       ".png",
		"IMAGE/JPEG":      ".jpg",
		"image/webp":      ".webp",
		"video/mp4":       ".mp4",
		"application/pdf": "",
	}
	for mime, want := range tests {
		if got := ExtensionForMIME(mime); got != want {
			t.Fatalf("ExtensionForMIME(%q) = %q, want %q", mime, got, want)
		}
	}
}
