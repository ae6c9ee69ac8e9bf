package captions

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	store := NewStore()
	store.Set("frame_30.jpg", "a man <holding> a \"sign\" & a dog")
	store.Set("frame_0.jpg", "une photo d'un café")
	store.Set("frame_0.jpg", "a street at night")

	path := filepath.Join(t.TempDir(), "captions.json")
	if err := store.Save(path); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	loaded, err := LoadStore(path)
	if err != nil {
		t.Fatalf("LoadStore returned error: %v", err)
	}
	if !reflect.DeepEqual(loaded.entries, store.entries) {
		t.Fatalf("round trip mismatch: %v vs %v", loaded.entries, store.entries)
	}
	if loaded.Len() != 2 {
		t.Fatalf("expected unique keys, got %d entries", loaded.Len())
	}
}

func TestStoreMarshalFormat(t *testing.T) {
	store := NewStore()
	store.Set("b.png", "x & y")
	store.Set("a.png", "café")

	data, err := store.Marshal()
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}
	want := "{\n  \"a.png\": \"café\",\n  \"b.png\": \"x & y\"\n}\n"
	if string(data) != want {
		t.Fatalf("Marshal = %q, want %q", data, want)
	}
}

func TestLoadStoreRejectsInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("[1,2]"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadStore(path); err == nil {
		t.Fatal("expected error for non-object JSON")
	}
}

func TestStoreSetRejectsInvalidUTF8(t *testing.T) {
	store := NewStore()
	if err := store.Set("a\xff.png", "one"); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
	if err := store.Set("a\xfe.png", "two"); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
	if err := store.Set("café.png", "three"); err != nil {
		t.Fatalf("valid UTF-8 name rejected: %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("expected only the valid name, got %d entries", store.Len())
	}
}
