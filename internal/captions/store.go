package captions

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"unicode/utf8"

	"vlmprep/internal/fileutil"
)

// ErrInvalidName is recorded for file names that are not valid UTF-8.
var ErrInvalidName = errors.New("file name is not valid UTF-8")

func validName(name string) error {
	if !utf8.ValidString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Store maps image file names to their captions. Keys are unique; setting an
// existing key replaces its caption.
type Store struct {
	entries map[string]string
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{entries: make(map[string]string)}
}

// Set records the caption for name. Names must be valid UTF-8: JSON would
// rewrite invalid bytes to U+FFFD and could merge distinct files into one key.
func (s *Store) Set(name, caption string) error {
	if err := validName(name); err != nil {
		return err
	}
	s.entries[name] = caption
	return nil
}

// Get returns the caption for name.
func (s *Store) Get(name string) (string, bool) {
	caption, ok := s.entries[name]
	return caption, ok
}

// Len returns the number of captioned images.
func (s *Store) Len() int {
	return len(s.entries)
}

// Marshal renders the store as indented UTF-8 JSON with sorted keys and no
// HTML escaping. An empty store renders as {}.
func (s *Store) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	// encoding/json sorts map keys.
	if err := enc.Encode(s.entries); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes the store to path, replacing any previous file atomically.
func (s *Store) Save(path string) error {
	data, err := s.Marshal()
	if err != nil {
		return fmt.Errorf("encode captions: %w", err)
	}
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("write captions %s: %w", path, err)
	}
	return nil
}

// LoadStore reads a caption file written by Save.
func LoadStore(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read captions: %w", err)
	}
	entries := make(map[string]string)
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse captions %s: %w", path, err)
	}
	return &Store{entries: entries}, nil
}
