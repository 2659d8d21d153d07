// Package snapshot persists the latest refresh result as a JSON file.
package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/sutakip/sutakip/internal/domain"
)

// MinBytes is the smallest file size treated as a usable snapshot. Anything
// shorter (including "[]") counts as missing.
const MinBytes = 5

// ErrNotFound is returned by Load when no usable snapshot exists.
var ErrNotFound = errors.New("snapshot not found")

// FileStore reads and writes the snapshot file. Writes go through a temp file
// in the same directory followed by a rename, so readers never see a partial
// file.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store for path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the snapshot file path.
func (s *FileStore) Path() string { return s.path }

// Save overwrites the snapshot with records.
func (s *FileStore) Save(records []domain.Record) error {
	data, err := Encode(records)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()        //nolint:errcheck // already failing
		os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// Load returns the raw snapshot bytes. It returns ErrNotFound when the file
// is missing or shorter than MinBytes.
func (s *FileStore) Load() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if len(data) < MinBytes {
		return nil, ErrNotFound
	}
	return data, nil
}

// Encode renders records the way they are stored: a JSON array indented with
// four spaces, non-ASCII and HTML characters left unescaped. A nil slice
// encodes as an empty array.
func Encode(records []domain.Record) ([]byte, error) {
	if records == nil {
		records = []domain.Record{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(records); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// IsArray reports whether data is a well-formed JSON array.
func IsArray(data []byte) bool {
	var items []json.RawMessage
	return json.Unmarshal(data, &items) == nil && items != nil
}

// Decode parses snapshot bytes into records.
func Decode(data []byte) ([]domain.Record, error) {
	var records []domain.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return records, nil
}
