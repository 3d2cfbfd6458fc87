package persistence

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/xrhost-protocol/xrhost-go/pkg/xr"
)

// StateVersion is the current version of the anchor file format.
const StateVersion = 1

// Store errors.
var (
	ErrAnchorNotFound = errors.New("persisted anchor not found")
)

// PersistedAnchor records one anchor persisted by the device.
type PersistedAnchor struct {
	// Name is the device-assigned persistent handle.
	Name string `json:"name"`

	// Pose is the anchor pose at save time (informational; the device
	// re-derives the live pose on restore).
	Pose xr.Pose `json:"pose"`

	// SavedAt is when the anchor was persisted.
	SavedAt time.Time `json:"saved_at"`
}

// anchorFile is the on-disk representation.
type anchorFile struct {
	Version int               `json:"version"`
	SavedAt time.Time         `json:"saved_at"`
	Anchors []PersistedAnchor `json:"anchors,omitempty"`
}

// AnchorStore manages persistence of anchor names to a JSON file.
type AnchorStore struct {
	mu   sync.Mutex
	path string
}

// NewAnchorStore creates a store backed by the given file path.
// The file is created on first Save.
func NewAnchorStore(path string) *AnchorStore {
	return &AnchorStore{path: path}
}

// Load returns all persisted anchors. A missing file is not an error; it
// returns an empty list.
func (s *AnchorStore) Load() ([]PersistedAnchor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	file, err := s.read()
	if err != nil {
		return nil, err
	}
	return file.Anchors, nil
}

// Save adds or replaces a persisted anchor by name.
func (s *AnchorStore) Save(anchor PersistedAnchor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.read()
	if err != nil {
		return err
	}

	replaced := false
	for i, a := range file.Anchors {
		if a.Name == anchor.Name {
			file.Anchors[i] = anchor
			replaced = true
			break
		}
	}
	if !replaced {
		file.Anchors = append(file.Anchors, anchor)
	}

	return s.write(file)
}

// Remove deletes a persisted anchor by name.
// Returns ErrAnchorNotFound if no anchor has that name.
func (s *AnchorStore) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.read()
	if err != nil {
		return err
	}

	for i, a := range file.Anchors {
		if a.Name == name {
			file.Anchors = append(file.Anchors[:i], file.Anchors[i+1:]...)
			return s.write(file)
		}
	}
	return ErrAnchorNotFound
}

// read loads the file, returning an empty state if it doesn't exist.
func (s *AnchorStore) read() (*anchorFile, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return &anchorFile{Version: StateVersion}, nil
	}
	if err != nil {
		return nil, err
	}

	var file anchorFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	return &file, nil
}

// write saves atomically via a temp file rename.
func (s *AnchorStore) write(file *anchorFile) error {
	file.Version = StateVersion
	file.SavedAt = time.Now()

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
