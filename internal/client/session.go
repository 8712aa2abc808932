package client

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// SessionStore persists the session so a restart resumes mid-flow. This is a
// convenience cache, not a security boundary.
type SessionStore interface {
	Save(session *Session) error
	Load() (*Session, error)
	Clear() error
}

// FileStore keeps the session as a JSON file with owner-only permissions.
type FileStore struct {
	path string
}

// NewFileStore builds a store writing to path. Parent directories are created
// on first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Save writes the session to disk.
func (s *FileStore) Save(session *Session) error {
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

// Load reads the stored session. A missing or unreadable file yields
// (nil, nil): the caller just starts logged out.
func (s *FileStore) Load() (*Session, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		// Corrupt cache: treat as logged out rather than erroring the UI.
		return nil, nil
	}
	if session.Token == "" {
		return nil, nil
	}
	return &session, nil
}

// Clear removes the stored session.
func (s *FileStore) Clear() error {
	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
