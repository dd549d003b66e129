// Package session persists the signed-in user between command invocations.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/me/shennong/pkg/model"
)

// FileName is the session file inside the data directory.
const FileName = "credentials.json"

// Session is the signed-in user and their tokens.
type Session struct {
	Token        string      `json:"token"`
	RefreshToken string      `json:"refresh_token,omitempty"`
	User         *model.User `json:"user,omitempty"`
}

// FileStore keeps the session in a 0600 JSON file. It is safe for
// concurrent use.
type FileStore struct {
	path string

	mu      sync.Mutex
	current *Session
	loaded  bool
}

// NewFileStore returns a store backed by <dir>/credentials.json.
func NewFileStore(dir string) *FileStore {
	return &FileStore{path: filepath.Join(dir, FileName)}
}

// Path returns the session file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load returns the stored session, or nil when signed out.
func (s *FileStore) Load() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *FileStore) loadLocked() (*Session, error) {
	if s.loaded {
		return s.current, nil
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.loaded = true
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("parse session %s: %w", s.path, err)
	}
	s.current, s.loaded = &sess, true
	return s.current, nil
}

// Save writes sess, replacing any previous session.
func (s *FileStore) Save(sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	s.current, s.loaded = sess, true
	return nil
}

// Token returns the access token, or "" when signed out or unreadable.
func (s *FileStore) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.loadLocked()
	if err != nil || sess == nil {
		return ""
	}
	return sess.Token
}

// User returns the signed-in user, if the session recorded one.
func (s *FileStore) User() *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.loadLocked()
	if err != nil || sess == nil {
		return nil
	}
	return sess.User
}

// Clear signs out by removing the session file.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current, s.loaded = nil, true
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}
