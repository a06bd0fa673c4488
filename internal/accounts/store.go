// Package accounts manages dashboard user accounts. Each account carries the
// opaque orchestrator credential used for that user's panel API calls; the
// core trusts it as pre-validated.
package accounts

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Role represents a user's role in the system.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// ErrUserExists is returned when creating an account with a taken username.
var ErrUserExists = errors.New("user already exists")

// ErrUserNotFound is returned when no account matches the lookup.
var ErrUserNotFound = errors.New("user not found")

// User holds authentication data and the per-user orchestrator credential.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	PanelKey     string    `json:"panel_key"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store manages persistent users with a JSON file backend.
type Store struct {
	path   string
	mu     sync.RWMutex
	users  map[string]*User
	nextID int64
}

// NewStore initializes a user store backed by the given file path.
func NewStore(path string) *Store {
	return &Store{path: path, users: make(map[string]*User), nextID: 1}
}

// Load reads users from disk; a missing file is treated as an empty store.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users = make(map[string]*User)
	s.nextID = 1

	if s.path == "" {
		return errors.New("user store path not set")
	}
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		_ = os.MkdirAll(filepath.Dir(s.path), 0o755)
		return nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	var list []*User
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	for _, u := range list {
		if u == nil || u.Username == "" {
			continue
		}
		s.users[u.Username] = u
		if u.ID >= s.nextID {
			s.nextID = u.ID + 1
		}
	}
	return nil
}

// saveLocked writes users to disk atomically with 0600 permissions.
// Caller MUST hold s.mu (write lock) before calling.
func (s *Store) saveLocked() error {
	list := make([]*User, 0, len(s.users))
	for _, u := range s.users {
		list = append(list, u)
	}
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Save acquires a write lock and persists users to disk.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

// IsEmpty reports whether no users exist.
func (s *Store) IsEmpty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users) == 0
}

// Get returns a copy of the user by username.
func (s *Store) Get(username string) (*User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[username]
	if !ok {
		return nil, false
	}
	dup := *u
	return &dup, true
}

// GetByID returns a copy of the user with the given id.
func (s *Store) GetByID(id int64) (*User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.ID == id {
			dup := *u
			return &dup, true
		}
	}
	return nil, false
}

// List returns copies of all users.
func (s *Store) List() []*User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]*User, 0, len(s.users))
	for _, u := range s.users {
		dup := *u
		list = append(list, &dup)
	}
	return list
}

// Create registers a new account and persists the store.
func (s *Store) Create(username, passwordHash, panelKey string, role Role) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[username]; ok {
		return nil, ErrUserExists
	}
	u := &User{
		ID:           s.nextID,
		Username:     username,
		PasswordHash: passwordHash,
		PanelKey:     panelKey,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	s.nextID++
	s.users[username] = u
	if err := s.saveLocked(); err != nil {
		delete(s.users, username)
		return nil, err
	}
	dup := *u
	return &dup, nil
}

// SetPanelKey replaces a user's orchestrator credential and persists the store.
func (s *Store) SetPanelKey(username, panelKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[username]
	if !ok {
		return ErrUserNotFound
	}
	u.PanelKey = panelKey
	return s.saveLocked()
}

// SetPassword replaces a user's password hash and persists the store.
func (s *Store) SetPassword(username, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[username]
	if !ok {
		return ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	return s.saveLocked()
}
