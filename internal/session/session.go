// Package session holds the client's bearer token.
package session

import (
	"log/slog"
	"sync"

	"habitrefund/internal/database"
)

// TokenKey is the well-known key the session token is stored under.
const TokenKey = "habitcashback:accessToken"

// Store owns the single session token. An empty token means logged out.
type Store interface {
	Get() string
	Set(token string) error
	Clear() error
}

// DBStore persists the token in the local sqlite key-value table.
type DBStore struct {
	db     *database.DB
	logger *slog.Logger
}

// NewDBStore creates a store backed by db.
func NewDBStore(db *database.DB, logger *slog.Logger) *DBStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &DBStore{db: db, logger: logger}
}

// Get returns the stored token. Read failures count as logged out.
func (s *DBStore) Get() string {
	token, ok, err := s.db.GetValue(TokenKey)
	if err != nil {
		s.logger.Warn("session token read failed", "error", err)
		return ""
	}
	if !ok {
		return ""
	}
	return token
}

// Set replaces the stored token.
func (s *DBStore) Set(token string) error {
	return s.db.PutValue(TokenKey, token)
}

// Clear removes the stored token.
func (s *DBStore) Clear() error {
	return s.db.DeleteValue(TokenKey)
}

// MemoryStore keeps the token in memory only.
type MemoryStore struct {
	mu    sync.RWMutex
	token string
}

// NewMemoryStore creates a store holding token.
func NewMemoryStore(token string) *MemoryStore {
	return &MemoryStore{token: token}
}

func (m *MemoryStore) Get() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

func (m *MemoryStore) Set(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	return nil
}
