// package storage persists the client session as string key-value pairs.
//
// [Storage] is the minimal contract; [MemoryStorage] backs tests and ephemeral runs,
// [SQLiteStorage] keeps the session across invocations. [Local] layers the fixed session
// keys on top of either backend.
package storage

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/desertthunder/musicai/internal/shared"
)

// Storage is a string key-value store. Get returns "" and a nil error for absent keys.
type Storage interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Remove(key string) error
}

// MemoryStorage implements [Storage] with a map.
type MemoryStorage struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string]string)}
}

func (m *MemoryStorage) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data[key], nil
}

func (m *MemoryStorage) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemoryStorage) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// SQLiteStorage implements [Storage] over the kv_store table.
//
// The table is created by [shared.RunMigrations].
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage creates a new [SQLiteStorage] with the given database connection
func NewSQLiteStorage(db *sql.DB) *SQLiteStorage {
	return &SQLiteStorage{db: db}
}

func (s *SQLiteStorage) Get(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM kv_store WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: failed to read %s: %v", shared.ErrStorage, key, err)
	}
	return value, nil
}

func (s *SQLiteStorage) Set(key, value string) error {
	query := `
		INSERT INTO kv_store (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := s.db.Exec(query, key, value); err != nil {
		return fmt.Errorf("%w: failed to write %s: %v", shared.ErrStorage, key, err)
	}
	return nil
}

func (s *SQLiteStorage) Remove(key string) error {
	if _, err := s.db.Exec(`DELETE FROM kv_store WHERE key = ?`, key); err != nil {
		return fmt.Errorf("%w: failed to remove %s: %v", shared.ErrStorage, key, err)
	}
	return nil
}

// OpenSQLite opens the database at path, applies migrations and returns a ready [SQLiteStorage].
//
// The returned close function releases the connection.
func OpenSQLite(cfg shared.DatabaseConfig) (*SQLiteStorage, func() error, error) {
	db, err := shared.NewDatabase(cfg.Path)
	if err != nil {
		return nil, nil, err
	}

	maxOpen, maxIdle := cfg.MaxOpenConns, cfg.MaxIdleConns
	if maxOpen <= 0 {
		maxOpen = 1
	}
	if maxIdle <= 0 {
		maxIdle = 1
	}
	shared.ConfigureDatabase(db, maxOpen, maxIdle)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("%w: %v", shared.ErrStorage, err)
	}
	return NewSQLiteStorage(db), db.Close, nil
}
