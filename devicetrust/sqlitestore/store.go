// Package sqlitestore provides a durable device-trust store backed by an
// embedded SQLite database, for desktop and kiosk embeddings where the
// token must survive process restarts.
package sqlitestore

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/cloudspacetechs/acidcheck/devicetrust"
)

var _ devicetrust.Store = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS device_trust (
	device_key TEXT PRIMARY KEY,
	token      TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`

// defaultDeviceKey identifies the single device row. Multi-profile
// embeddings can construct stores with distinct keys.
const defaultDeviceKey = "device"

// Store persists the device-trust token in SQLite.
type Store struct {
	db        *sql.DB
	deviceKey string
}

// StoreOption modifies a Store instance.
type StoreOption func(*Store)

// WithDeviceKey scopes the store to a named device profile.
func WithDeviceKey(key string) StoreOption {
	return func(s *Store) {
		s.deviceKey = key
	}
}

// New bootstraps the schema and returns a store bound to db.
func New(db *sql.DB, options ...StoreOption) (*Store, error) {
	if db == nil {
		return nil, errors.New("[sqlitestore.New] db is required")
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, errors.Wrap(err, "[sqlitestore.New] create schema")
	}

	s := &Store{db: db, deviceKey: defaultDeviceKey}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Open opens (or creates) a SQLite database at path and returns a store on
// it. The caller owns closing the returned *sql.DB through Close.
func Open(path string, options ...StoreOption) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "[sqlitestore.Open] sql.Open")
	}
	store, err := New(db, options...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Token(ctx context.Context) (string, error) {
	var token string
	err := s.db.QueryRowContext(ctx,
		`SELECT token FROM device_trust WHERE device_key = ?`, s.deviceKey).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "Store.Token query")
	}
	return token, nil
}

func (s *Store) Save(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO device_trust (device_key, token, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(device_key) DO UPDATE SET token = excluded.token, updated_at = CURRENT_TIMESTAMP`,
		s.deviceKey, token)
	if err != nil {
		return errors.Wrap(err, "Store.Save upsert")
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
