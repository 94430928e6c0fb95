package artifact

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/chazu/voxgraph/compiler/hash"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a Store backed by a sqlite database. Artifacts are kept
// as canonical CBOR blobs keyed by the hex structural hash.
type SQLiteStore struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// OpenSQLite opens (creating if needed) the artifact database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS artifacts (
		hash TEXT PRIMARY KEY,
		data BLOB NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	log.Debugf("opened artifact cache %s", path)
	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Put implements Store.
func (s *SQLiteStore) Put(a *Artifact) error {
	data, err := Marshal(a)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(
		"INSERT OR REPLACE INTO artifacts (hash, data) VALUES (?, ?)",
		a.Hash.String(), data,
	)
	if err != nil {
		return fmt.Errorf("saving artifact: %w", err)
	}
	log.Debugf("stored %s", a)
	return nil
}

// Get implements Store.
func (s *SQLiteStore) Get(h hash.Sum) (*Artifact, error) {
	var data []byte
	err := s.db.QueryRow("SELECT data FROM artifacts WHERE hash = ?", h.String()).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying artifact: %w", err)
	}
	a, err := Unmarshal(data)
	if err != nil {
		return nil, err
	}
	if a.Hash != h {
		return nil, fmt.Errorf("artifact: row %s holds %s", h.Short(), a.Hash.Short())
	}
	return a, nil
}

// Has implements Store.
func (s *SQLiteStore) Has(h hash.Sum) (bool, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM artifacts WHERE hash = ?", h.String()).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("querying artifact: %w", err)
	}
	return n > 0, nil
}

// Hashes implements Store. Hex order matches byte order.
func (s *SQLiteStore) Hashes() ([]hash.Sum, error) {
	rows, err := s.db.Query("SELECT hash FROM artifacts ORDER BY hash")
	if err != nil {
		return nil, fmt.Errorf("listing artifacts: %w", err)
	}
	defer rows.Close()

	var hashes []hash.Sum
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, fmt.Errorf("scanning artifact hash: %w", err)
		}
		h, err := hash.ParseSum(text)
		if err != nil {
			return nil, fmt.Errorf("artifact row %q: %w", text, err)
		}
		hashes = append(hashes, h)
	}
	return hashes, rows.Err()
}
