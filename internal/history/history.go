package history

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const createTableSQL = `CREATE TABLE IF NOT EXISTS history (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	conn_key    TEXT NOT NULL,
	query       TEXT NOT NULL,
	adapter     TEXT,
	executed_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	duration_ms INTEGER,
	row_count   INTEGER,
	is_error    BOOLEAN DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS history_conn ON history (conn_key, executed_at)`

// FileName is the history database's name inside the config directory.
const FileName = "history.db"

// Entry is a single executed query.
type Entry struct {
	ID         int64
	ConnKey    string
	Query      string
	Adapter    string
	ExecutedAt time.Time
	DurationMS int64
	RowCount   int64
	IsError    bool
}

// History stores executed queries per connection in SQLite. Each
// connection keeps at most Size entries; older ones are pruned on Add.
type History struct {
	db   *sql.DB
	size int
}

// Key identifies a connection in the history. connectionID must not carry
// secrets; adapters already strip them.
func Key(adapterName, connectionID string) string {
	sum := sha256.Sum256([]byte(adapterName + "\x00" + connectionID))
	return hex.EncodeToString(sum[:8])
}

// New opens (or creates) dir/history.db and ensures the schema exists.
// A size of zero or less keeps every entry.
func New(dir string, size int) (*History, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("history: create dir: %w", err)
	}
	return Open(filepath.Join(dir, FileName), size)
}

// Open opens the history database at path, which may be ":memory:".
func Open(path string, size int) (*History, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serializes
	// writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: create table: %w", err)
	}
	return &History{db: db, size: size}, nil
}

// Add inserts a new entry and prunes the connection's oldest entries.
func (h *History) Add(e Entry) error {
	if e.ExecutedAt.IsZero() {
		e.ExecutedAt = time.Now()
	}
	_, err := h.db.Exec(
		`INSERT INTO history (conn_key, query, adapter, executed_at, duration_ms, row_count, is_error)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ConnKey,
		e.Query,
		e.Adapter,
		e.ExecutedAt,
		e.DurationMS,
		e.RowCount,
		e.IsError,
	)
	if err != nil {
		return fmt.Errorf("history add: %w", err)
	}
	if h.size > 0 {
		_, err := h.db.Exec(
			`DELETE FROM history
			 WHERE conn_key = ? AND id NOT IN (
				SELECT id FROM history WHERE conn_key = ?
				ORDER BY executed_at DESC, id DESC LIMIT ?)`,
			e.ConnKey, e.ConnKey, h.size,
		)
		if err != nil {
			return fmt.Errorf("history prune: %w", err)
		}
	}
	return nil
}

// Search returns the connection's entries whose query text matches pattern
// using SQL LIKE, most recent first.
func (h *History) Search(connKey, pattern string, limit int) ([]Entry, error) {
	rows, err := h.db.Query(
		`SELECT id, conn_key, query, adapter, executed_at, duration_ms, row_count, is_error
		 FROM history
		 WHERE conn_key = ? AND query LIKE ?
		 ORDER BY executed_at DESC, id DESC
		 LIMIT ?`,
		connKey, pattern, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("history search: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Recent returns the connection's most recent entries.
func (h *History) Recent(connKey string, limit int) ([]Entry, error) {
	rows, err := h.db.Query(
		`SELECT id, conn_key, query, adapter, executed_at, duration_ms, row_count, is_error
		 FROM history
		 WHERE conn_key = ?
		 ORDER BY executed_at DESC, id DESC
		 LIMIT ?`,
		connKey, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("history recent: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Clear deletes the connection's entries.
func (h *History) Clear(connKey string) error {
	if _, err := h.db.Exec(`DELETE FROM history WHERE conn_key = ?`, connKey); err != nil {
		return fmt.Errorf("history clear: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (h *History) Close() error {
	return h.db.Close()
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.ID,
			&e.ConnKey,
			&e.Query,
			&e.Adapter,
			&e.ExecutedAt,
			&e.DurationMS,
			&e.RowCount,
			&e.IsError,
		); err != nil {
			return nil, fmt.Errorf("history scan: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history rows: %w", err)
	}
	return entries, nil
}
