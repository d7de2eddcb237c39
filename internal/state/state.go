package state

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/zeebo/xxh3"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"projmap/internal/logging"
)

// Meta keys stored in scan_meta.
const (
	MetaSchemaVersion   = "schemaVersion"
	MetaLastCommit      = "lastCommit"
	MetaLastFull        = "lastFullScan"
	MetaLastIncremental = "lastIncrementalScan"
	MetaFileCount       = "fileCount"
	MetaLastScanID      = "lastScanId"
)

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS scanned_files (
	path       TEXT PRIMARY KEY,
	hash       TEXT NOT NULL,
	size       INTEGER NOT NULL,
	mtime      INTEGER NOT NULL,
	scanned_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS scan_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// FileState is the per-file fingerprint recorded after a scan. Paths
// are project-relative with forward slashes. Mtime is unix seconds.
type FileState struct {
	Path      string
	Hash      string
	Size      int64
	Mtime     int64
	ScannedAt time.Time
}

// DB holds scan state between refreshes: one fingerprint row per
// scanned file plus a small key/value meta table.
type DB struct {
	conn   *sql.DB
	logger *logging.Logger
	path   string
}

// Open opens or creates the state database at path, creating parent
// directories as needed.
func Open(path string, logger *logging.Logger) (*DB, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening state database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	db := &DB{conn: conn, logger: logger, path: path}
	if db.MetaInt(MetaSchemaVersion) == 0 {
		if err := db.SetMetaInt(MetaSchemaVersion, schemaVersion); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return db, nil
}

func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// WithTx executes fn within a transaction, rolling back when fn
// returns an error or panics.
func (db *DB) WithTx(fn func(*sql.Tx) error) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error("transaction rollback failed", map[string]interface{}{
				"error":         err.Error(),
				"rollbackError": rbErr.Error(),
			})
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetFile returns the recorded state for a path, or nil when the path
// has never been scanned.
func (db *DB) GetFile(path string) (*FileState, error) {
	row := db.conn.QueryRow(`
		SELECT path, hash, size, mtime, scanned_at
		FROM scanned_files WHERE path = ?
	`, path)

	var f FileState
	var scannedAt int64
	err := row.Scan(&f.Path, &f.Hash, &f.Size, &f.Mtime, &scannedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading file state: %w", err)
	}
	f.ScannedAt = time.Unix(scannedAt, 0)
	return &f, nil
}

// AllFiles returns every recorded file state keyed by path.
func (db *DB) AllFiles() (map[string]FileState, error) {
	rows, err := db.conn.Query(`SELECT path, hash, size, mtime, scanned_at FROM scanned_files`)
	if err != nil {
		return nil, fmt.Errorf("querying file states: %w", err)
	}
	defer rows.Close()

	files := make(map[string]FileState)
	for rows.Next() {
		var f FileState
		var scannedAt int64
		if err := rows.Scan(&f.Path, &f.Hash, &f.Size, &f.Mtime, &scannedAt); err != nil {
			return nil, fmt.Errorf("scanning file state: %w", err)
		}
		f.ScannedAt = time.Unix(scannedAt, 0)
		files[f.Path] = f
	}
	return files, rows.Err()
}

// PutFile inserts or replaces one file state.
func (db *DB) PutFile(f *FileState) error {
	_, err := db.conn.Exec(`
		INSERT OR REPLACE INTO scanned_files (path, hash, size, mtime, scanned_at)
		VALUES (?, ?, ?, ?, ?)
	`, f.Path, f.Hash, f.Size, f.Mtime, f.ScannedAt.Unix())
	if err != nil {
		return fmt.Errorf("saving file state: %w", err)
	}
	return nil
}

// DeleteFile removes one file state. Deleting an unknown path is not
// an error.
func (db *DB) DeleteFile(path string) error {
	if _, err := db.conn.Exec(`DELETE FROM scanned_files WHERE path = ?`, path); err != nil {
		return fmt.Errorf("deleting file state: %w", err)
	}
	return nil
}

// ReplaceAll swaps the entire file-state table for the given set in
// one transaction. Used after a full scan.
func (db *DB) ReplaceAll(files []FileState) error {
	return db.WithTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM scanned_files`); err != nil {
			return fmt.Errorf("clearing file states: %w", err)
		}
		stmt, err := tx.Prepare(`
			INSERT INTO scanned_files (path, hash, size, mtime, scanned_at)
			VALUES (?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("preparing insert: %w", err)
		}
		defer stmt.Close()
		for i := range files {
			f := &files[i]
			if _, err := stmt.Exec(f.Path, f.Hash, f.Size, f.Mtime, f.ScannedAt.Unix()); err != nil {
				return fmt.Errorf("inserting file state %s: %w", f.Path, err)
			}
		}
		return nil
	})
}

// FileCount returns the number of recorded file states.
func (db *DB) FileCount() int {
	var count int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM scanned_files`).Scan(&count); err != nil {
		return 0
	}
	return count
}

// HasState reports whether any scan has been recorded.
func (db *DB) HasState() bool {
	return db.FileCount() > 0 || db.Meta(MetaLastFull) != ""
}

func (db *DB) Meta(key string) string {
	var value string
	if err := db.conn.QueryRow(`SELECT value FROM scan_meta WHERE key = ?`, key).Scan(&value); err != nil {
		return ""
	}
	return value
}

func (db *DB) SetMeta(key, value string) error {
	if _, err := db.conn.Exec(`INSERT OR REPLACE INTO scan_meta (key, value) VALUES (?, ?)`, key, value); err != nil {
		return fmt.Errorf("setting meta %s: %w", key, err)
	}
	return nil
}

func (db *DB) MetaInt(key string) int64 {
	value := db.Meta(key)
	if value == "" {
		return 0
	}
	i, _ := strconv.ParseInt(value, 10, 64)
	return i
}

func (db *DB) SetMetaInt(key string, value int64) error {
	return db.SetMeta(key, strconv.FormatInt(value, 10))
}

// LastCommit returns the git commit recorded by the last refresh, or
// empty when none was recorded.
func (db *DB) LastCommit() string {
	return db.Meta(MetaLastCommit)
}

// MarkFull records a completed full refresh.
func (db *DB) MarkFull(commit, scanID string, fileCount int) error {
	if err := db.SetMeta(MetaLastCommit, commit); err != nil {
		return err
	}
	if err := db.SetMeta(MetaLastScanID, scanID); err != nil {
		return err
	}
	if err := db.SetMetaInt(MetaFileCount, int64(fileCount)); err != nil {
		return err
	}
	return db.SetMetaInt(MetaLastFull, time.Now().Unix())
}

// MarkIncremental records a completed incremental refresh.
func (db *DB) MarkIncremental(commit string, fileCount int) error {
	if err := db.SetMeta(MetaLastCommit, commit); err != nil {
		return err
	}
	if err := db.SetMetaInt(MetaFileCount, int64(fileCount)); err != nil {
		return err
	}
	return db.SetMetaInt(MetaLastIncremental, time.Now().Unix())
}

// HashBytes fingerprints file content for change detection.
func HashBytes(data []byte) string {
	return fmt.Sprintf("%016x", xxh3.Hash(data))
}

// HashFile fingerprints a file's content.
func HashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return HashBytes(data), nil
}
