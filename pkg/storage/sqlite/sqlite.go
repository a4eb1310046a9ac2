package sqlite

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-sqlite3"
	quake "github.com/perpetuallyhorni/quakefilter/internal"
	"github.com/perpetuallyhorni/quakefilter/pkg/storage"
)

//go:embed queries/*.sql
var queryFS embed.FS

// DB is a SQLite implementation of the storage.Storer interface.
type DB struct {
	Conn *sql.DB // The raw database connection, exposed for extensibility.
}

// New opens the hash database, creating it and its schema when missing.
// A file that is not a readable SQLite database yields storage.ErrCorruptStore.
func New(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=WAL", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database %s: %w", path, classify(err))
	}

	instance := &DB{Conn: db}
	if err := instance.createSchema(); err != nil {
		_ = instance.Close()
		return nil, fmt.Errorf("failed to create database schema in %s: %w", path, classify(err))
	}

	return instance, nil
}

// classify maps SQLite corruption errors onto storage.ErrCorruptStore.
func classify(err error) error {
	var sqlErr sqlite3.Error
	if errors.As(err, &sqlErr) && (sqlErr.Code == sqlite3.ErrNotADB || sqlErr.Code == sqlite3.ErrCorrupt) {
		return fmt.Errorf("%w: %v", storage.ErrCorruptStore, err)
	}
	return err
}

// getQuery reads a raw SQL query from the embedded filesystem.
func getQuery(name string) (string, error) {
	b, err := queryFS.ReadFile("queries/" + name)
	if err != nil {
		return "", fmt.Errorf("failed to read embedded query %s: %w", name, err)
	}
	return string(b), nil
}

func (db *DB) createSchema() error {
	query, err := getQuery("schema.sql")
	if err != nil {
		return err
	}
	_, err = db.Conn.Exec(query)
	return err
}

// LoadHashes returns every persisted hash.
func (db *DB) LoadHashes() ([]quake.Hash, error) {
	query, err := getQuery("load_hashes.sql")
	if err != nil {
		return nil, err
	}
	rows, err := db.Conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query hashes: %w", classify(err))
	}
	defer func() {
		if err := rows.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to close rows: %v\n", err)
		}
	}()

	var hashes []quake.Hash
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("failed to scan hash row: %w", err)
		}
		hashes = append(hashes, quake.Hash(h))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during hash iteration: %w", classify(err))
	}
	return hashes, nil
}

// SaveHashes inserts the records in one transaction and forces a WAL checkpoint.
// Existing hashes keep their original first-seen data.
func (db *DB) SaveHashes(records []storage.HashRecord) (err error) {
	if len(records) == 0 {
		return nil
	}
	query, err := getQuery("insert_hash.sql")
	if err != nil {
		return err
	}
	tx, err := db.Conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", classify(err))
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", classify(err))
	}
	defer func() {
		if cerr := stmt.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close statement: %w", cerr)
		}
	}()

	for _, r := range records {
		if _, err = stmt.Exec(string(r.Hash), r.URL, r.Source, r.SeenAt); err != nil {
			return fmt.Errorf("failed to insert hash %s: %w", r.Hash, classify(err))
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %d hashes: %w", len(records), classify(err))
	}

	if _, err = db.Conn.Exec("PRAGMA wal_checkpoint(TRUNCATE);"); err != nil {
		return fmt.Errorf("failed to checkpoint WAL after saving hashes: %w", err)
	}
	return nil
}

// CountHashes returns the number of persisted hashes.
func (db *DB) CountHashes() (int, error) {
	query, err := getQuery("count_hashes.sql")
	if err != nil {
		return 0, err
	}
	var count int
	if err := db.Conn.QueryRow(query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count hashes: %w", classify(err))
	}
	return count, nil
}

// CountBySource returns how many hashes each input file contributed.
func (db *DB) CountBySource() ([]storage.SourceCount, error) {
	query, err := getQuery("count_by_source.sql")
	if err != nil {
		return nil, err
	}
	rows, err := db.Conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to count hashes by source: %w", classify(err))
	}
	defer func() {
		if err := rows.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to close rows: %v\n", err)
		}
	}()

	var counts []storage.SourceCount
	for rows.Next() {
		var c storage.SourceCount
		if err := rows.Scan(&c.Source, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during source iteration: %w", err)
	}
	return counts, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.Conn.Close()
}
