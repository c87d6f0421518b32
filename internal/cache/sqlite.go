package cache

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/datasynth/datasynth/internal/constants"
	"github.com/datasynth/datasynth/internal/fileutils"
	"github.com/datasynth/datasynth/internal/schema"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/ubuntu/decorate"

	_ "github.com/mattn/go-sqlite3" // database/sql driver
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLiteStore is a Store backed by a SQLite database.
// Concurrent writers are serialized by SQLite's own locking, so it keeps no backup file.
type SQLiteStore struct {
	db   *sql.DB
	path string

	log *slog.Logger
	now func() time.Time
}

// NewSQLiteStore opens or creates the database at path.
func NewSQLiteStore(path string, args ...Option) (s *SQLiteStore, err error) {
	defer decorate.OnError(&err, "could not open cache database %s", path)

	opts := options{
		log: slog.Default(),
		now: time.Now,
	}
	for _, opt := range args {
		opt(&opts)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// SQLite supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := initDB(db, opts.log, opts.now()); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db, path: path, log: opts.log, now: opts.now}, nil
}

func initDB(db *sql.DB, log *slog.Logger, now time.Time) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	if err := migrateDB(db, log); err != nil {
		return err
	}

	_, err := db.Exec(`INSERT OR IGNORE INTO metadata (id, version, created_at, last_updated) VALUES (1, ?, ?, ?)`,
		constants.CacheFormatVersion, formatTime(now), formatTime(now))
	return err
}

// migrateDB brings the tables to the latest embedded migration.
// The migration instance is not closed, as that would close db too.
func migrateDB(db *sql.DB, log *slog.Logger) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	drv, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to prepare migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", drv)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Debug("Cache database is up to date")
			return nil
		}
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	log.Debug("Cache database migrations applied")
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get returns the schema stored under key.
func (s *SQLiteStore) Get(key string) (sc schema.Schema, found bool, err error) {
	if err := validateKey(key); err != nil {
		return schema.Schema{}, false, err
	}

	var fields, created string
	row := s.db.QueryRow(`SELECT description_hash, fields_schema, created_at, domain FROM schemas WHERE key = ?`, key)
	err = row.Scan(&sc.DescriptionHash, &fields, &created, &sc.Domain)
	if errors.Is(err, sql.ErrNoRows) {
		return schema.Schema{}, false, nil
	}
	if err != nil {
		return schema.Schema{}, false, fmt.Errorf("%w: %v", ErrAccessDenied, err)
	}

	if err := json.Unmarshal([]byte(fields), &sc.Fields); err != nil {
		s.log.Warn("Malformed schema in cache database", "key", key, "error", err)
		return schema.Schema{}, false, nil
	}
	if sc.CreatedAt, err = parseTime(created); err != nil {
		s.log.Warn("Malformed schema in cache database", "key", key, "error", err)
		return schema.Schema{}, false, nil
	}
	return sc, true, nil
}

// Put stores sc under key in a single transaction.
func (s *SQLiteStore) Put(key string, sc schema.Schema) (err error) {
	defer decorate.OnError(&err, "could not save schema %s to cache", key)

	if err := validateKey(key); err != nil {
		return err
	}

	fields, err := json.Marshal(sc.Fields)
	if err != nil {
		return err
	}
	now := formatTime(s.now())

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.Exec(`INSERT INTO schemas (key, description_hash, fields_schema, created_at, domain, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			description_hash = excluded.description_hash,
			fields_schema = excluded.fields_schema,
			created_at = excluded.created_at,
			domain = excluded.domain,
			updated_at = excluded.updated_at`,
		key, sc.DescriptionHash, string(fields), formatTime(sc.CreatedAt), sc.Domain, now); err != nil {
		return err
	}
	if _, err = tx.Exec(`UPDATE metadata SET last_updated = ? WHERE id = 1`, now); err != nil {
		return err
	}
	return tx.Commit()
}

// Stats reports counts and the database size.
func (s *SQLiteStore) Stats() Stats {
	st := Stats{CachePath: s.path}

	var updated string
	err := s.db.QueryRow(`SELECT (SELECT COUNT(*) FROM schemas), last_updated FROM metadata WHERE id = 1`).Scan(&st.TotalSchemas, &updated)
	if err != nil {
		s.log.Debug("Could not read cache stats", "path", s.path, "error", err)
		st.Error = "cache database not accessible"
		return st
	}
	if t, err := parseTime(updated); err == nil {
		st.LastUpdated = &t
	}
	st.CacheFileSize = fileutils.FileSize(s.path)
	return st
}

// Healthy runs SQLite's integrity check.
func (s *SQLiteStore) Healthy() bool {
	var result string
	if err := s.db.QueryRow(`PRAGMA integrity_check`).Scan(&result); err != nil {
		s.log.Debug("Cache database unhealthy", "path", s.path, "error", err)
		return false
	}
	return result == "ok"
}

// Keys lists the stored content keys.
func (s *SQLiteStore) Keys() (keys []string, err error) {
	defer decorate.OnError(&err, "could not list cache keys")

	rows, err := s.db.Query(`SELECT key FROM schemas ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Clear removes every entry.
func (s *SQLiteStore) Clear() (err error) {
	defer decorate.OnError(&err, "could not clear cache")

	if _, err := s.db.Exec(`DELETE FROM schemas`); err != nil {
		return err
	}
	_, err = s.db.Exec(`UPDATE metadata SET last_updated = ? WHERE id = 1`, formatTime(s.now()))
	return err
}
