package sqlite

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mediamanager/mstore/lib/db"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Empty file
// 1 - kv table
const currentSchemaVersion = 1

// sqliteImpl keeps all entries in a single kv table.
type sqliteImpl struct {
	db   *sql.DB
	path string
}

// New opens (or creates) the SQLite database at path. ":memory:" gives a volatile engine.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
func New(path string) (db.KVDB, error) {
	sdb, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	if err := sdb.Ping(); err != nil {
		sdb.Close()
		return nil, fmt.Errorf("sqlite: connect %s: %w", path, err)
	}

	// SQLite only supports one writer at a time
	sdb.SetMaxOpenConns(1)
	sdb.SetMaxIdleConns(1)

	if err := applyPragmas(sdb); err != nil {
		sdb.Close()
		return nil, err
	}
	if err := applySchema(sdb); err != nil {
		sdb.Close()
		return nil, err
	}
	return &sqliteImpl{db: sdb, path: path}, nil
}

func applyPragmas(sdb *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := sdb.Exec(pragma); err != nil {
			return fmt.Errorf("sqlite: execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(sdb *sql.DB) error {
	var version int
	if err := sdb.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("sqlite: get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("sqlite: schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}
	if _, err := sdb.Exec(schemaSQL); err != nil {
		return fmt.Errorf("sqlite: apply schema: %w", err)
	}
	if _, err := sdb.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("sqlite: set user_version: %w", err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

func (s *sqliteImpl) Set(key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := s.db.Exec(`INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

func (s *sqliteImpl) Delete(key string) error {
	_, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key)
	return err
}

// --------------------------------------------------------------------------
// Read Operations
// --------------------------------------------------------------------------

func (s *sqliteImpl) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if value == nil {
		value = []byte{}
	}
	return value, true, nil
}

func (s *sqliteImpl) Has(key string) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM kv WHERE key = ?`, key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// Range reads the matching rows in key order before calling fn, so fn may query the
// engine again even though only one connection is open.
func (s *sqliteImpl) Range(prefix string, fn func(key string, value []byte) bool) error {
	rows, err := s.db.Query(`SELECT key, value FROM kv WHERE key >= ? ORDER BY key`, prefix)
	if err != nil {
		return err
	}

	type pair struct {
		key   string
		value []byte
	}
	var entries []pair
	for rows.Next() {
		var p pair
		if err := rows.Scan(&p.key, &p.value); err != nil {
			rows.Close()
			return err
		}
		if !strings.HasPrefix(p.key, prefix) {
			break
		}
		entries = append(entries, p)
	}
	if err := rows.Close(); err != nil {
		return err
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, p := range entries {
		if !fn(p.key, p.value) {
			break
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

func (s *sqliteImpl) Save(w io.Writer) error {
	return db.WriteSnapshot(w, s)
}

func (s *sqliteImpl) Load(r io.Reader) error {
	return db.LoadSnapshot(r, s)
}

// --------------------------------------------------------------------------
// Features and Metadata
// --------------------------------------------------------------------------

func (s *sqliteImpl) GetInfo() db.DatabaseInfo {
	var entries, size int
	_ = s.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(LENGTH(key) + LENGTH(value)), 0) FROM kv`).Scan(&entries, &size)

	var version int
	_ = s.db.QueryRow("PRAGMA user_version").Scan(&version)

	meta := &struct {
		Path          string `json:"path"`
		SchemaVersion int    `json:"schema_version"`
	}{
		Path:          s.path,
		SchemaVersion: version,
	}

	return db.DatabaseInfo{
		Entries:           entries,
		SizeBytes:         size,
		DbType:            db.ImplSqlite,
		SupportedFeatures: db.Features(s.features()),
		Metadata:          meta,
	}
}

func (s *sqliteImpl) features() db.Feature {
	f := db.FeatureSet |
		db.FeatureGet |
		db.FeatureDelete |
		db.FeatureHas |
		db.FeatureRange |
		db.FeatureSave |
		db.FeatureLoad
	if s.path != ":memory:" && s.path != "" {
		f |= db.FeatureDurable
	}
	return f
}

func (s *sqliteImpl) SupportsFeature(feature db.Feature) bool {
	return s.features()&feature == feature
}

func (s *sqliteImpl) Close() error {
	return s.db.Close()
}
