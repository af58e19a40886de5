package ledger

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/partmirror/internal/blob"
)

//go:embed schema.sql
var schemaSQL string

// SQLite is a file-backed ledger for the standalone worker and integration
// tests. It stores the same Key/VersionId/DestObject/DestObjectTags shape as
// the DynamoDB table, with the JSON documents in TEXT columns.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite creates or opens the ledger database at path.
//
// The database is configured with WAL mode for concurrent reads, NORMAL
// synchronous mode, a 5-second busy timeout, and a single-writer connection
// pool. Safe to call on an existing database.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to ledger database: %w", err)
	}

	// SQLite only supports one writer at a time; a single connection
	// avoids SQLITE_BUSY under the worker's sequential write pattern.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply ledger schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the record for (key, version), or ErrNotFound.
func (s *SQLite) Get(ctx context.Context, key, version string) (Record, error) {
	var objJSON, tagsJSON sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT dest_object, dest_tags
		FROM objects
		WHERE object_key = ? AND version_id = ?
	`, key, StorageVersion(version)).Scan(&objJSON, &tagsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("ledger get %s@%s: %w", key, StorageVersion(version), ErrNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("ledger get %s: %w", key, err)
	}

	var rec Record
	if objJSON.Valid {
		var meta blob.ObjectMeta
		if err := json.Unmarshal([]byte(objJSON.String), &meta); err != nil {
			return Record{}, fmt.Errorf("ledger get %s: decode object: %w", key, err)
		}
		rec.Object = meta
	}
	rec.Tags = map[string]string{}
	if tagsJSON.Valid {
		if err := json.Unmarshal([]byte(tagsJSON.String), &rec.Tags); err != nil {
			return Record{}, fmt.Errorf("ledger get %s: decode tags: %w", key, err)
		}
	}
	return rec, nil
}

// Put upserts the provided fields. Only the columns named in up are touched
// on conflict, preserving partial-update semantics.
func (s *SQLite) Put(ctx context.Context, key, version string, up Update) error {
	var (
		objVal  any
		tagsVal any
		sets    []string
	)

	if up.Object != nil {
		data, err := json.Marshal(*up.Object)
		if err != nil {
			return fmt.Errorf("ledger put %s: encode object: %w", key, err)
		}
		objVal = string(data)
		sets = append(sets, "dest_object = excluded.dest_object")
	}
	if up.Tags != nil {
		tags := *up.Tags
		if tags == nil {
			tags = map[string]string{}
		}
		data, err := json.Marshal(tags)
		if err != nil {
			return fmt.Errorf("ledger put %s: encode tags: %w", key, err)
		}
		tagsVal = string(data)
		sets = append(sets, "dest_tags = excluded.dest_tags")
	}
	if len(sets) == 0 {
		return nil
	}

	query := `
		INSERT INTO objects (object_key, version_id, dest_object, dest_tags)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(object_key, version_id) DO UPDATE SET ` + strings.Join(sets, ", ")

	if _, err := s.db.ExecContext(ctx, query, key, StorageVersion(version), objVal, tagsVal); err != nil {
		return fmt.Errorf("ledger put %s: %w", key, err)
	}
	return nil
}

// Delete removes the record. Deleting an absent record is not an error.
func (s *SQLite) Delete(ctx context.Context, key, version string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM objects
		WHERE object_key = ? AND version_id = ?
	`, key, StorageVersion(version))
	if err != nil {
		return fmt.Errorf("ledger delete %s: %w", key, err)
	}
	return nil
}
