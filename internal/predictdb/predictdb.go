// Package predictdb provides the SQLite-backed prediction database and the
// prediction engine built on top of it. The database maps a query (the most
// recently committed text) to weighted continuation candidates.
package predictdb

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/blake2b"
)

// Schema for the prediction database.
const schema = `
CREATE TABLE IF NOT EXISTS predictions (
    query      TEXT NOT NULL,
    candidate  TEXT NOT NULL,
    weight     REAL NOT NULL,
    PRIMARY KEY (query, candidate)
);

CREATE INDEX IF NOT EXISTS idx_predictions_query ON predictions(query, weight DESC);

CREATE TABLE IF NOT EXISTS meta (
    key    TEXT PRIMARY KEY,
    value  TEXT NOT NULL
);
`

// Meta keys.
const (
	metaCorpusDigest = "corpus_digest"
	metaFormat       = "format"
)

// formatVersion identifies the table layout; bumped on incompatible change.
const formatVersion = "1"

// ErrCorpusDigest is returned by Verify when the stored corpus digest does
// not match the table contents.
var ErrCorpusDigest = errors.New("prediction table does not match its recorded corpus digest")

// DB is an open prediction database.
type DB struct {
	db     *sql.DB
	lookup *sql.Stmt
}

// Open opens or creates the prediction database at path and applies the
// schema.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	if _, err := db.Exec(
		`INSERT OR IGNORE INTO meta (key, value) VALUES (?, ?)`,
		metaFormat, formatVersion,
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("record format version: %w", err)
	}

	lookup, err := db.Prepare(
		`SELECT candidate FROM predictions WHERE query = ? ORDER BY weight DESC, candidate LIMIT ?`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare lookup: %w", err)
	}

	return &DB{db: db, lookup: lookup}, nil
}

// Close releases the database handle.
func (d *DB) Close() error {
	if d.lookup != nil {
		d.lookup.Close()
	}
	return d.db.Close()
}

// Lookup returns up to limit continuation candidates for query, best first.
func (d *DB) Lookup(query string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := d.lookup.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("lookup %q: %w", query, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var cand string
		if err := rows.Scan(&cand); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		out = append(out, cand)
	}
	return out, rows.Err()
}

// Count returns the number of prediction rows.
func (d *DB) Count() (int, error) {
	var n int
	err := d.db.QueryRow(`SELECT COUNT(*) FROM predictions`).Scan(&n)
	return n, err
}

// tableDigest computes a BLAKE2b-256 digest over the prediction rows in
// deterministic order.
func (d *DB) tableDigest() ([]byte, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return nil, err
	}
	rows, err := d.db.Query(
		`SELECT query, candidate, weight FROM predictions ORDER BY query, candidate`)
	if err != nil {
		return nil, fmt.Errorf("digest scan: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var query, cand string
		var weight float64
		if err := rows.Scan(&query, &cand, &weight); err != nil {
			return nil, err
		}
		fmt.Fprintf(h, "%s\x00%s\x00%g\n", query, cand, weight)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

// sealDigest records the current table digest in the meta table. Called by
// the compiler after a build completes.
func (d *DB) sealDigest() error {
	digest, err := d.tableDigest()
	if err != nil {
		return err
	}
	_, err = d.db.Exec(
		`INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`,
		metaCorpusDigest, fmt.Sprintf("%x", digest))
	return err
}

// Verify recomputes the table digest and compares it with the sealed one.
// Databases that were never sealed verify trivially.
func (d *DB) Verify() error {
	var stored string
	err := d.db.QueryRow(
		`SELECT value FROM meta WHERE key = ?`, metaCorpusDigest).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read corpus digest: %w", err)
	}
	digest, err := d.tableDigest()
	if err != nil {
		return fmt.Errorf("compute table digest: %w", err)
	}
	if fmt.Sprintf("%x", digest) != stored {
		return ErrCorpusDigest
	}
	return nil
}
