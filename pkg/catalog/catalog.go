// Package catalog keeps a SQLite snapshot of a registry so that tooling can
// read manifests without loading the code they describe. Each row holds the
// persisted document of one manifest, keyed by location.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"github.com/papapumpkin/manifest/internal/logging"
	"github.com/papapumpkin/manifest/internal/telemetry"
	"github.com/papapumpkin/manifest/pkg/codec"
	"github.com/papapumpkin/manifest/pkg/manifest"
	"github.com/papapumpkin/manifest/pkg/registry"
)

// schema is executed on every open.
const schema = `
CREATE TABLE IF NOT EXISTS manifests (
    location   TEXT PRIMARY KEY,
    parent     TEXT NOT NULL DEFAULT '',
    format     TEXT NOT NULL,
    document   TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Entry describes one catalog row without decoding its document.
type Entry struct {
	Location  string
	Parent    string
	Format    codec.Format
	UpdatedAt time.Time
}

// Catalog is a SQLite database in WAL mode holding manifest documents.
type Catalog struct {
	db      *sql.DB
	path    string
	format  codec.Format
	logger  *log.Logger
	emitter *telemetry.Emitter
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithFormat sets the encoding used for documents written by Save. Rows
// keep the format they were written with, so a catalog may mix formats.
func WithFormat(f codec.Format) Option {
	return func(c *Catalog) {
		c.format = f
	}
}

// WithLogger sets the catalog logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Catalog) {
		c.logger = l
	}
}

// WithEmitter records save and restore events to e.
func WithEmitter(e *telemetry.Emitter) Option {
	return func(c *Catalog) {
		c.emitter = e
	}
}

// Open opens (or creates) the catalog at path, enables WAL mode and busy
// timeout, and creates the schema if it does not exist. Missing parent
// directories are created.
func Open(ctx context.Context, path string, opts ...Option) (*Catalog, error) {
	c := &Catalog{path: path, format: codec.FormatTOML}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.OrDiscard(c.logger)
	if _, err := codec.ParseFormat(string(c.format)); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("catalog: creating directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open database: %w", err)
	}

	// SQLite has a single writer; one connection keeps the PRAGMAs below
	// in effect for every statement.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: set busy timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: create schema: %w", err)
	}

	c.db = db
	return c, nil
}

// Path returns the database file path.
func (c *Catalog) Path() string {
	return c.path
}

// Close closes the database.
func (c *Catalog) Close() error {
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("catalog: close: %w", err)
	}
	return nil
}

// Save writes the document of every manifest in reg in one transaction.
// Rows for locations no longer registered are deleted, so after Save the
// catalog mirrors reg. It returns the number of rows written.
func (c *Catalog) Save(ctx context.Context, reg *registry.Registry) (int, error) {
	ms := reg.All()

	type row struct {
		key, parent, doc string
	}
	rows := make([]row, 0, len(ms))
	keep := make(map[string]bool, len(ms))
	for _, m := range ms {
		data, err := codec.Marshal(m, c.format)
		if err != nil {
			return 0, fmt.Errorf("catalog: encode %s: %w", m.Location(), err)
		}
		var parent string
		if p := m.Parent(); p != nil {
			parent = p.Location().Key()
		}
		key := m.Location().Key()
		rows = append(rows, row{key: key, parent: parent, doc: string(data)})
		keep[key] = true
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("catalog: begin tx for save: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	const upsert = `
		INSERT INTO manifests (location, parent, format, document, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(location) DO UPDATE SET
			parent     = excluded.parent,
			format     = excluded.format,
			document   = excluded.document,
			updated_at = CURRENT_TIMESTAMP`

	stmt, err := tx.PrepareContext(ctx, upsert)
	if err != nil {
		return 0, fmt.Errorf("catalog: prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.key, r.parent, string(c.format), r.doc); err != nil {
			return 0, fmt.Errorf("catalog: save %s: %w", r.key, err)
		}
	}

	stale, err := staleKeys(ctx, tx, keep)
	if err != nil {
		return 0, err
	}
	for _, key := range stale {
		if _, err := tx.ExecContext(ctx, `DELETE FROM manifests WHERE location = ?`, key); err != nil {
			return 0, fmt.Errorf("catalog: delete %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("catalog: commit save: %w", err)
	}

	c.logger.Info("catalog saved", "path", c.path, "manifests", len(rows), "pruned", len(stale))
	c.emit(telemetry.KindCatalogSaved, map[string]int{"manifests": len(rows), "pruned": len(stale)})
	return len(rows), nil
}

func staleKeys(ctx context.Context, tx *sql.Tx, keep map[string]bool) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT location FROM manifests`)
	if err != nil {
		return nil, fmt.Errorf("catalog: list locations: %w", err)
	}
	defer rows.Close()

	var stale []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("catalog: scan location: %w", err)
		}
		if !keep[key] {
			stale = append(stale, key)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: list locations: %w", err)
	}
	return stale, nil
}

// Entries lists the catalog rows ordered by location.
func (c *Catalog) Entries(ctx context.Context) ([]Entry, error) {
	const q = `SELECT location, parent, format, updated_at FROM manifests ORDER BY location`
	rows, err := c.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("catalog: query entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var format, ts string
		if err := rows.Scan(&e.Location, &e.Parent, &format, &ts); err != nil {
			return nil, fmt.Errorf("catalog: scan entry: %w", err)
		}
		updated, err := parseTimestamp(ts)
		if err != nil {
			return nil, fmt.Errorf("catalog: entry %s: %w", e.Location, err)
		}
		e.Format = codec.Format(format)
		e.UpdatedAt = updated
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: query entries: %w", err)
	}
	return out, nil
}

// timestampFormats lists the layouts CURRENT_TIMESTAMP comes back in:
// RFC 3339 from modernc.org/sqlite, space-separated from canonical SQLite.
var timestampFormats = []string{
	time.RFC3339,
	time.DateTime,
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format: %q", s)
}

// Document returns the stored document at key, or an error wrapping
// manifest.ErrNotFound.
func (c *Catalog) Document(ctx context.Context, key string) (codec.Document, error) {
	const q = `SELECT format, document FROM manifests WHERE location = ?`
	var format, data string
	err := c.db.QueryRowContext(ctx, q, key).Scan(&format, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return codec.Document{}, fmt.Errorf("catalog: %w: %s", manifest.ErrNotFound, key)
	}
	if err != nil {
		return codec.Document{}, fmt.Errorf("catalog: query %s: %w", key, err)
	}
	return c.decode(key, format, data)
}

// Documents returns every stored document ordered by location.
func (c *Catalog) Documents(ctx context.Context) ([]codec.Document, error) {
	const q = `SELECT location, format, document FROM manifests ORDER BY location`
	rows, err := c.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("catalog: query documents: %w", err)
	}
	defer rows.Close()

	var docs []codec.Document
	for rows.Next() {
		var key, format, data string
		if err := rows.Scan(&key, &format, &data); err != nil {
			return nil, fmt.Errorf("catalog: scan document: %w", err)
		}
		doc, err := c.decode(key, format, data)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: query documents: %w", err)
	}
	return docs, nil
}

func (c *Catalog) decode(key, format, data string) (codec.Document, error) {
	f, err := codec.ParseFormat(format)
	if err != nil {
		return codec.Document{}, fmt.Errorf("catalog: row %s: %w", key, err)
	}
	doc, err := codec.Unmarshal([]byte(data), f)
	if err != nil {
		return codec.Document{}, fmt.Errorf("catalog: row %s: %w", key, err)
	}
	doc.File = c.path + "#" + key
	return doc, nil
}

// Restore rebuilds every stored manifest and registers the batch in reg.
// Parents outside the catalog must already be registered. Nothing is
// registered if any document fails or any location is already taken.
func (c *Catalog) Restore(ctx context.Context, reg *registry.Registry) ([]*manifest.Manifest, error) {
	docs, err := c.Documents(ctx)
	if err != nil {
		return nil, err
	}
	ms, err := codec.Assemble(docs, reg.LookupFunc())
	if err != nil {
		return nil, fmt.Errorf("catalog: restore: %w", err)
	}
	if err := reg.RegisterAll(ms); err != nil {
		return nil, fmt.Errorf("catalog: restore: %w", err)
	}

	c.logger.Info("catalog restored", "path", c.path, "manifests", len(ms))
	c.emit(telemetry.KindCatalogRestored, map[string]int{"manifests": len(ms)})
	return ms, nil
}

func (c *Catalog) emit(kind string, data any) {
	evt := telemetry.Now(kind)
	evt.File = c.path
	evt.Data = data
	if err := c.emitter.Emit(evt); err != nil {
		c.logger.Warn("telemetry emit failed", "kind", kind, "err", err)
	}
}
