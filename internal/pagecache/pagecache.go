// Package pagecache stores rendered GET responses in SQLite.
package pagecache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrMiss is returned by Get when no entry is stored under a key.
var ErrMiss = errors.New("page cache miss")

// Entry is one cached response.
type Entry struct {
	Status int
	Header http.Header
	Body   []byte
	Stored time.Time
}

// Cache is a page cache backed by a SQLite database.
type Cache struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS pages (
	key TEXT PRIMARY KEY,
	namespace TEXT NOT NULL,
	request TEXT NOT NULL,
	status INTEGER NOT NULL,
	header JSON,
	body BLOB,
	stored INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pages_request ON pages(namespace, request);
`

// Open opens or creates the cache database at path. ":memory:" gives a
// private in-memory cache.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// In-memory databases are per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close closes the database.
func (c *Cache) Close() error { return c.db.Close() }

var keyEscaper = strings.NewReplacer("%", "%25", "_", "%5F", "/", "_")

// Key builds the cache key for a request: the namespace, the request path
// with slashes turned into underscores, and a digest of the parameters.
// Underscores and percent signs already in the path are percent-encoded
// first, so distinct paths never share a key.
func Key(namespace, request string, params url.Values) string {
	sum := sha256.Sum256([]byte(params.Encode()))
	return namespace + keyEscaper.Replace(request) + "__" + hex.EncodeToString(sum[:])
}

// Get returns the entry stored under key, or ErrMiss.
func (c *Cache) Get(ctx context.Context, key string) (*Entry, error) {
	var (
		e      Entry
		header []byte
		stored int64
	)
	err := c.db.QueryRowContext(ctx,
		"SELECT status, header, body, stored FROM pages WHERE key = ?", key,
	).Scan(&e.Status, &header, &e.Body, &stored)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("read cache %s: %w", key, err)
	}
	if len(header) > 0 {
		if err := json.Unmarshal(header, &e.Header); err != nil {
			return nil, fmt.Errorf("decode cached header %s: %w", key, err)
		}
	}
	e.Stored = time.Unix(0, stored)
	return &e, nil
}

// Put stores e under key, replacing any previous entry. request is the
// request path the key was built from; Purge matches on it.
func (c *Cache) Put(ctx context.Context, key, namespace, request string, e *Entry) error {
	header, err := json.Marshal(e.Header)
	if err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	stored := e.Stored
	if stored.IsZero() {
		stored = time.Now()
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO pages (key, namespace, request, status, header, body, stored)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		key, namespace, request, e.Status, string(header), e.Body, stored.UnixNano())
	if err != nil {
		return fmt.Errorf("write cache %s: %w", key, err)
	}
	return nil
}

// Purge removes the entries of namespace whose request path starts with
// prefix, every entry of the namespace when prefix is empty, and every entry
// when namespace is empty too. It returns the number of entries removed.
func (c *Cache) Purge(ctx context.Context, namespace, prefix string) (int64, error) {
	var (
		res sql.Result
		err error
	)
	switch {
	case namespace == "" && prefix == "":
		res, err = c.db.ExecContext(ctx, "DELETE FROM pages")
	case namespace == "":
		res, err = c.db.ExecContext(ctx,
			"DELETE FROM pages WHERE substr(request, 1, length(?)) = ?", prefix, prefix)
	default:
		res, err = c.db.ExecContext(ctx,
			"DELETE FROM pages WHERE namespace = ? AND substr(request, 1, length(?)) = ?",
			namespace, prefix, prefix)
	}
	if err != nil {
		return 0, fmt.Errorf("purge cache: %w", err)
	}
	return res.RowsAffected()
}

// Len returns the number of stored entries.
func (c *Cache) Len(ctx context.Context) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pages").Scan(&n)
	return n, err
}
