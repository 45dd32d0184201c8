// Package sqlitecache implements a persistent decision cache (spec.md
// §4.L) backed by modernc.org/sqlite, so a restarted PDP process can reuse
// decisions computed before the restart. The on-disk response.Result is
// serialized as JSON, following the receipt store's JSON-blob-in-a-column
// approach for structured fields that don't need their own SQL columns.
package sqlitecache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lattice-abac/pdp/internal/domain/cache"
	"github.com/lattice-abac/pdp/internal/domain/response"
)

// Cache is a sqlite-backed decision cache. ttl <= 0 disables age-based
// expiry; entries are otherwise pruned lazily on read.
type Cache struct {
	db  *sql.DB
	ttl time.Duration
}

// Open opens (creating if necessary) a sqlite database at path and
// migrates the decision_cache table.
func Open(path string, ttl time.Duration) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitecache: open %q: %w", path, err)
	}
	c := &Cache{db: db, ttl: ttl}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Cache) migrate() error {
	_, err := c.db.ExecContext(context.Background(), `
		CREATE TABLE IF NOT EXISTS decision_cache (
			fingerprint INTEGER PRIMARY KEY,
			result_json TEXT NOT NULL,
			stored_at   DATETIME NOT NULL
		)`)
	return err
}

// GetAll implements cache.Cache. Expired rows are deleted as they're
// encountered rather than swept by a background job.
func (c *Cache) GetAll(ctx context.Context, keys []cache.Key) (map[cache.Key]*response.Result, error) {
	out := make(map[cache.Key]*response.Result, len(keys))
	now := time.Now()

	for _, k := range keys {
		out[k] = nil
		var resultJSON, storedAtText string
		row := c.db.QueryRowContext(ctx,
			`SELECT result_json, stored_at FROM decision_cache WHERE fingerprint = ?`, int64(k))
		if err := row.Scan(&resultJSON, &storedAtText); err != nil {
			if err == sql.ErrNoRows {
				continue
			}
			return nil, fmt.Errorf("sqlitecache: get %d: %w", k, err)
		}

		storedAt, _ := time.Parse(time.RFC3339Nano, storedAtText)
		if c.ttl > 0 && now.After(storedAt.Add(c.ttl)) {
			_, _ = c.db.ExecContext(ctx, `DELETE FROM decision_cache WHERE fingerprint = ?`, int64(k))
			continue
		}

		var r response.Result
		if err := json.Unmarshal([]byte(resultJSON), &r); err != nil {
			return nil, fmt.Errorf("sqlitecache: decode %d: %w", k, err)
		}
		out[k] = &r
	}
	return out, nil
}

// PutAll implements cache.Cache, upserting each entry in one transaction.
func (c *Cache) PutAll(ctx context.Context, entries map[cache.Key]response.Result) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlitecache: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO decision_cache (fingerprint, result_json, stored_at) VALUES (?, ?, ?)
		 ON CONFLICT(fingerprint) DO UPDATE SET result_json = excluded.result_json, stored_at = excluded.stored_at`)
	if err != nil {
		return fmt.Errorf("sqlitecache: prepare: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for k, r := range entries {
		blob, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("sqlitecache: encode %d: %w", k, err)
		}
		if _, err := stmt.ExecContext(ctx, int64(k), string(blob), now); err != nil {
			return fmt.Errorf("sqlitecache: put %d: %w", k, err)
		}
	}
	return tx.Commit()
}

// Invalidate drops every cached entry, e.g. on policy reload (spec.md
// §4.L: "must never serve stale results for a changed policy set").
func (c *Cache) Invalidate(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM decision_cache`)
	return err
}

// Close implements cache.Cache.
func (c *Cache) Close() error { return c.db.Close() }

var _ cache.Cache = (*Cache)(nil)
