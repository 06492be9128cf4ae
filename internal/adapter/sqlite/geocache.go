package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/couchcryptid/incident-etl/internal/domain"

	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS geocode_cache (
    query TEXT PRIMARY KEY,
    lat REAL NOT NULL,
    lon REAL NOT NULL,
    display_name TEXT NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);`

// GeoCache is a persistent geocode result store keyed by the exact lookup key.
// Entries never expire.
type GeoCache struct {
	db *sql.DB
}

// OpenGeoCache opens or creates the cache database at path.
func OpenGeoCache(ctx context.Context, path string) (*GeoCache, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open geocode cache: %w", err)
	}
	// A single connection serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init geocode cache: %w", err)
	}
	return &GeoCache{db: db}, nil
}

// Get returns the stored result for key, if any.
func (c *GeoCache) Get(ctx context.Context, key string) (domain.GeocodingResult, bool, error) {
	var r domain.GeocodingResult
	err := c.db.QueryRowContext(ctx,
		`SELECT lat, lon, display_name FROM geocode_cache WHERE query = ?`, key,
	).Scan(&r.Lat, &r.Lon, &r.DisplayName)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.GeocodingResult{}, false, nil
	}
	if err != nil {
		return domain.GeocodingResult{}, false, fmt.Errorf("read geocode cache: %w", err)
	}
	return r, true, nil
}

// Put stores or replaces the result for key.
func (c *GeoCache) Put(ctx context.Context, key string, r domain.GeocodingResult) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO geocode_cache (query, lat, lon, display_name) VALUES (?, ?, ?, ?)
         ON CONFLICT(query) DO UPDATE SET lat = excluded.lat, lon = excluded.lon, display_name = excluded.display_name`,
		key, r.Lat, r.Lon, r.DisplayName,
	)
	if err != nil {
		return fmt.Errorf("write geocode cache: %w", err)
	}
	return nil
}

// Len returns the number of stored entries.
func (c *GeoCache) Len(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM geocode_cache`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count geocode cache: %w", err)
	}
	return n, nil
}

// Close releases the database handle.
func (c *GeoCache) Close() error {
	return c.db.Close()
}
