package cache

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/spf13/afero"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DiskBackend is the durable cache tier used for library snapshots and
// playback-link entries that should survive a process restart (§6: "only
// the on-disk cache backend, if used, is written to"). It is backed by
// sqlite; afero.Fs only gates whether the parent directory exists, so the
// backend remains testable against an in-memory filesystem.
type DiskBackend struct {
	db *sql.DB
}

// NewDiskBackend opens (creating if needed) a sqlite database at path and
// applies pending goose migrations. fs is used solely to ensure the parent
// directory exists before sqlite opens the file.
func NewDiskBackend(fs afero.Fs, path string) (*DiskBackend, error) {
	if fs != nil {
		if err := fs.MkdirAll(dirOf(path), 0o755); err != nil {
			return nil, fmt.Errorf("cache: create dir for %s: %w", path, err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("cache: open sqlite %s: %w", path, err)
	}

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return nil, fmt.Errorf("cache: set dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return nil, fmt.Errorf("cache: migrate %s: %w", path, err)
	}

	return &DiskBackend{db: db}, nil
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}

func (d *DiskBackend) Close() error {
	return d.db.Close()
}

func (d *DiskBackend) Get(ctx context.Context, namespace, key string) (Entry, bool, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT value, stored_at, expires_at FROM cache_entries WHERE namespace = ? AND key = ?`,
		namespace, key,
	)
	var (
		value              []byte
		storedAt, expireAt int64
	)
	if err := row.Scan(&value, &storedAt, &expireAt); err != nil {
		if err == sql.ErrNoRows {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	return Entry{
		Value:     value,
		Stored:    time.Unix(storedAt, 0),
		ExpiresAt: time.Unix(expireAt, 0),
	}, true, nil
}

func (d *DiskBackend) Set(ctx context.Context, namespace, key string, e Entry) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO cache_entries (namespace, key, value, stored_at, expires_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(namespace, key) DO UPDATE SET
		   value = excluded.value,
		   stored_at = excluded.stored_at,
		   expires_at = excluded.expires_at`,
		namespace, key, e.Value, e.Stored.Unix(), e.ExpiresAt.Unix(),
	)
	return err
}

func (d *DiskBackend) Delete(ctx context.Context, namespace, key string) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE namespace = ? AND key = ?`, namespace, key)
	return err
}

func (d *DiskBackend) Clear(ctx context.Context, namespace string) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE namespace = ?`, namespace)
	return err
}
