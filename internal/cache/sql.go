// SPDX-License-Identifier: AGPL-3.0-only
package cache

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/fluffyriot/crossfeed/internal/models"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

//go:embed migrations/*/*.sql
var migrations embed.FS

const insertPostSQL = `INSERT INTO cached_posts (
	position, id, stable_id, platform, account_id,
	author_name, author_username, author_avatar,
	content, url, in_reply_to_id, created_at,
	saved_at, payload, payload_digest
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const selectPostsSQL = `SELECT
	id, stable_id, platform, account_id,
	author_name, author_username, author_avatar,
	content, url, in_reply_to_id, created_at,
	payload, payload_digest
FROM cached_posts ORDER BY position`

// SQLStore keeps the snapshot in a single table, on SQLite or Postgres.
type SQLStore struct {
	db      *sql.DB
	dialect string
	limit   int
	now     func() time.Time
}

func OpenSQL(opts Options) (*SQLStore, error) {
	var (
		db      *sql.DB
		dialect string
		err     error
	)

	switch opts.Driver {
	case DriverSQLite, "":
		db, err = openSQLite(opts.Path)
		dialect = "sqlite3"
	case DriverPostgres:
		db, err = openPostgres(opts.DSN)
		dialect = "postgres"
	default:
		return nil, fmt.Errorf("unknown cache driver %q", opts.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := migrate(db, dialect); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLStore{db: db, dialect: dialect, limit: opts.limit(), now: time.Now}, nil
}

func openSQLite(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite cache needs a path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to cache database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return db, nil
}

func openPostgres(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres cache needs a dsn")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to cache database: %w", err)
	}
	return db, nil
}

func migrate(db *sql.DB, dialect string) error {
	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(dialect); err != nil {
		return err
	}
	if err := goose.Up(db, "migrations/"+dialect); err != nil {
		return fmt.Errorf("failed to run cache migrations: %w", err)
	}

	version, err := goose.GetDBVersion(db)
	if err != nil {
		return fmt.Errorf("failed to get cache schema version: %w", err)
	}
	log.Printf("Cache: schema version %d (%s)", version, dialect)
	return nil
}

// rebind turns ? placeholders into $n for Postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != "postgres" {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Save replaces the stored snapshot with the first limit posts in one transaction.
func (s *SQLStore) Save(ctx context.Context, posts []*models.Post) error {
	kept := bounded(posts, s.limit)
	savedAt := s.now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM cached_posts"); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, s.rebind(insertPostSQL))
	if err != nil {
		return fmt.Errorf("prepare snapshot insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, p := range kept {
		payload, sum, err := encodePayload(p)
		if err != nil {
			return err
		}

		args := []any{i}
		args = append(args, flatten(p)...)
		args = append(args, savedAt, payload, sum)

		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("store post %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// Load reads the snapshot back in saved order.
func (s *SQLStore) Load(ctx context.Context) ([]*models.Post, error) {
	rows, err := s.db.QueryContext(ctx, selectPostsSQL)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var posts []*models.Post
	for rows.Next() {
		var (
			reduced  models.Post
			platform string
			payload  []byte
			sum      sql.NullString
		)

		if err := rows.Scan(
			&reduced.ID,
			&reduced.StableID,
			&platform,
			&reduced.AccountID,
			&reduced.Author.Name,
			&reduced.Author.Username,
			&reduced.Author.AvatarURL,
			&reduced.Content,
			&reduced.URL,
			&reduced.InReplyToID,
			&reduced.CreatedAt,
			&payload,
			&sum,
		); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		reduced.Platform = models.Platform(platform)
		reduced.PlatformSpecificID = reduced.ID

		full, err := decodePayload(payload, sum.String)
		if err != nil {
			if payload != nil {
				log.Printf("Cache: post %s falls back to reduced form: %v", reduced.ID, err)
			}
			posts = append(posts, &reduced)
			continue
		}
		posts = append(posts, full)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	if len(posts) == 0 {
		return nil, ErrNoSnapshot
	}
	return posts, nil
}

func (s *SQLStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
