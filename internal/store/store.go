// Package store keeps the mapping from indexed video IDs to their original
// files in a local sqlite database.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/promptcut/promptcut/internal/ports"
	"github.com/promptcut/promptcut/internal/types"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Store struct {
	conn *sql.DB
	log  zerolog.Logger
}

func Open(path string, log zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	s := &Store{conn: conn, log: log}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) migrate() error {
	migrations, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}

	for _, m := range migrations {
		if m.IsDir() {
			continue
		}
		name := m.Name()
		if s.isMigrationApplied(name) {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.conn.Exec(string(content)); err != nil {
			return fmt.Errorf("execute migration %s: %w", name, err)
		}
		if _, err := s.conn.Exec("INSERT OR IGNORE INTO _migrations (name) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
		s.log.Debug().Str("name", name).Msg("applied migration")
	}
	return nil
}

func (s *Store) isMigrationApplied(name string) bool {
	var exists int
	err := s.conn.QueryRow("SELECT 1 FROM sqlite_master WHERE type='table' AND name='_migrations'").Scan(&exists)
	if err != nil {
		return false
	}

	var applied int
	err = s.conn.QueryRow("SELECT 1 FROM _migrations WHERE name = ?", name).Scan(&applied)
	return err == nil && applied == 1
}

// Save records a video's original path, overwriting any previous record for
// the same ID.
func (s *Store) Save(ctx context.Context, videoID, originalPath string) error {
	abs, err := filepath.Abs(originalPath)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO videos (video_id, original_path, uploaded_at) VALUES (?, ?, ?)
		 ON CONFLICT(video_id) DO UPDATE SET original_path = excluded.original_path, uploaded_at = excluded.uploaded_at`,
		videoID, abs, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("save video %s: %w", videoID, err)
	}
	return nil
}

// ResolvePath returns the original file path for a video ID.
func (s *Store) ResolvePath(ctx context.Context, videoID string) (string, error) {
	var path string
	err := s.conn.QueryRowContext(ctx, "SELECT original_path FROM videos WHERE video_id = ?", videoID).Scan(&path)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("video %s: %w", videoID, ports.ErrVideoNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("resolve video %s: %w", videoID, err)
	}
	return path, nil
}

// List returns all recorded videos, newest first.
func (s *Store) List(ctx context.Context) ([]types.VideoRecord, error) {
	rows, err := s.conn.QueryContext(ctx, "SELECT video_id, original_path, uploaded_at FROM videos ORDER BY uploaded_at DESC, video_id")
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer rows.Close()

	var out []types.VideoRecord
	for rows.Next() {
		var rec types.VideoRecord
		var uploaded string
		if err := rows.Scan(&rec.VideoID, &rec.OriginalPath, &uploaded); err != nil {
			return nil, fmt.Errorf("scan video row: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, uploaded); err == nil {
			rec.UploadedAt = t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
