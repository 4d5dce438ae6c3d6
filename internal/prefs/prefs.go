// Package prefs persists per-operator preferences in a local SQLite
// database. Today that is a single value: the dashboard theme, read at
// startup and written on every toggle.
package prefs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Theme is the dashboard color scheme.
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// ValidTheme reports whether t is a known theme.
func ValidTheme(t Theme) bool {
	return t == ThemeDark || t == ThemeLight
}

const themeKey = "theme"

// Store reads and writes preferences. Safe for concurrent use; database/sql
// serializes access to the underlying connection pool.
type Store struct {
	db           *sql.DB
	defaultTheme Theme
	logger       *slog.Logger
}

// Open creates the database file (and parent directory) if needed and
// ensures the schema exists. defaultTheme is returned when no stored choice
// exists yet.
func Open(path string, defaultTheme Theme, logger *slog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create prefs directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open prefs database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS user_prefs (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create user_prefs table: %w", err)
	}

	return &Store{db: db, defaultTheme: defaultTheme, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Theme returns the stored theme, or the configured default when none has
// been saved. A corrupt stored value also falls back to the default.
func (s *Store) Theme(ctx context.Context) (Theme, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM user_prefs WHERE key = ?`, themeKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return s.defaultTheme, nil
	}
	if err != nil {
		return "", fmt.Errorf("read theme: %w", err)
	}

	theme := Theme(value)
	if !ValidTheme(theme) {
		s.logger.Warn("stored theme is invalid, using default", "value", value)
		return s.defaultTheme, nil
	}
	return theme, nil
}

// SetTheme persists the theme choice.
func (s *Store) SetTheme(ctx context.Context, theme Theme) error {
	if !ValidTheme(theme) {
		return fmt.Errorf("invalid theme %q", theme)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_prefs (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, themeKey, string(theme))
	if err != nil {
		return fmt.Errorf("write theme: %w", err)
	}
	return nil
}

// ToggleTheme flips between dark and light and returns the new value.
func (s *Store) ToggleTheme(ctx context.Context) (Theme, error) {
	current, err := s.Theme(ctx)
	if err != nil {
		return "", err
	}
	next := ThemeDark
	if current == ThemeDark {
		next = ThemeLight
	}
	if err := s.SetTheme(ctx, next); err != nil {
		return "", err
	}
	return next, nil
}
