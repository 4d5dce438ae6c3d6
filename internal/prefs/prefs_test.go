package prefs

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestStore(t *testing.T, defaultTheme Theme) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prefs.db")
	store, err := Open(path, defaultTheme, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestTheme_DefaultWhenUnset(t *testing.T) {
	store := openTestStore(t, ThemeDark)

	theme, err := store.Theme(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ThemeDark, theme)
}

func TestSetAndGetTheme(t *testing.T) {
	store := openTestStore(t, ThemeDark)
	ctx := context.Background()

	require.NoError(t, store.SetTheme(ctx, ThemeLight))

	theme, err := store.Theme(ctx)
	require.NoError(t, err)
	assert.Equal(t, ThemeLight, theme)

	// Overwrite works via upsert.
	require.NoError(t, store.SetTheme(ctx, ThemeDark))
	theme, err = store.Theme(ctx)
	require.NoError(t, err)
	assert.Equal(t, ThemeDark, theme)
}

func TestSetTheme_RejectsUnknownValue(t *testing.T) {
	store := openTestStore(t, ThemeDark)
	require.Error(t, store.SetTheme(context.Background(), Theme("sepia")))
}

func TestToggleTheme(t *testing.T) {
	store := openTestStore(t, ThemeDark)
	ctx := context.Background()

	theme, err := store.ToggleTheme(ctx)
	require.NoError(t, err)
	assert.Equal(t, ThemeLight, theme)

	theme, err = store.ToggleTheme(ctx)
	require.NoError(t, err)
	assert.Equal(t, ThemeDark, theme)
}

func TestTheme_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.db")

	store, err := Open(path, ThemeDark, discardLogger())
	require.NoError(t, err)
	require.NoError(t, store.SetTheme(context.Background(), ThemeLight))
	require.NoError(t, store.Close())

	reopened, err := Open(path, ThemeDark, discardLogger())
	require.NoError(t, err)
	defer reopened.Close()

	theme, err := reopened.Theme(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ThemeLight, theme)
}

func TestTheme_InvalidStoredValueFallsBack(t *testing.T) {
	store := openTestStore(t, ThemeDark)
	ctx := context.Background()

	_, err := store.db.ExecContext(ctx,
		`INSERT INTO user_prefs (key, value) VALUES ('theme', 'solarized')`)
	require.NoError(t, err)

	theme, err := store.Theme(ctx)
	require.NoError(t, err)
	assert.Equal(t, ThemeDark, theme)
}
