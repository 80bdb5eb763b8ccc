package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modbot/internal/storage"
)

func TestNewApp(t *testing.T) {
	app := NewApp()
	assert.Equal(t, "modbot", app.Name)

	var names []string
	for _, cmd := range app.Commands {
		names = append(names, cmd.Name)
	}
	assert.Equal(t, []string{"run", "register", "migrate", "logs"}, names)
}

func TestHelpOutput(t *testing.T) {
	require.NoError(t, NewApp().Run([]string{"modbot", "--help"}))
}

func TestMigrate(t *testing.T) {
	url := "file:" + filepath.Join(t.TempDir(), "bot.db")
	t.Setenv("DATABASE_URL", url)

	require.NoError(t, NewApp().Run([]string{"modbot", "--env-file", filepath.Join(t.TempDir(), "none.env"), "migrate"}))

	s, err := storage.Open(t.Context(), url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	_, err = s.Users.ByDiscordID(t.Context(), "nobody")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestMigrate_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	err := NewApp().Run([]string{"modbot", "--env-file", filepath.Join(t.TempDir(), "none.env"), "migrate"})
	require.Error(t, err)
}

func TestLogsArchive(t *testing.T) {
	dir := t.TempDir()
	for _, run := range []string{"2024-01-01T00-00-00-000Z", "2024-01-02T00-00-00-000Z"} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, run), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, run, "app.log"), []byte("x\n"), 0o644))
	}

	err := NewApp().Run([]string{"modbot", "--env-file", filepath.Join(t.TempDir(), "none.env"), "logs", "archive", "--dir", dir, "--keep", "1"})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "2024-01-01T00-00-00-000Z.tar.zst"))
	assert.NoDirExists(t, filepath.Join(dir, "2024-01-01T00-00-00-000Z"))
	assert.DirExists(t, filepath.Join(dir, "2024-01-02T00-00-00-000Z"))
}
