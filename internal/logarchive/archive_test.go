package logarchive

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modbot/pkg/logx"
)

func makeRuns(t *testing.T, base string, n int) []string {
	t.Helper()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var dirs []string
	for i := range n {
		dir := filepath.Join(base, logx.RunDirName(start.Add(time.Duration(i)*time.Hour)))
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, logx.AppLogName), []byte(`{"message":"hi"}`+"\n"), 0o644))
		dirs = append(dirs, dir)
	}
	return dirs
}

func readArchive(t *testing.T, path string) map[string]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	dec, err := zstd.NewReader(f)
	require.NoError(t, err)
	defer dec.Close()

	out := map[string]string{}
	tr := tar.NewReader(dec)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		b, err := io.ReadAll(tr)
		require.NoError(t, err)
		out[hdr.Name] = string(b)
	}
	return out
}

func TestArchive_KeepsNewest(t *testing.T) {
	base := t.TempDir()
	dirs := makeRuns(t, base, 4)
	// unrelated entries are left alone
	require.NoError(t, os.MkdirAll(filepath.Join(base, "other"), 0o755))

	out, err := Archive(base, 2)
	require.NoError(t, err)
	require.Equal(t, []string{dirs[0] + Ext, dirs[1] + Ext}, out)

	assert.NoDirExists(t, dirs[0])
	assert.NoDirExists(t, dirs[1])
	assert.DirExists(t, dirs[2])
	assert.DirExists(t, dirs[3])
	assert.DirExists(t, filepath.Join(base, "other"))

	files := readArchive(t, out[0])
	name := filepath.Base(dirs[0])
	assert.Equal(t, `{"message":"hi"}`+"\n", files[name+"/"+logx.AppLogName])

	// idempotent
	out, err = Archive(base, 2)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestArchive_NeverTouchesCurrent(t *testing.T) {
	base := t.TempDir()
	dirs := makeRuns(t, base, 3)

	out, err := Archive(base, 0, WithCurrent(dirs[1]))
	require.NoError(t, err)
	assert.Equal(t, []string{dirs[0] + Ext}, out)
	assert.DirExists(t, dirs[1])
	assert.DirExists(t, dirs[2])
}

func TestArchive_MissingBase(t *testing.T) {
	out, err := Archive(filepath.Join(t.TempDir(), "nope"), 1)
	require.NoError(t, err)
	assert.Empty(t, out)
}
