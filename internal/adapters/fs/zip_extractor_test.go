package fs

import (
	"archive/zip"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type zipEntry struct {
	name string
	body string
	mode os.FileMode
}

func writeZip(t *testing.T, path string, entries []zipEntry) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, e := range entries {
		h := &zip.FileHeader{Name: e.name, Method: zip.Deflate}
		if e.mode != 0 {
			h.SetMode(e.mode)
		}
		w, err := zw.CreateHeader(h)
		require.NoError(t, err)
		_, err = w.Write([]byte(e.body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func TestZipExtractor_Extract(t *testing.T) {
	tmp := t.TempDir()
	archive := filepath.Join(tmp, "haystack-linux-amd64-v1.0.0.zip")
	dest := filepath.Join(tmp, "install")

	writeZip(t, archive, []zipEntry{
		{name: "haystack", body: "#!/bin/sh\n", mode: 0o755},
		{name: "lib/", mode: os.ModeDir | 0o755},
		{name: "lib/plugin.so", body: "plugin"},
	})

	require.NoError(t, os.MkdirAll(dest, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dest, "haystack"), []byte("old"), 0o755))

	require.NoError(t, NewZipExtractor().Extract(archive, dest))

	got, err := os.ReadFile(filepath.Join(dest, "haystack"))
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\n", string(got), "existing file should be overwritten")

	got, err = os.ReadFile(filepath.Join(dest, "lib", "plugin.so"))
	require.NoError(t, err)
	assert.Equal(t, "plugin", string(got))

	if runtime.GOOS != "windows" {
		info, err := os.Stat(filepath.Join(dest, "haystack"))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
	}
}

func TestZipExtractor_RejectsTraversal(t *testing.T) {
	tmp := t.TempDir()
	archive := filepath.Join(tmp, "evil.zip")
	writeZip(t, archive, []zipEntry{{name: "../escaped", body: "x"}})

	err := NewZipExtractor().Extract(archive, filepath.Join(tmp, "install"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes destination")

	_, statErr := os.Stat(filepath.Join(tmp, "escaped"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestZipExtractor_CorruptArchive(t *testing.T) {
	tmp := t.TempDir()
	archive := filepath.Join(tmp, "broken.zip")
	require.NoError(t, os.WriteFile(archive, make([]byte, 2<<20), 0o644))

	err := NewZipExtractor().Extract(archive, filepath.Join(tmp, "install"))
	assert.Error(t, err)
}
