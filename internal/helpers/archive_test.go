package helpers

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractZip(t *testing.T) {
	tmpDir := t.TempDir()
	archive := filepath.Join(tmpDir, "Gravio_5.2.appx.zip")
	createTestZip(t, archive, map[string]string{
		"Gravio_5.2_Test/Install.ps1":  "Write-Host install",
		"Gravio_5.2_Test/Gravio.appx":  "appx",
		"Gravio_5.2_Test/Dependencies/": "",
	})

	dest := filepath.Join(tmpDir, "out")
	require.NoError(t, ExtractZip(archive, dest))

	content, err := os.ReadFile(filepath.Join(dest, "Gravio_5.2_Test", "Install.ps1"))
	require.NoError(t, err)
	assert.Equal(t, "Write-Host install", string(content))
	assert.DirExists(t, filepath.Join(dest, "Gravio_5.2_Test", "Dependencies"))
}

func TestExtractZip_Traversal(t *testing.T) {
	tmpDir := t.TempDir()
	archive := filepath.Join(tmpDir, "evil.zip")
	createTestZip(t, archive, map[string]string{"../evil.txt": "x"})

	err := ExtractZip(archive, filepath.Join(tmpDir, "out"))
	assert.Error(t, err)
	assert.NoFileExists(t, filepath.Join(tmpDir, "evil.txt"))
}

func TestExtractZip_NotAZip(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "plain.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	assert.Error(t, ExtractZip(path, tmpDir))
}

func createTestZip(t *testing.T, path string, files map[string]string) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	defer zw.Close()

	for name, content := range files {
		fw, err := zw.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
}
