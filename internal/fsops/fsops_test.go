package fsops

import (
	"testing"

	"github.com/spf13/afero"
)

func TestCreateTempDir(t *testing.T) {
	fs := afero.NewMemMapFs()

	dir, err := CreateTempDir(fs, "/tmp/gman", "appx-")
	if err != nil {
		t.Fatalf("CreateTempDir() error = %v", err)
	}

	if dir == "" {
		t.Error("expected non-empty directory path")
	}

	if !IsDir(fs, dir) {
		t.Error("expected directory to exist")
	}
}

func TestEnsureDir(t *testing.T) {
	fs := afero.NewMemMapFs()

	path := "/test/nested/dir"
	if err := EnsureDir(fs, path, 0755); err != nil {
		t.Fatalf("EnsureDir() error = %v", err)
	}

	if !IsDir(fs, path) {
		t.Error("expected directory to exist and be a directory")
	}
}

func TestExists(t *testing.T) {
	fs := afero.NewMemMapFs()

	if Exists(fs, "/missing") {
		t.Error("expected missing path to not exist")
	}

	if err := afero.WriteFile(fs, "/file", []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if !Exists(fs, "/file") {
		t.Error("expected file to exist")
	}
	if IsDir(fs, "/file") {
		t.Error("expected file not to be a directory")
	}
}

func TestCheckWritable(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := fs.MkdirAll("/cache", 0755); err != nil {
		t.Fatal(err)
	}

	if err := CheckWritable(fs, "/cache"); err != nil {
		t.Errorf("CheckWritable() error = %v", err)
	}
	if Exists(fs, "/cache/.write_test") {
		t.Error("expected probe file to be removed")
	}

	if err := CheckWritable(afero.NewReadOnlyFs(fs), "/cache"); err == nil {
		t.Error("expected read-only fs to be reported")
	}
}

func TestCopyFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/src", []byte("artifact"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fs, "/dst", []byte("previous longer content"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := CopyFile(fs, "/src", "/dst"); err != nil {
		t.Fatalf("CopyFile() error = %v", err)
	}

	got, _ := afero.ReadFile(fs, "/dst")
	if string(got) != "artifact" {
		t.Errorf("CopyFile() content = %q, want %q", got, "artifact")
	}
}

func TestMoveFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/tmp/a.msi", []byte("msi"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := MoveFile(fs, "/tmp/a.msi", "/cache/a.msi"); err != nil {
		t.Fatalf("MoveFile() error = %v", err)
	}

	if Exists(fs, "/tmp/a.msi") {
		t.Error("expected source to be gone")
	}
	got, _ := afero.ReadFile(fs, "/cache/a.msi")
	if string(got) != "msi" {
		t.Errorf("moved content = %q", got)
	}

	if err := MoveFile(fs, "/tmp/missing", "/cache/missing"); err == nil {
		t.Error("expected error for missing source")
	}
}

func TestRemoveContents(t *testing.T) {
	fs := afero.NewMemMapFs()
	for _, p := range []string{"/cache/a", "/cache/b", "/cache/sub/c"} {
		if err := afero.WriteFile(fs, p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	n, err := RemoveContents(fs, "/cache")
	if err != nil {
		t.Fatalf("RemoveContents() error = %v", err)
	}
	if n != 3 {
		t.Errorf("RemoveContents() removed %d, want 3", n)
	}
	if !IsDir(fs, "/cache") {
		t.Error("expected directory itself to remain")
	}

	n, err = RemoveContents(fs, "/nowhere")
	if err != nil || n != 0 {
		t.Errorf("RemoveContents() on missing dir = %d, %v", n, err)
	}
}
