package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFileRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "key.seed")
	if err := WriteFile(path, []byte("abc"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := WriteFile(path, []byte("def"), 0600); err == nil {
		t.Fatal("WriteFile should refuse to overwrite an existing file")
	}
}

func TestWriteFileContents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "key.seed")
	if err := WriteFile(path, []byte("hello"), 0600); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello" {
		t.Fatalf("file contents = %q, want %q", got, "hello")
	}
}

func TestResolvePathRelative(t *testing.T) {
	got := ResolvePath("key.seed", "/etc/tripverifier/config.toml")
	want := "/etc/tripverifier/key.seed"
	if got != want {
		t.Fatalf("ResolvePath = %q, want %q", got, want)
	}
}

func TestResolvePathAbsoluteUnchanged(t *testing.T) {
	got := ResolvePath("/var/keys/key.seed", "/etc/tripverifier/config.toml")
	if got != "/var/keys/key.seed" {
		t.Fatalf("ResolvePath should leave an absolute path unchanged, got %q", got)
	}
}
