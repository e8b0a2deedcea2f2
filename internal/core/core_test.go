package core

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAddress(t *testing.T) {
	if got := Address("127.0.0.1", 8666); got != "127.0.0.1:8666" {
		t.Fatalf("Address = %q", got)
	}
	if got := Address("", 80); got != ":80" {
		t.Fatalf("Address = %q", got)
	}
}

func TestFileExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	ok, err := FileExists(path)
	if err != nil || ok {
		t.Fatalf("missing file: ok=%v err=%v", ok, err)
	}

	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	ok, err = FileExists(path)
	if err != nil || !ok {
		t.Fatalf("existing file: ok=%v err=%v", ok, err)
	}
}
