package util

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetConfigDirFromEnv(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "conf")
	t.Setenv(ConfigDirEnv, dir)

	got, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir failed: %v", err)
	}
	if got != dir {
		t.Errorf("Expected %s, got %s", dir, got)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("Expected %s to be created (%v)", dir, err)
	}
}

func TestResolveFilePath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(ConfigDirEnv, dir)

	if got := ResolveFilePath("missing-file.db"); got != filepath.Join(dir, "missing-file.db") {
		t.Errorf("Expected path in config dir, got %s", got)
	}
	abs := filepath.Join(t.TempDir(), "abs.db")
	if got := ResolveFilePath(abs); got != abs {
		t.Errorf("Expected absolute path kept, got %s", got)
	}

	local := "paths_test.go"
	if got := ResolveFilePath(local); got != local {
		t.Errorf("Expected working directory file to win, got %s", got)
	}
}
