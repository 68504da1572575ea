package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEnvFile_missing(t *testing.T) {
	err := LoadEnvFile(filepath.Join(t.TempDir(), "nonexistent"))
	if err != nil {
		t.Fatalf("missing file should return nil: %v", err)
	}
}

func TestLoadEnvFile_setsEnv(t *testing.T) {
	t.Setenv("M3UGEN_TEST_FOO", "")
	os.Unsetenv("M3UGEN_TEST_FOO")
	t.Setenv("M3UGEN_TEST_BAZ", "")
	os.Unsetenv("M3UGEN_TEST_BAZ")
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("M3UGEN_TEST_FOO=bar\n# comment\nM3UGEN_TEST_BAZ=quux\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := LoadEnvFile(path); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("M3UGEN_TEST_FOO"); got != "bar" {
		t.Errorf("FOO = %q", got)
	}
	if got := os.Getenv("M3UGEN_TEST_BAZ"); got != "quux" {
		t.Errorf("BAZ = %q", got)
	}
}

func TestLoadEnvFile_unquote(t *testing.T) {
	t.Setenv("M3UGEN_TEST_X", "")
	os.Unsetenv("M3UGEN_TEST_X")
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(`M3UGEN_TEST_X="hello world"`), 0644); err != nil {
		t.Fatal(err)
	}
	if err := LoadEnvFile(path); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("M3UGEN_TEST_X"); got != "hello world" {
		t.Errorf("X = %q", got)
	}
}

func TestLoadEnvFile_realEnvWins(t *testing.T) {
	t.Setenv("M3UGEN_TEST_KEEP", "from-env")
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("M3UGEN_TEST_KEEP=from-file\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := LoadEnvFile(path); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("M3UGEN_TEST_KEEP"); got != "from-env" {
		t.Errorf("KEEP = %q, want real env to win", got)
	}
}
