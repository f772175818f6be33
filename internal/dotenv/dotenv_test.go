package dotenv

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFile_MissingFileIsNoop(t *testing.T) {
	t.Parallel()
	if err := LoadFile(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Fatalf("LoadFile missing file error: %v", err)
	}
}

func TestLoadFile_LoadsValuesAndPreservesExisting(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), ".env")
	content := "" +
		"# comment\n" +
		"FROM_FILE=loaded\n" +
		"QUOTED=\"hello world\"\n" +
		"SINGLE='one two'\n" +
		"export EXPORTED=ok\n" +
		"EXISTING=from_file\n" +
		"not-a-pair\n" +
		"=nokey\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	t.Setenv("EXISTING", "already_set")
	t.Setenv("FROM_FILE", "")
	os.Unsetenv("FROM_FILE")
	t.Setenv("QUOTED", "")
	os.Unsetenv("QUOTED")
	t.Setenv("SINGLE", "")
	os.Unsetenv("SINGLE")
	t.Setenv("EXPORTED", "")
	os.Unsetenv("EXPORTED")

	if err := LoadFile(envPath); err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}

	if got := os.Getenv("FROM_FILE"); got != "loaded" {
		t.Fatalf("FROM_FILE=%q", got)
	}
	if got := os.Getenv("QUOTED"); got != "hello world" {
		t.Fatalf("QUOTED=%q", got)
	}
	if got := os.Getenv("SINGLE"); got != "one two" {
		t.Fatalf("SINGLE=%q", got)
	}
	if got := os.Getenv("EXPORTED"); got != "ok" {
		t.Fatalf("EXPORTED=%q", got)
	}
	if got := os.Getenv("EXISTING"); got != "already_set" {
		t.Fatalf("EXISTING=%q", got)
	}
}
