package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetupLogFileCreatesPrefixedFile(t *testing.T) {
	dir := t.TempDir()

	f, err := SetupLogFile(dir, 10)
	if err != nil {
		t.Fatalf("SetupLogFile: %v", err)
	}
	defer f.Close()

	base := filepath.Base(f.Name())
	if !strings.HasPrefix(base, logFilePrefix) || !strings.HasSuffix(base, ".log") {
		t.Errorf("log file name = %q, want %s*.log", base, logFilePrefix)
	}
}

func TestPruneLogFilesKeepsNewest(t *testing.T) {
	dir := t.TempDir()
	names := []string{
		logFilePrefix + "2024-01-01T00-00-00.log",
		logFilePrefix + "2024-01-02T00-00-00.log",
		logFilePrefix + "2024-01-03T00-00-00.log",
	}
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}

	if err := pruneLogFiles(dir, 2); err != nil {
		t.Fatalf("pruneLogFiles: %v", err)
	}

	left, err := filepath.Glob(filepath.Join(dir, logFilePrefix+"*.log"))
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 2 {
		t.Fatalf("kept %d files, want 2: %v", len(left), left)
	}
	for _, f := range left {
		if strings.Contains(f, "2024-01-01") {
			t.Errorf("oldest file survived pruning: %s", f)
		}
	}
}
