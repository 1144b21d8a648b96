package backup

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSnapshotCreatesBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bank.json")
	if err := os.WriteFile(path, []byte(`{"version": 1}`), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	backupPath, err := Snapshot(path)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if got, want := backupPath, filepath.Join(dir, "bank_backup.json"); got != want {
		t.Errorf("backup path = %q, want %q", got, want)
	}
	data, err := os.ReadFile(backupPath)
	if err != nil {
		t.Fatalf("reading backup: %v", err)
	}
	if got, want := string(data), `{"version": 1}`; got != want {
		t.Errorf("backup content = %q, want %q", got, want)
	}
}

func TestSnapshotMissingOriginal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.json")
	backupPath, err := Snapshot(path)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if backupPath != "" {
		t.Errorf("backup path = %q, want empty for missing original", backupPath)
	}
}

func TestSnapshotOverwritesPreviousBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bank.json")
	stale := filepath.Join(dir, "bank_backup.json")
	if err := os.WriteFile(path, []byte("current"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	if err := os.WriteFile(stale, []byte("stale"), 0o644); err != nil {
		t.Fatalf("writing stale backup: %v", err)
	}

	if _, err := Snapshot(path); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	data, err := os.ReadFile(stale)
	if err != nil {
		t.Fatalf("reading backup: %v", err)
	}
	if got, want := string(data), "current"; got != want {
		t.Errorf("backup content = %q, want %q", got, want)
	}
}

func TestArchiveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bank.json")
	content := strings.Repeat(`{"objects": []}`, 64)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	historyDir := filepath.Join(dir, "history")
	archivePath, err := Archive(path, historyDir)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(archivePath), "bank_") {
		t.Errorf("archive name = %q, want bank_ prefix", filepath.Base(archivePath))
	}
	if !strings.HasSuffix(archivePath, ".json.xz") {
		t.Errorf("archive name = %q, want .json.xz suffix", archivePath)
	}

	data, err := ReadArchive(archivePath)
	if err != nil {
		t.Fatalf("ReadArchive: %v", err)
	}
	if got, want := string(data), content; got != want {
		t.Errorf("round-tripped content does not match original")
	}
}

func TestArchiveMissingSource(t *testing.T) {
	dir := t.TempDir()
	if _, err := Archive(filepath.Join(dir, "absent.json"), dir); err == nil {
		t.Fatal("Archive succeeded on a missing source, want error")
	}
}
