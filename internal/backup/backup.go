// Package backup preserves the previous destination soundbank before a
// merge result is written over it.
package backup

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ulikunitz/xz"

	"github.com/caldw/bankforge/internal/logging"
)

// Snapshot copies path to "<name>_backup<ext>" next to the original and
// returns the backup path. An existing backup is overwritten; the prior
// merge result is the only state worth keeping. A missing original is not
// an error, there is simply nothing to preserve.
func Snapshot(path string) (string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}

	backupPath := backupName(path)
	if err := os.WriteFile(backupPath, data, 0o644); err != nil {
		return "", fmt.Errorf("writing backup: %w", err)
	}
	logging.Info("backed up previous bank", "path", backupPath)
	return backupPath, nil
}

// Archive writes an xz-compressed, timestamped copy of path into historyDir
// and returns the archive path. Unlike Snapshot the copies accumulate, one
// per run.
func Archive(path, historyDir string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer src.Close()

	if err := os.MkdirAll(historyDir, 0o755); err != nil {
		return "", fmt.Errorf("creating history dir: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	stamp := time.Now().UTC().Format("20060102T150405Z")
	outPath := filepath.Join(historyDir, fmt.Sprintf("%s_%s.json.xz", base, stamp))

	out, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("creating archive: %w", err)
	}
	defer out.Close()

	w, err := xz.NewWriter(out)
	if err != nil {
		return "", fmt.Errorf("initializing compressor: %w", err)
	}
	if _, err := io.Copy(w, src); err != nil {
		w.Close()
		return "", fmt.Errorf("compressing %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalizing archive: %w", err)
	}

	logging.Info("archived bank", "path", outPath)
	return outPath, nil
}

// ReadArchive decompresses an archive produced by Archive.
func ReadArchive(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	r, err := xz.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("initializing decompressor: %w", err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decompressing %s: %w", path, err)
	}
	return data, nil
}

func backupName(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_backup" + ext
}
