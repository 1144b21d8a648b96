// Package mediastore copies the wem payloads a merge collected from the
// source bank directory into the destination bank directory.
//
// Files already present at the destination are never overwritten. When a
// file exists on both sides their BLAKE3 digests are compared so silently
// diverged payloads show up as warnings instead of going unnoticed.
package mediastore

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"

	"github.com/caldw/bankforge/internal/fileutil"
	"github.com/caldw/bankforge/internal/logging"
)

// Result summarizes one copy pass.
type Result struct {
	Copied   []uint32
	Skipped  []uint32
	Warnings []string
}

// WemName returns the file name for a media id.
func WemName(id uint32) string {
	return fmt.Sprintf("%d.wem", id)
}

// CopyAll copies each listed wem from srcDir to dstDir, skipping ids whose
// file already exists at the destination.
func CopyAll(srcDir, dstDir string, ids []uint32) (*Result, error) {
	res := &Result{}
	for _, id := range ids {
		name := WemName(id)
		srcPath := filepath.Join(srcDir, name)
		dstPath := filepath.Join(dstDir, name)

		if fileutil.FileExists(dstPath) {
			res.Skipped = append(res.Skipped, id)
			same, err := sameDigest(srcPath, dstPath)
			if err != nil {
				res.Warnings = append(res.Warnings, fmt.Sprintf("%s: could not compare digests: %v", name, err))
				continue
			}
			if !same {
				msg := fmt.Sprintf("%s exists at the destination with different content; left untouched", name)
				logging.Warn(msg)
				res.Warnings = append(res.Warnings, msg)
			} else {
				logging.Info("wem already present, skipping", "file", name)
			}
			continue
		}

		if err := fileutil.CopyFile(srcPath, dstPath); err != nil {
			return res, fmt.Errorf("copying %s: %w", name, err)
		}
		res.Copied = append(res.Copied, id)
		logging.Info("copied wem", "file", name)
	}
	return res, nil
}

func sameDigest(a, b string) (bool, error) {
	da, err := digest(a)
	if err != nil {
		return false, err
	}
	db, err := digest(b)
	if err != nil {
		return false, err
	}
	return da == db, nil
}

func digest(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
