package fileops

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// BackupSuffix marks the copy of a target kept while it is being replaced.
const BackupSuffix = ".npk.bak"

var (
	statFile   = os.Stat
	renameFile = os.Rename
	removeFile = os.Remove
)

// WriteFileAtomic writes data next to path and moves it into place, so
// readers see either the old content or the new one, never a partial file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file for %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file for %s: %w", path, err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		cleanup()
		return fmt.Errorf("chmod temp file for %s: %w", path, err)
	}

	if err := ReplaceFileSafely(tmpPath, path); err != nil {
		cleanup()
		return err
	}
	return nil
}

// ReplaceFileSafely moves tempPath over targetPath. The previous target is
// kept as a backup until the move succeeds and restored if it fails.
func ReplaceFileSafely(tempPath string, targetPath string) error {
	temp := strings.TrimSpace(tempPath)
	target := strings.TrimSpace(targetPath)
	switch {
	case temp == "":
		return fmt.Errorf("replacement temp path is empty")
	case target == "":
		return fmt.Errorf("replacement target path is empty")
	case temp == target:
		return fmt.Errorf("replacement temp and target paths must differ")
	}

	tempInfo, err := statFile(temp)
	if err != nil {
		return fmt.Errorf("stat replacement temp %q: %w", temp, err)
	}
	if tempInfo.IsDir() {
		return fmt.Errorf("replacement temp path is a directory: %s", temp)
	}

	backup := target + BackupSuffix
	if err := removeStale(backup); err != nil {
		return err
	}

	hadTarget, err := exists(target)
	if err != nil {
		return fmt.Errorf("stat replacement target %q: %w", target, err)
	}
	if hadTarget {
		if err := renameFile(target, backup); err != nil {
			return fmt.Errorf("move existing target to backup: %w", err)
		}
	}

	if err := renameFile(temp, target); err != nil {
		if hadTarget {
			if rollbackErr := renameFile(backup, target); rollbackErr != nil {
				return fmt.Errorf("replace failed (%v) and rollback failed (%w)", err, rollbackErr)
			}
		}
		return fmt.Errorf("replace target with temp: %w", err)
	}

	if hadTarget {
		if err := removeFile(backup); err != nil {
			return fmt.Errorf("cleanup replacement backup %q: %w", backup, err)
		}
	}
	return nil
}

func exists(path string) (bool, error) {
	_, err := statFile(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func removeStale(backup string) error {
	found, err := exists(backup)
	if err != nil {
		return fmt.Errorf("stat replacement backup %q: %w", backup, err)
	}
	if !found {
		return nil
	}
	if err := removeFile(backup); err != nil {
		return fmt.Errorf("remove stale replacement backup %q: %w", backup, err)
	}
	return nil
}
