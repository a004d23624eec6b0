package fileops

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestReplaceFileSafelyReplacesExistingTarget(t *testing.T) {
	tmp := t.TempDir()
	target := filepath.Join(tmp, "release.json")
	replacement := filepath.Join(tmp, ".tmp-release.json")

	if err := os.WriteFile(target, []byte("old"), 0o644); err != nil {
		t.Fatalf("write target: %v", err)
	}
	if err := os.WriteFile(replacement, []byte("new"), 0o644); err != nil {
		t.Fatalf("write replacement: %v", err)
	}

	if err := ReplaceFileSafely(replacement, target); err != nil {
		t.Fatalf("replace file safely: %v", err)
	}

	payload, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read target: %v", err)
	}
	if string(payload) != "new" {
		t.Fatalf("expected replaced payload, got %q", string(payload))
	}
	if _, err := os.Stat(replacement); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected replacement file to be moved, stat err: %v", err)
	}
	if _, err := os.Stat(target + BackupSuffix); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected backup cleanup, stat err: %v", err)
	}
}

func TestReplaceFileSafelyRollbackRestoresOriginalTarget(t *testing.T) {
	tmp := t.TempDir()
	target := filepath.Join(tmp, "release.json")
	replacement := filepath.Join(tmp, ".tmp-release.json")

	if err := os.WriteFile(target, []byte("old"), 0o644); err != nil {
		t.Fatalf("write target: %v", err)
	}
	if err := os.WriteFile(replacement, []byte("new"), 0o644); err != nil {
		t.Fatalf("write replacement: %v", err)
	}

	origRename := renameFile
	renameFile = func(oldpath string, newpath string) error {
		if oldpath == replacement && newpath == target {
			return errors.New("injected rename failure")
		}
		return os.Rename(oldpath, newpath)
	}
	t.Cleanup(func() {
		renameFile = origRename
	})

	if err := ReplaceFileSafely(replacement, target); err == nil {
		t.Fatalf("expected replacement failure")
	}

	payload, readErr := os.ReadFile(target)
	if readErr != nil {
		t.Fatalf("read restored target: %v", readErr)
	}
	if string(payload) != "old" {
		t.Fatalf("expected rollback to restore original payload, got %q", string(payload))
	}
	if _, statErr := os.Stat(target + BackupSuffix); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("expected backup to be restored, stat err: %v", statErr)
	}
}

func TestReplaceFileSafelyRejectsBadPaths(t *testing.T) {
	tmp := t.TempDir()
	cases := []struct {
		name   string
		temp   string
		target string
	}{
		{name: "empty temp", temp: " ", target: filepath.Join(tmp, "a")},
		{name: "empty target", temp: filepath.Join(tmp, "a"), target: ""},
		{name: "same path", temp: filepath.Join(tmp, "a"), target: filepath.Join(tmp, "a")},
		{name: "temp is dir", temp: tmp, target: filepath.Join(tmp, "a")},
		{name: "temp missing", temp: filepath.Join(tmp, "missing"), target: filepath.Join(tmp, "a")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := ReplaceFileSafely(tc.temp, tc.target); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestWriteFileAtomicCreatesAndOverwrites(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "preset.json")

	if err := WriteFileAtomic(target, []byte("first"), 0o600); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := WriteFileAtomic(target, []byte("second"), 0o644); err != nil {
		t.Fatalf("second write: %v", err)
	}

	payload, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read target: %v", err)
	}
	if string(payload) != "second" {
		t.Fatalf("expected overwritten payload, got %q", payload)
	}

	entries, err := os.ReadDir(filepath.Dir(target))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		names := []string{}
		for _, entry := range entries {
			names = append(names, entry.Name())
		}
		t.Fatalf("expected only the target to remain, got %v", names)
	}
}
