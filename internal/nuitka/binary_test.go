package nuitka

import (
	"errors"
	"os/exec"
	"path/filepath"
	"testing"
)

func fakeResolver(goos string, onPath map[string]string, files map[string]bool, env map[string]string) *Resolver {
	return &Resolver{
		GOOS: goos,
		LookPath: func(name string) (string, error) {
			if path, ok := onPath[name]; ok {
				return path, nil
			}
			return "", exec.ErrNotFound
		},
		Exists: func(path string) bool { return files[path] },
		Getenv: func(key string) string { return env[key] },
	}
}

func TestResolverPrefersConfiguredBinary(t *testing.T) {
	r := fakeResolver("linux", map[string]string{"nuitka": "/usr/bin/nuitka", "nuitka-custom": "/opt/bin/nuitka-custom"}, map[string]bool{"/opt/nuitka": true}, nil)

	got, err := r.Resolve("/opt/nuitka")
	if err != nil || got != "/opt/nuitka" {
		t.Fatalf("expected configured path, got %q (%v)", got, err)
	}

	got, err = r.Resolve("nuitka-custom")
	if err != nil || got != "/opt/bin/nuitka-custom" {
		t.Fatalf("expected configured name to be looked up, got %q (%v)", got, err)
	}

	if _, err := r.Resolve("/missing/nuitka"); !errors.Is(err, ErrBinaryNotFound) {
		t.Fatalf("expected not found for missing configured path, got %v", err)
	}
}

func TestResolverSearchesPathThenWellKnownLocations(t *testing.T) {
	r := fakeResolver("linux", map[string]string{"nuitka3": "/usr/bin/nuitka3"}, nil, nil)
	got, err := r.Resolve("")
	if err != nil || got != "/usr/bin/nuitka3" {
		t.Fatalf("expected PATH hit, got %q (%v)", got, err)
	}

	venv := filepath.Join("/home/dev", ".venvs", "build")
	venvBin := filepath.Join(venv, "bin", "nuitka")
	r = fakeResolver("linux", nil, map[string]bool{venvBin: true, "/usr/bin/nuitka": true}, map[string]string{"VIRTUAL_ENV": venv})
	got, err = r.Resolve("")
	if err != nil || got != venvBin {
		t.Fatalf("expected virtualenv location first, got %q (%v)", got, err)
	}

	r = fakeResolver("linux", nil, nil, nil)
	if _, err := r.Resolve(""); !errors.Is(err, ErrBinaryNotFound) {
		t.Fatalf("expected ErrBinaryNotFound, got %v", err)
	}
}

func TestResolverWindowsLocations(t *testing.T) {
	r := fakeResolver("windows", nil, nil, map[string]string{"CONDA_PREFIX": "C:/conda", "APPDATA": "C:/Users/dev/AppData/Roaming"})
	got := r.WellKnownLocations()
	want := []string{
		filepath.Join("C:/conda", "Scripts", "nuitka.exe"),
		filepath.Join("C:/conda", "Scripts", "nuitka.cmd"),
		filepath.Join("C:/Users/dev/AppData/Roaming", "Python", "Scripts", "nuitka.cmd"),
	}
	if len(got) != len(want) {
		t.Fatalf("unexpected locations %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("location %d = %q, want %q", i, got[i], want[i])
		}
	}
}
