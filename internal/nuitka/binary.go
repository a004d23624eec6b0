package nuitka

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

var ErrBinaryNotFound = errors.New("nuitka executable not found")

// Resolver locates the nuitka executable. The function fields exist so
// tests can fake the filesystem and PATH.
type Resolver struct {
	GOOS     string
	LookPath func(string) (string, error)
	Exists   func(string) bool
	Getenv   func(string) string
}

func NewResolver() *Resolver {
	return &Resolver{
		GOOS:     runtime.GOOS,
		LookPath: exec.LookPath,
		Exists:   isFile,
		Getenv:   os.Getenv,
	}
}

// ResolveBinary returns the configured binary if set, else the first match
// on PATH, else the first well-known install location that exists.
func ResolveBinary(configured string) (string, error) {
	return NewResolver().Resolve(configured)
}

func (r *Resolver) Resolve(configured string) (string, error) {
	if configured = strings.TrimSpace(configured); configured != "" {
		if strings.ContainsAny(configured, `/\`) {
			if r.Exists(configured) {
				return configured, nil
			}
			return "", fmt.Errorf("%w: %s does not exist", ErrBinaryNotFound, configured)
		}
		path, err := r.LookPath(configured)
		if err != nil {
			return "", fmt.Errorf("%w: %s is not on PATH", ErrBinaryNotFound, configured)
		}
		return path, nil
	}

	for _, name := range r.pathNames() {
		if path, err := r.LookPath(name); err == nil {
			return path, nil
		}
	}
	for _, candidate := range r.WellKnownLocations() {
		if r.Exists(candidate) {
			return candidate, nil
		}
	}
	return "", ErrBinaryNotFound
}

func (r *Resolver) pathNames() []string {
	if r.GOOS == "windows" {
		return []string{"nuitka", "nuitka.cmd", "nuitka3"}
	}
	return []string{"nuitka", "nuitka3"}
}

// WellKnownLocations lists where pip puts the nuitka launcher: the active
// virtualenv or conda env first, then user and system locations.
func (r *Resolver) WellKnownLocations() []string {
	prefixes := []string{}
	for _, key := range []string{"VIRTUAL_ENV", "CONDA_PREFIX"} {
		if value := strings.TrimSpace(r.Getenv(key)); value != "" {
			prefixes = append(prefixes, value)
		}
	}

	locations := []string{}
	if r.GOOS == "windows" {
		for _, prefix := range prefixes {
			locations = append(locations,
				filepath.Join(prefix, "Scripts", "nuitka.exe"),
				filepath.Join(prefix, "Scripts", "nuitka.cmd"),
			)
		}
		if appData := strings.TrimSpace(r.Getenv("APPDATA")); appData != "" {
			locations = append(locations, filepath.Join(appData, "Python", "Scripts", "nuitka.cmd"))
		}
		return locations
	}

	for _, prefix := range prefixes {
		locations = append(locations, filepath.Join(prefix, "bin", "nuitka"))
	}
	if home := strings.TrimSpace(r.Getenv("HOME")); home != "" {
		locations = append(locations, filepath.Join(home, ".local", "bin", "nuitka"))
	}
	return append(locations, "/usr/local/bin/nuitka", "/usr/bin/nuitka")
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
