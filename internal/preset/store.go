package preset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/jaa/npk/internal/fileops"
	"github.com/jaa/npk/internal/nuitka"
)

const fileExt = ".json"

var ErrNotFound = errors.New("preset not found")

// reservedChars cannot appear in a file name on at least one supported OS.
const reservedChars = `/\:*?"<>|`

// Store keeps one JSON file per named preset in a directory.
type Store struct {
	Dir string
	Now func() time.Time
}

func NewStore(dir string) *Store {
	return &Store{Dir: dir, Now: time.Now}
}

// ValidateName accepts any name that maps to a single file in the store
// directory. Unicode and spaces are fine.
func ValidateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("invalid preset name: empty")
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("invalid preset name %q: must not start with '.'", name)
	case strings.Contains(name, ".."):
		return fmt.Errorf("invalid preset name %q: must not contain '..'", name)
	case strings.ContainsAny(name, reservedChars):
		return fmt.Errorf("invalid preset name %q: must not contain any of %s", name, reservedChars)
	case strings.IndexFunc(name, unicode.IsControl) >= 0:
		return fmt.Errorf("invalid preset name %q: must not contain control characters", name)
	}
	return nil
}

// DefaultName is used when a preset is saved without a name.
func (s *Store) DefaultName() string {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return "config_" + now().Format("20060102_150405")
}

func (s *Store) Path(name string) string {
	return filepath.Join(s.Dir, name+fileExt)
}

// Save writes opts under name and returns the name used.
func (s *Store) Save(name string, opts nuitka.Options) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = s.DefaultName()
	}
	if err := ValidateName(name); err != nil {
		return "", err
	}
	payload, err := encode(opts)
	if err != nil {
		return "", err
	}
	if err := fileops.WriteFileAtomic(s.Path(name), payload, 0o644); err != nil {
		return "", fmt.Errorf("save preset %s: %w", name, err)
	}
	return name, nil
}

func (s *Store) Load(name string) (nuitka.Options, error) {
	if err := ValidateName(name); err != nil {
		return nuitka.Options{}, err
	}
	payload, err := os.ReadFile(s.Path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nuitka.Options{}, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nuitka.Options{}, fmt.Errorf("read preset %s: %w", name, err)
	}
	opts, err := decode(payload)
	if err != nil {
		return nuitka.Options{}, fmt.Errorf("parse preset %s: %w", name, err)
	}
	return opts, nil
}

// List returns the sorted names of all presets. A missing directory is an
// empty list.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("list presets in %s: %w", s.Dir, err)
	}
	names := []string{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), fileExt) {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), fileExt)
		if ValidateName(name) != nil {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) Delete(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := os.Remove(s.Path(name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("delete preset %s: %w", name, err)
	}
	return nil
}

// Export copies a stored preset to an arbitrary path.
func (s *Store) Export(name string, path string) error {
	opts, err := s.Load(name)
	if err != nil {
		return err
	}
	payload, err := encode(opts)
	if err != nil {
		return err
	}
	if err := fileops.WriteFileAtomic(path, payload, 0o644); err != nil {
		return fmt.Errorf("export preset %s: %w", name, err)
	}
	return nil
}

// Import reads a preset file from path and stores it as name, or under the
// file's stem when name is empty.
func (s *Store) Import(path string, name string) (string, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	opts, err := decode(payload)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", path, err)
	}
	if strings.TrimSpace(name) == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return s.Save(name, opts)
}

func encode(opts nuitka.Options) ([]byte, error) {
	if opts.IncludedFiles == nil {
		opts.IncludedFiles = []string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(opts); err != nil {
		return nil, fmt.Errorf("encode preset: %w", err)
	}
	return buf.Bytes(), nil
}

// decode starts from the defaults so keys missing from older files keep
// their default values. Unknown keys are ignored.
func decode(payload []byte) (nuitka.Options, error) {
	opts := nuitka.DefaultOptions()
	if err := json.Unmarshal(payload, &opts); err != nil {
		return nuitka.Options{}, err
	}
	if opts.IncludedFiles == nil {
		opts.IncludedFiles = []string{}
	}
	return opts, nil
}
