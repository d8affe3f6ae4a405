package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"sigs.k8s.io/yaml"
)

// FileName is the manifest filename at the root of every package.
const FileName = "package.json"

var (
	// ErrNoManifest is returned when no package.json can be located.
	ErrNoManifest = errors.New("no package.json found")
	// ErrInvalid is returned when a manifest parses but fails validation.
	ErrInvalid = errors.New("invalid manifest")
)

// knownKeys are the top-level manifest keys gpk understands. Anything else
// is reported as a warning on load and is not kept in the Manifest.
var knownKeys = map[string]bool{
	"name":            true,
	"version":         true,
	"main":            true,
	"remotes":         true,
	"dependencies":    true,
	"devDependencies": true,
	"scripts":         true,
}

// Manifest is the parsed contents of a package.json. Name is the only
// required field.
type Manifest struct {
	Name            string            `json:"name"`
	Version         string            `json:"version,omitempty"`
	Main            string            `json:"main,omitempty"`
	Remotes         map[string]string `json:"remotes,omitempty"`
	Dependencies    map[string]string `json:"dependencies,omitempty"`
	DevDependencies map[string]string `json:"devDependencies,omitempty"`
	Scripts         map[string]string `json:"scripts,omitempty"`
}

// Parse decodes and validates manifest data. The returned warnings name
// unknown top-level keys; they are not fatal, preserving forward
// compatibility with newer manifest fields.
func Parse(data []byte) (*Manifest, []string, error) {
	var raw map[string]json.RawMessage
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	var warnings []string
	for key := range raw {
		if !knownKeys[key] {
			warnings = append(warnings, fmt.Sprintf("unknown manifest key %q", key))
		}
	}
	sort.Strings(warnings)

	m := &Manifest{}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if err := m.Validate(); err != nil {
		return nil, nil, err
	}

	return m, warnings, nil
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("%w at %s", ErrNoManifest, path)
		}
		return nil, nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(data)
}

// Validate checks the required fields.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalid)
	}
	return nil
}

// Marshal renders the manifest as indented JSON with a trailing newline.
func (m *Manifest) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Save writes the manifest to <dir>/package.json.
func Save(dir string, m *Manifest) error {
	data, err := m.Marshal()
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// Find locates the directory holding a package.json. With walk set it
// ascends from dir toward the filesystem root and returns the first
// directory containing a manifest; otherwise dir itself must hold one.
func Find(dir string, walk bool) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", dir, err)
	}

	if !walk {
		if _, err := os.Stat(filepath.Join(abs, FileName)); err != nil {
			if os.IsNotExist(err) {
				return "", fmt.Errorf("%w in %s", ErrNoManifest, abs)
			}
			return "", err
		}
		return abs, nil
	}

	for cur := abs; ; {
		if _, err := os.Stat(filepath.Join(cur, FileName)); err == nil {
			return cur, nil
		} else if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", fmt.Errorf("%w above %s", ErrNoManifest, abs)
		}
		cur = parent
	}
}

// DependencyNames returns the dependency names in lexicographic order.
// JSON object order is not observable after decoding, so sorted names are
// the deterministic processing order.
func (m *Manifest) DependencyNames() []string {
	names := make([]string, 0, len(m.Dependencies))
	for name := range m.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DevDependencyNames returns the devDependency names in lexicographic order.
func (m *Manifest) DevDependencyNames() []string {
	names := make([]string, 0, len(m.DevDependencies))
	for name := range m.DevDependencies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
