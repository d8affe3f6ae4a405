package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/charmbracelet/log"

	"github.com/tuxcanfly/gpk/pkg/fetch"
	"github.com/tuxcanfly/gpk/pkg/manifest"
	"github.com/tuxcanfly/gpk/pkg/remote"
)

// ErrLayoutConflict is returned when a dependency cannot be placed: the
// slot in the requiring package's node_modules is occupied by something
// that is not a package.
var ErrLayoutConflict = errors.New("dependency layout conflict")

// Installer materializes dependency closures on disk. Dependencies are
// placed in the requiring package's node_modules unless an ancestor
// already holds a copy satisfying the constraint, in which case that copy
// is reused. An incompatible ancestor copy forces a nested duplicate at
// the requiring package, so the conflicting version cannot poison
// siblings. The same ancestor-chain check breaks dependency cycles.
type Installer struct {
	Fetcher fetch.Fetcher
	Log     *log.Logger

	// Production skips the root package's devDependencies.
	Production bool
}

// node is one package in the tree being walked. Nodes form a chain to the
// root via parent; reuse is by path lookup on this chain, never by object
// reference, so cyclic graphs cannot create ownership cycles.
type node struct {
	name   string
	dir    string
	info   *manifest.Manifest
	parent *node
}

// pathTo renders the dependency path from the root down to a dependency
// of this node, e.g. "a > c > d".
func (n *node) pathTo(dep string) string {
	var names []string
	for cur := n; cur != nil; cur = cur.parent {
		names = append(names, cur.name)
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return strings.Join(append(names, dep), " > ")
}

// Install materializes every dependency of the package rooted at rootDir,
// including devDependencies unless Production is set.
func (inst *Installer) Install(ctx context.Context, rootDir string) error {
	root, err := loadRoot(rootDir)
	if err != nil {
		return err
	}

	deps := make(map[string]string, len(root.info.Dependencies)+len(root.info.DevDependencies))
	if !inst.Production {
		for name, src := range root.info.DevDependencies {
			deps[name] = src
		}
	}
	// Runtime dependencies win a name collision with devDependencies.
	for name, src := range root.info.Dependencies {
		deps[name] = src
	}

	return inst.installAll(ctx, root, deps)
}

// InstallDeps materializes only the named dependencies of the package at
// rootDir.
func (inst *Installer) InstallDeps(ctx context.Context, rootDir string, deps map[string]string) error {
	root, err := loadRoot(rootDir)
	if err != nil {
		return err
	}
	return inst.installAll(ctx, root, deps)
}

func loadRoot(rootDir string) (*node, error) {
	info, _, err := manifest.Load(filepath.Join(rootDir, manifest.FileName))
	if err != nil {
		return nil, err
	}
	return &node{name: info.Name, dir: rootDir, info: info}, nil
}

// installAll processes deps in lexicographic name order, the deterministic
// stand-in for manifest declaration order. All direct dependencies of a
// package are materialized before any of their own dependencies, so a
// sibling's copy is visible on the ancestor chain when recursion begins.
// Failures carry the dependency path from the root.
func (inst *Installer) installAll(ctx context.Context, n *node, deps map[string]string) error {
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	var children []*node
	for _, name := range names {
		child, err := inst.installDep(ctx, n, name, deps[name])
		if err != nil {
			var pe *pathError
			if errors.As(err, &pe) {
				return err
			}
			return &pathError{path: n.pathTo(name), err: err}
		}
		if child != nil {
			children = append(children, child)
		}
	}

	for _, child := range children {
		if err := inst.installAll(ctx, child, child.info.Dependencies); err != nil {
			return err
		}
	}
	return nil
}

// installDep materializes one dependency, returning the placed node, or
// nil when an existing copy on the ancestor chain was reused.
func (inst *Installer) installDep(ctx context.Context, n *node, name, src string) (*node, error) {
	desc, err := remote.Parse(n.info.Remotes, name, src)
	if err != nil {
		return nil, err
	}

	// Walk the ancestor chain for an existing copy. A satisfying copy is
	// reused; an incompatible one stops the walk and forces a nested
	// duplicate here. The copy in this package's own slot is replaced
	// when stale.
	replace := false
	for a := n; a != nil; a = a.parent {
		depDir := filepath.Join(a.dir, "node_modules", name)
		existing, found, err := readPackage(depDir)
		if err != nil {
			if a == n {
				return nil, fmt.Errorf("%w: %s: %v", ErrLayoutConflict, depDir, err)
			}
			inst.Log.Debug("ignoring broken package on ancestor chain", "dir", depDir)
			continue
		}
		if !found {
			continue
		}
		if satisfies(existing.Version, desc) {
			inst.Log.Debug("reusing", "package", name, "dir", depDir, "version", existing.Version)
			return nil, nil
		}
		if a == n {
			replace = true
		}
		break
	}

	if desc.Git == "" {
		return nil, fmt.Errorf("%w: %q requires %q but no remote is known and no ancestor provides it",
			fetch.ErrFetchFailed, name, desc.Version)
	}

	co, err := inst.Fetcher.Fetch(ctx, name, desc)
	if err != nil {
		return nil, err
	}

	info, _, err := manifest.Load(filepath.Join(co.Dir, manifest.FileName))
	if err != nil {
		os.RemoveAll(co.Dir)
		return nil, fmt.Errorf("fetched tree for %q: %w", name, err)
	}

	dest := filepath.Join(n.dir, "node_modules", name)
	if replace {
		if err := os.RemoveAll(dest); err != nil {
			return nil, fmt.Errorf("replacing %s: %w", dest, err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", filepath.Dir(dest), err)
	}
	if err := moveTree(co.Dir, dest); err != nil {
		return nil, err
	}

	version := info.Version
	if version == "" {
		version = co.Version
	}
	inst.Log.Info("installed", "package", name, "version", version, "dir", dest)

	return &node{name: name, dir: dest, info: info, parent: n}, nil
}

// readPackage reads the manifest of a materialized package. found is
// false when the directory does not exist; a directory without a readable
// manifest is an error.
func readPackage(dir string) (*manifest.Manifest, bool, error) {
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	info, _, err := manifest.Load(filepath.Join(dir, manifest.FileName))
	if err != nil {
		return nil, true, err
	}
	return info, true, nil
}

// satisfies reports whether an installed version satisfies the
// descriptor. Branch and revision pins cannot be checked against a
// manifest version, so any existing copy satisfies them; re-pinning takes
// removing the existing copy and installing again.
func satisfies(installed string, desc *remote.Descriptor) bool {
	if desc.Version == "" {
		return true
	}
	if installed == "" {
		return false
	}
	c, err := semver.NewConstraint(desc.Version)
	if err != nil {
		return false
	}
	v, err := semver.NewVersion(strings.TrimPrefix(installed, "v"))
	if err != nil {
		return false
	}
	return c.Check(v)
}

// pathError carries the dependency path from the root to the failing
// dependency, attached once at the deepest point of failure.
type pathError struct {
	path string
	err  error
}

func (e *pathError) Error() string { return e.path + ": " + e.err.Error() }

func (e *pathError) Unwrap() error { return e.err }
