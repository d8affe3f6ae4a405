package pack

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tuxcanfly/gpk/pkg/env"
	"github.com/tuxcanfly/gpk/pkg/fetch"
	"github.com/tuxcanfly/gpk/pkg/installer"
	"github.com/tuxcanfly/gpk/pkg/manifest"
	"github.com/tuxcanfly/gpk/pkg/remote"
	"github.com/tuxcanfly/gpk/pkg/store"
)

var (
	// ErrNoSuchScript is returned by Run when the manifest has no script
	// with the requested name.
	ErrNoSuchScript = errors.New("no such script")
	// ErrAlreadyInitialized is returned by Init when the directory already
	// holds a manifest.
	ErrAlreadyInitialized = errors.New("package already initialized")
)

// Package is a materialized package on disk: its root directory, its
// parsed manifest, the shared Environment, and the owning Package when it
// lives in another package's node_modules.
type Package struct {
	Dir    string
	Info   *manifest.Manifest
	Env    *env.Environment
	Parent *Package
}

// FromDirectory loads the package at dir. With walk set, the path is
// ascended until a package.json is found, so any directory inside a
// package resolves to its root. Unknown manifest keys are logged as
// warnings, not errors.
func FromDirectory(dir string, walk bool, e *env.Environment, parent *Package) (*Package, error) {
	root, err := manifest.Find(dir, walk)
	if err != nil {
		return nil, err
	}

	info, warnings, err := manifest.Load(filepath.Join(root, manifest.FileName))
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		e.Log.Warn(w, "dir", root)
	}

	return &Package{
		Dir:    root,
		Info:   info,
		Env:    e,
		Parent: parent,
	}, nil
}

// ResolveRemote resolves a dependency source string against this
// package's remotes alias table.
func (p *Package) ResolveRemote(name, src string) (*remote.Descriptor, error) {
	return remote.Parse(p.Info.Remotes, name, src)
}

// InstallOptions control an install run.
type InstallOptions struct {
	// Production skips devDependencies of the root package.
	Production bool
	// Packages names specific dependencies to install. Each entry is
	// either a declared dependency name or a full source string. Empty
	// means everything in the manifest.
	Packages []string
}

// Install materializes the package's dependency closure under
// node_modules. The filesystem is not rolled back on failure; rebuilds
// and re-installs are idempotent instead.
func (p *Package) Install(ctx context.Context, opts InstallOptions) error {
	inst := &installer.Installer{
		Fetcher:    &fetch.Git{Store: store.New(p.Env.Home), Log: p.Env.Log},
		Log:        p.Env.Log,
		Production: opts.Production,
	}

	if len(opts.Packages) == 0 {
		return inst.Install(ctx, p.Dir)
	}

	deps := make(map[string]string, len(opts.Packages))
	for _, arg := range opts.Packages {
		name, src, err := p.resolveArg(arg)
		if err != nil {
			return err
		}
		deps[name] = src
	}
	return inst.InstallDeps(ctx, p.Dir, deps)
}

// resolveArg maps an install argument onto a (name, source) pair: a
// declared dependency name resolves through the manifest, anything else
// must be a source string whose repo basename supplies the name.
func (p *Package) resolveArg(arg string) (name, src string, err error) {
	if s, ok := p.Info.Dependencies[arg]; ok {
		return arg, s, nil
	}
	if s, ok := p.Info.DevDependencies[arg]; ok {
		return arg, s, nil
	}

	desc, err := p.ResolveRemote("", arg)
	if err != nil {
		return "", "", fmt.Errorf("resolving %q: %w", arg, err)
	}
	if desc.Git == "" {
		return "", "", fmt.Errorf("%q is not a declared dependency or a remote source", arg)
	}

	repo := strings.TrimSuffix(desc.Git, "/.git")
	repo = strings.TrimSuffix(repo, ".git")
	base := filepath.Base(repo)
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "", "", fmt.Errorf("cannot derive a package name from %q", arg)
	}
	return base, arg, nil
}

// Uninstall removes the named subtrees from node_modules. Unknown names
// are logged and skipped.
func (p *Package) Uninstall(names []string) error {
	for _, name := range names {
		dir := filepath.Join(p.Dir, "node_modules", name)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			p.Env.Log.Warn("not installed", "package", name)
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("removing %s: %w", dir, err)
		}
		p.Env.Log.Info("removed", "package", name)
	}
	return nil
}

// Init synthesizes a minimal manifest in dir.
func Init(dir, name, version string) error {
	path := filepath.Join(dir, manifest.FileName)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s exists", ErrAlreadyInitialized, path)
	}

	m := &manifest.Manifest{
		Name:    name,
		Version: version,
		Main:    "index.js",
	}
	return manifest.Save(dir, m)
}

// InferName derives a package name from a directory path.
func InferName(dir string) string {
	return filepath.Base(dir)
}

