package pack

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// InstallScript is the manifest script that Rebuild runs for each
// materialized dependency. Install does not run it.
const InstallScript = "install"

// Run executes the named manifest script. Scripts always run under the
// embedded POSIX shell with the package root as working directory, so
// behavior does not depend on the host's /bin/sh. The returned int is the
// script's exit status.
func (p *Package) Run(ctx context.Context, name string, args []string) (int, error) {
	cmdStr, ok := p.Info.Scripts[name]
	if !ok {
		return 1, fmt.Errorf("%w: %q", ErrNoSuchScript, name)
	}
	return p.runScript(ctx, name, cmdStr, args)
}

func (p *Package) runScript(ctx context.Context, name, cmdStr string, args []string) (int, error) {
	prog, err := syntax.NewParser().Parse(strings.NewReader(cmdStr), name)
	if err != nil {
		return 1, fmt.Errorf("parsing script %q: %w", name, err)
	}

	opts := []interp.RunnerOption{
		interp.Dir(p.Dir),
		interp.Env(expand.ListEnviron(p.scriptEnv()...)),
		interp.StdIO(p.Env.Stdin, p.Env.Stdout, p.Env.Stderr),
	}
	// "--" stops args like -v from being read as shell options.
	if len(args) > 0 {
		opts = append(opts, interp.Params(append([]string{"--"}, args...)...))
	}

	runner, err := interp.New(opts...)
	if err != nil {
		return 1, fmt.Errorf("creating interpreter: %w", err)
	}

	if err := runner.Run(ctx, prog); err != nil {
		var status interp.ExitStatus
		if errors.As(err, &status) {
			return int(status), nil
		}
		return 1, fmt.Errorf("running script %q: %w", name, err)
	}
	return 0, nil
}

func (p *Package) scriptEnv() []string {
	return append(os.Environ(),
		"GPK_PACKAGE_NAME="+p.Info.Name,
		"GPK_PACKAGE_DIR="+p.Dir,
	)
}

// Rebuild re-runs the install script of every materialized dependency in
// place, depth-first in name order, without re-fetching anything.
func (p *Package) Rebuild(ctx context.Context) error {
	return p.rebuildTree(ctx, p, nil)
}

func (p *Package) rebuildTree(ctx context.Context, pkg *Package, path []string) error {
	modules := filepath.Join(pkg.Dir, "node_modules")
	entries, err := os.ReadDir(modules)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", modules, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		dir := filepath.Join(modules, name)
		dep, err := FromDirectory(dir, false, p.Env, pkg)
		if err != nil {
			// Not every node_modules entry is a package (e.g. .bin).
			p.Env.Log.Debug("skipping non-package entry", "dir", dir)
			continue
		}

		depPath := append(append([]string(nil), path...), name)
		if _, ok := dep.Info.Scripts[InstallScript]; ok {
			p.Env.Log.Info("rebuilding", "package", strings.Join(depPath, " > "))
			status, err := dep.Run(ctx, InstallScript, nil)
			if err != nil {
				return fmt.Errorf("%s: %w", strings.Join(depPath, " > "), err)
			}
			if status != 0 {
				return fmt.Errorf("%s: install script exited with status %d", strings.Join(depPath, " > "), status)
			}
		}

		if err := p.rebuildTree(ctx, dep, depPath); err != nil {
			return err
		}
	}
	return nil
}
