package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/tuxcanfly/gpk/pkg/archive"
	"github.com/tuxcanfly/gpk/pkg/remote"
	"github.com/tuxcanfly/gpk/pkg/store"
)

var (
	// ErrFetchFailed is returned when the remote cannot be reached or the
	// requested ref does not exist.
	ErrFetchFailed = errors.New("fetch failed")
	// ErrConstraintUnsatisfiable is returned when no tag on the remote
	// satisfies the requested version range. There is no fallback to the
	// default branch; an unsatisfiable range is an error.
	ErrConstraintUnsatisfiable = errors.New("no tag satisfies version constraint")
)

// Checkout is a materialized working tree for one resolved revision. Dir
// is a staging export without git metadata; the installer moves it into
// its final location.
type Checkout struct {
	Dir       string
	Commit    string
	Version   string // tag-derived version when resolved from a range
	Integrity string
}

// Fetcher produces working trees from remote descriptors.
type Fetcher interface {
	Fetch(ctx context.Context, name string, desc *remote.Descriptor) (*Checkout, error)
}

// Git fetches over the git transport. Clones are cached content-addressed
// under repos/<host>/<path>/<commit>; working trees are exported from the
// cache with git archive and unpacked with tar, so staged trees carry no
// .git directory.
type Git struct {
	Store store.Store
	Log   *log.Logger

	// Verify, when set, is called with the exported tree and its integrity
	// hash before the checkout is returned.
	Verify func(dir, integrity string) error
}

var _ Fetcher = &Git{}

func (g *Git) Fetch(ctx context.Context, name string, desc *remote.Descriptor) (*Checkout, error) {
	if desc.Git == "" {
		return nil, fmt.Errorf("%w: no remote for %q", ErrFetchFailed, name)
	}

	commit, version, ref, err := g.resolve(ctx, desc)
	if err != nil {
		return nil, err
	}

	segs, err := repoSegments(desc.Git, commit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	cached, err := g.Store.Exists(segs...)
	if err != nil {
		return nil, fmt.Errorf("checking cache: %w", err)
	}

	if !cached {
		g.logf("cloning %s at %s", desc.Git, shortCommit(commit))
		g.Store.EnsureDir(segs[:len(segs)-1]...)
		dest := g.Store.Path(segs...)
		if err := clone(ctx, desc.Git, ref, commit, dest); err != nil {
			g.Store.Remove(segs...)
			return nil, fmt.Errorf("%w: cloning %s: %v", ErrFetchFailed, desc.Git, err)
		}
	}

	stage, err := g.export(ctx, g.Store.Path(segs...), name)
	if err != nil {
		return nil, err
	}

	integrity, err := store.HashTree(stage)
	if err != nil {
		os.RemoveAll(stage)
		return nil, fmt.Errorf("computing integrity hash: %w", err)
	}

	if g.Verify != nil {
		if err := g.Verify(stage, integrity); err != nil {
			os.RemoveAll(stage)
			return nil, fmt.Errorf("verifying %q: %w", name, err)
		}
	}

	return &Checkout{
		Dir:       stage,
		Commit:    commit,
		Version:   version,
		Integrity: integrity,
	}, nil
}

// resolve maps the descriptor onto a concrete commit. A version range
// enumerates the remote's tags and picks the highest semver match; a
// branch field is resolved as a commit hash, tag, or branch name; with
// neither, the remote HEAD is used. ref is the symbolic name to clone by,
// empty when only the commit is known.
func (g *Git) resolve(ctx context.Context, desc *remote.Descriptor) (commit, version, ref string, err error) {
	switch {
	case desc.Version != "":
		tag, tagCommit, tagVersion, err := selectTag(ctx, desc.Git, desc.Version)
		if err != nil {
			return "", "", "", err
		}
		return tagCommit, tagVersion, tag, nil
	case desc.Branch != "":
		if isCommitHash(desc.Branch) {
			return strings.ToLower(desc.Branch), "", "", nil
		}
		if isShortCommitHash(desc.Branch) {
			commit, err := resolveShortHash(ctx, desc.Git, desc.Branch)
			return commit, "", "", err
		}
		commit, err := resolveRef(ctx, desc.Git, desc.Branch)
		return commit, "", desc.Branch, err
	default:
		commit, err := resolveRef(ctx, desc.Git, "HEAD")
		return commit, "", "", err
	}
}

// export produces a bare working tree from the cached clone: git archive
// writes a tarball, tar unpacks it into a staging directory.
func (g *Git) export(ctx context.Context, cloneDir, name string) (string, error) {
	stage, err := g.Store.TempDir(name + "-")
	if err != nil {
		return "", err
	}

	tarPath := stage + ".tar"
	if err := archiveTree(ctx, cloneDir, tarPath); err != nil {
		os.RemoveAll(stage)
		return "", fmt.Errorf("%w: exporting %s: %v", ErrFetchFailed, cloneDir, err)
	}
	defer os.Remove(tarPath)

	if err := archive.Unpack(ctx, tarPath, stage); err != nil {
		os.RemoveAll(stage)
		return "", err
	}

	return stage, nil
}

func (g *Git) logf(format string, args ...any) {
	if g.Log != nil {
		g.Log.Debug(fmt.Sprintf(format, args...))
	}
}

func shortCommit(commit string) string {
	if len(commit) > 12 {
		return commit[:12]
	}
	return commit
}

// repoSegments returns the store path segments for caching a repo at a
// given commit, e.g. "https://github.com/bcoin-org/bdb.git" at "abc…" →
// ["repos", "github.com", "bcoin-org", "bdb", "abc…"].
func repoSegments(gitURL, commit string) ([]string, error) {
	host, repoPath, err := parseGitURL(gitURL)
	if err != nil {
		return nil, err
	}
	segs := []string{"repos", host}
	segs = append(segs, strings.Split(repoPath, "/")...)
	segs = append(segs, commit)
	return segs, nil
}

// archiveTree writes the clone's HEAD tree as a tar archive at tarPath.
func archiveTree(ctx context.Context, cloneDir, tarPath string) error {
	return runGit(ctx, "-C", cloneDir, "archive", "--format=tar", "-o", tarPath, "HEAD")
}
