package fetch

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// resolveRef resolves a branch, tag, or symbolic ref to a full commit hash
// via ls-remote. For annotated tags the dereferenced entry (^{}) is
// preferred so the result points at the underlying commit.
func resolveRef(ctx context.Context, gitURL, ref string) (string, error) {
	out, err := gitOutput(ctx, "ls-remote", gitURL, ref, ref+"^{}")
	if err != nil {
		return "", fmt.Errorf("%w: resolving %q in %s: %v", ErrFetchFailed, ref, gitURL, err)
	}

	var commit string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		commit = fields[0]
		if strings.HasSuffix(fields[1], "^{}") {
			return fields[0], nil
		}
	}

	if commit == "" {
		return "", fmt.Errorf("%w: ref %q not found in %s", ErrFetchFailed, ref, gitURL)
	}
	return commit, nil
}

// resolveShortHash expands an abbreviated commit hash to the full hash by
// listing all refs and prefix-matching their commit hashes.
func resolveShortHash(ctx context.Context, gitURL, short string) (string, error) {
	out, err := gitOutput(ctx, "ls-remote", gitURL)
	if err != nil {
		return "", fmt.Errorf("%w: listing refs in %s: %v", ErrFetchFailed, gitURL, err)
	}

	prefix := strings.ToLower(short)
	var match string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		hash := strings.ToLower(fields[0])
		if !strings.HasPrefix(hash, prefix) {
			continue
		}
		if match != "" && match != hash {
			return "", fmt.Errorf("%w: short hash %q is ambiguous in %s", ErrFetchFailed, short, gitURL)
		}
		match = hash
	}

	if match == "" {
		return "", fmt.Errorf("%w: short hash %q not found in %s", ErrFetchFailed, short, gitURL)
	}
	return match, nil
}

// selectTag lists the remote's tags and picks the highest semver tag
// satisfying the range. Returns the tag name, its commit, and the bare
// version string.
func selectTag(ctx context.Context, gitURL, rangeStr string) (tag, commit, version string, err error) {
	tags, err := listTags(ctx, gitURL)
	if err != nil {
		return "", "", "", err
	}

	tag, version, err = matchTag(tags, rangeStr)
	if err != nil {
		return "", "", "", fmt.Errorf("%w (range %q in %s)", err, rangeStr, gitURL)
	}
	return tag, tags[tag], version, nil
}

// listTags returns the remote's tags as a name → commit map. Annotated
// tags report both the tag object and its ^{} dereference; the
// dereferenced commit wins.
func listTags(ctx context.Context, gitURL string) (map[string]string, error) {
	out, err := gitOutput(ctx, "ls-remote", "--tags", gitURL)
	if err != nil {
		return nil, fmt.Errorf("%w: listing tags in %s: %v", ErrFetchFailed, gitURL, err)
	}

	tags := make(map[string]string)
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		name := strings.TrimPrefix(fields[1], "refs/tags/")
		if deref, ok := strings.CutSuffix(name, "^{}"); ok {
			tags[deref] = fields[0]
			continue
		}
		if _, ok := tags[name]; !ok {
			tags[name] = fields[0]
		}
	}
	return tags, nil
}

// matchTag picks the highest tag whose version satisfies the range. Tags
// that do not parse as semver (with or without a v prefix) are skipped.
func matchTag(tags map[string]string, rangeStr string) (tag, version string, err error) {
	c, err := semver.NewConstraint(rangeStr)
	if err != nil {
		return "", "", fmt.Errorf("%w: invalid range %q: %v", ErrConstraintUnsatisfiable, rangeStr, err)
	}

	names := make([]string, 0, len(tags))
	for name := range tags {
		names = append(names, name)
	}
	sort.Strings(names)

	var best *semver.Version
	for _, name := range names {
		v, parseErr := semver.NewVersion(strings.TrimPrefix(name, "v"))
		if parseErr != nil {
			continue
		}
		if !c.Check(v) {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best = v
			tag = name
		}
	}

	if best == nil {
		return "", "", ErrConstraintUnsatisfiable
	}
	return tag, best.String(), nil
}

// clone materializes the repository at dest. When a symbolic ref is known
// a shallow --branch clone is used; otherwise the commit is fetched by
// SHA, which requires the server to allow reachable-SHA fetches (GitHub,
// GitLab, and Bitbucket do).
func clone(ctx context.Context, gitURL, ref, commit, dest string) error {
	if ref != "" {
		return runGit(ctx, "clone", "--depth", "1", "--branch", ref, gitURL, dest)
	}

	for _, args := range [][]string{
		{"init", dest},
		{"-C", dest, "remote", "add", "origin", gitURL},
		{"-C", dest, "fetch", "--depth", "1", "origin", commit},
		{"-C", dest, "checkout", commit},
	} {
		if err := runGit(ctx, args...); err != nil {
			return err
		}
	}
	return nil
}

// parseGitURL extracts the host and repository path from a git URL.
// Supports URL schemes, scp-style ssh shorthand (git@host:owner/repo.git),
// and bare filesystem paths from file: aliases.
func parseGitURL(rawURL string) (host, repoPath string, err error) {
	// scp shorthand: git@github.com:owner/repo.git
	if idx := strings.Index(rawURL, ":"); idx > 0 && !strings.Contains(rawURL[:idx], "/") && !strings.Contains(rawURL, "://") {
		host = rawURL[:idx]
		if at := strings.Index(host, "@"); at >= 0 {
			host = host[at+1:]
		}
		repoPath = strings.TrimSuffix(rawURL[idx+1:], ".git")
		return host, repoPath, nil
	}

	// Bare filesystem path (local file: alias → <path>/<repo>/.git).
	if !strings.Contains(rawURL, "://") {
		p := strings.TrimSuffix(rawURL, "/.git")
		p = strings.TrimSuffix(p, ".git")
		p = strings.Trim(p, "/")
		if p == "" {
			return "", "", fmt.Errorf("empty git path %q", rawURL)
		}
		return "local", p, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", err
	}
	repoPath = strings.TrimPrefix(u.Path, "/")
	repoPath = strings.TrimSuffix(repoPath, "/.git")
	repoPath = strings.TrimSuffix(repoPath, ".git")
	if u.Host == "" || repoPath == "" {
		return "", "", fmt.Errorf("unparseable git URL %q", rawURL)
	}
	return u.Host, repoPath, nil
}

// isCommitHash reports whether s is a full 40-character hex hash.
func isCommitHash(s string) bool {
	return len(s) == 40 && isHexString(s)
}

// isShortCommitHash reports whether s looks like an abbreviated commit
// hash (7-39 hex chars).
func isShortCommitHash(s string) bool {
	return len(s) >= 7 && len(s) < 40 && isHexString(s)
}

func isHexString(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}

func runGit(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	if _, err := cmd.Output(); err != nil {
		return execError(err)
	}
	return nil
}

func gitOutput(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	out, err := cmd.Output()
	if err != nil {
		return nil, execError(err)
	}
	return out, nil
}

func execError(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
	}
	return err
}
