package remote

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownAlias is returned when a source uses an alias prefix that
	// does not appear in the manifest's remotes table.
	ErrUnknownAlias = errors.New("unknown remote alias")
	// ErrMalformedSource is returned when a source string matches no
	// recognized form.
	ErrMalformedSource = errors.New("malformed dependency source")
)

// Descriptor is a normalized dependency source. Git is the absolute git
// URL, or empty when the source is a pure version constraint. Version is a
// semver range expression and Branch is a branch name, tag, or commit
// hash; at most one of the two is set.
type Descriptor struct {
	Git     string
	Version string
	Branch  string
}

// Parse resolves a dependency source string against the enclosing
// manifest's remotes alias table. name is the dependency name, used when a
// local alias carries an empty path. The recognized forms, in precedence
// order:
//
//	git+scheme://…[#frag] literal git URL with the git+ prefix stripped
//	git://…[#frag]        literal git URL
//	http(s)://…[#frag]    literal git URL
//	alias:path[#frag]     alias from remotes, joined with path
//	~1.2.3, ^1.0, >=2, *  bare version constraint (no remote)
//
// An explicit URL scheme always wins over an alias of the same name, so an
// alias called "git" cannot shadow git:// sources.
func Parse(remotes map[string]string, name, src string) (*Descriptor, error) {
	if src == "" {
		return nil, fmt.Errorf("%w: empty source", ErrMalformedSource)
	}

	body, frag := splitFragment(src)

	version, branch := parseFragment(frag)

	// Explicit schemes take precedence over alias lookup.
	switch {
	case strings.HasPrefix(body, "git+"):
		url := strings.TrimPrefix(body, "git+")
		if !strings.Contains(url, "://") {
			return nil, fmt.Errorf("%w: %q", ErrMalformedSource, src)
		}
		return &Descriptor{Git: url, Version: version, Branch: branch}, nil
	case strings.HasPrefix(body, "git://"),
		strings.HasPrefix(body, "http://"),
		strings.HasPrefix(body, "https://"):
		return &Descriptor{Git: body, Version: version, Branch: branch}, nil
	}

	if alias, path, ok := splitAlias(body); ok {
		base, found := remotes[alias]
		if !found {
			return nil, fmt.Errorf("%w: %q", ErrUnknownAlias, alias)
		}
		url, err := joinAlias(base, path, name)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrMalformedSource, src)
		}
		return &Descriptor{Git: url, Version: version, Branch: branch}, nil
	}

	if frag == "" && isVersionConstraint(body) {
		return &Descriptor{Version: body}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrMalformedSource, src)
}

// splitFragment separates the optional #fragment from the source body.
func splitFragment(src string) (body, frag string) {
	if idx := strings.Index(src, "#"); idx >= 0 {
		return src[:idx], src[idx+1:]
	}
	return src, ""
}

// parseFragment interprets a fragment: a semver: prefix carries a version
// range, anything else (branch, tag, or commit hash) is carried in the
// branch field for the fetcher to interpret.
func parseFragment(frag string) (version, branch string) {
	if frag == "" {
		return "", ""
	}
	if rest, ok := strings.CutPrefix(frag, "semver:"); ok {
		return rest, ""
	}
	return "", frag
}

// splitAlias splits an alias:path body. The alias must be a plain token;
// anything containing a slash before the colon is not an alias form.
func splitAlias(body string) (alias, path string, ok bool) {
	idx := strings.Index(body, ":")
	if idx <= 0 {
		return "", "", false
	}
	alias = body[:idx]
	if strings.ContainsAny(alias, "/\\") {
		return "", "", false
	}
	return alias, body[idx+1:], true
}

// joinAlias combines an alias base URL with the dependency path. A file:
// base is a local clone source: the result is <base-path>/<path>/.git.
// When the path is empty, the dependency's own name supplies the missing
// segment; this quirk is preserved for compatibility with manifests that
// write "local:#semver:…" and rely on the dependency name.
func joinAlias(base, path, name string) (string, error) {
	if path == "" {
		path = name
	}
	if path == "" {
		return "", errors.New("empty alias path")
	}

	if local, ok := strings.CutPrefix(base, "file:"); ok {
		local = strings.TrimSuffix(local, "/")
		return local + "/" + path + "/.git", nil
	}

	return strings.TrimSuffix(base, "/") + "/" + path + ".git", nil
}

// isVersionConstraint reports whether s begins like a semver range
// expression (~, ^, >=, <, =, *, or a digit).
func isVersionConstraint(s string) bool {
	if s == "" {
		return false
	}
	switch s[0] {
	case '~', '^', '>', '<', '=', '*':
		return true
	}
	return s[0] >= '0' && s[0] <= '9'
}
