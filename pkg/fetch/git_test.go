package fetch

import (
	"errors"
	"testing"
)

func TestParseGitURL(t *testing.T) {
	tests := map[string]struct {
		url      string
		wantHost string
		wantPath string
		wantErr  bool
	}{
		"https url": {
			url:      "https://github.com/bcoin-org/bdb.git",
			wantHost: "github.com",
			wantPath: "bcoin-org/bdb",
		},
		"https url without .git": {
			url:      "https://gitlab.com/bcoin-org/bdb",
			wantHost: "gitlab.com",
			wantPath: "bcoin-org/bdb",
		},
		"ssh url with port": {
			url:      "ssh://git@example.onion:22/bcoin/bcoin.git",
			wantHost: "example.onion:22",
			wantPath: "bcoin/bcoin",
		},
		"scp shorthand": {
			url:      "git@github.com:bcoin-org/bdb.git",
			wantHost: "github.com",
			wantPath: "bcoin-org/bdb",
		},
		"local bare clone path": {
			url:      "/data/repos/bdb/.git",
			wantHost: "local",
			wantPath: "data/repos/bdb",
		},
		"git protocol": {
			url:      "git://github.com/bcoin-org/bcoin.git",
			wantHost: "github.com",
			wantPath: "bcoin-org/bcoin",
		},
		"empty": {
			url:     "",
			wantErr: true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			host, path, err := parseGitURL(tc.url)
			if (err != nil) != tc.wantErr {
				t.Fatalf("parseGitURL(%q) error = %v, wantErr = %v", tc.url, err, tc.wantErr)
			}
			if tc.wantErr {
				return
			}
			if host != tc.wantHost {
				t.Errorf("host = %q, want %q", host, tc.wantHost)
			}
			if path != tc.wantPath {
				t.Errorf("path = %q, want %q", path, tc.wantPath)
			}
		})
	}
}

func TestRepoSegments(t *testing.T) {
	commit := "0f2c4d9e8b7a6c5d4e3f2a1b0c9d8e7f6a5b4c3d"
	segs, err := repoSegments("https://github.com/bcoin-org/bdb.git", commit)
	if err != nil {
		t.Fatalf("repoSegments: %v", err)
	}
	want := []string{"repos", "github.com", "bcoin-org", "bdb", commit}
	if len(segs) != len(want) {
		t.Fatalf("segments = %v, want %v", segs, want)
	}
	for i := range want {
		if segs[i] != want[i] {
			t.Fatalf("segments = %v, want %v", segs, want)
		}
	}
}

func TestMatchTag(t *testing.T) {
	tags := map[string]string{
		"v1.0.0":       "a000000000000000000000000000000000000000",
		"v1.1.0":       "a111111111111111111111111111111111111111",
		"v1.1.7":       "a777777777777777777777777777777777777777",
		"v2.0.0":       "a200000000000000000000000000000000000000",
		"2.1.0":        "a210000000000000000000000000000000000000",
		"not-a-semver": "affffffffffffffffffffffffffffffffffffff",
	}

	tests := map[string]struct {
		rangeStr    string
		wantTag     string
		wantVersion string
		wantErr     error
	}{
		"tilde picks highest patch": {
			rangeStr:    "~1.1.0",
			wantTag:     "v1.1.7",
			wantVersion: "1.1.7",
		},
		"caret picks highest minor": {
			rangeStr:    "^1.0.0",
			wantTag:     "v1.1.7",
			wantVersion: "1.1.7",
		},
		"gte picks highest overall": {
			rangeStr:    ">=1.0.0",
			wantTag:     "2.1.0",
			wantVersion: "2.1.0",
		},
		"wildcard picks highest": {
			rangeStr:    "*",
			wantTag:     "2.1.0",
			wantVersion: "2.1.0",
		},
		"exact version": {
			rangeStr:    "1.1.0",
			wantTag:     "v1.1.0",
			wantVersion: "1.1.0",
		},
		"unprefixed tag": {
			rangeStr:    "~2.1.0",
			wantTag:     "2.1.0",
			wantVersion: "2.1.0",
		},
		"no match": {
			rangeStr: "^9.0.0",
			wantErr:  ErrConstraintUnsatisfiable,
		},
		"invalid range": {
			rangeStr: "not a range",
			wantErr:  ErrConstraintUnsatisfiable,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			tag, version, err := matchTag(tags, tc.rangeStr)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("matchTag(%q) error = %v, want %v", tc.rangeStr, err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("matchTag(%q) returned unexpected error: %v", tc.rangeStr, err)
			}
			if tag != tc.wantTag {
				t.Errorf("tag = %q, want %q", tag, tc.wantTag)
			}
			if version != tc.wantVersion {
				t.Errorf("version = %q, want %q", version, tc.wantVersion)
			}
		})
	}
}

func TestMatchTagEmpty(t *testing.T) {
	if _, _, err := matchTag(map[string]string{}, "*"); !errors.Is(err, ErrConstraintUnsatisfiable) {
		t.Fatalf("matchTag on empty tags = %v, want %v", err, ErrConstraintUnsatisfiable)
	}
}

func TestCommitHashHelpers(t *testing.T) {
	full := "0f2c4d9e8b7a6c5d4e3f2a1b0c9d8e7f6a5b4c3d"

	tests := map[string]struct {
		s         string
		wantFull  bool
		wantShort bool
	}{
		"full hash":      {s: full, wantFull: true},
		"short hash":     {s: full[:12], wantShort: true},
		"minimal short":  {s: full[:7], wantShort: true},
		"too short":      {s: full[:6]},
		"tag":            {s: "v1.1.7"},
		"branch":         {s: "master"},
		"empty":          {s: ""},
		"hex-like word 8": {s: "deadbeef", wantShort: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			if got := isCommitHash(tc.s); got != tc.wantFull {
				t.Errorf("isCommitHash(%q) = %v, want %v", tc.s, got, tc.wantFull)
			}
			if got := isShortCommitHash(tc.s); got != tc.wantShort {
				t.Errorf("isShortCommitHash(%q) = %v, want %v", tc.s, got, tc.wantShort)
			}
		})
	}
}
