package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	tests := map[string]struct {
		data         string
		want         *Manifest
		wantWarnings []string
		wantErr      error
	}{
		"minimal": {
			data: `{"name": "bdb"}`,
			want: &Manifest{Name: "bdb"},
		},
		"full": {
			data: `{
				"name": "bcoin",
				"version": "2.0.0",
				"main": "lib/bcoin.js",
				"remotes": {"github": "https://github.com"},
				"dependencies": {"bdb": "github:bcoin-org/bdb#semver:~1.1.7"},
				"devDependencies": {"bmocha": "^2.1.0"},
				"scripts": {"test": "bmocha --reporter spec test/"}
			}`,
			want: &Manifest{
				Name:            "bcoin",
				Version:         "2.0.0",
				Main:            "lib/bcoin.js",
				Remotes:         map[string]string{"github": "https://github.com"},
				Dependencies:    map[string]string{"bdb": "github:bcoin-org/bdb#semver:~1.1.7"},
				DevDependencies: map[string]string{"bmocha": "^2.1.0"},
				Scripts:         map[string]string{"test": "bmocha --reporter spec test/"},
			},
		},
		"unknown keys warn": {
			data: `{"name": "bdb", "license": "MIT", "keywords": ["db"]}`,
			want: &Manifest{Name: "bdb"},
			wantWarnings: []string{
				`unknown manifest key "keywords"`,
				`unknown manifest key "license"`,
			},
		},
		"missing name": {
			data:    `{"version": "1.0.0"}`,
			wantErr: ErrInvalid,
		},
		"not json": {
			data:    `{{{`,
			wantErr: ErrInvalid,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, warnings, err := Parse([]byte(tc.data))
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("Parse() error = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() returned unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Parse() = %+v, want %+v", got, tc.want)
			}
			if !reflect.DeepEqual(warnings, tc.wantWarnings) {
				t.Errorf("warnings = %v, want %v", warnings, tc.wantWarnings)
			}
		})
	}
}

func TestLoadMissing(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), FileName))
	if !errors.Is(err, ErrNoManifest) {
		t.Fatalf("Load() error = %v, want %v", err, ErrNoManifest)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := &Manifest{
		Name:         "foo",
		Version:      "1.2.3",
		Dependencies: map[string]string{"bar": "~2.0.0"},
	}

	if err := Save(dir, m); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, warnings, err := Load(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	if !reflect.DeepEqual(got, m) {
		t.Errorf("round trip = %+v, want %+v", got, m)
	}
}

func TestFind(t *testing.T) {
	root := t.TempDir()
	pkgDir := filepath.Join(root, "modules", "foo")
	libDir := filepath.Join(pkgDir, "lib")
	if err := os.MkdirAll(libDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(pkgDir, FileName), []byte(`{"name": "foo"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := map[string]struct {
		dir     string
		walk    bool
		want    string
		wantErr error
	}{
		"walk from nested directory": {
			dir:  libDir,
			walk: true,
			want: pkgDir,
		},
		"walk from package root": {
			dir:  pkgDir,
			walk: true,
			want: pkgDir,
		},
		"exact at package root": {
			dir:  pkgDir,
			walk: false,
			want: pkgDir,
		},
		"exact at nested directory fails": {
			dir:     libDir,
			walk:    false,
			wantErr: ErrNoManifest,
		},
		"walk with no manifest anywhere": {
			dir:     t.TempDir(),
			walk:    true,
			wantErr: ErrNoManifest,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := Find(tc.dir, tc.walk)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("Find(%q, %v) error = %v, want %v", tc.dir, tc.walk, err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Find(%q, %v) returned unexpected error: %v", tc.dir, tc.walk, err)
			}
			if got != tc.want {
				t.Errorf("Find(%q, %v) = %q, want %q", tc.dir, tc.walk, got, tc.want)
			}
		})
	}
}

func TestDependencyNames(t *testing.T) {
	m := &Manifest{
		Dependencies: map[string]string{"zlib": "*", "abc": "*", "mid": "*"},
	}
	want := []string{"abc", "mid", "zlib"}
	if got := m.DependencyNames(); !reflect.DeepEqual(got, want) {
		t.Errorf("DependencyNames() = %v, want %v", got, want)
	}
}
