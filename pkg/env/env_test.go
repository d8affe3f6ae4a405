package env

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("GPK_HOME", home)
	t.Setenv("GPK_GLOBAL", "")
	t.Setenv("GPK_LOG", "")

	e, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if e.Home != home {
		t.Errorf("Home = %q, want %q", e.Home, home)
	}
	if want := filepath.Join(home, "global"); e.Global != want {
		t.Errorf("Global = %q, want %q", e.Global, want)
	}
	if e.Log == nil {
		t.Error("Log is nil")
	}
}

func TestLoadGlobalOverride(t *testing.T) {
	home := t.TempDir()
	global := t.TempDir()
	t.Setenv("GPK_HOME", home)
	t.Setenv("GPK_GLOBAL", global)

	e, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if e.Global != global {
		t.Errorf("Global = %q, want %q", e.Global, global)
	}
}

func TestLoadConfigFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("GPK_HOME", home)
	t.Setenv("GPK_GLOBAL", "")

	custom := filepath.Join(home, "elsewhere")
	data := "global = '" + custom + "'\n"
	if err := os.WriteFile(filepath.Join(home, ConfigFileName), []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	e, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if e.Global != custom {
		t.Errorf("Global = %q, want %q from config file", e.Global, custom)
	}
}

func TestEnsure(t *testing.T) {
	home := filepath.Join(t.TempDir(), "gpk-home")
	t.Setenv("GPK_HOME", home)
	t.Setenv("GPK_GLOBAL", "")
	t.Setenv("TEST_LOG", "")

	e, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := e.Ensure(); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	defer e.Close()

	for _, dir := range []string{home, e.Global, filepath.Join(e.Global, "node_modules")} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Errorf("expected directory %s: %v", dir, err)
			continue
		}
		if !info.IsDir() {
			t.Errorf("%s is not a directory", dir)
		}
	}

	if _, err := os.Stat(filepath.Join(home, ConfigFileName)); err != nil {
		t.Errorf("expected default %s: %v", ConfigFileName, err)
	}
	if _, err := os.Stat(filepath.Join(home, LogFileName)); err != nil {
		t.Errorf("expected log file %s: %v", LogFileName, err)
	}
}

// TEST_LOG routes diagnostics to stderr instead of the log file.
func TestEnsureTestLog(t *testing.T) {
	home := filepath.Join(t.TempDir(), "gpk-home")
	t.Setenv("GPK_HOME", home)
	t.Setenv("GPK_GLOBAL", "")
	t.Setenv("TEST_LOG", "1")

	e, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := e.Ensure(); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	defer e.Close()

	if _, err := os.Stat(filepath.Join(home, LogFileName)); !os.IsNotExist(err) {
		t.Errorf("log file created despite TEST_LOG, stat err = %v", err)
	}
}

func TestEnsureIdempotent(t *testing.T) {
	home := filepath.Join(t.TempDir(), "gpk-home")
	t.Setenv("GPK_HOME", home)
	t.Setenv("GPK_GLOBAL", "")
	t.Setenv("TEST_LOG", "1")

	e, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := e.Ensure(); err != nil {
		t.Fatalf("first Ensure: %v", err)
	}
	if err := e.Ensure(); err != nil {
		t.Fatalf("second Ensure: %v", err)
	}
}

func TestTruthyJSON(t *testing.T) {
	tests := map[string]struct {
		s    string
		want bool
	}{
		"empty":        {s: "", want: false},
		"true":         {s: "true", want: true},
		"false":        {s: "false", want: false},
		"one":          {s: "1", want: true},
		"zero":         {s: "0", want: false},
		"null":         {s: "null", want: false},
		"string":       {s: `"yes"`, want: true},
		"empty string": {s: `""`, want: false},
		"bare word":    {s: "yes", want: true},
		"object":       {s: "{}", want: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			if got := truthyJSON(tc.s); got != tc.want {
				t.Errorf("truthyJSON(%q) = %v, want %v", tc.s, got, tc.want)
			}
		})
	}
}
