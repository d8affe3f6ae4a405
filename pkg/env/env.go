package env

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
)

// DefaultRoot is the per-user gpk directory under $HOME.
const DefaultRoot = ".gpk"

// LogFileName is the diagnostic log written under the gpk home directory
// unless TEST_LOG routes diagnostics to stderr.
const LogFileName = "gpk.log"

// Environment holds the ambient process configuration shared by every
// Package in one invocation: the gpk home directory, the global package
// root, and the IO stream triple. It is read-mostly after Load.
type Environment struct {
	Home   string
	Global string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	Log *log.Logger

	logFile *os.File
}

// Load resolves the environment from process state. Settings are resolved
// with precedence: environment variables (GPK_HOME, GPK_GLOBAL, GPK_LOG,
// TEST_LOG) over <home>/config.toml over built-in defaults. The logger
// writes to stderr until Ensure attaches the on-disk log file.
func Load() (*Environment, error) {
	home := os.Getenv("GPK_HOME")
	if home == "" {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("determining home directory: %w", err)
		}
		home = filepath.Join(userHome, DefaultRoot)
	}

	cfg, err := loadConfig(home)
	if err != nil {
		return nil, err
	}

	e := &Environment{
		Home:   home,
		Global: cfg.Global,
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}

	e.Log = log.NewWithOptions(os.Stderr, log.Options{
		Prefix: "gpk",
		Level:  parseLevel(cfg.LogLevel),
	})

	return e, nil
}

// Ensure creates the home and global directories if missing and attaches
// the diagnostic log destination. Directory creation is not rolled back if
// a later step fails; partial state is left in place.
func (e *Environment) Ensure() error {
	for _, dir := range []string{e.Home, e.Global, filepath.Join(e.Global, "node_modules")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	if err := writeDefaultConfig(e.Home); err != nil {
		return err
	}

	if truthyJSON(os.Getenv("TEST_LOG")) {
		e.Log.SetOutput(e.Stderr)
		return nil
	}

	path := filepath.Join(e.Home, LogFileName)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	e.logFile = f
	e.Log.SetOutput(f)
	return nil
}

// Error writes a diagnostic for err to stderr and to the log.
func (e *Environment) Error(err error) {
	fmt.Fprintf(e.Stderr, "gpk: %v\n", err)
	e.Log.Error(err.Error())
}

// Close releases the log file, if one was opened by Ensure.
func (e *Environment) Close() error {
	if e.logFile == nil {
		return nil
	}
	return e.logFile.Close()
}

// truthyJSON reports whether s decodes as a truthy JSON value. Unparseable
// non-empty strings count as truthy, matching how TEST_LOG is set in
// practice ("1", "true", but also bare words).
func truthyJSON(s string) bool {
	if s == "" {
		return false
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return true
	}
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case nil:
		return false
	default:
		return true
	}
}

func parseLevel(s string) log.Level {
	lvl, err := log.ParseLevel(s)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}
