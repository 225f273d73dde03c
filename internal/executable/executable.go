// Package executable finds the command used to launch marimo.
package executable

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/opensandbox/marimoproxy/internal/config"
)

// ErrNotFound means neither marimo nor a runner able to fetch it could be
// located. Callers surface it as a configuration error.
var ErrNotFound = errors.New("marimo executable not found; set " +
	config.EnvMarimoPath + " or install marimo (or uv) on PATH")

// CommonLocations is searched, in order, when marimo is not on PATH.
// A leading "~/" is expanded against the user's home directory.
var CommonLocations = []string{
	"~/.local/bin/marimo",
	"/usr/local/bin/marimo",
	"/opt/conda/bin/marimo",
	"/usr/bin/marimo",
}

// Locator resolves the marimo launch command. The zero value uses the real
// PATH and CommonLocations.
type Locator struct {
	LookPath  func(file string) (string, error)
	Locations []string
	HomeDir   func() (string, error)
}

// Command resolves with a zero Locator.
func Command(s config.Settings) ([]string, error) {
	return Locator{}.Command(s)
}

// Command returns the argv prefix that launches marimo. The order is fixed:
// explicit marimo path, marimo on PATH, CommonLocations, then the uvx runner
// (explicit or on PATH).
func (l Locator) Command(s config.Settings) ([]string, error) {
	if p := s.MarimoPath(); p != "" {
		return []string{p}, nil
	}

	if p, err := l.lookPath("marimo"); err == nil {
		return []string{p}, nil
	}

	for _, loc := range l.locations() {
		p := l.expand(loc)
		if isExecutable(p) {
			return []string{p}, nil
		}
	}

	runner := s.UvxPath()
	if runner == "" {
		if p, err := l.lookPath("uvx"); err == nil {
			runner = p
		}
	}
	if runner != "" {
		return runnerCommand(runner), nil
	}

	return nil, ErrNotFound
}

// runnerCommand runs marimo through uv's tool runner. The UV variable points
// at the uv binary rather than uvx, which needs the "tool run" subcommand.
func runnerCommand(runner string) []string {
	switch filepath.Base(runner) {
	case "uv", "uv.exe":
		return []string{runner, "tool", "run", "marimo"}
	default:
		return []string{runner, "marimo"}
	}
}

func (l Locator) lookPath(file string) (string, error) {
	if l.LookPath != nil {
		return l.LookPath(file)
	}
	return exec.LookPath(file)
}

func (l Locator) locations() []string {
	if l.Locations != nil {
		return l.Locations
	}
	return CommonLocations
}

func (l Locator) expand(p string) string {
	if len(p) < 2 || p[:2] != "~/" {
		return p
	}
	homeDir := l.HomeDir
	if homeDir == nil {
		homeDir = os.UserHomeDir
	}
	home, err := homeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[2:])
}

func isExecutable(p string) bool {
	info, err := os.Stat(p)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return info.Mode().Perm()&0o111 != 0
}
