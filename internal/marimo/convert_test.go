package marimo

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/opensandbox/marimoproxy/internal/config"
	"github.com/opensandbox/marimoproxy/internal/executable"
)

// fakeMarimo writes a shell script standing in for marimo and returns a
// Converter pinned to it.
func fakeMarimo(t *testing.T, script string) *Converter {
	t.Helper()
	path := filepath.Join(t.TempDir(), "marimo")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatal(err)
	}
	return &Converter{
		Override: &config.Override{MarimoPath: &path},
		Resolver: config.Resolver{
			Getenv:  func(string) string { return "" },
			HomeDir: func() (string, error) { return "", nil },
		},
	}
}

func TestConvertSuccessPassesArguments(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "args")
	c := fakeMarimo(t, `echo "$@" > `+argsFile+"\necho converted\n")

	result, err := c.Convert(context.Background(), "a.ipynb", "a.py")
	if err != nil {
		t.Fatalf("Convert() error: %v", err)
	}
	if result.ExitCode != 0 {
		t.Errorf("expected exit code 0, got %d", result.ExitCode)
	}
	if strings.TrimSpace(result.Stdout) != "converted" {
		t.Errorf("expected stdout 'converted', got %q", result.Stdout)
	}

	args, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(string(args)); got != "convert a.ipynb -o a.py" {
		t.Errorf("unexpected arguments %q", got)
	}
}

func TestConvertNonZeroExit(t *testing.T) {
	c := fakeMarimo(t, "echo boom >&2\nexit 1\n")

	result, err := c.Convert(context.Background(), "a.ipynb", "a.py")
	if err != nil {
		t.Fatalf("Convert() error: %v", err)
	}
	if result.ExitCode != 1 {
		t.Errorf("expected exit code 1, got %d", result.ExitCode)
	}
	if strings.TrimSpace(result.Message()) != "boom" {
		t.Errorf("expected message boom, got %q", result.Message())
	}
}

func TestConvertMessageFallsBackToStdout(t *testing.T) {
	c := fakeMarimo(t, "echo only-stdout\nexit 2\n")

	result, err := c.Convert(context.Background(), "a.ipynb", "a.py")
	if err != nil {
		t.Fatalf("Convert() error: %v", err)
	}
	if strings.TrimSpace(result.Message()) != "only-stdout" {
		t.Errorf("expected stdout fallback, got %q", result.Message())
	}
}

func TestConvertRunnerPrefix(t *testing.T) {
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args")
	uvx := filepath.Join(dir, "uvx")
	if err := os.WriteFile(uvx, []byte("#!/bin/sh\necho \"$@\" > "+argsFile+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	c := &Converter{
		Override: &config.Override{UvxPath: &uvx},
		Resolver: config.Resolver{
			Getenv:  func(string) string { return "" },
			HomeDir: func() (string, error) { return "", nil },
		},
		Locator: executable.Locator{
			LookPath:  func(string) (string, error) { return "", exec.ErrNotFound },
			Locations: []string{filepath.Join(dir, "missing")},
		},
	}

	if _, err := c.Convert(context.Background(), "in.ipynb", "out.py"); err != nil {
		t.Fatalf("Convert() error: %v", err)
	}
	args, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(string(args)); got != "marimo convert in.ipynb -o out.py" {
		t.Errorf("unexpected runner arguments %q", got)
	}
}

func TestConvertNotFound(t *testing.T) {
	c := &Converter{
		Resolver: config.Resolver{
			Getenv:  func(string) string { return "" },
			HomeDir: func() (string, error) { return "", nil },
		},
		Locator: executable.Locator{
			LookPath:  func(string) (string, error) { return "", exec.ErrNotFound },
			Locations: []string{"/nonexistent/path/marimo"},
		},
	}

	_, err := c.Convert(context.Background(), "a.ipynb", "a.py")
	if !errors.Is(err, executable.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestConvertStartFailure(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "gone")
	c := &Converter{
		Override: &config.Override{MarimoPath: &missing},
		Resolver: config.Resolver{
			Getenv:  func(string) string { return "" },
			HomeDir: func() (string, error) { return "", nil },
		},
	}

	if _, err := c.Convert(context.Background(), "a.ipynb", "a.py"); err == nil {
		t.Fatal("expected error for missing executable")
	}
}
