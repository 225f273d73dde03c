package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeOverride(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "marimo-proxy.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadOverride(t *testing.T) {
	path := writeOverride(t, "marimo_path = \"/opt/marimo\"\ntimeout = 120\n")

	o, err := LoadOverride(path)
	if err != nil {
		t.Fatalf("LoadOverride() error: %v", err)
	}
	if o.MarimoPath == nil || *o.MarimoPath != "/opt/marimo" {
		t.Errorf("expected marimo_path /opt/marimo, got %v", o.MarimoPath)
	}
	if o.Timeout == nil || *o.Timeout != 120 {
		t.Errorf("expected timeout 120, got %v", o.Timeout)
	}
	if o.UvxPath != nil {
		t.Errorf("expected uvx_path unset, got %q", *o.UvxPath)
	}
}

func TestLoadOverrideEmptyPath(t *testing.T) {
	o, err := LoadOverride("")
	if err != nil || o != nil {
		t.Fatalf("expected nil override and no error, got %v, %v", o, err)
	}
}

func TestLoadOverrideUnknownKey(t *testing.T) {
	path := writeOverride(t, "marimo_pth = \"/opt/marimo\"\n")
	if _, err := LoadOverride(path); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestLoadOverrideMissingFile(t *testing.T) {
	if _, err := LoadOverride(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
