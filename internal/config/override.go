package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// LoadOverride decodes an Override from a TOML file:
//
//	marimo_path = "/opt/marimo/bin/marimo"
//	timeout = 120
//
// An empty path returns a nil Override. Unknown keys are rejected so typos
// don't silently fall through to the environment.
func LoadOverride(path string) (*Override, error) {
	if path == "" {
		return nil, nil
	}

	var o Override
	md, err := toml.DecodeFile(path, &o)
	if err != nil {
		return nil, fmt.Errorf("override parse failed (%s): %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("override %s: unknown key %q", path, undecoded[0].String())
	}
	return &o, nil
}
