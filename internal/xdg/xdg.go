// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lostfound Contributors

// Package xdg resolves XDG Base Directory paths for lostfound.
package xdg

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const (
	appName        = "lostfound"
	configFileName = "config.yaml"
)

// ConfigDir returns $XDG_CONFIG_HOME/lostfound, falling back to
// ~/.config/lostfound.
func ConfigDir() (string, error) {
	if base := os.Getenv("XDG_CONFIG_HOME"); base != "" {
		return filepath.Join(base, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", oops.Code("XDG_NO_HOME").With("operation", "resolve config dir").Wrap(err)
	}
	return filepath.Join(home, ".config", appName), nil
}

// ConfigFile returns the default config file path inside ConfigDir.
func ConfigFile() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}
