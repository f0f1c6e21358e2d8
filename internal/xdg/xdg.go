// Package xdg resolves XDG Base Directory paths for the indexsupply CLI.
// Both directories are created with private permissions when missing.
package xdg

import (
	"os"
	"path/filepath"
)

const appName = "indexsupply"

// ConfigDir returns $XDG_CONFIG_HOME/indexsupply, falling back to
// ~/.config/indexsupply.
func ConfigDir() (string, error) {
	return appDir("XDG_CONFIG_HOME", ".config")
}

// StateDir returns $XDG_STATE_HOME/indexsupply, falling back to
// ~/.local/state/indexsupply. The file keyring backend keeps its data here.
func StateDir() (string, error) {
	return appDir("XDG_STATE_HOME", filepath.Join(".local", "state"))
}

func appDir(env, fallback string) (string, error) {
	base := os.Getenv(env)
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, fallback)
	}
	dir := filepath.Join(base, appName)
	if err := os.MkdirAll(dir, 0o700); err != nil { // private dir
		return "", err
	}
	return dir, nil
}
