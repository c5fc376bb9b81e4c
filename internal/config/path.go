package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileName is the configuration file name looked up by FindPath.
const FileName = "tgplug.yaml"

// SearchPaths returns the locations FindPath checks, in order:
// $XDG_CONFIG_HOME/tgplug, ~/.config/tgplug, then the working directory.
func SearchPaths() []string {
	var paths []string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, "tgplug", FileName))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "tgplug", FileName))
	}
	return append(paths, FileName)
}

// FindPath returns explicit when set, otherwise the first existing file
// from SearchPaths.
func FindPath(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	for _, p := range SearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("config: checking %s: %w", p, err)
		}
	}
	return "", fmt.Errorf("config: no %s found (searched %v)", FileName, SearchPaths())
}

// DefaultDataDir returns the directory for persistent data when the
// configuration does not set one: $XDG_DATA_HOME/tgplug or
// ~/.local/share/tgplug.
func DefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "tgplug")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "tgplug")
	}
	return filepath.Join(".", "data")
}
