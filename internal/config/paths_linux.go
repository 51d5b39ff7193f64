package config

import (
	"os"
	"path/filepath"
)

func configSearchPaths() []string {
	paths := []string{DefaultPath}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, "acs", "acs.toml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "acs", "acs.toml"))
	}
	return paths
}
