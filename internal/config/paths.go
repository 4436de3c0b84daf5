// ABOUTME: Standard filesystem paths for genai-go configuration
// ABOUTME: Resolves $XDG_CONFIG_HOME/genai-go/ for global and .genai-go.* for project-local files

package config

import (
	"os"
	"path/filepath"
)

const (
	appName           = "genai-go"
	projectFileStem   = ".genai-go"
	globalFileStem    = "config"
	defaultConfigPerm = 0o600
)

// configExtensions lists accepted config file extensions in lookup order.
var configExtensions = []string{".yaml", ".yml", ".json"}

// GlobalDir returns the user-global config directory.
func GlobalDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", "."+appName)
	}
	return filepath.Join(dir, appName)
}

// GlobalConfigFile returns the first existing global config file, or the
// default YAML path when none exists.
func GlobalConfigFile() string {
	return firstExisting(filepath.Join(GlobalDir(), globalFileStem))
}

// ProjectConfigFile returns the first existing project config file under
// projectRoot, or the default YAML path when none exists.
func ProjectConfigFile(projectRoot string) string {
	return firstExisting(filepath.Join(projectRoot, projectFileStem))
}

func firstExisting(stem string) string {
	for _, ext := range configExtensions {
		if _, err := os.Stat(stem + ext); err == nil {
			return stem + ext
		}
	}
	return stem + configExtensions[0]
}

// EnsureDir creates a directory and all parents if they don't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o700)
}

// JournalFile returns the path of the interaction cursor journal.
func JournalFile() string {
	return filepath.Join(GlobalDir(), "cursors.jsonl")
}
