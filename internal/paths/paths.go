// Package paths provides centralized path resolution for wabot.
// This package has NO internal imports (only stdlib) to avoid import cycles.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

// HomeEnv overrides the data directory when set.
const HomeEnv = "WABOT_HOME"

// SettingsNames lists the accepted settings file names, in lookup order.
var SettingsNames = []string{"wabot.json", "wabot.yaml", "wabot.yml", "wabot.toml"}

// BaseDir returns the wabot data directory ($WABOT_HOME or ~/.wabot).
func BaseDir() (string, error) {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return ExpandTilde(dir)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".wabot"), nil
}

// DataPath returns a path within the data directory.
func DataPath(subpath string) (string, error) {
	base, err := BaseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, subpath), nil
}

// SettingsPath returns the active settings file.
// Priority: working directory, then the data directory. The first name in
// SettingsNames that exists wins.
// Returns ("", nil) if none exists; defaults apply in that case.
func SettingsPath() (string, error) {
	for _, name := range SettingsNames {
		if _, err := os.Stat(name); err == nil {
			abs, err := filepath.Abs(name)
			if err != nil {
				return "", fmt.Errorf("failed to get absolute path: %w", err)
			}
			return abs, nil
		}
	}

	base, err := BaseDir()
	if err != nil {
		return "", err
	}
	for _, name := range SettingsNames {
		p := filepath.Join(base, name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", nil
}

// SessionDBPath returns the whatsmeow session database under dataDir.
func SessionDBPath(dataDir string) string {
	return filepath.Join(dataDir, "whatsapp.db")
}

// EnsureDir creates a directory if it doesn't exist.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return nil
}

// EnsureParentDir creates the parent directory of a file path if it doesn't exist.
func EnsureParentDir(filePath string) error {
	return EnsureDir(filepath.Dir(filePath))
}

// ExpandTilde expands a leading ~ to the user's home directory.
func ExpandTilde(path string) (string, error) {
	if len(path) == 0 || path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	if len(path) == 1 {
		return home, nil
	}
	return filepath.Join(home, path[1:]), nil
}
