package config

import (
	"os"
	"path/filepath"
)

// HomeEnv overrides the home directory.
const HomeEnv = "NOTESPOINTER_HOME"

// Paths contains the files notespointer reads by default.
type Paths struct {
	Home    string // Home directory
	Config  string // YAML configuration file
	Scripts string // Pointer scripts directory
}

// GetPaths returns the default layout under GetHome.
func GetPaths() Paths {
	home := GetHome()
	return Paths{
		Home:    home,
		Config:  filepath.Join(home, "config.yaml"),
		Scripts: filepath.Join(home, "scripts"),
	}
}

// GetHome returns $NOTESPOINTER_HOME, or ~/.notespointer when unset.
func GetHome() string {
	if env := os.Getenv(HomeEnv); env != "" {
		return ExpandPath(env)
	}
	userHome, _ := os.UserHomeDir()
	return filepath.Join(userHome, ".notespointer")
}

// ExpandPath expands ~ to the user home directory.
func ExpandPath(path string) string {
	if len(path) == 0 {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) == 1 {
			return home
		}
		if path[1] == '/' || path[1] == os.PathSeparator {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// EnsureDirs creates the home and scripts directories.
func EnsureDirs() (Paths, error) {
	paths := GetPaths()
	for _, dir := range []string{paths.Home, paths.Scripts} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return paths, err
		}
	}
	return paths, nil
}
