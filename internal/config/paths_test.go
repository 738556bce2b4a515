package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHomeDefault(t *testing.T) {
	t.Setenv(HomeEnv, "")
	userHome, _ := os.UserHomeDir()
	assert.Equal(t, filepath.Join(userHome, ".notespointer"), GetHome())
}

func TestGetHomeFromEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(HomeEnv, dir)

	paths := GetPaths()
	assert.Equal(t, dir, paths.Home)
	assert.Equal(t, filepath.Join(dir, "config.yaml"), paths.Config)
	assert.Equal(t, filepath.Join(dir, "scripts"), paths.Scripts)
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()
	tests := []struct {
		input string
		want  string
	}{
		{"~/test", filepath.Join(home, "test")},
		{"~", home},
		{"/absolute/path", "/absolute/path"},
		{"relative/path", "relative/path"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExpandPath(tt.input), tt.input)
	}
}

func TestEnsureDirs(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "home")
	t.Setenv(HomeEnv, dir)

	paths, err := EnsureDirs()
	require.NoError(t, err)
	for _, d := range []string{paths.Home, paths.Scripts} {
		info, err := os.Stat(d)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
