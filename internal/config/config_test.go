package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectCharset(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"utf8 in LANG", map[string]string{"LANG": "en_US.UTF-8"}, "utf-8"},
		{"utf8 lowercase", map[string]string{"LANG": "de_DE.utf8"}, "utf-8"},
		{"LC_ALL wins", map[string]string{"LC_ALL": "C.UTF-8", "LANG": "C"}, "utf-8"},
		{"plain C locale", map[string]string{"LANG": "C"}, "us-ascii"},
		{"empty environment", nil, "us-ascii"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			getenv := func(k string) string { return tt.env[k] }
			assert.Equal(t, tt.want, detectCharset(getenv))
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("LANG", "C")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultName, cfg.Name)
	assert.Equal(t, DefaultTimeoutMS, cfg.TimeoutMS)
	assert.Equal(t, "us-ascii", cfg.Charset)
	assert.True(t, cfg.Autocommit)
	assert.True(t, cfg.Autosort)
	assert.Contains(t, cfg.HistoryFile, ".rpcsh_history")
	assert.Contains(t, cfg.RCFile, ".rpcshrc")
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("RPCSH_TIMEOUT", "250")
	t.Setenv("RPCSH_NAME", "ops")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, 250, cfg.TimeoutMS)
	assert.Equal(t, "ops", cfg.Name)
}

func TestLoadConfigFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	content := "name: staging\nautosort: false\n"
	require.NoError(t, os.WriteFile(filepath.Join(home, ".rpcsh.yaml"), []byte(content), 0o644))

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "staging", cfg.Name)
	assert.False(t, cfg.Autosort)

	// Environment still overrides the file.
	t.Setenv("RPCSH_NAME", "prod")
	cfg, err = Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "prod", cfg.Name)
}
