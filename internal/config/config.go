// Package config loads console startup configuration. Precedence,
// highest to lowest: command-line flags, RPCSH_* environment variables,
// ~/.rpcsh.yaml, built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const (
	// DefaultTimeoutMS is the default remote call timeout.
	DefaultTimeoutMS = 5000

	// DefaultName is the default console display name.
	DefaultName = "rpcsh"

	historyFileName = ".rpcsh_history"
	rcFileName      = ".rpcshrc"
	configFileName  = ".rpcsh.yaml"
)

// Config is the resolved startup configuration.
type Config struct {
	Name       string `koanf:"name"`
	Charset    string `koanf:"charset"`
	TimeoutMS  int    `koanf:"timeout"`
	Autocommit bool   `koanf:"autocommit"`
	Autosort   bool   `koanf:"autosort"`
	Verbose    bool   `koanf:"verbose"`

	// HistoryFile is where the interactive line history is persisted.
	HistoryFile string `koanf:"history_file"`

	// RCFile is a line-oriented command script executed before the
	// interactive prompt appears.
	RCFile string `koanf:"rc_file"`
}

// Load resolves configuration from defaults, the optional config file,
// the environment and the given flag set (which may be nil).
func Load(flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	home, _ := os.UserHomeDir()

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"name":         DefaultName,
		"charset":      detectCharset(os.Getenv),
		"timeout":      DefaultTimeoutMS,
		"autocommit":   true,
		"autosort":     true,
		"verbose":      false,
		"history_file": filepath.Join(home, historyFileName),
		"rc_file":      filepath.Join(home, rcFileName),
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if home != "" {
		cfgFile := filepath.Join(home, configFileName)
		if _, err := os.Stat(cfgFile); err == nil {
			if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
			}
		}
	}

	// RPCSH_TIMEOUT -> timeout
	if err := k.Load(env.Provider("RPCSH_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "RPCSH_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	return &cfg, nil
}

// detectCharset derives the input charset label from the process locale
// environment, defaulting to a 7-bit-safe charset when no UTF-8 hint is
// present. getenv is injectable for tests.
func detectCharset(getenv func(string) string) string {
	for _, key := range []string{"LC_ALL", "LC_CTYPE", "LANG"} {
		v := getenv(key)
		if v == "" {
			continue
		}
		lower := strings.ToLower(v)
		if strings.Contains(lower, "utf-8") || strings.Contains(lower, "utf8") {
			return "utf-8"
		}
	}
	return "us-ascii"
}
