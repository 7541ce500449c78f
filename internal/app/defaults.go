package app

import (
	"fmt"
	"os"
	"path/filepath"

	"closet-go/internal/config"
)

// Environment variables that relocate closet's files.
const (
	EnvConfigPath = "CLOSET_CONFIG_PATH"
	EnvHome       = "CLOSET_HOME"
)

// Paths locates closet's files on this machine.
type Paths struct {
	ConfigPath string // closet.toml
	BaseDir    string
	LogDir     string // closet.log
	DataDir    string // closet.db
	KeyPath    string // age identity sealing the session token
}

// DefaultPaths resolves where closet keeps its files. CLOSET_CONFIG_PATH and
// CLOSET_HOME win; otherwise the XDG config and data homes are used, falling
// back to ~/.config and ~/.local/share.
func DefaultPaths() (Paths, error) {
	configPath := os.Getenv(EnvConfigPath)
	if configPath == "" {
		dir, err := xdgDir("XDG_CONFIG_HOME", ".config")
		if err != nil {
			return Paths{}, err
		}
		configPath = filepath.Join(dir, "closet.toml")
	}

	base := os.Getenv(EnvHome)
	if base == "" {
		dir, err := xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(dir, "closet")
	}

	return PathsUnder(base, configPath), nil
}

// PathsUnder lays out every data path below base, the same way a freshly
// initialized config does.
func PathsUnder(base, configPath string) Paths {
	cfg := config.NewConfig(base)
	return Paths{
		ConfigPath: configPath,
		BaseDir:    cfg.BaseDir,
		LogDir:     cfg.LogDir,
		DataDir:    cfg.Session.DataDir,
		KeyPath:    cfg.Encryption.KeyPath,
	}
}

// NewConfig returns the default config for these paths.
func (p Paths) NewConfig() *config.Config {
	cfg := config.NewConfig(p.BaseDir)
	cfg.LogDir = p.LogDir
	cfg.Session.DataDir = p.DataDir
	cfg.Encryption.KeyPath = p.KeyPath
	return cfg
}

// xdgDir returns $env when it is an absolute path, else fallback under the
// home directory. Relative XDG values are ignored.
func xdgDir(env, fallback string) (string, error) {
	if dir := os.Getenv(env); filepath.IsAbs(dir) {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, fallback), nil
}
