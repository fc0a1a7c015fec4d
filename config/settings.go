package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

const userConfigFile = "config.toml"

func LoadSystemConfig() (*SystemConfig, error) {
	cfg := DefaultSystemConfig()
	if err := loadOrCreate("system config", GetSettingsFilePath(), GenerateSystemConfigTemplate(), cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SystemConfigExists reports whether settings.toml is present, without
// creating it.
func SystemConfigExists() bool {
	return FileExists(GetSettingsFilePath())
}

func LoadUserConfig(dataDir string) (*UserConfig, error) {
	cfg := DefaultUserConfig()
	if err := loadOrCreate("user config", UserConfigPath(dataDir), GenerateUserConfigTemplate(), cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// UserConfigPath is the per-data-directory config.toml.
func UserConfigPath(dataDir string) string {
	return filepath.Join(dataDir, userConfigFile)
}

// loadOrCreate decodes path into cfg. A missing file is written from
// template (0600, parent 0700) and cfg keeps its defaults; an existing
// file is never overwritten.
func loadOrCreate(kind, path, template string, cfg any) error {
	_, err := toml.DecodeFile(path, cfg)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to parse %s: %w", kind, err)
	}

	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", kind, err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if errors.Is(err, fs.ErrExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", kind, err)
	}
	if _, err := f.WriteString(template); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", kind, err)
	}
	return f.Close()
}
