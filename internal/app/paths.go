package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths stores resolved locations of the user config, the default archive
// database and the diagnostic log.
type Paths struct {
	RootDir    string
	ConfigFile string
	DBFile     string
	LogFile    string
}

func ResolvePaths() (Paths, error) {
	cfgRoot, err := os.UserConfigDir()
	if err != nil {
		return Paths{}, fmt.Errorf("resolve config dir: %w", err)
	}

	root := filepath.Join(cfgRoot, Name)
	if err := os.MkdirAll(root, 0o750); err != nil {
		return Paths{}, fmt.Errorf("create app config dir: %w", err)
	}

	return Paths{
		RootDir:    root,
		ConfigFile: filepath.Join(root, ConfigFilename),
		DBFile:     filepath.Join(root, DBFilename),
		LogFile:    filepath.Join(root, LogFilename),
	}, nil
}

// ExistingConfigFile returns the user config file if one was created, or ""
// so the loader skips it.
func (p Paths) ExistingConfigFile() string {
	if _, err := os.Stat(p.ConfigFile); err != nil {
		return ""
	}

	return p.ConfigFile
}
