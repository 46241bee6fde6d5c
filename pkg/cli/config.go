package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/RazmikMkrtchyan/raml2html/pkg/constants"
)

// FileConfig holds defaults read from a raml2html.toml placed next to the
// input document or in the working directory. Command-line flags that were
// set explicitly take precedence over it.
type FileConfig struct {
	// Theme names the theme to render with.
	Theme string `toml:"theme"`

	// ThemeDirs lists extra directories searched for themes. Relative
	// entries are resolved against the config file's directory.
	ThemeDirs []string `toml:"theme_dirs"`

	// Template points at a standalone template file.
	Template string `toml:"template"`

	// Pretty enables HTML pretty-printing.
	Pretty bool `toml:"pretty"`

	// Validate enables validation of the parsed document.
	Validate bool `toml:"validate"`
}

// LoadFileConfig reads the first raml2html.toml found in dirs, in order.
// Returns nil config and nil error when none exists.
func LoadFileConfig(dirs ...string) (*FileConfig, error) {
	for _, dir := range dirs {
		cfg, err := loadFileConfigPath(filepath.Join(dir, constants.ConfigFileName))
		if err != nil {
			return nil, err
		}
		if cfg != nil {
			return cfg, nil
		}
	}
	return nil, nil
}

func loadFileConfigPath(path string) (*FileConfig, error) {
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	base := filepath.Dir(path)
	for i, dir := range cfg.ThemeDirs {
		if !filepath.IsAbs(dir) {
			cfg.ThemeDirs[i] = filepath.Join(base, dir)
		}
	}
	return &cfg, nil
}
