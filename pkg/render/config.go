package render

import (
	"fmt"
	"os"
	"path/filepath"
)

// Options carries the command line knobs a render run honors.
type Options struct {
	// Validate enables the structural and example checks on top of parsing.
	Validate bool
	// Pretty reindents the generated HTML for human reading.
	Pretty bool
	// ExtensionsAndOverlays lists extension and overlay documents applied
	// on top of the input, in order.
	ExtensionsAndOverlays []string
}

// Config binds a render run to exactly one template source: an explicit
// template file, or a resolved theme. The two are never mixed.
type Config struct {
	// TemplatePath is the user-supplied template, taking precedence over
	// any theme.
	TemplatePath string
	// Theme is the resolved theme when no explicit template was given.
	Theme *Theme
	// Writer overrides the default output destination handling. Themes
	// that ship assets install their own writer here.
	Writer OutputWriter
}

// ConfigForTemplate binds the run to an explicit template file, bypassing
// theme resolution entirely.
func ConfigForTemplate(path string) *Config {
	return &Config{TemplatePath: path}
}

// ConfigForTheme resolves a named theme. The name is either a built-in
// theme or a directory carrying a theme manifest; searchDirs lists extra
// directories to look in.
func ConfigForTheme(name string, searchDirs []string) (*Config, error) {
	theme, err := ResolveTheme(name, searchDirs)
	if err != nil {
		return nil, err
	}
	cfg := &Config{Theme: theme}
	if len(theme.Assets) > 0 {
		cfg.Writer = &assetWriter{theme: theme}
	}
	return cfg, nil
}

// OutputWriter delivers a rendered document to its destination. An empty
// output path means standard output.
type OutputWriter interface {
	Write(result []byte, outputPath string) error
}

// WriterFor returns the writer the config mandates, or the default one.
func (c *Config) WriterFor() OutputWriter {
	if c != nil && c.Writer != nil {
		return c.Writer
	}
	return defaultWriter{}
}

type defaultWriter struct{}

func (defaultWriter) Write(result []byte, outputPath string) error {
	if outputPath == "" {
		_, err := os.Stdout.Write(result)
		return err
	}
	return os.WriteFile(outputPath, result, 0o644)
}

// assetWriter writes the document and copies the theme's asset files next
// to it. Writing to stdout skips the assets, there is nowhere to put them.
type assetWriter struct {
	theme *Theme
}

func (w *assetWriter) Write(result []byte, outputPath string) error {
	if err := (defaultWriter{}).Write(result, outputPath); err != nil {
		return err
	}
	if outputPath == "" {
		return nil
	}
	destDir := filepath.Dir(outputPath)
	for _, asset := range w.theme.Assets {
		src := filepath.Join(w.theme.Dir, asset)
		data, err := os.ReadFile(src)
		if err != nil {
			return fmt.Errorf("theme asset %s: %w", asset, err)
		}
		dest := filepath.Join(destDir, filepath.Base(asset))
		if err := os.WriteFile(dest, data, 0o644); err != nil {
			return fmt.Errorf("theme asset %s: %w", asset, err)
		}
	}
	return nil
}
