package render

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/RazmikMkrtchyan/raml2html/pkg/constants"
)

//go:embed templates
var builtinTemplates embed.FS

// Theme is a named bundle of template and styling used to turn a parsed
// document into a page.
type Theme struct {
	Name        string
	Description string
	// Template is the template source text.
	Template string
	// Dir is the theme's directory on disk, empty for built-in themes.
	Dir string
	// Assets are extra files, relative to Dir, copied next to the output.
	Assets []string
}

// themeManifest is the theme.yaml layout a theme directory carries.
type themeManifest struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Template    string   `yaml:"template"`
	Assets      []string `yaml:"assets"`
}

const themeManifestName = "theme.yaml"

// builtinThemes maps built-in theme names to their embedded template file
// and a one-line description.
var builtinThemes = map[string]struct {
	file        string
	description string
}{
	constants.DefaultTheme: {
		file:        "templates/default.html.tmpl",
		description: "single page with inline styles",
	},
}

// ResolveTheme finds a theme by name. Built-in names win; otherwise the
// name is tried as a theme directory, then looked up under each search
// directory.
func ResolveTheme(name string, searchDirs []string) (*Theme, error) {
	if name == "" {
		name = constants.DefaultTheme
	}

	if b, ok := builtinThemes[name]; ok {
		data, err := builtinTemplates.ReadFile(b.file)
		if err != nil {
			return nil, fmt.Errorf("built-in theme %s: %w", name, err)
		}
		return &Theme{Name: name, Description: b.description, Template: string(data)}, nil
	}

	var candidates []string
	if strings.ContainsRune(name, os.PathSeparator) || strings.HasPrefix(name, ".") {
		candidates = append(candidates, name)
	}
	for _, dir := range searchDirs {
		candidates = append(candidates, filepath.Join(dir, name))
	}
	for _, dir := range candidates {
		theme, err := loadThemeDir(dir)
		if err == nil {
			return theme, nil
		}
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("theme %s: %w", name, err)
		}
	}

	return nil, fmt.Errorf("unknown theme %q, available: %s", name, strings.Join(availableThemeNames(searchDirs), ", "))
}

func loadThemeDir(dir string) (*Theme, error) {
	data, err := os.ReadFile(filepath.Join(dir, themeManifestName))
	if err != nil {
		return nil, err
	}
	var m themeManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", themeManifestName, err)
	}
	if m.Template == "" {
		return nil, fmt.Errorf("%s does not name a template", themeManifestName)
	}
	tmpl, err := os.ReadFile(filepath.Join(dir, m.Template))
	if err != nil {
		return nil, fmt.Errorf("reading template %s: %w", m.Template, err)
	}
	name := m.Name
	if name == "" {
		name = filepath.Base(dir)
	}
	return &Theme{
		Name:        name,
		Description: m.Description,
		Template:    string(tmpl),
		Dir:         dir,
		Assets:      m.Assets,
	}, nil
}

// ListThemes returns every theme reachable right now: built-ins plus theme
// directories found under the search directories.
func ListThemes(searchDirs []string) []*Theme {
	var themes []*Theme
	for _, name := range sortedBuiltinNames() {
		b := builtinThemes[name]
		themes = append(themes, &Theme{Name: name, Description: b.description})
	}
	for _, dir := range searchDirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			theme, err := loadThemeDir(filepath.Join(dir, entry.Name()))
			if err != nil {
				continue
			}
			themes = append(themes, theme)
		}
	}
	return themes
}

func availableThemeNames(searchDirs []string) []string {
	var names []string
	for _, t := range ListThemes(searchDirs) {
		names = append(names, t.Name)
	}
	return names
}

func sortedBuiltinNames() []string {
	names := make([]string, 0, len(builtinThemes))
	for name := range builtinThemes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
