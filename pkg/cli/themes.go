package cli

import (
	"fmt"

	"github.com/RazmikMkrtchyan/raml2html/pkg/console"
	"github.com/RazmikMkrtchyan/raml2html/pkg/render"
)

// ListThemes prints the themes available to --theme, including any found in
// the extra search directories.
func ListThemes(searchDirs []string) {
	themes := render.ListThemes(searchDirs)

	rows := make([][]string, 0, len(themes))
	for _, theme := range themes {
		source := "built-in"
		if theme.Dir != "" {
			source = console.ToRelativePath(theme.Dir)
		}
		rows = append(rows, []string{theme.Name, theme.Description, source})
	}

	table := console.RenderTable(console.TableConfig{
		Title:   "Available Themes",
		Headers: []string{"Name", "Description", "Source"},
		Rows:    rows,
	})
	fmt.Print(table)
}
