package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/yosssi/gohtml"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmparser "github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/RazmikMkrtchyan/raml2html/pkg/constants"
	"github.com/RazmikMkrtchyan/raml2html/pkg/raml"
)

// Failure is what a render run reports when it cannot produce a document.
// It may carry a primary message, structured parser diagnostics, or both;
// callers handle each independently.
type Failure struct {
	Message      string
	ParserErrors raml.ErrorList
}

func (f *Failure) Error() string {
	if f.Message != "" {
		return f.Message
	}
	if len(f.ParserErrors) > 0 {
		return f.ParserErrors.Error()
	}
	return "render failed"
}

// Result is a successfully rendered document. Warnings collected along the
// way ride along so the caller can surface them without failing the run.
type Result struct {
	HTML     []byte
	Warnings raml.ErrorList
}

// Render parses the input document and renders it through the configured
// template or theme. A document with hard errors never renders; one with
// only warnings does.
func Render(ctx context.Context, inputPath string, cfg *Config, opts Options) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Failure{Message: err.Error()}
	}

	api, errs := raml.ParseWithExtensions(inputPath, opts.ExtensionsAndOverlays)
	if opts.Validate && api != nil {
		errs = append(errs, raml.Validate(api)...)
		errs = append(errs, raml.ValidateExamples(api)...)
	}
	if api == nil || errs.HasErrors() {
		return nil, &Failure{ParserErrors: errs}
	}

	if err := ctx.Err(); err != nil {
		return nil, &Failure{Message: err.Error()}
	}

	name, src, err := cfg.templateSource()
	if err != nil {
		return nil, &Failure{Message: err.Error()}
	}
	page, err := executeTemplate(name, src, api)
	if err != nil {
		return nil, &Failure{Message: err.Error()}
	}
	if opts.Pretty {
		page = gohtml.FormatBytes(page)
	}
	return &Result{HTML: page, Warnings: errs}, nil
}

// templateSource picks the template text for this run: the explicit
// template file when one was given, else the resolved theme.
func (c *Config) templateSource() (name, src string, err error) {
	if c != nil && c.TemplatePath != "" {
		data, err := os.ReadFile(c.TemplatePath)
		if err != nil {
			return "", "", fmt.Errorf("cannot read template %s: %v", c.TemplatePath, err)
		}
		return filepath.Base(c.TemplatePath), string(data), nil
	}
	if c != nil && c.Theme != nil {
		return c.Theme.Name, c.Theme.Template, nil
	}
	theme, err := ResolveTheme("", nil)
	if err != nil {
		return "", "", err
	}
	return theme.Name, theme.Template, nil
}

// pageData is the root value handed to a theme template.
type pageData struct {
	API  *raml.API
	Tool string
}

func executeTemplate(name, src string, api *raml.API) ([]byte, error) {
	tmpl, err := template.New(name).Funcs(templateFuncs()).Parse(src)
	if err != nil {
		return nil, fmt.Errorf("cannot parse template %s: %v", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, pageData{API: api, Tool: constants.CLIName}); err != nil {
		return nil, fmt.Errorf("template %s failed: %v", name, err)
	}
	return buf.Bytes(), nil
}

// templateFuncs are the helpers every theme template can call.
func templateFuncs() template.FuncMap {
	md := goldmark.New(
		goldmark.WithExtensions(extension.Table, extension.Linkify),
		goldmark.WithParserOptions(gmparser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
	)
	return template.FuncMap{
		"markdown": func(s string) (template.HTML, error) {
			var buf bytes.Buffer
			if err := md.Convert([]byte(s), &buf); err != nil {
				return "", err
			}
			return template.HTML(buf.String()), nil
		},
		"anchor":     anchorID,
		"statusText": statusText,
		"upper":      strings.ToUpper,
		"lower":      strings.ToLower,
		"join": func(items []string, sep string) string {
			return strings.Join(items, sep)
		},
		"pre": preformat,
		// templates print pointer-valued facets through these so a set
		// value renders as the number, not an address
		"intval":   func(p *int) int { return *p },
		"floatval": func(p *float64) float64 { return *p },
	}
}

// anchorID turns free text into a stable fragment identifier.
func anchorID(s string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case r == '{' || r == '}':
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// statusText names an HTTP status code, empty for codes the net/http table
// does not know.
func statusText(code string) string {
	n, err := strconv.Atoi(code)
	if err != nil {
		return ""
	}
	return http.StatusText(n)
}

// preformat renders an example or default value for a <pre> block. Strings
// pass through untouched, everything else becomes indented JSON.
func preformat(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	}
	buf, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(buf)
}
