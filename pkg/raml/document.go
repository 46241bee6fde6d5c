package raml

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml/ast"
	"github.com/goccy/go-yaml/parser"

	"github.com/RazmikMkrtchyan/raml2html/pkg/constants"
)

// maxIncludeDepth caps transitive !include chains so a malformed document
// cannot recurse forever.
const maxIncludeDepth = 10

// document is one loaded source file: the root RAML document or any
// !include target that parses as YAML.
type document struct {
	abs      string // absolute path on disk
	rel      string // path relative to the root document's directory
	fragment string // RAML fragment identifier ("DataType", "Overlay", ...), empty for plain documents
	body     ast.Node
	// ancestors lists the documents that transitively included this one,
	// outermost first. Used for cycle detection and include traces.
	ancestors []string
}

// loader reads and caches source files for one parse run. Parsed ASTs are
// cached by absolute path; document wrappers are fresh per inclusion site so
// each carries its own ancestry.
type loader struct {
	rootDir string
	asts    map[string]*parsedFile
	raw     map[string][]byte
}

type parsedFile struct {
	body     ast.Node
	fragment string
}

func newLoader(rootDir string) *loader {
	return &loader{
		rootDir: rootDir,
		asts:    make(map[string]*parsedFile),
		raw:     make(map[string][]byte),
	}
}

func (l *loader) relPath(abs string) string {
	rel, err := filepath.Rel(l.rootDir, abs)
	if err != nil {
		return abs
	}
	return rel
}

// loadRoot reads and parses the input document. The first line must be the
// #%RAML 1.0 header; fragment headers are rejected at the root.
func (l *loader) loadRoot(path string) (*document, ErrorList) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	rel := l.relPath(abs)

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, ErrorList{{
			Code:    CodeYAMLParse,
			Message: fmt.Sprintf("cannot read %s: %v", path, readErrReason(err)),
			Path:    rel,
		}}
	}

	header, fragment, ok := parseHeader(data)
	if !ok {
		return nil, ErrorList{{
			Code:    CodeInvalidHeader,
			Message: fmt.Sprintf("missing %s header on the first line", constants.RAMLHeader),
			Path:    rel,
			Range:   &Range{Start: Position{Line: 1, Column: 1}},
		}}
	}
	if "#%RAML "+header != constants.RAMLHeader {
		return nil, ErrorList{{
			Code:    CodeInvalidHeader,
			Message: fmt.Sprintf("unsupported RAML version %q, only 1.0 is supported", header),
			Path:    rel,
			Range:   &Range{Start: Position{Line: 1, Column: 1}},
		}}
	}
	if fragment != "" {
		return nil, ErrorList{{
			Code:    CodeUnsupportedFragment,
			Message: fmt.Sprintf("a %s fragment cannot be rendered directly, pass the root API document", fragment),
			Path:    rel,
			Range:   &Range{Start: Position{Line: 1, Column: 1}},
		}}
	}

	body, perr := l.parseYAML(abs, rel, data)
	if perr != nil {
		return nil, ErrorList{*perr}
	}
	if body == nil {
		return nil, ErrorList{{
			Code:    CodeEmptyDocument,
			Message: "document contains no content",
			Path:    rel,
			Range:   &Range{Start: Position{Line: 1, Column: 1}},
		}}
	}

	l.asts[abs] = &parsedFile{body: body, fragment: fragment}
	return &document{abs: abs, rel: rel, body: body}, nil
}

// loadAux reads and parses a secondary YAML document (an extension or
// overlay passed on the command line). Fragment headers are allowed here and
// reported back to the caller.
func (l *loader) loadAux(path string) (*document, *ParserError) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	rel := l.relPath(abs)

	data, err := os.ReadFile(abs)
	if err != nil {
		e := ParserError{
			Code:    CodeYAMLParse,
			Message: fmt.Sprintf("cannot read %s: %v", path, readErrReason(err)),
			Path:    rel,
		}
		return nil, &e
	}

	_, fragment, _ := parseHeader(data)
	body, perr := l.parseYAML(abs, rel, data)
	if perr != nil {
		return nil, perr
	}
	return &document{abs: abs, rel: rel, fragment: fragment, body: body}, nil
}

// include resolves a !include target relative to the including document.
// Targets with YAML extensions are parsed and spliced in as documents;
// anything else (JSON schemas, XSD, markdown, examples) is returned as raw
// text with a nil document.
func (l *loader) include(from *document, target string, at sourceRef) (*document, string, *ParserError) {
	if len(from.ancestors) >= maxIncludeDepth {
		e := at.errorf(CodeIncludeDepth, "include chain exceeds %d levels", maxIncludeDepth)
		return nil, "", &e
	}

	abs := target
	if !filepath.IsAbs(target) {
		abs = filepath.Join(filepath.Dir(from.abs), target)
	}
	rel := l.relPath(abs)

	for _, ancestor := range append(from.ancestors, from.abs) {
		if ancestor == abs {
			e := at.errorf(CodeIncludeCycle, "%s is already being included", rel)
			return nil, "", &e
		}
	}

	data, ok := l.raw[abs]
	if !ok {
		var err error
		data, err = os.ReadFile(abs)
		if err != nil {
			e := at.errorf(CodeIncludeNotFound, "cannot resolve include %s: %v", target, readErrReason(err))
			return nil, "", &e
		}
		l.raw[abs] = data
	}

	if !isYAMLInclude(abs) {
		return nil, string(data), nil
	}

	cached, ok := l.asts[abs]
	if !ok {
		_, fragment, _ := parseHeader(data)
		body, perr := l.parseYAML(abs, rel, data)
		if perr != nil {
			// The include site is the useful location; the parse failure
			// inside the included file rides along as the trace.
			e := at.errorf(CodeIncludeNotFound, "cannot parse include %s", target)
			e.Trace = []ParserError{*perr}
			return nil, "", &e
		}
		cached = &parsedFile{body: body, fragment: fragment}
		l.asts[abs] = cached
	}

	doc := &document{
		abs:       abs,
		rel:       rel,
		fragment:  cached.fragment,
		body:      cached.body,
		ancestors: append(append([]string(nil), from.ancestors...), from.abs),
	}
	return doc, "", nil
}

func (l *loader) parseYAML(abs, rel string, data []byte) (ast.Node, *ParserError) {
	file, err := parser.ParseBytes(data, 0)
	if err != nil {
		line, column, msg := extractYAMLPosition(err)
		e := ParserError{
			Code:    CodeYAMLParse,
			Message: msg,
			Path:    rel,
		}
		if line > 0 {
			e.Range = &Range{Start: Position{Line: line, Column: column}}
		}
		return nil, &e
	}
	if file == nil || len(file.Docs) == 0 || file.Docs[0].Body == nil {
		return nil, nil
	}
	return file.Docs[0].Body, nil
}

// parseHeader inspects the first line of a RAML source. It returns the
// version string and the fragment identifier when the line is a RAML header.
func parseHeader(data []byte) (version string, fragment string, ok bool) {
	line := string(data)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimRight(line, " \t\r")
	if !strings.HasPrefix(line, "#%RAML ") {
		return "", "", false
	}
	rest := strings.TrimPrefix(line, "#%RAML ")
	parts := strings.Fields(rest)
	if len(parts) == 0 {
		return "", "", false
	}
	version = parts[0]
	if len(parts) > 1 {
		fragment = strings.Join(parts[1:], " ")
	}
	return version, fragment, true
}

func isYAMLInclude(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".raml", ".yaml", ".yml":
		return true
	}
	return false
}

// readErrReason strips the "open <path>: " prefix the os package adds, the
// path is already part of the surrounding message.
func readErrReason(err error) string {
	if pe, ok := err.(*os.PathError); ok {
		return pe.Err.Error()
	}
	return err.Error()
}
