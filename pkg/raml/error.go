package raml

import (
	"fmt"
	"strings"
)

// Position is a 1-based location in a source document, as reported by the
// YAML tokenizer. Values are preserved exactly; the formatter never adjusts
// them.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Range marks where a diagnostic originates. Only Start is guaranteed; End
// is present when the tokenizer can tell where the offending value stops.
type Range struct {
	Start Position  `json:"start"`
	End   *Position `json:"end,omitempty"`
}

// ParserError is a structured diagnostic produced while parsing or
// validating a RAML document. Instances are immutable once returned;
// consumers only read and format them.
type ParserError struct {
	// Code is a short machine-readable identifier for the error class.
	Code string `json:"code"`
	// Message is the human-readable description.
	Message string `json:"message"`
	// Path is the file the diagnostic refers to, relative to the input
	// document's directory. Empty when no file is involved.
	Path string `json:"path,omitempty"`
	// Range locates the diagnostic inside Path. Nil when unknown.
	Range *Range `json:"range,omitempty"`
	// IsWarning distinguishes warnings from hard errors.
	IsWarning bool `json:"isWarning"`
	// Trace is the chain of causally related parent diagnostics, innermost
	// cause first. Formatters follow only the first entry at each level.
	Trace []ParserError `json:"trace,omitempty"`
}

// Error implements the error interface.
func (e ParserError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}

// Diagnostic codes emitted by this package.
const (
	CodeYAMLParse           = "YAML_PARSE"
	CodeInvalidHeader       = "INVALID_HEADER"
	CodeEmptyDocument       = "EMPTY_DOCUMENT"
	CodeIncludeNotFound     = "INCLUDE_NOT_FOUND"
	CodeIncludeCycle        = "INCLUDE_CYCLE"
	CodeIncludeDepth        = "INCLUDE_DEPTH"
	CodeInvalidStructure    = "INVALID_STRUCTURE"
	CodeMissingTitle        = "MISSING_TITLE"
	CodeUnknownMethod       = "UNKNOWN_METHOD"
	CodeInvalidStatusCode   = "INVALID_STATUS_CODE"
	CodeUnresolvedType      = "UNRESOLVED_TYPE"
	CodeUnresolvedTrait     = "UNRESOLVED_TRAIT"
	CodeUnresolvedResType   = "UNRESOLVED_RESOURCE_TYPE"
	CodeDuplicateURIParam   = "DUPLICATE_URI_PARAM"
	CodeUnusedType          = "UNUSED_TYPE"
	CodeExampleInvalid      = "EXAMPLE_INVALID"
	CodeSchemaInvalid       = "SCHEMA_INVALID"
	CodeInvalidOverlay      = "INVALID_OVERLAY"
	CodeInvalidExtension    = "INVALID_EXTENSION"
	CodeUnsupportedFragment = "UNSUPPORTED_FRAGMENT"
)

// ErrorList is an ordered collection of diagnostics. It satisfies error so a
// parse or validation pass can hand its whole result up the call chain.
type ErrorList []ParserError

// Error implements the error interface.
func (l ErrorList) Error() string {
	switch len(l) {
	case 0:
		return "no errors"
	case 1:
		return l[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d problems found", len(l))
	for _, e := range l {
		b.WriteString("\n  ")
		b.WriteString(e.Error())
	}
	return b.String()
}

// HasErrors reports whether the list contains at least one non-warning entry.
func (l ErrorList) HasErrors() bool {
	for _, e := range l {
		if !e.IsWarning {
			return true
		}
	}
	return false
}

// WithoutWarnings returns a copy of the list with warning entries removed.
func (l ErrorList) WithoutWarnings() ErrorList {
	out := make(ErrorList, 0, len(l))
	for _, e := range l {
		if !e.IsWarning {
			out = append(out, e)
		}
	}
	return out
}

// dedupe drops diagnostics that repeat an identical code, message, and
// location. The decoder can resolve the same node on two paths, a failing
// include for instance, and the user only needs to hear about it once.
func (l ErrorList) dedupe() ErrorList {
	seen := make(map[string]bool, len(l))
	out := make(ErrorList, 0, len(l))
	for _, e := range l {
		key := e.Code + "\x00" + e.Message + "\x00" + e.Path
		if e.Range != nil {
			key += fmt.Sprintf("\x00%d:%d", e.Range.Start.Line, e.Range.Start.Column)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
	}
	return out
}

// sourceRef ties a decoded model element back to its origin, so validation
// can point at the exact key or value that produced a diagnostic.
type sourceRef struct {
	path string // relative to the root document's directory
	rng  *Range
}

func (s sourceRef) errorf(code string, format string, args ...any) ParserError {
	return ParserError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Path:    s.path,
		Range:   s.rng,
	}
}

func (s sourceRef) warningf(code string, format string, args ...any) ParserError {
	e := s.errorf(code, format, args...)
	e.IsWarning = true
	return e
}
