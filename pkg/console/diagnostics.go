package console

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/RazmikMkrtchyan/raml2html/pkg/raml"
)

// FormatParserError renders one diagnostic with its cause chain. The root
// line is colorized by severity; nested causes are printed plain whatever
// their own severity, so the eye lands on the outermost message. Only the
// first cause at each level is followed.
func FormatParserError(e raml.ParserError, inputDir string) string {
	var b strings.Builder
	line := diagnosticLine(e, inputDir)
	if e.IsWarning {
		line = applyErrStyle(warningStyle, line)
	} else {
		line = applyErrStyle(errorStyle, line)
	}
	b.WriteString(line)
	writeNested(&b, e.Trace, inputDir, 1)
	return b.String()
}

func writeNested(b *strings.Builder, trace []raml.ParserError, inputDir string, depth int) {
	if len(trace) == 0 {
		return
	}
	first := trace[0]
	b.WriteString("\n")
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(diagnosticLine(first, inputDir))
	writeNested(b, first.Trace, inputDir, depth+1)
}

// diagnosticLine composes "CODE: message (path:line:column)". Every part
// beyond the message is optional and simply omitted when absent.
func diagnosticLine(e raml.ParserError, inputDir string) string {
	msg := e.Message
	if e.Code != "" {
		msg = e.Code + ": " + e.Message
	}
	if loc := diagnosticLocation(e, inputDir); loc != "" {
		msg += " (" + loc + ")"
	}
	return msg
}

func diagnosticLocation(e raml.ParserError, inputDir string) string {
	if e.Path == "" {
		return ""
	}
	loc := filepath.Join(inputDir, e.Path)
	if e.Range != nil {
		loc = fmt.Sprintf("%s:%d:%d", loc, e.Range.Start.Line, e.Range.Start.Column)
	}
	return loc
}
