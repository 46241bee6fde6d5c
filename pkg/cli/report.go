package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/RazmikMkrtchyan/raml2html/pkg/console"
	"github.com/RazmikMkrtchyan/raml2html/pkg/raml"
	"github.com/RazmikMkrtchyan/raml2html/pkg/render"
)

// reportFailure writes a render failure to stderr. The top-level message and
// the parser diagnostics are independent; either may be absent.
func reportFailure(f *render.Failure, opts RenderOptions) {
	errs := f.ParserErrors
	if opts.SuppressWarnings {
		errs = errs.WithoutWarnings()
	}

	if opts.RawErrors {
		// Raw mode replaces only the per-error formatter; the top-level
		// message still reports on its own line above the dump.
		if f.Message != "" {
			fmt.Fprintln(os.Stderr, console.FormatErrorMessage(f.Message))
		}
		writeRawDump(errs, opts.PrettyErrors)
		return
	}

	fmt.Fprintln(os.Stderr, console.FormatErrorMessage(fmt.Sprintf("Error parsing %s", opts.Input)))
	if f.Message != "" {
		fmt.Fprintln(os.Stderr, console.FormatErrorMessage(f.Message))
	}
	writeDiagnostics(errs, opts)
}

// reportWarnings writes the warnings of an otherwise successful render.
func reportWarnings(warnings raml.ErrorList, opts RenderOptions) {
	if opts.SuppressWarnings {
		return
	}
	if opts.RawErrors {
		writeRawDump(warnings, opts.PrettyErrors)
		return
	}
	writeDiagnostics(warnings, opts)
}

// writeRawDump prints the collection as a single JSON array. An absent
// collection dumps as an empty array, never null.
func writeRawDump(errs raml.ErrorList, pretty bool) {
	if errs == nil {
		errs = raml.ErrorList{}
	}
	var (
		data []byte
		err  error
	)
	if pretty {
		data, err = json.MarshalIndent(errs, "", "  ")
	} else {
		data, err = json.Marshal(errs)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, console.FormatErrorMessage(fmt.Sprintf("failed to encode diagnostics: %v", err)))
		return
	}
	fmt.Fprintln(os.Stderr, string(data))
}

func writeDiagnostics(errs raml.ErrorList, opts RenderOptions) {
	dir := filepath.Dir(opts.Input)
	for i, e := range errs {
		if opts.PrettyErrors && i > 0 {
			fmt.Fprintln(os.Stderr)
		}
		fmt.Fprintln(os.Stderr, console.FormatParserError(e, dir))
	}
}
