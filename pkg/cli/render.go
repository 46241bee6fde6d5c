package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/RazmikMkrtchyan/raml2html/pkg/console"
	"github.com/RazmikMkrtchyan/raml2html/pkg/render"
)

// ErrAlreadyReported signals that diagnostics were already written to stderr
// and the process should exit non-zero without printing anything further.
var ErrAlreadyReported = errors.New("already reported")

// RenderOptions controls a single document conversion.
type RenderOptions struct {
	Input                 string
	Output                string
	Template              string
	Theme                 string
	ThemeDirs             []string
	Validate              bool
	RawErrors             bool
	SuppressWarnings      bool
	Pretty                bool
	PrettyErrors          bool
	ExtensionsAndOverlays []string
	Verbose               bool
	Watch                 bool
}

// RenderDocument parses opts.Input, renders it through the selected theme or
// template file, and writes the HTML to opts.Output (stdout when empty).
func RenderDocument(ctx context.Context, opts RenderOptions) error {
	cfg, err := renderConfig(opts)
	if err != nil {
		return err
	}

	if opts.Verbose {
		logVerbose(opts, fmt.Sprintf("Rendering %s", opts.Input))
	}

	// The spinner shares stdout with the rendered document, so it only runs
	// when the document goes to a file.
	var spin *console.SpinnerWrapper
	if opts.Output != "" {
		spin = console.NewSpinner("Rendering documentation...")
		spin.Start()
	}

	result, err := render.Render(ctx, opts.Input, cfg, render.Options{
		Validate:              opts.Validate,
		Pretty:                opts.Pretty,
		ExtensionsAndOverlays: opts.ExtensionsAndOverlays,
	})

	if spin != nil {
		spin.Stop()
	}

	if err != nil {
		var failure *render.Failure
		if errors.As(err, &failure) {
			reportFailure(failure, opts)
			return ErrAlreadyReported
		}
		return err
	}

	if len(result.Warnings) > 0 {
		reportWarnings(result.Warnings, opts)
	}

	if err := cfg.WriterFor().Write(result.HTML, opts.Output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if opts.Output != "" {
		fmt.Println(console.FormatSuccessMessage(fmt.Sprintf("Generated %s", console.ToRelativePath(opts.Output))))
	}

	return nil
}

// renderConfig picks the template source. An explicit template file wins over
// the theme flag.
func renderConfig(opts RenderOptions) (*render.Config, error) {
	if opts.Template != "" {
		if opts.Verbose {
			logVerbose(opts, fmt.Sprintf("Using template file: %s", opts.Template))
		}
		return render.ConfigForTemplate(opts.Template), nil
	}
	cfg, err := render.ConfigForTheme(opts.Theme, opts.ThemeDirs)
	if err != nil {
		return nil, err
	}
	if opts.Verbose && cfg.Theme != nil {
		logVerbose(opts, fmt.Sprintf("Using theme: %s", cfg.Theme.Name))
	}
	return cfg, nil
}

// logVerbose keeps progress chatter off stdout when the document itself is
// being written there.
func logVerbose(opts RenderOptions, message string) {
	if opts.Output != "" {
		fmt.Println(console.FormatVerboseMessage(message))
		return
	}
	fmt.Fprintln(os.Stderr, console.FormatVerboseMessage(message))
}
