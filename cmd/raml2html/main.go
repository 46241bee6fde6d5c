package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/RazmikMkrtchyan/raml2html/pkg/cli"
	"github.com/RazmikMkrtchyan/raml2html/pkg/console"
	"github.com/RazmikMkrtchyan/raml2html/pkg/constants"
)

// Build-time variables set by GoReleaser
var (
	version = "dev"
)

var opts cli.RenderOptions

var rootCmd = &cobra.Command{
	Use:   constants.CLIName + " [flags] <document.raml>",
	Short: "Generate HTML documentation from a RAML 1.0 API description",
	Long: `Generate HTML documentation from a RAML 1.0 API description.

The input document is parsed, optionally validated, and rendered through an
HTML theme or a standalone template file. The result goes to --output, or to
stdout when no output file is given.

Examples:
  ` + constants.CLIName + ` api.raml > api.html
  ` + constants.CLIName + ` -i api.raml -o api.html --validate
  ` + constants.CLIName + ` api.raml -o api.html --theme default --pretty
  ` + constants.CLIName + ` api.raml -o api.html -e admin-overlay.raml -e beta-extension.raml
  ` + constants.CLIName + ` api.raml -o api.html --watch`,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRoot,
}

var themesCmd = &cobra.Command{
	Use:   "themes",
	Short: "List available themes",
	Run: func(cmd *cobra.Command, args []string) {
		cli.ListThemes(opts.ThemeDirs)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(console.FormatInfoMessage(fmt.Sprintf("%s version %s", constants.CLIName, cli.GetVersion())))
	},
}

func runRoot(cmd *cobra.Command, args []string) error {
	if len(args) > 1 {
		return usageError(cmd, fmt.Sprintf("expected exactly one input document, got %d arguments", len(args)))
	}

	switch {
	case opts.Input != "" && len(args) == 1:
		fmt.Fprintln(os.Stderr, console.FormatWarningMessage(fmt.Sprintf("Both --input and a positional argument were given; using --input %s", opts.Input)))
	case opts.Input == "" && len(args) == 1:
		opts.Input = args[0]
	case opts.Input == "":
		return usageError(cmd, "missing input document: pass a path or use --input")
	}

	if err := applyFileConfig(cmd); err != nil {
		return err
	}

	if (opts.RawErrors || opts.SuppressWarnings) && !opts.Validate {
		return usageError(cmd, "--raw-errors and --suppress-warnings require --validate")
	}

	if opts.Watch {
		return cli.WatchAndRender(cmd.Context(), opts)
	}
	return cli.RenderDocument(cmd.Context(), opts)
}

// usageError reports a bad invocation to stderr together with the usage text.
func usageError(cmd *cobra.Command, message string) error {
	fmt.Fprintln(os.Stderr, console.FormatErrorMessage(message))
	fmt.Fprint(os.Stderr, cmd.UsageString())
	return cli.ErrAlreadyReported
}

// applyFileConfig merges defaults from raml2html.toml. Flags set explicitly
// on the command line win.
func applyFileConfig(cmd *cobra.Command) error {
	fileCfg, err := cli.LoadFileConfig(filepath.Dir(opts.Input), ".")
	if err != nil {
		return err
	}
	if fileCfg == nil {
		return nil
	}

	flags := cmd.Flags()
	if !flags.Changed("theme") && fileCfg.Theme != "" {
		opts.Theme = fileCfg.Theme
	}
	if !flags.Changed("template") && fileCfg.Template != "" {
		opts.Template = fileCfg.Template
	}
	if !flags.Changed("pretty") && fileCfg.Pretty {
		opts.Pretty = true
	}
	if !flags.Changed("validate") && fileCfg.Validate {
		opts.Validate = true
	}
	opts.ThemeDirs = append(opts.ThemeDirs, fileCfg.ThemeDirs...)
	return nil
}

// normalizeFlagName accepts the camelCase flag spellings used by earlier
// releases alongside the kebab-case ones.
func normalizeFlagName(f *pflag.FlagSet, name string) pflag.NormalizedName {
	switch name {
	case "extensionsAndOverlays":
		name = "extensions-and-overlays"
	case "rawErrors":
		name = "raw-errors"
	case "suppressWarnings":
		name = "suppress-warnings"
	case "prettyErrors":
		name = "pretty-errors"
	case "themeDir":
		name = "theme-dir"
	}
	return pflag.NormalizedName(name)
}

func init() {
	rootCmd.SetGlobalNormalizationFunc(normalizeFlagName)
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError(cmd, err.Error())
	})

	flags := rootCmd.Flags()
	flags.StringVarP(&opts.Input, "input", "i", "", "Input RAML document path (alternative to the positional argument)")
	flags.StringVarP(&opts.Output, "output", "o", "", "Output file path; stdout if omitted")
	flags.StringVarP(&opts.Template, "template", "t", "", "Template file to render with; overrides theme selection")
	flags.StringVar(&opts.Theme, "theme", constants.DefaultTheme, "Named theme to render with")
	flags.StringArrayVar(&opts.ThemeDirs, "theme-dir", nil, "Additional directory to search for themes (repeatable)")
	flags.BoolVarP(&opts.Pretty, "pretty", "p", false, "Pretty-print the generated HTML")
	flags.BoolVarP(&opts.Validate, "validate", "v", false, "Validate the document and its examples before rendering")
	flags.BoolVar(&opts.RawErrors, "raw-errors", false, "Dump diagnostics as a JSON array instead of formatted text (requires --validate)")
	flags.BoolVar(&opts.SuppressWarnings, "suppress-warnings", false, "Drop warning-level diagnostics before reporting (requires --validate)")
	flags.BoolVar(&opts.PrettyErrors, "pretty-errors", false, "Add spacing between reported diagnostics")
	flags.StringArrayVarP(&opts.ExtensionsAndOverlays, "extensions-and-overlays", "e", nil, "Extension or overlay documents applied on top of the input, in order")
	flags.BoolVarP(&opts.Watch, "watch", "w", false, "Re-render whenever the input or a file next to it changes (requires --output)")
	flags.BoolVar(&opts.Verbose, "verbose", false, "Enable verbose output showing detailed information")

	rootCmd.AddCommand(themesCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	// Set version information in the CLI package
	cli.SetVersionInfo(version)
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, cli.ErrAlreadyReported) {
			fmt.Fprintln(os.Stderr, console.FormatErrorMessage(err.Error()))
		}
		os.Exit(1)
	}
}
