package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	serrors "github.com/conneroisu/stencil/internal/errors"
	"github.com/conneroisu/stencil/internal/host"
	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:     "build",
	Aliases: []string{"b"},
	Short:   "Render every entry once",
	Long: `Render every entry once and write the in-memory assets to the output
directory. Entries whose target lies outside the output directory are
written directly during the pass.

Examples:
  stencil build                   # Render and write
  stencil build --write=false     # Render only, report diagnostics
  stencil build --publish         # Render, write, and upload to S3`,
	RunE: runBuild,
}

type buildOptions struct {
	write   bool
	publish bool
}

var buildOpts buildOptions

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().BoolVar(&buildOpts.write, "write", true, "Write assets to the output directory")
	buildCmd.Flags().BoolVar(&buildOpts.publish, "publish", false, "Upload assets to the configured bucket")
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := loadApp()
	if err != nil {
		return err
	}
	_, err = a.build(ctx, buildOpts, cmd.OutOrStdout())
	return err
}

// build runs one full pass and then writes and publishes the assets.
// Per-entry diagnostics are printed and turn into a non-nil error after
// every asset that did render has been written.
func (a *app) build(ctx context.Context, opts buildOptions, out io.Writer) (host.Result, error) {
	result, err := a.host.Run(ctx, nil)
	if err != nil {
		return result, err
	}

	if opts.write {
		n, err := a.host.WriteAssets(ctx)
		if err != nil {
			return result, err
		}
		fmt.Fprintf(out, "Wrote %d asset(s) to %s\n", n, a.host.OutputDir())
	}

	if opts.publish {
		publisher, err := a.publisher()
		if err != nil {
			return result, err
		}
		summary, err := publisher.Publish(ctx, a.host.Assets())
		if err != nil {
			return result, err
		}
		fmt.Fprintf(out, "Published %d asset(s) (%d bytes) to %s\n", summary.Uploaded, summary.Bytes, a.cfg.Publish.Bucket)
	}

	report := a.plugin.LastReport()
	fmt.Fprintf(out, "Rendered %d of %d entries in %v\n", report.Rendered, report.Entries, result.Duration)
	for _, warning := range report.Warnings {
		fmt.Fprintf(out, "warning: %v\n", warning)
	}
	printErrors(out, result.Errors)
	if len(result.Errors) > 0 {
		return result, fmt.Errorf("build finished with %d error(s)", len(result.Errors))
	}
	return result, nil
}

func printErrors(out io.Writer, errs []error) {
	for _, e := range errs {
		fmt.Fprintf(out, "%s: %v\n", errorLabel(e), e)
	}
}

func errorLabel(err error) string {
	switch {
	case serrors.IsRenderError(err):
		return "render error"
	case serrors.IsEntryResolutionError(err):
		return "entry error"
	case serrors.IsConfigError(err):
		return "config error"
	default:
		return "error"
	}
}
