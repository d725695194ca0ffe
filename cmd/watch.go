package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/conneroisu/stencil/internal/host"
	"github.com/conneroisu/stencil/internal/watcher"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"w"},
	Short:   "Rebuild whenever a tracked file changes",
	Long: `Run a full build, then watch every file the build read. A change to
any of them triggers a new pass; changes to other files are ignored.

Examples:
  stencil watch
  stencil watch --debounce 100ms`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().Duration("debounce", 0, "Delay used to group changes (default from config)")
	bindFlags(viper.GetViper(), watchCmd.Flags(), map[string]string{"watch.debounce": "debounce"})
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := loadApp()
	if err != nil {
		return err
	}
	return a.watch(ctx, cmd.OutOrStdout())
}

// watch builds once, then rebuilds and rewrites assets on every change
// until ctx ends.
func (a *app) watch(ctx context.Context, out io.Writer) error {
	if _, err := a.build(ctx, buildOptions{write: true}, out); err != nil {
		fmt.Fprintln(out, err)
	}

	a.host.OnResult(func(result host.Result) {
		if _, err := a.host.WriteAssets(ctx); err != nil {
			a.logger.Error(ctx, err, "Writing assets failed")
		}
		printErrors(out, result.Errors)
	})

	fw, err := watcher.NewFileWatcher(a.cfg.Watch.Debounce, a.logger)
	if err != nil {
		return err
	}
	fw.AddFilter(watcher.NoGitFilter)
	fw.AddFilter(watcher.NoTempFilter)
	fw.AddFilter(watcher.ExcludeDirFilter(a.host.OutputDir()))

	roots, err := a.watchRoots()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "Watching for changes... (Press Ctrl+C to stop)")
	return a.host.Watch(ctx, fw, roots...)
}
