package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/conneroisu/stencil/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Watch and serve the output with live reload",
	Long: `Run the watch loop and serve the latest assets over HTTP. Open pages
reload when a pass emits new assets, and pages show an overlay listing the
diagnostics of the last pass.

Examples:
  stencil serve
  stencil serve --port 3000`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "Port to serve on")
	serveCmd.Flags().String("host", "localhost", "Host to bind to")
	bindFlags(viper.GetViper(), serveCmd.Flags(), map[string]string{
		"server.port": "port",
		"server.host": "host",
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := loadApp()
	if err != nil {
		return err
	}
	return a.serve(ctx, cmd)
}

func (a *app) serve(ctx context.Context, cmd *cobra.Command) error {
	srv := server.New(a.host, server.Config{
		Host:           a.cfg.Server.Host,
		Port:           a.cfg.Server.Port,
		AllowedOrigins: a.cfg.Server.AllowedOrigins,
	}, a.logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Start(ctx) })
	g.Go(func() error { return a.watch(ctx, cmd.OutOrStdout()) })
	return g.Wait()
}
