package cli

import (
	"context"

	"github.com/copyleftdev/authscry/internal/runs"
	"github.com/copyleftdev/authscry/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(a *app) *cobra.Command {
	var port int

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the run API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}
			catalog, _, err := a.buildCatalog(nil)
			if err != nil {
				return err
			}
			runner, b, err := a.newRunner(catalog)
			if err != nil {
				return err
			}
			defer a.shutdownBrowser(b)

			manager := runs.NewManager(runner, a.logger)
			srv := server.NewServer(a.cfg, manager, catalog, a.logger)

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start()
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return err
				}
			case <-cmd.Context().Done():
				a.logger.Info("Shutdown signal received")
			}

			ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Browser.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				a.logger.Error("Server shutdown failed", zap.Error(err))
			}
			if err := manager.Shutdown(ctx); err != nil {
				a.logger.Warn("Runs still active at shutdown", zap.Error(err))
			}
			return nil
		},
	}
	serveCmd.Flags().IntVar(&port, "port", 0, "override server.port")
	return serveCmd
}
