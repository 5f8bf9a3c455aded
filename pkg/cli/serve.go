package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sanity/pkg/mcp"
	"github.com/ekaya-inc/ekaya-sanity/pkg/mcp/tools"
)

func registerMigrateCmd(parent *cobra.Command, a *app) {
	parent.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply pending report database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.migrate()
		},
	})
}

type mcpOptions struct {
	httpAddr string
}

func registerMCPCmd(parent *cobra.Command, a *app) {
	opts := &mcpOptions{}
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the sanity tools over the Model Context Protocol",
		Long: `Serve the sanity tools over MCP on stdio, or over streamable HTTP when
--http is given. Report tools are available when a report database is configured.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serveMCP(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.httpAddr, "http", "", "Listen address for streamable HTTP (e.g. :8080)")
	parent.AddCommand(cmd)
}

func (a *app) mcpServer(ctx context.Context) (*mcp.Server, func(), error) {
	pool := a.workerPool()
	reconciler, err := a.apiReconciler(pool)
	if err != nil {
		return nil, nil, err
	}
	deps := &tools.SanityToolDeps{
		Runner:     a.sanityRunner(pool),
		Reconciler: reconciler,
		Logger:     a.logger,
	}

	cleanup := func() {}
	if a.cfg.Database.Enabled() {
		svc, closeDB, err := a.reportService(ctx)
		if err != nil {
			return nil, nil, err
		}
		deps.Reports = svc
		cleanup = closeDB
	}

	info := tools.HealthInfo{
		Version:       a.cfg.Version,
		Persistence:   deps.Reports != nil,
		Introspection: a.cfg.API.Introspection,
	}
	return mcp.NewServer(deps, info, a.logger), cleanup, nil
}

func (a *app) serveMCP(ctx context.Context, opts *mcpOptions) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, cleanup, err := a.mcpServer(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if opts.httpAddr == "" {
		return srv.ServeStdio(ctx, os.Stdin, os.Stdout)
	}

	httpServer := &http.Server{
		Addr:              opts.httpAddr,
		Handler:           srv.NewStreamableHTTPServer(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Serving MCP over HTTP", zap.String("addr", opts.httpAddr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down MCP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
