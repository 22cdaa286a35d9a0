package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/stackfuse/internal/server"
	"github.com/matzehuels/stackfuse/pkg/analyzer"
	"github.com/matzehuels/stackfuse/pkg/pipeline"
	"github.com/matzehuels/stackfuse/pkg/resolve"
)

// serveCommand creates the serve command exposing the pipeline over HTTP.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr         string
		maxDepth     int
		cacheLoc     string
		stageTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the resolution pipeline over HTTP",
		Long: `Serve starts an HTTP API: POST /api/resolutions submits repositories for
asynchronous resolution and returns a request id, GET /api/resolutions/{id}
polls its status, and POST /api/compat answers compatibility checks
synchronously.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())

			runner, err := c.newRunner(cacheLoc)
			if err != nil {
				return err
			}

			base := pipeline.Options{
				MaxDepth:     maxDepth,
				StageTimeout: stageTimeout,
				Logger:       logger,
			}
			srv := server.New(runner, base, logger)

			httpServer := &http.Server{
				Addr:              addr,
				Handler:           srv.Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			// Shut down cleanly on ctrl-c.
			go func() {
				<-cmd.Context().Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = httpServer.Shutdown(shutdownCtx)
			}()

			logger.Info("listening", "addr", addr)
			if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().IntVar(&maxDepth, "max-depth", analyzer.DefaultMaxDepth, "maximum manifest search depth")
	cmd.Flags().StringVar(&cacheLoc, "cache", "", `analysis cache: "" for the default file cache, "none" to disable, or a redis:// URL`)
	cmd.Flags().DurationVar(&stageTimeout, "stage-timeout", resolve.DefaultStageTimeout, "per-solver-stage timeout")
	return cmd
}
