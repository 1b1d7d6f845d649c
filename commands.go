package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/grantgraph/pkg/handlers"
	"github.com/ekaya-inc/grantgraph/pkg/llm"
	"github.com/ekaya-inc/grantgraph/pkg/mcp"
	"github.com/ekaya-inc/grantgraph/pkg/mcp/tools"
	"github.com/ekaya-inc/grantgraph/pkg/middleware"
	"github.com/ekaya-inc/grantgraph/pkg/models"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and MCP server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.close(context.Background())

		return a.serve(ctx)
	},
}

var (
	askModel  string
	askSearch bool
	askJSON   bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer one question and print the summary",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.close(context.Background())

		req := models.QueryRequest{
			Question:     strings.Join(args, " "),
			Model:        llm.ModelID(askModel),
			EnableSearch: askSearch,
		}
		resp := a.pipeline.Run(ctx, req)

		out := cmd.OutOrStdout()
		if askJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		}
		if resp.Error != nil {
			return errors.New(*resp.Error)
		}
		fmt.Fprintln(out, resp.Summary)
		if len(resp.References) > 0 {
			fmt.Fprintln(out, "\nReferences:")
			for _, ref := range resp.References {
				fmt.Fprintf(out, "- %s (%s)\n", ref.Title, ref.URL)
			}
		}
		return nil
	},
}

var schemaRefresh bool

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the graph schema used for query generation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer a.close(context.Background())

		get := a.schema.Get
		if schemaRefresh {
			get = a.schema.Refresh
		}
		desc, err := get(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "# version %s (%s)\n", desc.Version(), desc.Source())
		fmt.Fprintln(out, desc.PromptText())
		return nil
	},
}

func init() {
	askCmd.Flags().StringVarP(&askModel, "model", "m", "", "model identifier (defaults to llm.default_model)")
	askCmd.Flags().BoolVar(&askSearch, "search", false, "enrich the answer with web search references")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the full response as JSON")
	schemaCmd.Flags().BoolVar(&schemaRefresh, "refresh", false, "bypass the cache and describe the store again")
}

// serve runs the HTTP server until ctx is cancelled.
func (a *app) serve(ctx context.Context) error {
	mux := http.NewServeMux()

	handlers.NewHealthHandler(a.cfg, a.graph, a.logger).RegisterRoutes(mux)
	handlers.NewQueryHandler(a.pipeline, a.logger).RegisterRoutes(mux)
	handlers.NewModelsHandler(a.router, a.defaultModel(), a.logger).RegisterRoutes(mux)
	handlers.NewSchemaHandler(a.schema, a.logger).RegisterRoutes(mux)
	handlers.NewAnalyticsHandler(a.analytics, a.logger).RegisterRoutes(mux)
	mux.Handle("GET /metrics", a.metrics.Handler())

	if a.cfg.MCP.Enabled {
		mcpServer := mcp.NewServer("grantgraph", a.cfg.Version, a.logger)
		tools.RegisterHealthTool(mcpServer.MCP(), &tools.HealthToolDeps{
			Version: a.cfg.Version,
			Graph:   a.graph,
			Schema:  a.schema,
			Logger:  a.logger,
		})
		tools.RegisterGrantTools(mcpServer.MCP(), &tools.GrantToolDeps{
			Pipeline: a.pipeline,
			Schema:   a.schema,
			Logger:   a.logger,
		})
		mux.Handle("/mcp", middleware.MCPRequestLogger(a.logger)(mcpServer.NewStreamableHTTPServer()))
	}

	srv := &http.Server{
		Addr:              a.cfg.ListenAddr(),
		Handler:           middleware.RequestID(middleware.RequestLogger(a.logger, a.metrics)(mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		tls := a.cfg.TLSCertPath != "" && a.cfg.TLSKeyPath != ""
		a.logger.Info("Starting grantgraph",
			zap.String("addr", srv.Addr),
			zap.String("version", a.cfg.Version),
			zap.String("env", a.cfg.Env),
			zap.Bool("tls", tls),
			zap.Bool("mcp", a.cfg.MCP.Enabled))

		var err error
		if tls {
			err = srv.ListenAndServeTLS(a.cfg.TLSCertPath, a.cfg.TLSKeyPath)
		} else {
			err = srv.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
