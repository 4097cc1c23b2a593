package commands

import (
	"github.com/spf13/cobra"

	"github.com/victortavares4/dsl-investments/pkg/mcp"
	"github.com/victortavares4/dsl-investments/pkg/observability"
)

func newMCPCommand(g *Globals) *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The MCP server exposes portlang as tools that AI agents can discover and invoke:
  - portlang_check: validate a document and list diagnostics
  - portlang_export: export a valid document as json, yaml or toml
  - portlang_report: render a text, markdown or html report
  - portlang_format: rewrite a document in canonical form`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := openSession(g, sessionOptions{
				mode:      observability.ModeMCP,
				withStore: true,
				logJSON:   true,
				debug:     debug,
			})
			if err != nil {
				return err
			}
			defer closeSession(sess)

			red, err := observability.NewREDMetrics(sess.providers.Meter)
			if err != nil {
				return err
			}

			srv, err := mcp.NewServer(mcp.ServerDeps{
				Runner:  sess.runner,
				Logger:  sess.logger,
				Metrics: red,
				Tracer:  sess.providers.Tracer,
			})
			if err != nil {
				return err
			}

			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging to stderr")

	return cmd
}
