package commands

import (
	"github.com/spf13/cobra"

	"github.com/victortavares4/dsl-investments/pkg/lsp"
	"github.com/victortavares4/dsl-investments/pkg/observability"
)

func newLSPCommand(g *Globals) *cobra.Command {
	return &cobra.Command{
		Use:   "lsp",
		Short: "Start the portlang language server (stdio)",
		Long: `Start a Language Server Protocol server on stdio. Editors get
diagnostics on open, change and save, keyword completion, hover
documentation and document formatting for .port files.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			sess, err := openSession(g, sessionOptions{mode: observability.ModeLSP, logJSON: true})
			if err != nil {
				return err
			}
			defer closeSession(sess)

			srv, err := lsp.NewServer(lsp.ServerDeps{Runner: sess.runner, Logger: sess.logger})
			if err != nil {
				return err
			}

			return srv.Run()
		},
	}
}
