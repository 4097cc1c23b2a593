package commands

import (
	"github.com/spf13/cobra"

	"github.com/victortavares4/dsl-investments/pkg/export"
)

func newExportCommand(g *Globals) *cobra.Command {
	var (
		formatName string
		output     string
	)

	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Export a valid document as structured data",
		Long: `Export writes the portfolio, its findings, analysis metrics and
recommendations in a stable structured form. Documents with errors are refused.

Formats: ` + formatList(export.Formats()),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := export.ParseFormat(formatName)
			if err != nil {
				return err
			}

			sess, err := cliSession(g)
			if err != nil {
				return err
			}
			defer closeSession(sess)

			doc, err := buildDocument(cmd, g, sess)(args[0])
			if err != nil {
				return err
			}

			data, err := export.Marshal(doc, format)
			if err != nil {
				return err
			}

			return emit(cmd, g, output, data)
		},
	}

	cmd.Flags().StringVarP(&formatName, "format", "f", string(export.FormatJSON), "output format")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")

	return cmd
}
