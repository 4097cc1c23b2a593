package commands

import (
	"bytes"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/victortavares4/dsl-investments/pkg/report"
)

func newReportCommand(g *Globals) *cobra.Command {
	var (
		formatName string
		output     string
	)

	cmd := &cobra.Command{
		Use:   "report <file>",
		Short: "Render a portfolio report",
		Long: `Report renders general information, the allocation table, risk analysis,
restrictions, rebalancing policy and recommendations for a valid document.

Formats: ` + formatList(report.Formats()),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := report.ParseFormat(formatName)
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

			opts := report.Options{Color: format == report.FormatText && output == "" && !color.NoColor}

			var buf bytes.Buffer

			err = report.Render(&buf, doc, format, opts)
			if err != nil {
				return err
			}

			return emit(cmd, g, output, buf.Bytes())
		},
	}

	cmd.Flags().StringVarP(&formatName, "format", "f", string(report.FormatText), "report format")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")

	return cmd
}
