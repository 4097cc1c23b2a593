package commands

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/victortavares4/dsl-investments/pkg/portlang"
	"github.com/victortavares4/dsl-investments/pkg/portlang/lexer"
	"github.com/victortavares4/dsl-investments/pkg/portlang/token"
)

func newTokensCommand(_ *Globals) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "tokens <file>",
		Short: "Print the token stream of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, name, err := readDocument(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			tokens, err := lexer.Tokenize(source)
			if err != nil {
				printDiagnostic(cmd.ErrOrStderr(), name, portlang.FatalDiagnostic(err))

				return fmt.Errorf("%w: %s", ErrValidationFailed, name)
			}

			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), tokens)
			}

			writeTokensTable(cmd.OutOrStdout(), tokens)

			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print tokens as JSON")

	return cmd
}

func writeTokensTable(w io.Writer, tokens []token.Token) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"#", "Kind", "Lexeme", "Line", "Col"})

	for i, t := range tokens {
		tbl.AppendRow(table.Row{i, t.Kind.String(), sanitizeForTerminal(t.Source()), t.Line, t.Column})
	}

	tbl.AppendFooter(table.Row{"", "", fmt.Sprintf("%d tokens", len(tokens)), "", ""})
	tbl.Render()
}
