package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/victortavares4/dsl-investments/pkg/export"
	"github.com/victortavares4/dsl-investments/pkg/export/schema"
)

// ErrInvalidJSON indicates a JSON export that does not parse.
var ErrInvalidJSON = errors.New("invalid JSON")

func newSchemaCommand(g *Globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of exported documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := cmd.OutOrStdout().Write(schema.Document())
			if err != nil {
				return fmt.Errorf("write schema: %w", err)
			}

			return nil
		},
	}

	cmd.AddCommand(newSchemaValidateCommand(g))

	return cmd
}

func newSchemaValidateCommand(g *Globals) *cobra.Command {
	var (
		formatName string
		colorize   bool
		nocolor    bool
	)

	cmd := &cobra.Command{
		Use:   "validate <file|->",
		Short: "Validate an exported document against the schema",
		Long: `Validate checks an exported document against the embedded JSON Schema.
Non-JSON exports (yaml, toml, binary) are decoded and re-encoded as JSON first.

Examples:
  portlang schema validate carteira.json
  portlang export -f binary carteira.port | portlang schema validate -f binary -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if nocolor {
				color.NoColor = true
			} else if colorize {
				color.NoColor = false
			}

			format, err := export.ParseFormat(formatName)
			if err != nil {
				return err
			}

			raw, name, err := readDocument(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			data, err := exportJSON([]byte(raw), format)
			if err != nil {
				return fmt.Errorf("%w: %s: %w", ErrValidationFailed, name, err)
			}

			violations, err := schema.Validate(data)
			if err != nil {
				return err
			}

			return reportViolations(cmd.OutOrStdout(), name, violations, g.Quiet)
		},
	}

	cmd.Flags().StringVarP(&formatName, "format", "f", string(export.FormatJSON), "input format")
	cmd.Flags().BoolVar(&colorize, "color", false, "force colored output")
	cmd.Flags().BoolVar(&nocolor, "no-color", false, "disable colored output")

	return cmd
}

// exportJSON normalizes an exported document of any format to JSON.
func exportJSON(raw []byte, format export.Format) ([]byte, error) {
	if format == export.FormatJSON || format == export.FormatCompact {
		if !json.Valid(raw) {
			return nil, ErrInvalidJSON
		}

		return raw, nil
	}

	doc, err := export.Decode(bytes.NewReader(raw), format)
	if err != nil {
		return nil, err
	}

	return export.Marshal(doc, export.FormatCompact)
}

func reportViolations(w io.Writer, name string, violations []schema.Violation, quiet bool) error {
	if len(violations) == 0 {
		if !quiet {
			color.New(color.FgGreen).Fprintf(w, "%s is a valid %s\n", name, export.SchemaTitle)
		}

		return nil
	}

	color.New(color.FgRed).Fprintf(w, "%s failed schema validation\n", name)
	fmt.Fprintf(w, "\nErrors:\n")

	for _, v := range violations {
		color.New(color.FgRed).Fprintf(w, "  - %s\n", v)
	}

	return fmt.Errorf("%w: %d schema violations in %s", ErrValidationFailed, len(violations), name)
}
