package commands

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/victortavares4/dsl-investments/internal/engine"
	"github.com/victortavares4/dsl-investments/pkg/export"
	"github.com/victortavares4/dsl-investments/pkg/observability"
)

// compileForGeneration reads and compiles the document at path. Blocked
// documents print their diagnostics to stderr and fail with
// ErrValidationFailed; warnings are printed unless quiet is set.
func compileForGeneration(cmd *cobra.Command, g *Globals, sess *session, path string) (*engine.Outcome, error) {
	source, name, err := readDocument(cmd.InOrStdin(), path)
	if err != nil {
		return nil, err
	}

	out, err := sess.runner.Compile(cmd.Context(), name, source)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}

	if out.Blocked() || !g.Quiet {
		for _, d := range out.Diagnostics {
			printDiagnostic(cmd.ErrOrStderr(), name, d)
		}
	}

	if out.Blocked() {
		return nil, fmt.Errorf("%w: %s is %s", ErrValidationFailed, name, out.Status())
	}

	return out, nil
}

// buildDocument compiles path and converts it into an export document.
func buildDocument(cmd *cobra.Command, g *Globals, sess *session) func(path string) (*export.Document, error) {
	return func(path string) (*export.Document, error) {
		out, err := compileForGeneration(cmd, g, sess, path)
		if err != nil {
			return nil, err
		}

		th := sess.runner.Thresholds()

		return out.Document(export.Meta{Thresholds: &th})
	}
}

// emit writes data to the output path and reports its size on stderr.
func emit(cmd *cobra.Command, g *Globals, output string, data []byte) error {
	err := writeOutput(cmd.OutOrStdout(), output, data)
	if err != nil {
		return err
	}

	if output != "" && output != stdinPath && !g.Quiet {
		fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s to %s\n", humanize.Bytes(uint64(len(data))), output)
	}

	return nil
}

func cliSession(g *Globals) (*session, error) {
	return openSession(g, sessionOptions{mode: observability.ModeCLI, withStore: true})
}

// formatList renders format names for flag help.
func formatList[F ~string](formats []F) string {
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = string(f)
	}

	return strings.Join(names, ", ")
}
