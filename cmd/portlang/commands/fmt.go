package commands

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"

	"github.com/victortavares4/dsl-investments/pkg/portlang"
	"github.com/victortavares4/dsl-investments/pkg/portlang/printer"
)

// ErrWriteStdin indicates -w was combined with standard input.
var ErrWriteStdin = errors.New("cannot write result back to standard input")

type fmtOptions struct {
	write bool
	diff  bool
	list  bool
}

func newFmtCommand(_ *Globals) *cobra.Command {
	opts := fmtOptions{}

	cmd := &cobra.Command{
		Use:   "fmt [files...]",
		Short: "Rewrite documents in canonical form",
		Long: `Fmt parses each document and prints it in canonical form: two-space
indentation, one field per line and blocks in declaration order.
Documents with lexical or syntax errors are reported and left untouched.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0

			for _, path := range args {
				err := formatOne(cmd, path, opts)
				if errors.Is(err, ErrValidationFailed) {
					failed++

					continue
				}

				if err != nil {
					return err
				}
			}

			if failed > 0 {
				return fmt.Errorf("%w: %d of %d documents could not be parsed", ErrValidationFailed, failed, len(args))
			}

			return nil
		},
	}

	cmd.Flags().BoolVarP(&opts.write, "write", "w", false, "write result to the source file instead of stdout")
	cmd.Flags().BoolVarP(&opts.diff, "diff", "d", false, "display diffs instead of rewriting files")
	cmd.Flags().BoolVarP(&opts.list, "list", "l", false, "list files whose formatting differs")

	return cmd
}

func formatOne(cmd *cobra.Command, path string, opts fmtOptions) error {
	if opts.write && path == stdinPath {
		return ErrWriteStdin
	}

	source, name, err := readDocument(cmd.InOrStdin(), path)
	if err != nil {
		return err
	}

	formatted, err := printer.Format(source)
	if err != nil {
		printDiagnostic(cmd.ErrOrStderr(), name, portlang.FatalDiagnostic(err))

		return fmt.Errorf("%w: %s", ErrValidationFailed, name)
	}

	changed := !bytes.Equal(formatted, []byte(source))
	out := cmd.OutOrStdout()

	if opts.list && changed {
		fmt.Fprintln(out, name)
	}

	if opts.diff && changed {
		writeDiff(out, name, source, string(formatted))
	}

	if opts.write && changed {
		info, statErr := os.Stat(path)
		if statErr != nil {
			return fmt.Errorf("stat %s: %w", path, statErr)
		}

		writeErr := os.WriteFile(path, formatted, info.Mode().Perm())
		if writeErr != nil {
			return fmt.Errorf("write %s: %w", path, writeErr)
		}
	}

	if !opts.write && !opts.diff && !opts.list {
		_, writeErr := out.Write(formatted)
		if writeErr != nil {
			return fmt.Errorf("write output: %w", writeErr)
		}
	}

	return nil
}

// writeDiff prints a line diff between the original and canonical text.
func writeDiff(w io.Writer, name, before, after string) {
	dmp := diffmatchpatch.New()
	src, dst, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(src, dst, false), lines)

	removed := color.New(color.FgRed)
	added := color.New(color.FgGreen)

	fmt.Fprintf(w, "--- %s\n+++ %s (formatted)\n", name, name)

	for _, d := range diffs {
		for _, line := range splitDiffLines(d.Text) {
			switch d.Type {
			case diffmatchpatch.DiffDelete:
				removed.Fprintf(w, "-%s\n", line)
			case diffmatchpatch.DiffInsert:
				added.Fprintf(w, "+%s\n", line)
			case diffmatchpatch.DiffEqual:
				fmt.Fprintf(w, " %s\n", line)
			}
		}
	}
}

func splitDiffLines(text string) []string {
	if text == "" {
		return nil
	}

	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}
