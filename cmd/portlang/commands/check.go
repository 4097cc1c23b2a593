package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/victortavares4/dsl-investments/internal/engine"
	"github.com/victortavares4/dsl-investments/pkg/portlang"
)

// ErrStdinTwice indicates "-" was passed more than once.
var ErrStdinTwice = errors.New("standard input can only be read once")

// CheckResult is the per-document outcome printed by check --json.
type CheckResult struct {
	Name        string                `json:"name"`
	RunID       string                `json:"run_id,omitempty"`
	Outcome     string                `json:"outcome"`
	Valid       bool                  `json:"valid"`
	Errors      int                   `json:"errors"`
	Warnings    int                   `json:"warnings"`
	Diagnostics []portlang.Diagnostic `json:"diagnostics"`
}

type checkOptions struct {
	jsonOutput bool
	strict     bool
	jobs       int
}

func newCheckCommand(g *Globals) *cobra.Command {
	opts := checkOptions{}

	cmd := &cobra.Command{
		Use:   "check [files...]",
		Short: "Validate portfolio documents and print diagnostics",
		Long: `Check runs the lexer, parser and validator on each document and prints
every diagnostic with its position and a suggested fix.

Use "-" to read a document from standard input. The command exits with
status 2 when any document has errors (or warnings, with --strict).`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cliSession(g)
			if err != nil {
				return err
			}
			defer closeSession(sess)

			results, err := checkDocuments(cmd.Context(), sess.runner, cmd.InOrStdin(), args, opts.jobs)
			if err != nil {
				return err
			}

			return reportCheck(cmd.OutOrStdout(), results, opts, g.Quiet)
		},
	}

	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "print results as JSON")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "treat warnings as failures")
	cmd.Flags().IntVarP(&opts.jobs, "jobs", "j", runtime.GOMAXPROCS(0), "documents checked in parallel")

	return cmd
}

// checkDocuments compiles every path concurrently, keeping argument order.
func checkDocuments(ctx context.Context, runner *engine.Runner, in io.Reader, paths []string, jobs int) ([]CheckResult, error) {
	stdinSeen := false

	for _, p := range paths {
		if p != stdinPath {
			continue
		}

		if stdinSeen {
			return nil, ErrStdinTwice
		}

		stdinSeen = true
	}

	if jobs < 1 {
		jobs = 1
	}

	results := make([]CheckResult, len(paths))

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(jobs)

	for i, path := range paths {
		group.Go(func() error {
			source, name, err := readDocument(in, path)
			if err != nil {
				return err
			}

			out, err := runner.Compile(gctx, name, source)
			if err != nil {
				return fmt.Errorf("check %s: %w", name, err)
			}

			results[i] = newCheckResult(out)

			return nil
		})
	}

	err := group.Wait()
	if err != nil {
		return nil, err
	}

	return results, nil
}

func newCheckResult(out *engine.Outcome) CheckResult {
	errs, warnings := out.Counts()

	diags := out.Diagnostics
	if diags == nil {
		diags = []portlang.Diagnostic{}
	}

	return CheckResult{
		Name:        out.Name,
		RunID:       out.RunID,
		Outcome:     out.Status(),
		Valid:       !out.Blocked(),
		Errors:      errs,
		Warnings:    warnings,
		Diagnostics: diags,
	}
}

func reportCheck(w io.Writer, results []CheckResult, opts checkOptions, quiet bool) error {
	if opts.jsonOutput {
		err := writeJSON(w, results)
		if err != nil {
			return err
		}
	} else if !quiet {
		for _, r := range results {
			printCheckResult(w, r)
		}

		printCheckSummary(w, results)
	}

	failed := 0

	for _, r := range results {
		if !r.Valid || (opts.strict && r.Warnings > 0) {
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d documents", ErrValidationFailed, failed, len(results))
	}

	return nil
}

func printCheckResult(w io.Writer, r CheckResult) {
	if len(r.Diagnostics) == 0 {
		color.New(color.FgGreen).Fprintf(w, "%s: ok\n", r.Name)

		return
	}

	for _, d := range r.Diagnostics {
		printDiagnostic(w, r.Name, d)
	}
}

func printDiagnostic(w io.Writer, name string, d portlang.Diagnostic) {
	severity := color.New(color.FgYellow)
	if d.IsError() {
		severity = color.New(color.FgRed, color.Bold)
	}

	fmt.Fprintf(w, "%s:%d:%d: ", name, d.Line, d.Column)
	severity.Fprintf(w, "%s", d.Severity)
	fmt.Fprintf(w, " [%s] %s\n", d.Code, sanitizeForTerminal(d.Message))

	if d.Suggestion != "" {
		color.New(color.FgCyan).Fprintf(w, "    hint: %s\n", d.Suggestion)
	}
}

func printCheckSummary(w io.Writer, results []CheckResult) {
	counts := map[string]int{}
	for _, r := range results {
		counts[r.Outcome]++
	}

	fmt.Fprintf(w, "\n%d checked: %d valid, %d with warnings, %d invalid, %d fatal\n",
		len(results),
		counts[engine.OutcomeValid],
		counts[engine.OutcomeWarnings],
		counts[engine.OutcomeInvalid],
		counts[engine.OutcomeFatal],
	)
}
