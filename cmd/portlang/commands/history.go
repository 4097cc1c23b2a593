package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/victortavares4/dsl-investments/internal/store"
)

const (
	defaultHistoryLimit = 20
	shortIDLength       = 8
)

func newHistoryCommand(g *Globals) *cobra.Command {
	var (
		filter     store.Filter
		since      time.Duration
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded compilation runs",
		Long: `History lists the runs recorded in the run history database
(store.path in the configuration, or --db). Every check, export, report,
codegen and server request is recorded when a database is configured.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withHistory(g, func(st store.Store) error {
				if since > 0 {
					filter.Since = time.Now().Add(-since)
				}

				runs, err := st.List(cmd.Context(), filter)
				if err != nil {
					return err
				}

				if jsonOutput {
					return writeJSON(cmd.OutOrStdout(), runs)
				}

				writeRunsTable(cmd.OutOrStdout(), runs, time.Now())

				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&filter.Limit, "limit", "n", defaultHistoryLimit, "maximum runs to list")
	cmd.Flags().StringVar(&filter.Document, "document", "", "only runs of this document")
	cmd.Flags().StringVar(&filter.Outcome, "outcome", "", "only runs with this outcome (valid, warnings, invalid, fatal)")
	cmd.Flags().DurationVar(&since, "since", 0, "only runs newer than this duration (e.g. 24h)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print runs as JSON")

	cmd.AddCommand(newHistoryShowCommand(g))
	cmd.AddCommand(newHistoryPruneCommand(g))

	return cmd
}

func newHistoryShowCommand(g *Globals) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run with its diagnostics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(g, func(st store.Store) error {
				run, err := st.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				writeRun(cmd.OutOrStdout(), run, time.Now())

				return nil
			})
		},
	}
}

func newHistoryPruneCommand(g *Globals) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withHistory(g, func(st store.Store) error {
				n, err := st.Prune(cmd.Context(), olderThan)
				if err != nil {
					return err
				}

				if !g.Quiet {
					fmt.Fprintf(cmd.OutOrStdout(), "pruned %s runs older than %s\n", humanize.Comma(n), olderThan)
				}

				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "age of runs to delete")

	return cmd
}

// withHistory opens the run store for fn, failing when none is configured.
func withHistory(g *Globals, fn func(store.Store) error) error {
	sess, err := cliSession(g)
	if err != nil {
		return err
	}
	defer closeSession(sess)

	if sess.store == nil {
		return ErrHistoryDisabled
	}

	return fn(sess.store)
}

func writeRunsTable(w io.Writer, runs []*store.Run, now time.Time) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"ID", "When", "Document", "Portfolio", "Outcome", "Errors", "Warnings", "Size", "Took"})

	for _, r := range runs {
		tbl.AppendRow(table.Row{
			shortID(r.ID),
			humanize.RelTime(r.CreatedAt, now, "ago", "from now"),
			sanitizeForTerminal(r.Document),
			sanitizeForTerminal(r.Portfolio),
			r.Outcome,
			r.Errors,
			r.Warnings,
			humanize.Bytes(uint64(r.Bytes)),
			r.Duration.Round(time.Microsecond),
		})
	}

	tbl.AppendFooter(table.Row{"", "", "", "", "", "", "", "", fmt.Sprintf("%d runs", len(runs))})
	tbl.Render()
}

func writeRun(w io.Writer, run *store.Run, now time.Time) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendRows([]table.Row{
		{"ID", run.ID},
		{"When", fmt.Sprintf("%s (%s)", run.CreatedAt.Format(time.RFC3339), humanize.RelTime(run.CreatedAt, now, "ago", "from now"))},
		{"Document", sanitizeForTerminal(run.Document)},
		{"Portfolio", sanitizeForTerminal(run.Portfolio)},
		{"Outcome", run.Outcome},
		{"Size", humanize.Bytes(uint64(run.Bytes))},
		{"Source hash", run.SourceHash},
		{"Took", run.Duration},
	})
	tbl.Render()

	for _, d := range run.Diagnostics {
		printDiagnostic(w, run.Document, d)
	}
}

func shortID(id string) string {
	if len(id) <= shortIDLength {
		return id
	}

	return id[:shortIDLength]
}

func writeJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	err := enc.Encode(value)
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}

	return nil
}
