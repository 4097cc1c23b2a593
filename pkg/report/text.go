package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/victortavares4/dsl-investments/pkg/export"
)

const ruleWidth = 72

func renderText(w io.Writer, doc *export.Document, opts Options) error {
	heading := color.New(color.FgCyan, color.Bold)
	title := color.New(color.FgGreen, color.Bold)
	muted := color.New(color.Faint)

	for _, c := range []*color.Color{heading, title, muted} {
		if opts.Color {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, title.Sprint(strings.ToUpper(reportTitle)+": "+doc.Portfolio.Name))
	fmt.Fprintln(bw, muted.Sprint(strings.Repeat("=", ruleWidth)))

	for _, s := range sections(doc) {
		fmt.Fprintln(bw)
		fmt.Fprintln(bw, heading.Sprint(strings.ToUpper(s.title)))

		if s.table != nil {
			fmt.Fprintln(bw, s.table.Render())

			continue
		}

		for _, line := range s.lines {
			fmt.Fprintln(bw, "  "+line)
		}
	}

	fmt.Fprintln(bw)
	fmt.Fprintln(bw, muted.Sprint(strings.Repeat("-", ruleWidth)))
	fmt.Fprintln(bw, muted.Sprint("Generated by "+doc.Generator))

	err := bw.Flush()
	if err != nil {
		return fmt.Errorf("write text report: %w", err)
	}

	return nil
}

func renderMarkdown(w io.Writer, doc *export.Document) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "# %s: %s\n", reportTitle, doc.Portfolio.Name)

	for _, s := range sections(doc) {
		fmt.Fprintf(bw, "\n## %s\n\n", s.title)

		if s.table != nil {
			fmt.Fprintln(bw, s.table.RenderMarkdown())

			continue
		}

		for _, line := range s.lines {
			if strings.ContainsRune(line, '░') {
				// Bars line up only in a monospace block.
				fmt.Fprintf(bw, "    %s\n", line)

				continue
			}

			fmt.Fprintf(bw, "- %s\n", line)
		}
	}

	fmt.Fprintf(bw, "\n---\n\n_Generated by %s_\n", doc.Generator)

	err := bw.Flush()
	if err != nil {
		return fmt.Errorf("write markdown report: %w", err)
	}

	return nil
}
