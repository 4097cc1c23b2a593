// Package report renders exported documents as human-readable reports in
// text, Markdown or HTML.
package report

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/victortavares4/dsl-investments/pkg/export"
	"github.com/victortavares4/dsl-investments/pkg/portlang/analysis"
)

// ErrUnknownFormat is returned for an unsupported report format.
var ErrUnknownFormat = errors.New("unknown report format")

// Format names a report layout.
type Format string

// Report formats.
const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// Formats lists every report format.
func Formats() []Format {
	return []Format{FormatText, FormatMarkdown, FormatHTML}
}

// ParseFormat resolves a case-insensitive format name. "md" and "txt" are
// accepted as aliases.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case FormatText, FormatMarkdown, FormatHTML:
		return f, nil
	case "txt":
		return FormatText, nil
	case "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// Extension returns the file extension for the format, without the dot.
func (f Format) Extension() string {
	switch f {
	case FormatMarkdown:
		return "md"
	case FormatText:
		return "txt"
	default:
		return string(f)
	}
}

// Options tune rendering.
type Options struct {
	// Color enables ANSI colors in text reports.
	Color bool
}

// Render writes doc to w in the given format.
func Render(w io.Writer, doc *export.Document, format Format, opts Options) error {
	switch format {
	case FormatText:
		return renderText(w, doc, opts)
	case FormatMarkdown:
		return renderMarkdown(w, doc)
	case FormatHTML:
		return renderHTML(w, doc)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

const reportTitle = "Portfolio Report"

// section is one titled block of a report. Either table or lines is set.
type section struct {
	title string
	table table.Writer
	lines []string
}

func sections(doc *export.Document) []section {
	out := []section{
		{title: "General information", table: generalTable(doc)},
		{title: "Asset allocation", table: allocationTable(doc)},
		{title: "Analysis", table: analysisTable(doc.Metrics)},
		{title: "Visual distribution", lines: distributionLines(doc)},
	}

	if r := doc.Portfolio.Restrictions; r != nil {
		out = append(out, section{title: "Restrictions and limits", table: restrictionsTable(r)})
	}

	if rb := doc.Portfolio.Rebalancing; rb != nil {
		out = append(out, section{title: "Rebalancing", table: rebalancingTable(rb)})
	}

	if len(doc.Findings.Warnings) > 0 {
		lines := make([]string, 0, len(doc.Findings.Warnings))
		for _, f := range doc.Findings.Warnings {
			lines = append(lines, f.String())
		}

		out = append(out, section{title: "Warnings", lines: lines})
	}

	out = append(out, section{title: "Recommendations", lines: doc.Recommendations})

	return out
}

func newTable() table.Writer {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false

	return tbl
}

func keyValueTable(rows [][2]string) table.Writer {
	tbl := newTable()
	tbl.AppendHeader(table.Row{"Field", "Value"})

	for _, r := range rows {
		tbl.AppendRow(table.Row{r[0], r[1]})
	}

	return tbl
}

func generalTable(doc *export.Document) table.Writer {
	p := doc.Portfolio

	return keyValueTable([][2]string{
		{"Name", p.Name},
		{"Profile", analysis.Title(p.Profile)},
		{"Horizon", fmt.Sprintf("%s %s (%s months)", num(p.Horizon.Value), p.Horizon.Unit, num(p.Horizon.Months))},
		{"Asset classes", humanize.Comma(int64(len(p.Allocation)))},
		{"Generated", doc.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
		{"Document ID", doc.ID},
	})
}

func allocationTable(doc *export.Document) table.Writer {
	tbl := newTable()
	tbl.AppendHeader(table.Row{"Asset class", "Percent", "Risk"})
	tbl.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight, AlignFooter: text.AlignRight},
	})

	for _, a := range sortedAllocation(doc.Portfolio.Allocation) {
		tbl.AppendRow(table.Row{a.Label, pct(a.Percent), riskLabel(a.HighRisk)})
	}

	tbl.AppendFooter(table.Row{"Total", pct(doc.Metrics.Total), ""})

	return tbl
}

func analysisTable(m analysis.Metrics) table.Writer {
	allocation := "complete"
	if !m.AllocationComplete {
		allocation = "incomplete"
	}

	fit := "yes"
	if !m.ProfileFit {
		fit = "no"
	}

	return keyValueTable([][2]string{
		{"Total allocated", fmt.Sprintf("%s (%s)", pct(m.Total), allocation)},
		{"Risk exposure", fmt.Sprintf("%s (%s)", pct(m.RiskExposure), m.RiskLevel)},
		{"Conservative exposure", fmt.Sprintf("%s (%s)", pct(m.ConservativeExposure), m.ConservativeLevel)},
		{"Diversification", fmt.Sprintf("%s (%d classes)", m.Diversification, m.AssetClasses)},
		{"Largest position", pct(m.LargestPosition)},
		{"Fits profile", fit},
	})
}

func restrictionsTable(r *export.Restrictions) table.Writer {
	var rows [][2]string

	if r.VolatilityMax != nil {
		rows = append(rows, [2]string{"Maximum volatility", pct(*r.VolatilityMax)})
	}

	if r.AdminFeeMax != nil {
		rows = append(rows, [2]string{"Maximum admin fee", pct(*r.AdminFeeMax)})
	}

	for _, l := range r.Sectors {
		rows = append(rows, [2]string{"Sector " + analysis.Title(l.Name), pct(l.Percent)})
	}

	for _, l := range r.Regions {
		rows = append(rows, [2]string{"Region " + analysis.Title(l.Name), pct(l.Percent)})
	}

	return keyValueTable(rows)
}

func rebalancingTable(rb *export.Rebalancing) table.Writer {
	perYear := "unknown"
	if rb.PerYear > 0 {
		perYear = humanize.Comma(int64(rb.PerYear))
	}

	return keyValueTable([][2]string{
		{"Frequency", analysis.Title(rb.Frequency)},
		{"Rebalances per year", perYear},
		{"Tolerance", pct(rb.Tolerance)},
	})
}

func distributionLines(doc *export.Document) []string {
	entries := sortedAllocation(doc.Portfolio.Allocation)
	if len(entries) == 0 {
		return []string{"No allocation defined."}
	}

	width := 0
	for _, a := range entries {
		width = max(width, text.StringWidthWithoutEscSequences(a.Label))
	}

	lines := make([]string, 0, len(entries))
	for _, a := range entries {
		lines = append(lines, fmt.Sprintf("%s  %s %s", text.Pad(a.Label, width, ' '), analysis.Bar(a.Percent), pct(a.Percent)))
	}

	return lines
}

func sortedAllocation(in []export.Allocation) []export.Allocation {
	out := make([]export.Allocation, len(in))
	copy(out, in)

	slices.SortStableFunc(out, func(a, b export.Allocation) int {
		return cmp.Compare(b.Percent, a.Percent)
	})

	return out
}

func riskLabel(high bool) string {
	if high {
		return "high risk"
	}

	return "low risk"
}

func pct(v float64) string {
	return num(v) + "%"
}

func num(v float64) string {
	return humanize.FtoaWithDigits(v, 2)
}
