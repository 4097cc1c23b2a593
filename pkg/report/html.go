package report

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/victortavares4/dsl-investments/pkg/export"
)

const (
	chartWidth  = "100%"
	chartHeight = "420px"
	pieRadius   = "60%"
	riskColor   = "#d9534f"
	safeColor   = "#5cb85c"
)

var pageTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<script src="https://go-echarts.github.io/go-echarts-assets/assets/echarts.min.js"></script>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem auto; max-width: 960px; color: #222; }
h1 { border-bottom: 2px solid #2b6cb0; padding-bottom: .5rem; }
h2 { color: #2b6cb0; margin-top: 2rem; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ddd; padding: .4rem .6rem; text-align: left; }
pre { background: #f6f8fa; padding: 1rem; }
footer { margin-top: 3rem; color: #888; font-size: .85rem; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
{{range .Sections}}<section>
<h2>{{.Title}}</h2>
{{if .Table}}{{.Table}}{{else if .Pre}}<pre>{{range .Lines}}{{.}}
{{end}}</pre>{{else}}<ul>{{range .Lines}}<li>{{.}}</li>{{end}}</ul>{{end}}
</section>
{{end}}{{range .Charts}}<section class="chart">{{.}}</section>
{{end}}<footer>Generated by {{.Generator}}</footer>
</body>
</html>
`))

type htmlSection struct {
	Title string
	Table template.HTML
	Lines []string
	Pre   bool
}

type htmlPage struct {
	Title     string
	Generator string
	Sections  []htmlSection
	Charts    []template.HTML
}

type renderable interface {
	Render(w io.Writer) error
}

func renderHTML(w io.Writer, doc *export.Document) error {
	page := htmlPage{
		Title:     reportTitle + ": " + doc.Portfolio.Name,
		Generator: doc.Generator,
	}

	for _, s := range sections(doc) {
		hs := htmlSection{Title: s.title, Lines: s.lines}

		if s.table != nil {
			// go-pretty escapes cell content.
			hs.Table = template.HTML(s.table.RenderHTML()) //nolint:gosec // escaped by go-pretty
		}

		hs.Pre = s.title == "Visual distribution"
		page.Sections = append(page.Sections, hs)
	}

	for _, chart := range []renderable{allocationPie(doc), exposureBar(doc)} {
		fragment, err := chartFragment(chart)
		if err != nil {
			return err
		}

		page.Charts = append(page.Charts, fragment)
	}

	err := pageTemplate.Execute(w, page)
	if err != nil {
		return fmt.Errorf("write html report: %w", err)
	}

	return nil
}

func allocationPie(doc *export.Document) *charts.Pie {
	pie := charts.NewPie()
	pie.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Asset allocation"}),
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "item"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
	)

	data := make([]opts.PieData, 0, len(doc.Portfolio.Allocation))
	for _, a := range sortedAllocation(doc.Portfolio.Allocation) {
		data = append(data, opts.PieData{Name: a.Label, Value: a.Percent})
	}

	pie.AddSeries("Allocation", data).
		SetSeriesOptions(
			charts.WithPieChartOpts(opts.PieChart{Radius: pieRadius}),
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Formatter: "{b}: {c}%"}),
		)

	return pie
}

func exposureBar(doc *export.Document) *charts.Bar {
	m := doc.Metrics

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Risk exposure"}),
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "%", Max: 100}),
	)
	bar.SetXAxis([]string{"High risk", "Conservative"})
	bar.AddSeries("Exposure", []opts.BarData{
		{Value: m.RiskExposure, ItemStyle: &opts.ItemStyle{Color: riskColor}},
		{Value: m.ConservativeExposure, ItemStyle: &opts.ItemStyle{Color: safeColor}},
	})

	return bar
}

// chartFragment renders a chart and keeps only its container and script,
// dropping the standalone page go-echarts wraps around it.
func chartFragment(chart renderable) (template.HTML, error) {
	var buf bytes.Buffer

	err := chart.Render(&buf)
	if err != nil {
		return "", fmt.Errorf("render chart: %w", err)
	}

	html := buf.String()

	start := strings.Index(html, `<div class="container">`)
	end := strings.LastIndex(html, `</body>`)

	if start == -1 || end == -1 || end < start {
		return template.HTML(html), nil //nolint:gosec // generated by go-echarts
	}

	return template.HTML(html[start:end]), nil //nolint:gosec // generated by go-echarts
}
