package report_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victortavares4/dsl-investments/pkg/export"
	"github.com/victortavares4/dsl-investments/pkg/portlang"
	"github.com/victortavares4/dsl-investments/pkg/report"
)

const growth = `carteira {
  nome = "Crescimento";
  perfil = "arrojado";
  horizonte_temporal = 15 anos;
  alocação {
    ações_nacionais = 35%;
    ações_internacionais = 30%;
    fundos_multimercado = 20%;
    fundos_imobiliarios = 10%;
    renda_fixa = 5%;
  }
  restrições {
    volatilidade_maxima = 22%;
    setorial {
      tecnologia = 30%;
    }
  }
  rebalanceamento {
    frequencia = trimestral;
    tolerancia = 5%;
  }
}`

const minimal = `carteira {
  nome = "Reserva";
  perfil = "conservador";
  horizonte_temporal = 6 meses;
  alocação {
    renda_fixa = 100%;
  }
}`

func newDocument(t *testing.T, source string) *export.Document {
	t.Helper()

	res, err := portlang.Compile(source)
	require.NoError(t, err)

	doc, err := export.NewDocument(res, export.Meta{
		ID:          "doc-1",
		GeneratedAt: time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC),
		Generator:   "portlang test",
	})
	require.NoError(t, err)

	return doc
}

func render(t *testing.T, doc *export.Document, format report.Format, opts report.Options) string {
	t.Helper()

	var buf bytes.Buffer

	require.NoError(t, report.Render(&buf, doc, format, opts))

	return buf.String()
}

func TestRenderText(t *testing.T) {
	t.Parallel()

	out := render(t, newDocument(t, growth), report.FormatText, report.Options{})

	assert.True(t, strings.HasPrefix(out, "PORTFOLIO REPORT: Crescimento\n"))
	assert.NotContains(t, out, "\x1b[", "colors disabled")

	for _, want := range []string{
		"GENERAL INFORMATION",
		"ASSET ALLOCATION",
		"ANALYSIS",
		"VISUAL DISTRIBUTION",
		"RESTRICTIONS AND LIMITS",
		"REBALANCING",
		"RECOMMENDATIONS",
		"Ações Nacionais",
		"35%",
		"180 months",
		"Sector Tecnologia",
		"Trimestral",
		"███████░ 35%",
		"Generated by portlang test",
	} {
		assert.Contains(t, out, want)
	}
}

func TestRenderTextSortsByPercent(t *testing.T) {
	t.Parallel()

	out := render(t, newDocument(t, growth), report.FormatText, report.Options{})

	first := strings.Index(out, "Ações Nacionais")
	last := strings.Index(out, "Renda Fixa")

	require.NotEqual(t, -1, first)
	require.NotEqual(t, -1, last)
	assert.Less(t, first, last)
}

func TestRenderTextOmitsOptionalSections(t *testing.T) {
	t.Parallel()

	out := render(t, newDocument(t, minimal), report.FormatText, report.Options{})

	assert.NotContains(t, out, "RESTRICTIONS AND LIMITS")
	assert.NotContains(t, out, "REBALANCING")
	assert.Contains(t, out, "6 meses (6 months)")
}

func TestRenderMarkdown(t *testing.T) {
	t.Parallel()

	out := render(t, newDocument(t, growth), report.FormatMarkdown, report.Options{})

	assert.True(t, strings.HasPrefix(out, "# Portfolio Report: Crescimento\n"))
	assert.Contains(t, out, "\n## Asset allocation\n")
	assert.Contains(t, out, "| Asset class | Percent | Risk |")
	assert.Contains(t, out, "\n    Ações Nacionais")
	assert.Contains(t, out, "\n- ")
	assert.Contains(t, out, "_Generated by portlang test_")
}

func TestRenderHTML(t *testing.T) {
	t.Parallel()

	out := render(t, newDocument(t, growth), report.FormatHTML, report.Options{})

	assert.True(t, strings.HasPrefix(out, "<!DOCTYPE html>"))
	assert.Contains(t, out, "<title>Portfolio Report: Crescimento</title>")
	assert.Contains(t, out, "<h2>Asset allocation</h2>")
	assert.Contains(t, out, "<table")
	assert.Contains(t, out, "<pre>")
	assert.Contains(t, out, "echarts.min.js")
	assert.Contains(t, out, `<div class="container">`)
	assert.Equal(t, 1, strings.Count(out, "<html"), "chart pages are embedded as fragments")
	assert.Contains(t, out, "Generated by portlang test")
}

func TestRenderHTMLEscapesNames(t *testing.T) {
	t.Parallel()

	source := strings.Replace(minimal, `"Reserva"`, `"<script>x</script>"`, 1)
	out := render(t, newDocument(t, source), report.FormatHTML, report.Options{})

	assert.NotContains(t, out, "<h1>Portfolio Report: <script>x</script>")
	assert.Contains(t, out, "&lt;script&gt;")
}

func TestRenderUnknownFormat(t *testing.T) {
	t.Parallel()

	err := report.Render(&bytes.Buffer{}, newDocument(t, minimal), report.Format("pdf"), report.Options{})
	require.ErrorIs(t, err, report.ErrUnknownFormat)
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want report.Format
		ext  string
	}{
		{"text", report.FormatText, "txt"},
		{"TXT", report.FormatText, "txt"},
		{"markdown", report.FormatMarkdown, "md"},
		{"md", report.FormatMarkdown, "md"},
		{" html ", report.FormatHTML, "html"},
	}

	for _, tt := range tests {
		got, err := report.ParseFormat(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.ext, got.Extension())
	}

	_, err := report.ParseFormat("docx")
	require.ErrorIs(t, err, report.ErrUnknownFormat)
	assert.Len(t, report.Formats(), 3)
}
