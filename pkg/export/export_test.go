package export_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victortavares4/dsl-investments/pkg/export"
	"github.com/victortavares4/dsl-investments/pkg/export/schema"
	"github.com/victortavares4/dsl-investments/pkg/portlang"
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

const blocked = `carteira {
  nome = "Soma";
  perfil = "moderado";
  horizonte_temporal = 5 anos;
  alocação {
    ações_nacionais = 50%;
    renda_fixa = 60%;
  }
}`

var generatedAt = time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)

func newDocument(t *testing.T, source string) *export.Document {
	t.Helper()

	res, err := portlang.Compile(source)
	require.NoError(t, err)

	doc, err := export.NewDocument(res, export.Meta{ID: "doc-1", GeneratedAt: generatedAt, Generator: "test"})
	require.NoError(t, err)

	return doc
}

func TestNewDocument(t *testing.T) {
	t.Parallel()

	doc := newDocument(t, growth)

	assert.Equal(t, "doc-1", doc.ID)
	assert.Equal(t, generatedAt, doc.GeneratedAt)
	assert.Equal(t, "Crescimento", doc.Portfolio.Name)
	assert.Equal(t, "arrojado", doc.Portfolio.Profile)
	assert.Equal(t, export.Horizon{Value: 15, Unit: "anos", Months: 180}, doc.Portfolio.Horizon)

	require.Len(t, doc.Portfolio.Allocation, 5)
	assert.Equal(t, export.Allocation{
		Asset: "ações_nacionais", Label: "Ações Nacionais", Percent: 35, HighRisk: true,
	}, doc.Portfolio.Allocation[0])
	assert.False(t, doc.Portfolio.Allocation[3].HighRisk)

	require.NotNil(t, doc.Portfolio.Restrictions)
	require.NotNil(t, doc.Portfolio.Restrictions.VolatilityMax)
	assert.InDelta(t, 22.0, *doc.Portfolio.Restrictions.VolatilityMax, 0)
	assert.Nil(t, doc.Portfolio.Restrictions.AdminFeeMax)
	assert.Equal(t, []export.Limit{{Name: "tecnologia", Percent: 30}}, doc.Portfolio.Restrictions.Sectors)
	assert.Nil(t, doc.Portfolio.Restrictions.Regions)

	require.NotNil(t, doc.Portfolio.Rebalancing)
	assert.Equal(t, export.Rebalancing{Frequency: "trimestral", Tolerance: 5, PerYear: 4}, *doc.Portfolio.Rebalancing)

	assert.NotNil(t, doc.Findings.Errors)
	assert.Empty(t, doc.Findings.Errors)
	assert.InDelta(t, 85.0, doc.Metrics.RiskExposure, 1e-9)
	assert.True(t, doc.Metrics.ProfileFit)
	assert.NotEmpty(t, doc.Recommendations)
}

func TestNewDocumentDefaults(t *testing.T) {
	t.Parallel()

	res, err := portlang.Compile(growth)
	require.NoError(t, err)

	doc, err := export.NewDocument(res, export.Meta{})
	require.NoError(t, err)

	assert.Len(t, doc.ID, 36)
	assert.False(t, doc.GeneratedAt.IsZero())
	assert.True(t, strings.HasPrefix(doc.Generator, "portlang "))
}

func TestNewDocumentBlocked(t *testing.T) {
	t.Parallel()

	res, err := portlang.Compile(blocked)
	require.NoError(t, err)

	_, err = export.NewDocument(res, export.Meta{})
	require.ErrorIs(t, err, portlang.ErrBlocked)

	_, err = export.NewDocument(nil, export.Meta{})
	require.ErrorIs(t, err, portlang.ErrBlocked)
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want export.Format
	}{
		{"json", export.FormatJSON},
		{"JSON", export.FormatJSON},
		{"compact", export.FormatCompact},
		{"yml", export.FormatYAML},
		{" toml ", export.FormatTOML},
		{"binary", export.FormatBinary},
	}

	for _, tt := range tests {
		got, err := export.ParseFormat(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := export.ParseFormat("pdf")
	require.ErrorIs(t, err, export.ErrUnknownFormat)

	assert.Equal(t, "json", export.FormatCompact.Extension())
	assert.Equal(t, "plng", export.FormatBinary.Extension())
	assert.Len(t, export.Formats(), 5)
}

func TestEncodeDecodeEveryFormat(t *testing.T) {
	t.Parallel()

	doc := newDocument(t, growth)

	for _, format := range export.Formats() {
		t.Run(string(format), func(t *testing.T) {
			t.Parallel()

			data, err := export.Marshal(doc, format)
			require.NoError(t, err)
			require.NotEmpty(t, data)

			got, err := export.Decode(bytes.NewReader(data), format)
			require.NoError(t, err)

			assert.Equal(t, doc.ID, got.ID)
			assert.True(t, doc.GeneratedAt.Equal(got.GeneratedAt))
			assert.Equal(t, doc.Portfolio, got.Portfolio)
			assert.Equal(t, doc.Metrics, got.Metrics)
			assert.Equal(t, doc.Recommendations, got.Recommendations)
		})
	}
}

func TestEncodeShapes(t *testing.T) {
	t.Parallel()

	doc := newDocument(t, growth)

	pretty, err := export.Marshal(doc, export.FormatJSON)
	require.NoError(t, err)
	assert.Contains(t, string(pretty), "\n  \"id\": \"doc-1\"")

	compact, err := export.Marshal(doc, export.FormatCompact)
	require.NoError(t, err)
	assert.Equal(t, 1, bytes.Count(compact, []byte("\n")))

	yml, err := export.Marshal(doc, export.FormatYAML)
	require.NoError(t, err)
	assert.Contains(t, string(yml), "name: Crescimento")

	tml, err := export.Marshal(doc, export.FormatTOML)
	require.NoError(t, err)
	assert.Contains(t, string(tml), "[portfolio]")
	assert.Contains(t, string(tml), `name = "Crescimento"`)

	bin, err := export.Marshal(doc, export.FormatBinary)
	require.NoError(t, err)
	assert.Equal(t, []byte("PLNG"), bin[:4])
	assert.Less(t, len(bin), len(compact))

	err = export.Encode(&bytes.Buffer{}, doc, export.Format("xml"))
	require.ErrorIs(t, err, export.ErrUnknownFormat)
}

func TestDecodeBinaryRejectsBadInput(t *testing.T) {
	t.Parallel()

	doc := newDocument(t, growth)

	bin, err := export.Marshal(doc, export.FormatBinary)
	require.NoError(t, err)

	_, err = export.DecodeBinary(bytes.NewReader([]byte("JSON{}")))
	require.Error(t, err)

	bad := append([]byte("XXXX"), bin[4:]...)
	_, err = export.DecodeBinary(bytes.NewReader(bad))
	require.ErrorIs(t, err, export.ErrBadMagic)

	version := append([]byte{}, bin...)
	version[4] = 9
	_, err = export.DecodeBinary(bytes.NewReader(version))
	require.ErrorIs(t, err, export.ErrUnsupportedVersion)

	_, err = export.DecodeBinary(bytes.NewReader(bin[:len(bin)-3]))
	require.ErrorIs(t, err, export.ErrCorrupt)
}

func TestExportedJSONMatchesSchema(t *testing.T) {
	t.Parallel()

	data, err := export.Marshal(newDocument(t, growth), export.FormatJSON)
	require.NoError(t, err)

	violations, err := schema.Validate(data)
	require.NoError(t, err)
	assert.Empty(t, violations)

	var loose map[string]any
	require.NoError(t, json.Unmarshal(data, &loose))
	delete(loose, "portfolio")

	broken, err := json.Marshal(loose)
	require.NoError(t, err)

	violations, err = schema.Validate(broken)
	require.NoError(t, err)
	require.NotEmpty(t, violations)
	assert.Contains(t, violations[0].String(), "portfolio")
}

func TestEmbeddedSchemaIsGenerated(t *testing.T) {
	t.Parallel()

	generated, err := schema.Marshal(schema.Generate(export.SchemaTitle, &export.Document{}))
	require.NoError(t, err)

	assert.JSONEq(t, string(schema.Document()), string(generated),
		"run go run ./tools/schemagen after changing export types")
}
