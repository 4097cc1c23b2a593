package printer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victortavares4/dsl-investments/pkg/portlang/parser"
	"github.com/victortavares4/dsl-investments/pkg/portlang/printer"
)

const messy = `// comment
carteira { perfil="arrojado"; nome="Crescimento";
horizonte_temporal=15.0 anos;
alocação{ações_nacionais=40.50%;renda_fixa=59.5%;}
restrições{setorial{energia=10%;}volatilidade_maxima=20%;}
rebalanceamento{tolerancia=5%;frequencia=trimestral;}}`

const canonical = `carteira {
  nome = "Crescimento";
  perfil = "arrojado";
  horizonte_temporal = 15 anos;

  alocação {
    ações_nacionais = 40.5%;
    renda_fixa = 59.5%;
  }

  restrições {
    volatilidade_maxima = 20%;
    setorial {
      energia = 10%;
    }
  }

  rebalanceamento {
    frequencia = trimestral;
    tolerancia = 5%;
  }
}
`

func TestFormatCanonical(t *testing.T) {
	t.Parallel()

	out, err := printer.Format(messy)
	require.NoError(t, err)

	assert.Equal(t, canonical, string(out))
}

func TestFormatIdempotent(t *testing.T) {
	t.Parallel()

	once, err := printer.Format(messy)
	require.NoError(t, err)

	twice, err := printer.Format(string(once))
	require.NoError(t, err)

	assert.Equal(t, string(once), string(twice))
}

func TestFormatKeepsInvalidSemantics(t *testing.T) {
	t.Parallel()

	out, err := printer.Format(`carteira { nome = "X"; perfil = "x"; horizonte_temporal = 1 meses;
alocação { renda_fixa = -5%; } }`)
	require.NoError(t, err)

	assert.Contains(t, string(out), "renda_fixa = -5%;")
	assert.Contains(t, string(out), "horizonte_temporal = 1 meses;")
}

func TestFormatSyntaxError(t *testing.T) {
	t.Parallel()

	_, err := printer.Format(`carteira {`)
	require.Error(t, err)
	assert.ErrorIs(t, err, parser.ErrSyntax)
}

func TestFormatNumber(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "10", printer.FormatNumber(10))
	assert.Equal(t, "2.5", printer.FormatNumber(2.5))
	assert.Equal(t, "-10", printer.FormatNumber(-10))
	assert.Equal(t, "0.01", printer.FormatNumber(0.01))
}
