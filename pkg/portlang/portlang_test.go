package portlang_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victortavares4/dsl-investments/pkg/portlang"
	"github.com/victortavares4/dsl-investments/pkg/portlang/lexer"
	"github.com/victortavares4/dsl-investments/pkg/portlang/parser"
	"github.com/victortavares4/dsl-investments/pkg/portlang/token"
	"github.com/victortavares4/dsl-investments/pkg/portlang/validator"
)

const validAggressive = `carteira {
  nome = "Crescimento Agressivo";
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
    taxa_administrativa_maxima = 2%;
    setorial {
      tecnologia = 30%;
      financeiro = 25%;
    }
  }

  rebalanceamento {
    frequencia = mensal;
    tolerancia = 5%;
  }
}`

const sumOver = `carteira {
  nome = "Soma";
  perfil = "moderado";
  horizonte_temporal = 5 anos;
  alocação {
    ações_nacionais = 50%;
    renda_fixa = 60%;
  }
}`

const outOfRange = `carteira {
  nome = "Intervalo";
  perfil = "moderado";
  horizonte_temporal = 5 anos;
  alocação {
    ações_nacionais = -10%;
    renda_fixa = 110%;
  }
}`

const conservativeRisky = `carteira {
  nome = "Conservadora";
  perfil = "conservador";
  horizonte_temporal = 3 anos;
  alocação {
    ações_nacionais = 60%;
    ações_internacionais = 25%;
    renda_fixa = 15%;
  }
}`

const unterminated = `carteira {
  nome = "Sem fim;
}`

const missingSemicolon = `carteira {
  nome = "X"
  perfil = "moderado";
}`

func TestCompileValidAggressive(t *testing.T) {
	t.Parallel()

	res, err := portlang.Compile(validAggressive)
	require.NoError(t, err)

	assert.True(t, res.Valid())
	assert.Empty(t, res.Report.Errors)
	assert.NoError(t, res.Generatable())
	assert.Equal(t, "Crescimento Agressivo", res.Portfolio.Name)
	assert.Equal(t, token.EOF, res.Tokens[len(res.Tokens)-1].Kind)

	for _, w := range res.Report.Warnings {
		assert.NotEqual(t, validator.RuleAggressiveRisk, w.Rule)
	}
}

func TestCompileSumOver(t *testing.T) {
	t.Parallel()

	res, err := portlang.Compile(sumOver)
	require.NoError(t, err)

	require.Len(t, res.Report.Errors, 1)
	assert.Equal(t, validator.RuleAllocationSum, res.Report.Errors[0].Rule)
	assert.False(t, res.Valid())

	err = res.Generatable()
	require.Error(t, err)
	assert.ErrorIs(t, err, portlang.ErrBlocked)
}

func TestCompileOutOfRange(t *testing.T) {
	t.Parallel()

	res, err := portlang.Compile(outOfRange)
	require.NoError(t, err)

	require.Len(t, res.Report.Errors, 2)

	for _, e := range res.Report.Errors {
		assert.Equal(t, validator.RuleAllocationRange, e.Rule)
	}
}

func TestCompileConservativeRisky(t *testing.T) {
	t.Parallel()

	res, err := portlang.Compile(conservativeRisky)
	require.NoError(t, err)

	assert.Empty(t, res.Report.Errors)
	require.Len(t, res.Report.Warnings, 1)
	assert.Equal(t, validator.RuleConservativeRisk, res.Report.Warnings[0].Rule)
	assert.NoError(t, res.Generatable())
}

func TestCompileUnterminatedString(t *testing.T) {
	t.Parallel()

	res, err := portlang.Compile(unterminated)
	require.Error(t, err)
	assert.Nil(t, res)

	var lexErr *lexer.Error
	require.ErrorAs(t, err, &lexErr)
	assert.Equal(t, lexer.UnterminatedString, lexErr.Kind)
	assert.Equal(t, 2, lexErr.Line)
	assert.Equal(t, 10, lexErr.Column)
}

func TestCompileMissingSemicolon(t *testing.T) {
	t.Parallel()

	_, err := portlang.Compile(missingSemicolon)
	require.Error(t, err)

	var synErr *parser.Error
	require.ErrorAs(t, err, &synErr)
	assert.Equal(t, parser.UnexpectedToken, synErr.Kind)
	assert.Equal(t, []token.Kind{token.Semicolon}, synErr.Expected)
	assert.Equal(t, 3, synErr.Line())
}

func TestCompileWithThresholds(t *testing.T) {
	t.Parallel()

	opts := portlang.DefaultOptions()
	opts.Thresholds.ConservativeMaxRisk = 90

	res, err := portlang.CompileWith(conservativeRisky, opts)
	require.NoError(t, err)
	assert.Empty(t, res.Report.Warnings)
}

func TestDiagnosticsFatal(t *testing.T) {
	t.Parallel()

	res, err := portlang.Compile(unterminated)
	diags := portlang.Diagnostics(res, err)

	require.Len(t, diags, 1)
	assert.Equal(t, portlang.StageLexical, diags[0].Stage)
	assert.Equal(t, "LEX002", diags[0].Code)
	assert.True(t, diags[0].IsError())
	assert.Equal(t, 2, diags[0].Line)
	assert.NotEmpty(t, diags[0].Suggestion)

	res, err = portlang.Compile(missingSemicolon)
	diags = portlang.Diagnostics(res, err)

	require.Len(t, diags, 1)
	assert.Equal(t, portlang.StageSyntax, diags[0].Stage)
	assert.Equal(t, "SYN001", diags[0].Code)
	assert.Equal(t, 3, diags[0].Line)
	assert.Equal(t, 3, diags[0].Column)
}

func TestDiagnosticsSemantic(t *testing.T) {
	t.Parallel()

	res, err := portlang.Compile(outOfRange)
	diags := portlang.Diagnostics(res, err)

	require.GreaterOrEqual(t, len(diags), 2)
	assert.Equal(t, portlang.StageSemantic, diags[0].Stage)
	assert.Equal(t, "SEM005", diags[0].Code)
	assert.Equal(t, 6, diags[0].Line)
	assert.Equal(t, 7, diags[1].Line)

	portlang.SortByPosition(diags)

	for i := 1; i < len(diags); i++ {
		assert.LessOrEqual(t, diags[i-1].Line, diags[i].Line)
	}
}

func TestCompileConcurrent(t *testing.T) {
	t.Parallel()

	done := make(chan bool, 8)

	for range 8 {
		go func() {
			res, err := portlang.Compile(validAggressive)
			done <- err == nil && res.Valid()
		}()
	}

	for range 8 {
		assert.True(t, <-done)
	}
}
