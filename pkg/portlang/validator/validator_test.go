package validator_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victortavares4/dsl-investments/pkg/portlang/ast"
	"github.com/victortavares4/dsl-investments/pkg/portlang/lexer"
	"github.com/victortavares4/dsl-investments/pkg/portlang/parser"
	"github.com/victortavares4/dsl-investments/pkg/portlang/validator"
)

func mustParse(t *testing.T, src string) *ast.Portfolio {
	t.Helper()

	tokens, err := lexer.Tokenize(src)
	require.NoError(t, err)

	p, err := parser.Parse(tokens)
	require.NoError(t, err)

	return p
}

func portfolio(profile ast.ProfileKind, entries ...ast.AllocationEntry) *ast.Portfolio {
	return &ast.Portfolio{
		Name:       "Teste",
		Profile:    ast.Profile{Raw: profile.String(), Kind: profile},
		Horizon:    ast.Horizon{Value: 5, Unit: ast.Years},
		Allocation: ast.Allocation{Entries: entries},
	}
}

func entry(asset ast.AssetClass, pct float64) ast.AllocationEntry {
	return ast.AllocationEntry{Asset: asset, Percent: pct}
}

func rules(findings []validator.Finding) []string {
	out := make([]string, len(findings))
	for i, f := range findings {
		out[i] = f.Rule
	}

	return out
}

func TestValidateAggressiveWithBlocks(t *testing.T) {
	t.Parallel()

	p := mustParse(t, `carteira {
  nome = "Crescimento";
  perfil = "arrojado";
  horizonte_temporal = 15 anos;
  alocação {
    ações_nacionais = 40%;
    ações_internacionais = 30%;
    fundos_multimercado = 20%;
    renda_fixa = 10%;
  }
  restrições {
    volatilidade_maxima = 20%;
    taxa_administrativa_maxima = 2%;
    setorial { tecnologia = 25%; }
  }
  rebalanceamento {
    frequencia = mensal;
    tolerancia = 5%;
  }
}`)

	report := validator.Validate(p)

	assert.True(t, report.Valid())
	assert.Empty(t, report.Errors)
	assert.NotContains(t, rules(report.Warnings), validator.RuleAggressiveRisk)
	assert.Empty(t, report.Warnings)
}

func TestValidateSumExceeded(t *testing.T) {
	t.Parallel()

	p := portfolio(ast.Moderate, entry(ast.AcoesNacionais, 50), entry(ast.RendaFixa, 60))

	report := validator.Validate(p)

	require.Len(t, report.Errors, 1)
	assert.Equal(t, validator.RuleAllocationSum, report.Errors[0].Rule)
	assert.Equal(t, "SEM003", report.Errors[0].Code)
	assert.Contains(t, report.Errors[0].Message, "110")
	assert.False(t, report.Valid())
}

func TestValidateSumShort(t *testing.T) {
	t.Parallel()

	p := portfolio(ast.Moderate, entry(ast.AcoesNacionais, 40), entry(ast.RendaFixa, 50))

	report := validator.Validate(p)

	require.Len(t, report.Errors, 1)
	assert.Equal(t, "SEM004", report.Errors[0].Code)
	assert.Equal(t, "allocate the remaining 10.00%", report.Errors[0].Suggestion)
}

func TestValidateOutOfRangeAllocations(t *testing.T) {
	t.Parallel()

	p := mustParse(t, `carteira { nome = "X"; perfil = "moderado"; horizonte_temporal = 5 anos;
alocação { ações_nacionais = -10%; renda_fixa = 110%; } }`)

	report := validator.Validate(p)

	require.Len(t, report.Errors, 2)
	assert.Equal(t, []string{validator.RuleAllocationRange, validator.RuleAllocationRange}, rules(report.Errors))
	assert.Contains(t, report.Errors[0].Message, "ações_nacionais")
	assert.Contains(t, report.Errors[1].Message, "renda_fixa")
	assert.Equal(t, ast.Pos{Line: 2, Column: 12}, report.Errors[0].Pos)
}

func TestValidateConservativeOverexposed(t *testing.T) {
	t.Parallel()

	p := portfolio(ast.Conservative,
		entry(ast.AcoesNacionais, 60),
		entry(ast.AcoesInternacionais, 25),
		entry(ast.RendaFixa, 15))

	report := validator.Validate(p)

	assert.Empty(t, report.Errors)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, validator.RuleConservativeRisk, report.Warnings[0].Rule)
	assert.Equal(t, validator.SeverityWarning, report.Warnings[0].Severity)
	assert.Contains(t, report.Warnings[0].Message, "85")
}

func TestValidateSumBoundaries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		fixed  float64
		valid  bool
		expect string
	}{
		{49.99, true, "99.99"},
		{50.01, true, "100.01"},
		{49.98, false, "99.98"},
		{50.02, false, "100.02"},
		{50, true, "100"},
	}

	for _, tt := range tests {
		t.Run(tt.expect, func(t *testing.T) {
			t.Parallel()

			p := portfolio(ast.Moderate, entry(ast.AcoesNacionais, 50), entry(ast.RendaFixa, tt.fixed))

			report := validator.Validate(p)
			assert.Equal(t, tt.valid, report.Valid(), fmt.Sprintf("total %s", tt.expect))
		})
	}
}

func TestValidateUnknownProfile(t *testing.T) {
	t.Parallel()

	p := portfolio(ast.UnknownProfile, entry(ast.AcoesNacionais, 50), entry(ast.RendaFixa, 50))
	p.Profile.Raw = "agressivo"

	report := validator.Validate(p)

	require.Len(t, report.Errors, 1)
	assert.Equal(t, validator.RuleProfileUnknown, report.Errors[0].Rule)
	assert.Contains(t, report.Errors[0].Message, "agressivo")
}

func TestValidateRestrictions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		vol, fee float64
		errors   []string
		warnings []string
	}{
		{"within bands", 15, 1.5, []string{}, []string{}},
		{"volatility above band", 30, 1, []string{}, []string{validator.RuleVolatilityBand}},
		{"volatility below band", 2, 1, []string{}, []string{validator.RuleVolatilityBand}},
		{"fee high", 10, 3.5, []string{}, []string{validator.RuleAdminFeeHigh}},
		{"fee boundary", 5, 3, []string{}, []string{}},
		{"volatility invalid", 150, 1, []string{validator.RuleRestrictionRange}, []string{}},
		{"fee invalid", 10, -1, []string{validator.RuleRestrictionRange}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := portfolio(ast.Moderate, entry(ast.AcoesNacionais, 50), entry(ast.RendaFixa, 50))
			p.Restrictions = &ast.Restrictions{
				VolatilityMax: &ast.Percent{Value: tt.vol},
				AdminFeeMax:   &ast.Percent{Value: tt.fee},
			}

			report := validator.Validate(p)
			assert.Equal(t, tt.errors, rules(report.Errors))
			assert.Equal(t, tt.warnings, rules(report.Warnings))
		})
	}
}

func TestValidateToleranceRange(t *testing.T) {
	t.Parallel()

	p := portfolio(ast.Moderate, entry(ast.AcoesNacionais, 50), entry(ast.RendaFixa, 50))
	p.Rebalancing = &ast.Rebalancing{
		Frequency: ast.Frequency{Raw: "anual", Kind: ast.Annual},
		Tolerance: ast.Percent{Value: 120},
	}

	report := validator.Validate(p)

	assert.Equal(t, []string{validator.RuleToleranceRange}, rules(report.Errors))
}

func TestValidateLimitRangeAndHorizon(t *testing.T) {
	t.Parallel()

	p := portfolio(ast.Moderate, entry(ast.AcoesNacionais, 50), entry(ast.RendaFixa, 50))
	p.Horizon.Value = 0
	p.Restrictions = &ast.Restrictions{
		Sectors: &ast.Limits{Entries: []ast.LimitEntry{{Name: "energia", Percent: 140}}},
		Regions: &ast.Limits{Entries: []ast.LimitEntry{{Name: "brasil", Percent: 60}}},
	}

	report := validator.Validate(p)

	assert.Equal(t, []string{validator.RuleLimitRange, validator.RuleHorizonPositive}, rules(report.Errors))
	assert.Contains(t, report.Errors[0].Message, "energia")
}

func TestValidateWarningOrder(t *testing.T) {
	t.Parallel()

	p := portfolio(ast.Aggressive, entry(ast.RendaFixa, 100))
	p.Restrictions = &ast.Restrictions{
		VolatilityMax: &ast.Percent{Value: 40},
		AdminFeeMax:   &ast.Percent{Value: 4},
	}
	p.Rebalancing = &ast.Rebalancing{Frequency: ast.Frequency{Raw: "diaria"}, Tolerance: ast.Percent{Value: 5}}

	report := validator.Validate(p)

	assert.Empty(t, report.Errors)
	assert.Equal(t, []string{
		validator.RuleAggressiveRisk,
		validator.RuleVolatilityBand,
		validator.RuleAdminFeeHigh,
		validator.RuleConcentration,
		validator.RuleDiversification,
		validator.RuleFrequencyUnknown,
	}, rules(report.Warnings))
}

func TestValidateModerateBand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		risk float64
		warn bool
	}{
		{10, true},
		{20, false},
		{70, false},
		{75, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.risk), func(t *testing.T) {
			t.Parallel()

			rest := (100 - tt.risk) / 2
			p := portfolio(ast.Moderate,
				entry(ast.AcoesNacionais, tt.risk),
				entry(ast.FundosImobiliarios, rest),
				entry(ast.RendaFixa, rest))
			report := validator.Validate(p)

			if tt.warn {
				assert.Equal(t, []string{validator.RuleModerateRisk}, rules(report.Warnings))
			} else {
				assert.Empty(t, report.Warnings)
			}
		})
	}
}

func TestValidateDiversificationIgnoresZeroEntries(t *testing.T) {
	t.Parallel()

	p := portfolio(ast.Conservative, entry(ast.AcoesNacionais, 0), entry(ast.RendaFixa, 100))

	report := validator.Validate(p)

	assert.Contains(t, rules(report.Warnings), validator.RuleDiversification)
}

func TestValidateCustomThresholds(t *testing.T) {
	t.Parallel()

	th := validator.DefaultThresholds()
	th.ConservativeMaxRisk = 50

	p := portfolio(ast.Conservative, entry(ast.AcoesNacionais, 40), entry(ast.RendaFixa, 60))

	assert.Contains(t, rules(validator.Validate(p).Warnings), validator.RuleConservativeRisk)
	assert.Empty(t, validator.New(th).Validate(p).Warnings)
}

func TestValidateIdempotent(t *testing.T) {
	t.Parallel()

	p := portfolio(ast.Conservative,
		entry(ast.AcoesNacionais, 95),
		entry(ast.RendaFixa, 15))

	first := validator.Validate(p)
	second := validator.Validate(p)

	assert.Equal(t, first, second)
	assert.Equal(t, first.All(), second.All())
}

func TestValidateNil(t *testing.T) {
	t.Parallel()

	report := validator.Validate(nil)
	assert.True(t, report.Valid())
	assert.Empty(t, report.Warnings)
}
