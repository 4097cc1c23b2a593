package lsp

import (
	"fmt"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/victortavares4/dsl-investments/pkg/portlang/ast"
	"github.com/victortavares4/dsl-investments/pkg/portlang/token"
)

type keywordDoc struct {
	detail  string
	example string
}

var keywordDocs = map[token.Kind]keywordDoc{
	token.Carteira:          {"Root block of a portfolio document.", "carteira { ... }"},
	token.Nome:              {"Portfolio name (required, once).", `nome = "Aposentadoria";`},
	token.Perfil:            {"Investor profile: conservador, moderado or arrojado.", `perfil = "moderado";`},
	token.HorizonteTemporal: {"Investment horizon in anos or meses.", "horizonte_temporal = 10 anos;"},
	token.Alocacao:          {"Allocation block. Percentages must add up to 100%.", "alocação { renda_fixa = 100%; }"},
	token.Restricoes:        {"Optional risk limits block.", "restrições { volatilidade_maxima = 15%; }"},
	token.Rebalanceamento:   {"Optional rebalancing policy block.", "rebalanceamento { frequencia = trimestral; tolerancia = 5%; }"},

	token.AcoesNacionais:      {"Domestic equities.", "ações_nacionais = 30%;"},
	token.AcoesInternacionais: {"International equities.", "ações_internacionais = 15%;"},
	token.FundosImobiliarios:  {"Real estate funds.", "fundos_imobiliarios = 10%;"},
	token.FundosMultimercado:  {"Multi-strategy funds.", "fundos_multimercado = 10%;"},
	token.RendaFixa:           {"Fixed income.", "renda_fixa = 35%;"},

	token.Anos:  {"Horizon unit: years.", "horizonte_temporal = 5 anos;"},
	token.Meses: {"Horizon unit: months.", "horizonte_temporal = 18 meses;"},

	token.Setorial:   {"Per-sector exposure caps inside restrições.", "setorial { tecnologia = 30%; }"},
	token.Geografico: {"Per-region exposure caps inside restrições.", "geografico { europa = 20%; }"},

	token.Frequencia: {"Rebalancing cadence.", "frequencia = semestral;"},
	token.Tolerancia: {"Drift allowed before rebalancing.", "tolerancia = 5%;"},
	token.Mensal:     {"Rebalance 12 times a year.", "frequencia = mensal;"},
	token.Trimestral: {"Rebalance 4 times a year.", "frequencia = trimestral;"},
	token.Semestral:  {"Rebalance twice a year.", "frequencia = semestral;"},
	token.Anual:      {"Rebalance once a year.", "frequencia = anual;"},

	token.VolatilidadeMaxima:       {"Maximum annual volatility. Recommended range is 5% to 25%.", "volatilidade_maxima = 18%;"},
	token.TaxaAdministrativaMaxima: {"Maximum administration fee. Above 3% is flagged.", "taxa_administrativa_maxima = 1.5%;"},
}

func completionKind(k token.Kind) protocol.CompletionItemKind {
	switch {
	case k.IsAssetClass():
		return protocol.CompletionItemKindField
	case k.IsFrequency(), k == token.Anos, k == token.Meses:
		return protocol.CompletionItemKindEnumMember
	default:
		return protocol.CompletionItemKindKeyword
	}
}

func completionItem(label string, kind protocol.CompletionItemKind, detail string) protocol.CompletionItem {
	return protocol.CompletionItem{
		Label:  label,
		Kind:   &kind,
		Detail: &detail,
	}
}

// completionItems lists every keyword plus the three profile values.
func completionItems() []protocol.CompletionItem {
	keywords := token.Keywords()
	items := make([]protocol.CompletionItem, 0, len(keywords)+3)

	for _, kw := range keywords {
		k := token.Lookup(kw)
		items = append(items, completionItem(kw, completionKind(k), keywordDocs[k].detail))
	}

	for _, p := range []ast.ProfileKind{ast.Conservative, ast.Moderate, ast.Aggressive} {
		items = append(items, completionItem(`"`+p.String()+`"`, protocol.CompletionItemKindValue, "Investor profile"))
	}

	return items
}

// hoverDoc returns Markdown help for a keyword.
func hoverDoc(word string) (string, bool) {
	k := token.Lookup(word)
	if !k.IsKeyword() {
		return "", false
	}

	doc, ok := keywordDocs[k]
	if !ok {
		return "", false
	}

	text := fmt.Sprintf("**%s**\n\n%s", k, doc.detail)

	if asset, isAsset := ast.AssetClassFromKind(k); isAsset {
		risk := "low risk"
		if asset.HighRisk() {
			risk = "high risk, counts toward risk exposure"
		}

		text += fmt.Sprintf(" Classified as %s.", risk)
	}

	return text + "\n\n```\n" + doc.example + "\n```", true
}
