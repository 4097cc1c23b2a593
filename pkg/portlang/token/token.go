// Package token defines the lexical vocabulary of the portfolio language.
package token

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Kind classifies a token.
type Kind int

// Token kinds. Keyword kinds are grouped between keywordStart and keywordEnd.
const (
	Illegal Kind = iota
	EOF

	String
	Number
	Identifier

	Assign    // =
	LBrace    // {
	RBrace    // }
	Semicolon // ;
	Percent   // %

	keywordStart
	Carteira
	Nome
	Perfil
	HorizonteTemporal
	Alocacao
	Restricoes
	Rebalanceamento
	AcoesNacionais
	AcoesInternacionais
	FundosImobiliarios
	FundosMultimercado
	RendaFixa
	Anos
	Meses
	Setorial
	Geografico
	Frequencia
	Tolerancia
	Mensal
	Trimestral
	Semestral
	Anual
	VolatilidadeMaxima
	TaxaAdministrativaMaxima
	keywordEnd
)

var kindNames = map[Kind]string{
	Illegal:    "ILLEGAL",
	EOF:        "EOF",
	String:     "STRING",
	Number:     "NUMBER",
	Identifier: "IDENTIFIER",
	Assign:     "=",
	LBrace:     "{",
	RBrace:     "}",
	Semicolon:  ";",
	Percent:    "%",

	Carteira:                 "carteira",
	Nome:                     "nome",
	Perfil:                   "perfil",
	HorizonteTemporal:        "horizonte_temporal",
	Alocacao:                 "alocação",
	Restricoes:               "restrições",
	Rebalanceamento:          "rebalanceamento",
	AcoesNacionais:           "ações_nacionais",
	AcoesInternacionais:      "ações_internacionais",
	FundosImobiliarios:       "fundos_imobiliarios",
	FundosMultimercado:       "fundos_multimercado",
	RendaFixa:                "renda_fixa",
	Anos:                     "anos",
	Meses:                    "meses",
	Setorial:                 "setorial",
	Geografico:               "geografico",
	Frequencia:               "frequencia",
	Tolerancia:               "tolerancia",
	Mensal:                   "mensal",
	Trimestral:               "trimestral",
	Semestral:                "semestral",
	Anual:                    "anual",
	VolatilidadeMaxima:       "volatilidade_maxima",
	TaxaAdministrativaMaxima: "taxa_administrativa_maxima",
}

var keywords = buildKeywords()

func buildKeywords() map[string]Kind {
	m := make(map[string]Kind, int(keywordEnd-keywordStart))

	for k := keywordStart + 1; k < keywordEnd; k++ {
		m[kindNames[k]] = k
	}

	return m
}

// String returns the source spelling for keywords and punctuation, and an
// upper-case class name for everything else.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return fmt.Sprintf("Kind(%d)", int(k))
}

// MarshalText encodes the kind by its name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// IsKeyword reports whether k is a reserved word.
func (k Kind) IsKeyword() bool {
	return k > keywordStart && k < keywordEnd
}

// IsAssetClass reports whether k names one of the five allocatable asset classes.
func (k Kind) IsAssetClass() bool {
	switch k {
	case AcoesNacionais, AcoesInternacionais, FundosImobiliarios, FundosMultimercado, RendaFixa:
		return true
	default:
		return false
	}
}

// IsFrequency reports whether k is a rebalancing frequency keyword.
func (k Kind) IsFrequency() bool {
	switch k {
	case Mensal, Trimestral, Semestral, Anual:
		return true
	default:
		return false
	}
}

// AssetClasses lists the asset-class keyword kinds in declaration order.
func AssetClasses() []Kind {
	return []Kind{AcoesNacionais, AcoesInternacionais, FundosImobiliarios, FundosMultimercado, RendaFixa}
}

// Keywords returns every reserved word in kind order.
func Keywords() []string {
	out := make([]string, 0, int(keywordEnd-keywordStart-1))

	for k := keywordStart + 1; k < keywordEnd; k++ {
		out = append(out, kindNames[k])
	}

	return out
}

// Lookup maps an identifier to its keyword kind, or Identifier when it is not
// reserved. The lookup is done on the NFC form so decomposed accents match.
func Lookup(ident string) Kind {
	if k, ok := keywords[ident]; ok {
		return k
	}

	if k, ok := keywords[norm.NFC.String(ident)]; ok {
		return k
	}

	return Identifier
}

// Token is a single lexical unit with its 1-based source position.
type Token struct {
	Kind   Kind    `json:"kind"`
	Lexeme string  `json:"lexeme"`
	Line   int     `json:"line"`
	Column int     `json:"column"`
	Number float64 `json:"number,omitempty"`
}

// Source returns the token as it would be written in a document.
func (t Token) Source() string {
	switch t.Kind {
	case String:
		return `"` + t.Lexeme + `"`
	case EOF:
		return ""
	default:
		return t.Lexeme
	}
}

// Describe renders the token for error messages.
func (t Token) Describe() string {
	switch t.Kind {
	case EOF:
		return "end of input"
	case String:
		return fmt.Sprintf("string %q", t.Lexeme)
	case Number:
		return "number " + t.Lexeme
	case Identifier:
		return "identifier " + t.Lexeme
	default:
		return fmt.Sprintf("%q", t.Lexeme)
	}
}

// Join concatenates token sources separated by single spaces.
func Join(tokens []Token) string {
	var sb strings.Builder

	for i, t := range tokens {
		if t.Kind == EOF {
			break
		}

		if i > 0 {
			sb.WriteByte(' ')
		}

		sb.WriteString(t.Source())
	}

	return sb.String()
}
