// Package ast holds the syntax tree produced by the parser.
//
// Nodes are plain values built once per parse and never mutated afterwards.
// Every node records the position of the token that introduced it so that
// semantic findings can point back into the document.
package ast

import (
	"strings"

	"github.com/victortavares4/dsl-investments/pkg/portlang/token"
)

// Pos is a 1-based source position.
type Pos struct {
	Line   int `json:"line"   yaml:"line"   toml:"line"`
	Column int `json:"column" yaml:"column" toml:"column"`
}

// PosOf returns the position of a token.
func PosOf(t token.Token) Pos {
	return Pos{Line: t.Line, Column: t.Column}
}

// ProfileKind is the recognized investor risk profile.
type ProfileKind int

// Risk profiles.
const (
	UnknownProfile ProfileKind = iota
	Conservative
	Moderate
	Aggressive
)

// String returns the DSL spelling of the profile.
func (k ProfileKind) String() string {
	switch k {
	case Conservative:
		return "conservador"
	case Moderate:
		return "moderado"
	case Aggressive:
		return "arrojado"
	default:
		return "unknown"
	}
}

// ParseProfile classifies a profile string case-insensitively.
func ParseProfile(raw string) ProfileKind {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "conservador":
		return Conservative
	case "moderado":
		return Moderate
	case "arrojado":
		return Aggressive
	default:
		return UnknownProfile
	}
}

// Profile keeps the raw text so unknown profiles can be reported verbatim.
type Profile struct {
	Raw  string
	Kind ProfileKind
	Pos  Pos
}

// HorizonUnit is the unit of the investment horizon.
type HorizonUnit int

// Horizon units.
const (
	Years HorizonUnit = iota
	Months
)

// String returns the DSL keyword for the unit.
func (u HorizonUnit) String() string {
	if u == Months {
		return "meses"
	}

	return "anos"
}

// Horizon is the investment horizon, such as 10 anos.
type Horizon struct {
	Value float64
	Unit  HorizonUnit
	Pos   Pos
}

// InMonths converts the horizon to months.
func (h Horizon) InMonths() float64 {
	if h.Unit == Months {
		return h.Value
	}

	return h.Value * 12
}

// AssetClass is one of the five allocatable asset classes.
type AssetClass int

// Asset classes in declaration order.
const (
	AcoesNacionais AssetClass = iota
	AcoesInternacionais
	FundosImobiliarios
	FundosMultimercado
	RendaFixa
)

var assetNames = [...]string{
	AcoesNacionais:      "ações_nacionais",
	AcoesInternacionais: "ações_internacionais",
	FundosImobiliarios:  "fundos_imobiliarios",
	FundosMultimercado:  "fundos_multimercado",
	RendaFixa:           "renda_fixa",
}

// AssetClasses lists every asset class in declaration order.
func AssetClasses() []AssetClass {
	return []AssetClass{AcoesNacionais, AcoesInternacionais, FundosImobiliarios, FundosMultimercado, RendaFixa}
}

// String returns the DSL keyword for the asset class.
func (a AssetClass) String() string {
	if int(a) < 0 || int(a) >= len(assetNames) {
		return "unknown"
	}

	return assetNames[a]
}

// HighRisk reports whether the class counts toward risk exposure.
func (a AssetClass) HighRisk() bool {
	return a == AcoesNacionais || a == AcoesInternacionais || a == FundosMultimercado
}

// AssetClassFromKind maps an asset-class keyword to its AssetClass.
func AssetClassFromKind(k token.Kind) (AssetClass, bool) {
	switch k {
	case token.AcoesNacionais:
		return AcoesNacionais, true
	case token.AcoesInternacionais:
		return AcoesInternacionais, true
	case token.FundosImobiliarios:
		return FundosImobiliarios, true
	case token.FundosMultimercado:
		return FundosMultimercado, true
	case token.RendaFixa:
		return RendaFixa, true
	default:
		return 0, false
	}
}

// AllocationEntry is a single asset = percent statement.
type AllocationEntry struct {
	Asset   AssetClass
	Percent float64
	Pos     Pos
}

// Allocation is the ordered allocation block. Asset classes are unique.
type Allocation struct {
	Entries []AllocationEntry
	Pos     Pos
}

// Len returns the number of entries.
func (a Allocation) Len() int {
	return len(a.Entries)
}

// Get returns the percent allocated to an asset class.
func (a Allocation) Get(asset AssetClass) (float64, bool) {
	for _, e := range a.Entries {
		if e.Asset == asset {
			return e.Percent, true
		}
	}

	return 0, false
}

// Total sums every entry.
func (a Allocation) Total() float64 {
	var total float64
	for _, e := range a.Entries {
		total += e.Percent
	}

	return total
}

// RiskExposure sums the high-risk classes.
func (a Allocation) RiskExposure() float64 {
	var total float64

	for _, e := range a.Entries {
		if e.Asset.HighRisk() {
			total += e.Percent
		}
	}

	return total
}

// Percent is a percentage literal with its position.
type Percent struct {
	Value float64
	Pos   Pos
}

// LimitEntry is one named cap inside a setorial or geografico block.
type LimitEntry struct {
	Name    string
	Percent float64
	Pos     Pos
}

// Limits is a nested block of named caps.
type Limits struct {
	Entries []LimitEntry
	Pos     Pos
}

// Restrictions is the optional restrições block.
type Restrictions struct {
	VolatilityMax *Percent
	AdminFeeMax   *Percent
	Sectors       *Limits
	Regions       *Limits
	Pos           Pos
}

// FrequencyKind is a recognized rebalancing cadence.
type FrequencyKind int

// Rebalancing frequencies.
const (
	UnknownFrequency FrequencyKind = iota
	Monthly
	Quarterly
	Semiannual
	Annual
)

// String returns the DSL keyword for the frequency.
func (f FrequencyKind) String() string {
	switch f {
	case Monthly:
		return "mensal"
	case Quarterly:
		return "trimestral"
	case Semiannual:
		return "semestral"
	case Annual:
		return "anual"
	default:
		return "unknown"
	}
}

// PerYear returns how many rebalances happen per year, or 0 when unknown.
func (f FrequencyKind) PerYear() int {
	switch f {
	case Monthly:
		return 12
	case Quarterly:
		return 4
	case Semiannual:
		return 2
	case Annual:
		return 1
	default:
		return 0
	}
}

// FrequencyFromKind maps a frequency keyword to its FrequencyKind.
func FrequencyFromKind(k token.Kind) FrequencyKind {
	switch k {
	case token.Mensal:
		return Monthly
	case token.Trimestral:
		return Quarterly
	case token.Semestral:
		return Semiannual
	case token.Anual:
		return Annual
	default:
		return UnknownFrequency
	}
}

// Frequency keeps the raw cadence text.
type Frequency struct {
	Raw  string
	Kind FrequencyKind
	Pos  Pos
}

// Rebalancing is the optional rebalanceamento block.
type Rebalancing struct {
	Frequency Frequency
	Tolerance Percent
	Pos       Pos
}

// Portfolio is the root node.
type Portfolio struct {
	Name         string
	NamePos      Pos
	Profile      Profile
	Horizon      Horizon
	Allocation   Allocation
	Restrictions *Restrictions
	Rebalancing  *Rebalancing
	Pos          Pos
}
