// Package analysis derives portfolio metrics and advice from a validated
// syntax tree. It backs the report and export generators.
package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/victortavares4/dsl-investments/pkg/portlang/ast"
	"github.com/victortavares4/dsl-investments/pkg/portlang/validator"
)

// Level is a coarse low/medium/high grading.
type Level string

// Levels.
const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

const (
	highDiversification   = 4
	mediumDiversification = 2
	highExposure          = 60
	mediumExposure        = 30
	adviceMinClasses      = 3
	barUnit               = 5
)

// Metrics summarizes an allocation.
type Metrics struct {
	Total                float64 `json:"total"                 yaml:"total"                 toml:"total"`
	AllocationComplete   bool    `json:"allocation_complete"   yaml:"allocation_complete"   toml:"allocation_complete"`
	AssetClasses         int     `json:"asset_classes"         yaml:"asset_classes"         toml:"asset_classes"`
	Diversification      Level   `json:"diversification"       yaml:"diversification"       toml:"diversification"`
	RiskExposure         float64 `json:"risk_exposure"         yaml:"risk_exposure"         toml:"risk_exposure"`
	RiskLevel            Level   `json:"risk_level"            yaml:"risk_level"            toml:"risk_level"`
	ConservativeExposure float64 `json:"conservative_exposure" yaml:"conservative_exposure" toml:"conservative_exposure"`
	ConservativeLevel    Level   `json:"conservative_level"    yaml:"conservative_level"    toml:"conservative_level"`
	LargestPosition      float64 `json:"largest_position"      yaml:"largest_position"      toml:"largest_position"`
	ProfileFit           bool    `json:"profile_fit"           yaml:"profile_fit"           toml:"profile_fit"`
	HorizonMonths        float64 `json:"horizon_months"        yaml:"horizon_months"        toml:"horizon_months"`
	RebalancesPerYear    int     `json:"rebalances_per_year"   yaml:"rebalances_per_year"   toml:"rebalances_per_year"`
}

// Analyze computes metrics using the given thresholds.
func Analyze(p *ast.Portfolio, th validator.Thresholds) Metrics {
	m := Metrics{
		Total:         p.Allocation.Total(),
		AssetClasses:  p.Allocation.Len(),
		RiskExposure:  p.Allocation.RiskExposure(),
		HorizonMonths: p.Horizon.InMonths(),
	}

	m.AllocationComplete = math.Abs(m.Total-100) <= th.SumTolerance+1e-9
	m.ConservativeExposure = m.Total - m.RiskExposure

	for _, e := range p.Allocation.Entries {
		m.LargestPosition = math.Max(m.LargestPosition, e.Percent)
	}

	switch {
	case m.AssetClasses >= highDiversification:
		m.Diversification = LevelHigh
	case m.AssetClasses >= mediumDiversification:
		m.Diversification = LevelMedium
	default:
		m.Diversification = LevelLow
	}

	m.RiskLevel = exposureLevel(m.RiskExposure)
	m.ConservativeLevel = exposureLevel(m.ConservativeExposure)
	m.ProfileFit = ProfileFits(p.Profile.Kind, m.RiskExposure, th)

	if p.Rebalancing != nil {
		m.RebalancesPerYear = p.Rebalancing.Frequency.Kind.PerYear()
	}

	return m
}

func exposureLevel(v float64) Level {
	switch {
	case v > highExposure:
		return LevelHigh
	case v > mediumExposure:
		return LevelMedium
	default:
		return LevelLow
	}
}

// ProfileFits reports whether a risk exposure suits the profile.
func ProfileFits(kind ast.ProfileKind, risk float64, th validator.Thresholds) bool {
	switch kind {
	case ast.Conservative:
		return risk <= th.ConservativeMaxRisk
	case ast.Moderate:
		return risk >= th.ModerateMinRisk && risk <= th.ModerateMaxRisk
	case ast.Aggressive:
		return risk >= th.AggressiveMinRisk
	default:
		return false
	}
}

// Recommendations returns human advice for the portfolio. When nothing needs
// attention it returns general maintenance advice.
func Recommendations(p *ast.Portfolio, th validator.Thresholds) []string {
	var out []string

	total := p.Allocation.Total()
	diff := total - 100

	switch {
	case diff > th.SumTolerance:
		out = append(out, fmt.Sprintf("Reduce the allocation by %.2f%% to total 100%%", diff))
	case -diff > th.SumTolerance:
		out = append(out, fmt.Sprintf("Allocate the remaining %.2f%% to total 100%%", -diff))
	}

	risk := p.Allocation.RiskExposure()

	switch {
	case p.Profile.Kind == ast.Conservative && risk > th.ConservativeMaxRisk:
		out = append(out, "Reduce exposure to high-risk assets to suit the conservative profile")
	case p.Profile.Kind == ast.Aggressive && risk < th.AggressiveMinRisk:
		out = append(out, "Consider increasing exposure to risk assets for the aggressive profile")
	case p.Profile.Kind == ast.Moderate && !ProfileFits(ast.Moderate, risk, th):
		out = append(out, fmt.Sprintf("Keep risk exposure between %g%% and %g%% for the moderate profile",
			th.ModerateMinRisk, th.ModerateMaxRisk))
	}

	if p.Allocation.Len() < adviceMinClasses {
		out = append(out, "Improve diversification by adding more asset classes")
	}

	for _, e := range p.Allocation.Entries {
		if e.Percent > th.ConcentrationMax {
			out = append(out, fmt.Sprintf("Reduce concentration: no asset class should exceed %g%%", th.ConcentrationMax))

			break
		}
	}

	if len(out) == 0 {
		out = []string{
			"Portfolio is well structured; keep monitoring it regularly",
			"Review periodically as market conditions change",
			"Rebalance according to the configured tolerance",
		}
	}

	return out
}

// SortedEntries returns allocation entries ordered by percent, largest first.
// Ties keep declaration order.
func SortedEntries(a ast.Allocation) []ast.AllocationEntry {
	out := make([]ast.AllocationEntry, len(a.Entries))
	copy(out, a.Entries)

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Percent > out[j].Percent
	})

	return out
}

// Bar draws one block per five percent followed by a light shade terminator.
func Bar(percent float64) string {
	n := int(percent / barUnit)
	if n < 0 {
		n = 0
	}

	return strings.Repeat("█", n) + "░"
}

// RiskClass labels an asset class for display.
func RiskClass(a ast.AssetClass) string {
	if a.HighRisk() {
		return "high risk"
	}

	return "low risk"
}

// Title turns a keyword such as ações_nacionais into "Ações Nacionais".
func Title(keyword string) string {
	// Casers keep state, so one is built per call.
	return cases.Title(language.BrazilianPortuguese).String(strings.ReplaceAll(keyword, "_", " "))
}
