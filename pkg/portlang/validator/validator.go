// Package validator applies the semantic rules of the portfolio language to a
// parsed document.
//
// Every rule runs on every call; findings are split into errors, which block
// generation, and warnings, which do not. The order of findings follows the
// rule table so output is stable across runs.
package validator

import (
	"fmt"
	"math"

	"github.com/victortavares4/dsl-investments/pkg/portlang/ast"
)

// Severity of a finding.
type Severity string

// Severities.
const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Rule identifiers.
const (
	RuleAllocationRange  = "allocation-range"
	RuleAllocationSum    = "allocation-sum"
	RuleProfileUnknown   = "profile-unknown"
	RuleRestrictionRange = "restriction-range"
	RuleToleranceRange   = "tolerance-range"
	RuleLimitRange       = "limit-range"
	RuleHorizonPositive  = "horizon-positive"

	RuleConservativeRisk = "conservative-risk"
	RuleAggressiveRisk   = "aggressive-risk"
	RuleVolatilityBand   = "volatility-band"
	RuleAdminFeeHigh     = "admin-fee-high"
	RuleConcentration    = "concentration"
	RuleDiversification  = "diversification"
	RuleModerateRisk     = "moderate-risk"
	RuleFrequencyUnknown = "frequency-unknown"
)

// Finding is a single rule violation.
type Finding struct {
	Rule       string   `json:"rule"                 yaml:"rule"                 toml:"rule"`
	Code       string   `json:"code"                 yaml:"code"                 toml:"code"`
	Severity   Severity `json:"severity"             yaml:"severity"             toml:"severity"`
	Message    string   `json:"message"              yaml:"message"              toml:"message"`
	Suggestion string   `json:"suggestion,omitempty" yaml:"suggestion,omitempty" toml:"suggestion,omitempty"`
	Pos        ast.Pos  `json:"pos"                  yaml:"pos"                  toml:"pos"`
}

// String renders the finding on one line.
func (f Finding) String() string {
	return fmt.Sprintf("%d:%d: %s [%s] %s", f.Pos.Line, f.Pos.Column, f.Severity, f.Code, f.Message)
}

// Report is the outcome of a validation pass.
type Report struct {
	Errors   []Finding `json:"errors"   yaml:"errors"   toml:"errors"`
	Warnings []Finding `json:"warnings" yaml:"warnings" toml:"warnings"`
}

// Valid reports whether the document has no errors.
func (r Report) Valid() bool {
	return len(r.Errors) == 0
}

// All returns errors followed by warnings.
func (r Report) All() []Finding {
	out := make([]Finding, 0, len(r.Errors)+len(r.Warnings))
	out = append(out, r.Errors...)

	return append(out, r.Warnings...)
}

// Thresholds holds every numeric limit used by the rules.
type Thresholds struct {
	SumTolerance        float64 `mapstructure:"sum_tolerance"`
	ConservativeMaxRisk float64 `mapstructure:"conservative_max_risk"`
	AggressiveMinRisk   float64 `mapstructure:"aggressive_min_risk"`
	ModerateMinRisk     float64 `mapstructure:"moderate_min_risk"`
	ModerateMaxRisk     float64 `mapstructure:"moderate_max_risk"`
	VolatilityMin       float64 `mapstructure:"volatility_min"`
	VolatilityMax       float64 `mapstructure:"volatility_max"`
	AdminFeeMax         float64 `mapstructure:"admin_fee_max"`
	ConcentrationMax    float64 `mapstructure:"concentration_max"`
	MinAssetClasses     int     `mapstructure:"min_asset_classes"`
}

// Default threshold values.
const (
	DefaultSumTolerance        = 0.01
	DefaultConservativeMaxRisk = 30
	DefaultAggressiveMinRisk   = 50
	DefaultModerateMinRisk     = 20
	DefaultModerateMaxRisk     = 70
	DefaultVolatilityMin       = 5
	DefaultVolatilityMax       = 25
	DefaultAdminFeeMax         = 3
	DefaultConcentrationMax    = 80
	DefaultMinAssetClasses     = 2
)

// DefaultThresholds returns the standard limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		SumTolerance:        DefaultSumTolerance,
		ConservativeMaxRisk: DefaultConservativeMaxRisk,
		AggressiveMinRisk:   DefaultAggressiveMinRisk,
		ModerateMinRisk:     DefaultModerateMinRisk,
		ModerateMaxRisk:     DefaultModerateMaxRisk,
		VolatilityMin:       DefaultVolatilityMin,
		VolatilityMax:       DefaultVolatilityMax,
		AdminFeeMax:         DefaultAdminFeeMax,
		ConcentrationMax:    DefaultConcentrationMax,
		MinAssetClasses:     DefaultMinAssetClasses,
	}
}

// Validator runs the rule table with a fixed set of thresholds.
type Validator struct {
	th Thresholds
}

// New creates a Validator.
func New(th Thresholds) *Validator {
	return &Validator{th: th}
}

// Validate runs the rules with default thresholds.
func Validate(p *ast.Portfolio) Report {
	return New(DefaultThresholds()).Validate(p)
}

type rule func(th Thresholds, p *ast.Portfolio, r *Report)

var errorRules = []rule{
	checkAllocationRange,
	checkAllocationSum,
	checkProfile,
	checkRestrictionRange,
	checkToleranceRange,
	checkLimitRange,
	checkHorizon,
}

var warningRules = []rule{
	checkConservativeRisk,
	checkAggressiveRisk,
	checkVolatilityBand,
	checkAdminFee,
	checkConcentration,
	checkDiversification,
	checkModerateRisk,
	checkFrequency,
}

// Validate runs every rule against p. A nil portfolio yields an empty report.
func (v *Validator) Validate(p *ast.Portfolio) Report {
	r := Report{Errors: []Finding{}, Warnings: []Finding{}}
	if p == nil {
		return r
	}

	for _, check := range errorRules {
		check(v.th, p, &r)
	}

	for _, check := range warningRules {
		check(v.th, p, &r)
	}

	return r
}

func (r *Report) addError(f Finding) {
	f.Severity = SeverityError
	r.Errors = append(r.Errors, f)
}

func (r *Report) addWarning(f Finding) {
	f.Severity = SeverityWarning
	r.Warnings = append(r.Warnings, f)
}

// floatSlack absorbs binary rounding of decimal percentages such as 49.99.
const floatSlack = 1e-9

func inPercentRange(v float64) bool {
	return v >= 0 && v <= 100
}

func checkAllocationRange(_ Thresholds, p *ast.Portfolio, r *Report) {
	for _, e := range p.Allocation.Entries {
		if inPercentRange(e.Percent) {
			continue
		}

		r.addError(Finding{
			Rule:       RuleAllocationRange,
			Code:       "SEM005",
			Message:    fmt.Sprintf("allocation %s: %g%% is outside [0, 100]", e.Asset, e.Percent),
			Suggestion: "use percentages between 0% and 100%",
			Pos:        e.Pos,
		})
	}
}

func checkAllocationSum(th Thresholds, p *ast.Portfolio, r *Report) {
	total := p.Allocation.Total()
	diff := total - 100

	if math.Abs(diff) <= th.SumTolerance+floatSlack {
		return
	}

	if diff > 0 {
		r.addError(Finding{
			Rule:       RuleAllocationSum,
			Code:       "SEM003",
			Message:    fmt.Sprintf("allocation sums to %g%%, exceeding 100%%", total),
			Suggestion: fmt.Sprintf("reduce the allocation by %.2f%%", diff),
			Pos:        p.Allocation.Pos,
		})

		return
	}

	r.addError(Finding{
		Rule:       RuleAllocationSum,
		Code:       "SEM004",
		Message:    fmt.Sprintf("allocation sums to %g%%, %.2f%% short of 100%%", total, -diff),
		Suggestion: fmt.Sprintf("allocate the remaining %.2f%%", -diff),
		Pos:        p.Allocation.Pos,
	})
}

func checkProfile(_ Thresholds, p *ast.Portfolio, r *Report) {
	if p.Profile.Kind != ast.UnknownProfile {
		return
	}

	r.addError(Finding{
		Rule:       RuleProfileUnknown,
		Code:       "SEM006",
		Message:    fmt.Sprintf("unknown risk profile %q", p.Profile.Raw),
		Suggestion: `use "conservador", "moderado" or "arrojado"`,
		Pos:        p.Profile.Pos,
	})
}

func checkRestrictionRange(_ Thresholds, p *ast.Portfolio, r *Report) {
	if p.Restrictions == nil {
		return
	}

	if vol := p.Restrictions.VolatilityMax; vol != nil && !inPercentRange(vol.Value) {
		r.addError(Finding{
			Rule:       RuleRestrictionRange,
			Code:       "SEM013",
			Message:    fmt.Sprintf("volatilidade_maxima %g%% is outside [0, 100]", vol.Value),
			Suggestion: "use a percentage between 0% and 100%",
			Pos:        vol.Pos,
		})
	}

	if fee := p.Restrictions.AdminFeeMax; fee != nil && !inPercentRange(fee.Value) {
		r.addError(Finding{
			Rule:       RuleRestrictionRange,
			Code:       "SEM018",
			Message:    fmt.Sprintf("taxa_administrativa_maxima %g%% is outside [0, 100]", fee.Value),
			Suggestion: "use a percentage between 0% and 100%",
			Pos:        fee.Pos,
		})
	}
}

func checkToleranceRange(_ Thresholds, p *ast.Portfolio, r *Report) {
	if p.Rebalancing == nil || inPercentRange(p.Rebalancing.Tolerance.Value) {
		return
	}

	r.addError(Finding{
		Rule:       RuleToleranceRange,
		Code:       "SEM020",
		Message:    fmt.Sprintf("tolerancia %g%% is outside [0, 100]", p.Rebalancing.Tolerance.Value),
		Suggestion: "use a percentage between 0% and 100%",
		Pos:        p.Rebalancing.Tolerance.Pos,
	})
}

func checkLimitRange(_ Thresholds, p *ast.Portfolio, r *Report) {
	if p.Restrictions == nil {
		return
	}

	for _, block := range []struct {
		name   string
		limits *ast.Limits
	}{
		{"setorial", p.Restrictions.Sectors},
		{"geografico", p.Restrictions.Regions},
	} {
		if block.limits == nil {
			continue
		}

		for _, e := range block.limits.Entries {
			if inPercentRange(e.Percent) {
				continue
			}

			r.addError(Finding{
				Rule:       RuleLimitRange,
				Code:       "SEM021",
				Message:    fmt.Sprintf("%s limit %s: %g%% is outside [0, 100]", block.name, e.Name, e.Percent),
				Suggestion: "use a percentage between 0% and 100%",
				Pos:        e.Pos,
			})
		}
	}
}

func checkHorizon(_ Thresholds, p *ast.Portfolio, r *Report) {
	if p.Horizon.Value > 0 {
		return
	}

	r.addError(Finding{
		Rule:       RuleHorizonPositive,
		Code:       "SEM022",
		Message:    fmt.Sprintf("horizonte_temporal must be positive, got %g %s", p.Horizon.Value, p.Horizon.Unit),
		Suggestion: "use a horizon of at least one month",
		Pos:        p.Horizon.Pos,
	})
}

func checkConservativeRisk(th Thresholds, p *ast.Portfolio, r *Report) {
	risk := p.Allocation.RiskExposure()
	if p.Profile.Kind != ast.Conservative || risk <= th.ConservativeMaxRisk {
		return
	}

	r.addWarning(Finding{
		Rule:       RuleConservativeRisk,
		Code:       "SEM008",
		Message:    fmt.Sprintf("conservative profile with %g%% in high-risk assets", risk),
		Suggestion: fmt.Sprintf("keep equities and multimarket funds at or below %g%%", th.ConservativeMaxRisk),
		Pos:        p.Profile.Pos,
	})
}

func checkAggressiveRisk(th Thresholds, p *ast.Portfolio, r *Report) {
	risk := p.Allocation.RiskExposure()
	if p.Profile.Kind != ast.Aggressive || risk >= th.AggressiveMinRisk {
		return
	}

	r.addWarning(Finding{
		Rule:       RuleAggressiveRisk,
		Code:       "SEM011",
		Message:    fmt.Sprintf("aggressive profile with only %g%% in high-risk assets", risk),
		Suggestion: fmt.Sprintf("consider raising risk exposure to at least %g%%", th.AggressiveMinRisk),
		Pos:        p.Profile.Pos,
	})
}

func checkVolatilityBand(th Thresholds, p *ast.Portfolio, r *Report) {
	if p.Restrictions == nil || p.Restrictions.VolatilityMax == nil {
		return
	}

	vol := p.Restrictions.VolatilityMax
	if !inPercentRange(vol.Value) || (vol.Value >= th.VolatilityMin && vol.Value <= th.VolatilityMax) {
		return
	}

	r.addWarning(Finding{
		Rule:       RuleVolatilityBand,
		Code:       "SEM014",
		Message:    fmt.Sprintf("volatilidade_maxima %g%% is outside the usual [%g, %g] band", vol.Value, th.VolatilityMin, th.VolatilityMax),
		Suggestion: fmt.Sprintf("typical limits range from %g%% to %g%%", th.VolatilityMin, th.VolatilityMax),
		Pos:        vol.Pos,
	})
}

func checkAdminFee(th Thresholds, p *ast.Portfolio, r *Report) {
	if p.Restrictions == nil || p.Restrictions.AdminFeeMax == nil {
		return
	}

	fee := p.Restrictions.AdminFeeMax
	if !inPercentRange(fee.Value) || fee.Value <= th.AdminFeeMax {
		return
	}

	r.addWarning(Finding{
		Rule:       RuleAdminFeeHigh,
		Code:       "SEM019",
		Message:    fmt.Sprintf("taxa_administrativa_maxima %g%% is above %g%%", fee.Value, th.AdminFeeMax),
		Suggestion: "high fees erode long-term returns",
		Pos:        fee.Pos,
	})
}

func checkConcentration(th Thresholds, p *ast.Portfolio, r *Report) {
	for _, e := range p.Allocation.Entries {
		if e.Percent <= th.ConcentrationMax {
			continue
		}

		r.addWarning(Finding{
			Rule:       RuleConcentration,
			Code:       "SEM015",
			Message:    fmt.Sprintf("%s holds %g%% of the portfolio", e.Asset, e.Percent),
			Suggestion: fmt.Sprintf("no single asset class should exceed %g%%", th.ConcentrationMax),
			Pos:        e.Pos,
		})
	}
}

func checkDiversification(th Thresholds, p *ast.Portfolio, r *Report) {
	n := 0

	for _, e := range p.Allocation.Entries {
		if e.Percent > 0 {
			n++
		}
	}

	if n >= th.MinAssetClasses {
		return
	}

	r.addWarning(Finding{
		Rule:       RuleDiversification,
		Code:       "SEM016",
		Message:    fmt.Sprintf("only %d asset class(es) allocated", n),
		Suggestion: "add more asset classes to diversify",
		Pos:        p.Allocation.Pos,
	})
}

func checkModerateRisk(th Thresholds, p *ast.Portfolio, r *Report) {
	risk := p.Allocation.RiskExposure()
	if p.Profile.Kind != ast.Moderate || (risk >= th.ModerateMinRisk && risk <= th.ModerateMaxRisk) {
		return
	}

	r.addWarning(Finding{
		Rule:       RuleModerateRisk,
		Code:       "SEM009",
		Message:    fmt.Sprintf("moderate profile with %g%% in high-risk assets", risk),
		Suggestion: fmt.Sprintf("keep risk exposure between %g%% and %g%%", th.ModerateMinRisk, th.ModerateMaxRisk),
		Pos:        p.Profile.Pos,
	})
}

func checkFrequency(_ Thresholds, p *ast.Portfolio, r *Report) {
	if p.Rebalancing == nil || p.Rebalancing.Frequency.Kind != ast.UnknownFrequency {
		return
	}

	r.addWarning(Finding{
		Rule:       RuleFrequencyUnknown,
		Code:       "SEM023",
		Message:    fmt.Sprintf("unknown rebalancing frequency %q", p.Rebalancing.Frequency.Raw),
		Suggestion: "use mensal, trimestral, semestral or anual",
		Pos:        p.Rebalancing.Frequency.Pos,
	})
}
