// Package export turns a validated portfolio into a serializable Document and
// encodes it as JSON, YAML, TOML or a compressed binary envelope.
package export

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/victortavares4/dsl-investments/pkg/portlang"
	"github.com/victortavares4/dsl-investments/pkg/portlang/analysis"
	"github.com/victortavares4/dsl-investments/pkg/portlang/ast"
	"github.com/victortavares4/dsl-investments/pkg/portlang/validator"
	"github.com/victortavares4/dsl-investments/pkg/version"
)

// SchemaTitle is the title of the generated Document schema.
const SchemaTitle = "Portlang Document"

// Document is the exported form of a portfolio and everything derived from it.
type Document struct {
	ID              string           `json:"id"              yaml:"id"              toml:"id"`
	GeneratedAt     time.Time        `json:"generated_at"    yaml:"generated_at"    toml:"generated_at"`
	Generator       string           `json:"generator"       yaml:"generator"       toml:"generator"`
	Portfolio       Portfolio        `json:"portfolio"       yaml:"portfolio"       toml:"portfolio"`
	Findings        Findings         `json:"findings"        yaml:"findings"        toml:"findings"`
	Metrics         analysis.Metrics `json:"metrics"         yaml:"metrics"         toml:"metrics"`
	Recommendations []string         `json:"recommendations" yaml:"recommendations" toml:"recommendations"`
}

// Portfolio mirrors ast.Portfolio with display-ready values.
type Portfolio struct {
	Name         string        `json:"name"                   yaml:"name"                   toml:"name"`
	Profile      string        `json:"profile"                yaml:"profile"                toml:"profile"`
	Horizon      Horizon       `json:"horizon"                yaml:"horizon"                toml:"horizon"`
	Allocation   []Allocation  `json:"allocation"             yaml:"allocation"             toml:"allocation"`
	Restrictions *Restrictions `json:"restrictions,omitempty" yaml:"restrictions,omitempty" toml:"restrictions,omitempty"`
	Rebalancing  *Rebalancing  `json:"rebalancing,omitempty"  yaml:"rebalancing,omitempty"  toml:"rebalancing,omitempty"`
}

// Horizon is the investment horizon.
type Horizon struct {
	Value  float64 `json:"value"  yaml:"value"  toml:"value"`
	Unit   string  `json:"unit"   yaml:"unit"   toml:"unit"`
	Months float64 `json:"months" yaml:"months" toml:"months"`
}

// Allocation is one asset class line.
type Allocation struct {
	Asset    string  `json:"asset"     yaml:"asset"     toml:"asset"`
	Label    string  `json:"label"     yaml:"label"     toml:"label"`
	Percent  float64 `json:"percent"   yaml:"percent"   toml:"percent"`
	HighRisk bool    `json:"high_risk" yaml:"high_risk" toml:"high_risk"`
}

// Restrictions holds the optional limits block.
type Restrictions struct {
	VolatilityMax *float64 `json:"volatility_max,omitempty" yaml:"volatility_max,omitempty" toml:"volatility_max,omitempty"`
	AdminFeeMax   *float64 `json:"admin_fee_max,omitempty"  yaml:"admin_fee_max,omitempty"  toml:"admin_fee_max,omitempty"`
	Sectors       []Limit  `json:"sectors,omitempty"        yaml:"sectors,omitempty"        toml:"sectors,omitempty"`
	Regions       []Limit  `json:"regions,omitempty"        yaml:"regions,omitempty"        toml:"regions,omitempty"`
}

// Limit is a named percentage cap.
type Limit struct {
	Name    string  `json:"name"    yaml:"name"    toml:"name"`
	Percent float64 `json:"percent" yaml:"percent" toml:"percent"`
}

// Rebalancing is the rebalancing policy.
type Rebalancing struct {
	Frequency string  `json:"frequency" yaml:"frequency" toml:"frequency"`
	Tolerance float64 `json:"tolerance" yaml:"tolerance" toml:"tolerance"`
	PerYear   int     `json:"per_year"  yaml:"per_year"  toml:"per_year"`
}

// Findings lists validation results. Errors is always empty for exported
// documents and kept for schema stability.
type Findings struct {
	Errors   []validator.Finding `json:"errors"   yaml:"errors"   toml:"errors"`
	Warnings []validator.Finding `json:"warnings" yaml:"warnings" toml:"warnings"`
}

// Meta carries values that are not derived from the document itself. Zero
// fields are filled in by NewDocument.
type Meta struct {
	ID          string
	GeneratedAt time.Time
	Generator   string
	Thresholds  *validator.Thresholds
}

// NewDocument builds a Document from a compilation result. Results with
// validation errors are rejected with portlang.ErrBlocked.
func NewDocument(res *portlang.Result, meta Meta) (*Document, error) {
	err := res.Generatable()
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}

	if meta.ID == "" {
		meta.ID = uuid.NewString()
	}

	if meta.GeneratedAt.IsZero() {
		meta.GeneratedAt = time.Now()
	}

	if meta.Generator == "" {
		meta.Generator = "portlang " + version.Version
	}

	th := validator.DefaultThresholds()
	if meta.Thresholds != nil {
		th = *meta.Thresholds
	}

	p := res.Portfolio

	return &Document{
		ID:          meta.ID,
		GeneratedAt: meta.GeneratedAt.UTC().Truncate(time.Second),
		Generator:   meta.Generator,
		Portfolio:   NewPortfolio(p),
		Findings: Findings{
			Errors:   nonNil(res.Report.Errors),
			Warnings: nonNil(res.Report.Warnings),
		},
		Metrics:         analysis.Analyze(p, th),
		Recommendations: analysis.Recommendations(p, th),
	}, nil
}

func nonNil(findings []validator.Finding) []validator.Finding {
	if findings == nil {
		return []validator.Finding{}
	}

	return findings
}

// NewPortfolio flattens a syntax tree into its exported form.
func NewPortfolio(p *ast.Portfolio) Portfolio {
	out := Portfolio{
		Name:    p.Name,
		Profile: p.Profile.Raw,
		Horizon: Horizon{
			Value:  p.Horizon.Value,
			Unit:   p.Horizon.Unit.String(),
			Months: p.Horizon.InMonths(),
		},
		Allocation: make([]Allocation, 0, p.Allocation.Len()),
	}

	for _, e := range p.Allocation.Entries {
		out.Allocation = append(out.Allocation, Allocation{
			Asset:    e.Asset.String(),
			Label:    analysis.Title(e.Asset.String()),
			Percent:  e.Percent,
			HighRisk: e.Asset.HighRisk(),
		})
	}

	if r := p.Restrictions; r != nil {
		out.Restrictions = &Restrictions{
			VolatilityMax: percentPtr(r.VolatilityMax),
			AdminFeeMax:   percentPtr(r.AdminFeeMax),
			Sectors:       convertLimits(r.Sectors),
			Regions:       convertLimits(r.Regions),
		}
	}

	if rb := p.Rebalancing; rb != nil {
		out.Rebalancing = &Rebalancing{
			Frequency: rb.Frequency.Raw,
			Tolerance: rb.Tolerance.Value,
			PerYear:   rb.Frequency.Kind.PerYear(),
		}
	}

	return out
}

func percentPtr(p *ast.Percent) *float64 {
	if p == nil {
		return nil
	}

	v := p.Value

	return &v
}

func convertLimits(l *ast.Limits) []Limit {
	if l == nil {
		return nil
	}

	out := make([]Limit, 0, len(l.Entries))
	for _, e := range l.Entries {
		out = append(out, Limit{Name: e.Name, Percent: e.Percent})
	}

	return out
}
