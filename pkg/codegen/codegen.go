// Package codegen emits Go source that embeds a validated portfolio as a
// typed value.
package codegen

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"go/format"
	"go/token"
	"io"
	"strconv"
	"strings"
	"text/template"
	"unicode"

	"github.com/victortavares4/dsl-investments/pkg/export"
	"github.com/victortavares4/dsl-investments/pkg/portlang"
	"github.com/victortavares4/dsl-investments/pkg/portlang/printer"
	"github.com/victortavares4/dsl-investments/pkg/version"
)

// Sentinel errors for invalid options.
var (
	ErrInvalidPackage  = errors.New("invalid package name")
	ErrInvalidTypeName = errors.New("invalid type name")
	ErrInvalidVarName  = errors.New("invalid variable name")
)

// Defaults used when Options fields are empty.
const (
	DefaultPackage  = "portfolio"
	DefaultTypeName = "Portfolio"
	DefaultVarName  = "Default"
)

//go:embed templates/portfolio.go.tmpl
var templateFS embed.FS

var goTemplate = template.Must(template.New("portfolio.go.tmpl").Funcs(template.FuncMap{
	"quote": strconv.Quote,
	"num":   printer.FormatNumber,
	"deref": func(v *float64) float64 { return *v },
}).ParseFS(templateFS, "templates/portfolio.go.tmpl"))

// Options control the emitted file.
type Options struct {
	Package  string
	TypeName string
	VarName  string
	// Source is recorded in the file header when set.
	Source string
}

func (o Options) withDefaults() Options {
	if o.Package == "" {
		o.Package = DefaultPackage
	}

	if o.TypeName == "" {
		o.TypeName = DefaultTypeName
	}

	if o.VarName == "" {
		o.VarName = DefaultVarName
	}

	return o
}

func (o Options) validate() error {
	if !token.IsIdentifier(o.Package) || strings.ToLower(o.Package) != o.Package {
		return fmt.Errorf("%w: %q", ErrInvalidPackage, o.Package)
	}

	if !token.IsIdentifier(o.TypeName) || !token.IsExported(o.TypeName) {
		return fmt.Errorf("%w: %q must be an exported identifier", ErrInvalidTypeName, o.TypeName)
	}

	if !token.IsIdentifier(o.VarName) || o.VarName == o.TypeName {
		return fmt.Errorf("%w: %q", ErrInvalidVarName, o.VarName)
	}

	return nil
}

type templateData struct {
	export.Portfolio

	Generator     string
	Source        string
	Package       string
	TypeName      string
	VarName       string
	FloatPtr      string
	NeedsFloatPtr bool
	HorizonMonths float64
}

// Go writes a gofmt-ed Go file declaring the portfolio types and a variable
// holding res. Results with validation errors return portlang.ErrBlocked.
func Go(w io.Writer, res *portlang.Result, opts Options) error {
	err := res.Generatable()
	if err != nil {
		return fmt.Errorf("generate go: %w", err)
	}

	src, err := Source(res, opts)
	if err != nil {
		return err
	}

	_, err = w.Write(src)
	if err != nil {
		return fmt.Errorf("write go source: %w", err)
	}

	return nil
}

// Source returns the formatted Go file for res.
func Source(res *portlang.Result, opts Options) ([]byte, error) {
	err := res.Generatable()
	if err != nil {
		return nil, fmt.Errorf("generate go: %w", err)
	}

	opts = opts.withDefaults()

	err = opts.validate()
	if err != nil {
		return nil, err
	}

	p := export.NewPortfolio(res.Portfolio)

	data := templateData{
		Portfolio:     p,
		Generator:     "portlang " + version.Version,
		Source:        opts.Source,
		Package:       opts.Package,
		TypeName:      opts.TypeName,
		VarName:       opts.VarName,
		FloatPtr:      lowerFirst(opts.TypeName) + "Float",
		HorizonMonths: p.Horizon.Months,
	}

	if r := p.Restrictions; r != nil {
		data.NeedsFloatPtr = r.VolatilityMax != nil || r.AdminFeeMax != nil
	}

	var buf bytes.Buffer

	err = goTemplate.Execute(&buf, data)
	if err != nil {
		return nil, fmt.Errorf("execute go template: %w", err)
	}

	out, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("format generated go: %w", err)
	}

	return out, nil
}

func lowerFirst(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}

	r[0] = unicode.ToLower(r[0])

	return string(r)
}
