// Package printer renders a portfolio syntax tree back into canonical source.
package printer

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/victortavares4/dsl-investments/pkg/portlang"
	"github.com/victortavares4/dsl-investments/pkg/portlang/ast"
)

const indentUnit = "  "

type printer struct {
	buf   bytes.Buffer
	depth int
}

func (pr *printer) line(format string, args ...any) {
	pr.buf.WriteString(strings.Repeat(indentUnit, pr.depth))
	fmt.Fprintf(&pr.buf, format, args...)
	pr.buf.WriteByte('\n')
}

func (pr *printer) open(keyword string) {
	pr.line("%s {", keyword)
	pr.depth++
}

func (pr *printer) close() {
	pr.depth--
	pr.line("}")
}

func (pr *printer) blank() {
	pr.buf.WriteByte('\n')
}

// FormatNumber renders a percentage or horizon value without trailing zeros.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Fprint writes the canonical form of p to w.
func Fprint(w io.Writer, p *ast.Portfolio) error {
	pr := &printer{}

	pr.open("carteira")
	pr.line("nome = \"%s\";", p.Name)
	pr.line("perfil = \"%s\";", p.Profile.Raw)
	pr.line("horizonte_temporal = %s %s;", FormatNumber(p.Horizon.Value), p.Horizon.Unit)
	pr.blank()

	pr.open("alocação")

	for _, e := range p.Allocation.Entries {
		pr.line("%s = %s%%;", e.Asset, FormatNumber(e.Percent))
	}

	pr.close()

	if r := p.Restrictions; r != nil {
		pr.blank()
		pr.open("restrições")

		if r.VolatilityMax != nil {
			pr.line("volatilidade_maxima = %s%%;", FormatNumber(r.VolatilityMax.Value))
		}

		if r.AdminFeeMax != nil {
			pr.line("taxa_administrativa_maxima = %s%%;", FormatNumber(r.AdminFeeMax.Value))
		}

		pr.limits("setorial", r.Sectors)
		pr.limits("geografico", r.Regions)
		pr.close()
	}

	if r := p.Rebalancing; r != nil {
		pr.blank()
		pr.open("rebalanceamento")
		pr.line("frequencia = %s;", r.Frequency.Raw)
		pr.line("tolerancia = %s%%;", FormatNumber(r.Tolerance.Value))
		pr.close()
	}

	pr.close()

	_, err := w.Write(pr.buf.Bytes())
	if err != nil {
		return fmt.Errorf("write formatted source: %w", err)
	}

	return nil
}

func (pr *printer) limits(keyword string, l *ast.Limits) {
	if l == nil {
		return
	}

	pr.open(keyword)

	for _, e := range l.Entries {
		pr.line("%s = %s%%;", e.Name, FormatNumber(e.Percent))
	}

	pr.close()
}

// Format parses source and returns its canonical form. Validation is not run,
// so documents with semantic errors can still be formatted.
func Format(source string) ([]byte, error) {
	p, err := portlang.Parse(source)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer

	err = Fprint(&buf, p)
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
