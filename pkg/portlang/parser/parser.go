// Package parser builds the portfolio syntax tree from a token stream.
//
// The grammar is parsed by recursive descent with one method per production.
// Parsing stops at the first structural problem.
package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/victortavares4/dsl-investments/pkg/portlang/ast"
	"github.com/victortavares4/dsl-investments/pkg/portlang/token"
)

// ErrSyntax is the sentinel wrapped by every *Error.
var ErrSyntax = errors.New("syntax error")

// ErrorKind classifies syntax failures.
type ErrorKind int

// Syntax error kinds.
const (
	UnexpectedToken ErrorKind = iota + 1
	MissingRequiredField
	DuplicateField
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case UnexpectedToken:
		return "UnexpectedToken"
	case MissingRequiredField:
		return "MissingRequiredField"
	case DuplicateField:
		return "DuplicateField"
	default:
		return "Unknown"
	}
}

// Code returns the stable diagnostic code for the kind.
func (k ErrorKind) Code() string {
	switch k {
	case UnexpectedToken:
		return "SYN001"
	case MissingRequiredField:
		return "SYN002"
	case DuplicateField:
		return "SYN003"
	default:
		return "SYN000"
	}
}

// Error reports the first structural problem. Found is the offending token and
// carries the position; Field names the missing or repeated field.
type Error struct {
	Kind     ErrorKind
	Expected []token.Kind
	Found    token.Token
	Field    string
}

// Line returns the line of the offending token.
func (e *Error) Line() int { return e.Found.Line }

// Column returns the column of the offending token.
func (e *Error) Column() int { return e.Found.Column }

func (e *Error) Error() string {
	pos := fmt.Sprintf("%d:%d", e.Found.Line, e.Found.Column)

	switch e.Kind {
	case MissingRequiredField:
		return fmt.Sprintf("%s: missing required field %q", pos, e.Field)
	case DuplicateField:
		return fmt.Sprintf("%s: duplicate field %q", pos, e.Field)
	default:
		return fmt.Sprintf("%s: expected %s, found %s", pos, describeKinds(e.Expected), e.Found.Describe())
	}
}

// Unwrap lets errors.Is match ErrSyntax.
func (e *Error) Unwrap() error {
	return ErrSyntax
}

func describeKinds(kinds []token.Kind) string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = fmt.Sprintf("%q", k.String())
	}

	switch len(names) {
	case 0:
		return "nothing"
	case 1:
		return names[0]
	default:
		return strings.Join(names[:len(names)-1], ", ") + " or " + names[len(names)-1]
	}
}

// Parse builds a Portfolio from tokens produced by lexer.Tokenize. The slice
// must end with an EOF token.
func Parse(tokens []token.Token) (*ast.Portfolio, error) {
	if len(tokens) == 0 || tokens[len(tokens)-1].Kind != token.EOF {
		tokens = append(tokens[:len(tokens):len(tokens)], token.Token{Kind: token.EOF})
	}

	p := &parser{tokens: tokens}

	return p.parsePortfolio()
}

type parser struct {
	tokens []token.Token
	pos    int
}

func (p *parser) peek() token.Token {
	return p.tokens[p.pos]
}

func (p *parser) next() token.Token {
	t := p.tokens[p.pos]
	if t.Kind != token.EOF {
		p.pos++
	}

	return t
}

func (p *parser) unexpected(expected ...token.Kind) *Error {
	return &Error{Kind: UnexpectedToken, Expected: expected, Found: p.peek()}
}

func (p *parser) expect(kind token.Kind) (token.Token, error) {
	if p.peek().Kind != kind {
		return token.Token{}, p.unexpected(kind)
	}

	return p.next(), nil
}

// expectSeq consumes a fixed run of kinds.
func (p *parser) expectSeq(kinds ...token.Kind) error {
	for _, k := range kinds {
		_, err := p.expect(k)
		if err != nil {
			return err
		}
	}

	return nil
}

// parsePercent consumes `= NUMBER % ;` after a field keyword.
func (p *parser) parsePercent() (ast.Percent, error) {
	_, err := p.expect(token.Assign)
	if err != nil {
		return ast.Percent{}, err
	}

	num, err := p.expect(token.Number)
	if err != nil {
		return ast.Percent{}, err
	}

	err = p.expectSeq(token.Percent, token.Semicolon)
	if err != nil {
		return ast.Percent{}, err
	}

	return ast.Percent{Value: num.Number, Pos: ast.PosOf(num)}, nil
}

func (p *parser) parsePortfolio() (*ast.Portfolio, error) {
	root, err := p.expect(token.Carteira)
	if err != nil {
		return nil, err
	}

	_, err = p.expect(token.LBrace)
	if err != nil {
		return nil, err
	}

	portfolio := &ast.Portfolio{Pos: ast.PosOf(root)}

	err = p.parseConfigurations(portfolio)
	if err != nil {
		return nil, err
	}

	portfolio.Allocation, err = p.parseAllocation()
	if err != nil {
		return nil, err
	}

	if p.peek().Kind == token.Restricoes {
		portfolio.Restrictions, err = p.parseRestrictions()
		if err != nil {
			return nil, err
		}
	}

	if p.peek().Kind == token.Rebalanceamento {
		portfolio.Rebalancing, err = p.parseRebalancing()
		if err != nil {
			return nil, err
		}
	}

	_, err = p.expect(token.RBrace)
	if err != nil {
		if portfolio.Restrictions == nil && portfolio.Rebalancing == nil {
			err = p.unexpected(token.Restricoes, token.Rebalanceamento, token.RBrace)
		} else if portfolio.Rebalancing == nil {
			err = p.unexpected(token.Rebalanceamento, token.RBrace)
		}

		return nil, err
	}

	_, err = p.expect(token.EOF)
	if err != nil {
		return nil, err
	}

	return portfolio, nil
}

// parseConfigurations reads nome, perfil and horizonte_temporal in any order.
func (p *parser) parseConfigurations(portfolio *ast.Portfolio) error {
	seen := make(map[token.Kind]bool, 3)

	for {
		tok := p.peek()

		switch tok.Kind {
		case token.Nome, token.Perfil, token.HorizonteTemporal:
		default:
			return p.checkConfigurations(seen)
		}

		if seen[tok.Kind] {
			return &Error{Kind: DuplicateField, Found: tok, Field: tok.Kind.String()}
		}

		seen[tok.Kind] = true
		p.next()

		var err error

		switch tok.Kind {
		case token.Nome:
			portfolio.Name, err = p.parseStringField()
			portfolio.NamePos = ast.PosOf(tok)
		case token.Perfil:
			var raw string

			raw, err = p.parseStringField()
			portfolio.Profile = ast.Profile{Raw: raw, Kind: ast.ParseProfile(raw), Pos: ast.PosOf(tok)}
		case token.HorizonteTemporal:
			portfolio.Horizon, err = p.parseHorizon()
			portfolio.Horizon.Pos = ast.PosOf(tok)
		}

		if err != nil {
			return err
		}
	}
}

func (p *parser) checkConfigurations(seen map[token.Kind]bool) error {
	if len(seen) == 0 {
		return p.unexpected(token.Nome, token.Perfil, token.HorizonteTemporal)
	}

	for _, k := range []token.Kind{token.Nome, token.Perfil, token.HorizonteTemporal} {
		if !seen[k] {
			return &Error{Kind: MissingRequiredField, Found: p.peek(), Field: k.String()}
		}
	}

	return nil
}

func (p *parser) parseStringField() (string, error) {
	_, err := p.expect(token.Assign)
	if err != nil {
		return "", err
	}

	str, err := p.expect(token.String)
	if err != nil {
		return "", err
	}

	_, err = p.expect(token.Semicolon)
	if err != nil {
		return "", err
	}

	return str.Lexeme, nil
}

func (p *parser) parseHorizon() (ast.Horizon, error) {
	_, err := p.expect(token.Assign)
	if err != nil {
		return ast.Horizon{}, err
	}

	num, err := p.expect(token.Number)
	if err != nil {
		return ast.Horizon{}, err
	}

	h := ast.Horizon{Value: num.Number}

	switch p.peek().Kind {
	case token.Anos:
		h.Unit = ast.Years
	case token.Meses:
		h.Unit = ast.Months
	default:
		return ast.Horizon{}, p.unexpected(token.Anos, token.Meses)
	}

	p.next()

	_, err = p.expect(token.Semicolon)
	if err != nil {
		return ast.Horizon{}, err
	}

	return h, nil
}

func (p *parser) parseAllocation() (ast.Allocation, error) {
	kw, err := p.expect(token.Alocacao)
	if err != nil {
		return ast.Allocation{}, err
	}

	_, err = p.expect(token.LBrace)
	if err != nil {
		return ast.Allocation{}, err
	}

	alloc := ast.Allocation{Pos: ast.PosOf(kw)}
	seen := make(map[ast.AssetClass]bool)

	for {
		tok := p.peek()

		if tok.Kind == token.RBrace && len(alloc.Entries) > 0 {
			p.next()

			return alloc, nil
		}

		asset, ok := ast.AssetClassFromKind(tok.Kind)
		if !ok {
			expected := token.AssetClasses()
			if len(alloc.Entries) > 0 {
				expected = append(expected, token.RBrace)
			}

			return ast.Allocation{}, p.unexpected(expected...)
		}

		if seen[asset] {
			return ast.Allocation{}, &Error{Kind: DuplicateField, Found: tok, Field: tok.Kind.String()}
		}

		seen[asset] = true
		p.next()

		pct, err := p.parsePercent()
		if err != nil {
			return ast.Allocation{}, err
		}

		alloc.Entries = append(alloc.Entries, ast.AllocationEntry{Asset: asset, Percent: pct.Value, Pos: ast.PosOf(tok)})
	}
}

func (p *parser) parseRestrictions() (*ast.Restrictions, error) {
	kw := p.next()

	_, err := p.expect(token.LBrace)
	if err != nil {
		return nil, err
	}

	r := &ast.Restrictions{Pos: ast.PosOf(kw)}

	for {
		tok := p.peek()

		switch tok.Kind {
		case token.RBrace:
			p.next()

			return r, nil
		case token.VolatilidadeMaxima, token.TaxaAdministrativaMaxima:
			slot := &r.VolatilityMax
			if tok.Kind == token.TaxaAdministrativaMaxima {
				slot = &r.AdminFeeMax
			}

			if *slot != nil {
				return nil, &Error{Kind: DuplicateField, Found: tok, Field: tok.Kind.String()}
			}

			p.next()

			pct, err := p.parsePercent()
			if err != nil {
				return nil, err
			}

			pct.Pos = ast.PosOf(tok)
			*slot = &pct
		case token.Setorial, token.Geografico:
			slot := &r.Sectors
			if tok.Kind == token.Geografico {
				slot = &r.Regions
			}

			if *slot != nil {
				return nil, &Error{Kind: DuplicateField, Found: tok, Field: tok.Kind.String()}
			}

			limits, err := p.parseLimits()
			if err != nil {
				return nil, err
			}

			*slot = limits
		default:
			return nil, p.unexpected(token.VolatilidadeMaxima, token.TaxaAdministrativaMaxima,
				token.Setorial, token.Geografico, token.RBrace)
		}
	}
}

// parseLimits reads a setorial or geografico block of named caps.
func (p *parser) parseLimits() (*ast.Limits, error) {
	kw := p.next()

	_, err := p.expect(token.LBrace)
	if err != nil {
		return nil, err
	}

	limits := &ast.Limits{Pos: ast.PosOf(kw)}
	seen := make(map[string]bool)

	for {
		tok := p.peek()

		if tok.Kind == token.RBrace && len(limits.Entries) > 0 {
			p.next()

			return limits, nil
		}

		if tok.Kind != token.Identifier {
			if len(limits.Entries) > 0 {
				return nil, p.unexpected(token.Identifier, token.RBrace)
			}

			return nil, p.unexpected(token.Identifier)
		}

		if seen[tok.Lexeme] {
			return nil, &Error{Kind: DuplicateField, Found: tok, Field: tok.Lexeme}
		}

		seen[tok.Lexeme] = true
		p.next()

		pct, err := p.parsePercent()
		if err != nil {
			return nil, err
		}

		limits.Entries = append(limits.Entries, ast.LimitEntry{Name: tok.Lexeme, Percent: pct.Value, Pos: ast.PosOf(tok)})
	}
}

func (p *parser) parseRebalancing() (*ast.Rebalancing, error) {
	kw := p.next()

	_, err := p.expect(token.LBrace)
	if err != nil {
		return nil, err
	}

	r := &ast.Rebalancing{Pos: ast.PosOf(kw)}

	var haveFreq, haveTol bool

	for {
		tok := p.peek()

		switch tok.Kind {
		case token.RBrace:
			if !haveFreq {
				return nil, &Error{Kind: MissingRequiredField, Found: tok, Field: token.Frequencia.String()}
			}

			if !haveTol {
				return nil, &Error{Kind: MissingRequiredField, Found: tok, Field: token.Tolerancia.String()}
			}

			p.next()

			return r, nil
		case token.Frequencia:
			if haveFreq {
				return nil, &Error{Kind: DuplicateField, Found: tok, Field: tok.Kind.String()}
			}

			haveFreq = true
			p.next()

			r.Frequency, err = p.parseFrequency()
			if err != nil {
				return nil, err
			}

			r.Frequency.Pos = ast.PosOf(tok)
		case token.Tolerancia:
			if haveTol {
				return nil, &Error{Kind: DuplicateField, Found: tok, Field: tok.Kind.String()}
			}

			haveTol = true
			p.next()

			pct, err := p.parsePercent()
			if err != nil {
				return nil, err
			}

			pct.Pos = ast.PosOf(tok)
			r.Tolerance = pct
		default:
			return nil, p.unexpected(token.Frequencia, token.Tolerancia, token.RBrace)
		}
	}
}

func (p *parser) parseFrequency() (ast.Frequency, error) {
	_, err := p.expect(token.Assign)
	if err != nil {
		return ast.Frequency{}, err
	}

	tok := p.peek()
	if !tok.Kind.IsFrequency() && tok.Kind != token.Identifier {
		return ast.Frequency{}, p.unexpected(token.Mensal, token.Trimestral, token.Semestral, token.Anual, token.Identifier)
	}

	p.next()

	_, err = p.expect(token.Semicolon)
	if err != nil {
		return ast.Frequency{}, err
	}

	return ast.Frequency{Raw: tok.Lexeme, Kind: ast.FrequencyFromKind(tok.Kind)}, nil
}
