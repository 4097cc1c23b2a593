// Package portlang wires the lexer, parser and validator into a single
// compilation pipeline for portfolio documents.
//
// A document goes through three stages: tokenization, parsing and semantic
// validation. Lexical and syntax errors are fatal and returned as Go errors;
// semantic findings are collected in the Result. Generators must call
// Result.Generatable before consuming a Result.
package portlang

import (
	"errors"
	"fmt"

	"github.com/victortavares4/dsl-investments/pkg/portlang/ast"
	"github.com/victortavares4/dsl-investments/pkg/portlang/lexer"
	"github.com/victortavares4/dsl-investments/pkg/portlang/parser"
	"github.com/victortavares4/dsl-investments/pkg/portlang/token"
	"github.com/victortavares4/dsl-investments/pkg/portlang/validator"
)

// ErrBlocked is returned when a generator is asked to consume a document with
// validation errors.
var ErrBlocked = errors.New("document has validation errors")

// Options tune a compilation.
type Options struct {
	Thresholds validator.Thresholds
}

// DefaultOptions returns options with the standard thresholds.
func DefaultOptions() Options {
	return Options{Thresholds: validator.DefaultThresholds()}
}

// Result is a successfully parsed document and its findings.
type Result struct {
	Tokens    []token.Token
	Portfolio *ast.Portfolio
	Report    validator.Report
}

// Valid reports whether the document has no validation errors.
func (r *Result) Valid() bool {
	return r != nil && r.Report.Valid()
}

// Generatable returns ErrBlocked when the result must not reach a generator.
func (r *Result) Generatable() error {
	if r == nil || r.Portfolio == nil {
		return fmt.Errorf("%w: no document", ErrBlocked)
	}

	if !r.Report.Valid() {
		return fmt.Errorf("%w: %d error(s)", ErrBlocked, len(r.Report.Errors))
	}

	return nil
}

// Compile runs the full pipeline with default thresholds.
func Compile(source string) (*Result, error) {
	return CompileWith(source, DefaultOptions())
}

// CompileWith runs the full pipeline. The returned error is a *lexer.Error or
// *parser.Error; semantic problems are reported in Result.Report.
func CompileWith(source string, opts Options) (*Result, error) {
	tokens, err := lexer.Tokenize(source)
	if err != nil {
		return nil, fmt.Errorf("tokenize: %w", err)
	}

	p, err := parser.Parse(tokens)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	report := validator.New(opts.Thresholds).Validate(p)

	return &Result{Tokens: tokens, Portfolio: p, Report: report}, nil
}

// Parse runs tokenization and parsing only.
func Parse(source string) (*ast.Portfolio, error) {
	tokens, err := lexer.Tokenize(source)
	if err != nil {
		return nil, fmt.Errorf("tokenize: %w", err)
	}

	p, err := parser.Parse(tokens)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	return p, nil
}
