package portlang

import (
	"errors"
	"fmt"
	"sort"

	"github.com/victortavares4/dsl-investments/pkg/portlang/lexer"
	"github.com/victortavares4/dsl-investments/pkg/portlang/parser"
	"github.com/victortavares4/dsl-investments/pkg/portlang/validator"
)

// Stage names the pipeline stage that produced a diagnostic.
type Stage string

// Pipeline stages.
const (
	StageLexical  Stage = "lexical"
	StageSyntax   Stage = "syntax"
	StageSemantic Stage = "semantic"
)

// Diagnostic is a positioned message shared by every front end.
type Diagnostic struct {
	Stage      Stage  `json:"stage"`
	Severity   string `json:"severity"`
	Code       string `json:"code"`
	Rule       string `json:"rule,omitempty"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
	Line       int    `json:"line"`
	Column     int    `json:"column"`
}

// String renders the diagnostic as line:col: severity [code] message.
func (d Diagnostic) String() string {
	return fmt.Sprintf("%d:%d: %s [%s] %s", d.Line, d.Column, d.Severity, d.Code, d.Message)
}

// IsError reports whether the diagnostic blocks generation.
func (d Diagnostic) IsError() bool {
	return d.Severity == string(validator.SeverityError)
}

// Diagnostics flattens a compilation outcome. A fatal err yields one
// diagnostic; otherwise every finding of res is returned, errors first.
func Diagnostics(res *Result, err error) []Diagnostic {
	if err != nil {
		return []Diagnostic{FatalDiagnostic(err)}
	}

	if res == nil {
		return nil
	}

	out := make([]Diagnostic, 0, len(res.Report.Errors)+len(res.Report.Warnings))

	for _, f := range res.Report.All() {
		out = append(out, Diagnostic{
			Stage:      StageSemantic,
			Severity:   string(f.Severity),
			Code:       f.Code,
			Rule:       f.Rule,
			Message:    f.Message,
			Suggestion: f.Suggestion,
			Line:       f.Pos.Line,
			Column:     f.Pos.Column,
		})
	}

	return out
}

// SortByPosition orders diagnostics by line then column, keeping rule order
// for findings on the same spot.
func SortByPosition(diags []Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		if diags[i].Line != diags[j].Line {
			return diags[i].Line < diags[j].Line
		}

		return diags[i].Column < diags[j].Column
	})
}

// FatalDiagnostic converts a lexical or syntax error into a Diagnostic.
func FatalDiagnostic(err error) Diagnostic {
	var lexErr *lexer.Error
	if errors.As(err, &lexErr) {
		return Diagnostic{
			Stage:      StageLexical,
			Severity:   string(validator.SeverityError),
			Code:       lexErr.Kind.Code(),
			Rule:       lexErr.Kind.String(),
			Message:    lexErr.Error(),
			Suggestion: lexicalSuggestion(lexErr.Kind),
			Line:       lexErr.Line,
			Column:     lexErr.Column,
		}
	}

	var synErr *parser.Error
	if errors.As(err, &synErr) {
		return Diagnostic{
			Stage:    StageSyntax,
			Severity: string(validator.SeverityError),
			Code:     synErr.Kind.Code(),
			Rule:     synErr.Kind.String(),
			Message:  synErr.Error(),
			Line:     synErr.Line(),
			Column:   synErr.Column(),
		}
	}

	return Diagnostic{
		Severity: string(validator.SeverityError),
		Code:     "GEN000",
		Message:  err.Error(),
		Line:     1,
		Column:   1,
	}
}

func lexicalSuggestion(k lexer.ErrorKind) string {
	switch k {
	case lexer.UnterminatedString:
		return `close the string with " on the same line`
	case lexer.MalformedNumber:
		return "use a single decimal point"
	case lexer.UnexpectedCharacter:
		return "remove the character or quote it inside a string"
	default:
		return ""
	}
}
