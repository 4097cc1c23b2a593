// Package lexer turns portfolio documents into token streams.
package lexer

import (
	"errors"
	"fmt"
	"strconv"
	"unicode"

	"github.com/victortavares4/dsl-investments/pkg/portlang/token"
)

// ErrLexical is the sentinel wrapped by every *Error.
var ErrLexical = errors.New("lexical error")

// ErrorKind classifies lexical failures.
type ErrorKind int

// Lexical error kinds.
const (
	UnterminatedString ErrorKind = iota + 1
	UnexpectedCharacter
	MalformedNumber
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case UnterminatedString:
		return "UnterminatedString"
	case UnexpectedCharacter:
		return "UnexpectedCharacter"
	case MalformedNumber:
		return "MalformedNumber"
	default:
		return "Unknown"
	}
}

// Code returns the stable diagnostic code for the kind.
func (k ErrorKind) Code() string {
	switch k {
	case UnterminatedString:
		return "LEX002"
	case MalformedNumber:
		return "LEX003"
	case UnexpectedCharacter:
		return "LEX005"
	default:
		return "LEX000"
	}
}

// Error is a positioned lexical failure. Tokenization stops at the first one.
type Error struct {
	Kind   ErrorKind
	Line   int
	Column int
	Char   rune
	Text   string
}

func (e *Error) Error() string {
	switch e.Kind {
	case UnterminatedString:
		return fmt.Sprintf("%d:%d: unterminated string", e.Line, e.Column)
	case UnexpectedCharacter:
		return fmt.Sprintf("%d:%d: unexpected character %q", e.Line, e.Column, e.Char)
	case MalformedNumber:
		return fmt.Sprintf("%d:%d: malformed number %q", e.Line, e.Column, e.Text)
	default:
		return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, ErrLexical)
	}
}

// Unwrap lets errors.Is match ErrLexical.
func (e *Error) Unwrap() error {
	return ErrLexical
}

// Tokenize scans source into tokens terminated by an EOF token.
func Tokenize(source string) ([]token.Token, error) {
	s := &scanner{src: []rune(source), line: 1, col: 1}

	return s.run()
}

type scanner struct {
	src    []rune
	pos    int
	line   int
	col    int
	tokens []token.Token
}

func (s *scanner) peek(offset int) rune {
	i := s.pos + offset
	if i >= len(s.src) {
		return 0
	}

	return s.src[i]
}

func (s *scanner) atEnd() bool {
	return s.pos >= len(s.src)
}

func (s *scanner) advance() rune {
	r := s.src[s.pos]
	s.pos++

	if r == '\n' {
		s.line++
		s.col = 1
	} else {
		s.col++
	}

	return r
}

func (s *scanner) emit(kind token.Kind, lexeme string, line, col int) {
	s.tokens = append(s.tokens, token.Token{Kind: kind, Lexeme: lexeme, Line: line, Column: col})
}

func (s *scanner) run() ([]token.Token, error) {
	for !s.atEnd() {
		r := s.peek(0)
		line, col := s.line, s.col

		switch {
		case r == ' ' || r == '\t' || r == '\r' || r == '\n':
			s.advance()
		case r == '/' && s.peek(1) == '/':
			s.skipComment()
		case r == '=':
			s.advance()
			s.emit(token.Assign, "=", line, col)
		case r == '{':
			s.advance()
			s.emit(token.LBrace, "{", line, col)
		case r == '}':
			s.advance()
			s.emit(token.RBrace, "}", line, col)
		case r == ';':
			s.advance()
			s.emit(token.Semicolon, ";", line, col)
		case r == '%':
			s.advance()
			s.emit(token.Percent, "%", line, col)
		case r == '"':
			err := s.scanString()
			if err != nil {
				return nil, err
			}
		case isDigit(r), r == '-' && isDigit(s.peek(1)):
			err := s.scanNumber()
			if err != nil {
				return nil, err
			}
		case unicode.IsLetter(r) || r == '_':
			s.scanIdentifier()
		default:
			return nil, &Error{Kind: UnexpectedCharacter, Line: line, Column: col, Char: r}
		}
	}

	s.emit(token.EOF, "", s.line, s.col)

	return s.tokens, nil
}

func (s *scanner) skipComment() {
	for !s.atEnd() && s.peek(0) != '\n' {
		s.advance()
	}
}

func (s *scanner) scanString() error {
	line, col := s.line, s.col
	s.advance()

	start := s.pos

	for {
		if s.atEnd() || s.peek(0) == '\n' {
			return &Error{Kind: UnterminatedString, Line: line, Column: col}
		}

		if s.peek(0) == '"' {
			break
		}

		s.advance()
	}

	value := string(s.src[start:s.pos])
	s.advance()
	s.emit(token.String, value, line, col)

	return nil
}

func (s *scanner) scanNumber() error {
	line, col := s.line, s.col
	start := s.pos

	if s.peek(0) == '-' {
		s.advance()
	}

	s.digits()

	if s.peek(0) == '.' && isDigit(s.peek(1)) {
		s.advance()
		s.digits()

		if s.peek(0) == '.' && isDigit(s.peek(1)) {
			s.advance()
			s.digits()

			return &Error{Kind: MalformedNumber, Line: line, Column: col, Text: string(s.src[start:s.pos])}
		}
	}

	lexeme := string(s.src[start:s.pos])

	value, err := strconv.ParseFloat(lexeme, 64)
	if err != nil {
		return &Error{Kind: MalformedNumber, Line: line, Column: col, Text: lexeme}
	}

	s.tokens = append(s.tokens, token.Token{
		Kind:   token.Number,
		Lexeme: lexeme,
		Line:   line,
		Column: col,
		Number: value,
	})

	return nil
}

func (s *scanner) digits() {
	for isDigit(s.peek(0)) {
		s.advance()
	}
}

func (s *scanner) scanIdentifier() {
	line, col := s.line, s.col
	start := s.pos

	for !s.atEnd() {
		r := s.peek(0)
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && !unicode.Is(unicode.Mn, r) {
			break
		}

		s.advance()
	}

	lexeme := string(s.src[start:s.pos])
	s.emit(token.Lookup(lexeme), lexeme, line, col)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
