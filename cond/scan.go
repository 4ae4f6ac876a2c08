// Package cond provides the textual condition language of PetalPlan:
// a recursive-descent parser over bracketed, PDDL-style condition text,
// a closed set of condition variants that print themselves back to that
// form, and lowering of parsed conditions into the tree IR.
package cond

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

// TokenKind identifies the type of a scanner token.
type TokenKind int

const (
	TokenSymbol   TokenKind = iota // bare name or operator
	TokenVariable                  // ?name
	TokenNumber                    // numeric literal
	TokenLParen                    // (
	TokenRParen                    // )
	TokenDash                      // standalone - (type separator or subtraction)
	TokenEOF
)

var tokenNames = map[TokenKind]string{
	TokenSymbol:   "symbol",
	TokenVariable: "variable",
	TokenNumber:   "number",
	TokenLParen:   "(",
	TokenRParen:   ")",
	TokenDash:     "-",
	TokenEOF:      "EOF",
}

func (k TokenKind) String() string {
	if name, ok := tokenNames[k]; ok {
		return name
	}
	return fmt.Sprintf("token(%d)", int(k))
}

// Token is a scanned token with position information.
type Token struct {
	Kind  TokenKind
	Value string // raw text of the token
	Pos   int    // byte offset in source
}

// Lex tokenizes condition text and returns all tokens.
func Lex(src string) ([]Token, error) {
	s := &scanner{src: src}
	if err := s.scanAll(); err != nil {
		return nil, err
	}
	return s.tokens, nil
}

type scanner struct {
	src    string
	pos    int
	tokens []Token
}

func (s *scanner) scanAll() error {
	for {
		s.skipWhitespace()
		if s.pos >= len(s.src) {
			s.tokens = append(s.tokens, Token{Kind: TokenEOF, Pos: s.pos})
			return nil
		}

		ch, _ := utf8.DecodeRuneInString(s.src[s.pos:])
		switch {
		case ch == '(':
			s.emit1(TokenLParen)
		case ch == ')':
			s.emit1(TokenRParen)
		case ch == '?':
			if err := s.scanVariable(); err != nil {
				return err
			}
		case ch == '-':
			s.scanDashOrNumber()
		case isDigit(ch):
			s.scanNumber()
		case ch == '<' || ch == '>' || ch == '=':
			s.scanComparison()
		case ch == '*' || ch == '/' || ch == '+':
			s.emit1(TokenSymbol)
		case isNameStart(ch):
			s.scanSymbol()
		default:
			return fmt.Errorf("unexpected character %q at position %d", string(ch), s.pos)
		}
	}
}

func (s *scanner) emit1(kind TokenKind) {
	s.tokens = append(s.tokens, Token{Kind: kind, Value: s.src[s.pos : s.pos+1], Pos: s.pos})
	s.pos++
}

func (s *scanner) skipWhitespace() {
	for s.pos < len(s.src) {
		ch, size := utf8.DecodeRuneInString(s.src[s.pos:])
		if !unicode.IsSpace(ch) {
			break
		}
		s.pos += size
	}
}

// scanDashOrNumber resolves the three readings of '-': a negative numeric
// literal ("-3.5"), and the standalone dash used both as the typed-list
// separator and as the subtraction operator.
func (s *scanner) scanDashOrNumber() {
	if s.pos+1 < len(s.src) && isDigit(rune(s.src[s.pos+1])) {
		s.scanNumber()
		return
	}
	s.emit1(TokenDash)
}

func (s *scanner) scanNumber() {
	start := s.pos
	if s.src[s.pos] == '-' {
		s.pos++
	}
	for s.pos < len(s.src) && isDigit(rune(s.src[s.pos])) {
		s.pos++
	}
	if s.pos < len(s.src) && s.src[s.pos] == '.' {
		s.pos++
		for s.pos < len(s.src) && isDigit(rune(s.src[s.pos])) {
			s.pos++
		}
	}
	s.tokens = append(s.tokens, Token{Kind: TokenNumber, Value: s.src[start:s.pos], Pos: start})
}

func (s *scanner) scanComparison() {
	start := s.pos
	s.pos++
	if s.pos < len(s.src) && s.src[s.pos] == '=' {
		s.pos++
	}
	s.tokens = append(s.tokens, Token{Kind: TokenSymbol, Value: s.src[start:s.pos], Pos: start})
}

func (s *scanner) scanVariable() error {
	start := s.pos
	s.pos++ // skip '?'
	if s.pos >= len(s.src) || !isNameStart(rune(s.src[s.pos])) {
		return fmt.Errorf("malformed variable at position %d", start)
	}
	s.scanName()
	s.tokens = append(s.tokens, Token{Kind: TokenVariable, Value: s.src[start:s.pos], Pos: start})
	return nil
}

func (s *scanner) scanSymbol() {
	start := s.pos
	s.scanName()
	s.tokens = append(s.tokens, Token{Kind: TokenSymbol, Value: s.src[start:s.pos], Pos: start})
}

// scanName consumes an identifier body. Hyphens are legal inside names
// (scale-up, total-cost); a separator dash is always delimited by
// whitespace and never reaches here.
func (s *scanner) scanName() {
	for s.pos < len(s.src) {
		ch, size := utf8.DecodeRuneInString(s.src[s.pos:])
		if !isNamePart(ch) {
			break
		}
		s.pos += size
	}
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

func isNameStart(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch)
}

func isNamePart(ch rune) bool {
	return ch == '_' || ch == '-' || unicode.IsLetter(ch) || unicode.IsDigit(ch)
}
