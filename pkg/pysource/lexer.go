package pysource

import (
	"fmt"
	"strings"
)

// TokenKind classifies a lexical token.
type TokenKind int

const (
	TokenName TokenKind = iota
	TokenNumber
	TokenString
	TokenOp
)

// Token is one lexical token of a logical line.
type Token struct {
	Kind TokenKind
	Text string // source text; for strings the literal including prefix and quotes
	Line int    // 1-based physical line
}

// logicalLine is a statement line: physical lines joined by brackets or
// backslash continuations, with comments removed.
type logicalLine struct {
	Indent int
	Line   int
	Tokens []Token
}

// multi-character operators, longest first.
var operators = []string{
	"**=", "//=", ">>=", "<<=", "...",
	"->", ":=", "**", "//", "==", "!=", "<=", ">=", "<<", ">>",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "@=",
}

// tokenize splits source into logical lines.
func tokenize(src string) ([]logicalLine, error) {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	lx := &lexer{src: src, line: 1}
	return lx.run()
}

type lexer struct {
	src   string
	pos   int
	line  int
	depth int

	lines   []logicalLine
	current *logicalLine
}

func (lx *lexer) run() ([]logicalLine, error) {
	atLineStart := true
	for lx.pos < len(lx.src) {
		if atLineStart && lx.depth == 0 && lx.current == nil {
			indent, blank := lx.scanIndent()
			if blank {
				continue
			}
			lx.current = &logicalLine{Indent: indent, Line: lx.line}
			atLineStart = false
			continue
		}

		c := lx.src[lx.pos]
		switch {
		case c == '\n':
			lx.pos++
			lx.line++
			if lx.depth == 0 {
				lx.flush()
				atLineStart = true
			}
		case c == ' ' || c == '\t' || c == '\f':
			lx.pos++
		case c == '#':
			for lx.pos < len(lx.src) && lx.src[lx.pos] != '\n' {
				lx.pos++
			}
		case c == '\\' && lx.pos+1 < len(lx.src) && lx.src[lx.pos+1] == '\n':
			lx.pos += 2
			lx.line++
		case isIdentStart(c):
			start := lx.pos
			for lx.pos < len(lx.src) && isIdentPart(lx.src[lx.pos]) {
				lx.pos++
			}
			word := lx.src[start:lx.pos]
			if lx.pos < len(lx.src) && (lx.src[lx.pos] == '"' || lx.src[lx.pos] == '\'') && isStringPrefix(word) {
				lx.pos = start
				if err := lx.scanString(); err != nil {
					return nil, err
				}
				continue
			}
			lx.emit(TokenName, word)
		case c == '"' || c == '\'':
			if err := lx.scanString(); err != nil {
				return nil, err
			}
		case isDigit(c) || (c == '.' && lx.pos+1 < len(lx.src) && isDigit(lx.src[lx.pos+1])):
			start := lx.pos
			for lx.pos < len(lx.src) && isNumberPart(lx.src[start:lx.pos], lx.src[lx.pos]) {
				lx.pos++
			}
			lx.emit(TokenNumber, lx.src[start:lx.pos])
		default:
			lx.scanOp()
		}
	}
	if lx.depth > 0 {
		return nil, fmt.Errorf("line %d: unclosed bracket at end of file", lx.line)
	}
	lx.flush()
	return lx.lines, nil
}

// scanIndent consumes leading whitespace and reports the indent width and
// whether the physical line is blank or a comment.
func (lx *lexer) scanIndent() (int, bool) {
	width := 0
scan:
	for lx.pos < len(lx.src) {
		switch lx.src[lx.pos] {
		case ' ':
			width++
		case '\t':
			width += 8 - width%8
		case '\f':
		default:
			break scan
		}
		lx.pos++
	}
	if lx.pos >= len(lx.src) {
		return 0, true
	}
	switch lx.src[lx.pos] {
	case '\n':
		lx.pos++
		lx.line++
		return 0, true
	case '#':
		for lx.pos < len(lx.src) && lx.src[lx.pos] != '\n' {
			lx.pos++
		}
		return 0, true
	}
	return width, false
}

func (lx *lexer) emit(kind TokenKind, text string) {
	if lx.current == nil {
		lx.current = &logicalLine{Line: lx.line}
	}
	lx.current.Tokens = append(lx.current.Tokens, Token{Kind: kind, Text: text, Line: lx.line})
}

func (lx *lexer) flush() {
	if lx.current != nil && len(lx.current.Tokens) > 0 {
		lx.lines = append(lx.lines, *lx.current)
	}
	lx.current = nil
}

func (lx *lexer) scanOp() {
	rest := lx.src[lx.pos:]
	for _, op := range operators {
		if strings.HasPrefix(rest, op) {
			lx.pos += len(op)
			lx.emit(TokenOp, op)
			return
		}
	}
	c := lx.src[lx.pos]
	switch c {
	case '(', '[', '{':
		lx.depth++
	case ')', ']', '}':
		if lx.depth > 0 {
			lx.depth--
		}
	}
	lx.pos++
	lx.emit(TokenOp, string(c))
}

// scanString consumes an optionally prefixed, optionally triple-quoted string.
func (lx *lexer) scanString() error {
	start, startLine := lx.pos, lx.line
	for lx.pos < len(lx.src) && isIdentPart(lx.src[lx.pos]) {
		lx.pos++
	}
	quote := lx.src[lx.pos]
	triple := strings.HasPrefix(lx.src[lx.pos:], strings.Repeat(string(quote), 3))
	if triple {
		lx.pos += 3
	} else {
		lx.pos++
	}

	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		switch {
		case c == '\\':
			if lx.pos+1 < len(lx.src) && lx.src[lx.pos+1] == '\n' {
				lx.line++
			}
			lx.pos += 2
			continue
		case c == '\n':
			if !triple {
				return fmt.Errorf("line %d: unterminated string literal", startLine)
			}
			lx.line++
		case c == quote:
			if !triple {
				lx.pos++
				lx.emit(TokenString, lx.src[start:lx.pos])
				return nil
			}
			if strings.HasPrefix(lx.src[lx.pos:], strings.Repeat(string(quote), 3)) {
				lx.pos += 3
				lx.emit(TokenString, lx.src[start:lx.pos])
				return nil
			}
		}
		lx.pos++
	}
	return fmt.Errorf("line %d: unterminated string literal", startLine)
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// isNumberPart reports whether c continues the number literal scanned so far:
// digits, underscores, radix/exponent letters, dots and the sign directly
// after a decimal exponent marker.
func isNumberPart(scanned string, c byte) bool {
	switch {
	case isDigit(c), c == '_', c == '.':
		return true
	case c == '+' || c == '-':
		last := scanned[len(scanned)-1]
		return (last == 'e' || last == 'E') && !strings.HasPrefix(strings.ToLower(scanned), "0x")
	case (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
		return true
	}
	return false
}

func isStringPrefix(word string) bool {
	switch strings.ToLower(word) {
	case "r", "u", "b", "f", "br", "rb", "fr", "rf":
		return true
	}
	return false
}
