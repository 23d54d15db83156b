package asm

import (
	"fmt"
	"os"

	"github.com/rmay/bytevm/pkg/diag"
)

// Lexer scans UTF-8-agnostic byte source one token at a time. It never
// stops at the first bad byte: an invalid character becomes a single
// diagnostic and the scan resumes at the next byte, so a source file
// with several unrelated typos reports all of them in one pass.
type Lexer struct {
	path   string
	src    []byte
	offset int
	line   int
	column int

	trace bool
	diags []diag.Diagnostic
}

// NewLexer returns a Lexer positioned at the start of src.
func NewLexer(path string, src []byte) *Lexer {
	return &Lexer{path: path, src: src, line: 1, column: 1}
}

// SetTrace makes the lexer log each token it produces, mirroring the
// interpreter's -trace convention.
func (lx *Lexer) SetTrace(trace bool) { lx.trace = trace }

// Diagnostics returns every lexical diagnostic raised so far.
func (lx *Lexer) Diagnostics() []diag.Diagnostic { return lx.diags }

func (lx *Lexer) atEnd() bool { return lx.offset >= len(lx.src) }

func (lx *Lexer) peekByte() byte {
	if lx.atEnd() {
		return 0
	}
	return lx.src[lx.offset]
}

func (lx *Lexer) advance() byte {
	b := lx.src[lx.offset]
	lx.offset++
	if b == '\n' {
		lx.line++
		lx.column = 1
	} else {
		lx.column++
	}
	return b
}

func (lx *Lexer) makeSpan(startOffset, startLine, startColumn int) diag.Span {
	return diag.Span{
		Path:   lx.path,
		Source: lx.src,
		Offset: startOffset,
		Line:   startLine,
		Column: startColumn,
		Length: lx.offset - startOffset,
	}
}

func (lx *Lexer) errorf(span diag.Span, format string, args ...any) {
	lx.diags = append(lx.diags, diag.Diagnostic{Span: span, Message: fmt.Sprintf(format, args...)})
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func isNameStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isNameContinue(b byte) bool {
	return isNameStart(b) || isDigit(b) || b == '-'
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n'
}

// skipTrivia consumes whitespace and "//" line comments.
func (lx *Lexer) skipTrivia() {
	for !lx.atEnd() {
		b := lx.peekByte()
		switch {
		case isSpace(b):
			lx.advance()
		case b == '/' && lx.offset+1 < len(lx.src) && lx.src[lx.offset+1] == '/':
			for !lx.atEnd() && lx.peekByte() != '\n' {
				lx.advance()
			}
		default:
			return
		}
	}
}

// Next scans and returns the next token. At end of input it returns a
// KindEndOfFile token forever; callers should stop once they see one.
func (lx *Lexer) Next() Token {
	lx.skipTrivia()

	startOffset, startLine, startColumn := lx.offset, lx.line, lx.column

	if lx.atEnd() {
		tok := Token{Kind: KindEndOfFile, Span: lx.makeSpan(startOffset, startLine, startColumn)}
		lx.trace_(tok)
		return tok
	}

	b := lx.peekByte()
	var tok Token
	switch {
	case b == ':':
		lx.advance()
		tok = Token{Kind: KindColon, Span: lx.makeSpan(startOffset, startLine, startColumn)}
	case b == '!':
		lx.advance()
		tok = Token{Kind: KindBang, Span: lx.makeSpan(startOffset, startLine, startColumn)}
	case b == '(':
		lx.advance()
		tok = Token{Kind: KindOpenParen, Span: lx.makeSpan(startOffset, startLine, startColumn)}
	case b == ')':
		lx.advance()
		tok = Token{Kind: KindCloseParen, Span: lx.makeSpan(startOffset, startLine, startColumn)}
	case isDigit(b):
		tok = lx.readNumber(startOffset, startLine, startColumn)
	case isNameStart(b):
		tok = lx.readName(startOffset, startLine, startColumn)
	default:
		lx.advance()
		span := lx.makeSpan(startOffset, startLine, startColumn)
		lx.errorf(span, "unexpected byte 0x%02X", b)
		// Recover by continuing to scan; return the next real token so
		// a caller using Next() in a loop never stalls on this byte.
		return lx.Next()
	}

	lx.trace_(tok)
	return tok
}

func (lx *Lexer) trace_(tok Token) {
	if lx.trace {
		fmt.Fprintf(os.Stderr, "lux: %s %s\n", tok.Span, tok.Kind)
	}
}

// readNumber scans an unsigned decimal integer literal. Underscores are
// separators and contribute nothing to the value. Overflow beyond 64
// bits wraps silently, the same as any other uint64 arithmetic in Go.
func (lx *Lexer) readNumber(startOffset, startLine, startColumn int) Token {
	var value uint64
	for !lx.atEnd() && (isDigit(lx.peekByte()) || lx.peekByte() == '_') {
		b := lx.advance()
		if b == '_' {
			continue
		}
		value = value*10 + uint64(b-'0')
	}
	return Token{Kind: KindInteger, IntValue: value, Span: lx.makeSpan(startOffset, startLine, startColumn)}
}

// readName scans a bare word and promotes it to a keyword kind when it
// matches the reserved mnemonic table.
func (lx *Lexer) readName(startOffset, startLine, startColumn int) Token {
	for !lx.atEnd() && isNameContinue(lx.peekByte()) {
		lx.advance()
	}
	text := lx.src[startOffset:lx.offset]
	span := lx.makeSpan(startOffset, startLine, startColumn)
	if kind, ok := keywords[string(text)]; ok {
		return Token{Kind: kind, Name: text, Span: span}
	}
	return Token{Kind: KindName, Name: text, Span: span}
}
