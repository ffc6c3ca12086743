package core

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

// TokenType classifies a lexical token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenComment
	TokenKeyword     // obj, endobj, stream, true, null, ...
	TokenInteger     // 42
	TokenReal        // -3.5
	TokenString      // (text)
	TokenHexString   // <4865>
	TokenName        // /Type
	TokenArrayStart  // [
	TokenArrayEnd    // ]
	TokenDictStart   // <<
	TokenDictEnd     // >>
	TokenIndirectRef // R
)

// Token is a single lexical unit together with its byte offset.
type Token struct {
	Type  TokenType
	Value []byte
	Pos   int64
}

// Lexer splits PDF syntax into tokens. It also gives the parser raw byte
// access for stream payloads.
type Lexer struct {
	r   *bufio.Reader
	pos int64
}

// NewLexer returns a lexer reading from r.
func NewLexer(r io.Reader) *Lexer {
	return &Lexer{r: bufio.NewReader(r)}
}

// Offset returns the number of bytes consumed so far.
func (l *Lexer) Offset() int64 { return l.pos }

// NextToken returns the next token. At end of input it returns a token of
// type TokenEOF and a nil error.
func (l *Lexer) NextToken() (*Token, error) {
	if err := l.skipWhitespace(); err != nil && err != io.EOF {
		return nil, err
	}

	b, err := l.peek()
	if err == io.EOF {
		return &Token{Type: TokenEOF, Pos: l.pos}, nil
	}
	if err != nil {
		return nil, err
	}

	start := l.pos
	switch {
	case b == '%':
		return l.readComment()
	case b == '[':
		l.readByte()
		return &Token{Type: TokenArrayStart, Value: []byte("["), Pos: start}, nil
	case b == ']':
		l.readByte()
		return &Token{Type: TokenArrayEnd, Value: []byte("]"), Pos: start}, nil
	case b == '(':
		return l.readString()
	case b == '<':
		if next, _ := l.r.Peek(2); len(next) == 2 && next[1] == '<' {
			l.skip(2)
			return &Token{Type: TokenDictStart, Value: []byte("<<"), Pos: start}, nil
		}
		return l.readHexString()
	case b == '>':
		if next, _ := l.r.Peek(2); len(next) == 2 && next[1] == '>' {
			l.skip(2)
			return &Token{Type: TokenDictEnd, Value: []byte(">>"), Pos: start}, nil
		}
		return nil, fmt.Errorf("unexpected '>' at offset %d", l.pos)
	case b == '/':
		return l.readName()
	case isDigit(b) || b == '-' || b == '+' || b == '.':
		return l.readNumber()
	case isAlpha(b):
		return l.readKeyword()
	}
	return nil, fmt.Errorf("unexpected character %q at offset %d", b, l.pos)
}

func (l *Lexer) readByte() (byte, error) {
	b, err := l.r.ReadByte()
	if err != nil {
		return 0, err
	}
	l.pos++
	return b, nil
}

func (l *Lexer) peek() (byte, error) {
	p, err := l.r.Peek(1)
	if err != nil {
		return 0, err
	}
	return p[0], nil
}

func (l *Lexer) skip(n int) {
	d, _ := l.r.Discard(n)
	l.pos += int64(d)
}

func (l *Lexer) skipWhitespace() error {
	for {
		b, err := l.peek()
		if err != nil {
			return err
		}
		if !isWhitespace(b) {
			return nil
		}
		l.skip(1)
	}
}

func (l *Lexer) readComment() (*Token, error) {
	start := l.pos
	var buf bytes.Buffer
	for {
		b, err := l.peek()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if b == '\r' || b == '\n' {
			l.skipEOL()
			break
		}
		l.skip(1)
		buf.WriteByte(b)
	}
	return &Token{Type: TokenComment, Value: buf.Bytes(), Pos: start}, nil
}

// skipEOL consumes one end-of-line marker: CR, LF or CR LF.
func (l *Lexer) skipEOL() {
	b, err := l.peek()
	if err != nil {
		return
	}
	switch b {
	case '\n':
		l.skip(1)
	case '\r':
		l.skip(1)
		if next, err := l.peek(); err == nil && next == '\n' {
			l.skip(1)
		}
	}
}

func (l *Lexer) readString() (*Token, error) {
	start := l.pos
	l.skip(1) // (
	var buf bytes.Buffer
	depth := 1
	for {
		b, err := l.readByte()
		if err != nil {
			return nil, fmt.Errorf("unterminated string starting at offset %d: %w", start, err)
		}
		switch b {
		case '(':
			depth++
			buf.WriteByte(b)
		case ')':
			depth--
			if depth == 0 {
				return &Token{Type: TokenString, Value: buf.Bytes(), Pos: start}, nil
			}
			buf.WriteByte(b)
		case '\\':
			if err := l.readEscape(&buf); err != nil {
				return nil, err
			}
		default:
			buf.WriteByte(b)
		}
	}
}

func (l *Lexer) readEscape(buf *bytes.Buffer) error {
	next, err := l.readByte()
	if err != nil {
		return err
	}
	switch next {
	case 'n':
		buf.WriteByte('\n')
	case 'r':
		buf.WriteByte('\r')
	case 't':
		buf.WriteByte('\t')
	case 'b':
		buf.WriteByte('\b')
	case 'f':
		buf.WriteByte('\f')
	case '\n':
	case '\r':
		if p, err := l.peek(); err == nil && p == '\n' {
			l.skip(1)
		}
	default:
		if !isOctalDigit(next) {
			buf.WriteByte(next)
			return nil
		}
		val := next - '0'
		for i := 0; i < 2; i++ {
			p, err := l.peek()
			if err != nil || !isOctalDigit(p) {
				break
			}
			l.skip(1)
			val = val*8 + (p - '0')
		}
		buf.WriteByte(val)
	}
	return nil
}

func (l *Lexer) readHexString() (*Token, error) {
	start := l.pos
	l.skip(1) // <
	var buf bytes.Buffer
	for {
		b, err := l.readByte()
		if err != nil {
			return nil, fmt.Errorf("unterminated hex string at offset %d: %w", start, err)
		}
		switch {
		case b == '>':
			return &Token{Type: TokenHexString, Value: buf.Bytes(), Pos: start}, nil
		case isWhitespace(b):
		case isHexDigit(b):
			buf.WriteByte(b)
		default:
			return nil, fmt.Errorf("invalid hex digit %q at offset %d", b, l.pos-1)
		}
	}
}

func (l *Lexer) readName() (*Token, error) {
	start := l.pos
	l.skip(1) // /
	var buf bytes.Buffer
	for {
		b, err := l.peek()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if isWhitespace(b) || isDelimiter(b) {
			break
		}
		l.skip(1)
		if b != '#' {
			buf.WriteByte(b)
			continue
		}
		hex, err := l.r.Peek(2)
		if err != nil || !isHexDigit(hex[0]) || !isHexDigit(hex[1]) {
			return nil, fmt.Errorf("invalid #-escape in name at offset %d", l.pos-1)
		}
		buf.WriteByte(hexValue(hex[0])<<4 | hexValue(hex[1]))
		l.skip(2)
	}
	return &Token{Type: TokenName, Value: buf.Bytes(), Pos: start}, nil
}

func (l *Lexer) readNumber() (*Token, error) {
	start := l.pos
	var buf bytes.Buffer
	isReal := false
scan:
	for {
		b, err := l.peek()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch {
		case b == '.' && !isReal:
			isReal = true
		case isDigit(b):
		case (b == '-' || b == '+') && buf.Len() == 0:
		default:
			break scan
		}
		l.skip(1)
		buf.WriteByte(b)
	}
	typ := TokenInteger
	if isReal {
		typ = TokenReal
	}
	return &Token{Type: typ, Value: buf.Bytes(), Pos: start}, nil
}

func (l *Lexer) readKeyword() (*Token, error) {
	start := l.pos
	var buf bytes.Buffer
	for {
		b, err := l.peek()
		if err != nil || !(isAlpha(b) || isDigit(b)) {
			break
		}
		l.skip(1)
		buf.WriteByte(b)
	}
	if buf.Len() == 1 && buf.Bytes()[0] == 'R' {
		return &Token{Type: TokenIndirectRef, Value: buf.Bytes(), Pos: start}, nil
	}
	return &Token{Type: TokenKeyword, Value: buf.Bytes(), Pos: start}, nil
}

// SkipStreamEOL consumes the end-of-line marker that follows the "stream"
// keyword. Stray spaces before the marker are tolerated.
func (l *Lexer) SkipStreamEOL() error {
	for {
		b, err := l.peek()
		if err != nil {
			return err
		}
		if b != ' ' && b != '\t' {
			break
		}
		l.skip(1)
	}
	l.skipEOL()
	return nil
}

// ReadBytes reads exactly n raw bytes.
func (l *Lexer) ReadBytes(n int) ([]byte, error) {
	data := make([]byte, n)
	got, err := io.ReadFull(l.r, data)
	l.pos += int64(got)
	if err != nil {
		return data[:got], fmt.Errorf("expected %d bytes, got %d: %w", n, got, err)
	}
	return data, nil
}

// Peek returns the next byte without consuming it.
func (l *Lexer) Peek() (byte, error) { return l.peek() }

// ReadByte consumes and returns one byte.
func (l *Lexer) ReadByte() (byte, error) { return l.readByte() }

func isWhitespace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f' || b == 0
}

func isDelimiter(b byte) bool {
	switch b {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isDigit(b byte) bool      { return b >= '0' && b <= '9' }
func isOctalDigit(b byte) bool { return b >= '0' && b <= '7' }
func isAlpha(b byte) bool      { return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') }

func isHexDigit(b byte) bool {
	return isDigit(b) || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

func hexValue(b byte) byte {
	switch {
	case isDigit(b):
		return b - '0'
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10
	}
	return 0
}
