package contentstream

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/tsawler/pdfshrink/core"
)

// Operation is one operator together with the operands that precede it.
type Operation struct {
	Operator string        // e.g. "cm", "Do", "q"
	Operands []core.Object // in stream order

	// Data holds the raw sample bytes of an inline image (operator "BI").
	// Operands then contain the image dictionary.
	Data []byte
}

// Parser splits a content stream into operations.
type Parser struct {
	data     []byte
	pos      int
	operands []core.Object
}

// NewParser creates a new content stream parser for the given data.
func NewParser(data []byte) *Parser {
	return &Parser{data: data}
}

// Parse returns every operation in order. Operands left over at the end of
// the stream are dropped.
func (p *Parser) Parse() ([]Operation, error) {
	var ops []Operation
	for {
		op, err := p.Next()
		if err != nil {
			return nil, err
		}
		if op == nil {
			return ops, nil
		}
		ops = append(ops, *op)
	}
}

// Next returns the next operation, or nil at the end of the stream.
func (p *Parser) Next() (*Operation, error) {
	for {
		p.skipWhitespaceAndComments()
		if p.pos >= len(p.data) {
			return nil, nil
		}

		start := p.pos
		c := p.data[p.pos]
		if isRegular(c) && !isNumberStart(c) {
			word := p.readWord()
			switch word {
			case "true":
				p.operands = append(p.operands, core.Bool(true))
				continue
			case "false":
				p.operands = append(p.operands, core.Bool(false))
				continue
			case "null":
				p.operands = append(p.operands, core.Null{})
				continue
			case "BI":
				p.operands = nil
				return p.parseInlineImage(start)
			}
			op := &Operation{Operator: word, Operands: p.operands}
			p.operands = nil
			return op, nil
		}

		if c == '{' || c == '}' {
			// PostScript calculator braces carry no meaning here.
			p.pos++
			continue
		}

		operand, err := p.parseOperand()
		if err != nil {
			return nil, fmt.Errorf("at position %d: %w", start, err)
		}
		p.operands = append(p.operands, operand)
	}
}

// readWord reads a run of regular characters.
func (p *Parser) readWord() string {
	start := p.pos
	for p.pos < len(p.data) && isRegular(p.data[p.pos]) {
		p.pos++
	}
	return string(p.data[start:p.pos])
}

// parseInlineImage reads "BI <key value>... ID <data> EI" as one operation.
func (p *Parser) parseInlineImage(start int) (*Operation, error) {
	dict := core.Dict{}
	for {
		p.skipWhitespaceAndComments()
		if p.pos >= len(p.data) {
			return nil, fmt.Errorf("inline image at %d: missing ID", start)
		}
		if p.data[p.pos] != '/' {
			word := p.readWord()
			if word == "ID" {
				break
			}
			return nil, fmt.Errorf("inline image at %d: unexpected %q", start, word)
		}
		key, err := p.parseName()
		if err != nil {
			return nil, err
		}
		value, err := p.parseOperand()
		if err != nil {
			return nil, fmt.Errorf("inline image at %d: %w", start, err)
		}
		dict[string(key.(core.Name))] = value
	}

	// A single whitespace byte separates ID from the data.
	if p.pos < len(p.data) && isWhitespace(p.data[p.pos]) {
		p.pos++
	}
	dataStart := p.pos
	for i := dataStart; i+1 < len(p.data); i++ {
		if p.data[i] != 'E' || p.data[i+1] != 'I' {
			continue
		}
		if i > dataStart && !isWhitespace(p.data[i-1]) {
			continue
		}
		if i+2 < len(p.data) && !isWhitespace(p.data[i+2]) && !isDelimiter(p.data[i+2]) {
			continue
		}
		end := i
		if end > dataStart && isWhitespace(p.data[end-1]) {
			end--
		}
		p.pos = i + 2
		return &Operation{
			Operator: "BI",
			Operands: []core.Object{dict},
			Data:     p.data[dataStart:end],
		}, nil
	}
	return nil, fmt.Errorf("inline image at %d: missing EI", start)
}

// parseOperand parses a number, string, name, array or dictionary.
func (p *Parser) parseOperand() (core.Object, error) {
	p.skipWhitespaceAndComments()
	if p.pos >= len(p.data) {
		return nil, fmt.Errorf("unexpected end of stream")
	}

	c := p.data[p.pos]
	switch {
	case isNumberStart(c):
		return p.parseNumber()
	case c == '(':
		return p.parseString()
	case c == '<' && p.pos+1 < len(p.data) && p.data[p.pos+1] == '<':
		return p.parseDict()
	case c == '<':
		return p.parseHexString()
	case c == '/':
		return p.parseName()
	case c == '[':
		return p.parseArray()
	case isRegular(c):
		switch word := p.readWord(); word {
		case "true":
			return core.Bool(true), nil
		case "false":
			return core.Bool(false), nil
		case "null":
			return core.Null{}, nil
		default:
			return nil, fmt.Errorf("operator %q inside a composite operand", word)
		}
	}
	return nil, fmt.Errorf("unexpected character %q", c)
}

func (p *Parser) parseNumber() (core.Object, error) {
	start := p.pos
	hasDecimal := false
	if p.data[p.pos] == '+' || p.data[p.pos] == '-' {
		p.pos++
	}
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		if c >= '0' && c <= '9' {
			p.pos++
		} else if c == '.' && !hasDecimal {
			hasDecimal = true
			p.pos++
		} else {
			break
		}
	}

	text := string(p.data[start:p.pos])
	if !hasDecimal {
		if v, err := strconv.ParseInt(text, 10, 64); err == nil {
			return core.Int(v), nil
		}
	}
	switch text {
	case "-", "+", ".", "-.", "+.":
		// Some producers write a lone sign for zero.
		return core.Real(0), nil
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q: %w", text, err)
	}
	return core.Real(v), nil
}

// parseString parses a literal string (...) with escape sequence handling.
func (p *Parser) parseString() (core.Object, error) {
	p.pos++ // (
	var result bytes.Buffer
	depth := 1
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		p.pos++
		switch c {
		case '\\':
			if p.pos >= len(p.data) {
				return nil, fmt.Errorf("unclosed string")
			}
			p.readEscape(&result)
		case '(':
			depth++
			result.WriteByte(c)
		case ')':
			depth--
			if depth == 0 {
				return core.String(result.String()), nil
			}
			result.WriteByte(c)
		default:
			result.WriteByte(c)
		}
	}
	return nil, fmt.Errorf("unclosed string")
}

func (p *Parser) readEscape(result *bytes.Buffer) {
	next := p.data[p.pos]
	p.pos++
	switch next {
	case 'n':
		result.WriteByte('\n')
	case 'r':
		result.WriteByte('\r')
	case 't':
		result.WriteByte('\t')
	case 'b':
		result.WriteByte('\b')
	case 'f':
		result.WriteByte('\f')
	case '\r':
		if p.pos < len(p.data) && p.data[p.pos] == '\n' {
			p.pos++
		}
	case '\n':
	case '0', '1', '2', '3', '4', '5', '6', '7':
		v := int(next - '0')
		for i := 0; i < 2 && p.pos < len(p.data); i++ {
			d := p.data[p.pos]
			if d < '0' || d > '7' {
				break
			}
			v = v*8 + int(d-'0')
			p.pos++
		}
		result.WriteByte(byte(v))
	default:
		// includes \( \) \\ and unknown escapes
		result.WriteByte(next)
	}
}

// parseHexString parses <...>; an odd final digit is padded with 0.
func (p *Parser) parseHexString() (core.Object, error) {
	p.pos++ // <
	var digits []byte
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		p.pos++
		switch {
		case c == '>':
			if len(digits)%2 == 1 {
				digits = append(digits, '0')
			}
			out := make([]byte, len(digits)/2)
			for i := range out {
				out[i] = hexValue(digits[2*i])<<4 | hexValue(digits[2*i+1])
			}
			return core.String(out), nil
		case isWhitespace(c):
		case isHexDigit(c):
			digits = append(digits, c)
		default:
			return nil, fmt.Errorf("invalid hex digit %q", c)
		}
	}
	return nil, fmt.Errorf("unclosed hex string")
}

// parseName parses /Name with #xx escapes.
func (p *Parser) parseName() (core.Object, error) {
	p.pos++ // /
	var result bytes.Buffer
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		if !isRegular(c) {
			break
		}
		if c == '#' && p.pos+2 < len(p.data) && isHexDigit(p.data[p.pos+1]) && isHexDigit(p.data[p.pos+2]) {
			result.WriteByte(hexValue(p.data[p.pos+1])<<4 | hexValue(p.data[p.pos+2]))
			p.pos += 3
			continue
		}
		result.WriteByte(c)
		p.pos++
	}
	return core.Name(result.String()), nil
}

func (p *Parser) parseArray() (core.Object, error) {
	p.pos++ // [
	arr := core.Array{}
	for {
		p.skipWhitespaceAndComments()
		if p.pos >= len(p.data) {
			return nil, fmt.Errorf("unclosed array")
		}
		if p.data[p.pos] == ']' {
			p.pos++
			return arr, nil
		}
		obj, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		arr = append(arr, obj)
	}
}

func (p *Parser) parseDict() (core.Object, error) {
	p.pos += 2 // <<
	dict := core.Dict{}
	for {
		p.skipWhitespaceAndComments()
		if p.pos >= len(p.data) {
			return nil, fmt.Errorf("unclosed dictionary")
		}
		if p.data[p.pos] == '>' {
			if p.pos+1 < len(p.data) && p.data[p.pos+1] == '>' {
				p.pos += 2
				return dict, nil
			}
			return nil, fmt.Errorf("unexpected '>' in dictionary")
		}
		if p.data[p.pos] != '/' {
			return nil, fmt.Errorf("dictionary key must be a name")
		}
		key, err := p.parseName()
		if err != nil {
			return nil, err
		}
		value, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		dict[string(key.(core.Name))] = value
	}
}

func (p *Parser) skipWhitespaceAndComments() {
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		switch {
		case isWhitespace(c):
			p.pos++
		case c == '%':
			for p.pos < len(p.data) && p.data[p.pos] != '\n' && p.data[p.pos] != '\r' {
				p.pos++
			}
		default:
			return
		}
	}
}

func isWhitespace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '\f' || c == 0
}

func isDelimiter(c byte) bool {
	return c == '(' || c == ')' || c == '<' || c == '>' ||
		c == '[' || c == ']' || c == '{' || c == '}' ||
		c == '/' || c == '%'
}

// isRegular reports whether c can be part of an operator or name.
func isRegular(c byte) bool {
	return !isWhitespace(c) && !isDelimiter(c)
}

func isNumberStart(c byte) bool {
	return c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9')
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func hexValue(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	}
	return 0
}
