package core

import (
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
)

// ReferenceResolver resolves indirect references. The parser needs one to
// read streams whose /Length is itself an indirect object.
type ReferenceResolver interface {
	ResolveReference(ref IndirectRef) (Object, error)
}

// Parser builds objects from the token stream of a Lexer, using two tokens
// of lookahead to recognise "num gen R" references.
type Parser struct {
	lexer    *Lexer
	cur      *Token
	peek     *Token
	resolver ReferenceResolver
	err      error
}

// NewParser returns a parser reading from r.
func NewParser(r io.Reader) *Parser {
	p := &Parser{lexer: NewLexer(r)}
	p.advance()
	p.advance()
	return p
}

// SetReferenceResolver installs the resolver used for indirect stream
// lengths.
func (p *Parser) SetReferenceResolver(resolver ReferenceResolver) {
	p.resolver = resolver
}

// advance shifts the lookahead window by one token. Once "stream" reaches
// the current slot nothing more is tokenized, since the bytes that follow
// are raw stream data.
func (p *Parser) advance() {
	p.cur = p.peek
	if p.isKeyword(p.cur, "stream") {
		p.peek = nil
		return
	}
	tok, err := p.lexer.NextToken()
	if err != nil {
		p.err = err
		tok = &Token{Type: TokenEOF, Pos: p.lexer.Offset()}
	}
	p.peek = tok
}

func (p *Parser) isKeyword(tok *Token, kw string) bool {
	return tok != nil && tok.Type == TokenKeyword && string(tok.Value) == kw
}

func (p *Parser) skipComments() {
	for p.cur != nil && p.cur.Type == TokenComment {
		p.advance()
	}
}

// ParseObject parses one direct object (which may be a reference).
func (p *Parser) ParseObject() (Object, error) {
	p.skipComments()
	if p.cur == nil {
		return nil, fmt.Errorf("unexpected end of input")
	}

	tok := p.cur
	switch tok.Type {
	case TokenEOF:
		if p.err != nil {
			return nil, p.err
		}
		return nil, io.EOF
	case TokenKeyword:
		var obj Object
		switch string(tok.Value) {
		case "null":
			obj = Null{}
		case "true":
			obj = Bool(true)
		case "false":
			obj = Bool(false)
		default:
			return nil, fmt.Errorf("unexpected keyword %q at offset %d", tok.Value, tok.Pos)
		}
		p.advance()
		return obj, nil
	case TokenInteger:
		return p.parseNumber()
	case TokenReal:
		v, err := strconv.ParseFloat(string(tok.Value), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid real %q: %w", tok.Value, err)
		}
		p.advance()
		return Real(v), nil
	case TokenString:
		p.advance()
		return String(tok.Value), nil
	case TokenHexString:
		digits := tok.Value
		if len(digits)%2 == 1 {
			digits = append(digits, '0')
		}
		raw := make([]byte, len(digits)/2)
		if _, err := hex.Decode(raw, digits); err != nil {
			return nil, fmt.Errorf("invalid hex string: %w", err)
		}
		p.advance()
		return String(raw), nil
	case TokenName:
		p.advance()
		return Name(tok.Value), nil
	case TokenArrayStart:
		return p.parseArray()
	case TokenDictStart:
		return p.parseDict()
	}
	return nil, fmt.Errorf("unexpected token %q at offset %d", tok.Value, tok.Pos)
}

func (p *Parser) parseNumber() (Object, error) {
	text := string(p.cur.Value)
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		// Out-of-range integers fall back to reals.
		f, ferr := strconv.ParseFloat(text, 64)
		if ferr != nil {
			return nil, fmt.Errorf("invalid number %q", text)
		}
		p.advance()
		return Real(f), nil
	}

	if p.peek == nil || p.peek.Type != TokenInteger {
		p.advance()
		return Int(n), nil
	}
	gen, err := strconv.ParseInt(string(p.peek.Value), 10, 64)
	if err != nil {
		p.advance()
		return Int(n), nil
	}
	// Step onto the generation number. If no R follows, the second integer
	// stays current and is parsed as the next object.
	p.advance()
	if p.peek != nil && p.peek.Type == TokenIndirectRef {
		p.advance()
		p.advance()
		return IndirectRef{Number: int(n), Generation: int(gen)}, nil
	}
	return Int(n), nil
}

func (p *Parser) parseArray() (Object, error) {
	p.advance() // [
	arr := Array{}
	for {
		p.skipComments()
		if p.cur == nil || p.cur.Type == TokenEOF {
			return nil, fmt.Errorf("unexpected end of input in array")
		}
		if p.cur.Type == TokenArrayEnd {
			p.advance()
			return arr, nil
		}
		obj, err := p.ParseObject()
		if err != nil {
			return nil, fmt.Errorf("array element %d: %w", len(arr), err)
		}
		arr = append(arr, obj)
	}
}

func (p *Parser) parseDict() (Object, error) {
	p.advance() // <<
	dict := Dict{}
	for {
		p.skipComments()
		if p.cur == nil || p.cur.Type == TokenEOF {
			return nil, fmt.Errorf("unexpected end of input in dictionary")
		}
		if p.cur.Type == TokenDictEnd {
			p.advance()
			return dict, nil
		}
		if p.cur.Type != TokenName {
			return nil, fmt.Errorf("dictionary key at offset %d is not a name", p.cur.Pos)
		}
		key := string(p.cur.Value)
		p.advance()
		value, err := p.ParseObject()
		if err != nil {
			return nil, fmt.Errorf("dictionary value for /%s: %w", key, err)
		}
		dict[key] = value
	}
}

func (p *Parser) expectInt(what string) (int, error) {
	if p.cur == nil || p.cur.Type != TokenInteger {
		return 0, fmt.Errorf("expected %s", what)
	}
	n, err := strconv.Atoi(string(p.cur.Value))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", what, err)
	}
	p.advance()
	return n, nil
}

// ParseIndirectObject parses "num gen obj ... endobj", including an
// optional stream body.
func (p *Parser) ParseIndirectObject() (*IndirectObject, error) {
	p.skipComments()
	num, err := p.expectInt("object number")
	if err != nil {
		return nil, err
	}
	gen, err := p.expectInt("generation number")
	if err != nil {
		return nil, err
	}
	if !p.isKeyword(p.cur, "obj") {
		return nil, fmt.Errorf("expected 'obj' after %d %d", num, gen)
	}
	p.advance()

	obj, err := p.ParseObject()
	if err != nil {
		return nil, fmt.Errorf("object %d: %w", num, err)
	}

	if p.isKeyword(p.cur, "stream") {
		dict, ok := obj.(Dict)
		if !ok {
			return nil, fmt.Errorf("object %d: stream keyword after %T", num, obj)
		}
		if obj, err = p.parseStream(dict); err != nil {
			return nil, fmt.Errorf("object %d: %w", num, err)
		}
	}

	// Tolerate a missing endobj.
	if p.isKeyword(p.cur, "endobj") {
		p.advance()
	}

	return &IndirectObject{
		Ref:    IndirectRef{Number: num, Generation: gen},
		Object: obj,
	}, nil
}

func (p *Parser) streamLength(dict Dict) (int, error) {
	switch v := dict.Get("Length").(type) {
	case Int:
		return int(v), nil
	case IndirectRef:
		if p.resolver == nil {
			return 0, fmt.Errorf("stream length %s needs a reference resolver", v)
		}
		resolved, err := p.resolver.ResolveReference(v)
		if err != nil {
			return 0, fmt.Errorf("resolve stream length: %w", err)
		}
		n, ok := resolved.(Int)
		if !ok {
			return 0, fmt.Errorf("stream length resolved to %T", resolved)
		}
		return int(n), nil
	case nil:
		return 0, fmt.Errorf("stream dictionary has no /Length")
	default:
		return 0, fmt.Errorf("invalid stream length type %T", v)
	}
}

func (p *Parser) parseStream(dict Dict) (*Stream, error) {
	length, err := p.streamLength(dict)
	if err != nil {
		return nil, err
	}
	if length < 0 {
		return nil, fmt.Errorf("negative stream length %d", length)
	}
	if err := p.lexer.SkipStreamEOL(); err != nil {
		return nil, fmt.Errorf("after stream keyword: %w", err)
	}
	data, err := p.lexer.ReadBytes(length)
	if err != nil {
		return nil, fmt.Errorf("read stream data: %w", err)
	}

	tok, err := p.lexer.NextToken()
	if err != nil {
		return nil, err
	}
	if !p.isKeyword(tok, "endstream") {
		return nil, fmt.Errorf("expected 'endstream' at offset %d, got %q", tok.Pos, tok.Value)
	}

	// Refill the lookahead window from the bytes after endstream.
	p.cur, p.peek = nil, nil
	p.advance()
	p.advance()

	return &Stream{Dict: dict, Data: data}, nil
}
