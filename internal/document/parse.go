package document

import (
	"fmt"
	"strings"
)

const maxDepth = 256

// Parse reads document text. Quoted strings run to the next double quote;
// commas, colons and brackets inside them are literal. There is no escape
// syntax: a backslash is an ordinary character. Unquoted scalars such as
// 2, 120.5 or true become string leaves holding their literal text.
func Parse(text string) (*Node, error) {
	p := &parser{src: text}
	p.skipSpace()
	if p.eof() {
		return nil, p.errorf("empty document")
	}
	n, err := p.value(0)
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.eof() {
		return nil, p.errorf("unexpected %q after document", p.peek())
	}
	return n, nil
}

type parser struct {
	src string
	pos int
}

func (p *parser) eof() bool  { return p.pos >= len(p.src) }
func (p *parser) peek() byte { return p.src[p.pos] }

func (p *parser) errorf(format string, args ...any) error {
	return &ParseError{Offset: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) skipSpace() {
	for !p.eof() {
		switch p.peek() {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) value(depth int) (*Node, error) {
	if depth > maxDepth {
		return nil, p.errorf("nesting deeper than %d", maxDepth)
	}
	p.skipSpace()
	if p.eof() {
		return nil, p.errorf("unexpected end of input")
	}
	switch c := p.peek(); c {
	case '{':
		return p.object(depth)
	case '[':
		return p.array(depth)
	case '"':
		s, err := p.quoted()
		if err != nil {
			return nil, err
		}
		return String(s), nil
	default:
		s, err := p.bare()
		if err != nil {
			return nil, err
		}
		return String(s), nil
	}
}

func (p *parser) object(depth int) (*Node, error) {
	p.pos++ // '{'
	obj := NewObject()
	p.skipSpace()
	if !p.eof() && p.peek() == '}' {
		p.pos++
		return obj, nil
	}
	for {
		p.skipSpace()
		if p.eof() {
			return nil, p.errorf("unterminated object")
		}
		var key string
		var err error
		if p.peek() == '"' {
			key, err = p.quoted()
		} else {
			key, err = p.bare()
		}
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.eof() || p.peek() != ':' {
			return nil, p.errorf("expected ':' after key %q", key)
		}
		p.pos++
		v, err := p.value(depth + 1)
		if err != nil {
			return nil, err
		}
		obj.Set(key, v)

		p.skipSpace()
		if p.eof() {
			return nil, p.errorf("unterminated object")
		}
		switch p.peek() {
		case ',':
			p.pos++
		case '}':
			p.pos++
			return obj, nil
		default:
			return nil, p.errorf("expected ',' or '}' in object, found %q", p.peek())
		}
	}
}

func (p *parser) array(depth int) (*Node, error) {
	p.pos++ // '['
	arr := NewArray()
	p.skipSpace()
	if !p.eof() && p.peek() == ']' {
		p.pos++
		return arr, nil
	}
	for {
		v, err := p.value(depth + 1)
		if err != nil {
			return nil, err
		}
		arr.Append(v)

		p.skipSpace()
		if p.eof() {
			return nil, p.errorf("unterminated array")
		}
		switch p.peek() {
		case ',':
			p.pos++
		case ']':
			p.pos++
			return arr, nil
		default:
			return nil, p.errorf("expected ',' or ']' in array, found %q", p.peek())
		}
	}
}

func (p *parser) quoted() (string, error) {
	start := p.pos
	p.pos++ // opening quote
	end := strings.IndexByte(p.src[p.pos:], '"')
	if end < 0 {
		p.pos = start
		return "", p.errorf("unterminated string")
	}
	s := p.src[p.pos : p.pos+end]
	p.pos += end + 1
	return s, nil
}

func (p *parser) bare() (string, error) {
	start := p.pos
	for !p.eof() && !isDelimiter(p.peek()) {
		p.pos++
	}
	if p.pos == start {
		return "", p.errorf("unexpected %q", p.peek())
	}
	return p.src[start:p.pos], nil
}

func isDelimiter(c byte) bool {
	switch c {
	case ',', ':', '{', '}', '[', ']', '"', ' ', '\t', '\n', '\r':
		return true
	}
	return false
}
