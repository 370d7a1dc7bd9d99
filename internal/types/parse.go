package types

import (
	"fmt"
	"strings"
)

// ParseTypeTag parses the canonical textual form produced by TypeTag.String.
func ParseTypeTag(s string) (TypeTag, error) {
	p := tagParser{src: s}
	if err := p.lex(); err != nil {
		return Invalid, err
	}
	tt, err := p.parseType()
	if err != nil {
		return Invalid, err
	}
	if !p.atEOF() {
		return Invalid, p.errorf("unexpected %q after type", p.peek())
	}
	return tt, nil
}

// ParseStructTag parses 0x1::module::Name<args...>.
func ParseStructTag(s string) (StructTag, error) {
	tt, err := ParseTypeTag(s)
	if err != nil {
		return StructTag{}, err
	}
	if tt.Kind != KindStruct {
		return StructTag{}, fmt.Errorf("type tag %q: expected a struct, got %s", s, tt.Kind)
	}
	return *tt.Struct, nil
}

var primitiveKinds = map[string]Kind{
	"bool":    KindBool,
	"u8":      KindU8,
	"u16":     KindU16,
	"u32":     KindU32,
	"u64":     KindU64,
	"u128":    KindU128,
	"u256":    KindU256,
	"address": KindAddress,
	"signer":  KindSigner,
}

type tagParser struct {
	src  string
	toks []string
	pos  int
}

// lex splits the input into words and the punctuation "::", "<", ">", ",".
func (p *tagParser) lex() error {
	s := p.src
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n':
			i++
		case c == '<' || c == '>' || c == ',':
			p.toks = append(p.toks, s[i:i+1])
			i++
		case c == ':':
			if i+1 >= len(s) || s[i+1] != ':' {
				return fmt.Errorf("type tag %q: stray ':' at offset %d", s, i)
			}
			p.toks = append(p.toks, "::")
			i += 2
		case isIdentRest(c):
			j := i
			for j < len(s) && isIdentRest(s[j]) {
				j++
			}
			p.toks = append(p.toks, s[i:j])
			i = j
		default:
			return fmt.Errorf("type tag %q: unexpected character %q at offset %d", s, c, i)
		}
	}
	return nil
}

func (p *tagParser) atEOF() bool { return p.pos >= len(p.toks) }

func (p *tagParser) peek() string {
	if p.atEOF() {
		return ""
	}
	return p.toks[p.pos]
}

func (p *tagParser) next() string {
	tok := p.peek()
	if !p.atEOF() {
		p.pos++
	}
	return tok
}

func (p *tagParser) expect(tok string) error {
	if got := p.next(); got != tok {
		if got == "" {
			return p.errorf("expected %q, got end of input", tok)
		}
		return p.errorf("expected %q, got %q", tok, got)
	}
	return nil
}

func (p *tagParser) errorf(format string, args ...any) error {
	return fmt.Errorf("type tag %q: %s", p.src, fmt.Sprintf(format, args...))
}

func (p *tagParser) parseType() (TypeTag, error) {
	tok := p.next()
	if tok == "" {
		return Invalid, p.errorf("unexpected end of input")
	}
	if kind, ok := primitiveKinds[tok]; ok {
		return TypeTag{Kind: kind}, nil
	}
	if tok == "vector" {
		if err := p.expect("<"); err != nil {
			return Invalid, err
		}
		elem, err := p.parseType()
		if err != nil {
			return Invalid, err
		}
		if err := p.expect(">"); err != nil {
			return Invalid, err
		}
		return MakeVector(elem), nil
	}
	if strings.HasPrefix(tok, "0x") {
		st, err := p.parseStruct(tok)
		if err != nil {
			return Invalid, err
		}
		return MakeStruct(st), nil
	}
	return Invalid, p.errorf("unknown type %q", tok)
}

func (p *tagParser) parseStruct(addrTok string) (StructTag, error) {
	addr, err := ParseAddress(addrTok)
	if err != nil {
		return StructTag{}, err
	}
	if err := p.expect("::"); err != nil {
		return StructTag{}, err
	}
	module, err := NewIdentifier(p.next())
	if err != nil {
		return StructTag{}, p.errorf("module name: %v", err)
	}
	if err := p.expect("::"); err != nil {
		return StructTag{}, err
	}
	name, err := NewIdentifier(p.next())
	if err != nil {
		return StructTag{}, p.errorf("struct name: %v", err)
	}
	st := StructTag{Address: addr, Module: module, Name: name}
	if p.peek() != "<" {
		return st, nil
	}
	p.next()
	for {
		arg, err := p.parseType()
		if err != nil {
			return StructTag{}, err
		}
		st.TypeArgs = append(st.TypeArgs, arg)
		switch p.next() {
		case ",":
			continue
		case ">":
			return st, nil
		default:
			return StructTag{}, p.errorf("unterminated type argument list")
		}
	}
}
