package inspect

import (
	"fmt"
	"strconv"
	"strings"
)

type exprOp uint8

const (
	opIdent exprOp = iota
	opMember
	opArrow
	opIndex
	opDeref
)

// expr is a parsed watch expression.
type expr struct {
	op    exprOp
	name  string // identifier or member name
	index int64
	x     *expr
	pos   int
}

// String prints the expression in canonical form.
func (e *expr) String() string {
	switch e.op {
	case opIdent:
		return e.name
	case opMember:
		return e.x.operand() + "." + e.name
	case opArrow:
		return e.x.operand() + "->" + e.name
	case opIndex:
		return e.x.operand() + "[" + strconv.FormatInt(e.index, 10) + "]"
	case opDeref:
		return "*" + e.x.String()
	}
	return "?"
}

// operand prints e as the operand of a postfix operator.
func (e *expr) operand() string {
	if e.op == opDeref {
		return "(" + e.String() + ")"
	}
	return e.String()
}

type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokIdent
	tokInt
	tokPunct
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// lex splits an expression into identifiers (with "::" qualification),
// integers and the punctuation . -> [ ] * ( ).
func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case isIdentStart(c):
			start := i
			for i < len(src) {
				if isIdentPart(src[i]) {
					i++
					continue
				}
				if strings.HasPrefix(src[i:], "::") && i+2 < len(src) && isIdentStart(src[i+2]) {
					i += 2
					continue
				}
				break
			}
			toks = append(toks, token{kind: tokIdent, text: src[start:i], pos: start})
		case c >= '0' && c <= '9':
			start := i
			for i < len(src) && (isIdentPart(src[i])) {
				i++
			}
			toks = append(toks, token{kind: tokInt, text: src[start:i], pos: start})
		case strings.HasPrefix(src[i:], "->"):
			toks = append(toks, token{kind: tokPunct, text: "->", pos: i})
			i += 2
		case strings.IndexByte(".[]*()", c) >= 0:
			toks = append(toks, token{kind: tokPunct, text: string(c), pos: i})
			i++
		default:
			return nil, &ExprError{Expr: src, Pos: i, Msg: "unexpected character " + strconv.QuoteRune(rune(c))}
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: len(src)})
	return toks, nil
}

func isIdentStart(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9'
}

type parser struct {
	src  string
	toks []token
	pos  int
}

// parseExpr parses a watch expression.
func parseExpr(src string) (*expr, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, toks: toks}
	e, err := p.unary()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.errorf(t, "unexpected %q", t.text)
	}
	return e, nil
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(t token, msg string, args ...any) error {
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	return &ExprError{Expr: p.src, Pos: t.pos, Msg: msg}
}

func (p *parser) punct(text string) bool {
	t := p.peek()
	if t.kind == tokPunct && t.text == text {
		p.pos++
		return true
	}
	return false
}

func (p *parser) unary() (*expr, error) {
	if t := p.peek(); p.punct("*") {
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &expr{op: opDeref, x: x, pos: t.pos}, nil
	}
	return p.postfix()
}

func (p *parser) postfix() (*expr, error) {
	x, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		switch {
		case p.punct("."), p.punct("->"):
			op := opMember
			if t.text == "->" {
				op = opArrow
			}
			name := p.next()
			if name.kind != tokIdent || strings.Contains(name.text, "::") {
				return nil, p.errorf(name, "expected member name after %q", t.text)
			}
			x = &expr{op: op, name: name.text, x: x, pos: t.pos}
		case p.punct("["):
			idx := p.next()
			if idx.kind != tokInt {
				return nil, p.errorf(idx, "expected integer index")
			}
			n, err := strconv.ParseInt(idx.text, 0, 64)
			if err != nil {
				return nil, p.errorf(idx, "bad index %q", idx.text)
			}
			if !p.punct("]") {
				return nil, p.errorf(p.peek(), "expected \"]\"")
			}
			x = &expr{op: opIndex, index: n, x: x, pos: t.pos}
		default:
			return x, nil
		}
	}
}

func (p *parser) primary() (*expr, error) {
	t := p.next()
	switch {
	case t.kind == tokIdent:
		return &expr{op: opIdent, name: t.text, pos: t.pos}, nil
	case t.kind == tokPunct && t.text == "(":
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		if !p.punct(")") {
			return nil, p.errorf(p.peek(), "expected \")\"")
		}
		return x, nil
	case t.kind == tokEOF:
		return nil, p.errorf(t, "unexpected end of expression")
	default:
		return nil, p.errorf(t, "unexpected %q", t.text)
	}
}
