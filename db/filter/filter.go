// Package filter compiles client-supplied filter expressions into SQL
// predicates over an entity's named fields.
//
// The expression grammar is deliberately small and explicit:
//
//	expr       := andExpr { "or" andExpr }
//	andExpr    := primary { "and" primary }
//	primary    := "(" expr ")" | comparison
//	comparison := field op value
//	op         := "eq" | "ne" | "gt" | "lt"
//	value      := 'string' | "string" | number | "true" | "false"
//
// Keywords are case-insensitive. The input is tokenized before any operator
// is recognized, so operator words occurring inside quoted literals are left
// alone ("title eq 'greater than great'" filters on that exact string).
package filter

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// Op is a comparison operator applied to a single field.
type Op int

const (
	Eq Op = iota
	Ne
	Gt
	Lt
)

func (op Op) String() string {
	switch op {
	case Eq:
		return "="
	case Ne:
		return "!="
	case Gt:
		return ">"
	case Lt:
		return "<"
	default:
		return fmt.Sprintf("Op(%d)", int(op))
	}
}

// LogicOp combines two predicate subtrees.
type LogicOp int

const (
	And LogicOp = iota
	Or
)

func (op LogicOp) String() string {
	switch op {
	case And:
		return "AND"
	case Or:
		return "OR"
	default:
		return fmt.Sprintf("LogicOp(%d)", int(op))
	}
}

// Node is one node of a parsed filter expression. A Node is immutable once
// parsed and may be compiled against any field resolver.
type Node interface {
	// Fields returns the distinct field names referenced by the subtree, in
	// sorted order.
	Fields() []string

	// SQL renders the subtree as a parameterized SQL predicate. The resolve
	// function maps a field name to its column; returning false marks the
	// field unknown and fails the compilation.
	SQL(resolve func(field string) (string, bool)) (string, []any, error)
}

// Compare is a single field comparison.
type Compare struct {
	Field string
	Op    Op
	Value any
}

func (c Compare) Fields() []string {
	return []string{c.Field}
}

func (c Compare) SQL(resolve func(field string) (string, bool)) (string, []any, error) {
	col, ok := resolve(c.Field)
	if !ok {
		return "", nil, fmt.Errorf("unknown field %q", c.Field)
	}
	return col + " " + c.Op.String() + " ?", []any{c.Value}, nil
}

// Logic is two subtrees joined by and/or.
type Logic struct {
	Op    LogicOp
	Left  Node
	Right Node
}

func (l Logic) Fields() []string {
	seen := map[string]bool{}
	for _, f := range l.Left.Fields() {
		seen[f] = true
	}
	for _, f := range l.Right.Fields() {
		seen[f] = true
	}
	fields := make([]string, 0, len(seen))
	for f := range seen {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

func (l Logic) SQL(resolve func(field string) (string, bool)) (string, []any, error) {
	left, leftArgs, err := l.Left.SQL(resolve)
	if err != nil {
		return "", nil, err
	}
	right, rightArgs, err := l.Right.SQL(resolve)
	if err != nil {
		return "", nil, err
	}
	args := make([]any, 0, len(leftArgs)+len(rightArgs))
	args = append(args, leftArgs...)
	args = append(args, rightArgs...)
	return "(" + left + " " + l.Op.String() + " " + right + ")", args, nil
}

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokNumber
	tokString
	tokLParen
	tokRParen
	tokEOF
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

type lexer struct {
	input string
	pos   int
}

func (lx *lexer) next() (token, error) {
	for lx.pos < len(lx.input) && unicode.IsSpace(rune(lx.input[lx.pos])) {
		lx.pos++
	}
	if lx.pos >= len(lx.input) {
		return token{kind: tokEOF, pos: lx.pos}, nil
	}

	start := lx.pos
	ch := lx.input[lx.pos]

	switch {
	case ch == '(':
		lx.pos++
		return token{kind: tokLParen, text: "(", pos: start}, nil
	case ch == ')':
		lx.pos++
		return token{kind: tokRParen, text: ")", pos: start}, nil
	case ch == '\'' || ch == '"':
		quote := ch
		lx.pos++
		for lx.pos < len(lx.input) && lx.input[lx.pos] != quote {
			lx.pos++
		}
		if lx.pos >= len(lx.input) {
			return token{}, fmt.Errorf("unterminated string at position %d", start)
		}
		text := lx.input[start+1 : lx.pos]
		lx.pos++ // closing quote
		return token{kind: tokString, text: text, pos: start}, nil
	case ch >= '0' && ch <= '9' || ch == '-':
		lx.pos++
		for lx.pos < len(lx.input) && (lx.input[lx.pos] >= '0' && lx.input[lx.pos] <= '9' || lx.input[lx.pos] == '.') {
			lx.pos++
		}
		return token{kind: tokNumber, text: lx.input[start:lx.pos], pos: start}, nil
	case isIdentStart(ch):
		lx.pos++
		for lx.pos < len(lx.input) && isIdentPart(lx.input[lx.pos]) {
			lx.pos++
		}
		return token{kind: tokIdent, text: lx.input[start:lx.pos], pos: start}, nil
	default:
		return token{}, fmt.Errorf("unexpected character %q at position %d", ch, start)
	}
}

func isIdentStart(ch byte) bool {
	return ch == '_' || ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z'
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || ch >= '0' && ch <= '9'
}

type parser struct {
	lx  *lexer
	tok token
}

// Parse parses a filter expression into a Node. Malformed input is reported
// as an error describing the first offending token; callers are expected to
// surface it as a validation failure rather than letting it escape raw.
func Parse(input string) (Node, error) {
	p := &parser{lx: &lexer{input: input}}
	if err := p.advance(); err != nil {
		return nil, err
	}

	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, fmt.Errorf("unexpected %q at position %d", p.tok.text, p.tok.pos)
	}
	return node, nil
}

func (p *parser) advance() error {
	tok, err := p.lx.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) keyword() string {
	if p.tok.kind != tokIdent {
		return ""
	}
	return strings.ToLower(p.tok.text)
}

func (p *parser) parseOr() (Node, error) {
	node, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.keyword() == "or" {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		node = Logic{Op: Or, Left: node, Right: right}
	}
	return node, nil
}

func (p *parser) parseAnd() (Node, error) {
	node, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.keyword() == "and" {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		node = Logic{Op: And, Left: node, Right: right}
	}
	return node, nil
}

func (p *parser) parsePrimary() (Node, error) {
	if p.tok.kind == tokLParen {
		if err := p.advance(); err != nil {
			return nil, err
		}
		node, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.tok.kind != tokRParen {
			return nil, fmt.Errorf("missing closing parenthesis at position %d", p.tok.pos)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return node, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (Node, error) {
	if p.tok.kind != tokIdent {
		return nil, fmt.Errorf("expected field name at position %d", p.tok.pos)
	}
	field := strings.ToLower(p.tok.text)
	if field == "and" || field == "or" || field == "eq" || field == "ne" || field == "gt" || field == "lt" {
		return nil, fmt.Errorf("unexpected keyword %q at position %d", p.tok.text, p.tok.pos)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}

	var op Op
	switch p.keyword() {
	case "eq":
		op = Eq
	case "ne":
		op = Ne
	case "gt":
		op = Gt
	case "lt":
		op = Lt
	default:
		return nil, fmt.Errorf("expected comparison operator at position %d", p.tok.pos)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}

	value, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	return Compare{Field: field, Op: op, Value: value}, nil
}

func (p *parser) parseValue() (any, error) {
	tok := p.tok
	switch tok.kind {
	case tokString:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return tok.text, nil
	case tokNumber:
		if err := p.advance(); err != nil {
			return nil, err
		}
		if strings.Contains(tok.text, ".") {
			f, err := strconv.ParseFloat(tok.text, 64)
			if err != nil {
				return nil, fmt.Errorf("bad number %q at position %d", tok.text, tok.pos)
			}
			return f, nil
		}
		n, err := strconv.ParseInt(tok.text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q at position %d", tok.text, tok.pos)
		}
		return n, nil
	case tokIdent:
		switch strings.ToLower(tok.text) {
		case "true":
			if err := p.advance(); err != nil {
				return nil, err
			}
			return true, nil
		case "false":
			if err := p.advance(); err != nil {
				return nil, err
			}
			return false, nil
		}
	}
	return nil, fmt.Errorf("expected value at position %d", tok.pos)
}
