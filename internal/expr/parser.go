package expr

import (
	"fmt"
	"strconv"
)

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokIdent
	tokOperator
	tokLeftParen
	tokRightParen
	tokEOF
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func tokenize(src string) ([]token, error) {
	var tokens []token
	pos := 0

	for pos < len(src) {
		c := src[pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n':
			pos++
		case isDigit(c) || (c == '.' && pos+1 < len(src) && isDigit(src[pos+1])):
			start := pos
			seenDot := false
			for pos < len(src) && (isDigit(src[pos]) || (src[pos] == '.' && !seenDot)) {
				if src[pos] == '.' {
					seenDot = true
				}
				pos++
			}
			tokens = append(tokens, token{kind: tokNumber, text: src[start:pos], pos: start})
		case isIdentStart(c):
			start := pos
			for pos < len(src) && (isIdentStart(src[pos]) || isDigit(src[pos])) {
				pos++
			}
			tokens = append(tokens, token{kind: tokIdent, text: src[start:pos], pos: start})
		case c == '+' || c == '-' || c == '*' || c == '/':
			tokens = append(tokens, token{kind: tokOperator, text: string(c), pos: pos})
			pos++
		case c == '(':
			tokens = append(tokens, token{kind: tokLeftParen, text: "(", pos: pos})
			pos++
		case c == ')':
			tokens = append(tokens, token{kind: tokRightParen, text: ")", pos: pos})
			pos++
		default:
			return nil, &EvalError{Pos: pos, Msg: fmt.Sprintf("unexpected character %q", c)}
		}
	}

	tokens = append(tokens, token{kind: tokEOF, pos: len(src)})
	return tokens, nil
}

// node is an expression AST node.
type node interface {
	eval(bindings map[string]Value) (Value, error)
}

type literalNode struct {
	value Value
}

func (n *literalNode) eval(map[string]Value) (Value, error) {
	return n.value, nil
}

type identNode struct {
	name string
	pos  int
}

func (n *identNode) eval(bindings map[string]Value) (Value, error) {
	v, ok := bindings[n.name]
	if !ok {
		return Value{}, &EvalError{Pos: n.pos, Msg: fmt.Sprintf("unknown identifier %q", n.name)}
	}
	return v, nil
}

type unaryNode struct {
	op      string
	operand node
	pos     int
}

func (n *unaryNode) eval(bindings map[string]Value) (Value, error) {
	v, err := n.operand.eval(bindings)
	if err != nil {
		return Value{}, err
	}
	f, ok := v.number()
	if !ok {
		return Value{}, &EvalError{Pos: n.pos, Msg: fmt.Sprintf("unary %s needs a number", n.op)}
	}
	if n.op == "-" {
		f = -f
	}
	return Number(f), nil
}

type binaryNode struct {
	left  node
	op    string
	right node
	pos   int
}

func (n *binaryNode) eval(bindings map[string]Value) (Value, error) {
	left, err := n.left.eval(bindings)
	if err != nil {
		return Value{}, err
	}
	right, err := n.right.eval(bindings)
	if err != nil {
		return Value{}, err
	}

	if n.op == "+" && (left.Kind == KindString || right.Kind == KindString) {
		return String(left.Format() + right.Format()), nil
	}

	l, lok := left.number()
	r, rok := right.number()
	if !lok || !rok {
		return Value{}, &EvalError{Pos: n.pos, Msg: fmt.Sprintf("operator %s needs numbers", n.op)}
	}

	switch n.op {
	case "+":
		return Number(l + r), nil
	case "-":
		return Number(l - r), nil
	case "*":
		return Number(l * r), nil
	case "/":
		if r == 0 {
			return Value{}, &EvalError{Pos: n.pos, Msg: "division by zero"}
		}
		return Number(l / r), nil
	default:
		return Value{}, &EvalError{Pos: n.pos, Msg: "unknown operator " + n.op}
	}
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) current() token {
	return p.tokens[p.pos]
}

func (p *parser) advance() {
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
}

func (p *parser) isOperator(ops ...string) bool {
	tok := p.current()
	if tok.kind != tokOperator {
		return false
	}
	for _, op := range ops {
		if tok.text == op {
			return true
		}
	}
	return false
}

// parseExpression parses addition and subtraction (lowest precedence)
func (p *parser) parseExpression() (node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}

	for p.isOperator("+", "-") {
		tok := p.current()
		p.advance()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{left: left, op: tok.text, right: right, pos: tok.pos}
	}

	return left, nil
}

// parseTerm parses multiplication and division
func (p *parser) parseTerm() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for p.isOperator("*", "/") {
		tok := p.current()
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{left: left, op: tok.text, right: right, pos: tok.pos}
	}

	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	if p.isOperator("-", "+") {
		tok := p.current()
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &unaryNode{op: tok.text, operand: operand, pos: tok.pos}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	tok := p.current()

	switch tok.kind {
	case tokNumber:
		p.advance()
		f, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return nil, &EvalError{Pos: tok.pos, Msg: "invalid number " + tok.text}
		}
		return &literalNode{value: Number(f)}, nil

	case tokIdent:
		p.advance()
		return &identNode{name: tok.text, pos: tok.pos}, nil

	case tokLeftParen:
		p.advance()
		inner, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if p.current().kind != tokRightParen {
			return nil, &EvalError{Pos: p.current().pos, Msg: "expected ')'"}
		}
		p.advance()
		return inner, nil

	case tokEOF:
		return nil, &EvalError{Pos: tok.pos, Msg: "unexpected end of expression"}

	default:
		return nil, &EvalError{Pos: tok.pos, Msg: fmt.Sprintf("unexpected %q", tok.text)}
	}
}
