package cond

import (
	"fmt"
	"strconv"

	"github.com/petal-labs/petalplan/tree"
)

// comparisonOps maps comparison keywords to expression operators. Both "="
// and "==" are accepted on input; the canonical printed form is "=".
var comparisonOps = map[string]tree.Op{
	">=": tree.OpGE,
	">":  tree.OpGT,
	"<=": tree.OpLE,
	"<":  tree.OpLT,
	"=":  tree.OpEQ,
	"==": tree.OpEQ,
}

var arithOps = map[string]tree.Op{
	"*": tree.OpMul,
	"/": tree.OpDiv,
	"+": tree.OpAdd,
}

var modifierOps = map[string]tree.Op{
	"assign":     tree.OpAssign,
	"increase":   tree.OpIncrease,
	"decrease":   tree.OpDecrease,
	"scale-up":   tree.OpScaleUp,
	"scale-down": tree.OpScaleDown,
}

// Parse parses condition text into a Condition. The scope supplies the
// enclosing variable bindings (an action's parameters, typically); pass nil
// for a closed condition. The empty body "()" parses as a nil Condition,
// which is not an error.
func Parse(input string, scope *Scope) (Condition, error) {
	if scope == nil {
		scope = NewScope()
	}
	tokens, err := Lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	c, err := p.parseCondition(scope)
	if err != nil {
		return nil, err
	}
	if p.current().Kind != TokenEOF {
		return nil, fmt.Errorf("unexpected token %s at position %d", p.current().Kind, p.current().Pos)
	}
	return c, nil
}

type parser struct {
	tokens []Token
	pos    int
}

func (p *parser) current() Token {
	if p.pos >= len(p.tokens) {
		return Token{Kind: TokenEOF}
	}
	return p.tokens[p.pos]
}

func (p *parser) peek() Token {
	if p.pos+1 >= len(p.tokens) {
		return Token{Kind: TokenEOF}
	}
	return p.tokens[p.pos+1]
}

func (p *parser) advance() Token {
	tok := p.current()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *parser) expect(kind TokenKind) (Token, error) {
	tok := p.current()
	if tok.Kind != kind {
		return tok, fmt.Errorf("expected %s but got %s at position %d", kind, tok.Kind, tok.Pos)
	}
	p.advance()
	return tok, nil
}

// parseCondition is the condition factory: it consumes one parenthesized
// condition, dispatching on the keyword after the opening parenthesis to
// the matching variant. "()" yields a nil Condition.
func (p *parser) parseCondition(scope *Scope) (Condition, error) {
	if _, err := p.expect(TokenLParen); err != nil {
		return nil, err
	}
	if p.current().Kind == TokenRParen {
		p.advance()
		return nil, nil
	}

	tok := p.current()
	if tok.Kind == TokenDash {
		p.advance()
		return p.parseExprTail(scope, tree.OpSub)
	}
	if tok.Kind != TokenSymbol {
		return nil, fmt.Errorf("expected condition keyword but got %s at position %d", tok.Kind, tok.Pos)
	}

	switch tok.Value {
	case "and":
		p.advance()
		conds, err := p.parseConditionList(scope)
		if err != nil {
			return nil, err
		}
		return &And{Conds: conds}, nil

	case "or":
		p.advance()
		conds, err := p.parseConditionList(scope)
		if err != nil {
			return nil, err
		}
		return &Or{Conds: conds}, nil

	case "not":
		p.advance()
		sub, err := p.parseCondition(scope)
		if err != nil {
			return nil, err
		}
		if sub == nil {
			return nil, fmt.Errorf("not requires a condition at position %d", tok.Pos)
		}
		if _, err := p.expect(TokenRParen); err != nil {
			return nil, err
		}
		return &Not{Cond: sub}, nil

	case "exists":
		p.advance()
		return p.parseExists(scope)
	}

	if op, ok := comparisonOps[tok.Value]; ok {
		p.advance()
		return p.parseExprTail(scope, op)
	}
	if op, ok := arithOps[tok.Value]; ok {
		p.advance()
		return p.parseExprTail(scope, op)
	}
	if op, ok := modifierOps[tok.Value]; ok {
		p.advance()
		return p.parseModifierTail(scope, op)
	}

	// Anything else is a predicate application.
	p.advance()
	args, err := p.parseTerms(scope)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenRParen); err != nil {
		return nil, err
	}
	return &Atom{Name: tok.Value, Args: args}, nil
}

// parseConditionList consumes conditions until the closing parenthesis of
// the enclosing connective. Empty sub-conditions are dropped.
func (p *parser) parseConditionList(scope *Scope) ([]Condition, error) {
	var conds []Condition
	for p.current().Kind != TokenRParen {
		if p.current().Kind == TokenEOF {
			return nil, fmt.Errorf("missing closing parenthesis at position %d", p.current().Pos)
		}
		sub, err := p.parseCondition(scope)
		if err != nil {
			return nil, err
		}
		if sub != nil {
			conds = append(conds, sub)
		}
	}
	p.advance()
	return conds, nil
}

func (p *parser) parseExprTail(scope *Scope, op tree.Op) (Condition, error) {
	left, err := p.parseOperand(scope)
	if err != nil {
		return nil, err
	}
	right, err := p.parseOperand(scope)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenRParen); err != nil {
		return nil, err
	}
	return &Expr{Op: op, Left: left, Right: right}, nil
}

func (p *parser) parseModifierTail(scope *Scope, op tree.Op) (Condition, error) {
	left, err := p.parseOperand(scope)
	if err != nil {
		return nil, err
	}
	ref, ok := left.(*FuncRef)
	if !ok {
		return nil, fmt.Errorf("%s requires a function reference as first operand", op)
	}
	operand, err := p.parseOperand(scope)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenRParen); err != nil {
		return nil, err
	}
	return &Modifier{Op: op, Ref: ref, Operand: operand}, nil
}

// parseOperand consumes one numeric or symbolic expression operand: a
// literal, a variable, an object name, a function reference, or a nested
// arithmetic expression.
func (p *parser) parseOperand(scope *Scope) (Condition, error) {
	tok := p.current()
	switch tok.Kind {
	case TokenNumber:
		p.advance()
		val, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q at position %d", tok.Value, tok.Pos)
		}
		return &NumberLit{Value: val}, nil

	case TokenVariable:
		p.advance()
		slot, ok := scope.Lookup(tok.Value)
		if !ok {
			return nil, fmt.Errorf("unbound variable %q at position %d", tok.Value, tok.Pos)
		}
		return &ParamRef{Term: Term{Name: tok.Value, Slot: slot}}, nil

	case TokenSymbol:
		p.advance()
		return &ConstRef{Name: tok.Value}, nil

	case TokenLParen:
		next := p.peek()
		if next.Kind == TokenDash {
			return p.parseCondition(scope)
		}
		if next.Kind == TokenSymbol {
			if _, ok := arithOps[next.Value]; ok {
				return p.parseCondition(scope)
			}
			if _, ok := comparisonOps[next.Value]; ok {
				return p.parseCondition(scope)
			}
		}
		return p.parseFuncRef(scope)

	default:
		return nil, fmt.Errorf("unexpected token %s at position %d", tok.Kind, tok.Pos)
	}
}

func (p *parser) parseFuncRef(scope *Scope) (*FuncRef, error) {
	if _, err := p.expect(TokenLParen); err != nil {
		return nil, err
	}
	name, err := p.expect(TokenSymbol)
	if err != nil {
		return nil, err
	}
	args, err := p.parseTerms(scope)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenRParen); err != nil {
		return nil, err
	}
	return &FuncRef{Name: name.Value, Args: args}, nil
}

// parseTerms consumes predicate or function arguments up to, but not
// including, the closing parenthesis.
func (p *parser) parseTerms(scope *Scope) ([]Term, error) {
	var terms []Term
	for {
		tok := p.current()
		switch tok.Kind {
		case TokenVariable:
			p.advance()
			slot, ok := scope.Lookup(tok.Value)
			if !ok {
				return nil, fmt.Errorf("unbound variable %q at position %d", tok.Value, tok.Pos)
			}
			terms = append(terms, Term{Name: tok.Value, Slot: slot})
		case TokenSymbol:
			p.advance()
			terms = append(terms, Term{Name: tok.Value, Slot: -1})
		default:
			return terms, nil
		}
	}
}

// parseExists consumes the remainder of "( exists ( <typed-variable-list> )
// <condition> )" with the leading keyword already consumed. The quantified
// variables extend a copy of the enclosing scope, never the original, so
// their slots start at the enclosing scope's size and sibling conditions
// cannot see them.
func (p *parser) parseExists(scope *Scope) (Condition, error) {
	if _, err := p.expect(TokenLParen); err != nil {
		return nil, err
	}

	extended := scope.Clone()
	var vars []Var
	var pending []string
	flush := func(typ string) {
		for _, name := range pending {
			slot := extended.Append(name, typ)
			vars = append(vars, Var{Name: name, Type: typ, Slot: slot})
		}
		pending = nil
	}

varList:
	for {
		switch p.current().Kind {
		case TokenVariable:
			pending = append(pending, p.advance().Value)
		case TokenDash:
			p.advance()
			typeTok, err := p.expect(TokenSymbol)
			if err != nil {
				return nil, err
			}
			flush(typeTok.Value)
		case TokenRParen:
			p.advance()
			flush("")
			break varList
		default:
			tok := p.current()
			return nil, fmt.Errorf("unexpected %s in quantifier variable list at position %d", tok.Kind, tok.Pos)
		}
	}

	body, err := p.parseCondition(extended)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenRParen); err != nil {
		return nil, err
	}
	return &Exists{Vars: vars, Body: body}, nil
}

// Assignment is the parsed form of "(= (function args...) value)", the
// fully qualified function assignment used in problem init blocks and
// function updates.
type Assignment struct {
	Name  string
	Args  []string
	Value float64
}

// ParseAssignment parses a function assignment. The function arguments
// must all be concrete object names.
func ParseAssignment(input string) (Assignment, error) {
	c, err := Parse(input, nil)
	if err != nil {
		return Assignment{}, err
	}
	expr, ok := c.(*Expr)
	if !ok || expr.Op != tree.OpEQ {
		return Assignment{}, fmt.Errorf("expected function assignment, got %s", condString(c))
	}
	ref, ok := expr.Left.(*FuncRef)
	if !ok {
		return Assignment{}, fmt.Errorf("assignment target must be a function reference, got %s", condString(expr.Left))
	}
	lit, ok := expr.Right.(*NumberLit)
	if !ok {
		return Assignment{}, fmt.Errorf("assignment value must be numeric, got %s", condString(expr.Right))
	}
	args := make([]string, len(ref.Args))
	for i, arg := range ref.Args {
		if arg.Slot >= 0 {
			return Assignment{}, fmt.Errorf("assignment argument %q is not a concrete object", arg.Name)
		}
		args[i] = arg.Name
	}
	return Assignment{Name: ref.Name, Args: args, Value: lit.Value}, nil
}
