package fortran

import (
	"strconv"
	"strings"

	"github.com/soypat/fortcheck/ast"
	"github.com/soypat/fortcheck/token"
)

// Operator precedence from lowest to highest binding.
const (
	precLowest = iota
	precEqv
	precOr
	precAnd
	precNot
	precRelational
	precConcat
	precAdditive
	precMultiplicative
	precPower
)

func binaryPrecedence(tok token.Token) int {
	switch {
	case tok == token.EQV || tok == token.NEQV:
		return precEqv
	case tok == token.OR:
		return precOr
	case tok == token.AND:
		return precAnd
	case tok.IsRelational():
		return precRelational
	case tok == token.StringConcat:
		return precConcat
	case tok == token.Plus || tok == token.Minus:
		return precAdditive
	case tok == token.Asterisk || tok == token.Slash:
		return precMultiplicative
	case tok == token.DoubleStar:
		return precPower
	}
	return precLowest
}

// parseExpression parses an expression whose binary operators bind tighter
// than minPrec. Exponentiation is right associative, all other binary
// operators are left associative.
func (p *Parser90) parseExpression(minPrec int) ast.Expression {
	start := p.current.start
	var left ast.Expression
	switch p.current.tok {
	case token.NOT:
		p.nextToken()
		operand := p.parseExpression(precNot)
		if operand == nil {
			return nil
		}
		left = &ast.UnaryExpr{Position: ast.Pos(start, p.prevEnd), Op: token.NOT, Operand: operand}
	case token.Plus, token.Minus:
		op := p.current.tok
		p.nextToken()
		operand := p.parseExpression(precAdditive)
		if operand == nil {
			return nil
		}
		left = &ast.UnaryExpr{Position: ast.Pos(start, p.prevEnd), Op: op, Operand: operand}
	default:
		left = p.parsePrimary()
	}
	for left != nil {
		op := p.current.tok
		prec := binaryPrecedence(op)
		if prec <= minPrec {
			break
		}
		if op == token.Slash && p.peekTokenIs(token.RParen) {
			break // End of (/ ... /) array constructor.
		}
		p.nextToken()
		rightMin := prec
		if op == token.DoubleStar {
			rightMin = prec - 1
		}
		right := p.parseExpression(rightMin)
		if right == nil {
			return nil
		}
		left = &ast.BinaryExpr{Position: ast.Pos(start, p.prevEnd), Op: op, Left: left, Right: right}
	}
	return left
}

// parsePrimary parses a literal, parenthesized expression, array
// constructor, implied-do or designator.
func (p *Parser90) parsePrimary() ast.Expression {
	start := p.current.start
	switch p.current.tok {
	case token.IntLit:
		raw := string(p.current.lit)
		digits, _, _ := strings.Cut(raw, "_")
		v, err := strconv.ParseInt(digits, 10, 64)
		if err != nil {
			p.addError("invalid integer literal " + strconv.Quote(raw) + ": " + err.Error())
			return nil
		}
		p.nextToken()
		return &ast.IntegerLiteral{Position: ast.Pos(start, p.prevEnd), Raw: raw, Value: v}
	case token.FloatLit:
		raw := string(p.current.lit)
		mant, _, _ := strings.Cut(raw, "_")
		mant = strings.Map(func(r rune) rune {
			switch r {
			case 'd', 'D', 'q', 'Q':
				return 'e'
			}
			return r
		}, mant)
		v, err := strconv.ParseFloat(mant, 64)
		if err != nil {
			p.addError("invalid real literal " + strconv.Quote(raw) + ": " + err.Error())
			return nil
		}
		p.nextToken()
		return &ast.RealLiteral{Position: ast.Pos(start, p.prevEnd), Raw: raw, Value: v}
	case token.StringLit:
		s := &ast.StringLiteral{Value: string(p.current.lit)}
		p.nextToken()
		s.Position = ast.Pos(start, p.prevEnd)
		return s
	case token.TRUE, token.FALSE:
		l := &ast.LogicalLiteral{Value: p.current.tok == token.TRUE}
		p.nextToken()
		l.Position = ast.Pos(start, p.prevEnd)
		return l
	case token.LParen:
		if p.peekTokenIs(token.Slash) {
			return p.parseArrayConstructor(token.Slash)
		}
		return p.parseParenExpr()
	case token.LBracket:
		return p.parseArrayConstructor(token.RBracket)
	}
	if p.isIdentLike() {
		return p.parseDesignator()
	}
	p.addError("unexpected " + p.current.tok.String() + " in expression")
	return nil
}

// parseDesignator parses a name followed by any chain of (args), %component
// and [cosubscripts] parts.
func (p *Parser90) parseDesignator() ast.Expression {
	start := p.current.start
	var base ast.Expression = p.parseIdent()
	if base == nil {
		return nil
	}
	for {
		switch p.current.tok {
		case token.LParen:
			p.nextToken()
			args := p.parseArgs(token.RParen)
			if args == nil {
				return nil
			}
			base = &ast.FunctionCall{Position: ast.Pos(start, p.prevEnd), Func: base, Args: args}
		case token.Percent:
			p.nextToken()
			comp := p.parseIdent()
			if comp == nil {
				return nil
			}
			base = &ast.ComponentAccess{Position: ast.Pos(start, p.prevEnd), Base: base, Component: comp}
		case token.LBracket:
			p.nextToken()
			cosubs := p.parseArgs(token.RBracket)
			if cosubs == nil {
				return nil
			}
			base = &ast.CoarrayRef{Position: ast.Pos(start, p.prevEnd), Base: base, Cosubscripts: cosubs}
		default:
			return base
		}
	}
}

// parseArgs parses an argument, subscript or bounds list up to and
// including close. The opening token must already be consumed. A nil result
// means an error was reported.
func (p *Parser90) parseArgs(close token.Token) []ast.Expression {
	args := []ast.Expression{}
	if p.consumeIf(close) {
		return args
	}
	for {
		arg := p.parseArg(close)
		if arg == nil {
			p.skipGroupRest(close)
			return nil
		}
		args = append(args, arg)
		if !p.consumeIf(token.Comma) {
			break
		}
	}
	if !p.expect(close, "argument list") {
		return nil
	}
	return args
}

// parseArg parses a single argument: `kw=expr`, `*`, `expr` or a
// subscript triplet `[lo]:[hi][:stride]`.
func (p *Parser90) parseArg(close token.Token) ast.Expression {
	start := p.current.start
	if p.isIdentLike() && p.peekTokenIs(token.Equals) {
		kw := strings.ToUpper(string(p.current.lit))
		p.nextToken()
		p.nextToken()
		value := p.parseArg(close)
		if value == nil {
			return nil
		}
		return &ast.KeywordArg{Position: ast.Pos(start, p.prevEnd), Keyword: kw, Value: value}
	}
	if star := p.parseBoundStar(close); star != nil {
		return star
	}
	var lo ast.Expression
	if !p.currentTokenIs(token.Colon) {
		lo = p.parseExpression(precLowest)
		if lo == nil || !p.currentTokenIs(token.Colon) {
			return lo
		}
	}
	p.nextToken() // :
	r := &ast.RangeExpr{Start: lo}
	if !p.currentTokenIs(token.Comma) && !p.currentTokenIs(close) && !p.currentTokenIs(token.Colon) {
		if r.End = p.parseBoundStar(close); r.End == nil {
			r.End = p.parseExpression(precLowest)
			if r.End == nil {
				return nil
			}
		}
	}
	if p.consumeIf(token.Colon) {
		r.Stride = p.parseExpression(precLowest)
		if r.Stride == nil {
			return nil
		}
	}
	r.Position = ast.Pos(start, p.prevEnd)
	return r
}

// parseBoundStar parses a lone `*` as in assumed-size bounds and unit
// specifiers. It returns nil if the current token is not such a star.
func (p *Parser90) parseBoundStar(close token.Token) ast.Expression {
	if !p.currentTokenIs(token.Asterisk) || !(p.peekTokenIs(token.Comma) || p.peekTokenIs(close)) {
		return nil
	}
	star := &ast.Star{Position: ast.Pos(p.current.start, p.current.end)}
	p.nextToken()
	return star
}

// parseArrayConstructor parses (/ values /) when last is Slash and
// [ values ] when last is RBracket.
func (p *Parser90) parseArrayConstructor(last token.Token) ast.Expression {
	start := p.current.start
	p.nextToken() // ( or [
	if last == token.Slash {
		p.nextToken() // /
	}
	ac := &ast.ArrayConstructor{Values: []ast.Expression{}}
	if p.isTypeSpecStart() && p.peekTokenIs(token.DoubleColon) {
		p.nextToken() // [integer :: ...]
		p.nextToken()
	}
	for !p.currentTokenIs(last) {
		v := p.parseExpression(precLowest)
		if v == nil {
			return nil
		}
		ac.Values = append(ac.Values, v)
		if !p.consumeIf(token.Comma) {
			break
		}
	}
	if !p.expect(last, "array constructor") {
		return nil
	}
	if last == token.Slash && !p.expect(token.RParen, "array constructor") {
		return nil
	}
	ac.Position = ast.Pos(start, p.prevEnd)
	return ac
}

// parseParenExpr parses a parenthesized expression or an implied-do
// `(items, var = start, end [, stride])`.
func (p *Parser90) parseParenExpr() ast.Expression {
	start := p.current.start
	p.nextToken() // (
	first := p.parseExpression(precLowest)
	if first == nil {
		return nil
	}
	if p.consumeIf(token.RParen) {
		return &ast.ParenExpr{Position: ast.Pos(start, p.prevEnd), Expr: first}
	}
	items := []ast.Expression{first}
	for p.consumeIf(token.Comma) {
		if p.isIdentLike() && p.peekTokenIs(token.Equals) {
			return p.parseImpliedDoControl(start, items)
		}
		item := p.parseExpression(precLowest)
		if item == nil {
			return nil
		}
		items = append(items, item)
	}
	if len(items) == 2 && p.currentTokenIs(token.RParen) {
		p.addError("complex literal constants are not supported")
		return nil
	}
	p.addError("expected ) or implied-do control, got " + p.current.tok.String())
	return nil
}

func (p *Parser90) parseImpliedDoControl(start int, items []ast.Expression) ast.Expression {
	ido := &ast.ImpliedDoLoop{Items: items, Var: p.parseIdent()}
	p.nextToken() // =
	ido.Start = p.parseExpression(precLowest)
	if ido.Start == nil || !p.expect(token.Comma, "implied-do") {
		return nil
	}
	ido.End = p.parseExpression(precLowest)
	if ido.End == nil {
		return nil
	}
	if p.consumeIf(token.Comma) {
		ido.Stride = p.parseExpression(precLowest)
		if ido.Stride == nil {
			return nil
		}
	}
	if !p.expect(token.RParen, "implied-do") {
		return nil
	}
	ido.Position = ast.Pos(start, p.prevEnd)
	return ido
}
