package parser

import (
	"strconv"
	"strings"

	"github.com/edulang/pseudo/ast"
)

// Parse lexes and parses source into a Program. The first error encountered
// is returned with the line of the offending token.
func Parse(source string) (*ast.Program, error) {
	toks, err := lex(source)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: toks}
	var stmts []ast.Statement
	for !p.check(tokEOF) {
		s, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	return &ast.Program{Statements: stmts}, nil
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() token {
	if p.pos >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos]
}

func (p *parser) peekAt(n int) token {
	if p.pos+n >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+n]
}

func (p *parser) next() token {
	t := p.peek()
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return t
}

func (p *parser) check(kind tokenKind) bool {
	return p.peek().kind == kind
}

func (p *parser) match(kind tokenKind) bool {
	if p.check(kind) {
		p.next()
		return true
	}
	return false
}

func (p *parser) expect(kind tokenKind) (token, error) {
	if p.check(kind) {
		return p.next(), nil
	}
	got := p.peek()
	return token{}, syntaxErr(got.line, "expected %s, found %s", kind, describe(got))
}

func describe(t token) string {
	switch t.kind {
	case tokEOF:
		return "end of input"
	case tokIdent, tokNumber:
		return "'" + t.lexeme + "'"
	case tokString:
		return "string literal"
	default:
		return "'" + t.lexeme + "'"
	}
}

// blockEnd reports the tokens that close the block currently being parsed.
type blockEnd func(k tokenKind) bool

func (p *parser) parseBlock(isEnd blockEnd) ([]ast.Statement, error) {
	var stmts []ast.Statement
	for !isEnd(p.peek().kind) {
		if p.check(tokEOF) {
			return nil, syntaxErr(p.peek().line, "unexpected end of input inside block")
		}
		s, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	return stmts, nil
}

func (p *parser) parseStatement() (ast.Statement, error) {
	switch p.peek().kind {
	case tokModule:
		return p.parseModule()
	case tokFunction:
		return p.parseFunction()
	case tokDeclare:
		return p.parseDeclare(false)
	case tokConstant:
		return p.parseDeclare(true)
	case tokSet:
		return p.parseSet()
	case tokDisplay:
		return p.parseDisplay()
	case tokInput:
		return p.parseInput()
	case tokIf:
		return p.parseIf()
	case tokWhile:
		return p.parseWhile()
	case tokDo:
		return p.parseDo()
	case tokFor:
		return p.parseFor()
	case tokCall:
		return p.parseCall()
	case tokReturn:
		return p.parseReturn()
	default:
		got := p.peek()
		return nil, syntaxErr(got.line, "expected a statement, found %s", describe(got))
	}
}

func (p *parser) parseModule() (ast.Statement, error) {
	kw := p.next()
	name, err := p.expect(tokIdent)
	if err != nil {
		return nil, err
	}
	params, err := p.parseParams()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock(func(k tokenKind) bool { return k == tokEndModule })
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokEndModule); err != nil {
		return nil, err
	}
	return ast.ModuleDecl{Name: name.lexeme, Params: params, Body: body, Line: kw.line}, nil
}

func (p *parser) parseFunction() (ast.Statement, error) {
	kw := p.next()
	retType := "auto"
	if t, ok := p.typeKeyword(); ok {
		retType = t
	}
	name, err := p.expect(tokIdent)
	if err != nil {
		return nil, err
	}
	params, err := p.parseParams()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock(func(k tokenKind) bool { return k == tokEndFunction })
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokEndFunction); err != nil {
		return nil, err
	}
	return ast.FuncDecl{Name: name.lexeme, ReturnType: retType, Params: params, Body: body, Line: kw.line}, nil
}

func (p *parser) typeKeyword() (string, bool) {
	switch p.peek().kind {
	case tokIntegerType:
		p.next()
		return "Integer", true
	case tokRealType:
		p.next()
		return "Real", true
	case tokStringType:
		p.next()
		return "String", true
	}
	return "", false
}

// parseParams reads a parenthesized parameter list. Ref may appear before or
// after the type keyword; a missing type yields "auto"; a [] suffix marks an
// array parameter.
func (p *parser) parseParams() ([]ast.Param, error) {
	if _, err := p.expect(tokLParen); err != nil {
		return nil, err
	}
	var params []ast.Param
	if p.match(tokRParen) {
		return params, nil
	}
	for {
		var prm ast.Param
		prm.DataType = "auto"
		if p.match(tokRef) {
			prm.IsRef = true
		}
		if t, ok := p.typeKeyword(); ok {
			prm.DataType = t
		}
		if !prm.IsRef && p.match(tokRef) {
			prm.IsRef = true
		}
		name, err := p.expect(tokIdent)
		if err != nil {
			return nil, err
		}
		prm.Name = name.lexeme
		if p.match(tokLBracket) {
			if _, err := p.expect(tokRBracket); err != nil {
				return nil, err
			}
			prm.IsArray = true
		}
		params = append(params, prm)
		if !p.match(tokComma) {
			break
		}
	}
	if _, err := p.expect(tokRParen); err != nil {
		return nil, err
	}
	return params, nil
}

func (p *parser) parseDeclare(isConstant bool) (ast.Statement, error) {
	kw := p.next()
	dataType, ok := p.typeKeyword()
	if !ok {
		return nil, syntaxErr(p.peek().line, "expected a type after %s", kw.lexeme)
	}
	var decls []ast.Declarator
	for {
		name, err := p.expect(tokIdent)
		if err != nil {
			return nil, err
		}
		decl := ast.Declarator{Name: name.lexeme, Line: name.line}
		if p.match(tokLBracket) {
			size, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tokRBracket); err != nil {
				return nil, err
			}
			decl.Size = size
		}
		if p.match(tokAssign) {
			if decl.Size != nil {
				lit := ast.ArrayLit{Line: p.peek().line}
				for {
					e, err := p.parseExpr()
					if err != nil {
						return nil, err
					}
					lit.Elements = append(lit.Elements, e)
					if !p.match(tokComma) {
						break
					}
				}
				decl.Init = lit
				decls = append(decls, decl)
				// the element list consumes every following comma, so an
				// initialized array ends its Declare statement
				break
			}
			init, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			decl.Init = init
		}
		if isConstant && decl.Init == nil {
			return nil, syntaxErr(name.line, "constant %s must have an initializer", name.lexeme)
		}
		decls = append(decls, decl)
		if !p.match(tokComma) {
			break
		}
	}
	return ast.DeclareStmt{DataType: dataType, IsConstant: isConstant, Declarators: decls, Line: kw.line}, nil
}

func (p *parser) parseSet() (ast.Statement, error) {
	kw := p.next()
	target, err := p.parsePostfix()
	if err != nil {
		return nil, err
	}
	switch target.(type) {
	case ast.Ident, ast.IndexExpr:
	default:
		return nil, syntaxErr(kw.line, "invalid assignment target")
	}
	if _, err := p.expect(tokAssign); err != nil {
		return nil, err
	}
	value, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return ast.SetStmt{Target: target, Value: value, Line: kw.line}, nil
}

func (p *parser) parseDisplay() (ast.Statement, error) {
	kw := p.next()
	if p.check(tokTap) {
		return nil, syntaxErr(p.peek().line, "Display cannot start with Tap")
	}
	var items []ast.Expr
	for {
		if p.check(tokTap) {
			t := p.next()
			items = append(items, ast.TapMarker{Line: t.line})
		} else {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			items = append(items, e)
		}
		if !p.match(tokComma) {
			break
		}
	}
	return ast.DisplayStmt{Items: items, Line: kw.line}, nil
}

func (p *parser) parseInput() (ast.Statement, error) {
	kw := p.next()
	name, err := p.expect(tokIdent)
	if err != nil {
		return nil, err
	}
	return ast.InputStmt{Name: name.lexeme, Line: kw.line}, nil
}

func (p *parser) parseIf() (ast.Statement, error) {
	kw := p.next()
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokThen); err != nil {
		return nil, err
	}
	thenBody, err := p.parseBlock(func(k tokenKind) bool { return k == tokElse || k == tokEndIf })
	if err != nil {
		return nil, err
	}
	stmt := ast.IfStmt{Cond: cond, Then: thenBody, Line: kw.line}
	if p.match(tokElse) {
		if p.check(tokIf) {
			// Else If chains nest without an intermediate End If; the
			// innermost If consumes the single closing End If.
			nested, err := p.parseIf()
			if err != nil {
				return nil, err
			}
			stmt.Else = []ast.Statement{nested}
			return stmt, nil
		}
		elseBody, err := p.parseBlock(func(k tokenKind) bool { return k == tokEndIf })
		if err != nil {
			return nil, err
		}
		stmt.Else = elseBody
	}
	if _, err := p.expect(tokEndIf); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *parser) parseWhile() (ast.Statement, error) {
	kw := p.next()
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock(func(k tokenKind) bool { return k == tokEndWhile })
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokEndWhile); err != nil {
		return nil, err
	}
	return ast.WhileStmt{Cond: cond, Body: body, Line: kw.line}, nil
}

// parseDo reads a post-test loop. While or Until at statement position closes
// the body and picks the loop flavor; a pre-test While loop inside a Do body
// therefore needs to sit inside an If or module of its own.
func (p *parser) parseDo() (ast.Statement, error) {
	kw := p.next()
	body, err := p.parseBlock(func(k tokenKind) bool { return k == tokWhile || k == tokUntil })
	if err != nil {
		return nil, err
	}
	closing := p.next()
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if closing.kind == tokUntil {
		return ast.DoUntilStmt{Body: body, Cond: cond, Line: kw.line}, nil
	}
	return ast.DoWhileStmt{Body: body, Cond: cond, Line: kw.line}, nil
}

func (p *parser) parseFor() (ast.Statement, error) {
	kw := p.next()
	name, err := p.expect(tokIdent)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokAssign); err != nil {
		return nil, err
	}
	start, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokTo); err != nil {
		return nil, err
	}
	end, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock(func(k tokenKind) bool { return k == tokEndFor })
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokEndFor); err != nil {
		return nil, err
	}
	return ast.ForStmt{Counter: name.lexeme, Start: start, End: end, Body: body, Line: kw.line}, nil
}

func (p *parser) parseCall() (ast.Statement, error) {
	kw := p.next()
	name, err := p.expect(tokIdent)
	if err != nil {
		return nil, err
	}
	var args []ast.Expr
	if p.match(tokLParen) {
		if !p.check(tokRParen) {
			for {
				e, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				args = append(args, e)
				if !p.match(tokComma) {
					break
				}
			}
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
	}
	return ast.CallStmt{Name: name.lexeme, Args: args, Line: kw.line}, nil
}

func (p *parser) parseReturn() (ast.Statement, error) {
	kw := p.next()
	value, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return ast.ReturnStmt{Value: value, Line: kw.line}, nil
}

// Expression grammar, lowest precedence first:
//
//	or -> and ( Or and )*
//	and -> equality ( And equality )*
//	equality -> relational ( (== | != | =) relational )*
//	relational -> additive ( (< | <= | > | >=) additive )*
//	additive -> multiplicative ( (+ | -) multiplicative )*
//	multiplicative -> unary ( (* | / | % | Mod) unary )*
//	unary -> (- | Not) unary | postfix
//	postfix -> primary ( (args) | [index] )*
func (p *parser) parseExpr() (ast.Expr, error) {
	return p.parseOr()
}

func (p *parser) parseOr() (ast.Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.check(tokOr) {
		op := p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = ast.BinaryExpr{Op: "Or", Left: left, Right: right, Line: op.line}
	}
	return left, nil
}

func (p *parser) parseAnd() (ast.Expr, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.check(tokAnd) {
		op := p.next()
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = ast.BinaryExpr{Op: "And", Left: left, Right: right, Line: op.line}
	}
	return left, nil
}

func (p *parser) parseEquality() (ast.Expr, error) {
	left, err := p.parseRelational()
	if err != nil {
		return nil, err
	}
	for p.check(tokEqual) || p.check(tokNotEqual) || p.check(tokAssign) {
		op := p.next()
		right, err := p.parseRelational()
		if err != nil {
			return nil, err
		}
		// bare = outside Set is equality
		name := "=="
		if op.kind == tokNotEqual {
			name = "!="
		}
		left = ast.BinaryExpr{Op: name, Left: left, Right: right, Line: op.line}
	}
	return left, nil
}

func (p *parser) parseRelational() (ast.Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.check(tokLess) || p.check(tokLessEq) || p.check(tokGreater) || p.check(tokGreaterEq) {
		op := p.next()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = ast.BinaryExpr{Op: op.lexeme, Left: left, Right: right, Line: op.line}
	}
	return left, nil
}

func (p *parser) parseAdditive() (ast.Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.check(tokPlus) || p.check(tokMinus) {
		op := p.next()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = ast.BinaryExpr{Op: op.lexeme, Left: left, Right: right, Line: op.line}
	}
	return left, nil
}

func (p *parser) parseMultiplicative() (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.check(tokStar) || p.check(tokSlash) || p.check(tokPercent) || p.check(tokMod) {
		op := p.next()
		name := op.lexeme
		if op.kind == tokMod {
			name = "%"
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = ast.BinaryExpr{Op: name, Left: left, Right: right, Line: op.line}
	}
	return left, nil
}

func (p *parser) parseUnary() (ast.Expr, error) {
	if p.check(tokMinus) || p.check(tokNot) {
		op := p.next()
		name := "-"
		if op.kind == tokNot {
			name = "Not"
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return ast.UnaryExpr{Op: name, Right: right, Line: op.line}, nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (ast.Expr, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.check(tokLParen):
			ident, ok := expr.(ast.Ident)
			if !ok {
				return nil, syntaxErr(p.peek().line, "only named functions can be called")
			}
			p.next()
			var args []ast.Expr
			if !p.check(tokRParen) {
				for {
					e, err := p.parseExpr()
					if err != nil {
						return nil, err
					}
					args = append(args, e)
					if !p.match(tokComma) {
						break
					}
				}
			}
			if _, err := p.expect(tokRParen); err != nil {
				return nil, err
			}
			expr = ast.CallExpr{Callee: ident.Name, Args: args, Line: ident.Line}
		case p.check(tokLBracket):
			open := p.next()
			idx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tokRBracket); err != nil {
				return nil, err
			}
			expr = ast.IndexExpr{Array: expr, Index: idx, Line: open.line}
		case p.check(tokCaret):
			return nil, syntaxErr(p.peek().line, "'^' is not a valid operator; use pow(base, exponent)")
		default:
			return expr, nil
		}
	}
}

func (p *parser) parsePrimary() (ast.Expr, error) {
	t := p.peek()
	switch t.kind {
	case tokNumber:
		p.next()
		v, err := strconv.ParseFloat(t.lexeme, 64)
		if err != nil {
			return nil, syntaxErr(t.line, "invalid number %q", t.lexeme)
		}
		return ast.NumberLit{Value: v, IsInt: !strings.Contains(t.lexeme, "."), Line: t.line}, nil
	case tokString:
		p.next()
		return ast.StringLit{Value: t.lexeme, Line: t.line}, nil
	case tokIdent:
		p.next()
		return ast.Ident{Name: t.lexeme, Line: t.line}, nil
	case tokLParen:
		p.next()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return ast.GroupExpr{Inner: inner, Line: t.line}, nil
	case tokCaret:
		return nil, syntaxErr(t.line, "'^' is not a valid operator; use pow(base, exponent)")
	default:
		return nil, syntaxErr(t.line, "expected an expression, found %s", describe(t))
	}
}
