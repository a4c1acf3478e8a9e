package lseparse

//----------------------------------------------------------------------
// This file is part of Dynamo.
// Copyright (C) 2020-2021 Bernd Fix
//
// Dynamo is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License,
// or (at your option) any later version.
//
// Dynamo is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL3.0-or-later
//----------------------------------------------------------------------

import (
	"bufio"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/libresolve/libresolve/ast"
)

// Parse reads an `.lse` source stream and returns its ast.Program.
// Grounded on the teacher's Model.Parse line loop (bufio reader, 1-based
// line counter, per-line mode dispatch), generalized from DYNAMO's fixed
// two-letter mode prefixes to LibreSolvE's richer per-statement grammar:
// each line still maps to exactly one statement, but that statement is
// now parsed as free-form arithmetic rather than split on the first space.
func Parse(r io.Reader) (*ast.Program, error) {
	scanner := bufio.NewScanner(r)
	prog := &ast.Program{}
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		code, unit := stripAnnotations(scanner.Text())
		if code == "" {
			continue
		}
		stmt, err := parseStatement(code, unit, lineNo)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", lineNo)
		}
		prog.Statements = append(prog.Statements, stmt)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading source")
	}
	return prog, nil
}

// ParseString is a convenience wrapper for callers holding source text
// in memory, such as tests.
func ParseString(src string) (*ast.Program, error) {
	return Parse(strings.NewReader(src))
}

func parseStatement(code string, unit *string, line int) (ast.Stmt, error) {
	if strings.HasPrefix(code, "$") {
		return ast.Directive{Text: strings.TrimSpace(code[1:]), Line: line}, nil
	}
	if word, rest := splitFirstWord(code); strings.EqualFold(word, "PLOT") {
		return ast.PlotCommand{Text: strings.TrimSpace(rest), Line: line}, nil
	}

	toks, err := newLexer(code).tokenize()
	if err != nil {
		return nil, err
	}

	if split := findTopLevel(toks, tokAssign); split >= 0 {
		if split != 1 || toks[0].kind != tokIdent {
			return nil, errors.Errorf("column %d: assignment target must be a bare name", toks[0].col)
		}
		expr, err := parseExprTokens(toks[split+1:])
		if err != nil {
			return nil, err
		}
		return ast.Assignment{Name: toks[0].text, Expr: expr, Unit: unit, Line: line}, nil
	}

	if split := findTopLevel(toks, tokEq); split >= 0 {
		lhs, err := parseExprTokens(withEOF(toks[:split]))
		if err != nil {
			return nil, err
		}
		rhs, err := parseExprTokens(toks[split+1:])
		if err != nil {
			return nil, err
		}
		return ast.Equation{Lhs: lhs, Rhs: rhs, Unit: unit, Line: line}, nil
	}

	return nil, errors.New("statement contains neither ':=' nor '='")
}

// splitFirstWord separates the leading run of non-space characters
// from the rest of the line.
func splitFirstWord(code string) (word, rest string) {
	i := strings.IndexAny(code, " \t")
	if i < 0 {
		return code, ""
	}
	return code[:i], code[i+1:]
}

// findTopLevel returns the index of the first token of kind at paren
// depth 0, or -1 if none exists.
func findTopLevel(toks []token, kind tokenKind) int {
	depth := 0
	for i, t := range toks {
		switch t.kind {
		case tokLParen:
			depth++
		case tokRParen:
			depth--
		case kind:
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func withEOF(toks []token) []token {
	return append(append([]token{}, toks...), token{kind: tokEOF})
}

func parseExprTokens(toks []token) (ast.Expr, error) {
	p := &exprParser{toks: withEOF(toks)}
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.cur().kind != tokEOF {
		return nil, errors.Errorf("column %d: unexpected %s", p.cur().col, p.cur())
	}
	return e, nil
}

// exprParser is a recursive-descent parser over a flat token slice,
// implementing the precedence climb +/- < */ < unary-minus < ^
// (right-associative), matching spec.md §4 "Expression is a sum type
// ... BinaryOp(op ∈ {add,sub,mul,div,pow} ...)". The teacher's
// equation.go instead re-uses go/parser.ParseExpr and switches on
// go/ast nodes; that shortcut is unavailable here because Go's
// grammar has neither `^` as exponentiation nor single-quoted string
// literals, so the climb is hand-written the way the rest of this
// module's sum-type dispatch is.
type exprParser struct {
	toks []token
	pos  int
}

func (p *exprParser) cur() token { return p.toks[p.pos] }

func (p *exprParser) advance() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *exprParser) expect(kind tokenKind) (token, error) {
	if p.cur().kind != kind {
		return token{}, errors.Errorf("column %d: expected %s, found %s", p.cur().col, kind, p.cur())
	}
	return p.advance(), nil
}

func (p *exprParser) parseExpr() (ast.Expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		var op ast.BinaryOp
		switch p.cur().kind {
		case tokPlus:
			op = ast.OpAdd
		case tokMinus:
			op = ast.OpSub
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = ast.BinaryExpr{Op: op, Left: left, Right: right}
	}
}

func (p *exprParser) parseTerm() (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		var op ast.BinaryOp
		switch p.cur().kind {
		case tokStar:
			op = ast.OpMul
		case tokSlash:
			op = ast.OpDiv
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = ast.BinaryExpr{Op: op, Left: left, Right: right}
	}
}

func (p *exprParser) parseUnary() (ast.Expr, error) {
	if p.cur().kind == tokMinus {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return ast.BinaryExpr{Op: ast.OpSub, Left: ast.Number(0), Right: operand}, nil
	}
	return p.parsePow()
}

func (p *exprParser) parsePow() (ast.Expr, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if p.cur().kind == tokCaret {
		p.advance()
		// Right-associative, and the exponent may itself carry a
		// leading unary minus (2^-3), so recurse into parseUnary.
		exp, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return ast.BinaryExpr{Op: ast.OpPow, Left: base, Right: exp}, nil
	}
	return base, nil
}

func (p *exprParser) parsePrimary() (ast.Expr, error) {
	t := p.cur()
	switch t.kind {
	case tokNumber:
		p.advance()
		return ast.Number(t.num), nil

	case tokString:
		p.advance()
		return ast.StringLiteral{Value: t.text}, nil

	case tokLParen:
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return e, nil

	case tokIdent:
		p.advance()
		if p.cur().kind != tokLParen {
			return ast.Variable{Name: t.text}, nil
		}
		p.advance() // consume '('
		var args []ast.Expr
		if p.cur().kind != tokRParen {
			for {
				a, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				args = append(args, a)
				if p.cur().kind == tokComma {
					p.advance()
					continue
				}
				break
			}
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return ast.Call{Name: t.text, Args: args}, nil

	default:
		return nil, errors.Errorf("column %d: unexpected %s", t.col, t)
	}
}
