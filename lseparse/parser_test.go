package lseparse_test

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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libresolve/libresolve/ast"
	"github.com/libresolve/libresolve/lseparse"
)

func TestParseExplicitAssignment(t *testing.T) {
	prog, err := lseparse.ParseString("x := 3 + 4 * 2")
	require.NoError(t, err)
	require.Len(t, prog.Statements, 1)
	a, ok := prog.Statements[0].(ast.Assignment)
	require.True(t, ok)
	assert.Equal(t, "x", a.Name)
	assert.Equal(t, ast.BinaryExpr{
		Op:   ast.OpAdd,
		Left: ast.Number(3),
		Right: ast.BinaryExpr{Op: ast.OpMul, Left: ast.Number(4), Right: ast.Number(2)},
	}, a.Expr)
}

func TestParseEquation(t *testing.T) {
	prog, err := lseparse.ParseString("v_max^2 = 2*g*h")
	require.NoError(t, err)
	require.Len(t, prog.Statements, 1)
	e, ok := prog.Statements[0].(ast.Equation)
	require.True(t, ok)
	assert.Equal(t, ast.BinaryExpr{Op: ast.OpPow, Left: ast.Variable{Name: "v_max"}, Right: ast.Number(2)}, e.Lhs)
}

// TestParsePowerIsRightAssociativeAndBindsTighterThanUnaryMinus exercises
// the -2^2 == -(2^2) == -4 convention, 2^-3 == 2^(-3), and
// 2^3^2 == 2^(3^2).
func TestParsePowerIsRightAssociativeAndBindsTighterThanUnaryMinus(t *testing.T) {
	prog, err := lseparse.ParseString("a := -2^2")
	require.NoError(t, err)
	a := prog.Statements[0].(ast.Assignment)
	want := ast.BinaryExpr{
		Op:   ast.OpSub,
		Left: ast.Number(0),
		Right: ast.BinaryExpr{Op: ast.OpPow, Left: ast.Number(2), Right: ast.Number(2)},
	}
	assert.Equal(t, want, a.Expr)

	prog2, err := lseparse.ParseString("b := 2^-3")
	require.NoError(t, err)
	b := prog2.Statements[0].(ast.Assignment)
	wantExp := ast.BinaryExpr{
		Op:    ast.OpPow,
		Left:  ast.Number(2),
		Right: ast.BinaryExpr{Op: ast.OpSub, Left: ast.Number(0), Right: ast.Number(3)},
	}
	assert.Equal(t, wantExp, b.Expr)

	prog3, err := lseparse.ParseString("c := 2^3^2")
	require.NoError(t, err)
	c := prog3.Statements[0].(ast.Assignment)
	wantRight := ast.BinaryExpr{
		Op:    ast.OpPow,
		Left:  ast.Number(2),
		Right: ast.BinaryExpr{Op: ast.OpPow, Left: ast.Number(3), Right: ast.Number(2)},
	}
	assert.Equal(t, wantRight, c.Expr)
}

func TestParseFunctionCallWithMultipleArguments(t *testing.T) {
	prog, err := lseparse.ParseString("y := CONVERT('m', 'ft')")
	require.NoError(t, err)
	a := prog.Statements[0].(ast.Assignment)
	assert.Equal(t, ast.Call{
		Name: "CONVERT",
		Args: []ast.Expr{ast.StringLiteral{Value: "m"}, ast.StringLiteral{Value: "ft"}},
	}, a.Expr)
}

func TestParseStringLiteralWithEmbeddedQuote(t *testing.T) {
	prog, err := lseparse.ParseString("s := 'it''s fine'")
	require.NoError(t, err)
	a := prog.Statements[0].(ast.Assignment)
	assert.Equal(t, ast.StringLiteral{Value: "it's fine"}, a.Expr)
}

func TestParseCommentsAreStrippedButStringsAreNot(t *testing.T) {
	prog, err := lseparse.ParseString("g := 9.81 { gravity, m/s^2 }")
	require.NoError(t, err)
	a := prog.Statements[0].(ast.Assignment)
	assert.Equal(t, ast.Number(9.81), a.Expr)

	prog2, err := lseparse.ParseString("pi := 3.14159265359 // circle constant")
	require.NoError(t, err)
	a2 := prog2.Statements[0].(ast.Assignment)
	assert.Equal(t, ast.Number(3.14159265359), a2.Expr)

	prog3, err := lseparse.ParseString("s := 'x // y'")
	require.NoError(t, err)
	a3 := prog3.Statements[0].(ast.Assignment)
	assert.Equal(t, ast.StringLiteral{Value: "x // y"}, a3.Expr)
}

func TestParseUnitAnnotationAttachesToAssignment(t *testing.T) {
	prog, err := lseparse.ParseString(`g := 9.81 "[m/s^2]"`)
	require.NoError(t, err)
	a := prog.Statements[0].(ast.Assignment)
	require.NotNil(t, a.Unit)
	assert.Equal(t, "[m/s^2]", *a.Unit)
}

func TestParseDirectiveLine(t *testing.T) {
	prog, err := lseparse.ParseString("$IntegralTable t:0.1, y, y_analytical")
	require.NoError(t, err)
	d, ok := prog.Statements[0].(ast.Directive)
	require.True(t, ok)
	assert.Equal(t, "IntegralTable t:0.1, y, y_analytical", d.Text)
}

func TestParsePlotCommand(t *testing.T) {
	prog, err := lseparse.ParseString("PLOT y, y_analytical")
	require.NoError(t, err)
	p, ok := prog.Statements[0].(ast.PlotCommand)
	require.True(t, ok)
	assert.Equal(t, "y, y_analytical", p.Text)
}

func TestParseIntegralCall(t *testing.T) {
	prog, err := lseparse.ParseString("y := INTEGRAL(dydt, t, 0, t_sim)")
	require.NoError(t, err)
	a := prog.Statements[0].(ast.Assignment)
	call, ok := ast.IsIntegralCall(a.Expr)
	require.True(t, ok)
	require.Len(t, call.Args, 4)
}

func TestParseBlankAndCommentOnlyLinesAreSkipped(t *testing.T) {
	prog, err := lseparse.ParseString("\n{ just a comment }\n// also a comment\nx := 1\n")
	require.NoError(t, err)
	require.Len(t, prog.Statements, 1)
}

func TestParseRejectsUnterminatedString(t *testing.T) {
	_, err := lseparse.ParseString("x := 'unterminated")
	assert.Error(t, err)
}

func TestParseRejectsMalformedStatement(t *testing.T) {
	_, err := lseparse.ParseString("3 + 4")
	assert.Error(t, err)
}

func TestParseFullProgram(t *testing.T) {
	src := `
{ Scenario S1: heat transfer }
T_cold := 20
Eff := 0.85
CP := 4.18
m_dot := 2
Q_dot := 200
T_hot = T_cold + DeltaT*Eff
DeltaT = Q_dot/m_dot/CP
DeltaT = (T_hot - T_cold)/Eff
`
	prog, err := lseparse.ParseString(src)
	require.NoError(t, err)
	assert.Len(t, prog.Statements, 8)
}
