package orchestrator_test

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
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libresolve/libresolve/ast"
	"github.com/libresolve/libresolve/errs"
	"github.com/libresolve/libresolve/ode"
	"github.com/libresolve/libresolve/orchestrator"
	"github.com/libresolve/libresolve/solver"
	"github.com/libresolve/libresolve/store"
)

func defaultSettings() orchestrator.Settings {
	return orchestrator.Settings{
		Solver:          solver.DefaultSettings(),
		DefaultAutoStep: ode.DefaultAdaptiveControls(),
	}
}

func assign(name string, expr ast.Expr) ast.Assignment { return ast.Assignment{Name: name, Expr: expr} }
func num(v float64) ast.Expr                           { return ast.Number(v) }
func v(name string) ast.Expr                           { return ast.Variable{Name: name} }
func bin(op ast.BinaryOp, l, r ast.Expr) ast.Expr       { return ast.BinaryExpr{Op: op, Left: l, Right: r} }
func eqn(lhs, rhs ast.Expr) ast.Equation               { return ast.Equation{Lhs: lhs, Rhs: rhs} }
func call(name string, args ...ast.Expr) ast.Expr      { return ast.Call{Name: name, Args: args} }

// TestScenarioS1HeatTransfer exercises spec.md Scenario S1: five
// explicit values and a three-equation algebraic system with one
// value (DeltaT) double-defined by two dependent equations.
func TestScenarioS1HeatTransfer(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Stmt{
		eqn(v("T_cold"), num(20)),
		eqn(v("Eff"), num(0.85)),
		eqn(v("CP"), num(4.18)),
		eqn(v("m_dot"), num(2)),
		eqn(v("Q_dot"), num(200)),
		eqn(v("T_hot"), bin(ast.OpAdd, v("T_cold"), bin(ast.OpMul, v("DeltaT"), v("Eff")))),
		eqn(v("DeltaT"), bin(ast.OpDiv, bin(ast.OpDiv, v("Q_dot"), v("m_dot")), v("CP"))),
		eqn(v("DeltaT"), bin(ast.OpDiv, bin(ast.OpSub, v("T_hot"), v("T_cold")), v("Eff"))),
	}}

	s := store.New()
	o := orchestrator.New(s, nil, defaultSettings())
	report := o.Run(prog)

	require.Equal(t, errs.StatusConverged, report.Status)
	val := func(name string) float64 {
		for _, e := range report.Variables.Entries {
			if e.Name == name {
				return e.Value
			}
		}
		t.Fatalf("variable %s missing from report", name)
		return 0
	}
	assert.InDelta(t, 20.0, val("T_cold"), 1e-9)
	assert.InDelta(t, 0.85, val("Eff"), 1e-9)
	assert.InDelta(t, 4.18, val("CP"), 1e-9)
	assert.InDelta(t, 2.0, val("m_dot"), 1e-9)
	assert.InDelta(t, 200.0, val("Q_dot"), 1e-9)
	assert.InDelta(t, 23.9234, val("DeltaT"), 1e-3)
	assert.InDelta(t, 40.3349, val("T_hot"), 1e-2)
}

// TestScenarioS2FunctionHeavyAssignments exercises spec.md Scenario
// S2: a chain of `:=` explicit assignments feeding a single nonlinear
// equation solved for its one true unknown.
func TestScenarioS2FunctionHeavyAssignments(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Stmt{
		assign("pi", num(3.14159265359)),
		assign("g", num(9.81)),
		assign("L", num(1)),
		assign("theta_max", num(15)),
		assign("theta_rad", bin(ast.OpDiv, bin(ast.OpMul, v("theta_max"), v("pi")), num(180))),
		assign("T", bin(ast.OpMul, bin(ast.OpMul, num(2), v("pi")), call("SQRT", bin(ast.OpDiv, v("L"), v("g"))))),
		assign("h", bin(ast.OpMul, v("L"), bin(ast.OpSub, num(1), call("COS", v("theta_rad"))))),
		eqn(bin(ast.OpPow, v("v_max"), num(2)), bin(ast.OpMul, bin(ast.OpMul, num(2), v("g")), v("h"))),
	}}

	s := store.New()
	o := orchestrator.New(s, nil, defaultSettings())
	report := o.Run(prog)

	require.Equal(t, errs.StatusConverged, report.Status)
	val := func(name string) float64 {
		for _, e := range report.Variables.Entries {
			if e.Name == name {
				return e.Value
			}
		}
		t.Fatalf("variable %s missing from report", name)
		return 0
	}
	assert.InDelta(t, 0.2618, val("theta_rad"), 1e-3)
	assert.InDelta(t, 2.0060, val("T"), 1e-3)
	assert.InDelta(t, 0.03407, val("h"), 1e-4)
	assert.InDelta(t, 0.8178, math.Abs(val("v_max")), 5e-3, "either root is acceptable per spec.md")
}

// TestScenarioS3OdeIntegration exercises spec.md Scenario S3: an
// adaptive-step ODE with a concurrently sampled analytical column.
func TestScenarioS3OdeIntegration(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Stmt{
		ast.Directive{Text: "IntegralAutoStep Vary=1 Min=5 Max=2000 Reduce=1e-1 Increase=1e-3"},
		// dydt + 4*t*y = -2*t  ->  dydt = -2*t - 4*t*y
		eqn(v("dydt"), bin(ast.OpSub, bin(ast.OpMul, num(-2), v("t")), bin(ast.OpMul, bin(ast.OpMul, num(4), v("t")), v("y")))),
		assign("t_sim", num(2.5)),
		eqn(v("y"), call("INTEGRAL", v("dydt"), v("t"), num(0), v("t_sim"))),
		assign("y_analytical", bin(ast.OpAdd,
			num(-0.5),
			bin(ast.OpDiv, call("EXP", bin(ast.OpMul, num(-2), bin(ast.OpPow, v("t"), num(2)))), num(2)))),
		ast.Directive{Text: "IntegralTable t, y, y_analytical"},
	}}

	s := store.New()
	o := orchestrator.New(s, nil, defaultSettings())
	report := o.Run(prog)

	// No equations remain once the ODE consumes its own state equation,
	// so Phase G's zero-unknowns path classifies the run Consistent.
	require.Equal(t, errs.StatusConsistent, report.Status)
	finalY, _ := s.Get("y")
	assert.InDelta(t, -0.4999981, finalY, 5e-4)

	require.Equal(t, 3, len(report.Table.ColumnNames))
	assert.GreaterOrEqual(t, report.Table.Len(), 5)
}

// TestIntegralInitialValuePrefersExistingGuessOverZero covers the
// "unless lower == 0 and the store default would be used" qualifier on
// spec.md's INTEGRAL initial-value rule: a pre-recorded Guess for the
// dependent variable is a real starting estimate and must survive,
// even though lower == 0 would otherwise force y(0) = 0.
func TestIntegralInitialValuePrefersExistingGuessOverZero(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Stmt{
		// dydt = 0*t references the unresolved independent variable t,
		// so it stays an algebraic state equation for Phase F rather
		// than being folded to a constant beforehand, while still
		// evaluating to exactly 0 at every step: y is constant over t.
		eqn(v("dydt"), bin(ast.OpMul, num(0), v("t"))),
		assign("t_sim", num(1)),
		eqn(v("y"), call("INTEGRAL", v("dydt"), v("t"), num(0), v("t_sim"))),
	}}

	s := store.New()
	s.SetGuess("y", 3)
	o := orchestrator.New(s, nil, defaultSettings())
	report := o.Run(prog)

	require.Equal(t, errs.StatusConsistent, report.Status)
	finalY, _ := s.Get("y")
	assert.InDelta(t, 3.0, finalY, 1e-6)
}

// TestScenarioS4UnderspecifiedSystem exercises spec.md Scenario S4: a
// single equation over two unknowns must report Underspecified without
// committing a partial solve.
func TestScenarioS4UnderspecifiedSystem(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Stmt{
		eqn(bin(ast.OpAdd, v("x"), v("y")), num(10)),
	}}

	s := store.New()
	o := orchestrator.New(s, nil, defaultSettings())
	report := o.Run(prog)

	require.Equal(t, errs.StatusUnderspecified, report.Status)
	assert.False(t, s.IsSolved("x"))
	assert.False(t, s.IsSolved("y"))
}

// TestScenarioS5RedefinitionConflict exercises spec.md Scenario S5: a
// later non-probe equation contradicting an earlier explicit value.
func TestScenarioS5RedefinitionConflict(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Stmt{
		assign("a", num(1)),
		eqn(v("a"), num(2)),
	}}

	s := store.New()
	o := orchestrator.New(s, nil, defaultSettings())
	report := o.Run(prog)

	require.Equal(t, errs.StatusRedefinition, report.Status)
	got, _ := s.Get("a")
	assert.Equal(t, 1.0, got, "the original explicit value must survive a rejected redefinition")
}

// TestScenarioS5RedefinitionConflictAllowsCheckSuffix exercises the
// `_check`/`_error` escape hatch to the same rule: a probe name
// overwrites with a warning instead of a conflict.
func TestScenarioS5RedefinitionConflictAllowsCheckSuffix(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Stmt{
		assign("a_check", num(1)),
		eqn(v("a_check"), num(2)),
	}}

	s := store.New()
	o := orchestrator.New(s, nil, defaultSettings())
	report := o.Run(prog)

	require.NotEqual(t, errs.StatusRedefinition, report.Status)
	got, _ := s.Get("a_check")
	assert.Equal(t, 2.0, got)
}

// TestScenarioS6ConsistencyCheck exercises spec.md Scenario S6: a
// fully-determined system (zero unknowns) that is already satisfied.
func TestScenarioS6ConsistencyCheck(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Stmt{
		assign("x", num(3)),
		assign("y", num(4)),
		assign("hyp", num(5)),
		eqn(bin(ast.OpPow, v("hyp"), num(2)), bin(ast.OpAdd, bin(ast.OpPow, v("x"), num(2)), bin(ast.OpPow, v("y"), num(2)))),
	}}

	s := store.New()
	o := orchestrator.New(s, nil, defaultSettings())
	report := o.Run(prog)

	require.Equal(t, errs.StatusConsistent, report.Status)
}

// TestPlotEmissionProjectsTableColumns exercises Phase H: a PLOT
// statement referencing integral-table columns produces a structured
// PlotData event with matching series.
func TestPlotEmissionProjectsTableColumns(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Stmt{
		ast.Directive{Text: "IntegralTable t, y"},
		eqn(v("dydt"), bin(ast.OpMul, num(2), v("t"))),
		assign("t_sim", num(1)),
		eqn(v("y"), call("INTEGRAL", v("dydt"), v("t"), num(0), v("t_sim"))),
		ast.PlotCommand{Text: "y"},
	}}

	s := store.New()
	o := orchestrator.New(s, nil, defaultSettings())
	report := o.Run(prog)

	require.Equal(t, errs.StatusConsistent, report.Status)
	finalY, _ := s.Get("y")
	assert.InDelta(t, 1.0, finalY, 1e-2, "y' = 2t integrated from 0 to 1 is t^2 = 1")
	require.Len(t, report.Plots, 1)
	require.Len(t, report.Plots[0].Series, 1)
	assert.Equal(t, "y", report.Plots[0].Series[0].Name)
}
