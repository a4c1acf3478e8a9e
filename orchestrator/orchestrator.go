// Package orchestrator implements the StatementOrchestrator: the
// eight-phase pipeline (spec.md §4.3) that partitions a parsed program,
// resolves assignment dependency order, drives ODE integration, and
// hands whatever remains to the AlgebraicSolver.
package orchestrator

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
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/libresolve/libresolve/ast"
	"github.com/libresolve/libresolve/errs"
	"github.com/libresolve/libresolve/eval"
	"github.com/libresolve/libresolve/logging"
	"github.com/libresolve/libresolve/ode"
	"github.com/libresolve/libresolve/report"
	"github.com/libresolve/libresolve/solver"
	"github.com/libresolve/libresolve/store"
)

// redefinitionTolerance is the relative threshold spec.md §4.3 Phase E
// names for detecting an inconsistent re-assignment.
const redefinitionTolerance = 1e-6

// consistencyTolerance is the absolute threshold spec.md §4.3 Phase G
// uses to classify a fully-determined algebraic system as Consistent.
const consistencyTolerance = 1e-6

// Settings bundles the AlgebraicSolver settings and the default
// adaptive-step controls a run falls back to absent a directive.
type Settings struct {
	Solver          solver.Settings
	DefaultAutoStep ode.AdaptiveControls
}

// Orchestrator is the StatementOrchestrator.
type Orchestrator struct {
	Store    *store.Store
	Log      logging.Logger
	Settings Settings

	table    *integralTableSpec
	autoStep *autoStepSpec

	// assignmentExprs remembers the defining expression of every
	// explicit/candidate assignment, keyed upper-case, so Phase F step
	// 6 can re-evaluate a side column at each sampled (t, y).
	assignmentExprs map[string]ast.Expr
}

// New returns an Orchestrator over store s.
func New(s *store.Store, log logging.Logger, settings Settings) *Orchestrator {
	if log == nil {
		log = logging.Nop{}
	}
	return &Orchestrator{
		Store:           s,
		Log:             log,
		Settings:        settings,
		assignmentExprs: make(map[string]ast.Expr),
	}
}

// Report is the outcome of a Run call.
type Report struct {
	Status    errs.Status
	Variables report.VariableReport
	Table     report.IntegralTable
	Plots     []report.PlotData
	Warnings  []string
}

type candidateAssignment struct {
	Name string
	Expr ast.Expr
	Unit *string
}

type integralDef struct {
	Target       string
	Dydt, T      string
	Lower, Upper ast.Expr
	Step         ast.Expr
	HasStep      bool
}

// Run executes all eight phases over program and returns the final
// report.
func (o *Orchestrator) Run(program *ast.Program) Report {
	var (
		directives []string
		plots      []string
		integrals  []integralDef
		explicits  []ast.Assignment
		candidates []candidateAssignment
		algebraic  []solver.Equation
	)

	// Phase A — Partition.
	for _, stmt := range program.Statements {
		switch s := stmt.(type) {
		case ast.Directive:
			directives = append(directives, s.Text)

		case ast.PlotCommand:
			plots = append(plots, s.Text)

		case ast.Assignment:
			if call, ok := ast.IsIntegralCall(s.Expr); ok {
				if def, ok := integralDefFromCall(s.Name, call); ok {
					integrals = append(integrals, def)
					continue
				}
			}
			explicits = append(explicits, s)

		case ast.Equation:
			if def, ok := integralDefFromEquation(s); ok {
				integrals = append(integrals, def)
				continue
			}
			if v, ok := s.Lhs.(ast.Variable); ok {
				candidates = append(candidates, candidateAssignment{Name: v.Name, Expr: s.Rhs, Unit: s.Unit})
				continue
			}
			algebraic = append(algebraic, solver.Equation{Lhs: s.Lhs, Rhs: s.Rhs})
		}
	}

	// A name claimed as the LHS of more than one candidate equation has
	// no single defining expression to substitute; every equation
	// naming it is demoted straight to the algebraic list, to be solved
	// simultaneously rather than forward-substituted (spec.md §4.3
	// Phase C models one node per LHS name, not per equation).
	candidates, algebraic = demoteDuplicateLHS(candidates, algebraic)

	var warnings []string

	// Phase B — Process directives.
	for _, d := range directives {
		o.processDirective(d)
	}

	// Phase D — Execute explicit assignments. The defining expression is
	// recorded even on failure: a column formula that references an
	// ODE's own t/y (e.g. an analytical-solution column meant only for
	// Phase F's per-sample replay) is expected to fail here, since t/y
	// do not exist until the integrator runs.
	var errD error
	ev := eval.New(o.Store, true, nil)
	for _, a := range explicits {
		o.assignmentExprs[fold(a.Name)] = a.Expr
		v, err := ev.Evaluate(a.Expr)
		if err != nil {
			errD = multierror.Append(errD, errors.Wrapf(err, "explicit assignment %s", a.Name))
			continue
		}
		o.Store.SetExplicit(a.Name, v)
		if a.Unit != nil {
			o.Store.SetUnit(a.Name, a.Unit)
		}
	}
	if errD != nil {
		o.Log.Logf(logging.LevelWarn, "%v", errD)
	}

	redefined := false

	// Phase C — Order the candidate assignments; cyclic members (or
	// names resting on a variable Phase C can never make "known", such
	// as an ODE's own state variables) are demoted to the algebraic
	// list.
	ordered, demoted := orderCandidates(candidates, o.Store)
	for _, c := range demoted {
		algebraic = append(algebraic, solver.Equation{Lhs: ast.Variable{Name: c.Name}, Rhs: c.Expr})
	}

	// Phase E — Execute ordered candidate assignments.
	var errE error
	for _, c := range ordered {
		v, err := ev.Evaluate(c.Expr)
		if err != nil {
			errE = multierror.Append(errE, errors.Wrapf(err, "candidate assignment %s", c.Name))
			continue
		}
		if o.Store.IsExplicit(c.Name) {
			prev, _ := o.Store.Get(c.Name)
			if relativeDiff(prev, v) > redefinitionTolerance {
				if isConsistencyProbe(c.Name) {
					o.Log.Logf(logging.LevelWarn, "consistency probe %s: %g vs %g", c.Name, prev, v)
				} else {
					errE = multierror.Append(errE, errors.Wrapf(errs.ErrRedefinition, "%s: %g vs %g", c.Name, prev, v))
					redefined = true
					continue
				}
			}
		}
		o.Store.SetExplicit(c.Name, v)
		o.assignmentExprs[fold(c.Name)] = c.Expr
		if c.Unit != nil {
			o.Store.SetUnit(c.Name, c.Unit)
		}
	}
	if errE != nil {
		o.Log.Logf(logging.LevelWarn, "%v", errE)
	}

	// Phase F — ODE definitions.
	var tableColumns map[string][]float64
	var tableTimes []float64
	for _, def := range integrals {
		algebraic, tableTimes, tableColumns = o.runIntegralDef(def, algebraic, tableTimes, tableColumns)
	}

	// Phase G — Algebraic solve.
	status, warning := o.solveAlgebraic(algebraic)
	if warning != "" {
		warnings = append(warnings, warning)
	}
	if redefined {
		// spec.md §4.3 Phase E: a non-probe redefinition conflict takes
		// priority over whatever the algebraic solve produced.
		status = errs.StatusRedefinition
	}

	// Phase H — Plot emission.
	plotData := o.emitPlots(plots, tableTimes, tableColumns)

	table := report.IntegralTable{}
	if o.table != nil && tableTimes != nil {
		names := []string{o.table.Independent}
		cols := [][]float64{tableTimes}
		for _, name := range o.projectedColumns(tableColumns) {
			names = append(names, name)
			cols = append(cols, tableColumns[fold(name)])
		}
		table = report.NewIntegralTable(names, cols)
	}

	return Report{
		Status:    status,
		Variables: report.BuildVariableReport(o.Store),
		Table:     table,
		Plots:     plotData,
		Warnings:  warnings,
	}
}

func (o *Orchestrator) projectedColumns(tableColumns map[string][]float64) []string {
	if o.table == nil {
		return nil
	}
	var out []string
	for _, c := range o.table.Columns {
		if strings.EqualFold(c, o.table.Independent) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// demoteDuplicateLHS splits candidates whose LHS name occurs exactly
// once (true substitution candidates) from those whose name occurs
// more than once (moved to algebraic, since Phase C's graph has one
// node per name and a multiply-defined node cannot be a simple
// forward substitution).
func demoteDuplicateLHS(candidates []candidateAssignment, algebraic []solver.Equation) ([]candidateAssignment, []solver.Equation) {
	counts := make(map[string]int, len(candidates))
	for _, c := range candidates {
		counts[fold(c.Name)]++
	}
	var unique []candidateAssignment
	for _, c := range candidates {
		if counts[fold(c.Name)] > 1 {
			algebraic = append(algebraic, solver.Equation{Lhs: ast.Variable{Name: c.Name}, Rhs: c.Expr})
			continue
		}
		unique = append(unique, c)
	}
	return unique, algebraic
}

func fold(name string) string { return strings.ToUpper(name) }

func relativeDiff(prev, next float64) float64 {
	if prev == 0 {
		return math.Abs(next)
	}
	return math.Abs((next - prev) / prev)
}

func isConsistencyProbe(name string) bool {
	upper := strings.ToUpper(name)
	return strings.HasSuffix(upper, "_CHECK") || strings.HasSuffix(upper, "_ERROR")
}

// integralDefFromCall builds an integralDef from `name := INTEGRAL(dydt, t, lower, upper[, step])`.
func integralDefFromCall(name string, call *ast.Call) (integralDef, bool) {
	if len(call.Args) < 4 || len(call.Args) > 5 {
		return integralDef{}, false
	}
	dydt, ok1 := call.Args[0].(ast.Variable)
	t, ok2 := call.Args[1].(ast.Variable)
	if !ok1 || !ok2 {
		return integralDef{}, false
	}
	def := integralDef{
		Target: name,
		Dydt:   dydt.Name,
		T:      t.Name,
		Lower:  call.Args[2],
		Upper:  call.Args[3],
	}
	if len(call.Args) == 5 {
		def.Step = call.Args[4]
		def.HasStep = true
	}
	return def, true
}

// integralDefFromEquation handles `lhs = INTEGRAL(...)` or
// `INTEGRAL(...) = rhs`, normalizing so the non-INTEGRAL side is the
// dependent variable.
func integralDefFromEquation(eq ast.Equation) (integralDef, bool) {
	if call, ok := ast.IsIntegralCall(eq.Rhs); ok {
		if v, ok := eq.Lhs.(ast.Variable); ok {
			return integralDefFromCall(v.Name, call)
		}
	}
	if call, ok := ast.IsIntegralCall(eq.Lhs); ok {
		if v, ok := eq.Rhs.(ast.Variable); ok {
			return integralDefFromCall(v.Name, call)
		}
	}
	return integralDef{}, false
}

// orderCandidates runs the fixed-point pass spec.md §4.3 Phase C
// describes: a node's RHS variables must ALL be "known" — already
// Explicit in the store after Phase D, or themselves an
// already-ordered candidate's LHS — before the node is ready. A
// variable that is never going to become known within this phase (an
// external unknown, or an ODE's own state variable such as `t`/`y`,
// which Phase F supplies later) leaves its candidate permanently
// un-ready; whatever is left after a pass makes no further progress is
// demoted to the algebraic list. Grounded on
// bfix-dynamo/src/dynamo/eqnlist.go's Sort, generalized from a pure
// index-graph topological sort to this "known set" fixed point.
func orderCandidates(candidates []candidateAssignment, s *store.Store) (ordered, demoted []candidateAssignment) {
	known := make(map[string]bool)
	for _, name := range s.Names() {
		if s.IsExplicit(name) {
			known[fold(name)] = true
		}
	}

	remaining := make([]int, len(candidates))
	for i := range candidates {
		remaining[i] = i
	}

	for {
		var next []int
		progressed := false
		for _, i := range remaining {
			c := candidates[i]
			ready := true
			for _, ref := range variableNamesIn(c.Expr) {
				if !known[fold(ref)] {
					ready = false
					break
				}
			}
			if ready {
				ordered = append(ordered, c)
				known[fold(c.Name)] = true
				progressed = true
			} else {
				next = append(next, i)
			}
		}
		remaining = next
		if !progressed || len(remaining) == 0 {
			break
		}
	}

	for _, i := range remaining {
		demoted = append(demoted, candidates[i])
	}
	return ordered, demoted
}

// variableNamesIn collects every Variable name referenced within e.
func variableNamesIn(e ast.Expr) []string {
	var out []string
	var walk func(ast.Expr)
	walk = func(e ast.Expr) {
		switch x := e.(type) {
		case ast.Variable:
			out = append(out, x.Name)
		case ast.BinaryExpr:
			walk(x.Left)
			walk(x.Right)
		case ast.Call:
			for _, a := range x.Args {
				walk(a)
			}
		}
	}
	walk(e)
	return out
}

// exprReferencesName reports whether name appears anywhere in e.
func exprReferencesName(e ast.Expr, name string) bool {
	for _, n := range variableNamesIn(e) {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}
