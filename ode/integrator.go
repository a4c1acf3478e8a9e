// Package ode implements the OdeIntegrator: fixed-step Heun/RK2 and
// adaptive-step RK4-with-embedded-error-control drivers over a
// per-step derivative isolation ladder, per spec.md §4.5.
package ode

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

	"github.com/libresolve/libresolve/ast"
	"github.com/libresolve/libresolve/errs"
	"github.com/libresolve/libresolve/eval"
	"github.com/libresolve/libresolve/logging"
	"github.com/libresolve/libresolve/solver"
	"github.com/libresolve/libresolve/store"
)

// innerSolverSettings bounds the nested AlgebraicSolver fallback used to
// isolate dydt when no syntactic shortcut applies (spec.md §4.5 step
// 2d: "a small iteration/tolerance budget... e.g. 50 iterations,
// 1e-4 tolerance").
var innerSolverSettings = solver.Settings{
	Algorithm:     solver.NelderMead,
	MaxIterations: 50,
	Tolerance:     1e-4,
}

// AdaptiveControls configures the adaptive RK4 driver.
type AdaptiveControls struct {
	Vary     bool
	MinSteps int
	MaxSteps int
	Reduce   float64 // e_rel threshold above which a step is rejected and h halved
	Increase float64 // e_rel threshold below which h is grown for the next step
}

// DefaultAdaptiveControls applies when a model has no $IntegralAutoStep
// directive. min=5, max=2000, reduce=1e-1, increase=1e-3 is the one
// coherent default set adopted where source variants disagreed.
func DefaultAdaptiveControls() AdaptiveControls {
	return AdaptiveControls{Vary: false, MinSteps: 5, MaxSteps: 2000, Reduce: 1e-1, Increase: 1e-3}
}

// Trajectory is the integrator's output: parallel (t, y) samples,
// starting at the lower limit and ending at the upper limit. When the
// adaptive driver stops at its step limit, the last sample lies short
// of the upper limit; when a slope evaluation fails, it is empty.
type Trajectory struct {
	Times  []float64
	Values []float64
}

// Result reports the outcome of an Integrate call.
type Result struct {
	Status     errs.Status
	Trajectory Trajectory
	FinalValue float64
	Warning    string
}

// Integrator is the OdeIntegrator.
type Integrator struct {
	Store *store.Store
	Log   logging.Logger
}

// New returns an Integrator over store s.
func New(s *store.Store, log logging.Logger) *Integrator {
	if log == nil {
		log = logging.Nop{}
	}
	return &Integrator{Store: s, Log: log}
}

// Integrate drives y from tLo to tHi given the state equations S whose
// variables are named dydt, y, t. When hFix > 0, fixed-step Heun/RK2
// is used; otherwise adaptive RK4 with embedded-error control.
func (in *Integrator) Integrate(stateEquations []solver.Equation, dydtName, yName, tName string, tLo, tHi float64, hFix float64, controls AdaptiveControls) Result {
	step := &derivativeStep{
		store:    in.Store,
		log:      in.Log,
		eqs:      stateEquations,
		dydt:     dydtName,
		y:        yName,
		t:        tName,
	}

	if hFix > 0 {
		return fixedStepHeun(step, tLo, tHi, hFix)
	}
	return adaptiveRK4(step, tLo, tHi, controls)
}

// derivativeStep implements the per-step derivative query slope(t', y').
type derivativeStep struct {
	store *store.Store
	log   logging.Logger
	eqs   []solver.Equation
	dydt, y, t string
}

func (d *derivativeStep) slope(tPrime, yPrime float64) (float64, error) {
	snap := d.store.Begin()
	d.store.SetExplicit(d.t, tPrime)
	d.store.SetExplicit(d.y, yPrime)
	defer d.store.Restore(snap)

	if v, ok, err := d.isolateDirect(); ok {
		return v, err
	}
	if v, ok, err := d.isolateAdditive(); ok {
		return v, err
	}
	if v, ok, err := d.isolateLinear(); ok {
		return v, err
	}
	return d.isolateBySolver()
}

// isolateDirect handles s.lhs = Variable(dydt): return evaluate(s.rhs).
func (d *derivativeStep) isolateDirect() (float64, bool, error) {
	for _, eq := range d.eqs {
		v, ok := eq.Lhs.(ast.Variable)
		if !ok || !sameName(v.Name, d.dydt) {
			continue
		}
		ev := eval.New(d.store, true, nil)
		val, err := ev.Evaluate(eq.Rhs)
		return val, true, err
	}
	return 0, false, nil
}

// isolateAdditive handles s.lhs = BinaryOp(add, Variable(dydt), other):
// return evaluate(s.rhs) - evaluate(other).
func (d *derivativeStep) isolateAdditive() (float64, bool, error) {
	for _, eq := range d.eqs {
		b, ok := eq.Lhs.(ast.BinaryExpr)
		if !ok || b.Op != ast.OpAdd {
			continue
		}
		v, isVar := b.Left.(ast.Variable)
		other := b.Right
		if !isVar || !sameName(v.Name, d.dydt) {
			v, isVar = b.Right.(ast.Variable)
			other = b.Left
			if !isVar || !sameName(v.Name, d.dydt) {
				continue
			}
		}
		ev := eval.New(d.store, true, nil)
		rhs, err := ev.Evaluate(eq.Rhs)
		if err != nil {
			return 0, true, err
		}
		o, err := ev.Evaluate(other)
		if err != nil {
			return 0, true, err
		}
		return rhs - o, true, nil
	}
	return 0, false, nil
}

// isolateLinear handles s.lhs = BinaryOp(add, BinaryOp(mul, coef,
// Variable(dydt)), other): return (evaluate(s.rhs) - evaluate(other)) / evaluate(coef).
func (d *derivativeStep) isolateLinear() (float64, bool, error) {
	for _, eq := range d.eqs {
		add, ok := eq.Lhs.(ast.BinaryExpr)
		if !ok || add.Op != ast.OpAdd {
			continue
		}
		mulTerm, other, found := asMulDydtTerm(add, d.dydt)
		if !found {
			continue
		}
		ev := eval.New(d.store, true, nil)
		rhs, err := ev.Evaluate(eq.Rhs)
		if err != nil {
			return 0, true, err
		}
		o, err := ev.Evaluate(other)
		if err != nil {
			return 0, true, err
		}
		coef, err := ev.Evaluate(mulTerm)
		if err != nil {
			return 0, true, err
		}
		if coef == 0 {
			return 0, true, errs.ErrDivisionByZero
		}
		return (rhs - o) / coef, true, nil
	}
	return 0, false, nil
}

// asMulDydtTerm checks whether add is BinaryOp(add, BinaryOp(mul,
// coef, Variable(dydt)), other) in either operand order, returning the
// coefficient expression and the other addend.
func asMulDydtTerm(add ast.BinaryExpr, dydt string) (coef ast.Expr, other ast.Expr, found bool) {
	check := func(candidate, rest ast.Expr) (ast.Expr, ast.Expr, bool) {
		mul, ok := candidate.(ast.BinaryExpr)
		if !ok || mul.Op != ast.OpMul {
			return nil, nil, false
		}
		if v, ok := mul.Right.(ast.Variable); ok && sameName(v.Name, dydt) {
			return mul.Left, rest, true
		}
		if v, ok := mul.Left.(ast.Variable); ok && sameName(v.Name, dydt) {
			return mul.Right, rest, true
		}
		return nil, nil, false
	}
	if c, o, ok := check(add.Left, add.Right); ok {
		return c, o, true
	}
	if c, o, ok := check(add.Right, add.Left); ok {
		return c, o, true
	}
	return nil, nil, false
}

// isolateBySolver is the last resort: invoke the AlgebraicSolver on
// the state equations with dydt as the single forced unknown.
func (d *derivativeStep) isolateBySolver() (float64, error) {
	sv := solver.New(d.store, d.log)
	result := sv.Solve(d.eqs, []string{d.dydt}, innerSolverSettings)
	if result.Status != errs.StatusConverged {
		return 0, errs.ErrNotConverged
	}
	return result.Solution[d.dydt], nil
}

func sameName(a, b string) bool {
	return equalFold(a, b)
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'a' <= ca && ca <= 'z' {
			ca -= 'a' - 'A'
		}
		if 'a' <= cb && cb <= 'z' {
			cb -= 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

func fixedStepHeun(d *derivativeStep, tLo, tHi, hFix float64) Result {
	n := int(math.Ceil((tHi - tLo) / hFix))
	if n < 1 {
		n = 1
	}
	h := (tHi - tLo) / float64(n)

	t := tLo
	y, _ := d.store.Get(d.y)

	times := make([]float64, 0, n+1)
	values := make([]float64, 0, n+1)
	times = append(times, t)
	values = append(values, y)

	for i := 0; i < n; i++ {
		k1, err := d.slope(t, y)
		if err != nil {
			return Result{Status: errs.StatusEvaluationErr, Warning: err.Error()}
		}
		yPredictor := y + h*k1
		k2, err := d.slope(t+h, yPredictor)
		if err != nil {
			return Result{Status: errs.StatusEvaluationErr, Warning: err.Error()}
		}
		y = y + h*(k1+k2)/2
		t = t + h
		times = append(times, t)
		values = append(values, y)
	}

	d.store.SetSolved(d.y, y)
	return Result{
		Status:     errs.StatusConverged,
		Trajectory: Trajectory{Times: times, Values: values},
		FinalValue: y,
	}
}

func adaptiveRK4(d *derivativeStep, tLo, tHi float64, c AdaptiveControls) Result {
	vary := c.Vary
	minSteps := c.MinSteps
	if minSteps < 1 {
		minSteps = 1
	}
	maxSteps := c.MaxSteps
	if maxSteps < minSteps {
		maxSteps = minSteps
	}

	span := tHi - tLo
	h := span / float64(minSteps)
	minH := span / float64(maxSteps)
	maxH := span / float64(minSteps)

	t := tLo
	y, _ := d.store.Get(d.y)

	times := []float64{t}
	values := []float64{y}

	stepsTaken := 0
	warning := ""

	for t < tHi {
		if t+h > tHi {
			h = tHi - t
		}

		k1, err := d.slope(t, y)
		if err != nil {
			return Result{Status: errs.StatusEvaluationErr, Warning: err.Error()}
		}
		k2, err := d.slope(t+h/2, y+h*k1/2)
		if err != nil {
			return Result{Status: errs.StatusEvaluationErr, Warning: err.Error()}
		}
		k3, err := d.slope(t+h/2, y+h*k2/2)
		if err != nil {
			return Result{Status: errs.StatusEvaluationErr, Warning: err.Error()}
		}
		k4, err := d.slope(t+h, y+h*k3)
		if err != nil {
			return Result{Status: errs.StatusEvaluationErr, Warning: err.Error()}
		}

		yRK4 := y + h*(k1+2*k2+2*k3+k4)/6
		yLow := y + h*k1
		e := math.Abs(yRK4 - yLow)
		denom := math.Abs(yRK4)
		if denom < 1e-9 {
			denom = 1e-9
		}
		eRel := e / denom

		if vary && eRel > c.Reduce && h > minH && stepsTaken > 0 {
			h /= 2
			continue
		}

		y = yRK4
		t += h
		stepsTaken++
		times = append(times, t)
		values = append(values, y)

		if vary && eRel < c.Increase && h < maxH {
			h *= 1.5
			if h > maxH {
				h = maxH
			}
		}

		if stepsTaken >= maxSteps && t < tHi {
			warning = "StepLimitExceeded"
			break
		}
	}

	d.store.SetSolved(d.y, y)

	status := errs.StatusConverged
	if warning != "" {
		status = errs.StatusNotConverged
	}
	return Result{
		Status:     status,
		Trajectory: Trajectory{Times: times, Values: values},
		FinalValue: y,
		Warning:    warning,
	}
}

// Resample linearly interpolates traj onto a uniform grid of step
// delta from traj.Times[0] to traj.Times[last], appending the final
// point exactly if the last grid point misses it by more than a small
// relative epsilon (spec.md §4.5 "Output resampling").
func Resample(traj Trajectory, delta float64) Trajectory {
	if len(traj.Times) == 0 || delta <= 0 {
		return traj
	}
	lo := traj.Times[0]
	hi := traj.Times[len(traj.Times)-1]

	var times, values []float64
	t := lo
	idx := 0
	for t <= hi {
		for idx < len(traj.Times)-2 && traj.Times[idx+1] < t {
			idx++
		}
		times = append(times, t)
		values = append(values, interpolate(traj, idx, t))
		t += delta
	}

	const relEps = 1e-9
	if len(times) == 0 || math.Abs(times[len(times)-1]-hi) > relEps*math.Max(1, math.Abs(hi)) {
		times = append(times, hi)
		values = append(values, traj.Values[len(traj.Values)-1])
	}
	return Trajectory{Times: times, Values: values}
}

func interpolate(traj Trajectory, idx int, t float64) float64 {
	t0, t1 := traj.Times[idx], traj.Times[idx+1]
	y0, y1 := traj.Values[idx], traj.Values[idx+1]
	if t1 == t0 {
		return y0
	}
	frac := (t - t0) / (t1 - t0)
	return y0 + frac*(y1-y0)
}
