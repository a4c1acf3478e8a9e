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
	"strings"

	"github.com/libresolve/libresolve/eval"
	"github.com/libresolve/libresolve/logging"
	"github.com/libresolve/libresolve/ode"
	"github.com/libresolve/libresolve/solver"
	"github.com/libresolve/libresolve/store"
)

// runIntegralDef executes spec.md §4.3 Phase F for one INTEGRAL
// definition: resolves limits and initial state, isolates the state
// equations, drives the OdeIntegrator, removes the consumed equations
// from the algebraic list, and extends the active integral table.
func (o *Orchestrator) runIntegralDef(def integralDef, algebraic []solver.Equation, times []float64, columns map[string][]float64) ([]solver.Equation, []float64, map[string][]float64) {
	ev := eval.New(o.Store, true, nil)

	lower, err := ev.Evaluate(def.Lower)
	if err != nil {
		o.Log.Logf(logging.LevelWarn, "INTEGRAL %s: invalid lower limit: %v", def.Target, err)
		return algebraic, times, columns
	}
	upper, err := ev.Evaluate(def.Upper)
	if err != nil {
		o.Log.Logf(logging.LevelWarn, "INTEGRAL %s: invalid upper limit: %v", def.Target, err)
		return algebraic, times, columns
	}
	var hFix float64
	if def.HasStep {
		hFix, err = ev.Evaluate(def.Step)
		if err != nil {
			o.Log.Logf(logging.LevelWarn, "INTEGRAL %s: invalid step: %v", def.Target, err)
			return algebraic, times, columns
		}
	}

	// Initial value of the dependent variable at t = lower. Forcing
	// y(lower)=0 only applies when the store would otherwise fall back
	// to the bare Default provenance (spec.md: "store default 1.0
	// unless lower == 0 and the store default would be used, in which
	// case assume y(0) = 0"); an existing Guess or Solved value for the
	// target is a real starting estimate and must not be clobbered. A
	// recorded guess doesn't flip Provenance to Guess until Get is
	// first called on the name, so HasGuess/IsSolved are checked
	// directly rather than relying on Provenance alone.
	usesDefault := !o.Store.HasGuess(def.Target) && !o.Store.IsSolved(def.Target) &&
		o.Store.Provenance(def.Target) == store.Default
	if o.Store.IsExplicit(def.Target) {
		// already set; leave as-is
	} else if lower == 0 && usesDefault {
		o.Store.SetExplicit(def.Target, 0)
	} else {
		v, _ := o.Store.Get(def.Target)
		o.Store.SetExplicit(def.Target, v)
	}

	var state, remaining []solver.Equation
	for _, eq := range algebraic {
		if exprReferencesName(eq.Lhs, def.Dydt) || exprReferencesName(eq.Rhs, def.Dydt) {
			state = append(state, eq)
		} else {
			remaining = append(remaining, eq)
		}
	}

	controls := o.Settings.DefaultAutoStep
	if o.autoStep != nil {
		controls.Vary = o.autoStep.Vary
		if o.autoStep.MinSteps > 0 {
			controls.MinSteps = o.autoStep.MinSteps
		}
		if o.autoStep.MaxSteps > 0 {
			controls.MaxSteps = o.autoStep.MaxSteps
		}
		if o.autoStep.Reduce > 0 {
			controls.Reduce = o.autoStep.Reduce
		}
		if o.autoStep.Increase > 0 {
			controls.Increase = o.autoStep.Increase
		}
	}

	integrator := ode.New(o.Store, o.Log)
	result := integrator.Integrate(state, def.Dydt, def.Target, def.T, lower, upper, hFix, controls)
	if result.Warning != "" {
		o.Log.Logf(logging.LevelWarn, "INTEGRAL %s: %s", def.Target, result.Warning)
	}

	if o.table != nil && strings.EqualFold(o.table.Independent, def.T) {
		traj := result.Trajectory
		if o.table.Step > 0 {
			traj = ode.Resample(traj, o.table.Step)
		}
		times = traj.Times
		if columns == nil {
			columns = make(map[string][]float64)
		}
		columns[fold(def.Target)] = traj.Values
		for _, name := range o.table.Columns {
			if strings.EqualFold(name, def.T) || strings.EqualFold(name, def.Target) {
				continue
			}
			columns[fold(name)] = o.sampleColumn(name, def.T, def.Target, traj)
		}
	}

	return remaining, times, columns
}

// sampleColumn evaluates the named column's defining expression (or
// reads a constant from the store, if it has none) at each sampled
// (t, y) pair, per spec.md §4.3 Phase F step 6.
func (o *Orchestrator) sampleColumn(name, tName, yName string, traj ode.Trajectory) []float64 {
	expr, hasExpr := o.assignmentExprs[fold(name)]
	out := make([]float64, len(traj.Times))
	for i := range traj.Times {
		if !hasExpr {
			v, _ := o.Store.Get(name)
			out[i] = v
			continue
		}
		snap := o.Store.Begin()
		o.Store.SetExplicit(tName, traj.Times[i])
		o.Store.SetExplicit(yName, traj.Values[i])
		ev := eval.New(o.Store, false, nil)
		v, err := ev.Evaluate(expr)
		o.Store.Restore(snap)
		if err != nil {
			v = 0
		}
		out[i] = v
	}
	return out
}
