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
	"sort"

	"github.com/libresolve/libresolve/errs"
	"github.com/libresolve/libresolve/eval"
	"github.com/libresolve/libresolve/logging"
	"github.com/libresolve/libresolve/solver"
)

// solveAlgebraic executes spec.md §4.3 Phase G: collect unknowns,
// classify the trivial cases, and otherwise hand off to the
// AlgebraicSolver.
func (o *Orchestrator) solveAlgebraic(equations []solver.Equation) (errs.Status, string) {
	unknowns := o.collectUnknowns(equations)

	if len(unknowns) == 0 {
		return o.checkConsistency(equations)
	}

	if len(equations) < len(unknowns) {
		return errs.StatusUnderspecified, ""
	}

	sv := solver.New(o.Store, o.Log)
	result := sv.Solve(equations, unknowns, o.Settings.Solver)
	if result.Status != errs.StatusConverged {
		o.Log.Logf(logging.LevelWarn, "algebraic solve did not converge: residual=%g", result.Residual)
		return errs.StatusNotConverged, result.Warning
	}
	return errs.StatusConverged, result.Warning
}

// collectUnknowns gathers the variables referenced by equations that
// are not yet Explicit or Solved, sorted case-insensitively for
// determinism (spec.md §4.3 Phase G, §4.4 determinism).
func (o *Orchestrator) collectUnknowns(equations []solver.Equation) []string {
	seen := make(map[string]bool)
	var out []string
	for _, eq := range equations {
		for _, name := range append(variableNamesIn(eq.Lhs), variableNamesIn(eq.Rhs)...) {
			key := fold(name)
			if seen[key] {
				continue
			}
			if o.Store.IsExplicit(name) || o.Store.IsSolved(name) {
				continue
			}
			seen[key] = true
			out = append(out, name)
		}
	}
	sort.Slice(out, func(i, j int) bool { return fold(out[i]) < fold(out[j]) })
	return out
}

// checkConsistency handles the zero-unknowns case: every equation must
// already be satisfied within consistencyTolerance.
func (o *Orchestrator) checkConsistency(equations []solver.Equation) (errs.Status, string) {
	ev := eval.New(o.Store, true, nil)
	for _, eq := range equations {
		l, errL := ev.Evaluate(eq.Lhs)
		r, errR := ev.Evaluate(eq.Rhs)
		if errL != nil || errR != nil || math.Abs(l-r) > consistencyTolerance {
			return errs.StatusInconsistent, ""
		}
	}
	return errs.StatusConsistent, ""
}
